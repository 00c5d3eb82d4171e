package cron

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/multierr"

	"github.com/angelmondragon/contributions-backend/internal/payments"
	"github.com/angelmondragon/contributions-backend/pkg/db/models"
	"github.com/angelmondragon/contributions-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/contributions-backend/pkg/errors"
	"github.com/angelmondragon/contributions-backend/pkg/logger"
	"github.com/angelmondragon/contributions-backend/pkg/paystack"
)

const (
	StaleContributionReconcileJobName = "stale-contribution-reconcile"

	defaultStaleAfter     = 30 * time.Minute
	defaultReconcileBatch = 100
)

type staleContributionStore interface {
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Contribution, error)
	MarkTerminal(ctx context.Context, reference string, status enums.ContributionStatus) (bool, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, reference string) (*payments.VerifyResult, error)
}

// StaleContributionReconcileJobParams configures the stale pending sweep.
type StaleContributionReconcileJobParams struct {
	Logger     *logger.Logger
	Store      staleContributionStore
	Verifier   reconciler
	StaleAfter time.Duration
	BatchSize  int
	Clock      clockz.Clock
}

type staleContributionReconcileJob struct {
	logg       *logger.Logger
	store      staleContributionStore
	verifier   reconciler
	staleAfter time.Duration
	batchSize  int
	clock      clockz.Clock
}

// NewStaleContributionReconcileJob builds the sweep that re-verifies contributions
// left pending past StaleAfter and closes the ones the gateway never settled.
func NewStaleContributionReconcileJob(params StaleContributionReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("contribution store required")
	}
	if params.Verifier == nil {
		return nil, fmt.Errorf("verifier required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	clock := params.Clock
	if clock == nil {
		clock = clockz.RealClock
	}
	return &staleContributionReconcileJob{
		logg:       params.Logger,
		store:      params.Store,
		verifier:   params.Verifier,
		staleAfter: staleAfter,
		batchSize:  batch,
		clock:      clock,
	}, nil
}

func (j *staleContributionReconcileJob) Name() string {
	return StaleContributionReconcileJobName
}

type reconcileStats struct {
	scanned   int
	settled   int
	closed    int
	untouched int
}

func (j *staleContributionReconcileJob) Run(ctx context.Context) error {
	cutoff := j.clock.Now().UTC().Add(-j.staleAfter)
	rows, err := j.store.FindPendingBefore(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("list stale contributions: %w", err)
	}

	var stats reconcileStats
	var errs error
	for _, row := range rows {
		stats.scanned++
		if err := j.reconcileOne(ctx, row.PaymentReference, &stats); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", row.PaymentReference, err))
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff.Format(time.RFC3339),
		"scanned":   stats.scanned,
		"settled":   stats.settled,
		"closed":    stats.closed,
		"untouched": stats.untouched,
		"errors":    len(multierr.Errors(errs)),
	}), "stale contribution sweep finished")
	return errs
}

func (j *staleContributionReconcileJob) reconcileOne(ctx context.Context, ref string, stats *reconcileStats) error {
	ctx = j.logg.WithReference(ctx, ref)
	result, err := j.verifier.Reconcile(ctx, ref)
	switch {
	case err == nil:
	case pkgerrors.IsCode(err, pkgerrors.CodeAmountMismatch):
		// the verifier already marked it failed
		stats.closed++
		return nil
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		stats.untouched++
		return nil
	case unknownToGateway(err):
		return j.close(ctx, ref, stats)
	default:
		stats.untouched++
		return err
	}

	if result.Status.IsTerminal() {
		stats.settled++
		return nil
	}
	return j.close(ctx, ref, stats)
}

func (j *staleContributionReconcileJob) close(ctx context.Context, ref string, stats *reconcileStats) error {
	changed, err := j.store.MarkTerminal(ctx, ref, enums.ContributionStatusFailed)
	if err != nil {
		stats.untouched++
		return err
	}
	if changed {
		stats.closed++
		j.logg.Info(ctx, "stale contribution closed as failed")
	} else {
		stats.settled++
	}
	return nil
}

// unknownToGateway reports whether the gateway has no record of the reference,
// which happens when checkout was never opened.
func unknownToGateway(err error) bool {
	var statusErr *paystack.StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusNotFound || statusErr.StatusCode == http.StatusBadRequest
}

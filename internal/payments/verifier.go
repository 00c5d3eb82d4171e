package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zoobzio/clockz"

	"github.com/angelmondragon/contributions-backend/pkg/db/models"
	"github.com/angelmondragon/contributions-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/contributions-backend/pkg/errors"
	"github.com/angelmondragon/contributions-backend/pkg/logger"
	"github.com/angelmondragon/contributions-backend/pkg/metrics"
	"github.com/angelmondragon/contributions-backend/pkg/paystack"
	"github.com/angelmondragon/contributions-backend/pkg/reference"
)

const DefaultVerifyTimeout = 10 * time.Second

// AmountTolerance is the largest accepted gap between paid and expected GHS.
var AmountTolerance = decimal.RequireFromString("0.01")

// Gateway statuses that mean the donor has not finished paying yet.
var inFlightStatuses = map[string]struct{}{
	"ongoing":    {},
	"pending":    {},
	"processing": {},
	"queued":     {},
	"abandoned":  {},
}

// Store is the slice of the contribution repository the verifier needs.
type Store interface {
	FindByReference(ctx context.Context, reference string) (*models.Contribution, error)
	MarkTerminal(ctx context.Context, reference string, status enums.ContributionStatus) (bool, error)
}

// VerifyResult is the verify endpoint body.
type VerifyResult struct {
	Verified         bool                     `json:"verified"`
	Status           enums.ContributionStatus `json:"status"`
	Reference        string                   `json:"reference"`
	AmountGHS        string                   `json:"amount_ghs,omitempty"`
	GatewayStatus    string                   `json:"gateway_status,omitempty"`
	Cached           bool                     `json:"cached,omitempty"`
	AlreadyProcessed bool                     `json:"already_processed,omitempty"`
	ProcessingTimeMS int64                    `json:"processing_time_ms"`
}

// Verifier resolves a pending contribution against the gateway. Only the
// conditional update in the store arbitrates concurrent callers.
type Verifier struct {
	store   Store
	gateway Gateway
	cache   VerificationCache
	logg    *logger.Logger
	metrics *metrics.PaymentMetrics
	timeout time.Duration
	clock   clockz.Clock
}

// VerifierParams wires a Verifier. A nil Cache disables caching; a nil Clock uses
// clockz.RealClock.
type VerifierParams struct {
	Store   Store
	Gateway Gateway
	Cache   VerificationCache
	Logger  *logger.Logger
	Metrics *metrics.PaymentMetrics
	Timeout time.Duration
	Clock   clockz.Clock
}

func NewVerifier(params VerifierParams) (*Verifier, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("contribution store required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}
	clock := params.Clock
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Verifier{
		store:   params.Store,
		gateway: params.Gateway,
		cache:   params.Cache,
		logg:    logg,
		metrics: params.Metrics,
		timeout: timeout,
		clock:   clock,
	}, nil
}

// Verify serves client polling: cache first, then the row, then the gateway.
func (v *Verifier) Verify(ctx context.Context, ref string) (*VerifyResult, error) {
	start := v.clock.Now()
	if err := reference.Validate(ref); err != nil {
		return nil, err
	}
	ctx = v.logg.WithReference(ctx, ref)

	if cached, ok := v.cacheGet(ctx, ref); ok {
		cached.Cached = true
		cached.ProcessingTimeMS = v.elapsed(start)
		v.metrics.IncVerification(metrics.OutcomeCached)
		return cached, nil
	}
	return v.resolve(ctx, ref, start)
}

// Reconcile re-checks a reference without consulting the cache. Used by the sweep job.
func (v *Verifier) Reconcile(ctx context.Context, ref string) (*VerifyResult, error) {
	start := v.clock.Now()
	if err := reference.Validate(ref); err != nil {
		return nil, err
	}
	return v.resolve(v.logg.WithReference(ctx, ref), ref, start)
}

func (v *Verifier) resolve(ctx context.Context, ref string, start time.Time) (*VerifyResult, error) {
	row, err := v.store.FindByReference(ctx, ref)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			v.metrics.IncVerification(metrics.OutcomeNotFound)
		}
		return nil, err
	}

	if row.Status.IsTerminal() {
		result := resultFor(row)
		result.AlreadyProcessed = true
		v.cacheSet(ctx, ref, result)
		result.ProcessingTimeMS = v.elapsed(start)
		v.metrics.IncVerification(metrics.OutcomeAlreadyProcessed)
		return &result, nil
	}

	txn, err := v.callGateway(ctx, ref)
	if err != nil {
		v.logg.Error(ctx, "gateway verify failed", err)
		v.metrics.IncVerification(metrics.OutcomeGatewayError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "failed to verify payment")
	}

	paid := FromMinorUnits(txn.Amount)
	if paid.Sub(row.AmountGHS).Abs().GreaterThan(AmountTolerance) {
		return nil, v.rejectMismatch(ctx, row, paid)
	}

	status := MapGatewayStatus(txn.Status)
	if status == enums.ContributionStatusPending {
		v.metrics.IncVerification(metrics.OutcomePending)
		result := resultFor(row)
		result.GatewayStatus = txn.Status
		result.ProcessingTimeMS = v.elapsed(start)
		return &result, nil
	}

	changed, err := v.store.MarkTerminal(ctx, ref, status)
	if err != nil {
		return nil, err
	}

	var result VerifyResult
	if changed {
		row.Status = status
		result = resultFor(row)
		v.metrics.IncVerification(string(status))
		v.logg.Info(v.logg.WithFields(ctx, map[string]any{
			"status":         status,
			"gateway_status": txn.Status,
		}), "contribution resolved")
	} else {
		// another caller won the transition; report what it wrote
		current, err := v.store.FindByReference(ctx, ref)
		if err != nil {
			return nil, err
		}
		result = resultFor(current)
		v.metrics.IncVerification(metrics.OutcomeLostRace)
		v.logg.Info(v.logg.WithField(ctx, "status", current.Status), "conditional update lost race")
	}
	result.GatewayStatus = txn.Status

	if result.Status.IsTerminal() {
		v.cacheSet(ctx, ref, result)
	}
	result.ProcessingTimeMS = v.elapsed(start)
	return &result, nil
}

func (v *Verifier) callGateway(ctx context.Context, ref string) (*paystack.Transaction, error) {
	callCtx, cancel := v.clock.WithTimeout(ctx, v.timeout)
	defer cancel()

	start := v.clock.Now()
	txn, err := v.gateway.VerifyTransaction(callCtx, ref)
	v.metrics.ObserveGateway("verify", err == nil, v.clock.Since(start))
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "empty verify response")
	}
	return txn, nil
}

func (v *Verifier) rejectMismatch(ctx context.Context, row *models.Contribution, paid decimal.Decimal) error {
	if _, err := v.store.MarkTerminal(ctx, row.PaymentReference, enums.ContributionStatusFailed); err != nil {
		return err
	}
	v.metrics.IncVerification(metrics.OutcomeAmountMismatch)
	v.logg.Warn(v.logg.WithFields(ctx, map[string]any{
		"expected_ghs": row.AmountGHS.String(),
		"received_ghs": paid.String(),
	}), "payment amount mismatch")

	return pkgerrors.New(pkgerrors.CodeAmountMismatch, "amount mismatch").WithDetails(map[string]any{
		"expected": row.AmountGHS.InexactFloat64(),
		"received": paid.InexactFloat64(),
	})
}

func (v *Verifier) cacheGet(ctx context.Context, ref string) (*VerifyResult, bool) {
	if v.cache == nil {
		return nil, false
	}
	result, ok, err := v.cache.Get(ctx, ref)
	if err != nil {
		v.metrics.IncCache("error")
		v.logg.Warn(v.logg.WithField(ctx, "error", err.Error()), "verification cache read failed")
		return nil, false
	}
	if !ok || result == nil || !result.Status.IsTerminal() {
		v.metrics.IncCache("miss")
		return nil, false
	}
	v.metrics.IncCache("hit")
	return result, true
}

func (v *Verifier) cacheSet(ctx context.Context, ref string, result VerifyResult) {
	if v.cache == nil || !result.Status.IsTerminal() {
		return
	}
	result.Cached = false
	result.ProcessingTimeMS = 0
	if err := v.cache.Set(ctx, ref, result); err != nil {
		v.logg.Warn(v.logg.WithField(ctx, "error", err.Error()), "verification cache write failed")
	}
}

func (v *Verifier) elapsed(start time.Time) int64 {
	return v.clock.Since(start).Milliseconds()
}

// MapGatewayStatus folds gateway transaction statuses onto contribution statuses.
func MapGatewayStatus(gatewayStatus string) enums.ContributionStatus {
	normalized := strings.ToLower(strings.TrimSpace(gatewayStatus))
	if normalized == paystack.StatusSuccess {
		return enums.ContributionStatusCompleted
	}
	if _, ok := inFlightStatuses[normalized]; ok {
		return enums.ContributionStatusPending
	}
	return enums.ContributionStatusFailed
}

func resultFor(row *models.Contribution) VerifyResult {
	return VerifyResult{
		Verified:  row.Status == enums.ContributionStatusCompleted,
		Status:    row.Status,
		Reference: row.PaymentReference,
		AmountGHS: row.AmountGHS.StringFixed(2),
	}
}

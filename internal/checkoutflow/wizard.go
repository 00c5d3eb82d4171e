// Package checkoutflow drives a donor through choosing units, paying on the hosted
// checkout, and waiting for verification.
package checkoutflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zoobzio/clockz"

	"github.com/angelmondragon/contributions-backend/internal/contributions"
	"github.com/angelmondragon/contributions-backend/internal/payments"
	"github.com/angelmondragon/contributions-backend/pkg/enums"
	"github.com/angelmondragon/contributions-backend/pkg/fxrate"
	"github.com/angelmondragon/contributions-backend/pkg/logger"
	"github.com/angelmondragon/contributions-backend/pkg/reference"
)

// Step is a wizard screen.
type Step int

const (
	StepAmount Step = iota + 1
	StepPaymentMethod
	StepDetails
	StepReview
	StepProcessing
	StepSuccess
	StepFailed
)

var stepNames = map[Step]string{
	StepAmount:        "amount",
	StepPaymentMethod: "payment_method",
	StepDetails:       "details",
	StepReview:        "review",
	StepProcessing:    "processing",
	StepSuccess:       "success",
	StepFailed:        "failed",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

var (
	ErrInvalidTransition = errors.New("invalid wizard transition")
	ErrWizardClosed      = errors.New("wizard closed")
)

// Project is what the wizard needs to know about the funded project.
type Project struct {
	ID        uuid.UUID
	Title     string
	UnitName  string
	UnitPrice decimal.Decimal
}

// WizardParams wires a Wizard.
type WizardParams struct {
	Project      Project
	Backend      Backend
	Presenter    Presenter
	Store        PendingStore
	FX           *fxrate.Estimator
	Logger       *logger.Logger
	CallbackURL  string
	NewReference func() string
	PollInterval time.Duration
	MaxPollTicks int
	Clock        clockz.Clock
}

// Wizard is the Amount → PaymentMethod → Details → Review → Processing flow.
type Wizard struct {
	project   Project
	backend   Backend
	presenter Presenter
	store     PendingStore
	fx        *fxrate.Estimator
	logg      *logger.Logger
	callback  string
	newRef    func() string
	interval  time.Duration
	maxTicks  int
	clock     clockz.Clock

	mu        sync.Mutex
	step      Step
	units     int
	method    enums.PaymentMethod
	donor     Donor
	ref       string
	poller    *Poller
	settled   chan struct{}
	lastError error
	closed    bool
}

func NewWizard(params WizardParams) (*Wizard, error) {
	if params.Backend == nil {
		return nil, errors.New("backend required")
	}
	if params.Presenter == nil {
		return nil, errors.New("presenter required")
	}
	if params.Project.ID == uuid.Nil {
		return nil, errors.New("project id required")
	}
	if !params.Project.UnitPrice.IsPositive() {
		return nil, errors.New("project unit price must be positive")
	}
	store := params.Store
	if store == nil {
		store = NewMemoryStore()
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	newRef := params.NewReference
	if newRef == nil {
		newRef = reference.New
	}
	return &Wizard{
		project:   params.Project,
		backend:   params.Backend,
		presenter: params.Presenter,
		store:     store,
		fx:        params.FX,
		logg:      logg,
		callback:  params.CallbackURL,
		newRef:    newRef,
		interval:  params.PollInterval,
		maxTicks:  params.MaxPollTicks,
		clock:     params.Clock,
		step:      StepAmount,
	}, nil
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Reference is the reference minted by the latest Submit.
func (w *Wizard) Reference() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ref
}

// LastError is the cause behind the latest Failed step, for logs only.
func (w *Wizard) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastError
}

func (w *Wizard) Donor() Donor {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.donor
}

func (w *Wizard) SetUnits(units int) error {
	if units <= 0 {
		return fmt.Errorf("units must be greater than zero")
	}
	return w.edit(StepAmount, func() { w.units = units })
}

func (w *Wizard) SelectMethod(method enums.PaymentMethod) error {
	if !method.IsValid() {
		return fmt.Errorf("invalid payment method %q", method)
	}
	return w.edit(StepPaymentMethod, func() { w.method = method })
}

// SetDonor stores details; names are validated when leaving the Details step.
func (w *Wizard) SetDonor(d Donor) error {
	return w.edit(StepDetails, func() { w.donor = d })
}

func (w *Wizard) edit(step Step, apply func()) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWizardClosed
	}
	if w.step != step {
		return fmt.Errorf("%w: cannot edit %s while on %s", ErrInvalidTransition, step, w.step)
	}
	apply()
	return nil
}

// Next advances one step after validating the current one.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWizardClosed
	}
	switch w.step {
	case StepAmount:
		if w.units <= 0 {
			return errors.New("choose how many units to contribute")
		}
		w.step = StepPaymentMethod
	case StepPaymentMethod:
		if !w.method.IsValid() {
			return errors.New("choose a payment method")
		}
		w.step = StepDetails
	case StepDetails:
		first, last, err := contributions.ValidateDonorNames(w.donor.FirstName, w.donor.LastName)
		if err != nil {
			return err
		}
		w.donor.FirstName, w.donor.LastName = first, last
		w.step = StepReview
	default:
		return fmt.Errorf("%w: next from %s", ErrInvalidTransition, w.step)
	}
	return nil
}

func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWizardClosed
	}
	switch w.step {
	case StepPaymentMethod:
		w.step = StepAmount
	case StepDetails:
		w.step = StepPaymentMethod
	case StepReview:
		w.step = StepDetails
	default:
		return fmt.Errorf("%w: back from %s", ErrInvalidTransition, w.step)
	}
	return nil
}

// Total is the authoritative GHS amount the donor will be charged.
func (w *Wizard) Total() decimal.Decimal {
	w.mu.Lock()
	units := w.units
	w.mu.Unlock()
	return contributions.Total(units, w.project.UnitPrice)
}

// USDEstimate is an approximate display value. It is never sent anywhere.
func (w *Wizard) USDEstimate(ctx context.Context) (decimal.Decimal, string) {
	if w.fx == nil {
		return decimal.Zero, ""
	}
	est := w.fx.Estimate(ctx)
	return est.USD(w.Total()), est.Source
}

// Submit records the contribution, opens checkout and starts verification polling.
// With a redirect presenter the wizard stays on Processing and the reference is
// left in the pending store for Resume.
func (w *Wizard) Submit(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWizardClosed
	}
	if w.step != StepReview {
		step := w.step
		w.mu.Unlock()
		return fmt.Errorf("%w: submit from %s", ErrInvalidTransition, step)
	}
	w.step = StepProcessing
	w.lastError = nil
	w.ref = w.newRef()
	ref, units, method, donor := w.ref, w.units, w.method, w.donor
	w.mu.Unlock()

	ctx = w.logg.WithReference(ctx, ref)
	total := contributions.Total(units, w.project.UnitPrice)

	if _, err := w.backend.CreateContribution(ctx, CreateContributionRequest{
		ProjectID:        w.project.ID.String(),
		DonorFirstName:   donor.FirstName,
		DonorLastName:    donor.LastName,
		DonorContact:     donor.Contact(),
		Units:            units,
		PaymentReference: ref,
		PaymentMethod:    string(method),
	}); err != nil {
		return w.fail(ctx, fmt.Errorf("record contribution: %w", err))
	}

	checkout, err := w.backend.InitializePayment(ctx, InitializeRequest{
		Email:     DonorEmail(donor),
		Amount:    payments.MinorUnits(total),
		Currency:  string(enums.CurrencyGHS),
		Reference: ref,
		Channels:  payments.ChannelsFor(method),
		Metadata: map[string]any{
			"project_id":    w.project.ID.String(),
			"project_title": w.project.Title,
			"units":         units,
			"donor_name":    donor.FirstName + " " + donor.LastName,
		},
		CallbackURL: w.callback,
	})
	if err != nil {
		return w.fail(ctx, fmt.Errorf("initialize payment: %w", err))
	}

	handle, err := w.presenter.Present(ctx, checkout.AuthorizationURL)
	if err != nil {
		return w.fail(ctx, fmt.Errorf("present checkout: %w", err))
	}
	if !handle.Polls() {
		if err := w.store.Save(ref); err != nil {
			w.logg.Warn(w.logg.WithField(ctx, "error", err.Error()), "failed to persist pending reference")
		}
		return nil
	}

	poller, err := NewPoller(PollerParams{
		Client:   w.backend,
		Store:    w.store,
		Logger:   w.logg,
		Interval: w.interval,
		MaxTicks: w.maxTicks,
		Clock:    w.clock,
	})
	if err != nil {
		return w.fail(ctx, err)
	}
	settled := make(chan struct{})
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		_ = handle.Close()
		return ErrWizardClosed
	}
	w.poller = poller
	w.settled = settled
	w.mu.Unlock()

	if err := poller.Start(context.WithoutCancel(ctx), ref, handle); err != nil {
		close(settled)
		if errors.Is(err, ErrPollerCancelled) {
			_ = handle.Close()
			return ErrWizardClosed
		}
		return w.fail(ctx, err)
	}
	go w.await(ctx, poller, settled)
	return nil
}

func (w *Wizard) await(ctx context.Context, poller *Poller, settled chan struct{}) {
	defer close(settled)
	state, err := poller.Wait(context.Background())
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.poller != poller {
		return
	}
	if state == PollResolvedSuccess {
		w.step = StepSuccess
		return
	}
	w.step = StepFailed
	w.lastError = fmt.Errorf("payment not confirmed: %s", state)
	w.logg.Info(w.logg.WithField(ctx, "poll_state", string(state)), "payment not confirmed")
}

func (w *Wizard) fail(ctx context.Context, err error) error {
	w.logg.Error(ctx, "contribution submit failed", err)
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.step = StepFailed
	}
	w.lastError = err
	return err
}

// Wait blocks until the running poller settles the wizard or ctx ends.
func (w *Wizard) Wait(ctx context.Context) (Step, error) {
	w.mu.Lock()
	settled := w.settled
	w.mu.Unlock()
	if settled != nil {
		select {
		case <-settled:
		case <-ctx.Done():
			return w.Step(), ctx.Err()
		}
	}
	return w.Step(), nil
}

// TryAgain returns from Failed to Review keeping everything entered so far.
func (w *Wizard) TryAgain() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWizardClosed
	}
	if w.step != StepFailed {
		return fmt.Errorf("%w: try again from %s", ErrInvalidTransition, w.step)
	}
	w.step = StepReview
	w.poller = nil
	w.settled = nil
	return nil
}

// Cancel closes the flow and stops any polling.
func (w *Wizard) Cancel() {
	w.mu.Lock()
	poller := w.poller
	w.closed = true
	w.mu.Unlock()
	if poller != nil {
		poller.Cancel()
	}
}

func (w *Wizard) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

package checkoutflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/angelmondragon/contributions-backend/pkg/logger"
	"github.com/angelmondragon/contributions-backend/pkg/task"
)

// Polling cadence: 120 ticks at 3s gives a six minute budget.
const (
	DefaultPollInterval = 3 * time.Second
	DefaultMaxPollTicks = 120
)

// PollState is the poller's position in its lifecycle.
type PollState string

const (
	PollIdle            PollState = "idle"
	PollPolling         PollState = "polling"
	PollResolvedSuccess PollState = "resolved-success"
	PollResolvedFailure PollState = "resolved-failure"
	PollTimedOut        PollState = "timed-out"
)

// IsTerminal reports whether the poller has finished.
func (s PollState) IsTerminal() bool {
	return s == PollResolvedSuccess || s == PollResolvedFailure || s == PollTimedOut
}

var (
	ErrPollerStarted   = errors.New("poller already started")
	ErrPollerCancelled = errors.New("poller cancelled")
)

// PollerParams wires a Poller. A nil Clock uses clockz.RealClock.
type PollerParams struct {
	Client   VerifyClient
	Store    PendingStore
	Logger   *logger.Logger
	Interval time.Duration
	MaxTicks int
	Clock    clockz.Clock
}

// Poller watches one reference until it resolves, the checkout surface closes, or the
// tick budget runs out. It is single use.
type Poller struct {
	client   VerifyClient
	store    PendingStore
	logg     *logger.Logger
	interval time.Duration
	maxTicks int
	clock    clockz.Clock

	mu        sync.Mutex
	state     PollState
	ref       string
	handle    PresentationHandle
	job       *task.Repeating
	cancelled bool
	resolved  chan struct{}
}

func NewPoller(params PollerParams) (*Poller, error) {
	if params.Client == nil {
		return nil, errors.New("verify client required")
	}
	store := params.Store
	if store == nil {
		store = NewMemoryStore()
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxTicks := params.MaxTicks
	if maxTicks <= 0 {
		maxTicks = DefaultMaxPollTicks
	}
	return &Poller{
		client:   params.Client,
		store:    store,
		logg:     logg,
		interval: interval,
		maxTicks: maxTicks,
		clock:    params.Clock,
		state:    PollIdle,
		resolved: make(chan struct{}),
	}, nil
}

// Start persists ref and begins polling. handle may be nil when nothing is shown.
// A poller cancelled before Start never polls and returns ErrPollerCancelled.
func (p *Poller) Start(ctx context.Context, ref string, handle PresentationHandle) error {
	p.mu.Lock()
	if p.cancelled {
		p.mu.Unlock()
		return ErrPollerCancelled
	}
	if p.state != PollIdle {
		p.mu.Unlock()
		return ErrPollerStarted
	}
	p.state = PollPolling
	p.ref = ref
	p.handle = handle
	opts := []task.Option{
		task.WithMaxTicks(p.maxTicks),
		task.WithOnExhausted(p.onExhausted),
	}
	if p.clock != nil {
		opts = append(opts, task.WithClock(p.clock))
	}
	p.job = task.NewRepeating(p.interval, p.tick, opts...)
	job := p.job
	p.mu.Unlock()

	if err := p.store.Save(ref); err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "failed to persist pending reference")
	}
	if err := job.Start(ctx); err != nil {
		if p.isCancelled() {
			// Cancel landed between building the job and starting it
			return ErrPollerCancelled
		}
		return fmt.Errorf("start poller: %w", err)
	}
	p.logg.Debug(p.logg.WithReference(ctx, ref), "verification polling started")
	return nil
}

func (p *Poller) tick(ctx context.Context, n int) bool {
	if p.handle != nil && p.handle.Closed() {
		// donor closed checkout: one last look, then stop
		status := p.verifyOnce(ctx)
		p.clearStore(ctx)
		if status == StatusCompleted {
			p.resolve(PollResolvedSuccess)
		} else {
			p.resolve(PollResolvedFailure)
		}
		return true
	}

	switch p.verifyOnce(ctx) {
	case StatusCompleted:
		p.closeHandle(ctx)
		p.clearStore(ctx)
		p.resolve(PollResolvedSuccess)
		return true
	case StatusFailed:
		p.closeHandle(ctx)
		p.clearStore(ctx)
		p.resolve(PollResolvedFailure)
		return true
	default:
		return false
	}
}

func (p *Poller) onExhausted(ctx context.Context) {
	p.logg.Info(p.logg.WithReference(ctx, p.ref), "verification polling timed out")
	p.closeHandle(ctx)
	p.clearStore(ctx)
	p.resolve(PollTimedOut)
}

// verifyOnce maps call failures to pending so transient errors never end the flow.
func (p *Poller) verifyOnce(ctx context.Context) string {
	resp, err := p.client.Verify(ctx, p.ref)
	if err != nil {
		p.logg.Debug(p.logg.WithField(ctx, "error", err.Error()), "verify call failed; will retry")
		return StatusPending
	}
	if resp == nil {
		return StatusPending
	}
	return resp.Status
}

func (p *Poller) closeHandle(ctx context.Context) {
	if p.handle == nil {
		return
	}
	if err := p.handle.Close(); err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "failed to close checkout window")
	}
}

func (p *Poller) clearStore(ctx context.Context) {
	if err := p.store.Clear(); err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "failed to clear pending reference")
	}
}

func (p *Poller) resolve(state PollState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.IsTerminal() {
		return
	}
	p.state = state
	close(p.resolved)
}

// Cancel stops the timer without resolving. The persisted reference is kept so a
// later Resume can settle it. Cancelling before Start makes Start fail.
func (p *Poller) Cancel() {
	p.mu.Lock()
	p.cancelled = true
	job := p.job
	p.mu.Unlock()
	if job != nil {
		job.Cancel()
	}
}

func (p *Poller) isCancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}

// Outcome returns the current state.
func (p *Poller) Outcome() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Ticks returns how many ticks have run.
func (p *Poller) Ticks() int {
	p.mu.Lock()
	job := p.job
	p.mu.Unlock()
	if job == nil {
		return 0
	}
	return job.Ticks()
}

// Wait blocks until the poller resolves, is cancelled, or ctx ends.
func (p *Poller) Wait(ctx context.Context) (PollState, error) {
	p.mu.Lock()
	job := p.job
	cancelled := p.cancelled
	p.mu.Unlock()
	if job == nil {
		if cancelled {
			return PollIdle, ErrPollerCancelled
		}
		return PollIdle, errors.New("poller not started")
	}

	select {
	case <-p.resolved:
		<-job.Done()
		return p.Outcome(), nil
	case <-job.Done():
		select {
		case <-p.resolved:
			return p.Outcome(), nil
		default:
			return p.Outcome(), ErrPollerCancelled
		}
	case <-ctx.Done():
		return p.Outcome(), ctx.Err()
	}
}

// Resume settles a reference left behind by an earlier session. It returns "" and
// PollIdle when nothing was pending. The stored reference is always cleared.
func Resume(ctx context.Context, client VerifyClient, store PendingStore) (string, PollState, error) {
	ref, err := store.Load()
	if err != nil {
		return "", PollIdle, err
	}
	if ref == "" {
		return "", PollIdle, nil
	}
	resp, verr := client.Verify(ctx, ref)
	if err := store.Clear(); err != nil {
		return ref, PollIdle, err
	}
	if verr != nil {
		return ref, PollResolvedFailure, verr
	}
	if resp != nil && resp.Status == StatusCompleted {
		return ref, PollResolvedSuccess, nil
	}
	return ref, PollResolvedFailure, nil
}

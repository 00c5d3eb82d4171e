package checkoutflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// fakeBackend answers Verify from a script; the last status repeats.
type fakeBackend struct {
	mu          sync.Mutex
	statuses    []string
	verifyErr   error
	verifyCalls int

	created   []CreateContributionRequest
	createErr error
	inits     []InitializeRequest
	initErr   error
}

func (f *fakeBackend) Verify(_ context.Context, reference string) (*VerifyResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	status := StatusPending
	if len(f.statuses) > 0 {
		status = f.statuses[0]
		if len(f.statuses) > 1 {
			f.statuses = f.statuses[1:]
		}
	}
	return &VerifyResponse{
		Verified:  status == StatusCompleted,
		Status:    status,
		Reference: reference,
	}, nil
}

func (f *fakeBackend) CreateContribution(_ context.Context, req CreateContributionRequest) (*Contribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &Contribution{PaymentReference: req.PaymentReference, Status: StatusPending}, nil
}

func (f *fakeBackend) InitializePayment(_ context.Context, req InitializeRequest) (*InitializeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initErr != nil {
		return nil, f.initErr
	}
	f.inits = append(f.inits, req)
	return &InitializeResponse{
		AuthorizationURL: "https://checkout.example.test/" + req.Reference,
		AccessCode:       "access",
		Reference:        req.Reference,
	}, nil
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyCalls
}

type fakeWindow struct {
	mu         sync.Mutex
	closed     bool
	closeCalls int
}

func (w *fakeWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *fakeWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeCalls++
	w.closed = true
	return nil
}

// dismiss simulates the donor closing the popup.
func (w *fakeWindow) dismiss() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

func (w *fakeWindow) closes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeCalls
}

type fakeOpener struct {
	mu      sync.Mutex
	window  *fakeWindow
	blocked bool
	err     error
	specs   []WindowSpec
}

func (o *fakeOpener) Open(_ context.Context, spec WindowSpec) (Window, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.specs = append(o.specs, spec)
	if o.err != nil {
		return nil, o.err
	}
	if o.blocked {
		return nil, nil
	}
	o.window = &fakeWindow{}
	return o.window, nil
}

func (o *fakeOpener) current() *fakeWindow {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.window
}

type fakeNavigator struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (n *fakeNavigator) Navigate(_ context.Context, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.urls = append(n.urls, url)
	return nil
}

type failingStore struct{}

func (failingStore) Save(string) error     { return errors.New("disk full") }
func (failingStore) Load() (string, error) { return "", errors.New("disk full") }
func (failingStore) Clear() error          { return errors.New("disk full") }

func sequentialRefs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("BK_1700000000000_%012x", n)
	}
}

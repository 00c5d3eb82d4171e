package payments

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/angelmondragon/contributions-backend/pkg/enums"
	"github.com/angelmondragon/contributions-backend/pkg/paystack"
)

type fakeGateway struct {
	mu          sync.Mutex
	txn         *paystack.Transaction
	verifyErr   error
	verifyCalls int32

	auth      *paystack.Authorization
	initErr   error
	initCalls int32
	lastInit  paystack.InitializeRequest

	// when set, each verify call signals arrived and blocks until release closes
	arrived chan struct{}
	release chan struct{}
}

func (f *fakeGateway) InitializeTransaction(_ context.Context, req paystack.InitializeRequest) (*paystack.Authorization, error) {
	atomic.AddInt32(&f.initCalls, 1)
	f.mu.Lock()
	f.lastInit = req
	f.mu.Unlock()
	if f.initErr != nil {
		return nil, f.initErr
	}
	return f.auth, nil
}

func (f *fakeGateway) VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error) {
	atomic.AddInt32(&f.verifyCalls, 1)
	if f.arrived != nil {
		f.arrived <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	txn := *f.txn
	txn.Reference = reference
	return &txn, nil
}

func (f *fakeGateway) calls() int {
	return int(atomic.LoadInt32(&f.verifyCalls))
}

// countingStore records how many conditional updates changed a row.
type countingStore struct {
	Store
	mu        sync.Mutex
	writes    int
	zeroWrite int
}

func (c *countingStore) MarkTerminal(ctx context.Context, reference string, status enums.ContributionStatus) (bool, error) {
	changed, err := c.Store.MarkTerminal(ctx, reference, status)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		if changed {
			c.writes++
		} else {
			c.zeroWrite++
		}
	}
	return changed, err
}

func (c *countingStore) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes, c.zeroWrite
}

var _ Store = (*countingStore)(nil)

func paystackSuccess(amount int64) paystack.Transaction {
	return paystack.Transaction{Status: paystack.StatusSuccess, Amount: amount}
}

package payments

import (
	"context"

	"github.com/angelmondragon/contributions-backend/pkg/paystack"
)

// Gateway is the hosted checkout provider. *paystack.Client satisfies it.
type Gateway interface {
	InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.Authorization, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error)
}

var _ Gateway = (*paystack.Client)(nil)

package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/contributions-backend/api/responses"
	"github.com/angelmondragon/contributions-backend/api/validators"
	"github.com/angelmondragon/contributions-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/contributions-backend/pkg/errors"
	"github.com/angelmondragon/contributions-backend/pkg/logger"
)

type PaymentInitializer interface {
	Initialize(ctx context.Context, in payments.InitializeInput) (*payments.InitializeResult, error)
}

type PaymentVerifier interface {
	Verify(ctx context.Context, ref string) (*payments.VerifyResult, error)
}

type verifyRequest struct {
	Reference string `json:"reference"`
}

// InitializePayment opens a gateway checkout for a recorded contribution. The body
// is answered flat, without the data envelope.
func InitializePayment(svc PaymentInitializer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment initializer unavailable"))
			return
		}

		var req payments.InitializeInput
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req.Reference = strings.TrimSpace(req.Reference)

		ctx := logg.WithReference(r.Context(), req.Reference)
		result, err := svc.Initialize(ctx, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, result)
	}
}

// VerifyPayment settles a reference against the gateway and answers the result flat.
func VerifyPayment(svc PaymentVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment verifier unavailable"))
			return
		}

		var req verifyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ref := strings.TrimSpace(req.Reference)

		ctx := logg.WithReference(r.Context(), ref)
		result, err := svc.Verify(ctx, ref)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, result)
	}
}

package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/contributions-backend/api/responses"
	"github.com/angelmondragon/contributions-backend/api/validators"
	"github.com/angelmondragon/contributions-backend/internal/contributions"
	"github.com/angelmondragon/contributions-backend/pkg/db/models"
	"github.com/angelmondragon/contributions-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/contributions-backend/pkg/errors"
	"github.com/angelmondragon/contributions-backend/pkg/logger"
)

type contributionCreateRequest struct {
	ProjectID        string `json:"project_id" validate:"required,uuid"`
	DonorFirstName   string `json:"donor_first_name" validate:"required"`
	DonorLastName    string `json:"donor_last_name" validate:"required"`
	DonorContact     string `json:"donor_contact" validate:"max=255"`
	Units            int    `json:"units_contributed" validate:"gt=0"`
	PaymentReference string `json:"payment_reference" validate:"required"`
	PaymentMethod    string `json:"payment_method" validate:"required"`
}

func (r contributionCreateRequest) toInput() (contributions.CreatePendingInput, error) {
	projectID, err := uuid.Parse(strings.TrimSpace(r.ProjectID))
	if err != nil {
		return contributions.CreatePendingInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid project_id")
	}
	method, err := enums.ParsePaymentMethod(r.PaymentMethod)
	if err != nil {
		return contributions.CreatePendingInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment_method")
	}
	return contributions.CreatePendingInput{
		ProjectID:        projectID,
		DonorFirstName:   r.DonorFirstName,
		DonorLastName:    r.DonorLastName,
		DonorContact:     strings.TrimSpace(r.DonorContact),
		Units:            r.Units,
		PaymentReference: strings.TrimSpace(r.PaymentReference),
		PaymentMethod:    method,
	}, nil
}

type contributionResponse struct {
	ID               string     `json:"id"`
	ProjectID        string     `json:"project_id"`
	AmountGHS        string     `json:"amount_ghs"`
	UnitsContributed int        `json:"units_contributed"`
	PaymentReference string     `json:"payment_reference"`
	PaymentMethod    string     `json:"payment_method"`
	Status           string     `json:"status"`
	VerifiedAt       *time.Time `json:"verified_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func newContributionResponse(c *models.Contribution) contributionResponse {
	return contributionResponse{
		ID:               c.ID.String(),
		ProjectID:        c.ProjectID.String(),
		AmountGHS:        c.AmountGHS.StringFixed(2),
		UnitsContributed: c.UnitsContributed,
		PaymentReference: c.PaymentReference,
		PaymentMethod:    string(c.PaymentMethod),
		Status:           string(c.Status),
		VerifiedAt:       c.VerifiedAt,
		CreatedAt:        c.CreatedAt,
	}
}

// ContributionCreate records a pending contribution. The amount comes from the
// project's unit price, never from the request.
func ContributionCreate(svc contributions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contribution service unavailable"))
			return
		}

		var req contributionCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithReference(r.Context(), input.PaymentReference)
		created, err := svc.CreatePending(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		logg.Info(logg.WithField(ctx, "amount_ghs", created.AmountGHS.StringFixed(2)), "contribution recorded")
		responses.WriteSuccessStatus(w, http.StatusCreated, newContributionResponse(created))
	}
}

// ContributionFetch returns a contribution by payment reference.
func ContributionFetch(svc contributions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contribution service unavailable"))
			return
		}
		ref := strings.TrimSpace(chi.URLParam(r, "reference"))
		found, err := svc.GetByReference(r.Context(), ref)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newContributionResponse(found))
	}
}

package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/contributions-backend/internal/contributions"
	"github.com/angelmondragon/contributions-backend/pkg/db/models"
	"github.com/angelmondragon/contributions-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/contributions-backend/pkg/errors"
	"github.com/angelmondragon/contributions-backend/pkg/logger"
)

const testReference = "BK_1700000000000_0123456789ab"

type stubContributionService struct {
	input   contributions.CreatePendingInput
	created *models.Contribution
	found   *models.Contribution
	err     error
}

func (s *stubContributionService) CreatePending(ctx context.Context, input contributions.CreatePendingInput) (*models.Contribution, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return s.created, nil
}

func (s *stubContributionService) GetByReference(ctx context.Context, ref string) (*models.Contribution, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.found, nil
}

func sampleContribution(projectID uuid.UUID) *models.Contribution {
	return &models.Contribution{
		ID:               uuid.New(),
		ProjectID:        projectID,
		DonorFirstName:   "Ama",
		DonorLastName:    "Mensah",
		AmountGHS:        decimal.RequireFromString("100"),
		UnitsContributed: 50,
		PaymentReference: testReference,
		PaymentMethod:    enums.PaymentMethodMobileMoney,
		Status:           enums.ContributionStatusPending,
		CreatedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) pkgerrors.Code {
	t.Helper()
	var envelope struct {
		Error struct {
			Code pkgerrors.Code `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func TestContributionCreateReturnsCreated(t *testing.T) {
	projectID := uuid.New()
	svc := &stubContributionService{created: sampleContribution(projectID)}
	body := `{"project_id":"` + projectID.String() + `","donor_first_name":"Ama","donor_last_name":"Mensah",` +
		`"donor_contact":" 0241234567 ","units_contributed":50,"payment_reference":"` + testReference + `","payment_method":"momo"}`

	rec := httptest.NewRecorder()
	ContributionCreate(svc, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/contributions", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, projectID, svc.input.ProjectID)
	assert.Equal(t, enums.PaymentMethodMobileMoney, svc.input.PaymentMethod)
	assert.Equal(t, "0241234567", svc.input.DonorContact)
	assert.Equal(t, 50, svc.input.Units)

	data := decodeData(t, rec)
	assert.Equal(t, "100.00", data["amount_ghs"])
	assert.Equal(t, testReference, data["payment_reference"])
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "MOMO", data["payment_method"])
	assert.NotContains(t, data, "verified_at")
}

func TestContributionCreateRejectsBadInput(t *testing.T) {
	projectID := uuid.New().String()
	cases := map[string]string{
		"malformed json":  `{"project_id":`,
		"unknown field":   `{"project_id":"` + projectID + `","amount_ghs":"1"}`,
		"bad project id":  `{"project_id":"nope","donor_first_name":"Ama","donor_last_name":"Mensah","units_contributed":1,"payment_reference":"` + testReference + `","payment_method":"CARD"}`,
		"zero units":      `{"project_id":"` + projectID + `","donor_first_name":"Ama","donor_last_name":"Mensah","units_contributed":0,"payment_reference":"` + testReference + `","payment_method":"CARD"}`,
		"unknown method":  `{"project_id":"` + projectID + `","donor_first_name":"Ama","donor_last_name":"Mensah","units_contributed":1,"payment_reference":"` + testReference + `","payment_method":"CASH"}`,
		"missing payload": `{}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubContributionService{}
			rec := httptest.NewRecorder()
			ContributionCreate(svc, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/contributions", strings.NewReader(body)))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, pkgerrors.CodeValidation, decodeErrorCode(t, rec))
			assert.Empty(t, svc.input.PaymentReference)
		})
	}
}

func TestContributionCreateMapsServiceErrors(t *testing.T) {
	projectID := uuid.New()
	svc := &stubContributionService{err: pkgerrors.New(pkgerrors.CodeConflict, "payment reference already used")}
	body := `{"project_id":"` + projectID.String() + `","donor_first_name":"Ama","donor_last_name":"Mensah",` +
		`"units_contributed":2,"payment_reference":"` + testReference + `","payment_method":"BANK"}`

	rec := httptest.NewRecorder()
	ContributionCreate(svc, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/contributions", strings.NewReader(body)))

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, pkgerrors.CodeConflict, decodeErrorCode(t, rec))
}

func TestContributionCreateWithoutService(t *testing.T) {
	rec := httptest.NewRecorder()
	ContributionCreate(nil, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/contributions", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestContributionFetchByReference(t *testing.T) {
	row := sampleContribution(uuid.New())
	verified := time.Date(2026, 1, 2, 3, 10, 0, 0, time.UTC)
	row.Status = enums.ContributionStatusCompleted
	row.VerifiedAt = &verified
	svc := &stubContributionService{found: row}

	router := chi.NewRouter()
	router.Get("/api/v1/contributions/{reference}", ContributionFetch(svc, logger.Nop()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/contributions/"+testReference, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, "2026-01-02T03:10:00Z", data["verified_at"])
}

func TestContributionFetchNotFound(t *testing.T) {
	svc := &stubContributionService{err: pkgerrors.New(pkgerrors.CodeNotFound, "contribution not found")}
	router := chi.NewRouter()
	router.Get("/api/v1/contributions/{reference}", ContributionFetch(svc, logger.Nop()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/contributions/"+testReference, nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, pkgerrors.CodeNotFound, decodeErrorCode(t, rec))
}

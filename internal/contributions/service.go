package contributions

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/contributions-backend/pkg/db"
	"github.com/angelmondragon/contributions-backend/pkg/db/models"
	"github.com/angelmondragon/contributions-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/contributions-backend/pkg/errors"
	"github.com/angelmondragon/contributions-backend/pkg/reference"
)

// MinNameLength applies to donor first and last names after trimming.
const MinNameLength = 2

// MaxAmountGHS is the largest value the numeric(12,2) amount column holds.
var MaxAmountGHS = decimal.RequireFromString("9999999999.99")

// Service creates and reads contributions.
type Service interface {
	CreatePending(ctx context.Context, input CreatePendingInput) (*models.Contribution, error)
	GetByReference(ctx context.Context, ref string) (*models.Contribution, error)
}

// CreatePendingInput is the donor-supplied part of a contribution. The amount is
// always derived from the project's unit price.
type CreatePendingInput struct {
	ProjectID        uuid.UUID
	DonorFirstName   string
	DonorLastName    string
	DonorContact     string
	Units            int
	PaymentReference string
	PaymentMethod    enums.PaymentMethod
}

type service struct {
	repo     Repository
	projects ProjectRepository
}

func NewService(repo Repository, projects ProjectRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("contribution repository required")
	}
	if projects == nil {
		return nil, fmt.Errorf("project repository required")
	}
	return &service{repo: repo, projects: projects}, nil
}

func (s *service) CreatePending(ctx context.Context, input CreatePendingInput) (*models.Contribution, error) {
	first, last, err := ValidateDonorNames(input.DonorFirstName, input.DonorLastName)
	if err != nil {
		return nil, err
	}
	if err := reference.Validate(input.PaymentReference); err != nil {
		return nil, err
	}
	if input.ProjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "project_id is required")
	}
	if input.Units <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "units must be greater than zero")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.PaymentMethod))
	}

	project, err := s.projects.FindByID(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}
	amount := Total(input.Units, project.UnitPriceGHS)
	if amount.GreaterThan(MaxAmountGHS) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contribution amount too large").WithDetails(map[string]string{
			"units": fmt.Sprintf("amount_ghs must not exceed %s", MaxAmountGHS.StringFixed(2)),
		})
	}

	contribution := &models.Contribution{
		ProjectID:        project.ID,
		DonorFirstName:   first,
		DonorLastName:    last,
		AmountGHS:        amount,
		UnitsContributed: input.Units,
		PaymentReference: input.PaymentReference,
		PaymentMethod:    input.PaymentMethod,
		Status:           enums.ContributionStatusPending,
	}
	if contact := strings.TrimSpace(input.DonorContact); contact != "" {
		contribution.DonorContact = &contact
	}

	if err := s.repo.Create(ctx, contribution); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment reference already used")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create contribution")
	}
	return contribution, nil
}

func (s *service) GetByReference(ctx context.Context, ref string) (*models.Contribution, error) {
	if err := reference.Validate(ref); err != nil {
		return nil, err
	}
	return s.repo.FindByReference(ctx, ref)
}

// Total is units × unit price, rounded to pesewas.
func Total(units int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(units))).Round(2)
}

// ValidateDonorNames trims both names and requires MinNameLength characters each.
func ValidateDonorNames(first, last string) (string, string, error) {
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)
	problems := map[string]string{}
	if utf8.RuneCountInString(first) < MinNameLength {
		problems["first_name"] = fmt.Sprintf("must be at least %d characters", MinNameLength)
	}
	if utf8.RuneCountInString(last) < MinNameLength {
		problems["last_name"] = fmt.Sprintf("must be at least %d characters", MinNameLength)
	}
	if len(problems) > 0 {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "invalid donor details").WithDetails(problems)
	}
	return first, last, nil
}

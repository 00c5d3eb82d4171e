package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/contributions-backend/pkg/enums"
)

// Contribution is a donor's pledge of units toward a project, keyed externally by its
// payment reference.
type Contribution struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	ProjectID        uuid.UUID                `gorm:"column:project_id;type:uuid;not null"`
	DonorFirstName   string                   `gorm:"column:donor_first_name;not null"`
	DonorLastName    string                   `gorm:"column:donor_last_name;not null"`
	DonorContact     *string                  `gorm:"column:donor_contact"`
	AmountGHS        decimal.Decimal          `gorm:"column:amount_ghs;type:numeric(12,2);not null"`
	UnitsContributed int                      `gorm:"column:units_contributed;not null"`
	PaymentReference string                   `gorm:"column:payment_reference;uniqueIndex;not null"`
	PaymentMethod    enums.PaymentMethod      `gorm:"column:payment_method;not null"`
	Status           enums.ContributionStatus `gorm:"column:status;not null;default:'pending'"`
	VerifiedAt       *time.Time               `gorm:"column:verified_at"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name.
func (Contribution) TableName() string {
	return "contributions"
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Project is owned by the catalogue side; the payment flow only reads its unit price.
type Project struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Title        string          `gorm:"column:title;not null"`
	UnitName     string          `gorm:"column:unit_name;not null"`
	UnitPriceGHS decimal.Decimal `gorm:"column:unit_price_ghs;type:numeric(12,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Project) TableName() string {
	return "projects"
}

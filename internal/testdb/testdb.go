// Package testdb opens isolated in-memory SQLite databases carrying the
// contributions schema.
package testdb

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/contributions-backend/pkg/config"
	"github.com/angelmondragon/contributions-backend/pkg/db"
	"github.com/angelmondragon/contributions-backend/pkg/db/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  unit_name TEXT NOT NULL,
  unit_price_ghs TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS contributions (
  id TEXT PRIMARY KEY,
  project_id TEXT NOT NULL,
  donor_first_name TEXT NOT NULL,
  donor_last_name TEXT NOT NULL,
  donor_contact TEXT,
  amount_ghs TEXT NOT NULL,
  units_contributed INTEGER NOT NULL,
  payment_reference TEXT NOT NULL UNIQUE,
  payment_method TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed', 'failed')),
  verified_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`

// Open returns a client bound to a fresh database named after the test.
func Open(t testing.TB) *db.Client {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	client, err := db.New(context.Background(), config.DBConfig{
		Driver: config.DBDriverSQLite,
		DSN:    fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8]),
	}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := client.DB().Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return client
}

// SeedProject inserts a project with the given unit price.
func SeedProject(t testing.TB, client *db.Client, unitPrice string) models.Project {
	t.Helper()
	project := models.Project{
		ID:           uuid.New(),
		Title:        "School library",
		UnitName:     "book",
		UnitPriceGHS: decimal.RequireFromString(unitPrice),
	}
	if err := client.DB().Create(&project).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return project
}

// SeedContribution inserts a contribution row directly, bypassing validation.
func SeedContribution(t testing.TB, client *db.Client, c models.Contribution) models.Contribution {
	t.Helper()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = "pending"
	}
	if c.DonorFirstName == "" {
		c.DonorFirstName = "Ama"
	}
	if c.DonorLastName == "" {
		c.DonorLastName = "Mensah"
	}
	if c.PaymentMethod == "" {
		c.PaymentMethod = "MOMO"
	}
	if c.UnitsContributed == 0 {
		c.UnitsContributed = 1
	}
	if err := client.DB().Create(&c).Error; err != nil {
		t.Fatalf("seed contribution: %v", err)
	}
	return c
}

package contributions

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/contributions-backend/internal/testdb"
	"github.com/angelmondragon/contributions-backend/pkg/db/models"
	"github.com/angelmondragon/contributions-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/contributions-backend/pkg/errors"
)

func TestRepositoryMarkTerminalIsConditional(t *testing.T) {
	client := testdb.Open(t)
	project := testdb.SeedProject(t, client, "2.00")
	repo := NewRepository(client.DB())
	ctx := context.Background()

	row := &models.Contribution{
		ProjectID:        project.ID,
		DonorFirstName:   "Ama",
		DonorLastName:    "Mensah",
		AmountGHS:        decimal.RequireFromString("100.00"),
		UnitsContributed: 50,
		PaymentReference: "BK_1717171717171_deadbeef0102",
		PaymentMethod:    enums.PaymentMethodMobileMoney,
	}
	require.NoError(t, repo.Create(ctx, row))

	changed, err := repo.MarkTerminal(ctx, row.PaymentReference, enums.ContributionStatusCompleted)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkTerminal(ctx, row.PaymentReference, enums.ContributionStatusFailed)
	require.NoError(t, err)
	assert.False(t, changed, "terminal rows must not transition again")

	stored, err := repo.FindByReference(ctx, row.PaymentReference)
	require.NoError(t, err)
	assert.Equal(t, enums.ContributionStatusCompleted, stored.Status)
	assert.NotNil(t, stored.VerifiedAt)
	assert.True(t, stored.AmountGHS.Equal(decimal.NewFromInt(100)))

	_, err = repo.MarkTerminal(ctx, row.PaymentReference, enums.ContributionStatusPending)
	assert.Error(t, err)
}

func TestRepositoryFindByReferenceNotFound(t *testing.T) {
	client := testdb.Open(t)
	repo := NewRepository(client.DB())

	_, err := repo.FindByReference(context.Background(), "BK_1_aaaaaaaaaaaa")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRepositoryFindPendingBefore(t *testing.T) {
	client := testdb.Open(t)
	project := testdb.SeedProject(t, client, "2.00")
	repo := NewRepository(client.DB())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	testdb.SeedContribution(t, client, models.Contribution{
		ProjectID: project.ID, AmountGHS: decimal.NewFromInt(2), PaymentReference: "BK_1_000000000001",
		CreatedAt: now.Add(-2 * time.Hour),
	})
	testdb.SeedContribution(t, client, models.Contribution{
		ProjectID: project.ID, AmountGHS: decimal.NewFromInt(2), PaymentReference: "BK_1_000000000002",
		CreatedAt: now.Add(-90 * time.Minute),
	})
	testdb.SeedContribution(t, client, models.Contribution{
		ProjectID: project.ID, AmountGHS: decimal.NewFromInt(2), PaymentReference: "BK_1_000000000003",
		CreatedAt: now.Add(-3 * time.Hour), Status: enums.ContributionStatusCompleted,
	})
	testdb.SeedContribution(t, client, models.Contribution{
		ProjectID: project.ID, AmountGHS: decimal.NewFromInt(2), PaymentReference: "BK_1_000000000004",
		CreatedAt: now.Add(-5 * time.Minute),
	})

	rows, err := repo.FindPendingBefore(context.Background(), now.Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "BK_1_000000000001", rows[0].PaymentReference)
	assert.Equal(t, "BK_1_000000000002", rows[1].PaymentReference)

	rows, err = repo.FindPendingBefore(context.Background(), now.Add(-30*time.Minute), 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestProjectRepositoryFindByID(t *testing.T) {
	client := testdb.Open(t)
	project := testdb.SeedProject(t, client, "2.50")
	repo := NewProjectRepository(client.DB())

	found, err := repo.FindByID(context.Background(), project.ID)
	require.NoError(t, err)
	assert.True(t, found.UnitPriceGHS.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, "book", found.UnitName)
}

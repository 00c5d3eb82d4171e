package contributions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
	"gorm.io/gorm"

	"github.com/angelmondragon/contributions-backend/pkg/db/models"
	"github.com/angelmondragon/contributions-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/contributions-backend/pkg/errors"
)

// Repository persists contributions. Status moves only through MarkTerminal.
type Repository interface {
	Create(ctx context.Context, contribution *models.Contribution) error
	FindByReference(ctx context.Context, reference string) (*models.Contribution, error)
	MarkTerminal(ctx context.Context, reference string, status enums.ContributionStatus) (bool, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Contribution, error)
}

type repository struct {
	db    *gorm.DB
	clock clockz.Clock
}

// NewRepository returns a contribution repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db, clock: clockz.RealClock}
}

func (r *repository) now() time.Time {
	return r.clock.Now().UTC()
}

func (r *repository) Create(ctx context.Context, contribution *models.Contribution) error {
	if contribution.ID == uuid.Nil {
		contribution.ID = uuid.New()
	}
	now := r.now()
	if contribution.CreatedAt.IsZero() {
		contribution.CreatedAt = now
	}
	contribution.UpdatedAt = now
	if contribution.Status == "" {
		contribution.Status = enums.ContributionStatusPending
	}
	return r.db.WithContext(ctx).Create(contribution).Error
}

func (r *repository) FindByReference(ctx context.Context, reference string) (*models.Contribution, error) {
	var contribution models.Contribution
	err := r.db.WithContext(ctx).
		Where("payment_reference = ?", reference).
		First(&contribution).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contribution not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contribution")
	}
	return &contribution, nil
}

// MarkTerminal moves a pending row to status. It reports false, without error, when
// the row was no longer pending at write time.
func (r *repository) MarkTerminal(ctx context.Context, reference string, status enums.ContributionStatus) (bool, error) {
	if !status.IsTerminal() {
		return false, pkgerrors.New(pkgerrors.CodeInternal, "target status must be terminal")
	}
	now := r.now()
	result := r.db.WithContext(ctx).
		Model(&models.Contribution{}).
		Where("payment_reference = ? AND status = ?", reference, enums.ContributionStatusPending).
		Updates(map[string]any{
			"status":      status,
			"verified_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "update contribution status")
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Contribution, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Contribution
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.ContributionStatusPending, cutoff.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale pending contributions")
	}
	return rows, nil
}

// ProjectRepository reads the externally managed projects table.
type ProjectRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

type projectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project")
	}
	return &project, nil
}

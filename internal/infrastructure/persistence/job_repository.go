package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/catalogsync/backend/internal/domain"
)

// GormJobRepository implements domain.JobRepository using GORM
type GormJobRepository struct {
	db *gorm.DB
}

var _ domain.JobRepository = (*GormJobRepository)(nil)

// NewGormJobRepository creates a new GormJobRepository
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

// Create stores a new job
func (r *GormJobRepository) Create(ctx context.Context, job *domain.ImportJob) error {
	if err := r.db.WithContext(ctx).Create(ImportJobModelFromDomain(job)).Error; err != nil {
		return persistenceErr("create import job", err)
	}
	return nil
}

// FindByID finds a job by its ID
func (r *GormJobRepository) FindByID(ctx context.Context, id string) (*domain.ImportJob, error) {
	var model ImportJobModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, persistenceErr("find import job", err)
	}
	return model.ToDomain(), nil
}

// Finish stores a terminal job. The update only applies while the stored row is
// still searching, so a terminal state is never overwritten.
func (r *GormJobRepository) Finish(ctx context.Context, job *domain.ImportJob) error {
	if !job.Status.IsTerminal() {
		return domain.ErrInvalidTransition
	}

	result := r.db.WithContext(ctx).
		Model(&ImportJobModel{}).
		Where("id = ? AND status = ?", job.ID, string(domain.JobStatusSearching)).
		Updates(map[string]any{
			"status":         string(job.Status),
			"error_message":  job.ErrorMessage,
			"products_found": job.ProductsFound,
			"inserted":       job.Inserted,
			"updated":        job.Updated,
			"skipped":        job.Skipped,
			"completed_at":   job.CompletedAt,
		})
	if result.Error != nil {
		return persistenceErr("finish import job", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	if _, err := r.FindByID(ctx, job.ID); err != nil {
		return err
	}
	return domain.ErrInvalidTransition
}

package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/catalogsync/backend/internal/domain"
)

// GormBrandRepository reads brand records owned by the catalog admin service
type GormBrandRepository struct {
	db *gorm.DB
}

var _ domain.BrandRepository = (*GormBrandRepository)(nil)

// NewGormBrandRepository creates a new GormBrandRepository
func NewGormBrandRepository(db *gorm.DB) *GormBrandRepository {
	return &GormBrandRepository{db: db}
}

// FindByID finds a brand by its ID
func (r *GormBrandRepository) FindByID(ctx context.Context, id string) (*domain.Brand, error) {
	var model BrandModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBrandNotFound
		}
		return nil, persistenceErr("find brand", err)
	}
	return model.ToDomain(), nil
}

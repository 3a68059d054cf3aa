package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/catalogsync/backend/internal/domain"
)

// GormProductRepository implements domain.ProductRepository using GORM
type GormProductRepository struct {
	db  *gorm.DB
	now func() time.Time
}

var _ domain.ProductRepository = (*GormProductRepository)(nil)

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db, now: time.Now}
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id string) (*domain.StoredProduct, error) {
	var model ProductModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, persistenceErr("find product", err)
	}
	return model.ToDomain(), nil
}

// FindBySourceKey finds a product by (source_api, source_product_id)
func (r *GormProductRepository) FindBySourceKey(ctx context.Context, key domain.SourceKey) (*domain.StoredProduct, error) {
	var model ProductModel
	if err := r.db.WithContext(ctx).
		Where("source_api = ? AND source_product_id = ?", string(key.SourceAPI), key.SourceProductID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, persistenceErr("find product by source key", err)
	}
	return model.ToDomain(), nil
}

// Insert creates the product unless a row with the same source key exists.
// ID, timestamps and import status are filled when empty.
func (r *GormProductRepository) Insert(ctx context.Context, product *domain.StoredProduct) (bool, error) {
	now := r.now()
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if product.ImportStatus == "" {
		product.ImportStatus = domain.ImportStatusPending
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.LastUpdated = now

	var model ProductModel
	model.FromDomain(product)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_api"}, {Name: "source_product_id"}},
			DoNothing: true,
		}).
		Create(&model)
	if result.Error != nil {
		return false, persistenceErr("insert product", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Update writes every column except the id, source key and creation time
func (r *GormProductRepository) Update(ctx context.Context, product *domain.StoredProduct) error {
	product.LastUpdated = r.now()

	var model ProductModel
	model.FromDomain(product)

	result := r.db.WithContext(ctx).
		Model(&ProductModel{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"brand_id":               model.BrandID,
			"title":                  model.Title,
			"description":            model.Description,
			"price":                  model.Price,
			"sale_price":             model.SalePrice,
			"currency":               model.Currency,
			"image_url":              model.ImageURL,
			"affiliate_url":          model.AffiliateURL,
			"categories":             model.Categories,
			"availability":           model.Availability,
			"sku":                    model.SKU,
			"keywords_matched":       model.KeywordsMatched,
			"destination_product_id": model.DestinationProductID,
			"import_status":          model.ImportStatus,
			"raw_api_data":           model.RawAPIData,
			"last_updated":           model.LastUpdated,
		})
	if result.Error != nil {
		return persistenceErr("update product", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// UpdateRawData replaces the cached provider payload
func (r *GormProductRepository) UpdateRawData(ctx context.Context, id string, raw json.RawMessage) error {
	result := r.db.WithContext(ctx).
		Model(&ProductModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"raw_api_data": datatypes.JSON(raw),
			"last_updated": r.now(),
		})
	if result.Error != nil {
		return persistenceErr("update raw data", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// Delete removes a product by ID
func (r *GormProductRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&ProductModel{}, "id = ?", id)
	if result.Error != nil {
		return persistenceErr("delete product", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// List returns one page of products matching the filter and the total match count
func (r *GormProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.StoredProduct, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&ProductModel{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, persistenceErr("count products", err)
	}

	var productModels []ProductModel
	if err := query.
		Order("created_at DESC").
		Order("id").
		Offset(filter.Offset()).
		Limit(filter.Limit).
		Find(&productModels).Error; err != nil {
		return nil, 0, persistenceErr("list products", err)
	}

	products := make([]domain.StoredProduct, len(productModels))
	for i, model := range productModels {
		products[i] = *model.ToDomain()
	}
	return products, total, nil
}

func (r *GormProductRepository) applyFilter(query *gorm.DB, filter domain.ProductFilter) *gorm.DB {
	if filter.BrandID != "" {
		query = query.Where("brand_id = ?", filter.BrandID)
	}
	if filter.SourceAPI != "" {
		query = query.Where("source_api = ?", string(filter.SourceAPI))
	}
	if filter.Availability != nil {
		query = query.Where("availability = ?", *filter.Availability)
	}
	if filter.ImportStatus != "" {
		query = query.Where("import_status = ?", string(filter.ImportStatus))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	if filter.MinPrice != nil {
		query = query.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("price <= ?", *filter.MaxPrice)
	}
	return query
}

// Transaction runs fn against a repository bound to one database transaction.
// Errors returned by fn roll the transaction back and are returned unchanged.
func (r *GormProductRepository) Transaction(ctx context.Context, fn func(repo domain.ProductRepository) error) error {
	var fnErr error
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(&GormProductRepository{db: tx, now: r.now})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return persistenceErr("transaction", err)
}

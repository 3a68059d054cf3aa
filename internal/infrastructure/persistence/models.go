package persistence

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/catalogsync/backend/internal/domain"
)

// BrandModel is the persistence model for brands. Rows are written by another service.
type BrandModel struct {
	ID      string `gorm:"type:varchar(64);primaryKey"`
	Name    string `gorm:"type:varchar(200);not null"`
	APIType string `gorm:"type:varchar(20);not null"`
	APIID   string `gorm:"type:varchar(100);not null"`
}

// TableName returns the table name for GORM
func (BrandModel) TableName() string {
	return "brands"
}

// ToDomain converts the model to a domain Brand
func (m *BrandModel) ToDomain() *domain.Brand {
	return &domain.Brand{
		ID:      m.ID,
		Name:    m.Name,
		APIType: domain.Network(m.APIType),
		APIID:   m.APIID,
	}
}

// ProductModel is the persistence model for StoredProduct.
// (source_api, source_product_id) is unique.
type ProductModel struct {
	ID                   string         `gorm:"type:varchar(36);primaryKey"`
	BrandID              string         `gorm:"type:varchar(64);not null;index"`
	SourceAPI            string         `gorm:"type:varchar(20);not null;uniqueIndex:idx_products_source_key,priority:1"`
	SourceProductID      string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_products_source_key,priority:2"`
	Title                string         `gorm:"type:varchar(500);not null"`
	Description          string         `gorm:"type:text"`
	Price                float64        `gorm:"type:decimal(12,2);not null;default:0"`
	SalePrice            *float64       `gorm:"type:decimal(12,2)"`
	Currency             string         `gorm:"type:varchar(3);not null;default:'USD'"`
	ImageURL             string         `gorm:"type:text"`
	AffiliateURL         string         `gorm:"type:text;not null"`
	Categories           datatypes.JSON `gorm:"not null"`
	Availability         bool           `gorm:"not null;default:true;index"`
	SKU                  *string        `gorm:"type:varchar(255)"`
	KeywordsMatched      datatypes.JSON `gorm:"not null"`
	DestinationProductID *string        `gorm:"type:varchar(255)"`
	ImportStatus         string         `gorm:"type:varchar(20);not null;default:'pending';index"`
	RawAPIData           datatypes.JSON
	CreatedAt            time.Time      `gorm:"not null"`
	LastUpdated          time.Time      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the model to a domain StoredProduct
func (m *ProductModel) ToDomain() *domain.StoredProduct {
	p := &domain.StoredProduct{
		ID:      m.ID,
		BrandID: m.BrandID,
		UnifiedProduct: domain.UnifiedProduct{
			SourceAPI:       domain.Network(m.SourceAPI),
			SourceProductID: m.SourceProductID,
			Title:           m.Title,
			Description:     m.Description,
			Price:           m.Price,
			SalePrice:       m.SalePrice,
			Currency:        m.Currency,
			ImageURL:        m.ImageURL,
			AffiliateURL:    m.AffiliateURL,
			Categories:      decodeStrings(m.Categories),
			Availability:    m.Availability,
			SKU:             m.SKU,
			KeywordsMatched: decodeStrings(m.KeywordsMatched),
		},
		DestinationProductID: m.DestinationProductID,
		ImportStatus:         domain.ImportStatus(m.ImportStatus),
		CreatedAt:            m.CreatedAt,
		LastUpdated:          m.LastUpdated,
	}
	if len(m.RawAPIData) > 0 {
		p.RawAPIData = json.RawMessage(m.RawAPIData)
	}
	return p
}

// FromDomain populates the model from a domain StoredProduct
func (m *ProductModel) FromDomain(p *domain.StoredProduct) {
	m.ID = p.ID
	m.BrandID = p.BrandID
	m.SourceAPI = string(p.SourceAPI)
	m.SourceProductID = p.SourceProductID
	m.Title = p.Title
	m.Description = p.Description
	m.Price = p.Price
	m.SalePrice = p.SalePrice
	m.Currency = p.Currency
	m.ImageURL = p.ImageURL
	m.AffiliateURL = p.AffiliateURL
	m.Categories = encodeStrings(p.Categories)
	m.Availability = p.Availability
	m.SKU = p.SKU
	m.KeywordsMatched = encodeStrings(p.KeywordsMatched)
	m.DestinationProductID = p.DestinationProductID
	m.ImportStatus = string(p.ImportStatus)
	m.RawAPIData = nil
	if p.HasRawData() {
		m.RawAPIData = datatypes.JSON(p.RawAPIData)
	}
	m.CreatedAt = p.CreatedAt
	m.LastUpdated = p.LastUpdated
}

// ImportJobModel is the persistence model for ImportJob
type ImportJobModel struct {
	ID            string     `gorm:"type:varchar(36);primaryKey"`
	BrandID       string     `gorm:"type:varchar(64);not null;index"`
	Keywords      *string    `gorm:"type:text"`
	Limit         int        `gorm:"column:result_limit;not null"`
	Status        string     `gorm:"type:varchar(20);not null;index"`
	ErrorMessage  *string    `gorm:"type:text"`
	ProductsFound int        `gorm:"not null;default:0"`
	Inserted      int        `gorm:"not null;default:0"`
	Updated       int        `gorm:"not null;default:0"`
	Skipped       int        `gorm:"not null;default:0"`
	CreatedAt     time.Time  `gorm:"not null"`
	CompletedAt   *time.Time
}

// TableName returns the table name for GORM
func (ImportJobModel) TableName() string {
	return "import_jobs"
}

// ToDomain converts the model to a domain ImportJob
func (m *ImportJobModel) ToDomain() *domain.ImportJob {
	return &domain.ImportJob{
		ID:            m.ID,
		BrandID:       m.BrandID,
		Keywords:      m.Keywords,
		Limit:         m.Limit,
		Status:        domain.JobStatus(m.Status),
		ErrorMessage:  m.ErrorMessage,
		ProductsFound: m.ProductsFound,
		Inserted:      m.Inserted,
		Updated:       m.Updated,
		Skipped:       m.Skipped,
		CreatedAt:     m.CreatedAt,
		CompletedAt:   m.CompletedAt,
	}
}

// ImportJobModelFromDomain creates a model from a domain ImportJob
func ImportJobModelFromDomain(j *domain.ImportJob) *ImportJobModel {
	return &ImportJobModel{
		ID:            j.ID,
		BrandID:       j.BrandID,
		Keywords:      j.Keywords,
		Limit:         j.Limit,
		Status:        string(j.Status),
		ErrorMessage:  j.ErrorMessage,
		ProductsFound: j.ProductsFound,
		Inserted:      j.Inserted,
		Updated:       j.Updated,
		Skipped:       j.Skipped,
		CreatedAt:     j.CreatedAt,
		CompletedAt:   j.CompletedAt,
	}
}

func encodeStrings(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	b, _ := json.Marshal(values)
	return datatypes.JSON(b)
}

func decodeStrings(raw datatypes.JSON) []string {
	out := []string{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}

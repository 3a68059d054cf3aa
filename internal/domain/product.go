package domain

import (
	"encoding/json"
	"math"
	"slices"
	"strings"
	"time"
)

// Network identifies the affiliate network a listing came from
type Network string

const (
	NetworkCJ        Network = "cj"        // Network A: GraphQL product feed
	NetworkPepperjam Network = "pepperjam" // Network B: REST publisher creatives
)

// IsValid checks if the network is one we have an adapter for
func (n Network) IsValid() bool {
	return n == NetworkCJ || n == NetworkPepperjam
}

// Brand is the network identity of an advertiser. Brand rows are owned by
// another service; this core only reads them.
type Brand struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	APIType Network `json:"apiType"`
	APIID   string  `json:"apiId"`
}

// RawListing is one provider payload, kept verbatim for re-matching and debugging
type RawListing struct {
	Network   Network         `json:"network"`
	AccountID string          `json:"accountId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// UnifiedProduct is the provider-agnostic product shape produced by the normalizer.
// AffiliateURL is never empty.
type UnifiedProduct struct {
	SourceAPI       Network  `json:"sourceApi"`
	SourceProductID string   `json:"sourceProductId"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Price           float64  `json:"price"`
	SalePrice       *float64 `json:"salePrice,omitempty"`
	Currency        string   `json:"currency"`
	ImageURL        string   `json:"imageUrl"`
	AffiliateURL    string   `json:"affiliateUrl"`
	Categories      []string `json:"categories"`
	Availability    bool     `json:"availability"`
	SKU             *string  `json:"sku,omitempty"`
	KeywordsMatched []string `json:"keywordsMatched"`
}

// SourceKey is the dedup key of a product across all stored rows
type SourceKey struct {
	SourceAPI       Network
	SourceProductID string
}

// Key returns the dedup key of the product
func (p *UnifiedProduct) Key() SourceKey {
	return SourceKey{SourceAPI: p.SourceAPI, SourceProductID: p.SourceProductID}
}

// ImportStatus tracks whether a stored product was published to the destination catalog
type ImportStatus string

const (
	ImportStatusPending  ImportStatus = "pending"
	ImportStatusImported ImportStatus = "imported"
	ImportStatusFailed   ImportStatus = "failed"
)

// IsValid checks if the import status is valid
func (s ImportStatus) IsValid() bool {
	switch s {
	case ImportStatusPending, ImportStatusImported, ImportStatusFailed:
		return true
	}
	return false
}

// StoredProduct is the persisted form of a UnifiedProduct.
// DestinationProductID and ImportStatus are written back by the publisher.
type StoredProduct struct {
	ID      string `json:"id"`
	BrandID string `json:"brandId"`
	UnifiedProduct
	DestinationProductID *string         `json:"destinationProductId,omitempty"`
	ImportStatus         ImportStatus    `json:"importStatus"`
	RawAPIData           json.RawMessage `json:"-"`
	CreatedAt            time.Time       `json:"createdAt"`
	LastUpdated          time.Time       `json:"lastUpdated"`
}

// HasRawData reports whether a cached provider payload is present
func (s *StoredProduct) HasRawData() bool {
	return len(s.RawAPIData) > 0 && string(s.RawAPIData) != "null"
}

// DiffersFrom reports whether any mutable field of the candidate differs from the stored value.
// Mutable fields: title, description, price, salePrice, imageUrl, availability, categories.
func (s *StoredProduct) DiffersFrom(c *UnifiedProduct) bool {
	if s.Title != c.Title || s.Description != c.Description || s.ImageURL != c.ImageURL {
		return true
	}
	if s.Availability != c.Availability {
		return true
	}
	if !priceEqual(s.Price, c.Price) {
		return true
	}
	switch {
	case s.SalePrice == nil && c.SalePrice == nil:
	case s.SalePrice == nil || c.SalePrice == nil:
		return true
	case !priceEqual(*s.SalePrice, *c.SalePrice):
		return true
	}
	return !slices.Equal(nonNil(s.Categories), nonNil(c.Categories))
}

// ApplyMutable copies the mutable fields from the candidate
func (s *StoredProduct) ApplyMutable(c *UnifiedProduct) {
	s.Title = c.Title
	s.Description = c.Description
	s.Price = c.Price
	s.SalePrice = c.SalePrice
	s.ImageURL = c.ImageURL
	s.Availability = c.Availability
	s.Categories = slices.Clone(nonNil(c.Categories))
}

func priceEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// GenerateSKU builds the fallback SKU used when a listing carries none.
// Format: BRAND_SLUG-NETWORK-SOURCEID
func GenerateSKU(brandName string, network Network, sourceProductID string) string {
	brandSlug := strings.ToUpper(brandName)
	brandSlug = strings.ReplaceAll(brandSlug, " ", "_")
	brandSlug = strings.ReplaceAll(brandSlug, ".", "")
	safeID := strings.ReplaceAll(sourceProductID, " ", "-")
	return brandSlug + "-" + strings.ToUpper(string(network)) + "-" + safeID
}

// ProductFilter holds list query parameters for stored products
type ProductFilter struct {
	BrandID      string
	SourceAPI    Network
	Availability *bool
	ImportStatus ImportStatus
	Search       string
	MinPrice     *float64
	MaxPrice     *float64
	Page         int
	Limit        int
}

// Offset returns the row offset for the filter's page
func (f ProductFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// Pagination describes one page of a list result
type Pagination struct {
	Page            int   `json:"page"`
	Limit           int   `json:"limit"`
	Total           int64 `json:"total"`
	TotalPages      int   `json:"totalPages"`
	HasNextPage     bool  `json:"hasNextPage"`
	HasPreviousPage bool  `json:"hasPreviousPage"`
}

// NewPagination computes page metadata
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Page:            page,
		Limit:           limit,
		Total:           total,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}

// ProductPage is a paginated list of stored products
type ProductPage struct {
	Products   []StoredProduct `json:"products"`
	Pagination Pagination      `json:"pagination"`
}

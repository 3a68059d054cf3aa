package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var criteriaValidator = validator.New()

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// LinkInfo is what a tracking link decodes to
type LinkInfo struct {
	Network   Network `json:"network"`
	AccountID string  `json:"accountId,omitempty"`
	AdID      string  `json:"adId,omitempty"`
	TargetURL string  `json:"targetUrl,omitempty"`
	ProductID string  `json:"productId,omitempty"`
}

// LinkParser decodes stored affiliate links. Parse returns nil for unrecognized formats.
type LinkParser interface {
	Parse(rawURL string) *LinkInfo
}

// FetchCriteria is the query handed to a network adapter.
// Keywords are AND-filtered client side; Query is passed to the provider's own search only.
type FetchCriteria struct {
	AccountID string   `validate:"required"`
	Keywords  []string `validate:"omitempty,dive,required"`
	Query     string   `validate:"max=200"`
	Limit     int      `validate:"min=1,max=1000"`
}

// Validate checks the criteria before any request is sent
func (c FetchCriteria) Validate() error {
	if err := criteriaValidator.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// NetworkAdapter is a thin client for one affiliate network.
// Transport failures are returned as *AdapterError; malformed items are skipped.
type NetworkAdapter interface {
	Network() Network
	FetchRaw(ctx context.Context, criteria FetchCriteria) ([]RawListing, error)
	ValidateAccount(ctx context.Context, accountID string) error
}

// ListingMapper converts one network's raw payload into a UnifiedProduct.
// An error means the listing is malformed and must be skipped.
type ListingMapper interface {
	Network() Network
	Map(raw RawListing) (UnifiedProduct, []NormalizationWarning, error)
}

// BrandRepository gives read-only access to externally owned brand records
type BrandRepository interface {
	FindByID(ctx context.Context, id string) (*Brand, error)
}

// ProductRepository persists StoredProducts. (SourceAPI, SourceProductID) is unique.
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (*StoredProduct, error)
	FindBySourceKey(ctx context.Context, key SourceKey) (*StoredProduct, error)
	// Insert returns false without error when a row with the same source key already exists
	Insert(ctx context.Context, product *StoredProduct) (bool, error)
	Update(ctx context.Context, product *StoredProduct) error
	UpdateRawData(ctx context.Context, id string, raw json.RawMessage) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ProductFilter) ([]StoredProduct, int64, error)
	Transaction(ctx context.Context, fn func(repo ProductRepository) error) error
}

// JobRepository persists import jobs
type JobRepository interface {
	Create(ctx context.Context, job *ImportJob) error
	FindByID(ctx context.Context, id string) (*ImportJob, error)
	// Finish stores a terminal job; it fails with ErrInvalidTransition if the stored row is already terminal
	Finish(ctx context.Context, job *ImportJob) error
}

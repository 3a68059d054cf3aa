package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100

	RawSourceCache = "cache"
	RawSourceLive  = "live"
)

// ProductService serves stored-product queries and single-item mutations
type ProductService struct {
	products  domain.ProductRepository
	refresher *RefreshService
	links     domain.LinkParser
	logger    *zap.Logger
}

// NewProductService creates a new product service. links may be nil, in which
// case raw-data responses carry no decoded link.
func NewProductService(products domain.ProductRepository, refresher *RefreshService, links domain.LinkParser, logger *zap.Logger) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductService{products: products, refresher: refresher, links: links, logger: logger}
}

// List returns one page of stored products
func (s *ProductService) List(ctx context.Context, filter domain.ProductFilter) (*domain.ProductPage, error) {
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.Limit == 0 {
		filter.Limit = defaultPageLimit
	}
	switch {
	case filter.Page < 1:
		return nil, fmt.Errorf("%w: page must be at least 1", domain.ErrInvalidRequest)
	case filter.Limit < 1 || filter.Limit > maxPageLimit:
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrInvalidRequest, maxPageLimit)
	case filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice:
		return nil, fmt.Errorf("%w: minPrice is greater than maxPrice", domain.ErrInvalidRequest)
	case filter.SourceAPI != "" && !filter.SourceAPI.IsValid():
		return nil, fmt.Errorf("%w: unknown sourceApi %q", domain.ErrInvalidRequest, filter.SourceAPI)
	case filter.ImportStatus != "" && !filter.ImportStatus.IsValid():
		return nil, fmt.Errorf("%w: unknown importStatus %q", domain.ErrInvalidRequest, filter.ImportStatus)
	}

	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.StoredProduct{}
	}
	return &domain.ProductPage{
		Products:   products,
		Pagination: domain.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

// RawDataResult is the cached or freshly matched provider payload of a product
type RawDataResult struct {
	Success   bool             `json:"success"`
	Source    string           `json:"source,omitempty"`
	MatchKind MatchKind        `json:"matchKind,omitempty"`
	RawData   json.RawMessage  `json:"rawData,omitempty"`
	LinkInfo  *domain.LinkInfo `json:"linkInfo,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// RawData returns the cached payload, or fetches and matches the listing upstream
// when nothing is cached. A missing upstream match is a result, not an error.
func (s *ProductService) RawData(ctx context.Context, id string) (*RawDataResult, error) {
	stored, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var linkInfo *domain.LinkInfo
	if s.links != nil {
		linkInfo = s.links.Parse(stored.AffiliateURL)
	}

	if stored.HasRawData() {
		return &RawDataResult{Success: true, Source: RawSourceCache, RawData: stored.RawAPIData, LinkInfo: linkInfo}, nil
	}

	candidate, kind, err := s.refresher.FindUpstream(ctx, stored)
	switch {
	case errors.Is(err, domain.ErrNoMatchFound):
		return &RawDataResult{Success: false, LinkInfo: linkInfo, Message: "No matching listing found upstream for this product"}, nil
	case errors.Is(err, domain.ErrBrandNotFound), domain.IsPersistenceError(err):
		return nil, err
	case err != nil:
		s.logger.Warn("raw data fetch failed", zap.String("product_id", id), zap.Error(err))
		return &RawDataResult{Success: false, LinkInfo: linkInfo, Message: "Could not fetch product from source: " + err.Error()}, nil
	}

	if err := s.products.UpdateRawData(ctx, id, candidate.Raw); err != nil {
		return nil, err
	}
	return &RawDataResult{Success: true, Source: RawSourceLive, MatchKind: kind, RawData: candidate.Raw, LinkInfo: linkInfo}, nil
}

// UpdateFromSource refreshes one product from its network
func (s *ProductService) UpdateFromSource(ctx context.Context, id string) (domain.RefreshOutcome, error) {
	return s.refresher.Refresh(ctx, id)
}

// Delete removes one product
func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", zap.String("product_id", id))
	return nil
}

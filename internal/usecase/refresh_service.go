package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain"
)

const defaultRefreshWindow = 5

// RefreshService re-fetches a stored product from its brand's network and
// reconciles it against the listing found upstream.
type RefreshService struct {
	products   domain.ProductRepository
	brands     domain.BrandRepository
	adapters   map[domain.Network]domain.NetworkAdapter
	normalizer *Normalizer
	matching   *MatchingService
	window     int
	logger     *zap.Logger
}

// NewRefreshService creates a refresh service. window bounds how many upstream
// listings are considered per product.
func NewRefreshService(
	products domain.ProductRepository,
	brands domain.BrandRepository,
	adapters []domain.NetworkAdapter,
	normalizer *Normalizer,
	matching *MatchingService,
	window int,
	logger *zap.Logger,
) *RefreshService {
	if window <= 0 {
		window = defaultRefreshWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshService{
		products:   products,
		brands:     brands,
		adapters:   adapterMap(adapters),
		normalizer: normalizer,
		matching:   matching,
		window:     window,
		logger:     logger,
	}
}

func adapterMap(adapters []domain.NetworkAdapter) map[domain.Network]domain.NetworkAdapter {
	m := make(map[domain.Network]domain.NetworkAdapter, len(adapters))
	for _, a := range adapters {
		m[a.Network()] = a
	}
	return m
}

// FindUpstream fetches the top listings for the product's title and returns the
// one matching the stored record. domain.ErrNoMatchFound means nothing matched.
func (s *RefreshService) FindUpstream(ctx context.Context, stored *domain.StoredProduct) (*Candidate, MatchKind, error) {
	brand, err := s.brands.FindByID(ctx, stored.BrandID)
	if err != nil {
		return nil, MatchNone, err
	}
	adapter, ok := s.adapters[stored.SourceAPI]
	if !ok {
		return nil, MatchNone, fmt.Errorf("%w: %s", domain.ErrUnsupportedNetwork, stored.SourceAPI)
	}

	raws, err := adapter.FetchRaw(ctx, domain.FetchCriteria{
		AccountID: brand.APIID,
		Query:     BuildRefreshQuery(stored.Title, brand.Name),
		Limit:     s.window,
	})
	if err != nil {
		return nil, MatchNone, err
	}

	batch := s.normalizer.NormalizeBatch(raws, brand, stored.KeywordsMatched)
	candidate, kind := s.matching.MatchForRefresh(batch.Candidates, stored)
	if candidate == nil {
		return nil, MatchNone, domain.ErrNoMatchFound
	}
	return candidate, kind, nil
}

// Refresh updates one stored product from its source and classifies the outcome
func (s *RefreshService) Refresh(ctx context.Context, productID string) (domain.RefreshOutcome, error) {
	stored, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return domain.RefreshFailed, err
	}

	candidate, kind, err := s.FindUpstream(ctx, stored)
	if err != nil {
		if !errors.Is(err, domain.ErrNoMatchFound) {
			s.logger.Warn("refresh fetch failed",
				zap.String("product_id", productID),
				zap.String("network", string(stored.SourceAPI)),
				zap.Error(err))
		}
		return domain.RefreshFailed, err
	}

	changed, err := s.matching.ApplyRefresh(ctx, stored, candidate)
	if err != nil {
		s.logger.Error("refresh write failed", zap.String("product_id", productID), zap.Error(err))
		return domain.RefreshFailed, err
	}

	s.logger.Info("product refreshed",
		zap.String("product_id", productID),
		zap.String("match", string(kind)),
		zap.Bool("changed", changed))
	if changed {
		return domain.RefreshUpdated, nil
	}
	return domain.RefreshNoChanges, nil
}

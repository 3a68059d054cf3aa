package usecase

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain"
)

// Normalizer converts raw provider listings into UnifiedProducts by dispatching
// to the mapper registered for the listing's network. It performs no I/O.
type Normalizer struct {
	mappers map[domain.Network]domain.ListingMapper
	logger  *zap.Logger
}

// NewNormalizer creates a normalizer for the given mappers
func NewNormalizer(logger *zap.Logger, mappers ...domain.ListingMapper) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Normalizer{mappers: make(map[domain.Network]domain.ListingMapper, len(mappers)), logger: logger}
	for _, m := range mappers {
		n.mappers[m.Network()] = m
	}
	return n
}

// Normalize maps one listing. An error means the listing is malformed and must be skipped.
func (n *Normalizer) Normalize(raw domain.RawListing) (domain.UnifiedProduct, []domain.NormalizationWarning, error) {
	mapper, ok := n.mappers[raw.Network]
	if !ok {
		return domain.UnifiedProduct{}, nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedNetwork, raw.Network)
	}
	return mapper.Map(raw)
}

// BatchResult is the outcome of normalizing one fetch
type BatchResult struct {
	Candidates []Candidate
	Skipped    int
}

// NormalizeBatch normalizes a fetch for a brand. Malformed listings are logged and
// skipped. Listings without a SKU get the generated brand SKU, and keywordsMatched
// lists the keyword phrases found in the title or description.
func (n *Normalizer) NormalizeBatch(raws []domain.RawListing, brand *domain.Brand, keywords []string) BatchResult {
	result := BatchResult{Candidates: make([]Candidate, 0, len(raws))}
	for _, raw := range raws {
		product, warnings, err := n.Normalize(raw)
		if err != nil {
			result.Skipped++
			n.logger.Warn("skipping listing",
				zap.String("network", string(raw.Network)),
				zap.String("brand_id", brand.ID),
				zap.Error(err))
			continue
		}
		for _, w := range warnings {
			n.logger.Warn("normalization warning",
				zap.String("network", string(raw.Network)),
				zap.String("source_product_id", product.SourceProductID),
				zap.String("field", w.Field),
				zap.String("message", w.Message))
		}

		if product.SKU == nil {
			sku := domain.GenerateSKU(brand.Name, product.SourceAPI, product.SourceProductID)
			product.SKU = &sku
		}
		matched, _ := domain.MatchKeywords(keywords, product.Title, product.Description)
		if matched == nil {
			matched = []string{}
		}
		product.KeywordsMatched = matched

		result.Candidates = append(result.Candidates, Candidate{Product: product, Raw: raw.Payload})
	}
	return result
}

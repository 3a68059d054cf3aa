package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain"
)

var punctuationRegex = regexp.MustCompile(`[^\w\s]`)

// stopWords are dropped before title tokens are compared
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "with": true, "by": true, "from": true, "is": true,
	// Units and packaging
	"oz": true, "fl": true, "lb": true, "lbs": true, "ml": true,
	"pack": true, "count": true, "ct": true, "pk": true, "set": true,
	"inch": true, "ft": true, "cm": true, "mm": true,
	// Marketing
	"new": true, "sale": true, "premium": true, "best": true,
}

// MatchKind records which rule matched a refreshed listing to a stored product
type MatchKind string

const (
	MatchNone     MatchKind = "none"
	MatchSourceID MatchKind = "source_id"
	MatchTitle    MatchKind = "title"
)

// Candidate is a normalized listing together with the payload it came from
type Candidate struct {
	Product domain.UnifiedProduct
	Raw     json.RawMessage
}

// MatchingService reconciles normalized listings against stored products
type MatchingService struct {
	products domain.ProductRepository
	logger   *zap.Logger
}

// NewMatchingService creates a new matching service
func NewMatchingService(products domain.ProductRepository, logger *zap.Logger) *MatchingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchingService{products: products, logger: logger}
}

// Reconcile persists candidates for a brand in one transaction. A candidate whose
// source key is already stored updates that row when a mutable field differs;
// otherwise a new pending row is inserted. Repeated keys within the batch keep the first.
func (s *MatchingService) Reconcile(ctx context.Context, candidates []Candidate, brandID string) (domain.ReconcileResult, error) {
	var result domain.ReconcileResult
	if len(candidates) == 0 {
		return result, nil
	}

	batch := dedupeCandidates(candidates)
	err := s.products.Transaction(ctx, func(repo domain.ProductRepository) error {
		result = domain.ReconcileResult{}
		for i := range batch {
			c := &batch[i]
			stored, err := repo.FindBySourceKey(ctx, c.Product.Key())
			switch {
			case errors.Is(err, domain.ErrProductNotFound):
				inserted, err := repo.Insert(ctx, &domain.StoredProduct{
					BrandID:        brandID,
					UnifiedProduct: c.Product,
					ImportStatus:   domain.ImportStatusPending,
					RawAPIData:     c.Raw,
				})
				if err != nil {
					return err
				}
				if inserted {
					result.Inserted++
				} else {
					result.Unchanged++
				}
			case err != nil:
				return err
			default:
				changed, err := applyCandidate(ctx, repo, stored, c)
				if err != nil {
					return err
				}
				if changed {
					result.Updated++
				} else {
					result.Unchanged++
				}
			}
		}
		return nil
	})
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	s.logger.Info("reconciled listings",
		zap.String("brand_id", brandID),
		zap.Int("candidates", len(candidates)),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged))
	return result, nil
}

// MatchForRefresh picks the fetched listing that corresponds to a stored product.
// An exact (sourceApi, sourceProductId) match always wins. Otherwise titles are
// compared case-insensitively for containment in either direction; when several
// titles qualify the one with the highest token overlap is chosen.
func (s *MatchingService) MatchForRefresh(candidates []Candidate, expected *domain.StoredProduct) (*Candidate, MatchKind) {
	if expected == nil {
		return nil, MatchNone
	}

	key := expected.Key()
	for i := range candidates {
		if candidates[i].Product.Key() == key {
			return &candidates[i], MatchSourceID
		}
	}

	want := strings.ToLower(strings.TrimSpace(expected.Title))
	if want == "" {
		return nil, MatchNone
	}
	wantTokens := tokenize(expected.Title)

	var best *Candidate
	bestScore := -1.0
	for i := range candidates {
		got := strings.ToLower(strings.TrimSpace(candidates[i].Product.Title))
		if got == "" || !(strings.Contains(got, want) || strings.Contains(want, got)) {
			continue
		}
		score := tokenOverlap(wantTokens, tokenize(candidates[i].Product.Title))
		if score > bestScore {
			best, bestScore = &candidates[i], score
		}
	}
	if best == nil {
		return nil, MatchNone
	}

	s.logger.Debug("title match used for refresh",
		zap.String("product_id", expected.ID),
		zap.String("stored_title", expected.Title),
		zap.String("matched_title", best.Product.Title),
		zap.Float64("overlap", bestScore))
	return best, MatchTitle
}

// ApplyRefresh writes a matched listing onto a stored product. It reports whether
// any mutable field changed. The cached payload is replaced either way.
func (s *MatchingService) ApplyRefresh(ctx context.Context, stored *domain.StoredProduct, candidate *Candidate) (bool, error) {
	return applyCandidate(ctx, s.products, stored, candidate)
}

func applyCandidate(ctx context.Context, repo domain.ProductRepository, stored *domain.StoredProduct, c *Candidate) (bool, error) {
	if !stored.DiffersFrom(&c.Product) {
		if len(c.Raw) > 0 && !bytes.Equal(stored.RawAPIData, c.Raw) {
			if err := repo.UpdateRawData(ctx, stored.ID, c.Raw); err != nil {
				return false, err
			}
			stored.RawAPIData = c.Raw
		}
		return false, nil
	}

	stored.ApplyMutable(&c.Product)
	if len(c.Raw) > 0 {
		stored.RawAPIData = c.Raw
	}
	if err := repo.Update(ctx, stored); err != nil {
		return false, err
	}
	return true, nil
}

func dedupeCandidates(candidates []Candidate) []Candidate {
	seen := make(map[domain.SourceKey]bool, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		key := c.Product.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// tokenize splits a string into normalized lowercase tokens.
// Removes punctuation, stop words and pure numeric tokens.
func tokenize(s string) []string {
	cleaned := punctuationRegex.ReplaceAllString(strings.ToLower(s), " ")

	var tokens []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) <= 1 || stopWords[word] || isNumeric(word) {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// tokenOverlap is the Jaccard index of two token lists
func tokenOverlap(a, b []string) float64 {
	union := findUnion(a, b)
	if union == 0 {
		return 0
	}
	matched, _ := findIntersection(a, b)
	return float64(matched) / float64(union)
}

// findIntersection returns the count of common tokens and the list of matched tokens
func findIntersection(tokens1, tokens2 []string) (int, []string) {
	set := make(map[string]bool)
	for _, t := range tokens1 {
		set[t] = true
	}

	var matched []string
	seen := make(map[string]bool)
	for _, t := range tokens2 {
		if set[t] && !seen[t] {
			matched = append(matched, t)
			seen[t] = true
		}
	}
	return len(matched), matched
}

// findUnion returns the count of unique tokens across both sets
func findUnion(tokens1, tokens2 []string) int {
	set := make(map[string]bool)
	for _, t := range tokens1 {
		set[t] = true
	}
	for _, t := range tokens2 {
		set[t] = true
	}
	return len(set)
}

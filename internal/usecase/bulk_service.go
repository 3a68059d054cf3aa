package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/catalogsync/backend/internal/domain"
)

const (
	defaultBulkConcurrency = 5

	msgProductNotFound = "Product not found"
	msgNoUpstreamMatch = "Updated product data not found"
)

// BulkService applies delete or refresh-from-source across many stored products.
// Each item is isolated; at most concurrency items run at once.
type BulkService struct {
	products    domain.ProductRepository
	refresher   *RefreshService
	concurrency int
	logger      *zap.Logger
}

// NewBulkService creates a new bulk service
func NewBulkService(products domain.ProductRepository, refresher *RefreshService, concurrency int, logger *zap.Logger) *BulkService {
	if concurrency <= 0 {
		concurrency = defaultBulkConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BulkService{products: products, refresher: refresher, concurrency: concurrency, logger: logger}
}

// BulkRequest is the input of ApplyBulk
type BulkRequest struct {
	Action     domain.BulkAction `json:"action" validate:"required,oneof=delete update_from_source"`
	ProductIDs []string          `json:"productIds" validate:"required,min=1,max=500,dive,required"`
}

// ApplyBulk processes every id independently. Success, Failed and NoChanges always
// sum to len(ProductIDs); repeated ids are processed once per occurrence.
func (s *BulkService) ApplyBulk(ctx context.Context, req BulkRequest) (*domain.BulkResult, error) {
	if err := requestValidator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	outcomes := make([]domain.RefreshOutcome, len(req.ProductIDs))
	messages := make([]string, len(req.ProductIDs))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	var mu sync.Mutex

	for i, id := range req.ProductIDs {
		i, id := i, id
		g.Go(func() error {
			outcome, err := s.applyOne(ctx, req.Action, id)
			mu.Lock()
			outcomes[i] = outcome
			if err != nil {
				messages[i] = DescribeItemError(err)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	result := &domain.BulkResult{Errors: []domain.BulkItemError{}}
	for i, outcome := range outcomes {
		switch outcome {
		case domain.RefreshUpdated:
			result.Success++
		case domain.RefreshNoChanges:
			result.NoChanges++
		default:
			result.Failed++
			result.Errors = append(result.Errors, domain.BulkItemError{ProductID: req.ProductIDs[i], Error: messages[i]})
		}
	}

	s.logger.Info("bulk operation finished",
		zap.String("action", string(req.Action)),
		zap.Int("items", len(req.ProductIDs)),
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed),
		zap.Int("no_changes", result.NoChanges))
	return result, nil
}

func (s *BulkService) applyOne(ctx context.Context, action domain.BulkAction, id string) (outcome domain.RefreshOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("bulk item panicked", zap.String("product_id", id), zap.Any("panic", r), zap.Stack("stack"))
			outcome, err = domain.RefreshFailed, fmt.Errorf("internal error: %v", r)
		}
	}()

	switch action {
	case domain.BulkActionDelete:
		if err := s.products.Delete(ctx, id); err != nil {
			s.logItemFailure(action, id, err)
			return domain.RefreshFailed, err
		}
		return domain.RefreshUpdated, nil
	case domain.BulkActionUpdateFromSource:
		outcome, err := s.refresher.Refresh(ctx, id)
		if err != nil {
			s.logItemFailure(action, id, err)
		}
		return outcome, err
	default:
		return domain.RefreshFailed, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidRequest, action)
	}
}

func (s *BulkService) logItemFailure(action domain.BulkAction, id string, err error) {
	fields := []zap.Field{zap.String("action", string(action)), zap.String("product_id", id), zap.Error(err)}
	if domain.IsPersistenceError(err) {
		s.logger.Error("bulk item failed", fields...)
		return
	}
	s.logger.Warn("bulk item failed", fields...)
}

// DescribeItemError renders a per-item failure the way bulk and single-item responses report it
func DescribeItemError(err error) string {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return msgProductNotFound
	case errors.Is(err, domain.ErrNoMatchFound):
		return msgNoUpstreamMatch
	default:
		return err.Error()
	}
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain"
)

var requestValidator = validator.New()

// ImportJobConfig holds import job tuning
type ImportJobConfig struct {
	DefaultLimit int
	MaxLimit     int
	JobTimeout   time.Duration
}

// StartImportRequest is the input of ImportJobService.Start
type StartImportRequest struct {
	BrandID  string `json:"brandId" validate:"required,max=64"`
	Keywords string `json:"keywords" validate:"max=500"`
	Limit    int    `json:"limit" validate:"min=0"`
}

// ImportJobService owns the asynchronous search-and-persist lifecycle.
// Jobs start in searching and end in completed or failed; a job keeps running
// when the caller stops polling.
type ImportJobService struct {
	jobs       domain.JobRepository
	brands     domain.BrandRepository
	adapters   map[domain.Network]domain.NetworkAdapter
	normalizer *Normalizer
	matching   *MatchingService
	validator  *AccountValidator
	cfg        ImportJobConfig
	logger     *zap.Logger
	now        func() time.Time
	wg         sync.WaitGroup
}

// NewImportJobService creates a new import job service
func NewImportJobService(
	jobs domain.JobRepository,
	brands domain.BrandRepository,
	adapters []domain.NetworkAdapter,
	normalizer *Normalizer,
	matching *MatchingService,
	accounts *AccountValidator,
	cfg ImportJobConfig,
	logger *zap.Logger,
) *ImportJobService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportJobService{
		jobs:       jobs,
		brands:     brands,
		adapters:   adapterMap(adapters),
		normalizer: normalizer,
		matching:   matching,
		validator:  accounts,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Start creates a job in searching and runs the pipeline in the background.
// The job outlives ctx; only the request-scoped lookups use it.
func (s *ImportJobService) Start(ctx context.Context, req StartImportRequest) (*domain.ImportJob, error) {
	if err := requestValidator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	limit := req.Limit
	if limit == 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return nil, fmt.Errorf("%w: limit must be at most %d", domain.ErrInvalidRequest, s.cfg.MaxLimit)
	}

	brand, err := s.brands.FindByID(ctx, req.BrandID)
	if err != nil {
		return nil, err
	}

	job, err := domain.NewImportJob(brand.ID, req.Keywords, limit, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info("import job started",
		zap.String("job_id", job.ID),
		zap.String("brand_id", brand.ID),
		zap.String("network", string(brand.APIType)),
		zap.Int("limit", limit))

	running := *job
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(&running, brand)
	}()

	return job, nil
}

// Status returns the stored state of a job
func (s *ImportJobService) Status(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	return s.jobs.FindByID(ctx, jobID)
}

// Wait blocks until every started job has reached a terminal state
func (s *ImportJobService) Wait() {
	s.wg.Wait()
}

func (s *ImportJobService) run(job *domain.ImportJob, brand *domain.Brand) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	log := s.logger.With(zap.String("job_id", job.ID), zap.String("brand_id", brand.ID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("import job panicked", zap.Any("panic", r), zap.Stack("stack"))
			s.fail(ctx, job, "Internal error while importing products", log)
		}
	}()

	found, skipped, result, err := s.execute(ctx, job, brand)
	if err != nil {
		log.Warn("import job failed", zap.Error(err))
		s.fail(ctx, job, failureMessage(brand, err), log)
		return
	}

	if err := job.Complete(found, skipped, result, s.now()); err != nil {
		log.Error("import job transition rejected", zap.Error(err))
		return
	}
	if err := s.finish(ctx, job); err != nil {
		log.Error("failed to store completed import job", zap.Error(err))
		return
	}
	log.Info("import job completed",
		zap.Int("found", found),
		zap.Int("skipped", skipped),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged))
}

func (s *ImportJobService) execute(ctx context.Context, job *domain.ImportJob, brand *domain.Brand) (int, int, domain.ReconcileResult, error) {
	adapter, ok := s.adapters[brand.APIType]
	if !ok {
		return 0, 0, domain.ReconcileResult{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedNetwork, brand.APIType)
	}

	if s.validator != nil {
		if err := s.validator.Validate(ctx, adapter, brand.APIID); err != nil {
			return 0, 0, domain.ReconcileResult{}, err
		}
	}

	keywords := job.KeywordList()
	raws, err := adapter.FetchRaw(ctx, domain.FetchCriteria{
		AccountID: brand.APIID,
		Keywords:  keywords,
		Limit:     job.Limit,
	})
	if err != nil {
		// a fetch failure may mean the cached account verdict is stale
		if s.validator != nil {
			s.validator.Forget(ctx, adapter.Network(), brand.APIID)
		}
		return 0, 0, domain.ReconcileResult{}, err
	}

	batch := s.normalizer.NormalizeBatch(raws, brand, keywords)
	result, err := s.matching.Reconcile(ctx, batch.Candidates, brand.ID)
	if err != nil {
		return 0, 0, domain.ReconcileResult{}, err
	}
	return len(raws), batch.Skipped, result, nil
}

func (s *ImportJobService) fail(ctx context.Context, job *domain.ImportJob, message string, log *zap.Logger) {
	if err := job.Fail(message, s.now()); err != nil {
		log.Error("import job transition rejected", zap.Error(err))
		return
	}
	if err := s.finish(ctx, job); err != nil {
		log.Error("failed to store failed import job", zap.Error(err))
	}
}

// finish stores the terminal job even when the job context has expired
func (s *ImportJobService) finish(ctx context.Context, job *domain.ImportJob) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return s.jobs.Finish(writeCtx, job)
}

// failureMessage renders a pipeline error for operators
func failureMessage(brand *domain.Brand, err error) string {
	var adapterErr *domain.AdapterError
	switch {
	case errors.Is(err, domain.ErrAccountInvalid):
		return fmt.Sprintf("Brand account %s is not accessible on %s: %v", brand.APIID, brand.APIType, err)
	case errors.Is(err, domain.ErrUnsupportedNetwork):
		return fmt.Sprintf("No adapter configured for network %q", brand.APIType)
	case errors.Is(err, context.DeadlineExceeded):
		return "Import timed out before products were saved"
	case errors.As(err, &adapterErr):
		return fmt.Sprintf("Failed to fetch products from %s: %v", adapterErr.Network, adapterErr.Cause)
	case domain.IsPersistenceError(err):
		return "Failed to save products: " + err.Error()
	default:
		return err.Error()
	}
}

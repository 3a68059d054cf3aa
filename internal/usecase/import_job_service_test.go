package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogsync/backend/internal/domain"
)

var testBrand = domain.Brand{ID: "b1", Name: "Acme", APIType: domain.NetworkCJ, APIID: "5551234"}

type jobFixture struct {
	svc      *ImportJobService
	jobs     *MockJobRepository
	products *MockProductRepository
	adapter  *MockAdapter
}

func newJobFixture(adapter *MockAdapter, cfg ImportJobConfig) *jobFixture {
	products := NewMockProductRepository()
	jobs := NewMockJobRepository()
	svc := NewImportJobService(
		jobs,
		NewMockBrandRepository(testBrand),
		[]domain.NetworkAdapter{adapter},
		newTestNormalizer(),
		NewMatchingService(products, nil),
		NewAccountValidator(NewMockCacheRepository(), time.Minute, nil),
		cfg,
		nil,
	)
	return &jobFixture{svc: svc, jobs: jobs, products: products, adapter: adapter}
}

func (f *jobFixture) startAndWait(t *testing.T, req StartImportRequest) *domain.ImportJob {
	t.Helper()
	job, err := f.svc.Start(context.Background(), req)
	require.NoError(t, err)
	f.svc.Wait()

	final, err := f.svc.Status(context.Background(), job.ID)
	require.NoError(t, err)
	return final
}

func TestImportJobService_SkipsMalformedListings(t *testing.T) {
	adapter := NewMockAdapter(domain.NetworkCJ,
		listing("1", "Ceiling Fan", 129.99),
		listing("2", "Box Fan", 39.5),
		`{"title":"fan without id"}`,
	)
	f := newJobFixture(adapter, ImportJobConfig{})

	job := f.startAndWait(t, StartImportRequest{BrandID: "b1", Keywords: "fan", Limit: 50})

	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Nil(t, job.ErrorMessage)
	assert.Equal(t, 3, job.ProductsFound)
	assert.Equal(t, 2, job.Inserted)
	assert.Equal(t, 1, job.Skipped)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, 2, f.products.count())

	criteria := adapter.lastCriteria()
	assert.Equal(t, "5551234", criteria.AccountID)
	assert.Equal(t, []string{"fan"}, criteria.Keywords)
	assert.Equal(t, 50, criteria.Limit)
}

func TestImportJobService_SecondRunUpdates(t *testing.T) {
	adapter := NewMockAdapter(domain.NetworkCJ, listing("1", "Ceiling Fan", 100))
	f := newJobFixture(adapter, ImportJobConfig{})

	first := f.startAndWait(t, StartImportRequest{BrandID: "b1"})
	assert.Equal(t, 1, first.Inserted)

	adapter.raws = NewMockAdapter(domain.NetworkCJ, listing("1", "Ceiling Fan", 90)).raws
	second := f.startAndWait(t, StartImportRequest{BrandID: "b1"})

	assert.Equal(t, domain.JobStatusCompleted, second.Status)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 1, second.Updated)
	assert.Equal(t, 1, f.products.count())
}

func TestImportJobService_Failures(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(a *MockAdapter)
		wantMessage string
	}{
		{
			name: "adapter error",
			setup: func(a *MockAdapter) {
				a.fetchErr = domain.NewAdapterError(domain.NetworkCJ, errors.New("503 service unavailable"))
			},
			wantMessage: "Failed to fetch products from cj: 503 service unavailable",
		},
		{
			name: "account rejected",
			setup: func(a *MockAdapter) {
				a.validateErr = domain.NewAdapterError(domain.NetworkCJ, domain.ErrAccountInvalid)
			},
			wantMessage: "Brand account 5551234 is not accessible on cj",
		},
		{
			name: "pipeline panic",
			setup: func(a *MockAdapter) {
				a.fetch = func(context.Context, domain.FetchCriteria) ([]domain.RawListing, error) {
					panic("boom")
				}
			},
			wantMessage: "Internal error while importing products",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := NewMockAdapter(domain.NetworkCJ)
			tt.setup(adapter)
			f := newJobFixture(adapter, ImportJobConfig{})

			job := f.startAndWait(t, StartImportRequest{BrandID: "b1", Keywords: "fan"})

			assert.Equal(t, domain.JobStatusFailed, job.Status)
			require.NotNil(t, job.ErrorMessage)
			assert.Contains(t, *job.ErrorMessage, tt.wantMessage)
			assert.Equal(t, 0, f.products.count())
		})
	}
}

func TestImportJobService_FetchFailureForgetsAccountVerdict(t *testing.T) {
	adapter := NewMockAdapter(domain.NetworkCJ, listing("1", "Ceiling Fan", 100))
	f := newJobFixture(adapter, ImportJobConfig{})

	first := f.startAndWait(t, StartImportRequest{BrandID: "b1"})
	require.Equal(t, domain.JobStatusCompleted, first.Status)
	f.startAndWait(t, StartImportRequest{BrandID: "b1"})
	assert.EqualValues(t, 1, adapter.validateCalls.Load())

	adapter.fetchErr = domain.NewAdapterError(domain.NetworkCJ, errors.New("401 unauthorized"))
	failed := f.startAndWait(t, StartImportRequest{BrandID: "b1"})
	require.Equal(t, domain.JobStatusFailed, failed.Status)

	adapter.fetchErr = nil
	retried := f.startAndWait(t, StartImportRequest{BrandID: "b1"})
	assert.Equal(t, domain.JobStatusCompleted, retried.Status)
	assert.EqualValues(t, 2, adapter.validateCalls.Load())
}

func TestImportJobService_UnsupportedNetwork(t *testing.T) {
	f := newJobFixture(NewMockAdapter(domain.NetworkPepperjam), ImportJobConfig{})

	job := f.startAndWait(t, StartImportRequest{BrandID: "b1"})

	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, *job.ErrorMessage, "No adapter configured")
}

func TestImportJobService_Timeout(t *testing.T) {
	adapter := NewMockAdapter(domain.NetworkCJ)
	adapter.fetch = func(ctx context.Context, _ domain.FetchCriteria) ([]domain.RawListing, error) {
		<-ctx.Done()
		return nil, domain.NewAdapterError(domain.NetworkCJ, ctx.Err())
	}
	f := newJobFixture(adapter, ImportJobConfig{JobTimeout: 20 * time.Millisecond})

	job := f.startAndWait(t, StartImportRequest{BrandID: "b1"})

	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, "Import timed out before products were saved", *job.ErrorMessage)
}

func TestImportJobService_StatusNeverMovesBackwards(t *testing.T) {
	release := make(chan struct{})
	adapter := NewMockAdapter(domain.NetworkCJ)
	adapter.fetch = func(context.Context, domain.FetchCriteria) ([]domain.RawListing, error) {
		<-release
		return NewMockAdapter(domain.NetworkCJ, listing("1", "Fan", 1)).raws, nil
	}
	f := newJobFixture(adapter, ImportJobConfig{})
	ctx := context.Background()

	job, err := f.svc.Start(ctx, StartImportRequest{BrandID: "b1"})
	require.NoError(t, err)

	polled, err := f.svc.Status(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSearching, polled.Status)

	close(release)
	f.svc.Wait()

	polled, err = f.svc.Status(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, polled.Status)
	assert.Equal(t, []domain.JobStatus{domain.JobStatusSearching, domain.JobStatusCompleted}, f.jobs.statusHistory(job.ID))
}

func TestImportJobService_StartValidation(t *testing.T) {
	f := newJobFixture(NewMockAdapter(domain.NetworkCJ), ImportJobConfig{DefaultLimit: 20, MaxLimit: 100})
	ctx := context.Background()

	_, err := f.svc.Start(ctx, StartImportRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.svc.Start(ctx, StartImportRequest{BrandID: "b1", Limit: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.svc.Start(ctx, StartImportRequest{BrandID: "b1", Limit: 101})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.svc.Start(ctx, StartImportRequest{BrandID: "missing"})
	assert.ErrorIs(t, err, domain.ErrBrandNotFound)

	job, err := f.svc.Start(ctx, StartImportRequest{BrandID: "b1", Keywords: "  "})
	require.NoError(t, err)
	f.svc.Wait()
	assert.Equal(t, 20, job.Limit)
	assert.Nil(t, job.Keywords)

	_, err = f.svc.Status(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

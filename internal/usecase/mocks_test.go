package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/catalogsync/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu       sync.Mutex
	data     map[string]interface{}
	getError    error
	setError    error
	deleteError error
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{data: make(map[string]interface{})}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteError != nil {
		return m.deleteError
	}
	delete(m.data, key)
	return nil
}

// MockProductRepository is an in-memory domain.ProductRepository.
// Transaction restores the previous rows when fn fails.
type MockProductRepository struct {
	mu        sync.Mutex
	rows      map[string]domain.StoredProduct
	seq       int
	insertErr error
	updateErr error
	deleteErr error
	listErr   error
}

func NewMockProductRepository(seed ...domain.StoredProduct) *MockProductRepository {
	m := &MockProductRepository{rows: make(map[string]domain.StoredProduct)}
	for _, p := range seed {
		m.rows[p.ID] = p
	}
	return m
}

func (m *MockProductRepository) FindByID(ctx context.Context, id string) (*domain.StoredProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (m *MockProductRepository) FindBySourceKey(ctx context.Context, key domain.SourceKey) (*domain.StoredProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.Key() == key {
			return &p, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

func (m *MockProductRepository) Insert(ctx context.Context, product *domain.StoredProduct) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return false, m.insertErr
	}
	for _, p := range m.rows {
		if p.Key() == product.Key() {
			return false, nil
		}
	}
	if product.ID == "" {
		m.seq++
		product.ID = fmt.Sprintf("prod-%d", m.seq)
	}
	m.rows[product.ID] = *product
	return true, nil
}

func (m *MockProductRepository) Update(ctx context.Context, product *domain.StoredProduct) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.rows[product.ID]; !ok {
		return domain.ErrProductNotFound
	}
	m.rows[product.ID] = *product
	return nil
}

func (m *MockProductRepository) UpdateRawData(ctx context.Context, id string, raw json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	p, ok := m.rows[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.RawAPIData = raw
	m.rows[id] = p
	return nil
}

func (m *MockProductRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.rows[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *MockProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.StoredProduct, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var matched []domain.StoredProduct
	for _, p := range m.rows {
		if filter.BrandID != "" && p.BrandID != filter.BrandID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	start := min(filter.Offset(), len(matched))
	end := min(start+filter.Limit, len(matched))
	return matched[start:end], int64(len(matched)), nil
}

func (m *MockProductRepository) Transaction(ctx context.Context, fn func(repo domain.ProductRepository) error) error {
	m.mu.Lock()
	snapshot := maps.Clone(m.rows)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.rows = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MockProductRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *MockProductRepository) get(id string) domain.StoredProduct {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

// MockJobRepository is an in-memory domain.JobRepository that records every
// status it stored so tests can check the sequence never moves backwards.
type MockJobRepository struct {
	mu        sync.Mutex
	jobs      map[string]domain.ImportJob
	history   map[string][]domain.JobStatus
	createErr error
}

func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{jobs: make(map[string]domain.ImportJob), history: make(map[string][]domain.JobStatus)}
}

func (m *MockJobRepository) Create(ctx context.Context, job *domain.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.jobs[job.ID] = *job
	m.history[job.ID] = append(m.history[job.ID], job.Status)
	return nil
}

func (m *MockJobRepository) FindByID(ctx context.Context, id string) (*domain.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &job, nil
}

func (m *MockJobRepository) Finish(ctx context.Context, job *domain.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.jobs[job.ID]
	if !ok {
		return domain.ErrJobNotFound
	}
	if !stored.Status.CanTransitionTo(job.Status) {
		return domain.ErrInvalidTransition
	}
	m.jobs[job.ID] = *job
	m.history[job.ID] = append(m.history[job.ID], job.Status)
	return nil
}

func (m *MockJobRepository) statusHistory(id string) []domain.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.JobStatus(nil), m.history[id]...)
}

// MockBrandRepository is a map-backed domain.BrandRepository
type MockBrandRepository struct {
	brands map[string]domain.Brand
}

func NewMockBrandRepository(brands ...domain.Brand) *MockBrandRepository {
	m := &MockBrandRepository{brands: make(map[string]domain.Brand)}
	for _, b := range brands {
		m.brands[b.ID] = b
	}
	return m
}

func (m *MockBrandRepository) FindByID(ctx context.Context, id string) (*domain.Brand, error) {
	b, ok := m.brands[id]
	if !ok {
		return nil, domain.ErrBrandNotFound
	}
	return &b, nil
}

// MockAdapter is a scripted domain.NetworkAdapter. fetch, when set, overrides raws/fetchErr.
type MockAdapter struct {
	network     domain.Network
	raws        []domain.RawListing
	fetchErr    error
	validateErr error
	fetch       func(ctx context.Context, criteria domain.FetchCriteria) ([]domain.RawListing, error)

	mu            sync.Mutex
	criteria      []domain.FetchCriteria
	validateCalls atomic.Int32
}

func NewMockAdapter(network domain.Network, payloads ...string) *MockAdapter {
	a := &MockAdapter{network: network}
	for _, p := range payloads {
		a.raws = append(a.raws, domain.RawListing{Network: network, AccountID: "acct", Payload: json.RawMessage(p)})
	}
	return a
}

func (a *MockAdapter) Network() domain.Network { return a.network }

func (a *MockAdapter) FetchRaw(ctx context.Context, criteria domain.FetchCriteria) ([]domain.RawListing, error) {
	a.mu.Lock()
	a.criteria = append(a.criteria, criteria)
	a.mu.Unlock()
	if a.fetch != nil {
		return a.fetch(ctx, criteria)
	}
	if a.fetchErr != nil {
		return nil, a.fetchErr
	}
	return a.raws, nil
}

func (a *MockAdapter) ValidateAccount(ctx context.Context, accountID string) error {
	a.validateCalls.Add(1)
	return a.validateErr
}

func (a *MockAdapter) lastCriteria() domain.FetchCriteria {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.criteria) == 0 {
		return domain.FetchCriteria{}
	}
	return a.criteria[len(a.criteria)-1]
}

// MockMapper maps a small test payload: {"id","title","description","price","sku"}
type MockMapper struct {
	network domain.Network
}

func (m MockMapper) Network() domain.Network { return m.network }

func (m MockMapper) Map(raw domain.RawListing) (domain.UnifiedProduct, []domain.NormalizationWarning, error) {
	var p struct {
		ID          string   `json:"id"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Price       *float64 `json:"price"`
		SKU         string   `json:"sku"`
	}
	if err := json.Unmarshal(raw.Payload, &p); err != nil {
		return domain.UnifiedProduct{}, nil, fmt.Errorf("%w: %v", domain.ErrMalformedListing, err)
	}
	if p.ID == "" || p.Title == "" {
		return domain.UnifiedProduct{}, nil, errors.Join(domain.ErrMalformedListing, errors.New("missing id or title"))
	}

	product := domain.UnifiedProduct{
		SourceAPI:       m.network,
		SourceProductID: p.ID,
		Title:           p.Title,
		Description:     p.Description,
		Currency:        "USD",
		ImageURL:        "https://img.example.com/" + p.ID + ".jpg",
		AffiliateURL:    "https://shop.example.com/" + p.ID,
		Categories:      []string{},
		Availability:    true,
		KeywordsMatched: []string{},
	}
	var warnings []domain.NormalizationWarning
	if p.Price == nil {
		warnings = append(warnings, domain.NormalizationWarning{Field: "price", Message: "missing price, defaulted to 0"})
	} else {
		product.Price = *p.Price
	}
	if p.SKU != "" {
		product.SKU = &p.SKU
	}
	return product, warnings, nil
}

func newTestNormalizer() *Normalizer {
	return NewNormalizer(nil, MockMapper{network: domain.NetworkCJ}, MockMapper{network: domain.NetworkPepperjam})
}

func listing(id, title string, price float64) string {
	return fmt.Sprintf(`{"id":%q,"title":%q,"description":%q,"price":%v}`, id, title, title+" description", price)
}

package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/connection"
	"github.com/marketsync/backend/internal/domain/marketplace"
	"github.com/marketsync/backend/internal/domain/order"
	"github.com/marketsync/backend/internal/domain/shared"
)

// MockOptionRepository is a mock implementation of OptionRepository
type MockOptionRepository struct {
	mock.Mock
}

func (m *MockOptionRepository) FindByHash(ctx context.Context, hash string) (*catalog.ProductOption, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.ProductOption), args.Error(1)
}

func (m *MockOptionRepository) FindByID(ctx context.Context, optionID int64) (*catalog.ProductOption, error) {
	args := m.Called(ctx, optionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.ProductOption), args.Error(1)
}

func (m *MockOptionRepository) FindByProduct(ctx context.Context, productID int64) ([]catalog.ProductOption, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.ProductOption), args.Error(1)
}

func (m *MockOptionRepository) InsertIgnore(ctx context.Context, option *catalog.ProductOption) (bool, error) {
	args := m.Called(ctx, option)
	return args.Bool(0), args.Error(1)
}

func (m *MockOptionRepository) UpdateMetadata(ctx context.Context, hash string, variationID *int64, name string) error {
	args := m.Called(ctx, hash, variationID, name)
	return args.Error(0)
}

func (m *MockOptionRepository) DeleteWhereHashNotIn(ctx context.Context, hashes []string) (int64, error) {
	args := m.Called(ctx, hashes)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOptionRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// memoryOptionRepository keeps options in a map keyed by hash
type memoryOptionRepository struct {
	mu      sync.Mutex
	nextID  int64
	options map[string]*catalog.ProductOption
}

func newMemoryOptionRepository() *memoryOptionRepository {
	return &memoryOptionRepository{options: make(map[string]*catalog.ProductOption)}
}

func (r *memoryOptionRepository) FindByHash(_ context.Context, hash string) (*catalog.ProductOption, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.options[hash]
	if !ok {
		return nil, catalog.ErrOptionNotFound
	}
	c := *o
	return &c, nil
}

func (r *memoryOptionRepository) FindByID(_ context.Context, optionID int64) (*catalog.ProductOption, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.options {
		if o.OptionID == optionID {
			c := *o
			return &c, nil
		}
	}
	return nil, catalog.ErrOptionNotFound
}

func (r *memoryOptionRepository) FindByProduct(_ context.Context, productID int64) ([]catalog.ProductOption, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.ProductOption
	for _, o := range r.options {
		if o.ProductID == productID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OptionID < out[j].OptionID })
	return out, nil
}

func (r *memoryOptionRepository) InsertIgnore(_ context.Context, option *catalog.ProductOption) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.options[option.Hash]; exists {
		return false, nil
	}
	r.nextID++
	option.OptionID = r.nextID
	c := *option
	r.options[option.Hash] = &c
	return true, nil
}

func (r *memoryOptionRepository) UpdateMetadata(_ context.Context, hash string, variationID *int64, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.options[hash]
	if !ok {
		return catalog.ErrOptionNotFound
	}
	o.VariationID = variationID
	o.ProductName = name
	return nil
}

func (r *memoryOptionRepository) DeleteWhereHashNotIn(_ context.Context, hashes []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keep := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		keep[h] = struct{}{}
	}
	var removed int64
	for h := range r.options {
		if _, ok := keep[h]; !ok {
			delete(r.options, h)
			removed++
		}
	}
	return removed, nil
}

func (r *memoryOptionRepository) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.options)), nil
}

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListProducts(ctx context.Context, query catalog.ProductQuery) ([]catalog.Product, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockStore) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockStore) ListVariations(ctx context.Context, parentID int64) ([]catalog.Product, error) {
	args := m.Called(ctx, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockStore) GetCategory(ctx context.Context, id int64) (*catalog.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

// MockOfferQueue is a mock implementation of OfferQueue
type MockOfferQueue struct {
	mock.Mock
}

func (m *MockOfferQueue) Enqueue(ctx context.Context, productID int64) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

func (m *MockOfferQueue) Drain(ctx context.Context, limit int) ([]catalog.OfferQueueEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.OfferQueueEntry), args.Error(1)
}

func (m *MockOfferQueue) Delete(ctx context.Context, productID int64) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

func (m *MockOfferQueue) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockClient is a mock implementation of marketplace.Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) UploadCatalog(ctx context.Context, creds marketplace.Credentials, filePath string) error {
	args := m.Called(ctx, creds, filePath)
	return args.Error(0)
}

func (m *MockClient) UploadOfferUpdate(ctx context.Context, creds marketplace.Credentials, filePath string) error {
	args := m.Called(ctx, creds, filePath)
	return args.Error(0)
}

func (m *MockClient) ListOrders(ctx context.Context, creds marketplace.Credentials, filter marketplace.OrderListFilter) ([]order.RemoteOrder, error) {
	args := m.Called(ctx, creds, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.RemoteOrder), args.Error(1)
}

func (m *MockClient) UpdateOrder(ctx context.Context, creds marketplace.Credentials, update marketplace.OrderUpdate) error {
	args := m.Called(ctx, creds, update)
	return args.Error(0)
}

// MockRunLock is a mock implementation of RunLock
type MockRunLock struct {
	mock.Mock
}

func (m *MockRunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockRunLock) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockRunLock) Close() error {
	return m.Called().Error(0)
}

// MockConnectionReader is a mock implementation of connection.Reader
type MockConnectionReader struct {
	mock.Mock
}

func (m *MockConnectionReader) FindByID(ctx context.Context, id int64) (*connection.Connection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*connection.Connection), args.Error(1)
}

func (m *MockConnectionReader) FindAll(ctx context.Context) ([]connection.Connection, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]connection.Connection), args.Error(1)
}

func (m *MockConnectionReader) FindActive(ctx context.Context) ([]connection.Connection, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]connection.Connection), args.Error(1)
}

// recordingArtifacts collects written records in memory
type recordingArtifacts struct {
	mu       sync.Mutex
	writers  []*recordingWriter
	removed  []string
	writeErr error
}

type recordingWriter struct {
	path    string
	records []*catalog.ProductRecord
	closed  bool
	err     error
}

func (w *recordingWriter) Write(record *catalog.ProductRecord) error {
	if w.err != nil {
		return w.err
	}
	w.records = append(w.records, record)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func (w *recordingWriter) Path() string {
	return w.path
}

func (a *recordingArtifacts) Create(contentType catalog.ContentType, connectionID int64) (catalog.DocumentWriter, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	w := &recordingWriter{path: "/tmp/" + string(contentType) + ".xml", err: a.writeErr}
	a.writers = append(a.writers, w)
	return w, nil
}

func (a *recordingArtifacts) Remove(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removed = append(a.removed, path)
	return nil
}

func (a *recordingArtifacts) last() *recordingWriter {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.writers) == 0 {
		return nil
	}
	return a.writers[len(a.writers)-1]
}

// mapSnapshotCache is a SnapshotCache over a plain map
type mapSnapshotCache map[int64]*catalog.Product

func (c mapSnapshotCache) Get(productID int64) (*catalog.Product, bool) {
	p, ok := c[productID]
	return p, ok
}

func (c mapSnapshotCache) Set(p *catalog.Product) {
	c[p.ID] = p
}

// Ensure mocks implement interfaces
var (
	_ catalog.OptionRepository = (*MockOptionRepository)(nil)
	_ catalog.OptionRepository = (*memoryOptionRepository)(nil)
	_ catalog.Store            = (*MockStore)(nil)
	_ catalog.OfferQueue       = (*MockOfferQueue)(nil)
	_ marketplace.Client       = (*MockClient)(nil)
	_ shared.RunLock           = (*MockRunLock)(nil)
	_ connection.Reader        = (*MockConnectionReader)(nil)
	_ catalog.ArtifactStore    = (*recordingArtifacts)(nil)
	_ catalog.SnapshotCache    = (mapSnapshotCache)(nil)
)

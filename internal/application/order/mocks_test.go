package order

import (
	"context"
	"sort"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/connection"
	"github.com/marketsync/backend/internal/domain/marketplace"
	"github.com/marketsync/backend/internal/domain/order"
)

// memoryLedger keeps ledger rows keyed by remote order number
type memoryLedger struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*order.ShipmentLedgerEntry
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{rows: make(map[string]*order.ShipmentLedgerEntry)}
}

var _ order.LedgerRepository = (*memoryLedger)(nil)

func (l *memoryLedger) get(remoteNumber string) *order.ShipmentLedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.rows[remoteNumber]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

func (l *memoryLedger) put(e *order.ShipmentLedgerEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.ID == 0 {
		l.nextID++
		e.ID = l.nextID
	}
	cp := *e
	l.rows[e.RemoteOrderNumber] = &cp
}

func (l *memoryLedger) FindByRemoteNumber(_ context.Context, remoteNumber string) (*order.ShipmentLedgerEntry, error) {
	if e := l.get(remoteNumber); e != nil {
		return e, nil
	}
	return nil, order.ErrLedgerEntryNotFound
}

func (l *memoryLedger) FindByOrderID(_ context.Context, orderID int64) (*order.ShipmentLedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.rows {
		if e.OrderID != nil && *e.OrderID == orderID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, order.ErrLedgerEntryNotFound
}

func (l *memoryLedger) Claim(_ context.Context, entry *order.ShipmentLedgerEntry) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.rows[entry.RemoteOrderNumber]; ok {
		return false, nil
	}
	l.nextID++
	entry.ID = l.nextID
	cp := *entry
	l.rows[entry.RemoteOrderNumber] = &cp
	return true, nil
}

func (l *memoryLedger) modify(remoteNumber string, fn func(e *order.ShipmentLedgerEntry)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.rows[remoteNumber]
	if !ok {
		return order.ErrLedgerEntryNotFound
	}
	fn(e)
	return nil
}

func (l *memoryLedger) AttachOrder(_ context.Context, remoteNumber string, orderID int64) error {
	return l.modify(remoteNumber, func(e *order.ShipmentLedgerEntry) { e.OrderID = &orderID })
}

func (l *memoryLedger) MarkImportSucceeded(_ context.Context, remoteNumber string) error {
	return l.modify(remoteNumber, func(e *order.ShipmentLedgerEntry) {
		e.ImportSuccess = true
		e.ImportError = false
	})
}

func (l *memoryLedger) MarkImportFailed(_ context.Context, remoteNumber, message string) error {
	return l.modify(remoteNumber, func(e *order.ShipmentLedgerEntry) {
		e.ImportError = true
		e.ErrorMessage = message
	})
}

func (l *memoryLedger) Update(_ context.Context, entry *order.ShipmentLedgerEntry) error {
	return l.modify(entry.RemoteOrderNumber, func(e *order.ShipmentLedgerEntry) { *e = *entry })
}

func (l *memoryLedger) ListReadyForExport(_ context.Context, connectionID int64, limit int) ([]order.ShipmentLedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []order.ShipmentLedgerEntry
	for _, e := range l.rows {
		if e.ConnectionID == connectionID && e.ReadyForExport() {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *memoryLedger) DeleteByRemoteNumber(_ context.Context, remoteNumber string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.rows, remoteNumber)
	return nil
}

// MockLocalOrderStore is a mock implementation of LocalOrderStore
type MockLocalOrderStore struct {
	mock.Mock
}

var _ order.LocalOrderStore = (*MockLocalOrderStore)(nil)

func (m *MockLocalOrderStore) CreateShell(ctx context.Context) (*order.LocalOrderRef, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.LocalOrderRef), args.Error(1)
}

func (m *MockLocalOrderStore) Complete(ctx context.Context, orderID int64, local *order.LocalOrder) (*order.LocalOrderRef, error) {
	args := m.Called(ctx, orderID, local)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.LocalOrderRef), args.Error(1)
}

func (m *MockLocalOrderStore) DeleteOrder(ctx context.Context, orderID int64) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockLocalOrderStore) ListNotes(ctx context.Context, orderID int64) ([]order.OrderNote, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.OrderNote), args.Error(1)
}

func (m *MockLocalOrderStore) PaymentGateways(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockLocalOrderStore) ShippingMethods(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockLocalOrderStore) OrderStatuses(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

// MockOptionRepository is a mock implementation of OptionRepository
type MockOptionRepository struct {
	mock.Mock
}

var _ catalog.OptionRepository = (*MockOptionRepository)(nil)

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

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

var _ catalog.Store = (*MockStore)(nil)

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

// MockClient is a mock implementation of marketplace.Client
type MockClient struct {
	mock.Mock
}

var _ marketplace.Client = (*MockClient)(nil)

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

// MockConnectionReader is a mock implementation of connection.Reader
type MockConnectionReader struct {
	mock.Mock
}

var _ connection.Reader = (*MockConnectionReader)(nil)

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

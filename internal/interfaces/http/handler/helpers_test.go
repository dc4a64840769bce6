package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/marketsync/backend/internal/domain/connection"
	"github.com/marketsync/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type memoryConnections struct {
	mu     sync.Mutex
	nextID int64
	conns  map[int64]connection.Connection
}

func newMemoryConnections(conns ...connection.Connection) *memoryConnections {
	m := &memoryConnections{conns: make(map[int64]connection.Connection)}
	for _, c := range conns {
		m.conns[c.ID] = c
		if c.ID > m.nextID {
			m.nextID = c.ID
		}
	}
	return m
}

func (m *memoryConnections) FindByID(_ context.Context, id int64) (*connection.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok {
		return nil, connection.ErrNotFound
	}
	return &c, nil
}

func (m *memoryConnections) FindAll(_ context.Context) ([]connection.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]connection.Connection, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryConnections) FindActive(ctx context.Context) ([]connection.Connection, error) {
	all, _ := m.FindAll(ctx)
	out := all[:0]
	for _, c := range all {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryConnections) Save(_ context.Context, c *connection.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		m.nextID++
		c.ID = m.nextID
	} else if _, ok := m.conns[c.ID]; !ok {
		return connection.ErrNotFound
	}
	m.conns[c.ID] = *c
	return nil
}

func (m *memoryConnections) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conns[id]; !ok {
		return connection.ErrNotFound
	}
	delete(m.conns, id)
	return nil
}

func validConnection(id int64) connection.Connection {
	return connection.Connection{
		ID:         id,
		Name:       "Main channel",
		PublicKey:  "pub",
		PrivateKey: "priv",
		IsActive:   true,
		Catalog:    connection.CatalogPolicy{ExportLanguages: []string{"nl"}},
		Import:     connection.OrderImportPolicy{OrderStatus: "wc-processing", FulfilmentFilter: connection.FulfilmentInternalOnly},
		Shipment:   connection.ShipmentExportPolicy{TriggerStatus: "wc-completed"},
	}
}

// serve runs one request through a fresh engine with the route registered
func serve(t *testing.T, method, route, target string, body any, h gin.HandlerFunc, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		raw = b
	case string:
		raw = []byte(b)
	default:
		var err error
		raw, err = json.Marshal(b)
		require.NoError(t, err)
	}

	engine := gin.New()
	engine.Handle(method, route, h)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

type envelope = Envelope[json.RawMessage]

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e), w.Body.String())
	return e
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &v))
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	e := decode(t, w)
	require.NotNil(t, e.Error, w.Body.String())
	return e.Error.Code
}


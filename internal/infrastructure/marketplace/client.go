// Package marketplace is the signed HTTP transport to the marketplace API.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/marketsync/backend/internal/domain/marketplace"
	"github.com/marketsync/backend/internal/domain/order"
	"github.com/marketsync/backend/internal/infrastructure/config"
	"github.com/marketsync/backend/internal/infrastructure/telemetry"
)

// API endpoints
const (
	uriProducts  = "/products"
	uriOrderList = "/orderlist"
	uriOrders    = "/orders"
)

const (
	defaultAPIVersion  = "2.0"
	defaultCallTimeout = 300 * time.Second
	uploadFieldName    = "payload"
)

// ErrMissingBaseURL is returned when the client is built without an API URL
var ErrMissingBaseURL = errors.New("marketplace: base URL is required")

// Client implements marketplace.Client over the signed REST API. Calls of
// one connection share a rate limiter.
type Client struct {
	http    *resty.Client
	version string
	limit   rate.Limit
	burst   int
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

var _ marketplace.Client = (*Client)(nil)

// ClientOption configures a Client
type ClientOption func(*Client)

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a marketplace client from configuration
func NewClient(cfg *config.MarketplaceConfig, opts ...ClientOption) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	version := cfg.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		version:  version,
		limit:    limit,
		burst:    burst,
		logger:   zap.NewNop(),
		now:      time.Now,
		limiters: make(map[int64]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("marketplace")
	return c, nil
}

func (c *Client) limiterFor(connectionID int64) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[connectionID]
	if !ok {
		l = rate.NewLimiter(c.limit, c.burst)
		c.limiters[connectionID] = l
	}
	return l
}

// UploadCatalog uploads a full catalog document
func (c *Client) UploadCatalog(ctx context.Context, creds marketplace.Credentials, filePath string) error {
	return c.upload(ctx, creds, "ProductsCreate", http.MethodPost, filePath)
}

// UploadOfferUpdate uploads an offer (price and stock) document
func (c *Client) UploadOfferUpdate(ctx context.Context, creds marketplace.Credentials, filePath string) error {
	return c.upload(ctx, creds, "ProductsUpdate", http.MethodPut, filePath)
}

func (c *Client) upload(ctx context.Context, creds marketplace.Credentials, operation, method, filePath string) error {
	body, contentType, err := multipartFile(filePath)
	if err != nil {
		return fmt.Errorf("marketplace: %s: %w", operation, err)
	}
	_, err = c.call(ctx, creds, operation, method, uriProducts, body, contentType)
	return err
}

// ListOrders lists remote orders matching the filter
func (c *Client) ListOrders(ctx context.Context, creds marketplace.Credentials, filter marketplace.OrderListFilter) ([]order.RemoteOrder, error) {
	body, err := json.Marshal(orderListRequest{Filters: orderListFilters{
		Statuses:    filter.Statuses,
		ExcludeTags: filter.ExcludeTags,
	}})
	if err != nil {
		return nil, err
	}
	data, err := c.call(ctx, creds, "OrderList", http.MethodPost, uriOrderList, body, "application/json")
	if err != nil {
		return nil, err
	}

	var list orderListData
	if len(data) > 0 {
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("%w: order list: %v", marketplace.ErrInvalidResponse, err)
		}
	}
	orders := make([]order.RemoteOrder, 0, len(list.Orders))
	for _, w := range list.Orders {
		orders = append(orders, w.toDomain())
	}
	return orders, nil
}

// UpdateOrder sends one order update
func (c *Client) UpdateOrder(ctx context.Context, creds marketplace.Credentials, update marketplace.OrderUpdate) error {
	body, err := json.Marshal(orderUpdateRequest{Updates: []wireOrderUpdate{fromDomainUpdate(update)}})
	if err != nil {
		return err
	}
	_, err = c.call(ctx, creds, "OrderUpdate", http.MethodPut, uriOrders, body, "application/json")
	return err
}

// call signs and sends one request and unwraps the response envelope.
func (c *Client) call(ctx context.Context, creds marketplace.Credentials, operation, method, uri string, body []byte, contentType string) (data json.RawMessage, err error) {
	if creds.PublicKey == "" || creds.PrivateKey == "" {
		return nil, marketplace.ErrMissingCredentials
	}

	ctx, span := telemetry.StartClientSpan(ctx, "marketplace."+operation,
		attribute.Int64("connection_id", creds.ConnectionID),
		attribute.String("http.method", method),
		attribute.String("http.route", uri),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if err := c.limiterFor(creds.ConnectionID).Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", marketplace.ErrUnavailable, err)
	}

	start := c.now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(signedHeaders(creds.PublicKey, creds.PrivateKey, body, method, uri, c.version, start)).
		SetHeader("Content-Type", contentType).
		SetBody(body).
		Execute(method, uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", marketplace.ErrUnavailable, operation, err)
	}

	c.logger.Debug("Marketplace call",
		zap.String("operation", operation),
		zap.Int64("connection_id", creds.ConnectionID),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", resp.Time()),
	)

	var env envelope
	if decodeErr := json.Unmarshal(resp.Body(), &env); decodeErr != nil || env.Result == "" {
		if resp.StatusCode() >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %s: HTTP %d", marketplace.ErrUnavailable, operation, resp.StatusCode())
		}
		return nil, fmt.Errorf("%w: %s: HTTP %d", marketplace.ErrInvalidResponse, operation, resp.StatusCode())
	}
	if env.Result != resultSuccess {
		return nil, &marketplace.CallError{Operation: operation, Details: env.Errors}
	}
	return env.Data, nil
}

// multipartFile renders filePath as a single-file multipart body. The body
// is built in memory because its length is part of the signature.
func multipartFile(filePath string) ([]byte, string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadFieldName, filepath.Base(filePath)))
	h.Set("Content-Type", "application/xml")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

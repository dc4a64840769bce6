// Package storefront adapts the storefront's REST API (WooCommerce v3) to
// the catalog read port and the local order port, and decodes its webhooks.
package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/infrastructure/config"
)

const (
	apiPrefix      = "/wp-json/wc/v3"
	defaultTimeout = 30 * time.Second
	maxPageSize    = 100
)

var (
	// ErrMissingBaseURL is returned when the adapter is built without a store URL
	ErrMissingBaseURL = errors.New("storefront: base URL is required")
	// ErrUnavailable wraps transport failures and server errors
	ErrUnavailable = errors.New("storefront: unavailable")
	// ErrRequestRejected wraps 4xx responses other than not found
	ErrRequestRejected = errors.New("storefront: request rejected")
	errNotFound        = errors.New("storefront: not found")
)

// apiError is the storefront's error body
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Adapter talks to one storefront. Global attribute terms are cached for
// the lifetime of the adapter.
type Adapter struct {
	http   *resty.Client
	logger *zap.Logger

	termsMu sync.RWMutex
	terms   map[int64][]attributeTerm
}

// Option configures an Adapter
type Option func(*Adapter)

// WithLogger sets the adapter logger
func WithLogger(logger *zap.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAdapter creates a storefront adapter authenticating with the REST
// consumer key and secret.
func NewAdapter(cfg *config.StorefrontConfig, opts ...Option) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	a := &Adapter{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")+apiPrefix).
			SetBasicAuth(cfg.ConsumerKey, cfg.ConsumerSecret).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		logger: zap.NewNop(),
		terms:  make(map[int64][]attributeTerm),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("storefront")
	return a, nil
}

// send issues one request and maps error statuses. A 404 returns
// errNotFound for the caller to translate.
func (a *Adapter) send(ctx context.Context, method, path string, query map[string]string, body any) (*resty.Response, error) {
	req := a.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusNotFound:
		return nil, errNotFound
	case status >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: %s %s: HTTP %d", ErrUnavailable, method, path, status)
	case status >= http.StatusBadRequest:
		var apiErr apiError
		_ = json.Unmarshal(resp.Body(), &apiErr)
		return nil, fmt.Errorf("%w: %s %s: HTTP %d %s %s", ErrRequestRejected, method, path, status, apiErr.Code, apiErr.Message)
	}
	return resp, nil
}

// do sends one request and decodes a 2xx body into out.
func (a *Adapter) do(ctx context.Context, method, path string, query map[string]string, body, out any) error {
	resp, err := a.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("storefront: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (a *Adapter) get(ctx context.Context, path string, query map[string]string, out any) error {
	return a.do(ctx, http.MethodGet, path, query, nil, out)
}

// getAll pages through a list endpoint until a short page.
func getAll[T any](ctx context.Context, a *Adapter, path string, query map[string]string) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		q := map[string]string{"page": strconv.Itoa(page), "per_page": strconv.Itoa(maxPageSize)}
		for k, v := range query {
			q[k] = v
		}
		var batch []T
		if err := a.get(ctx, path, q, &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < maxPageSize {
			return all, nil
		}
	}
}

// Package marketplace defines the port to the remote marketplace API.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marketsync/backend/internal/domain/order"
)

// ---------------------------------------------------------------------------
// Marketplace Errors
// ---------------------------------------------------------------------------

var (
	ErrCallFailed         = errors.New("marketplace: call failed")
	ErrUnavailable        = errors.New("marketplace: temporarily unavailable")
	ErrInvalidResponse    = errors.New("marketplace: invalid response")
	ErrMissingCredentials = errors.New("marketplace: missing credentials")
)

// ---------------------------------------------------------------------------
// Call errors
// ---------------------------------------------------------------------------

// ErrorDetail is one structured error returned by the marketplace
type ErrorDetail struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// String formats the detail as "<severity>. Code: <code>. Message: <message>"
func (d ErrorDetail) String() string {
	return fmt.Sprintf("%s. Code: %s. Message: %s", d.Severity, d.Code, d.Message)
}

// CallError is returned when the marketplace answers with a failure result
type CallError struct {
	Operation string
	Details   []ErrorDetail
}

// Error joins the details as "[a] [b]"
func (e *CallError) Error() string {
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, "["+d.String()+"]")
	}
	msg := strings.Join(parts, " ")
	if msg == "" {
		msg = "no error details"
	}
	return fmt.Sprintf("%s: %s: %s", ErrCallFailed.Error(), e.Operation, msg)
}

// Unwrap lets errors.Is match ErrCallFailed
func (e *CallError) Unwrap() error {
	return ErrCallFailed
}

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

// Credentials authenticate one connection
type Credentials struct {
	ConnectionID int64
	PublicKey    string
	PrivateKey   string
}

// Identifier types used in order updates
const (
	OrderIdentifierTypeNumber  = "effectconnectNumber"
	LineIdentifierTypeRemoteID = "effectconnectId"
)

// OrderListFilter selects orders to list
type OrderListFilter struct {
	Statuses    []string
	ExcludeTags []string
}

// LineUpdate reports carrier and tracking data for one order line
type LineUpdate struct {
	LineID         string
	IdentifierType string
	CarrierName    *string
	TrackingNumber *string
}

// OrderUpdate changes one remote order
type OrderUpdate struct {
	OrderNumber          string
	IdentifierType       string
	ConnectionIdentifier string
	ConnectionNumber     string
	AddTags              []string
	Lines                []LineUpdate
}

// Client is the remote marketplace transport
type Client interface {
	UploadCatalog(ctx context.Context, creds Credentials, filePath string) error
	UploadOfferUpdate(ctx context.Context, creds Credentials, filePath string) error
	ListOrders(ctx context.Context, creds Credentials, filter OrderListFilter) ([]order.RemoteOrder, error)
	UpdateOrder(ctx context.Context, creds Credentials, update OrderUpdate) error
}

// CredentialsFor builds credentials from connection fields
func CredentialsFor(connectionID int64, publicKey, privateKey string) Credentials {
	return Credentials{ConnectionID: connectionID, PublicKey: publicKey, PrivateKey: privateKey}
}

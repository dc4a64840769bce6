package storefront

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/order"
	"github.com/marketsync/backend/internal/domain/shared"
)

// Webhook headers set by the storefront
const (
	HeaderWebhookTopic     = "X-WC-Webhook-Topic"
	HeaderWebhookSignature = "X-WC-Webhook-Signature"
	HeaderWebhookDelivery  = "X-WC-Webhook-Delivery-ID"
)

// Webhook topics the service subscribes to
const (
	TopicProductCreated    = "product.created"
	TopicProductUpdated    = "product.updated"
	TopicProductRestored   = "product.restored"
	TopicProductSetStock   = "action.woocommerce_product_set_stock"
	TopicVariationSetStock = "action.woocommerce_variation_set_stock"
	TopicOrderUpdated      = "order.updated"
)

var (
	// ErrInvalidSignature is returned when a webhook body does not match its signature
	ErrInvalidSignature = errors.New("storefront: invalid webhook signature")
	// ErrMalformedWebhook is returned when a webhook body cannot be decoded
	ErrMalformedWebhook = errors.New("storefront: malformed webhook payload")
)

// VerifyWebhookSignature checks the base64 HMAC-SHA256 of the raw body.
func VerifyWebhookSignature(secret string, body []byte, signature string) error {
	if secret == "" || signature == "" {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

type actionPayload struct {
	Action string    `json:"action"`
	Arg    wcProduct `json:"arg"`
}

type wcOrderMeta struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type wcOrderPayload struct {
	ID       int64         `json:"id"`
	Status   string        `json:"status"`
	MetaData []wcOrderMeta `json:"meta_data"`
}

// DecodeWebhook turns a webhook delivery into domain events. Unknown topics
// and the ping sent when a webhook is created yield no events.
func (a *Adapter) DecodeWebhook(ctx context.Context, topic string, body []byte) ([]shared.DomainEvent, error) {
	switch topic {
	case TopicProductCreated, TopicProductUpdated, TopicProductRestored:
		return a.decodeProductSaved(ctx, body)
	case TopicProductSetStock, TopicVariationSetStock:
		var p actionPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
		}
		if p.Arg.ID == 0 {
			return nil, fmt.Errorf("%w: stock action without product", ErrMalformedWebhook)
		}
		return []shared.DomainEvent{catalog.NewStockChangedEvent(p.Arg.ID, p.Arg.ParentID)}, nil
	case TopicOrderUpdated:
		return decodeOrderUpdated(body)
	}
	return nil, nil
}

func (a *Adapter) decodeProductSaved(ctx context.Context, body []byte) ([]shared.DomainEvent, error) {
	var w wcProduct
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}
	if w.ID == 0 {
		return nil, fmt.Errorf("%w: product without id", ErrMalformedWebhook)
	}

	var parent *wcProduct
	if w.ParentID > 0 {
		var err error
		if parent, err = a.getProduct(ctx, w.ParentID); err != nil {
			return nil, err
		}
	}
	after, err := a.toProduct(ctx, &w, parent)
	if err != nil {
		return nil, err
	}
	return []shared.DomainEvent{catalog.NewProductSavedEvent(nil, after)}, nil
}

func decodeOrderUpdated(body []byte) ([]shared.DomainEvent, error) {
	var o wcOrderPayload
	if err := json.Unmarshal(body, &o); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}
	if o.ID == 0 {
		return nil, fmt.Errorf("%w: order without id", ErrMalformedWebhook)
	}

	events := []shared.DomainEvent{order.NewOrderStatusChangedEvent(o.ID, order.NormalizeStatus(o.Status))}
	for _, m := range o.MetaData {
		if !order.IsCarrierShipmentMetaKey(m.Key) {
			continue
		}
		events = append(events, order.NewCarrierMetadataWrittenEvent(o.ID, m.Key, metaString(m.Value)))
	}
	return events, nil
}

// metaString unwraps JSON string values; carrier plugins store their
// shipments either as a serialized string or as a structured value.
func metaString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

package handler

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/shared"
	"github.com/marketsync/backend/internal/infrastructure/storefront"
	"github.com/marketsync/backend/internal/interfaces/http/dto"
)

// DefaultDeliveryTTL is how long webhook delivery ids are remembered
const DefaultDeliveryTTL = 24 * time.Hour

// WebhookDecoder turns storefront webhook deliveries into domain events
type WebhookDecoder interface {
	DecodeWebhook(ctx context.Context, topic string, body []byte) ([]shared.DomainEvent, error)
}

// WebhookConfig configures the storefront webhook endpoint
type WebhookConfig struct {
	Secret      string
	Decoder     WebhookDecoder
	Publisher   shared.EventPublisher
	Deliveries  shared.DeliveryLedger
	DeliveryTTL time.Duration
	Logger      *zap.Logger
}

// WebhookHandler receives storefront webhooks and publishes them as events
type WebhookHandler struct {
	BaseHandler
	cfg WebhookConfig
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DeliveryTTL <= 0 {
		cfg.DeliveryTTL = DefaultDeliveryTTL
	}
	return &WebhookHandler{cfg: cfg}
}

// WebhookAck is returned for accepted deliveries
type WebhookAck struct {
	Events    int  `json:"events"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// Receive godoc
// @ID           receiveStorefrontWebhook
// @Summary      Receive a storefront webhook delivery
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Success      200 {object} Envelope[WebhookAck]
// @Failure      400 {object} ErrorEnvelope
// @Failure      401 {object} ErrorEnvelope
// @Failure      502 {object} ErrorEnvelope
// @Failure      503 {object} ErrorEnvelope
// @Router       /webhooks/storefront [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.Error(c, dto.ErrCodeRequestTooLarge, "Request body could not be read")
		return
	}
	topic := c.GetHeader(storefront.HeaderWebhookTopic)

	// The store pings a new webhook with a form body and no topic
	if topic == "" && bytes.HasPrefix(body, []byte("webhook_id=")) {
		h.Success(c, WebhookAck{})
		return
	}

	if err := storefront.VerifyWebhookSignature(h.cfg.Secret, body, c.GetHeader(storefront.HeaderWebhookSignature)); err != nil {
		h.cfg.Logger.Warn("Rejected webhook with invalid signature", zap.String("topic", topic))
		h.Error(c, dto.ErrCodeInvalidSignature, "Invalid webhook signature")
		return
	}

	ctx := c.Request.Context()
	delivery := c.GetHeader(storefront.HeaderWebhookDelivery)
	if delivery != "" && h.cfg.Deliveries != nil {
		seen, err := h.cfg.Deliveries.Seen(ctx, delivery)
		if err != nil {
			h.cfg.Logger.Warn("Delivery lookup failed", zap.String("delivery_id", delivery), zap.Error(err))
		} else if seen {
			h.Success(c, WebhookAck{Duplicate: true})
			return
		}
	}

	events, err := h.cfg.Decoder.DecodeWebhook(ctx, topic, body)
	if err != nil {
		if errors.Is(err, storefront.ErrMalformedWebhook) {
			h.BadRequest(c, err.Error())
			return
		}
		h.cfg.Logger.Error("Failed to decode webhook", zap.String("topic", topic), zap.Error(err))
		h.Error(c, dto.ErrCodeUnavailable, "Storefront lookup failed")
		return
	}

	if len(events) > 0 {
		if err := h.cfg.Publisher.Publish(ctx, events...); err != nil {
			h.cfg.Logger.Error("Failed to publish webhook events", zap.String("topic", topic), zap.Error(err))
			h.Error(c, dto.ErrCodeQueueFull, "Events could not be queued")
			return
		}
	}

	if delivery != "" && h.cfg.Deliveries != nil {
		if _, err := h.cfg.Deliveries.Record(ctx, shared.WebhookDelivery{ID: delivery, Topic: topic}, h.cfg.DeliveryTTL); err != nil {
			h.cfg.Logger.Warn("Failed to record delivery", zap.String("delivery_id", delivery), zap.Error(err))
		}
	}

	h.cfg.Logger.Debug("Webhook accepted", zap.String("topic", topic), zap.Int("events", len(events)))
	h.Success(c, WebhookAck{Events: len(events)})
}

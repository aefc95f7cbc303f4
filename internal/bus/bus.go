// Package bus provides event bus implementations for Covenant.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/covenant/internal/domain"
	"go.opentelemetry.io/otel/propagation"
)

// New creates a new event bus based on configuration.
// For Community tier: returns ChannelBus.
// For Pro tier: returns NATSBus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// PublishJSON encodes v and publishes it.
func PublishJSON(ctx context.Context, b domain.EventBus, tenantID, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}
	return b.Publish(ctx, tenantID, topic, payload)
}

// Trace context travels in message metadata so a worker span joins the
// trace of the request that ingested the document.
var propagator = propagation.TraceContext{}

func newMessage(ctx context.Context, tenantID, topic string, payload []byte) *domain.Message {
	msg := &domain.Message{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}
	propagator.Inject(ctx, propagation.MapCarrier(msg.Metadata))
	return msg
}

// messageContext returns ctx carrying the trace context of msg, if any.
func messageContext(ctx context.Context, msg *domain.Message) context.Context {
	if len(msg.Metadata) == 0 {
		return ctx
	}
	return propagator.Extract(ctx, propagation.MapCarrier(msg.Metadata))
}

func validate(tenantID, topic string) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	if topic == "" {
		return fmt.Errorf("topic is required")
	}
	return nil
}

// validatePublish also rejects AllTenants, which only makes sense for
// subscribing.
func validatePublish(tenantID, topic string) error {
	if tenantID == domain.AllTenants {
		return fmt.Errorf("cannot publish to %s", domain.AllTenants)
	}
	return validate(tenantID, topic)
}

// tenantToken makes a tenant id safe as a single subject token.
func tenantToken(tenantID string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(tenantID)
}

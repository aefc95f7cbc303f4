package domain

import (
	"context"
)

// EventBus carries documents to the async worker and announces finished
// assessments. Every message belongs to one tenant; AllTenants is only valid
// for subscribing.
type EventBus interface {
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe delivers messages for tenantID (or every tenant, with
	// AllTenants) until the subscription is dropped or the bus closes.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	Ping(ctx context.Context) error
	Close() error
}

// MessageHandler processes one delivered message. The context carries the
// publisher's trace, when there was one.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is the envelope delivered to handlers.
type Message struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription is an active subscription.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is "channel" (in-process) or "nats".
	Type string `json:"type"`

	ChannelBufferSize int `json:"channelBufferSize,omitempty"`

	NATSUrl           string `json:"natsUrl,omitempty"`
	NATSToken         string `json:"-"`
	NATSMaxReconnects int    `json:"natsMaxReconnects,omitempty"`
	NATSReconnectWait int    `json:"natsReconnectWait,omitempty"` // seconds

	// NATSQueueGroup makes worker replicas share ingested documents instead
	// of each assessing every one. Assessment events still fan out.
	NATSQueueGroup string `json:"natsQueueGroup,omitempty"`
}

// AllTenants subscribes to a topic across every tenant.
const AllTenants = "_global"

// Standard topic names for the assessment pipeline.
const (
	TopicDocumentIngested    = "covenant.document.ingested"
	TopicAssessmentCompleted = "covenant.assessment.completed"
	TopicHighRisk            = "covenant.assessment.high_risk"
)

// DocumentMessage is the payload published on TopicDocumentIngested.
type DocumentMessage struct {
	Document *Document `json:"document"`
	TraceID  string    `json:"traceId,omitempty"`
}

package bus

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/opensource-finance/covenant/internal/domain"
)

// subjectPrefix roots every Covenant subject.
const subjectPrefix = "covenant"

// Message headers. The payload travels as the raw NATS body.
const (
	headerMsgID     = nats.MsgIdHdr
	headerTenant    = "Covenant-Tenant"
	headerTopic     = "Covenant-Topic"
	headerTimestamp = "Covenant-Timestamp"
)

// NATSBus implements EventBus using NATS core subjects of the form
// covenant.<tenant>.<topic>. The connection retries in the background, so
// the process can start before NATS is reachable; Ping reports the gap.
type NATSBus struct {
	mu            sync.Mutex
	conn          *nats.Conn
	subscriptions map[string]*natsSubscription
	queueGroup    string
}

type natsSubscription struct {
	id    string
	topic string
	sub   *nats.Subscription
	bus   *NATSBus
}

// NewNATSBus connects to NATS.
func NewNATSBus(cfg domain.EventBusConfig) (*NATSBus, error) {
	if cfg.NATSUrl == "" {
		cfg.NATSUrl = nats.DefaultURL
	}
	if cfg.NATSMaxReconnects == 0 {
		cfg.NATSMaxReconnects = 10
	}
	if cfg.NATSReconnectWait == 0 {
		cfg.NATSReconnectWait = 5
	}

	opts := []nats.Option{
		nats.Name("covenant"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.NATSMaxReconnects),
		nats.ReconnectWait(time.Duration(cfg.NATSReconnectWait) * time.Second),
		nats.ReconnectBufSize(8 * 1024 * 1024), // documents can be large
		nats.ConnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS connected", "url", nc.ConnectedUrl(), "server_id", nc.ConnectedServerId())
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err, "will_reconnect", !nc.IsClosed())
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			slog.Info("NATS connection closed")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			slog.Error("NATS error", "error", err, "subject", subject)
		}),
	}
	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}

	conn, err := nats.Connect(cfg.NATSUrl, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSUrl, err)
	}
	if !conn.IsConnected() {
		slog.Warn("NATS not reachable yet, retrying in background", "url", cfg.NATSUrl)
	}

	return &NATSBus{
		conn:          conn,
		subscriptions: make(map[string]*natsSubscription),
		queueGroup:    cfg.NATSQueueGroup,
	}, nil
}

// Publish sends payload to the tenant's subject with the envelope in headers.
func (b *NATSBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if err := validatePublish(tenantID, topic); err != nil {
		return err
	}
	return b.conn.PublishMsg(encodeNATSMsg(subjectFor(tenantID, topic), newMessage(ctx, tenantID, topic, payload)))
}

// Subscribe registers a handler for a topic. domain.AllTenants subscribes
// with a wildcard over the tenant token. With a queue group configured,
// ingested documents are spread over the group's members.
func (b *NATSBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if err := validate(tenantID, topic); err != nil {
		return nil, err
	}

	cb := func(m *nats.Msg) {
		msg := decodeNATSMsg(m)
		if err := handler(messageContext(ctx, msg), msg); err != nil {
			slog.Error("handler error",
				"subject", m.Subject,
				"message_id", msg.ID,
				"error", err,
			)
		}
	}

	subject := subjectFor(tenantID, topic)
	var (
		natsSub *nats.Subscription
		err     error
	)
	if b.queueGroup != "" && topic == domain.TopicDocumentIngested {
		natsSub, err = b.conn.QueueSubscribe(subject, b.queueGroup, cb)
	} else {
		natsSub, err = b.conn.Subscribe(subject, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	sub := &natsSubscription{
		id:    uuid.New().String(),
		topic: topic,
		sub:   natsSub,
		bus:   b,
	}

	b.mu.Lock()
	b.subscriptions[sub.id] = sub
	b.mu.Unlock()

	return sub, nil
}

// Ping checks NATS connectivity.
func (b *NATSBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("NATS not connected (status %s)", b.conn.Status())
	}
	return b.conn.FlushWithContext(ctx)
}

// Close drains subscriptions so in-flight handlers finish, then closes.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	b.subscriptions = make(map[string]*natsSubscription)
	b.mu.Unlock()

	if b.conn.IsConnected() {
		if err := b.conn.Drain(); err == nil {
			return nil
		}
	}
	b.conn.Close()
	return nil
}

// Stats returns NATS connection statistics.
func (b *NATSBus) Stats() nats.Statistics {
	return b.conn.Stats()
}

// subjectFor maps a tenant and topic to covenant.<tenant>.<topic>.
func subjectFor(tenantID, topic string) string {
	tenant := tenantToken(tenantID)
	if tenantID == domain.AllTenants {
		tenant = "*"
	}
	return fmt.Sprintf("%s.%s.%s", subjectPrefix, tenant, topic)
}

// NATS headers are case-sensitive; trace keys keep the propagator's spelling.
func encodeNATSMsg(subject string, msg *domain.Message) *nats.Msg {
	m := nats.NewMsg(subject)
	m.Data = msg.Payload
	m.Header.Set(headerMsgID, msg.ID)
	m.Header.Set(headerTenant, msg.TenantID)
	m.Header.Set(headerTopic, msg.Topic)
	m.Header.Set(headerTimestamp, strconv.FormatInt(msg.Timestamp, 10))
	for k, v := range msg.Metadata {
		m.Header.Set(k, v)
	}
	return m
}

func decodeNATSMsg(m *nats.Msg) *domain.Message {
	msg := &domain.Message{
		ID:       m.Header.Get(headerMsgID),
		TenantID: m.Header.Get(headerTenant),
		Topic:    m.Header.Get(headerTopic),
		Payload:  m.Data,
		Metadata: make(map[string]string),
	}
	msg.Timestamp, _ = strconv.ParseInt(m.Header.Get(headerTimestamp), 10, 64)
	for _, key := range propagator.Fields() {
		if v := m.Header.Get(key); v != "" {
			msg.Metadata[key] = v
		}
	}
	return msg
}

// Unsubscribe removes the subscription.
func (s *natsSubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	delete(s.bus.subscriptions, s.id)
	s.bus.mu.Unlock()
	return s.sub.Unsubscribe()
}

// Topic returns the subscribed topic.
func (s *natsSubscription) Topic() string {
	return s.topic
}

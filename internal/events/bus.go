package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"

	certerrors "github.com/nfxvault/tlscertd/internal/errors"
	"github.com/nfxvault/tlscertd/internal/observability"
)

// Handler processes a single event's raw JSON payload. Handlers must be
// idempotent: at-least-once delivery means a handler can observe the same
// event more than once.
type Handler func(ctx context.Context, raw []byte) error

// Bus is the event bus contract shared by the API role (publish) and the
// worker role (subscribe).
type Bus interface {
	Publish(ctx context.Context, eventType EventType, payload interface{}) error
	Subscribe(ctx context.Context, handlers map[EventType]Handler) error
	Close() error
}

// topicFor routes cache.invalidate to its own topic and everything else to
// the shared refresh/operations topic.
type topicRouter struct {
	refreshTopic string
	cacheTopic   string
}

func (r topicRouter) topicFor(eventType EventType) string {
	if eventType == EventCacheInvalidate {
		return r.cacheTopic
	}
	return r.refreshTopic
}

func (r topicRouter) topics() []string {
	if r.refreshTopic == r.cacheTopic {
		return []string{r.refreshTopic}
	}
	return []string{r.refreshTopic, r.cacheTopic}
}

type saramaBus struct {
	producer      sarama.SyncProducer
	brokers       []string
	consumerGroup string
	router        topicRouter
	logger        observability.Logger
	metrics       observability.MetricsCollector

	mu     sync.Mutex
	closed bool
}

// NewSaramaBus constructs a Bus backed by IBM/sarama, producing with a
// synchronous producer (acks required before Publish returns) and
// consuming via a consumer group for the worker role.
func NewSaramaBus(brokers []string, refreshTopic, cacheTopic, consumerGroup string, logger observability.Logger, metrics observability.MetricsCollector) (Bus, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Consumer.Offsets.AutoCommit.Enable = true
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &saramaBus{
		producer:      producer,
		brokers:       brokers,
		consumerGroup: consumerGroup,
		router:        topicRouter{refreshTopic: refreshTopic, cacheTopic: cacheTopic},
		logger:        logger,
		metrics:       metrics,
	}, nil
}

func (b *saramaBus) Publish(ctx context.Context, eventType EventType, payload interface{}) error {
	if ts, ok := payload.(timestamped); ok {
		payload = ts.stamped(time.Now())
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return certerrors.WrapError(certerrors.ErrCodeInternal, "encode event payload", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: b.router.topicFor(eventType),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte(eventTypeHeaderKey), Value: []byte(eventType)},
		},
	}

	_, _, err = b.producer.SendMessage(msg)
	if err != nil {
		b.metrics.RecordEventPublished(string(eventType), "fail")
		return certerrors.WrapError(certerrors.ErrCodeEventBusUnavailable, "publish event", err)
	}
	b.metrics.RecordEventPublished(string(eventType), "success")
	return nil
}

func (b *saramaBus) Subscribe(ctx context.Context, handlers map[EventType]Handler) error {
	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.AutoCommit.Enable = true
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(b.brokers, b.consumerGroup, cfg)
	if err != nil {
		return fmt.Errorf("create kafka consumer group: %w", err)
	}
	defer group.Close()

	consumer := &consumerGroupHandler{
		handlers: handlers,
		logger:   b.logger,
		metrics:  b.metrics,
	}

	topics := b.router.topics()
	for {
		if err := group.Consume(ctx, topics, consumer); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("consume kafka topics: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (b *saramaBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.producer.Close()
}

// consumerGroupHandler dispatches each claimed message to its matching
// handler by the event_type header, recovering from handler panics so one
// bad message never crashes the consumer loop.
type consumerGroupHandler struct {
	handlers map[EventType]Handler
	logger   observability.Logger
	metrics  observability.MetricsCollector
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.dispatch(session.Context(), msg)
		session.MarkMessage(msg, "")
	}
	return nil
}

func (h *consumerGroupHandler) dispatch(ctx context.Context, msg *sarama.ConsumerMessage) {
	eventType := EventType(headerValue(msg.Headers, eventTypeHeaderKey))
	handler, ok := h.handlers[eventType]
	if !ok {
		h.logger.Warn(ctx, "no handler registered for event type", observability.EventType(string(eventType)))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error(ctx, fmt.Errorf("handler panic: %v", r), "event handler panicked, offset still committed",
				observability.EventType(string(eventType)))
			h.metrics.RecordEventConsumed(string(eventType), "panic")
		}
	}()

	start := time.Now()
	if err := handler(ctx, msg.Value); err != nil {
		h.logger.Error(ctx, err, "event handler failed, offset still committed",
			observability.EventType(string(eventType)), observability.Duration("handler_duration", time.Since(start)))
		h.metrics.RecordEventConsumed(string(eventType), "fail")
		return
	}
	h.metrics.RecordEventConsumed(string(eventType), "success")
}

func headerValue(headers []*sarama.RecordHeader, key string) string {
	for _, h := range headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

// noopBus discards publishes and never delivers anything. It lets the
// orchestrator run with the bus disabled (single-node deployments) without
// special-casing a nil Bus everywhere.
type noopBus struct {
	logger observability.Logger
}

// NewNoopBus constructs a Bus that logs publishes instead of sending them.
func NewNoopBus(logger observability.Logger) Bus {
	return &noopBus{logger: logger}
}

func (b *noopBus) Publish(ctx context.Context, eventType EventType, payload interface{}) error {
	b.logger.Debug(ctx, "event bus disabled, dropping publish", observability.EventType(string(eventType)))
	return nil
}

func (b *noopBus) Subscribe(ctx context.Context, handlers map[EventType]Handler) error {
	<-ctx.Done()
	return nil
}

func (b *noopBus) Close() error { return nil }

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cassiomorais/pspadapter/internal/domain/outbox"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	PaymentCreatedStream = "payments:created"
	DLQStream            = "payments:dlq"
)

// PaymentCreated is the message the listener consumes.
type PaymentCreated struct {
	MessageID string
	PaymentID uuid.UUID
	Version   int64
}

type StreamProducer struct {
	client *redis.Client
}

func NewStreamProducer(client *redis.Client) *StreamProducer {
	return &StreamProducer{client: client}
}

// PublishOutboxEntry appends an outbox entry to the stream of its event type.
func (p *StreamProducer) PublishOutboxEntry(ctx context.Context, entry *outbox.Entry) error {
	if entry.EventType != outbox.EventPaymentCreated {
		return fmt.Errorf("no stream for event type %q", entry.EventType)
	}
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	_, err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: PaymentCreatedStream,
		Values: map[string]any{
			"outbox_id":  entry.ID.String(),
			"payment_id": entry.AggregateID.String(),
			"event_type": entry.EventType,
			"payload":    string(payload),
			"timestamp":  time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", entry.EventType, err)
	}
	return nil
}

func (p *StreamProducer) PublishToDLQ(ctx context.Context, msg redis.XMessage, reason string) error {
	values := make(map[string]any, len(msg.Values)+3)
	for k, v := range msg.Values {
		values[k] = v
	}
	values["original_id"] = msg.ID
	values["reason"] = reason
	values["failed_at"] = time.Now().Unix()

	if _, err := p.client.XAdd(ctx, &redis.XAddArgs{Stream: DLQStream, Values: values}).Result(); err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}
	return nil
}

// DecodePaymentCreated extracts the payment reference from a stream message.
func DecodePaymentCreated(msg redis.XMessage) (PaymentCreated, error) {
	raw, ok := msg.Values["payment_id"].(string)
	if !ok {
		return PaymentCreated{}, errors.New("message has no payment_id")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return PaymentCreated{}, fmt.Errorf("invalid payment_id %q: %w", raw, err)
	}

	out := PaymentCreated{MessageID: msg.ID, PaymentID: id}
	if payload, ok := msg.Values["payload"].(string); ok && payload != "" {
		var body struct {
			Version int64 `json:"version"`
		}
		if err := json.Unmarshal([]byte(payload), &body); err != nil {
			return PaymentCreated{}, fmt.Errorf("invalid payload: %w", err)
		}
		out.Version = body.Version
	}
	return out, nil
}

type StreamConsumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

func NewStreamConsumer(
	client *redis.Client,
	stream string,
	group string,
	consumer string,
	batchSize int64,
	blockDuration time.Duration,
) *StreamConsumer {
	return &StreamConsumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		batchSize:     batchSize,
		blockDuration: blockDuration,
	}
}

func (c *StreamConsumer) Stream() string {
	return c.stream
}

func (c *StreamConsumer) CreateGroup(ctx context.Context) error {
	const busyGroupMsg = "BUSYGROUP"
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), busyGroupMsg) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Read blocks up to the block duration and returns the new messages, if any.
func (c *StreamConsumer) Read(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockDuration,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	var messages []redis.XMessage
	for _, s := range streams {
		messages = append(messages, s.Messages...)
	}
	return messages, nil
}

func (c *StreamConsumer) Ack(ctx context.Context, messageID string) error {
	if err := c.client.XAck(ctx, c.stream, c.group, messageID).Err(); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

// Reclaim takes over messages another consumer left pending for longer than
// minIdle, so a crashed worker's messages are eventually processed.
func (c *StreamConsumer) Reclaim(ctx context.Context, minIdle time.Duration) ([]redis.XMessage, error) {
	messages, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    c.batchSize,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to reclaim messages: %w", err)
	}
	return messages, nil
}

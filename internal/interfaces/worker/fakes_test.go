package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	paymentApp "github.com/cassiomorais/pspadapter/internal/application/payment"
	"github.com/cassiomorais/pspadapter/internal/domain/outbox"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type fakeStream struct {
	mu        sync.Mutex
	name      string
	batches   [][]redis.XMessage
	stale     []redis.XMessage
	acked     []string
	onDrained func()
}

func (s *fakeStream) Stream() string { return s.name }

func (s *fakeStream) Read(ctx context.Context) ([]redis.XMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		if s.onDrained != nil {
			s.onDrained()
		}
		return nil, ctx.Err()
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	return batch, nil
}

func (s *fakeStream) Reclaim(context.Context, time.Duration) ([]redis.XMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stale := s.stale
	s.stale = nil
	return stale, nil
}

func (s *fakeStream) Ack(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acked = append(s.acked, id)
	return nil
}

type deadLetter struct {
	id     string
	reason string
}

type fakeDLQ struct {
	mu      sync.Mutex
	letters []deadLetter
	err     error
}

func (d *fakeDLQ) PublishToDLQ(_ context.Context, msg redis.XMessage, reason string) error {
	if d.err != nil {
		return d.err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.letters = append(d.letters, deadLetter{id: msg.ID, reason: reason})
	return nil
}

// fakeLocks hands out in-memory locks; a payment id listed in held is owned
// by someone else.
type fakeLocks struct {
	mu       sync.Mutex
	held     map[uuid.UUID]bool
	released int
}

func (f *fakeLocks) factory(id uuid.UUID) Lock {
	return &fakeLock{owner: f, id: id}
}

type fakeLock struct {
	owner *fakeLocks
	id    uuid.UUID
}

func (l *fakeLock) Acquire(context.Context) (bool, error) {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	if l.owner.held[l.id] {
		return false, nil
	}
	if l.owner.held == nil {
		l.owner.held = make(map[uuid.UUID]bool)
	}
	l.owner.held[l.id] = true
	return true, nil
}

func (l *fakeLock) Release(context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	delete(l.owner.held, l.id)
	l.owner.released++
	return nil
}

type processorFunc func(ctx context.Context, id uuid.UUID) (*paymentApp.ProcessResult, error)

func (f processorFunc) Execute(ctx context.Context, id uuid.UUID) (*paymentApp.ProcessResult, error) {
	return f(ctx, id)
}

// streamPublisher turns published outbox entries into stream messages the
// way the Redis producer lays them out.
type streamPublisher struct {
	mu       sync.Mutex
	messages []redis.XMessage
	err      error
}

func (p *streamPublisher) PublishOutboxEntry(_ context.Context, entry *outbox.Entry) error {
	if p.err != nil {
		return p.err
	}
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, redis.XMessage{
		ID: entry.ID.String(),
		Values: map[string]any{
			"outbox_id":  entry.ID.String(),
			"payment_id": entry.AggregateID.String(),
			"event_type": entry.EventType,
			"payload":    string(payload),
		},
	})
	return nil
}

var errRedisDown = errors.New("redis: connection refused")

func paymentMessage(id string, paymentID uuid.UUID) redis.XMessage {
	return redis.XMessage{ID: id, Values: map[string]any{"payment_id": paymentID.String(), "payload": `{"version":2}`}}
}

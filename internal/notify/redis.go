package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/starford/deepdish/internal/models"
)

// ErrQueueFull is returned when an event cannot be handed off immediately.
var ErrQueueFull = errors.New("notify: publish queue full")

// DefaultQueueSize is used when RedisConfig.QueueSize is not positive.
const DefaultQueueSize = 256

// RedisConfig configures the Redis Streams publisher.
type RedisConfig struct {
	Addr        string
	TopicPrefix string
	QueueSize   int
}

// Topics names the stream each event type is appended to.
type Topics struct {
	Added   string
	Deleted string
	Updated string
}

// TopicsFor derives the event streams from a prefix such as "deepdish".
func TopicsFor(prefix string) Topics {
	return Topics{
		Added:   prefix + ".ingredient.added",
		Deleted: prefix + ".ingredient.deleted",
		Updated: prefix + ".ingredient.updated",
	}
}

// streamClient is the part of the Redis client the publisher uses.
type streamClient interface {
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
}

type message struct {
	topic   string
	key     string
	payload string
}

// RedisPublisher is a MessageService on Redis Streams. Publishing serializes
// the event and hands it to a bounded queue without waiting; Run drains the
// queue into XADD calls.
type RedisPublisher struct {
	client streamClient
	closer func() error
	topics Topics
	queue  chan message
}

// Verify *RedisPublisher satisfies MessageService at compile time.
var _ MessageService = (*RedisPublisher)(nil)

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(ctx context.Context, cfg RedisConfig) (*RedisPublisher, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	p := newRedisPublisher(rdb, cfg.TopicPrefix, cfg.QueueSize)
	p.closer = rdb.Close
	return p, nil
}

func newRedisPublisher(client streamClient, prefix string, queueSize int) *RedisPublisher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &RedisPublisher{
		client: client,
		topics: TopicsFor(prefix),
		queue:  make(chan message, queueSize),
	}
}

func (p *RedisPublisher) IngredientAdded(_ context.Context, ing models.Ingredient) error {
	return p.publish(p.topics.Added, ing.ID, NewIngredientMessage(ing))
}

func (p *RedisPublisher) IngredientDeleted(_ context.Context, ing models.Ingredient) error {
	return p.publish(p.topics.Deleted, ing.ID, NewIngredientMessage(ing))
}

func (p *RedisPublisher) IngredientUpdated(_ context.Context, old, updated models.Ingredient) error {
	return p.publish(p.topics.Updated, updated.ID, IngredientUpdatedMessage{
		Old: NewIngredientMessage(old),
		New: NewIngredientMessage(updated),
	})
}

func (p *RedisPublisher) publish(topic string, id uuid.UUID, payload any) error {
	key, err := json.Marshal(messageKey{ID: id})
	if err != nil {
		return fmt.Errorf("notify: encode key: %w", err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}
	select {
	case p.queue <- message{topic: topic, key: string(key), payload: string(body)}:
		return nil
	default:
		return fmt.Errorf("%w (topic %s)", ErrQueueFull, topic)
	}
}

// Run appends queued events to their streams until ctx is cancelled. Events
// still queued at cancellation are flushed with a short grace period.
func (p *RedisPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return nil
		case m := <-p.queue:
			p.send(ctx, m)
		}
	}
}

func (p *RedisPublisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case m := <-p.queue:
			p.send(ctx, m)
		default:
			return
		}
	}
}

func (p *RedisPublisher) send(ctx context.Context, m message) {
	err := p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: m.topic,
		Values: map[string]any{"key": m.key, "payload": m.payload},
	}).Err()
	if err != nil {
		slog.Error("publish event",
			slog.String("topic", m.topic),
			slog.String("key", m.key),
			slog.String("error", err.Error()),
		)
	}
}

// Close releases the Redis connection.
func (p *RedisPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

// Package changebus implements the pub/sub boundary between ingestion
// workers and index workers. The in-process bus is always available;
// an optional Redis transport relays the same messages across processes
// without changing their shape.
package changebus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// FileUpdate is the payload carried on the primary channel.
type FileUpdate struct {
	Action string `json:"action"` // "add" or "remove"
	Folder string `json:"folder"`
	File   string `json:"file"`
}

// ChannelFileMetadataUpdates is the well-known channel name used to relay
// a freshly saved transient file-metadata key into its folder index.
const ChannelFileMetadataUpdates = "file:metadata:updates"

// Handler receives a raw message payload for a channel.
type Handler func(payload []byte)

// Bus is a minimal named-channel pub/sub. A Bus must be safe to Publish
// and Subscribe to concurrently.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string, h Handler)
	Close() error
}

// InProcess is a Bus backed by in-memory fan-out. It requires no
// external service and is always usable, even when Redis is absent.
type InProcess struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool
}

// NewInProcess creates an in-process Bus.
func NewInProcess() *InProcess {
	return &InProcess{handlers: make(map[string][]Handler)}
}

// Publish invokes every handler subscribed to channel, each in its own
// goroutine so a slow handler cannot block the publisher.
func (b *InProcess) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("changebus: bus is closed")
	}
	for _, h := range b.handlers[channel] {
		h := h
		go h(payload)
	}
	return nil
}

// Subscribe registers h to be invoked for every future Publish on channel.
func (b *InProcess) Subscribe(_ context.Context, channel string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = append(b.handlers[channel], h)
}

// Close marks the bus closed; further Publish calls fail.
func (b *InProcess) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// PublishUpdate is a typed convenience wrapper around Publish for
// FileUpdate messages.
func PublishUpdate(ctx context.Context, b Bus, u FileUpdate) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("changebus: encode update: %w", err)
	}
	return b.Publish(ctx, ChannelFileMetadataUpdates, data)
}

// Redis is a Bus backed by a Redis pub/sub channel. Messages crossing it
// are byte-identical to the in-process bus's messages.
type Redis struct {
	client *redis.Client

	mu   sync.Mutex
	subs []*redis.PubSub
}

// NewRedis wraps an existing Redis client as a Bus.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Publish sends payload on channel via Redis PUBLISH.
func (b *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

// Subscribe starts a background goroutine relaying messages on channel to
// h until the Bus is closed or ctx is cancelled.
func (b *Redis) Subscribe(ctx context.Context, channel string, h Handler) {
	sub := b.client.Subscribe(ctx, channel)
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				h([]byte(msg.Payload))
			}
		}
	}()
}

// Close tears down every subscription and the underlying client.
func (b *Redis) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if err := s.Close(); err != nil {
			log.Printf("changebus: closing subscription: %v", err)
		}
	}
	return b.client.Close()
}

// Package logs tails remote build logs and fans lines out to live
// subscribers.
package logs

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/narvanalabs/codebuild-runner/internal/models"
)

// subscriberBuffer is the channel capacity of each subscriber.
const subscriberBuffer = 100

// Subscriber receives the log lines of one build, or of every build when
// BuildID is empty.
type Subscriber struct {
	ID        string
	BuildID   string
	Ch        chan *models.LogLine
	CreatedAt time.Time
}

// Broker fans log lines out to subscribers and keeps a bounded history per
// build for subscribers that join late.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	history     map[string]*Container
	maxLines    int
	logger      *slog.Logger
}

// NewBroker creates a broker keeping up to maxLines lines per build.
func NewBroker(maxLines int, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subscribers: make(map[string]*Subscriber),
		history:     make(map[string]*Container),
		maxLines:    maxLines,
		logger:      logger,
	}
}

// Subscribe registers a subscriber for buildID.
func (b *Broker) Subscribe(buildID string) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		ID:        uuid.NewString(),
		BuildID:   buildID,
		Ch:        make(chan *models.LogLine, subscriberBuffer),
		CreatedAt: time.Now(),
	}
	b.subscribers[sub.ID] = sub
	b.logger.Debug("subscriber added", "subscriber_id", sub.ID, "build_id", buildID)
	return sub
}

// Unsubscribe removes sub and closes its channel.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub.ID]; ok {
		close(sub.Ch)
		delete(b.subscribers, sub.ID)
		b.logger.Debug("subscriber removed", "subscriber_id", sub.ID)
	}
}

// Publish records line and delivers it to matching subscribers. A full
// subscriber misses the line rather than blocking the publisher.
func (b *Broker) Publish(line *models.LogLine) {
	if line == nil {
		return
	}

	b.mu.Lock()
	c, ok := b.history[line.BuildID]
	if !ok {
		c = NewContainer(b.maxLines)
		b.history[line.BuildID] = c
	}
	b.mu.Unlock()
	c.Add(line)

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.BuildID != "" && sub.BuildID != line.BuildID {
			continue
		}
		select {
		case sub.Ch <- line:
		default:
			b.logger.Warn("subscriber channel full, dropping log line",
				"subscriber_id", sub.ID,
				"build_id", line.BuildID,
			)
		}
	}
}

// PublishLines publishes messages as consecutive lines of buildID starting at
// sequence first.
func (b *Broker) PublishLines(buildID string, first int, messages []string) {
	now := time.Now()
	for i, msg := range messages {
		b.Publish(&models.LogLine{
			BuildID:   buildID,
			Sequence:  first + i,
			Message:   msg,
			Timestamp: now,
		})
	}
}

// Recent returns up to n of the latest lines recorded for buildID.
func (b *Broker) Recent(buildID string, n int) []*models.LogLine {
	b.mu.RLock()
	c, ok := b.history[buildID]
	b.mu.RUnlock()
	if !ok {
		return nil
	}
	return c.Last(n)
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Package events publishes comparison completion events to Kafka from a
// buffered background loop, so request handlers never block on the broker.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/metrics"
)

const defaultBufferSize = 10000

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type Collector struct {
	publisher Publisher
	metrics   *metrics.Metrics
	eventCh   chan any
	logger    *slog.Logger
	done      chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewCollector creates a Collector. m may be nil.
func NewCollector(publisher Publisher, bufferSize int, m *metrics.Metrics) *Collector {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Collector{
		publisher: publisher,
		metrics:   m,
		eventCh:   make(chan any, bufferSize),
		logger:    slog.Default().With("component", "event-collector"),
		done:      make(chan struct{}),
	}
}

// Start launches the publish loop. Cancelling ctx drains what is buffered
// and stops the loop; events tracked after that are flushed by Close.
func (c *Collector) Start(ctx context.Context) {
	pubCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(pubCtx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("event collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues an event. It never blocks; events are dropped when the
// buffer is full or the collector is closed.
func (c *Collector) Track(event any) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.record("dropped")
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.record("dropped")
		c.logger.Warn("completion event dropped (buffer full)")
	}
}

// Close stops accepting events, waits for the loop to exit and publishes
// anything still buffered. Start must have been called.
func (c *Collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.eventCh)
	c.mu.Unlock()
	<-c.done
	c.drainRemaining()
}

// drainRemaining flushes whatever is buffered as one batch.
func (c *Collector) drainRemaining() {
	var batch []kafka.Event
loop:
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				break loop
			}
			batch = append(batch, toEvent(event))
		default:
			break loop
		}
	}
	if len(batch) == 0 {
		return
	}
	status := "ok"
	if err := c.publisher.PublishBatch(context.Background(), batch); err != nil {
		status = "error"
		c.logger.Error("failed to publish remaining events", "count", len(batch), "error", err)
	}
	if c.metrics != nil {
		c.metrics.EventsPublishedTotal.WithLabelValues(status).Add(float64(len(batch)))
	}
}

func (c *Collector) publish(ctx context.Context, event any) {
	if err := c.publisher.Publish(ctx, toEvent(event)); err != nil {
		c.record("error")
		c.logger.Error("failed to publish completion event", "error", err)
		return
	}
	c.record("ok")
}

func (c *Collector) record(status string) {
	if c.metrics != nil {
		c.metrics.EventsPublishedTotal.WithLabelValues(status).Inc()
	}
}

// toEvent keys completion events by run ID and forwards their request ID
// as a header.
func toEvent(event any) kafka.Event {
	var ce *comparison.CompletedEvent
	switch e := event.(type) {
	case comparison.CompletedEvent:
		ce = &e
	case *comparison.CompletedEvent:
		ce = e
	default:
		return kafka.Event{Key: "comparison", Value: event}
	}
	out := kafka.Event{Key: ce.RunID, Value: event}
	if ce.RequestID != "" {
		out.Headers = map[string]string{kafka.RequestIDHeader: ce.RequestID}
	}
	return out
}

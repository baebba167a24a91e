package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, e kafka.Event) error {
	return f.PublishBatch(context.Background(), []kafka.Event{e})
}

func (f *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, events...)
	return nil
}

func TestCollectorPublishesOnClose(t *testing.T) {
	pub := &fakePublisher{}
	m := metrics.New(prometheus.NewRegistry())
	c := NewCollector(pub, 8, m)
	c.Start(context.Background())

	c.Track(comparison.CompletedEvent{RunID: "r1"})
	c.Track(comparison.CompletedEvent{RunID: "r2"})
	c.Close()

	if len(pub.events) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.events))
	}
	if pub.events[0].Key != "r1" || pub.events[1].Key != "r2" {
		t.Errorf("keys = %q, %q", pub.events[0].Key, pub.events[1].Key)
	}
	if got := testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok counter = %v, want 2", got)
	}
}

func TestCollectorDrainsOnCancel(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 8, nil)
	for i := 0; i < 3; i++ {
		c.Track(comparison.CompletedEvent{RunID: "r"})
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Start(ctx)
	<-c.done

	if len(pub.events) != 3 {
		t.Errorf("published %d events, want 3", len(pub.events))
	}
}

func TestCollectorCountsFailures(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	m := metrics.New(prometheus.NewRegistry())
	c := NewCollector(pub, 1, m)
	c.Start(context.Background())
	c.Track("first")
	c.Close()
	c.Track("after close")

	if got := testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("error counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues("dropped")); got != 1 {
		t.Errorf("dropped counter = %v, want 1", got)
	}
}

func TestToEvent(t *testing.T) {
	e := toEvent(&comparison.CompletedEvent{RunID: "x", RequestID: "req-1"})
	if e.Key != "x" || e.Headers[kafka.RequestIDHeader] != "req-1" {
		t.Errorf("toEvent(pointer) = %+v", e)
	}
	if e := toEvent(comparison.CompletedEvent{RunID: "y"}); e.Key != "y" || e.Headers != nil {
		t.Errorf("toEvent(value) = %+v", e)
	}
	if e := toEvent(42); e.Key != "comparison" {
		t.Errorf("toEvent(other) = %+v", e)
	}
}

func TestCollectorPublishesEventsTrackedAfterCancel(t *testing.T) {
	pub := &fakePublisher{}
	m := metrics.New(prometheus.NewRegistry())
	c := NewCollector(pub, 8, m)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	cancel()
	<-c.done

	c.Track(comparison.CompletedEvent{RunID: "inflight"})
	c.Close()

	if len(pub.events) != 1 || pub.events[0].Key != "inflight" {
		t.Fatalf("published = %+v, want the inflight event", pub.events)
	}
	if got := testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues("dropped")); got != 0 {
		t.Errorf("dropped counter = %v, want 0", got)
	}
}

func TestCollectorCloseIsIdempotent(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 4, nil)
	c.Start(context.Background())
	c.Track(comparison.CompletedEvent{RunID: "r1"})
	c.Close()
	c.Close()

	if len(pub.events) != 1 {
		t.Errorf("published %d events, want 1", len(pub.events))
	}
}

package node

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/domaguardian/domaguardian/internal/observability/metrics"
	"github.com/domaguardian/domaguardian/internal/storage"
)

// publishQueueSize is the number of committed calls whose events may wait for
// the sinks before new batches are dropped.
const publishQueueSize = 4096

// publishTimeout bounds one batch on one sink.
const publishTimeout = 30 * time.Second

type publishItem struct {
	events []storage.EventRecord
	// flushed is closed when every earlier batch has been handed to the sinks.
	flushed chan struct{}
}

// publisher hands committed events to the sinks on its own goroutine, one
// batch at a time in commit order. A slow sink delays later batches, never
// later calls.
type publisher struct {
	sinks  []EventSink
	logger *slog.Logger
	queue  chan publishItem
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

func newPublisher(sinks []EventSink, logger *slog.Logger) *publisher {
	p := &publisher{
		sinks:  sinks,
		logger: logger,
		queue:  make(chan publishItem, publishQueueSize),
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *publisher) loop() {
	defer close(p.done)
	for item := range p.queue {
		if item.flushed != nil {
			close(item.flushed)
			continue
		}
		for _, s := range p.sinks {
			p.send(s, item.events)
		}
	}
}

func (p *publisher) send(s EventSink, events []storage.EventRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.Publish(ctx, events); err != nil {
		metrics.EventPublish(s.Name(), "error")
		p.logger.Warn("publishing events", "sink", s.Name(), "count", len(events), "error", err)
		return
	}
	metrics.EventPublish(s.Name(), "ok")
}

// enqueue never blocks. When the queue is full the batch is dropped; the
// journal still holds its events.
func (p *publisher) enqueue(events []storage.EventRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- publishItem{events: events}:
	default:
		for _, s := range p.sinks {
			metrics.EventPublish(s.Name(), "dropped")
		}
		p.logger.Warn("event queue full, dropping batch", "count", len(events))
	}
}

// flush waits until every batch enqueued before the call has been handed to
// the sinks.
func (p *publisher) flush(ctx context.Context) error {
	flushed := make(chan struct{})
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	select {
	case p.queue <- publishItem{flushed: flushed}:
	case <-ctx.Done():
		p.mu.Unlock()
		return ctx.Err()
	}
	p.mu.Unlock()

	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting batches and waits for the queued ones to be sent.
func (p *publisher) close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

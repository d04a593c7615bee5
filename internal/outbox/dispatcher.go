// Package outbox delivers event rows recorded by the store to external
// consumers. Rows are written transactionally with the state change they
// describe, so delivery is at-least-once and consumers are expected to be
// idempotent.
package outbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/benty101/Meddycare-sub000/config"
	"github.com/benty101/Meddycare-sub000/internal/model"
	"github.com/benty101/Meddycare-sub000/internal/store"
)

// Sink consumes published events. Implementations must tolerate duplicate
// delivery.
type Sink interface {
	Publish(ctx context.Context, event model.OutboxEvent) error
}

// Dispatcher polls pending outbox rows and hands them to a pool of workers.
type Dispatcher struct {
	cfg   config.OutboxConfig
	store store.Store
	sinks []Sink
	log   *zap.Logger

	jobs chan model.OutboxEvent

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// NewDispatcher creates an outbox dispatcher.
func NewDispatcher(cfg config.OutboxConfig, s store.Store, sinks []Sink, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		store:    s,
		sinks:    sinks,
		log:      log,
		jobs:     make(chan model.OutboxEvent, cfg.BatchSize),
		inFlight: make(map[int64]struct{}),
	}
}

// Run starts the worker pool and the poll loop, and blocks until the
// context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Info("outbox dispatcher starting",
		zap.Int("workers", d.cfg.WorkerPoolSize),
		zap.Duration("poll_interval", d.cfg.PollInterval))

	var wg sync.WaitGroup
	for i := 0; i < d.cfg.WorkerPoolSize; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.worker(ctx, id)
		}(i)
	}

	timer := time.NewTimer(d.cfg.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			d.log.Info("outbox dispatcher shutting down")
			return
		case <-timer.C:
			d.PollOnce(ctx)
			timer.Reset(d.cfg.PollInterval)
		}
	}
}

// PollOnce fetches one batch of pending events and queues them. Events
// already queued to a worker are skipped so a slow worker does not cause a
// hot duplicate loop; duplicates across process restarts remain possible
// and acceptable.
func (d *Dispatcher) PollOnce(ctx context.Context) {
	events, err := d.store.PendingOutboxEvents(ctx, d.cfg.BatchSize)
	if err != nil {
		d.log.Warn("failed to poll outbox", zap.Error(err))
		return
	}

	for _, event := range events {
		if !d.claim(event.ID) {
			continue
		}
		select {
		case d.jobs <- event:
		case <-ctx.Done():
			d.release(event.ID)
			return
		}
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.jobs:
			d.deliver(ctx, event)
			d.release(event.ID)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event model.OutboxEvent) {
	for _, sink := range d.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			d.log.Warn("sink publish failed",
				zap.Int64("event_id", event.ID),
				zap.String("event_type", event.EventType),
				zap.Error(err))
			if err := d.store.MarkOutboxAttempted(ctx, event.ID); err != nil {
				d.log.Warn("failed to record outbox attempt", zap.Int64("event_id", event.ID), zap.Error(err))
			}
			return
		}
	}
	if err := d.store.MarkOutboxPublished(ctx, event.ID); err != nil {
		d.log.Warn("failed to mark outbox event published", zap.Int64("event_id", event.ID), zap.Error(err))
	}
}

func (d *Dispatcher) claim(id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.inFlight[id]; ok {
		return false
	}
	d.inFlight[id] = struct{}{}
	return true
}

func (d *Dispatcher) release(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, id)
}

// LogSink writes every event to the application log. Always installed; it
// doubles as the audit trail of what the core emitted.
type LogSink struct {
	Log *zap.Logger
}

func (s *LogSink) Publish(_ context.Context, event model.OutboxEvent) error {
	s.Log.Info("event published",
		zap.Int64("event_id", event.ID),
		zap.String("event_type", event.EventType),
		zap.String("payload", event.Payload))
	return nil
}

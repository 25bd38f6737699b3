package finance

import (
	"context"
	"sync"

	"github.com/schoolfees/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// EventDispatcher publishes domain events after their transaction committed.
// Publishing is best effort: failures are logged and never reach the caller.
// In async mode events are published from a background goroutine detached
// from the request context.
type EventDispatcher struct {
	publisher shared.EventPublisher
	logger    *zap.Logger
	async     bool
	wg        sync.WaitGroup
}

// NewEventDispatcher creates an EventDispatcher. A nil publisher turns
// Dispatch into a no-op.
func NewEventDispatcher(publisher shared.EventPublisher, logger *zap.Logger, async bool) *EventDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventDispatcher{
		publisher: publisher,
		logger:    logger,
		async:     async,
	}
}

// Dispatch publishes the events
func (d *EventDispatcher) Dispatch(ctx context.Context, events ...shared.DomainEvent) {
	if d == nil || d.publisher == nil || len(events) == 0 {
		return
	}
	if !d.async {
		d.publish(ctx, events)
		return
	}

	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.publish(detached, events)
	}()
}

// Wait blocks until every in-flight async dispatch finished
func (d *EventDispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func (d *EventDispatcher) publish(ctx context.Context, events []shared.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Event publisher panicked", zap.Any("panic", r))
		}
	}()
	if err := d.publisher.Publish(ctx, events...); err != nil {
		d.logger.Warn("Failed to publish domain events",
			zap.Int("count", len(events)),
			zap.String("first_event_type", events[0].EventType()),
			zap.Error(err))
	}
}

// collectEvents drains pending domain events from aggregates
func collectEvents(aggregates ...shared.AggregateRoot) []shared.DomainEvent {
	var events []shared.DomainEvent
	for _, agg := range aggregates {
		if agg == nil {
			continue
		}
		events = append(events, agg.GetDomainEvents()...)
		agg.ClearDomainEvents()
	}
	return events
}

package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
	"github.com/atvirokodosprendimai/chorerules/internal/core/ports"
)

// ChangeFeedDispatcher delivers configuration change events from the outbox to
// subscribers. Events of one family are delivered in the order they were
// written: when one fails, the family's later events wait for it.
type ChangeFeedDispatcher struct {
	outbox    ports.OutboxRepository
	publisher ports.EventPublisher
	opts      DispatcherOptions

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	delivered atomic.Int64
	retried   atomic.Int64
	held      atomic.Int64
	dead      atomic.Int64
}

type DispatcherOptions struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	Now         func() time.Time
}

type ChangeFeedMetrics struct {
	DeliveredTotal int64
	RetriedTotal   int64
	HeldTotal      int64
	DeadTotal      int64
}

func NewChangeFeedDispatcher(outbox ports.OutboxRepository, publisher ports.EventPublisher, opts DispatcherOptions) *ChangeFeedDispatcher {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &ChangeFeedDispatcher{outbox: outbox, publisher: publisher, opts: opts}
}

func (d *ChangeFeedDispatcher) Start(parent context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.wg.Add(1)
	go d.run(ctx)
}

func (d *ChangeFeedDispatcher) Close() error {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
	return nil
}

func (d *ChangeFeedDispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.opts.Interval)
	defer ticker.Stop()

	for {
		if err := d.deliverPending(ctx); err != nil && ctx.Err() == nil {
			log.Printf("change feed delivery: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// deliverPending publishes one batch of due events.
func (d *ChangeFeedDispatcher) deliverPending(ctx context.Context) error {
	events, err := d.outbox.FetchPending(ctx, d.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("fetch change events: %w", err)
	}

	blocked := make(map[string]bool)
	for _, event := range events {
		if blocked[event.FamilyID] {
			d.held.Add(1)
			continue
		}

		envelope, err := decodeChange(event)
		if err != nil {
			if err := d.bury(ctx, event, 1, err.Error()); err != nil {
				return err
			}
			continue
		}

		if err := d.publisher.Publish(ctx, event.Topic, envelope); err != nil {
			blocked[event.FamilyID] = true
			if err := d.retry(ctx, event, envelope, err.Error()); err != nil {
				return err
			}
			continue
		}

		if err := d.outbox.MarkDispatched(ctx, event.ID); err != nil {
			return fmt.Errorf("mark change event %s delivered: %w", event.EventID, err)
		}
		d.delivered.Add(1)
	}
	return nil
}

// decodeChange reads the envelope stored with event. An envelope that cannot
// be read, or that names another family, will never deliver.
func decodeChange(event domain.OutboxEvent) (domain.EventEnvelope, error) {
	var envelope domain.EventEnvelope
	if err := json.Unmarshal(event.PayloadJSON, &envelope); err != nil {
		return domain.EventEnvelope{}, fmt.Errorf("decode change event: %w", err)
	}
	if envelope.FamilyID != event.FamilyID {
		return domain.EventEnvelope{}, fmt.Errorf("change event for family %q stored under family %q", envelope.FamilyID, event.FamilyID)
	}
	return envelope, nil
}

func (d *ChangeFeedDispatcher) retry(ctx context.Context, event domain.OutboxEvent, envelope domain.EventEnvelope, reason string) error {
	attempts := event.Attempts + 1
	if attempts >= d.opts.MaxAttempts {
		return d.bury(ctx, event, attempts, reason)
	}
	next := d.opts.Now().Add(retryDelay(attempts))
	if err := d.outbox.MarkFailed(ctx, event.ID, attempts, next.Format(time.RFC3339Nano), reason); err != nil {
		return fmt.Errorf("schedule change event %s retry: %w", event.EventID, err)
	}
	d.retried.Add(1)
	log.Printf("change feed retry family=%s config_version=%d type=%s attempt=%d next=%s: %s",
		event.FamilyID, envelope.ConfigVersion, envelope.EventType, attempts, next.Format(time.RFC3339), reason)
	return nil
}

func (d *ChangeFeedDispatcher) bury(ctx context.Context, event domain.OutboxEvent, attempts int, reason string) error {
	if err := d.outbox.MarkDead(ctx, event.ID, attempts, reason); err != nil {
		return fmt.Errorf("dead-letter change event %s: %w", event.EventID, err)
	}
	d.dead.Add(1)
	log.Printf("change feed dead-letter family=%s event=%s attempts=%d: %s", event.FamilyID, event.EventID, attempts, reason)
	return nil
}

func (d *ChangeFeedDispatcher) Metrics() ChangeFeedMetrics {
	return ChangeFeedMetrics{
		DeliveredTotal: d.delivered.Load(),
		RetriedTotal:   d.retried.Load(),
		HeldTotal:      d.held.Load(),
		DeadTotal:      d.dead.Load(),
	}
}

// retryDelay doubles from one second up to five minutes.
func retryDelay(attempt int) time.Duration {
	delay := time.Second
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= 5*time.Minute {
			return 5 * time.Minute
		}
	}
	return delay
}

package usecase

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
	"github.com/atvirokodosprendimai/chorerules/internal/core/ports"
)

type analyticsRecord struct {
	familyID string
	delta    domain.AnalyticsDelta
}

// AnalyticsService buffers validation telemetry from sessions and writes it in
// batches. Record never blocks; when the buffer is full the delta is dropped.
type AnalyticsService struct {
	repo     ports.AnalyticsRepository
	interval time.Duration
	queue    chan analyticsRecord

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	recordedTotal atomic.Int64
	droppedTotal  atomic.Int64
	flushErrTotal atomic.Int64
}

type AnalyticsMetrics struct {
	RecordedTotal   int64
	DroppedTotal    int64
	FlushErrorTotal int64
}

func NewAnalyticsService(repo ports.AnalyticsRepository, interval time.Duration, bufferSize int) *AnalyticsService {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &AnalyticsService{repo: repo, interval: interval, queue: make(chan analyticsRecord, bufferSize)}
}

func (s *AnalyticsService) Record(familyID string, delta domain.AnalyticsDelta) {
	if familyID == "" || delta.IsZero() {
		return
	}
	select {
	case s.queue <- analyticsRecord{familyID: familyID, delta: delta}:
		s.recordedTotal.Add(1)
	default:
		s.droppedTotal.Add(1)
	}
}

func (s *AnalyticsService) Get(ctx context.Context, familyID string) (domain.Analytics, error) {
	if err := domain.ValidateFamilyID(familyID); err != nil {
		return domain.Analytics{}, err
	}
	return s.repo.Get(ctx, familyID)
}

func (s *AnalyticsService) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx)
}

// Close stops the loop after writing everything still buffered.
func (s *AnalyticsService) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.flush(context.Background(), s.drain(nil))
	return nil
}

func (s *AnalyticsService) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	pending := make(map[string]domain.AnalyticsDelta)
	for {
		select {
		case <-ctx.Done():
			s.flush(context.Background(), s.drain(pending))
			return
		case rec := <-s.queue:
			pending[rec.familyID] = pending[rec.familyID].Merge(rec.delta)
		case <-ticker.C:
			s.flush(ctx, pending)
			pending = make(map[string]domain.AnalyticsDelta)
		}
	}
}

// drain folds every queued record into pending.
func (s *AnalyticsService) drain(pending map[string]domain.AnalyticsDelta) map[string]domain.AnalyticsDelta {
	if pending == nil {
		pending = make(map[string]domain.AnalyticsDelta)
	}
	for {
		select {
		case rec := <-s.queue:
			pending[rec.familyID] = pending[rec.familyID].Merge(rec.delta)
		default:
			return pending
		}
	}
}

func (s *AnalyticsService) flush(ctx context.Context, pending map[string]domain.AnalyticsDelta) {
	for familyID, delta := range pending {
		if err := s.repo.Apply(ctx, familyID, delta); err != nil {
			s.flushErrTotal.Add(1)
			log.Printf("analytics flush family=%s: %v", familyID, err)
		}
	}
}

func (s *AnalyticsService) Metrics() AnalyticsMetrics {
	return AnalyticsMetrics{
		RecordedTotal:   s.recordedTotal.Load(),
		DroppedTotal:    s.droppedTotal.Load(),
		FlushErrorTotal: s.flushErrTotal.Load(),
	}
}

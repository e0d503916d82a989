package usecase

import (
	"context"
	"sort"
	"sync"

	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
)

type memoryConfigStore struct {
	mu      sync.Mutex
	configs map[string]domain.FamilyConfig
	events  []string
	getErr  error
}

func newMemoryConfigStore() *memoryConfigStore {
	return &memoryConfigStore{configs: make(map[string]domain.FamilyConfig)}
}

func (s *memoryConfigStore) Get(_ context.Context, familyID string) (domain.FamilyConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return domain.FamilyConfig{}, s.getErr
	}
	cfg, ok := s.configs[familyID]
	if !ok {
		return domain.FamilyConfig{}, domain.ErrNotFound
	}
	return cfg.Clone(), nil
}

func (s *memoryConfigStore) Create(_ context.Context, cfg domain.FamilyConfig, _ domain.ChangeMetadata) (domain.FamilyConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[cfg.FamilyID]; ok {
		return domain.FamilyConfig{}, domain.ErrConfigExists
	}
	s.configs[cfg.FamilyID] = cfg.Clone()
	s.events = append(s.events, domain.EventType(domain.ActionCreated))
	return cfg, nil
}

func (s *memoryConfigStore) Update(_ context.Context, familyID string, _ domain.ChangeMetadata, fn func(*domain.FamilyConfig) error) (domain.FamilyConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[familyID]
	if !ok {
		return domain.FamilyConfig{}, domain.ErrNotFound
	}
	next := cfg.Clone()
	if err := fn(&next); err != nil {
		return domain.FamilyConfig{}, err
	}
	s.configs[familyID] = next.Clone()
	s.events = append(s.events, domain.EventType(next.History[len(next.History)-1].Action))
	return next, nil
}

type memoryPresetRepo struct {
	mu      sync.Mutex
	presets map[string]domain.Preset
	order   []string
}

func newMemoryPresetRepo() *memoryPresetRepo {
	return &memoryPresetRepo{presets: make(map[string]domain.Preset)}
}

func (r *memoryPresetRepo) Create(_ context.Context, p domain.Preset) (domain.Preset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[p.ID] = p
	r.order = append(r.order, p.ID)
	return p, nil
}

func (r *memoryPresetRepo) Get(_ context.Context, id string) (domain.Preset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.presets[id]
	if !ok {
		return domain.Preset{}, domain.ErrPresetNotFound
	}
	return p, nil
}

func (r *memoryPresetRepo) ListVisible(_ context.Context, familyID string) ([]domain.Preset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Preset
	for _, id := range r.order {
		p := r.presets[id]
		if p.OwnerFamilyID == familyID || p.IsPublic {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OwnerFamilyID == familyID && out[j].OwnerFamilyID != familyID
	})
	return out, nil
}

func (r *memoryPresetRepo) FindPublicByName(_ context.Context, name string) (domain.Preset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if p := r.presets[id]; p.IsPublic && p.Name == name {
			return p, nil
		}
	}
	return domain.Preset{}, domain.ErrPresetNotFound
}

func (r *memoryPresetRepo) IncrementUsage(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.presets[id]
	if !ok {
		return domain.ErrPresetNotFound
	}
	p.UsageCount++
	r.presets[id] = p
	return nil
}

type memoryAnalyticsRepo struct {
	mu     sync.Mutex
	stats  map[string]domain.Analytics
	calls  int
	failOn string
}

func newMemoryAnalyticsRepo() *memoryAnalyticsRepo {
	return &memoryAnalyticsRepo{stats: make(map[string]domain.Analytics)}
}

func (r *memoryAnalyticsRepo) Apply(_ context.Context, familyID string, delta domain.AnalyticsDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if familyID == r.failOn {
		return context.DeadlineExceeded
	}
	r.stats[familyID] = r.stats[familyID].Apply(delta)
	return nil
}

func (r *memoryAnalyticsRepo) Get(_ context.Context, familyID string) (domain.Analytics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats[familyID], nil
}

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
	"github.com/atvirokodosprendimai/chorerules/internal/core/ports"
)

type ConfigServiceOptions struct {
	DefaultStrictness domain.StrictnessLevel
	HistoryLimit      int
	Now               func() time.Time
}

// ConfigService owns the lifecycle of family validation configurations.
type ConfigService struct {
	store     ports.ConfigStore
	presets   ports.PresetRepository
	analytics ports.AnalyticsRepository
	validator *PatchValidator

	defaultLevel domain.StrictnessLevel
	historyLimit int
	now          func() time.Time
}

func NewConfigService(store ports.ConfigStore, presets ports.PresetRepository, analytics ports.AnalyticsRepository, validator *PatchValidator, opts ConfigServiceOptions) *ConfigService {
	if opts.DefaultStrictness == "" {
		opts.DefaultStrictness = domain.StrictnessNormal
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = domain.DefaultHistoryLimit
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &ConfigService{
		store:        store,
		presets:      presets,
		analytics:    analytics,
		validator:    validator,
		defaultLevel: opts.DefaultStrictness,
		historyLimit: opts.HistoryLimit,
		now:          opts.Now,
	}
}

// Load returns the stored configuration with its analytics attached, or
// domain.ErrNotFound.
func (s *ConfigService) Load(ctx context.Context, familyID string) (domain.FamilyConfig, error) {
	if err := domain.ValidateFamilyID(familyID); err != nil {
		return domain.FamilyConfig{}, err
	}
	cfg, err := s.store.Get(ctx, familyID)
	if err != nil {
		return domain.FamilyConfig{}, err
	}
	if s.analytics != nil {
		stats, err := s.analytics.Get(ctx, familyID)
		if err != nil {
			log.Printf("load analytics family=%s: %v", familyID, err)
		} else {
			cfg.Analytics = stats
		}
	}
	return cfg, nil
}

// GetOrCreate loads the configuration, seeding it from the default template on
// first access.
func (s *ConfigService) GetOrCreate(ctx context.Context, familyID string, meta domain.ChangeMetadata) (domain.FamilyConfig, error) {
	cfg, err := s.Load(ctx, familyID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.FamilyConfig{}, err
	}
	cfg, err = s.CreateDefault(ctx, familyID, s.defaultLevel, meta)
	if errors.Is(err, domain.ErrConfigExists) {
		return s.Load(ctx, familyID)
	}
	return cfg, err
}

// CreateDefault seeds a configuration from the template for level.
func (s *ConfigService) CreateDefault(ctx context.Context, familyID string, level domain.StrictnessLevel, meta domain.ChangeMetadata) (domain.FamilyConfig, error) {
	meta = meta.Normalize()
	if level == "" {
		level = s.defaultLevel
	}
	cfg, err := domain.NewFamilyConfig(familyID, meta.Actor, level, s.now())
	if err != nil {
		return domain.FamilyConfig{}, err
	}
	return s.store.Create(ctx, cfg, meta)
}

// Update merges patch into the stored configuration and records a history entry.
func (s *ConfigService) Update(ctx context.Context, familyID string, patch domain.ConfigPatch, meta domain.ChangeMetadata) (domain.FamilyConfig, error) {
	if err := domain.ValidateFamilyID(familyID); err != nil {
		return domain.FamilyConfig{}, err
	}
	meta = meta.Normalize()
	return s.store.Update(ctx, familyID, meta, func(cfg *domain.FamilyConfig) error {
		next, err := cfg.Apply(patch)
		if err != nil {
			return err
		}
		next.Bump(domain.ActionUpdated, meta.Actor, patch.Summary(), s.now(), s.historyLimit)
		*cfg = next
		return nil
	})
}

// UpdateJSON validates a raw patch document before applying it.
func (s *ConfigService) UpdateJSON(ctx context.Context, familyID string, raw json.RawMessage, meta domain.ChangeMetadata) (domain.FamilyConfig, error) {
	patch, err := s.validator.DecodePatch(raw)
	if err != nil {
		return domain.FamilyConfig{}, err
	}
	return s.Update(ctx, familyID, patch, meta)
}

// ResetToDefault replaces the rule bundles with the template for level while
// keeping identity and history.
func (s *ConfigService) ResetToDefault(ctx context.Context, familyID string, level domain.StrictnessLevel, meta domain.ChangeMetadata) (domain.FamilyConfig, error) {
	if err := domain.ValidateFamilyID(familyID); err != nil {
		return domain.FamilyConfig{}, err
	}
	if level == "" {
		level = s.defaultLevel
	}
	meta = meta.Normalize()
	return s.store.Update(ctx, familyID, meta, func(cfg *domain.FamilyConfig) error {
		next, err := cfg.ResetTo(level)
		if err != nil {
			return err
		}
		next.Bump(domain.ActionReset, meta.Actor, "reset to "+string(level), s.now(), s.historyLimit)
		*cfg = next
		return nil
	})
}

// ApplyPreset merges a stored preset into the family configuration and counts
// the use against the preset.
func (s *ConfigService) ApplyPreset(ctx context.Context, familyID, presetID string, meta domain.ChangeMetadata) (domain.FamilyConfig, error) {
	if err := domain.ValidateFamilyID(familyID); err != nil {
		return domain.FamilyConfig{}, err
	}
	if err := domain.ValidatePresetID(presetID); err != nil {
		return domain.FamilyConfig{}, err
	}
	preset, err := s.presets.Get(ctx, presetID)
	if err != nil {
		return domain.FamilyConfig{}, err
	}
	if !preset.VisibleTo(familyID) {
		return domain.FamilyConfig{}, domain.ErrPresetNotFound
	}

	meta = meta.Normalize()
	cfg, err := s.store.Update(ctx, familyID, meta, func(cfg *domain.FamilyConfig) error {
		next, err := cfg.Apply(preset.Config)
		if err != nil {
			return err
		}
		next.Bump(domain.ActionPresetApplied, meta.Actor, fmt.Sprintf("preset %s (%s)", preset.ID, preset.Name), s.now(), s.historyLimit)
		*cfg = next
		return nil
	})
	if err != nil {
		return domain.FamilyConfig{}, err
	}
	if err := s.presets.IncrementUsage(ctx, preset.ID); err != nil {
		log.Printf("increment preset usage preset=%s: %v", preset.ID, err)
	}
	return cfg, nil
}

package ports

import (
	"context"

	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
)

// ConfigStore persists family configurations. Writes record a change-feed
// event in the same transaction.
type ConfigStore interface {
	// Get returns domain.ErrNotFound when the family has no configuration.
	Get(ctx context.Context, familyID string) (domain.FamilyConfig, error)
	// Create returns domain.ErrConfigExists when one is already stored.
	Create(ctx context.Context, cfg domain.FamilyConfig, meta domain.ChangeMetadata) (domain.FamilyConfig, error)
	// Update loads the current configuration, lets fn mutate it and stores the
	// result atomically. The event type is taken from the newest history entry.
	Update(ctx context.Context, familyID string, meta domain.ChangeMetadata, fn func(*domain.FamilyConfig) error) (domain.FamilyConfig, error)
}

type PresetRepository interface {
	Create(ctx context.Context, preset domain.Preset) (domain.Preset, error)
	Get(ctx context.Context, id string) (domain.Preset, error)
	// ListVisible returns the family's own presets followed by public ones.
	ListVisible(ctx context.Context, familyID string) ([]domain.Preset, error)
	FindPublicByName(ctx context.Context, name string) (domain.Preset, error)
	IncrementUsage(ctx context.Context, id string) error
}

type AnalyticsRepository interface {
	Apply(ctx context.Context, familyID string, delta domain.AnalyticsDelta) error
	Get(ctx context.Context, familyID string) (domain.Analytics, error)
}

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
	"github.com/atvirokodosprendimai/chorerules/internal/core/ports"
)

type PresetService struct {
	repo      ports.PresetRepository
	validator *PatchValidator
	now       func() time.Time
	newID     func() string
}

func NewPresetService(repo ports.PresetRepository, validator *PatchValidator) *PresetService {
	return &PresetService{
		repo:      repo,
		validator: validator,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Create stores a new preset owned by familyID.
func (s *PresetService) Create(ctx context.Context, familyID string, doc PresetDocument, actor string) (domain.Preset, error) {
	if err := domain.ValidateFamilyID(familyID); err != nil {
		return domain.Preset{}, err
	}
	preset := domain.Preset{
		ID:            s.newID(),
		OwnerFamilyID: familyID,
		Name:          doc.Name,
		Description:   doc.Description,
		Tags:          doc.Tags,
		IsPublic:      doc.IsPublic,
		Config:        doc.Config,
		CreatedBy:     actorOrDefault(actor),
		CreatedAt:     s.now(),
	}
	if err := preset.Validate(); err != nil {
		return domain.Preset{}, err
	}
	return s.repo.Create(ctx, preset)
}

func (s *PresetService) CreateJSON(ctx context.Context, familyID string, raw json.RawMessage, actor string) (domain.Preset, error) {
	doc, err := s.validator.DecodePreset(raw)
	if err != nil {
		return domain.Preset{}, err
	}
	return s.Create(ctx, familyID, doc, actor)
}

// Get returns preset id as seen by familyID. Another family's private preset
// is reported as not found.
func (s *PresetService) Get(ctx context.Context, familyID, id string) (domain.Preset, error) {
	if err := domain.ValidateFamilyID(familyID); err != nil {
		return domain.Preset{}, err
	}
	if err := domain.ValidatePresetID(id); err != nil {
		return domain.Preset{}, err
	}
	preset, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Preset{}, err
	}
	if !preset.VisibleTo(familyID) {
		return domain.Preset{}, domain.ErrPresetNotFound
	}
	return preset, nil
}

// List returns the presets familyID may apply.
func (s *PresetService) List(ctx context.Context, familyID string) ([]domain.Preset, error) {
	if err := domain.ValidateFamilyID(familyID); err != nil {
		return nil, err
	}
	return s.repo.ListVisible(ctx, familyID)
}

// Revise stores a new preset derived from id and owned by familyID. The
// original is left as it was.
func (s *PresetService) Revise(ctx context.Context, familyID, id string, changes domain.PresetRevision, actor string) (domain.Preset, error) {
	original, err := s.Get(ctx, familyID, id)
	if err != nil {
		return domain.Preset{}, err
	}
	revised := original.Revise(changes, actorOrDefault(actor), s.now())
	revised.ID = s.newID()
	revised.OwnerFamilyID = familyID
	if err := revised.Validate(); err != nil {
		return domain.Preset{}, err
	}
	return s.repo.Create(ctx, revised)
}

func (s *PresetService) ReviseJSON(ctx context.Context, familyID, id string, raw json.RawMessage, actor string) (domain.Preset, error) {
	changes, err := s.validator.DecodeRevision(raw)
	if err != nil {
		return domain.Preset{}, err
	}
	return s.Revise(ctx, familyID, id, changes, actor)
}

// Seed stores catalog presets as public, system-owned presets. A preset whose
// name is already taken by a public preset is skipped.
func (s *PresetService) Seed(ctx context.Context, docs []PresetDocument) (int, error) {
	created := 0
	for _, doc := range docs {
		_, err := s.repo.FindPublicByName(ctx, doc.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return created, fmt.Errorf("find preset %q: %w", doc.Name, err)
		}
		preset := domain.Preset{
			ID:          s.newID(),
			Name:        doc.Name,
			Description: doc.Description,
			Tags:        doc.Tags,
			IsPublic:    true,
			Config:      doc.Config,
			CreatedBy:   "system",
			CreatedAt:   s.now(),
		}
		if err := preset.Validate(); err != nil {
			return created, fmt.Errorf("preset %q: %w", doc.Name, err)
		}
		if _, err := s.repo.Create(ctx, preset); err != nil {
			return created, fmt.Errorf("create preset %q: %w", doc.Name, err)
		}
		created++
	}
	if created > 0 {
		log.Printf("seeded presets count=%d", created)
	}
	return created, nil
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return "api"
	}
	return actor
}

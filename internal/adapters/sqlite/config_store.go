package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atvirokodosprendimai/chorerules/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConfigStore keeps one configuration document per family. Every write
// appends a change-feed event to the outbox inside the same transaction.
type ConfigStore struct {
	db *gormsqlite.DB
}

func NewConfigStore(db *gormsqlite.DB) *ConfigStore {
	return &ConfigStore{db: db}
}

func (s *ConfigStore) Get(ctx context.Context, familyID string) (domain.FamilyConfig, error) {
	var model configModel
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("family_id = ?", familyID).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.FamilyConfig{}, domain.ErrNotFound
		}
		return domain.FamilyConfig{}, fmt.Errorf("get validation config: %w", err)
	}
	return decodeConfig(model)
}

func (s *ConfigStore) Create(ctx context.Context, cfg domain.FamilyConfig, meta domain.ChangeMetadata) (domain.FamilyConfig, error) {
	meta = meta.Normalize()
	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		model, err := encodeConfig(cfg)
		if err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
		if res.Error != nil {
			return fmt.Errorf("insert validation config: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrConfigExists
		}
		return insertOutbox(tx.DB, cfg, domain.ActionCreated, meta, model.Document)
	})
	if err != nil {
		return domain.FamilyConfig{}, err
	}
	return cfg, nil
}

func (s *ConfigStore) Update(ctx context.Context, familyID string, meta domain.ChangeMetadata, fn func(*domain.FamilyConfig) error) (domain.FamilyConfig, error) {
	meta = meta.Normalize()
	var result domain.FamilyConfig

	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		var current configModel
		if err := tx.Where("family_id = ?", familyID).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("load validation config: %w", err)
		}
		cfg, err := decodeConfig(current)
		if err != nil {
			return err
		}
		if err := fn(&cfg); err != nil {
			return err
		}

		next, err := encodeConfig(cfg)
		if err != nil {
			return err
		}
		res := tx.Model(&configModel{}).
			Where("family_id = ? AND version = ?", familyID, current.Version).
			Updates(map[string]any{
				"strictness_level": next.StrictnessLevel,
				"is_enabled":       next.IsEnabled,
				"version":          next.Version,
				"document":         next.Document,
				"updated_by":       next.UpdatedBy,
				"updated_at":       next.UpdatedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("update validation config: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("update validation config: version %d changed concurrently", current.Version)
		}

		action := domain.ActionUpdated
		if n := len(cfg.History); n > 0 {
			action = cfg.History[n-1].Action
		}
		if err := insertOutbox(tx.DB, cfg, action, meta, next.Document); err != nil {
			return err
		}
		result = cfg
		return nil
	})
	if err != nil {
		return domain.FamilyConfig{}, err
	}
	return result, nil
}

func encodeConfig(cfg domain.FamilyConfig) (configModel, error) {
	// Analytics live in their own tables.
	doc := cfg.Clone()
	doc.Analytics = domain.Analytics{}
	raw, err := json.Marshal(doc)
	if err != nil {
		return configModel{}, fmt.Errorf("marshal validation config: %w", err)
	}
	return configModel{
		FamilyID:        cfg.FamilyID,
		StrictnessLevel: string(cfg.StrictnessLevel),
		IsEnabled:       cfg.IsEnabled,
		Version:         cfg.Version,
		Document:        string(raw),
		CreatedBy:       cfg.CreatedBy,
		UpdatedBy:       cfg.UpdatedBy,
		CreatedAt:       cfg.CreatedAt.UTC(),
		UpdatedAt:       cfg.UpdatedAt.UTC(),
	}, nil
}

func decodeConfig(model configModel) (domain.FamilyConfig, error) {
	var cfg domain.FamilyConfig
	if err := json.Unmarshal([]byte(model.Document), &cfg); err != nil {
		return domain.FamilyConfig{}, fmt.Errorf("decode validation config %s: %w", model.FamilyID, err)
	}
	cfg.FamilyID = model.FamilyID
	cfg.Version = model.Version
	return cfg, nil
}

func insertOutbox(tx *gorm.DB, cfg domain.FamilyConfig, action string, meta domain.ChangeMetadata, document string) error {
	envelope := domain.EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     domain.EventType(action),
		SchemaVersion: domain.CurrentEventSchemaVersion,
		FamilyID:      cfg.FamilyID,
		ConfigVersion: cfg.Version,
		OccurredAt:    meta.OccurredAt.UTC(),
		CorrelationID: meta.CorrelationID,
		Actor:         meta.Actor,
		Source:        meta.Source,
		Payload:       json.RawMessage(document),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	outbox := outboxEventModel{
		EventID:       envelope.EventID,
		FamilyID:      cfg.FamilyID,
		Topic:         domain.ChangeTopic(cfg.FamilyID, action),
		PayloadJSON:   string(payload),
		Status:        "pending",
		NextAttemptAt: envelope.OccurredAt,
		CreatedAt:     envelope.OccurredAt,
	}
	if err := tx.Create(&outbox).Error; err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/atvirokodosprendimai/chorerules/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
	"gorm.io/gorm"
)

type PresetRepository struct {
	db *gormsqlite.DB
}

func NewPresetRepository(db *gormsqlite.DB) *PresetRepository {
	return &PresetRepository{db: db}
}

func (r *PresetRepository) Create(ctx context.Context, preset domain.Preset) (domain.Preset, error) {
	model, err := toPresetModel(preset)
	if err != nil {
		return domain.Preset{}, err
	}
	err = r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return domain.Preset{}, fmt.Errorf("insert preset: %w", err)
	}
	return preset, nil
}

func (r *PresetRepository) Get(ctx context.Context, id string) (domain.Preset, error) {
	var model presetModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("id = ?", id).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Preset{}, domain.ErrPresetNotFound
		}
		return domain.Preset{}, fmt.Errorf("get preset: %w", err)
	}
	return fromPresetModel(model)
}

func (r *PresetRepository) ListVisible(ctx context.Context, familyID string) ([]domain.Preset, error) {
	var rows []presetModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("owner_family_id = ? OR is_public = ?", familyID, true).
			Order("created_at ASC").
			Order("id ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].OwnerFamilyID == familyID && rows[j].OwnerFamilyID != familyID
	})

	result := make([]domain.Preset, 0, len(rows))
	for _, row := range rows {
		p, err := fromPresetModel(row)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

func (r *PresetRepository) FindPublicByName(ctx context.Context, name string) (domain.Preset, error) {
	var model presetModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("is_public = ? AND name = ?", true, name).
			Order("created_at ASC").
			First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Preset{}, domain.ErrPresetNotFound
		}
		return domain.Preset{}, fmt.Errorf("find public preset: %w", err)
	}
	return fromPresetModel(model)
}

func (r *PresetRepository) IncrementUsage(ctx context.Context, id string) error {
	var affected int64
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Model(&presetModel{}).Where("id = ?", id).
			Update("usage_count", gorm.Expr("usage_count + 1"))
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return fmt.Errorf("increment preset usage: %w", err)
	}
	if affected == 0 {
		return domain.ErrPresetNotFound
	}
	return nil
}

func toPresetModel(p domain.Preset) (presetModel, error) {
	cfg, err := json.Marshal(p.Config)
	if err != nil {
		return presetModel{}, fmt.Errorf("marshal preset config: %w", err)
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return presetModel{
		ID:            p.ID,
		OwnerFamilyID: p.OwnerFamilyID,
		Name:          p.Name,
		Description:   p.Description,
		TagsJSON:      string(mustJSON(tags)),
		IsPublic:      p.IsPublic,
		ConfigJSON:    string(cfg),
		UsageCount:    p.UsageCount,
		RevisionOf:    p.RevisionOf,
		CreatedBy:     p.CreatedBy,
		CreatedAt:     p.CreatedAt.UTC(),
	}, nil
}

func fromPresetModel(m presetModel) (domain.Preset, error) {
	p := domain.Preset{
		ID:            m.ID,
		OwnerFamilyID: m.OwnerFamilyID,
		Name:          m.Name,
		Description:   m.Description,
		IsPublic:      m.IsPublic,
		UsageCount:    m.UsageCount,
		RevisionOf:    m.RevisionOf,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
	}
	if err := json.Unmarshal([]byte(m.TagsJSON), &p.Tags); err != nil {
		return domain.Preset{}, fmt.Errorf("decode preset %s tags: %w", m.ID, err)
	}
	if len(p.Tags) == 0 {
		p.Tags = nil
	}
	if err := json.Unmarshal([]byte(m.ConfigJSON), &p.Config); err != nil {
		return domain.Preset{}, fmt.Errorf("decode preset %s config: %w", m.ID, err)
	}
	return p, nil
}

package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/atvirokodosprendimai/chorerules/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnalyticsRepository struct {
	db *gormsqlite.DB
}

func NewAnalyticsRepository(db *gormsqlite.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Apply adds delta to the stored counters. Counters are only ever incremented
// in SQL so concurrent flushes cannot lose updates.
func (r *AnalyticsRepository) Apply(ctx context.Context, familyID string, delta domain.AnalyticsDelta) error {
	if delta.IsZero() {
		return nil
	}
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		row := analyticsModel{
			FamilyID:          familyID,
			TotalValidations:  delta.Validations,
			FailedValidations: delta.Failures,
		}
		updates := map[string]any{
			"total_validations":  gorm.Expr("total_validations + ?", delta.Validations),
			"failed_validations": gorm.Expr("failed_validations + ?", delta.Failures),
		}
		if !delta.At.IsZero() {
			at := delta.At.UTC()
			row.LastValidatedAt = &at
			updates["last_validated_at"] = gorm.Expr("MAX(COALESCE(last_validated_at, ?), ?)", at, at)
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "family_id"}},
			DoUpdates: clause.Assignments(updates),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("upsert analytics: %w", err)
		}

		fields := make([]string, 0, len(delta.FieldErrors))
		for field := range delta.FieldErrors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			n := delta.FieldErrors[field]
			if n == 0 {
				continue
			}
			counter := fieldErrorModel{FamilyID: familyID, Field: field, Count: n}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "family_id"}, {Name: "field"}},
				DoUpdates: clause.Assignments(map[string]any{"count": gorm.Expr("count + ?", n)}),
			}).Create(&counter).Error; err != nil {
				return fmt.Errorf("upsert field error count: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

func (r *AnalyticsRepository) Get(ctx context.Context, familyID string) (domain.Analytics, error) {
	var (
		row      analyticsModel
		counters []fieldErrorModel
		missing  bool
	)
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Where("family_id = ?", familyID).First(&row).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			missing = true
		}
		return tx.Where("family_id = ?", familyID).Order("field ASC").Find(&counters).Error
	})
	if err != nil {
		return domain.Analytics{}, fmt.Errorf("get analytics: %w", err)
	}

	out := domain.Analytics{}
	if !missing {
		out.TotalValidations = row.TotalValidations
		out.FailedValidations = row.FailedValidations
		out.LastValidatedAt = row.LastValidatedAt
	}
	if len(counters) > 0 {
		out.FieldErrorCounts = make(map[string]int64, len(counters))
		for _, c := range counters {
			out.FieldErrorCounts[c.Field] = c.Count
		}
	}
	return out, nil
}

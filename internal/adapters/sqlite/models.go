package sqlite

import (
	"encoding/json"
	"time"
)

type configModel struct {
	FamilyID        string    `gorm:"column:family_id;primaryKey"`
	StrictnessLevel string    `gorm:"column:strictness_level;not null"`
	IsEnabled       bool      `gorm:"column:is_enabled;not null"`
	Version         int64     `gorm:"column:version;not null"`
	Document        string    `gorm:"column:document;not null"`
	CreatedBy       string    `gorm:"column:created_by;not null"`
	UpdatedBy       string    `gorm:"column:updated_by;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;not null"`
	UpdatedAt       time.Time `gorm:"column:updated_at;not null"`
}

func (configModel) TableName() string {
	return "family_validation_configs"
}

type presetModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	OwnerFamilyID string    `gorm:"column:owner_family_id;not null"`
	Name          string    `gorm:"column:name;not null"`
	Description   string    `gorm:"column:description;not null"`
	TagsJSON      string    `gorm:"column:tags_json;not null"`
	IsPublic      bool      `gorm:"column:is_public;not null"`
	ConfigJSON    string    `gorm:"column:config_json;not null"`
	UsageCount    int64     `gorm:"column:usage_count;not null"`
	RevisionOf    string    `gorm:"column:revision_of;not null"`
	CreatedBy     string    `gorm:"column:created_by;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
}

func (presetModel) TableName() string {
	return "validation_presets"
}

type analyticsModel struct {
	FamilyID          string     `gorm:"column:family_id;primaryKey"`
	TotalValidations  int64      `gorm:"column:total_validations;not null"`
	FailedValidations int64      `gorm:"column:failed_validations;not null"`
	LastValidatedAt   *time.Time `gorm:"column:last_validated_at"`
}

func (analyticsModel) TableName() string {
	return "family_validation_analytics"
}

type fieldErrorModel struct {
	FamilyID string `gorm:"column:family_id;primaryKey"`
	Field    string `gorm:"column:field;primaryKey"`
	Count    int64  `gorm:"column:count;not null"`
}

func (fieldErrorModel) TableName() string {
	return "field_error_counts"
}

type outboxEventModel struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	EventID       string     `gorm:"column:event_id;not null"`
	FamilyID      string     `gorm:"column:family_id;not null"`
	Topic         string     `gorm:"column:topic;not null"`
	PayloadJSON   string     `gorm:"column:payload_json;not null"`
	Status        string     `gorm:"column:status;not null"`
	Attempts      int        `gorm:"column:attempts;not null"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null"`
	LastError     string     `gorm:"column:last_error;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	DispatchedAt  *time.Time `gorm:"column:dispatched_at"`
}

func (outboxEventModel) TableName() string {
	return "outbox_events"
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

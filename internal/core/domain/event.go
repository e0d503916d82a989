package domain

import (
	"encoding/json"
	"time"
)

const CurrentEventSchemaVersion = 1

// History actions and change-feed event types.
const (
	ActionCreated       = "created"
	ActionUpdated       = "updated"
	ActionReset         = "reset"
	ActionPresetApplied = "preset_applied"

	AggregateValidationConfig = "validation_config"
)

// EventType returns the change-feed event type for a history action.
func EventType(action string) string {
	return AggregateValidationConfig + "." + action
}

// ChangeTopic is the change-feed topic a family's events for action go to.
func ChangeTopic(familyID, action string) string {
	return "families." + familyID + "." + EventType(action)
}

// ChangeMetadata describes who changed a configuration and why.
type ChangeMetadata struct {
	Actor         string
	Source        string
	RequestID     string
	CorrelationID string
	OccurredAt    time.Time
}

func (m ChangeMetadata) Normalize() ChangeMetadata {
	if m.Actor == "" {
		m.Actor = "api"
	}
	if m.Source == "" {
		m.Source = "api"
	}
	if m.OccurredAt.IsZero() {
		m.OccurredAt = time.Now().UTC()
	}
	return m
}

type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	FamilyID      string          `json:"family_id"`
	ConfigVersion int64           `json:"config_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Actor         string          `json:"actor"`
	Source        string          `json:"source"`
	Payload       json.RawMessage `json:"payload"`
}

type OutboxEvent struct {
	ID            int64
	EventID       string
	FamilyID      string
	Topic         string
	PayloadJSON   json.RawMessage
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DispatchedAt  *time.Time
}

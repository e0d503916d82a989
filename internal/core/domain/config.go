package domain

import (
	"encoding/json"
	"time"
)

const (
	DefaultDebounce     = 300 * time.Millisecond
	DefaultHistoryLimit = 50
	maxDebounceMs       = 10000
)

// RuleConfig holds the configurable parameters of one field rule.
// A nil bound means the dimension is not configured.
type RuleConfig struct {
	Enabled       bool     `json:"enabled"`
	Required      bool     `json:"required"`
	MinLength     *int     `json:"minLength,omitempty"`
	MaxLength     *int     `json:"maxLength,omitempty"`
	Min           *float64 `json:"min,omitempty"`
	Max           *float64 `json:"max,omitempty"`
	CustomMessage string   `json:"customMessage,omitempty"`
}

func (c RuleConfig) HasLengthBounds() bool {
	return c.MinLength != nil || c.MaxLength != nil
}

func (c RuleConfig) HasNumericBounds() bool {
	return c.Min != nil || c.Max != nil
}

func (c *RuleConfig) clone() *RuleConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.MinLength = cloneInt(c.MinLength)
	out.MaxLength = cloneInt(c.MaxLength)
	out.Min = cloneFloat(c.Min)
	out.Max = cloneFloat(c.Max)
	return &out
}

type CrossFieldConfig struct {
	Enabled       bool   `json:"enabled"`
	CustomMessage string `json:"customMessage,omitempty"`
}

func (c *CrossFieldConfig) clone() *CrossFieldConfig {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

// RuleBundle is the read view the rule compiler uses over a category.
type RuleBundle interface {
	Rule(field string) *RuleConfig
	CrossField(name string) *CrossFieldConfig
}

type ChoreRules struct {
	Title               *RuleConfig       `json:"title,omitempty"`
	Description         *RuleConfig       `json:"description,omitempty"`
	Points              *RuleConfig       `json:"points,omitempty"`
	FrequencyDays       *RuleConfig       `json:"frequencyDays,omitempty"`
	CooldownHours       *RuleConfig       `json:"cooldownHours,omitempty"`
	DueDate             *RuleConfig       `json:"dueDate,omitempty"`
	CooldownVsFrequency *CrossFieldConfig `json:"cooldownVsFrequency,omitempty"`
}

func (r *ChoreRules) Rule(field string) *RuleConfig {
	switch field {
	case FieldTitle:
		return r.Title
	case FieldDescription:
		return r.Description
	case FieldPoints:
		return r.Points
	case FieldFrequencyDays:
		return r.FrequencyDays
	case FieldCooldownHours:
		return r.CooldownHours
	case FieldDueDate:
		return r.DueDate
	}
	return nil
}

func (r *ChoreRules) CrossField(name string) *CrossFieldConfig {
	if name == CrossCooldownVsFrequency {
		return r.CooldownVsFrequency
	}
	return nil
}

func (r *ChoreRules) clone() *ChoreRules {
	if r == nil {
		return nil
	}
	return &ChoreRules{
		Title:               r.Title.clone(),
		Description:         r.Description.clone(),
		Points:              r.Points.clone(),
		FrequencyDays:       r.FrequencyDays.clone(),
		CooldownHours:       r.CooldownHours.clone(),
		DueDate:             r.DueDate.clone(),
		CooldownVsFrequency: r.CooldownVsFrequency.clone(),
	}
}

type MemberRules struct {
	DisplayName *RuleConfig `json:"displayName,omitempty"`
	Email       *RuleConfig `json:"email,omitempty"`
	Age         *RuleConfig `json:"age,omitempty"`
}

func (r *MemberRules) Rule(field string) *RuleConfig {
	switch field {
	case FieldDisplayName:
		return r.DisplayName
	case FieldEmail:
		return r.Email
	case FieldAge:
		return r.Age
	}
	return nil
}

func (r *MemberRules) CrossField(string) *CrossFieldConfig {
	return nil
}

func (r *MemberRules) clone() *MemberRules {
	if r == nil {
		return nil
	}
	return &MemberRules{
		DisplayName: r.DisplayName.clone(),
		Email:       r.Email.clone(),
		Age:         r.Age.clone(),
	}
}

type RewardRules struct {
	Name                *RuleConfig       `json:"name,omitempty"`
	Description         *RuleConfig       `json:"description,omitempty"`
	Cost                *RuleConfig       `json:"cost,omitempty"`
	Quantity            *RuleConfig       `json:"quantity,omitempty"`
	PerMemberLimit      *RuleConfig       `json:"perMemberLimit,omitempty"`
	ExpiresAt           *RuleConfig       `json:"expiresAt,omitempty"`
	LimitWithinQuantity *CrossFieldConfig `json:"limitWithinQuantity,omitempty"`
}

func (r *RewardRules) Rule(field string) *RuleConfig {
	switch field {
	case FieldName:
		return r.Name
	case FieldDescription:
		return r.Description
	case FieldCost:
		return r.Cost
	case FieldQuantity:
		return r.Quantity
	case FieldPerMemberLimit:
		return r.PerMemberLimit
	case FieldExpiresAt:
		return r.ExpiresAt
	}
	return nil
}

func (r *RewardRules) CrossField(name string) *CrossFieldConfig {
	if name == CrossLimitWithinQuantity {
		return r.LimitWithinQuantity
	}
	return nil
}

func (r *RewardRules) clone() *RewardRules {
	if r == nil {
		return nil
	}
	return &RewardRules{
		Name:                r.Name.clone(),
		Description:         r.Description.clone(),
		Cost:                r.Cost.clone(),
		Quantity:            r.Quantity.clone(),
		PerMemberLimit:      r.PerMemberLimit.clone(),
		ExpiresAt:           r.ExpiresAt.clone(),
		LimitWithinQuantity: r.LimitWithinQuantity.clone(),
	}
}

type GlobalSettings struct {
	DebounceMs            int  `json:"debounceMs"`
	ShowWarnings          bool `json:"showWarnings"`
	CharacterCountEnabled bool `json:"characterCountEnabled"`
	HintsEnabled          bool `json:"hintsEnabled"`
}

// Debounce returns the configured debounce interval, or DefaultDebounce when unset.
func (g GlobalSettings) Debounce() time.Duration {
	if g.DebounceMs <= 0 {
		return DefaultDebounce
	}
	return time.Duration(g.DebounceMs) * time.Millisecond
}

type HistoryEntry struct {
	Version int64     `json:"version"`
	Action  string    `json:"action"`
	Actor   string    `json:"actor"`
	At      time.Time `json:"at"`
	Summary string    `json:"summary,omitempty"`
}

// FamilyConfig is the per-family validation configuration document.
type FamilyConfig struct {
	FamilyID        string            `json:"familyId"`
	StrictnessLevel StrictnessLevel   `json:"strictnessLevel"`
	IsEnabled       bool              `json:"isEnabled"`
	ChoreRules      *ChoreRules       `json:"choreRules,omitempty"`
	MemberRules     *MemberRules      `json:"memberRules,omitempty"`
	RewardRules     *RewardRules      `json:"rewardRules,omitempty"`
	GlobalSettings  GlobalSettings    `json:"globalSettings"`
	CustomMessages  map[string]string `json:"customMessages,omitempty"`
	Version         int64             `json:"version"`
	History         []HistoryEntry    `json:"history,omitempty"`
	Analytics       Analytics         `json:"analytics"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	CreatedBy       string            `json:"createdBy"`
	UpdatedBy       string            `json:"updatedBy,omitempty"`
}

// Bundle returns the rule bundle for an entity, or nil when the category is absent.
func (c *FamilyConfig) Bundle(entity Entity) RuleBundle {
	if c == nil {
		return nil
	}
	switch entity {
	case EntityChore:
		if c.ChoreRules != nil {
			return c.ChoreRules
		}
	case EntityMember:
		if c.MemberRules != nil {
			return c.MemberRules
		}
	case EntityReward:
		if c.RewardRules != nil {
			return c.RewardRules
		}
	}
	return nil
}

// Clone returns a deep copy so callers can work on a point-in-time snapshot.
func (c FamilyConfig) Clone() FamilyConfig {
	out := c
	out.ChoreRules = c.ChoreRules.clone()
	out.MemberRules = c.MemberRules.clone()
	out.RewardRules = c.RewardRules.clone()
	if c.CustomMessages != nil {
		out.CustomMessages = make(map[string]string, len(c.CustomMessages))
		for k, v := range c.CustomMessages {
			out.CustomMessages[k] = v
		}
	}
	if c.History != nil {
		out.History = append([]HistoryEntry(nil), c.History...)
	}
	out.Analytics = c.Analytics.clone()
	return out
}

// Bump advances the version and appends a history entry, evicting the oldest
// entries beyond limit.
func (c *FamilyConfig) Bump(action, actor, summary string, at time.Time, limit int) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	c.Version++
	c.UpdatedAt = at
	c.UpdatedBy = actor
	c.History = append(c.History, HistoryEntry{
		Version: c.Version,
		Action:  action,
		Actor:   actor,
		At:      at,
		Summary: summary,
	})
	if over := len(c.History) - limit; over > 0 {
		c.History = append([]HistoryEntry(nil), c.History[over:]...)
	}
}

// UnmarshalJSON decodes each rule category on its own so that a missing or
// malformed category leaves only that category absent. Inside a category a
// malformed field leaves only that field absent.
func (c *FamilyConfig) UnmarshalJSON(data []byte) error {
	type plain FamilyConfig
	aux := struct {
		*plain
		ChoreRules  json.RawMessage `json:"choreRules"`
		MemberRules json.RawMessage `json:"memberRules"`
		RewardRules json.RawMessage `json:"rewardRules"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.ChoreRules = decodeBundle[ChoreRules](aux.ChoreRules)
	c.MemberRules = decodeBundle[MemberRules](aux.MemberRules)
	c.RewardRules = decodeBundle[RewardRules](aux.RewardRules)
	return nil
}

// decodeBundle decodes a category field by field. A field that does not decode
// is left nil and falls back to its base rule; its siblings keep their values.
func decodeBundle[T any](raw json.RawMessage) *T {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	var out T
	for name, value := range fields {
		one, err := json.Marshal(map[string]json.RawMessage{name: value})
		if err != nil {
			continue
		}
		var check T
		if err := json.Unmarshal(one, &check); err != nil {
			continue
		}
		_ = json.Unmarshal(one, &out)
	}
	return &out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

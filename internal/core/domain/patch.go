package domain

import (
	"fmt"
	"sort"
	"strings"
)

// RuleConfigPatch carries the fields of a RuleConfig that an update sets.
type RuleConfigPatch struct {
	Enabled       *bool    `json:"enabled,omitempty"`
	Required      *bool    `json:"required,omitempty"`
	MinLength     *int     `json:"minLength,omitempty"`
	MaxLength     *int     `json:"maxLength,omitempty"`
	Min           *float64 `json:"min,omitempty"`
	Max           *float64 `json:"max,omitempty"`
	CustomMessage *string  `json:"customMessage,omitempty"`
}

type CrossFieldPatch struct {
	Enabled       *bool   `json:"enabled,omitempty"`
	CustomMessage *string `json:"customMessage,omitempty"`
}

type ChoreRulesPatch struct {
	Title               *RuleConfigPatch `json:"title,omitempty"`
	Description         *RuleConfigPatch `json:"description,omitempty"`
	Points              *RuleConfigPatch `json:"points,omitempty"`
	FrequencyDays       *RuleConfigPatch `json:"frequencyDays,omitempty"`
	CooldownHours       *RuleConfigPatch `json:"cooldownHours,omitempty"`
	DueDate             *RuleConfigPatch `json:"dueDate,omitempty"`
	CooldownVsFrequency *CrossFieldPatch `json:"cooldownVsFrequency,omitempty"`
}

type MemberRulesPatch struct {
	DisplayName *RuleConfigPatch `json:"displayName,omitempty"`
	Email       *RuleConfigPatch `json:"email,omitempty"`
	Age         *RuleConfigPatch `json:"age,omitempty"`
}

type RewardRulesPatch struct {
	Name                *RuleConfigPatch `json:"name,omitempty"`
	Description         *RuleConfigPatch `json:"description,omitempty"`
	Cost                *RuleConfigPatch `json:"cost,omitempty"`
	Quantity            *RuleConfigPatch `json:"quantity,omitempty"`
	PerMemberLimit      *RuleConfigPatch `json:"perMemberLimit,omitempty"`
	ExpiresAt           *RuleConfigPatch `json:"expiresAt,omitempty"`
	LimitWithinQuantity *CrossFieldPatch `json:"limitWithinQuantity,omitempty"`
}

type GlobalSettingsPatch struct {
	DebounceMs            *int  `json:"debounceMs,omitempty"`
	ShowWarnings          *bool `json:"showWarnings,omitempty"`
	CharacterCountEnabled *bool `json:"characterCountEnabled,omitempty"`
	HintsEnabled          *bool `json:"hintsEnabled,omitempty"`
}

// ConfigPatch is a partial FamilyConfig. A nil entry in CustomMessages removes
// that override.
type ConfigPatch struct {
	StrictnessLevel *StrictnessLevel     `json:"strictnessLevel,omitempty"`
	IsEnabled       *bool                `json:"isEnabled,omitempty"`
	ChoreRules      *ChoreRulesPatch     `json:"choreRules,omitempty"`
	MemberRules     *MemberRulesPatch    `json:"memberRules,omitempty"`
	RewardRules     *RewardRulesPatch    `json:"rewardRules,omitempty"`
	GlobalSettings  *GlobalSettingsPatch `json:"globalSettings,omitempty"`
	CustomMessages  map[string]*string   `json:"customMessages,omitempty"`
}

func (p ConfigPatch) TouchesRules() bool {
	return p.ChoreRules != nil || p.MemberRules != nil || p.RewardRules != nil
}

// Summary lists the top-level sections the patch changes, for history entries.
func (p ConfigPatch) Summary() string {
	var parts []string
	if p.StrictnessLevel != nil {
		parts = append(parts, "strictnessLevel="+string(*p.StrictnessLevel))
	}
	if p.IsEnabled != nil {
		parts = append(parts, fmt.Sprintf("isEnabled=%t", *p.IsEnabled))
	}
	if p.ChoreRules != nil {
		parts = append(parts, "choreRules")
	}
	if p.MemberRules != nil {
		parts = append(parts, "memberRules")
	}
	if p.RewardRules != nil {
		parts = append(parts, "rewardRules")
	}
	if p.GlobalSettings != nil {
		parts = append(parts, "globalSettings")
	}
	if len(p.CustomMessages) > 0 {
		keys := make([]string, 0, len(p.CustomMessages))
		for k := range p.CustomMessages {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts = append(parts, "customMessages("+strings.Join(keys, ",")+")")
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, "; ")
}

// Apply merges p into a copy of c. c is never modified. Rule edits without an
// explicit strictness level move the result to the custom level.
func (c FamilyConfig) Apply(p ConfigPatch) (FamilyConfig, error) {
	out := c.Clone()

	if p.StrictnessLevel != nil {
		level, err := ParseStrictness(string(*p.StrictnessLevel))
		if err != nil {
			return FamilyConfig{}, err
		}
		out.StrictnessLevel = level
	} else if p.TouchesRules() {
		out.StrictnessLevel = StrictnessCustom
	}
	if p.IsEnabled != nil {
		out.IsEnabled = *p.IsEnabled
	}

	var err error
	if out.ChoreRules, err = mergeChoreRules(out.ChoreRules, p.ChoreRules); err != nil {
		return FamilyConfig{}, err
	}
	if out.MemberRules, err = mergeMemberRules(out.MemberRules, p.MemberRules); err != nil {
		return FamilyConfig{}, err
	}
	if out.RewardRules, err = mergeRewardRules(out.RewardRules, p.RewardRules); err != nil {
		return FamilyConfig{}, err
	}
	if out.GlobalSettings, err = mergeGlobalSettings(out.GlobalSettings, p.GlobalSettings); err != nil {
		return FamilyConfig{}, err
	}

	for field, msg := range p.CustomMessages {
		if strings.TrimSpace(field) == "" {
			return FamilyConfig{}, fmt.Errorf("%w: empty custom message key", ErrInvalidConfig)
		}
		if msg == nil {
			delete(out.CustomMessages, field)
			continue
		}
		if out.CustomMessages == nil {
			out.CustomMessages = make(map[string]string)
		}
		out.CustomMessages[field] = *msg
	}
	return out, nil
}

func mergeChoreRules(base *ChoreRules, p *ChoreRulesPatch) (*ChoreRules, error) {
	if p == nil {
		return base, nil
	}
	out := base
	if out == nil {
		out = &ChoreRules{}
	}
	var err error
	if out.Title, err = mergeRule("choreRules.title", out.Title, p.Title); err != nil {
		return nil, err
	}
	if out.Description, err = mergeRule("choreRules.description", out.Description, p.Description); err != nil {
		return nil, err
	}
	if out.Points, err = mergeRule("choreRules.points", out.Points, p.Points); err != nil {
		return nil, err
	}
	if out.FrequencyDays, err = mergeRule("choreRules.frequencyDays", out.FrequencyDays, p.FrequencyDays); err != nil {
		return nil, err
	}
	if out.CooldownHours, err = mergeRule("choreRules.cooldownHours", out.CooldownHours, p.CooldownHours); err != nil {
		return nil, err
	}
	if out.DueDate, err = mergeRule("choreRules.dueDate", out.DueDate, p.DueDate); err != nil {
		return nil, err
	}
	out.CooldownVsFrequency = mergeCrossField(out.CooldownVsFrequency, p.CooldownVsFrequency)
	return out, nil
}

func mergeMemberRules(base *MemberRules, p *MemberRulesPatch) (*MemberRules, error) {
	if p == nil {
		return base, nil
	}
	out := base
	if out == nil {
		out = &MemberRules{}
	}
	var err error
	if out.DisplayName, err = mergeRule("memberRules.displayName", out.DisplayName, p.DisplayName); err != nil {
		return nil, err
	}
	if out.Email, err = mergeRule("memberRules.email", out.Email, p.Email); err != nil {
		return nil, err
	}
	if out.Age, err = mergeRule("memberRules.age", out.Age, p.Age); err != nil {
		return nil, err
	}
	return out, nil
}

func mergeRewardRules(base *RewardRules, p *RewardRulesPatch) (*RewardRules, error) {
	if p == nil {
		return base, nil
	}
	out := base
	if out == nil {
		out = &RewardRules{}
	}
	var err error
	if out.Name, err = mergeRule("rewardRules.name", out.Name, p.Name); err != nil {
		return nil, err
	}
	if out.Description, err = mergeRule("rewardRules.description", out.Description, p.Description); err != nil {
		return nil, err
	}
	if out.Cost, err = mergeRule("rewardRules.cost", out.Cost, p.Cost); err != nil {
		return nil, err
	}
	if out.Quantity, err = mergeRule("rewardRules.quantity", out.Quantity, p.Quantity); err != nil {
		return nil, err
	}
	if out.PerMemberLimit, err = mergeRule("rewardRules.perMemberLimit", out.PerMemberLimit, p.PerMemberLimit); err != nil {
		return nil, err
	}
	if out.ExpiresAt, err = mergeRule("rewardRules.expiresAt", out.ExpiresAt, p.ExpiresAt); err != nil {
		return nil, err
	}
	out.LimitWithinQuantity = mergeCrossField(out.LimitWithinQuantity, p.LimitWithinQuantity)
	return out, nil
}

// mergeRule applies p over base. A rule first configured by a patch starts enabled.
func mergeRule(path string, base *RuleConfig, p *RuleConfigPatch) (*RuleConfig, error) {
	if p == nil {
		return base, nil
	}
	out := RuleConfig{Enabled: true}
	if base != nil {
		out = *base
	}
	if p.Enabled != nil {
		out.Enabled = *p.Enabled
	}
	if p.Required != nil {
		out.Required = *p.Required
	}
	if p.MinLength != nil {
		out.MinLength = cloneInt(p.MinLength)
	}
	if p.MaxLength != nil {
		out.MaxLength = cloneInt(p.MaxLength)
	}
	if p.Min != nil {
		out.Min = cloneFloat(p.Min)
	}
	if p.Max != nil {
		out.Max = cloneFloat(p.Max)
	}
	if p.CustomMessage != nil {
		out.CustomMessage = *p.CustomMessage
	}
	if err := checkRule(path, out); err != nil {
		return nil, err
	}
	return &out, nil
}

func checkRule(path string, c RuleConfig) error {
	if c.MinLength != nil && *c.MinLength < 0 {
		return fmt.Errorf("%w: %s.minLength must not be negative", ErrInvalidConfig, path)
	}
	if c.MaxLength != nil && *c.MaxLength < 0 {
		return fmt.Errorf("%w: %s.maxLength must not be negative", ErrInvalidConfig, path)
	}
	if c.MinLength != nil && c.MaxLength != nil && *c.MinLength > *c.MaxLength {
		return fmt.Errorf("%w: %s.minLength exceeds maxLength", ErrInvalidConfig, path)
	}
	if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
		return fmt.Errorf("%w: %s.min exceeds max", ErrInvalidConfig, path)
	}
	return nil
}

func mergeCrossField(base *CrossFieldConfig, p *CrossFieldPatch) *CrossFieldConfig {
	if p == nil {
		return base
	}
	out := CrossFieldConfig{Enabled: true}
	if base != nil {
		out = *base
	}
	if p.Enabled != nil {
		out.Enabled = *p.Enabled
	}
	if p.CustomMessage != nil {
		out.CustomMessage = *p.CustomMessage
	}
	return &out
}

func mergeGlobalSettings(base GlobalSettings, p *GlobalSettingsPatch) (GlobalSettings, error) {
	if p == nil {
		return base, nil
	}
	if p.DebounceMs != nil {
		if *p.DebounceMs < 1 || *p.DebounceMs > maxDebounceMs {
			return GlobalSettings{}, fmt.Errorf("%w: globalSettings.debounceMs must be within 1..%d", ErrInvalidConfig, maxDebounceMs)
		}
		base.DebounceMs = *p.DebounceMs
	}
	if p.ShowWarnings != nil {
		base.ShowWarnings = *p.ShowWarnings
	}
	if p.CharacterCountEnabled != nil {
		base.CharacterCountEnabled = *p.CharacterCountEnabled
	}
	if p.HintsEnabled != nil {
		base.HintsEnabled = *p.HintsEnabled
	}
	return base, nil
}

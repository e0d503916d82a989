package domain

import "time"

type templateBounds struct {
	titleMin               int
	titleMax               int
	descriptionMax         int
	descriptionRequired    bool
	pointsMax              float64
	frequencyMax           float64
	cooldownMax            float64
	displayNameMin         int
	displayNameMax         int
	emailRequired          bool
	ageMax                 float64
	rewardNameMin          int
	rewardNameMax          int
	rewardCostMax          float64
	rewardQuantityRequired bool
}

var templates = map[StrictnessLevel]templateBounds{
	StrictnessRelaxed: {
		titleMin:       1,
		titleMax:       100,
		descriptionMax: 1000,
		pointsMax:      1000,
		frequencyMax:   730,
		cooldownMax:    17520,
		displayNameMin: 1,
		displayNameMax: 50,
		ageMax:         150,
		rewardNameMin:  1,
		rewardNameMax:  100,
		rewardCostMax:  10000,
	},
	StrictnessNormal: {
		titleMin:       2,
		titleMax:       50,
		descriptionMax: 500,
		pointsMax:      100,
		frequencyMax:   365,
		cooldownMax:    8760,
		displayNameMin: 2,
		displayNameMax: 30,
		ageMax:         120,
		rewardNameMin:  2,
		rewardNameMax:  50,
		rewardCostMax:  1000,
	},
	StrictnessStrict: {
		titleMin:               3,
		titleMax:               40,
		descriptionMax:         300,
		descriptionRequired:    true,
		pointsMax:              50,
		frequencyMax:           180,
		cooldownMax:            4380,
		displayNameMin:         2,
		displayNameMax:         20,
		emailRequired:          true,
		ageMax:                 120,
		rewardNameMin:          3,
		rewardNameMax:          40,
		rewardCostMax:          500,
		rewardQuantityRequired: true,
	},
}

// RuleBundles groups the three category bundles of a strictness template.
type RuleBundles struct {
	Chore  *ChoreRules
	Member *MemberRules
	Reward *RewardRules
}

// Template returns fresh rule bundles for a strictness level. The custom level
// starts from the normal bounds.
func Template(level StrictnessLevel) (RuleBundles, error) {
	level, err := ParseStrictness(string(level))
	if err != nil {
		return RuleBundles{}, err
	}
	if level == StrictnessCustom {
		level = StrictnessNormal
	}
	b := templates[level]

	return RuleBundles{
		Chore: &ChoreRules{
			Title:               textRule(true, b.titleMin, b.titleMax),
			Description:         textRule(b.descriptionRequired, -1, b.descriptionMax),
			Points:              numberRule(true, 1, b.pointsMax),
			FrequencyDays:       numberRule(false, 1, b.frequencyMax),
			CooldownHours:       numberRule(false, 0, b.cooldownMax),
			DueDate:             &RuleConfig{Enabled: true},
			CooldownVsFrequency: &CrossFieldConfig{Enabled: true},
		},
		Member: &MemberRules{
			DisplayName: textRule(true, b.displayNameMin, b.displayNameMax),
			Email:       &RuleConfig{Enabled: true, Required: b.emailRequired},
			Age:         numberRule(false, 0, b.ageMax),
		},
		Reward: &RewardRules{
			Name:                textRule(true, b.rewardNameMin, b.rewardNameMax),
			Description:         textRule(b.descriptionRequired, -1, b.descriptionMax),
			Cost:                numberRule(true, 1, b.rewardCostMax),
			Quantity:            &RuleConfig{Enabled: true, Required: b.rewardQuantityRequired, Min: floatPtr(1)},
			PerMemberLimit:      &RuleConfig{Enabled: true, Min: floatPtr(1)},
			ExpiresAt:           &RuleConfig{Enabled: true},
			LimitWithinQuantity: &CrossFieldConfig{Enabled: true},
		},
	}, nil
}

// NewFamilyConfig seeds the configuration document a family gets on first access.
func NewFamilyConfig(familyID, createdBy string, level StrictnessLevel, now time.Time) (FamilyConfig, error) {
	if err := ValidateFamilyID(familyID); err != nil {
		return FamilyConfig{}, err
	}
	bundles, err := Template(level)
	if err != nil {
		return FamilyConfig{}, err
	}
	if level == "" {
		level = StrictnessNormal
	}
	if createdBy == "" {
		createdBy = "system"
	}
	cfg := FamilyConfig{
		FamilyID:        familyID,
		StrictnessLevel: level,
		IsEnabled:       true,
		ChoreRules:      bundles.Chore,
		MemberRules:     bundles.Member,
		RewardRules:     bundles.Reward,
		GlobalSettings: GlobalSettings{
			DebounceMs:            int(DefaultDebounce / time.Millisecond),
			ShowWarnings:          true,
			CharacterCountEnabled: true,
			HintsEnabled:          true,
		},
		CreatedAt: now,
		CreatedBy: createdBy,
	}
	cfg.Bump(ActionCreated, createdBy, "seeded from "+string(level)+" template", now, DefaultHistoryLimit)
	return cfg, nil
}

// ResetTo replaces the rule bundles with the template for level. Identity,
// audit fields and history are preserved.
func (c FamilyConfig) ResetTo(level StrictnessLevel) (FamilyConfig, error) {
	level, err := ParseStrictness(string(level))
	if err != nil {
		return FamilyConfig{}, err
	}
	bundles, err := Template(level)
	if err != nil {
		return FamilyConfig{}, err
	}
	out := c.Clone()
	out.StrictnessLevel = level
	out.ChoreRules = bundles.Chore
	out.MemberRules = bundles.Member
	out.RewardRules = bundles.Reward
	return out, nil
}

func textRule(required bool, minLength, maxLength int) *RuleConfig {
	rc := &RuleConfig{Enabled: true, Required: required, MaxLength: intPtr(maxLength)}
	if minLength >= 0 {
		rc.MinLength = intPtr(minLength)
	}
	return rc
}

func numberRule(required bool, lo, hi float64) *RuleConfig {
	return &RuleConfig{Enabled: true, Required: required, Min: floatPtr(lo), Max: floatPtr(hi)}
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

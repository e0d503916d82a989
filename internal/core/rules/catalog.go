package rules

import "github.com/atvirokodosprendimai/chorerules/internal/core/domain"

// Kind selects which configured dimensions apply to a field.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindEmail
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindEmail:
		return "email"
	case KindDate:
		return "date"
	}
	return "unknown"
}

// Definition binds a named library rule to the configuration field that tunes it.
type Definition struct {
	Name   string
	Entity domain.Entity
	Field  string
	Label  string
	Kind   Kind
	// Base is the rule used when no configuration applies.
	Base Rule
	// Format is the bounds-free shape check that replaces Base once the
	// configuration supplies its own bounds.
	Format Rule
	// Params describes Base in configuration terms, for hints.
	Params domain.RuleConfig
}

// Rule names exported by the library.
const (
	RuleChoreTitle           = "choreTitle"
	RuleChoreDescription     = "choreDescription"
	RuleChorePoints          = "chorePoints"
	RuleChoreFrequency       = "choreFrequency"
	RuleChoreCooldown        = "choreCooldown"
	RuleChoreDueDate         = "choreDueDate"
	RuleDisplayName          = "displayName"
	RuleEmail                = "email"
	RuleMemberAge            = "memberAge"
	RuleRewardName           = "rewardName"
	RuleRewardDescription    = "rewardDescription"
	RuleRewardCost           = "rewardCost"
	RuleRewardQuantity       = "rewardQuantity"
	RuleRewardPerMemberLimit = "rewardPerMemberLimit"
	RuleRewardExpiry         = "rewardExpiry"
	RulePositiveInteger      = "positiveInteger"
	RuleLongDescription      = "longDescription"
)

const longDescriptionThreshold = 200

var catalog = buildCatalog()

func buildCatalog() []Definition {
	text := func(name string, entity domain.Entity, field, label string, base Rule, required bool, minLen, maxLen int) Definition {
		params := domain.RuleConfig{Enabled: true, Required: required, MaxLength: intPtr(maxLen)}
		if minLen > 0 {
			params.MinLength = intPtr(minLen)
		}
		return Definition{
			Name: name, Entity: entity, Field: field, Label: label, Kind: KindText,
			Base:   base,
			Format: Pass(name),
			Params: params,
		}
	}
	integer := func(name string, entity domain.Entity, field, label string, base Rule, required bool, lo, hi *float64) Definition {
		return Definition{
			Name: name, Entity: entity, Field: field, Label: label, Kind: KindInteger,
			Base:   base,
			Format: wholeNumber(name, label),
			Params: domain.RuleConfig{Enabled: true, Required: required, Min: lo, Max: hi},
		}
	}
	date := func(name string, entity domain.Entity, field, label, message string) Definition {
		base := named(FutureDate(message), name)
		return Definition{
			Name: name, Entity: entity, Field: field, Label: label, Kind: KindDate,
			Base:   base,
			Format: base,
			Params: domain.RuleConfig{Enabled: true},
		}
	}

	email := named(Email("Please enter a valid email address"), RuleEmail)

	return []Definition{
		text(RuleChoreTitle, domain.EntityChore, domain.FieldTitle, "Chore title",
			textRange(RuleChoreTitle, "Chore title", 2, 50), true, 2, 50),
		text(RuleChoreDescription, domain.EntityChore, domain.FieldDescription, "Description",
			named(MaxLength(500, "Description must be 500 characters or less"), RuleChoreDescription), false, 0, 500),
		integer(RuleChorePoints, domain.EntityChore, domain.FieldPoints, "Points",
			integerRange(RuleChorePoints, "Points", 1, 100, true), true, floatPtr(1), floatPtr(100)),
		integer(RuleChoreFrequency, domain.EntityChore, domain.FieldFrequencyDays, "Frequency",
			integerRange(RuleChoreFrequency, "Frequency", 1, 365, false), false, floatPtr(1), floatPtr(365)),
		integer(RuleChoreCooldown, domain.EntityChore, domain.FieldCooldownHours, "Cooldown",
			integerRange(RuleChoreCooldown, "Cooldown", 0, 8760, false), false, floatPtr(0), floatPtr(8760)),
		date(RuleChoreDueDate, domain.EntityChore, domain.FieldDueDate, "Due date", "Due date must be in the future"),

		text(RuleDisplayName, domain.EntityMember, domain.FieldDisplayName, "Display name",
			textRange(RuleDisplayName, "Display name", 2, 30), true, 2, 30),
		{
			Name: RuleEmail, Entity: domain.EntityMember, Field: domain.FieldEmail, Label: "Email", Kind: KindEmail,
			Base:   email,
			Format: email,
			Params: domain.RuleConfig{Enabled: true},
		},
		integer(RuleMemberAge, domain.EntityMember, domain.FieldAge, "Age",
			integerRange(RuleMemberAge, "Age", 0, 120, false), false, floatPtr(0), floatPtr(120)),

		text(RuleRewardName, domain.EntityReward, domain.FieldName, "Reward name",
			textRange(RuleRewardName, "Reward name", 2, 50), true, 2, 50),
		text(RuleRewardDescription, domain.EntityReward, domain.FieldDescription, "Description",
			named(MaxLength(500, "Description must be 500 characters or less"), RuleRewardDescription), false, 0, 500),
		integer(RuleRewardCost, domain.EntityReward, domain.FieldCost, "Cost",
			integerRange(RuleRewardCost, "Cost", 1, 1000, true), true, floatPtr(1), floatPtr(1000)),
		integer(RuleRewardQuantity, domain.EntityReward, domain.FieldQuantity, "Quantity",
			named(PositiveInteger("Quantity must be a positive whole number"), RuleRewardQuantity), false, floatPtr(1), nil),
		integer(RuleRewardPerMemberLimit, domain.EntityReward, domain.FieldPerMemberLimit, "Limit per member",
			named(PositiveInteger("Limit per member must be a positive whole number"), RuleRewardPerMemberLimit), false, floatPtr(1), nil),
		date(RuleRewardExpiry, domain.EntityReward, domain.FieldExpiresAt, "Expiry date", "Expiry date must be in the future"),

		{
			Name: RulePositiveInteger, Label: "Value", Kind: KindInteger,
			Base:   PositiveInteger("Must be a positive whole number"),
			Format: PositiveInteger("Must be a positive whole number"),
			Params: domain.RuleConfig{Enabled: true, Min: floatPtr(1)},
		},
		{
			Name: RuleLongDescription, Label: "Description", Kind: KindText,
			Base:   named(LongText(longDescriptionThreshold, "Long descriptions may be cut off on small screens"), RuleLongDescription),
			Format: named(LongText(longDescriptionThreshold, "Long descriptions may be cut off on small screens"), RuleLongDescription),
			Params: domain.RuleConfig{Enabled: true},
		},
	}
}

// Definitions returns the library catalog in declaration order.
func Definitions() []Definition {
	return append([]Definition(nil), catalog...)
}

// Lookup finds a definition by rule name.
func Lookup(name string) (Definition, bool) {
	for _, def := range catalog {
		if def.Name == name {
			return def, true
		}
	}
	return Definition{}, false
}

// DefinitionFor finds the definition configured by an entity field.
func DefinitionFor(entity domain.Entity, field string) (Definition, bool) {
	for _, def := range catalog {
		if def.Entity == entity && def.Field == field {
			return def, true
		}
	}
	return Definition{}, false
}

// BaseRules is the unconfigured rule set.
func BaseRules() RuleSet {
	set := make(RuleSet, len(catalog))
	for _, def := range catalog {
		set[def.Name] = def.Base
	}
	return set
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

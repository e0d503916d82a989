package rules

import (
	"fmt"

	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
)

// FieldSpec is one form field with its ordered rules.
type FieldSpec struct {
	Name       string
	Definition Definition
	Rules      []Rule
	// Params are the parameters in force, zero when the rule is disabled.
	Params  domain.RuleConfig
	Enabled bool
}

// Validate returns the first failing error message and the first failing
// warning message, each empty when nothing failed.
func (f FieldSpec) Validate(value any, all Values) (errMsg, warnMsg string) {
	for _, r := range f.Rules {
		if r.IsWarning() {
			if warnMsg == "" && !r.Validate(value, all) {
				warnMsg = r.Resolve(value, all)
			}
			continue
		}
		if errMsg == "" && !r.Validate(value, all) {
			errMsg = r.Resolve(value, all)
		}
	}
	return errMsg, warnMsg
}

// Hint describes the field's constraints for display under the input.
func (f FieldSpec) Hint() string {
	if !f.Enabled {
		return ""
	}
	return hint(f.Definition.Kind, f.Params)
}

// MaxLength is the configured character limit of a text field, zero when unbounded.
func (f FieldSpec) MaxLength() int {
	if !f.Enabled || f.Definition.Kind != KindText || f.Params.MaxLength == nil {
		return 0
	}
	return *f.Params.MaxLength
}

// Form is the compiled rule layout of one entity form.
type Form struct {
	Entity     domain.Entity
	Fields     []FieldSpec
	CrossField []CrossFieldValidation
}

func (f Form) Field(name string) (FieldSpec, bool) {
	for _, spec := range f.Fields {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

func (f Form) FieldNames() []string {
	names := make([]string, 0, len(f.Fields))
	for _, spec := range f.Fields {
		names = append(names, spec.Name)
	}
	return names
}

var formFields = map[domain.Entity][]string{
	domain.EntityChore: {
		domain.FieldTitle,
		domain.FieldDescription,
		domain.FieldPoints,
		domain.FieldFrequencyDays,
		domain.FieldCooldownHours,
		domain.FieldDueDate,
	},
	domain.EntityMember: {
		domain.FieldDisplayName,
		domain.FieldEmail,
		domain.FieldAge,
	},
	domain.EntityReward: {
		domain.FieldName,
		domain.FieldDescription,
		domain.FieldCost,
		domain.FieldQuantity,
		domain.FieldPerMemberLimit,
		domain.FieldExpiresAt,
	},
}

// FormFor compiles the form of entity under cfg. A nil cfg uses base rules.
func FormFor(entity domain.Entity, cfg *domain.FamilyConfig) (Form, error) {
	fields, ok := formFields[entity]
	if !ok {
		return Form{}, fmt.Errorf("%w: %q", domain.ErrInvalidEntity, entity)
	}
	form := Form{Entity: entity}
	longText, _ := Lookup(RuleLongDescription)
	for _, name := range fields {
		def, ok := DefinitionFor(entity, name)
		if !ok {
			continue
		}
		params, enabled := Params(cfg, def)
		spec := FieldSpec{
			Name:       name,
			Definition: def,
			Rules:      []Rule{Compile(cfg, def, "")},
			Params:     params,
			Enabled:    enabled,
		}
		if name == domain.FieldDescription {
			spec.Rules = append(spec.Rules, longText.Base)
		}
		form.Fields = append(form.Fields, spec)
	}

	switch entity {
	case domain.EntityChore:
		form.CrossField = appendCrossField(form.CrossField, cfg, entity,
			CooldownVsFrequency(domain.FieldCooldownHours, domain.FieldFrequencyDays))
	case domain.EntityReward:
		form.CrossField = appendCrossField(form.CrossField, cfg, entity,
			LimitWithinQuantity(domain.FieldPerMemberLimit, domain.FieldQuantity))
	}
	return form, nil
}

func appendCrossField(list []CrossFieldValidation, cfg *domain.FamilyConfig, entity domain.Entity, v CrossFieldValidation) []CrossFieldValidation {
	if cfg == nil || !cfg.IsEnabled {
		return append(list, v)
	}
	bundle := cfg.Bundle(entity)
	if bundle == nil {
		return append(list, v)
	}
	cf := bundle.CrossField(v.Name)
	if cf == nil {
		return append(list, v)
	}
	if !cf.Enabled {
		return list
	}
	if cf.CustomMessage != "" {
		v = v.WithMessage(cf.CustomMessage)
	}
	return append(list, v)
}

func hint(kind Kind, p domain.RuleConfig) string {
	var text string
	switch kind {
	case KindText:
		switch {
		case p.MinLength != nil && p.MaxLength != nil:
			text = fmt.Sprintf("%d-%d characters", *p.MinLength, *p.MaxLength)
		case p.MinLength != nil:
			text = fmt.Sprintf("At least %d characters", *p.MinLength)
		case p.MaxLength != nil:
			text = fmt.Sprintf("Up to %d characters", *p.MaxLength)
		}
	case KindInteger:
		switch {
		case p.Min != nil && p.Max != nil:
			text = fmt.Sprintf("Whole number from %s to %s", formatNumber(*p.Min), formatNumber(*p.Max))
		case p.Min != nil:
			text = "Whole number, at least " + formatNumber(*p.Min)
		case p.Max != nil:
			text = "Whole number, at most " + formatNumber(*p.Max)
		default:
			text = "Whole number"
		}
	case KindEmail:
		text = "e.g. name@example.com"
	case KindDate:
		text = "Must be in the future"
	}
	switch {
	case p.Required && text != "":
		return "Required. " + text
	case p.Required:
		return "Required"
	}
	return text
}

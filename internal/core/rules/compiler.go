package rules

import (
	"fmt"

	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
)

// Effective returns the rule configuration that applies to def under cfg, and
// false when the base rule applies unchanged.
func Effective(cfg *domain.FamilyConfig, def Definition) (*domain.RuleConfig, bool) {
	if cfg == nil || !cfg.IsEnabled || def.Entity == "" {
		return nil, false
	}
	bundle := cfg.Bundle(def.Entity)
	if bundle == nil {
		return nil, false
	}
	rc := bundle.Rule(def.Field)
	if rc == nil {
		return nil, false
	}
	return rc, true
}

// Compile produces the effective rule for def under cfg. A non-empty override
// replaces every message the compiled rule would report.
//
// Configured rules check, in order and stopping at the first failure:
// requiredness, length bounds for text, numeric bounds for integers, and then
// the base predicate. When the configuration supplies its own bounds for a
// dimension, the base predicate's fixed bounds give way to a shape check.
func Compile(cfg *domain.FamilyConfig, def Definition, override string) Rule {
	rc, ok := Effective(cfg, def)
	if !ok {
		if override != "" {
			return def.Base.WithMessage(override)
		}
		return def.Base
	}
	if !rc.Enabled {
		return Pass(def.Name)
	}

	c := compiled{def: def, rc: *rc}
	msg := override
	if msg == "" {
		msg = rc.CustomMessage
	}
	if msg == "" && cfg.CustomMessages != nil {
		if m := cfg.CustomMessages[def.Field]; m != "" {
			msg = m
		} else if m := cfg.CustomMessages[def.Name]; m != "" {
			msg = m
		}
	}

	rule := Rule{
		Name: def.Name,
		Check: func(v any, all Values) bool {
			_, failed := c.evaluate(v, all)
			return !failed
		},
		Severity: def.Base.Severity,
	}
	if msg != "" {
		rule.Message = Static(msg)
	} else {
		rule.Message = func(v any, all Values) string {
			m, _ := c.evaluate(v, all)
			return m
		}
	}
	return rule
}

type compiled struct {
	def Definition
	rc  domain.RuleConfig
}

// evaluate returns the default message of the first failing check.
func (c compiled) evaluate(v any, all Values) (string, bool) {
	label := labelFor(c.def)
	if isBlank(v) {
		if c.rc.Required {
			return label + " is required", true
		}
		return "", false
	}

	fallback := c.def.Base
	switch c.def.Kind {
	case KindText:
		if c.rc.HasLengthBounds() {
			n := trimmedLen(v)
			if (c.rc.MinLength != nil && n < *c.rc.MinLength) || (c.rc.MaxLength != nil && n > *c.rc.MaxLength) {
				return lengthMessage(label, c.rc.MinLength, c.rc.MaxLength), true
			}
			fallback = c.def.Format
		}
	case KindInteger:
		if c.rc.HasNumericBounds() {
			if f, ok := toNumber(v); ok {
				if (c.rc.Min != nil && f < *c.rc.Min) || (c.rc.Max != nil && f > *c.rc.Max) {
					return rangeMessage(label, c.rc.Min, c.rc.Max), true
				}
			}
			fallback = c.def.Format
		}
	}

	if !fallback.Validate(v, all) {
		return fallback.Resolve(v, all), true
	}
	return "", false
}

func lengthMessage(label string, lo, hi *int) string {
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf("%s must be between %d and %d characters", label, *lo, *hi)
	case lo != nil:
		return fmt.Sprintf("%s must be at least %d characters", label, *lo)
	default:
		return fmt.Sprintf("%s must be %d characters or less", label, *hi)
	}
}

func rangeMessage(label string, lo, hi *float64) string {
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf("%s must be between %s and %s", label, formatNumber(*lo), formatNumber(*hi))
	case lo != nil:
		return fmt.Sprintf("%s must be at least %s", label, formatNumber(*lo))
	default:
		return fmt.Sprintf("%s must be at most %s", label, formatNumber(*hi))
	}
}

// CreateCustomValidationRules compiles every library rule under cfg. A nil
// configuration yields the base rules.
func CreateCustomValidationRules(cfg *domain.FamilyConfig) RuleSet {
	if cfg == nil {
		return BaseRules()
	}
	set := make(RuleSet, len(catalog))
	for _, def := range catalog {
		set[def.Name] = Compile(cfg, def, "")
	}
	return set
}

// Params returns the parameters in force for def, for hints and character
// counters. The second result is false when the rule is disabled.
func Params(cfg *domain.FamilyConfig, def Definition) (domain.RuleConfig, bool) {
	rc, ok := Effective(cfg, def)
	if !ok {
		return def.Params, true
	}
	return *rc, rc.Enabled
}

package rules

import (
	"fmt"

	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
)

// CrossFieldValidation is a check spanning several fields whose failure is
// reported against Target.
type CrossFieldValidation struct {
	Name     string
	Fields   []string
	Target   string
	Severity Severity
	// Check returns the failure message and true when the values conflict.
	// Values that cannot be compared yet must not fail.
	Check func(all Values) (string, bool)
}

// Evaluate runs the check. A panicking check reports no failure.
func (c CrossFieldValidation) Evaluate(all Values) (msg string, failed bool) {
	if c.Check == nil {
		return "", false
	}
	defer func() {
		if recover() != nil {
			msg, failed = "", false
		}
	}()
	return c.Check(all)
}

// Involves reports whether field participates in the check.
func (c CrossFieldValidation) Involves(field string) bool {
	for _, f := range c.Fields {
		if f == field {
			return true
		}
	}
	return false
}

func (c CrossFieldValidation) WithMessage(msg string) CrossFieldValidation {
	check := c.Check
	c.Check = func(all Values) (string, bool) {
		if check == nil {
			return "", false
		}
		if _, failed := check(all); failed {
			return msg, true
		}
		return "", false
	}
	return c
}

// CooldownVsFrequency fails when a cooldown in hours spans more days than the
// frequency in days. Equal spans are allowed.
func CooldownVsFrequency(cooldownField, frequencyField string) CrossFieldValidation {
	return CrossFieldValidation{
		Name:     domain.CrossCooldownVsFrequency,
		Fields:   []string{cooldownField, frequencyField},
		Target:   cooldownField,
		Severity: SeverityError,
		Check: func(all Values) (string, bool) {
			cooldown, ok := toInt(all.Get(cooldownField))
			if !ok {
				return "", false
			}
			frequency, ok := toInt(all.Get(frequencyField))
			if !ok {
				return "", false
			}
			days := float64(cooldown) / 24
			if days > float64(frequency) {
				return fmt.Sprintf("Cooldown (%.1f days) cannot be longer than frequency (%d days)", days, frequency), true
			}
			return "", false
		},
	}
}

// AtMost fails when field holds a larger integer than limitField.
func AtMost(name, field, limitField, message string) CrossFieldValidation {
	return CrossFieldValidation{
		Name:     name,
		Fields:   []string{field, limitField},
		Target:   field,
		Severity: SeverityError,
		Check: func(all Values) (string, bool) {
			v, ok := toInt(all.Get(field))
			if !ok {
				return "", false
			}
			limit, ok := toInt(all.Get(limitField))
			if !ok {
				return "", false
			}
			if v > limit {
				return message, true
			}
			return "", false
		},
	}
}

// LimitWithinQuantity keeps a per-member limit within the available quantity.
func LimitWithinQuantity(limitField, quantityField string) CrossFieldValidation {
	return AtMost(domain.CrossLimitWithinQuantity, limitField, quantityField,
		"Limit per member cannot exceed the available quantity")
}

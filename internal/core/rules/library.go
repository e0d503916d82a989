package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// now is the clock FutureDate compares against.
var now = time.Now

func Required(message string) Rule {
	return Rule{
		Name:     "required",
		Check:    func(v any, _ Values) bool { return !isBlank(v) },
		Message:  Static(message),
		Severity: SeverityError,
	}
}

func MinLength(n int, message string) Rule {
	if message == "" {
		message = fmt.Sprintf("Must be at least %d characters", n)
	}
	return Rule{
		Name: "minLength",
		Check: func(v any, _ Values) bool {
			return isEmpty(v) || trimmedLen(v) >= n
		},
		Message:  Static(message),
		Severity: SeverityError,
	}
}

func MaxLength(n int, message string) Rule {
	if message == "" {
		message = fmt.Sprintf("Must be %d characters or less", n)
	}
	return Rule{
		Name: "maxLength",
		Check: func(v any, _ Values) bool {
			return isEmpty(v) || trimmedLen(v) <= n
		},
		Message:  Static(message),
		Severity: SeverityError,
	}
}

func Numeric(message string) Rule {
	return Rule{
		Name: "numeric",
		Check: func(v any, _ Values) bool {
			if isEmpty(v) {
				return true
			}
			_, ok := toNumber(v)
			return ok
		},
		Message:  Static(message),
		Severity: SeverityError,
	}
}

// PositiveInteger accepts values whose text equals the decimal rendering of
// their parsed integer, so "01" and "+1" are rejected.
func PositiveInteger(message string) Rule {
	return Rule{
		Name: "positiveInteger",
		Check: func(v any, _ Values) bool {
			if isEmpty(v) {
				return true
			}
			s := text(v)
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return false
			}
			return n > 0 && strconv.FormatInt(n, 10) == s
		},
		Message:  Static(message),
		Severity: SeverityError,
	}
}

// Min passes unparsable values; pair with Numeric to reject them.
func Min(bound float64, message string) Rule {
	if message == "" {
		message = "Must be at least " + formatNumber(bound)
	}
	return Rule{
		Name: "min",
		Check: func(v any, _ Values) bool {
			f, ok := toNumber(v)
			return !ok || f >= bound
		},
		Message:  Static(message),
		Severity: SeverityError,
	}
}

func Max(bound float64, message string) Rule {
	if message == "" {
		message = "Must be at most " + formatNumber(bound)
	}
	return Rule{
		Name: "max",
		Check: func(v any, _ Values) bool {
			f, ok := toNumber(v)
			return !ok || f <= bound
		},
		Message:  Static(message),
		Severity: SeverityError,
	}
}

func Email(message string) Rule {
	return Rule{
		Name: "email",
		Check: func(v any, _ Values) bool {
			if isBlank(v) {
				return true
			}
			return emailPattern.MatchString(text(v))
		},
		Message:  Static(message),
		Severity: SeverityError,
	}
}

// FutureDate requires the date to be strictly after the evaluation instant.
// Values that do not parse as a date are not checked.
func FutureDate(message string) Rule {
	return Rule{
		Name: "futureDate",
		Check: func(v any, _ Values) bool {
			if isBlank(v) {
				return true
			}
			t, ok := toTime(v)
			if !ok {
				return true
			}
			return t.After(now())
		},
		Message:  Static(message),
		Severity: SeverityError,
	}
}

// LongText warns when text grows beyond n characters.
func LongText(n int, message string) Rule {
	return Rule{
		Name: "longText",
		Check: func(v any, _ Values) bool {
			return isEmpty(v) || trimmedLen(v) <= n
		},
		Message:  Static(message),
		Severity: SeverityWarning,
	}
}

// textRange is a required string whose trimmed length lies in [lo, hi].
func textRange(name, label string, lo, hi int) Rule {
	return Rule{
		Name: name,
		Check: func(v any, _ Values) bool {
			if isBlank(v) {
				return false
			}
			n := trimmedLen(v)
			return n >= lo && n <= hi
		},
		Message: func(v any, _ Values) string {
			if isBlank(v) {
				return label + " is required"
			}
			return fmt.Sprintf("%s must be between %d and %d characters", label, lo, hi)
		},
		Severity: SeverityError,
	}
}

// integerRange is a whole number in [lo, hi]. Blank input fails only when required.
func integerRange(name, label string, lo, hi float64, required bool) Rule {
	return Rule{
		Name: name,
		Check: func(v any, _ Values) bool {
			if isBlank(v) {
				return !required
			}
			f, ok := toNumber(v)
			return ok && isWholeNumber(v) && f >= lo && f <= hi
		},
		Message: func(v any, _ Values) string {
			if isBlank(v) {
				return label + " is required"
			}
			return fmt.Sprintf("%s must be a whole number between %s and %s", label, formatNumber(lo), formatNumber(hi))
		},
		Severity: SeverityError,
	}
}

func wholeNumber(name, label string) Rule {
	return Rule{
		Name: name,
		Check: func(v any, _ Values) bool {
			return isBlank(v) || isWholeNumber(v)
		},
		Message:  Static(label + " must be a whole number"),
		Severity: SeverityError,
	}
}

func named(r Rule, name string) Rule {
	r.Name = name
	return r
}

func labelFor(def Definition) string {
	if def.Label != "" {
		return def.Label
	}
	return strings.ToUpper(def.Name[:1]) + def.Name[1:]
}

// Package rules holds the field validation rule library, the compiler that
// applies a family's configuration to it, and cross-field validators.
//
// Every base rule except Required treats nil and "" as valid; requiredness is
// always expressed by pairing a rule with Required or by configuration.
package rules

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Message renders the user-facing text for a failing value.
type Message func(value any, all Values) string

// Static returns a Message that ignores its inputs.
func Static(msg string) Message {
	return func(any, Values) string { return msg }
}

// Rule is a single pure predicate over one field value plus its message.
type Rule struct {
	Name     string
	Check    func(value any, all Values) bool
	Message  Message
	Severity Severity
}

// Validate runs the predicate. A panicking predicate counts as a pass.
func (r Rule) Validate(value any, all Values) (ok bool) {
	if r.Check == nil {
		return true
	}
	defer func() {
		if recover() != nil {
			ok = true
		}
	}()
	return r.Check(value, all)
}

func (r Rule) Resolve(value any, all Values) string {
	if r.Message == nil {
		return ""
	}
	return r.Message(value, all)
}

func (r Rule) IsWarning() bool {
	return r.Severity == SeverityWarning
}

// WithMessage returns a copy of r that reports msg.
func (r Rule) WithMessage(msg string) Rule {
	r.Message = Static(msg)
	return r
}

// Pass is the always-valid rule a disabled configuration compiles to.
func Pass(name string) Rule {
	return Rule{
		Name:     name,
		Check:    func(any, Values) bool { return true },
		Message:  Static(""),
		Severity: SeverityError,
	}
}

// Issue is one failed check attributed to a field.
type Issue struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// RuleSet maps rule names to rules.
type RuleSet map[string]Rule

func (s RuleSet) Get(name string) (Rule, bool) {
	r, ok := s[name]
	return r, ok
}

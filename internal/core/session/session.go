// Package session mediates between field edit events and the error state a
// form displays. Each form instance owns one Session and must Close it.
package session

import (
	"sync"
	"time"

	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
	"github.com/atvirokodosprendimai/chorerules/internal/core/rules"
	"github.com/atvirokodosprendimai/chorerules/internal/debounce"
)

// Recorder receives analytics deltas. Implementations must not block.
type Recorder interface {
	Record(familyID string, delta domain.AnalyticsDelta)
}

type Options struct {
	FamilyID string
	Entity   domain.Entity
	// Config is snapshotted at construction; nil means base rules.
	Config *domain.FamilyConfig
	// Debounce overrides the configured debounce interval when positive.
	Debounce  time.Duration
	Recorder  Recorder
	Scheduler debounce.Scheduler
	// OnUpdate runs after a debounced validation has written its result.
	OnUpdate func()
	Now      func() time.Time
}

type Session struct {
	familyID string
	form     rules.Form
	settings domain.GlobalSettings
	delay    time.Duration
	recorder Recorder
	onUpdate func()
	now      func() time.Time
	timers   *debounce.Debouncer

	mu       sync.Mutex
	errors   map[string]string
	warnings map[string]string
	touched  map[string]bool
	seq      map[string]uint64
	counter  uint64
	inflight int
	closed   bool
}

func New(opts Options) (*Session, error) {
	var cfg *domain.FamilyConfig
	if opts.Config != nil {
		snapshot := opts.Config.Clone()
		cfg = &snapshot
	}
	form, err := rules.FormFor(opts.Entity, cfg)
	if err != nil {
		return nil, err
	}

	settings := domain.GlobalSettings{ShowWarnings: true, CharacterCountEnabled: true, HintsEnabled: true}
	if cfg != nil && cfg.IsEnabled {
		settings = cfg.GlobalSettings
	}
	delay := settings.Debounce()
	if opts.Debounce > 0 {
		delay = opts.Debounce
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	familyID := opts.FamilyID
	if familyID == "" && cfg != nil {
		familyID = cfg.FamilyID
	}

	return &Session{
		familyID: familyID,
		form:     form,
		settings: settings,
		delay:    delay,
		recorder: opts.Recorder,
		onUpdate: opts.OnUpdate,
		now:      now,
		timers:   debounce.New(opts.Scheduler),
		errors:   make(map[string]string),
		warnings: make(map[string]string),
		touched:  make(map[string]bool),
		seq:      make(map[string]uint64),
	}, nil
}

func (s *Session) Form() rules.Form { return s.form }

func (s *Session) Debounce() time.Duration { return s.delay }

// ValidateField returns the first failing message for name, or "".
func (s *Session) ValidateField(name string, value any, all rules.Values) string {
	spec, ok := s.form.Field(name)
	if !ok {
		return ""
	}
	msg, _ := spec.Validate(value, all)
	return msg
}

// ValidateCrossFields runs every cross-field validator and returns at most one
// message per validator, keyed by its target field. Session state is untouched.
func (s *Session) ValidateCrossFields(all rules.Values) map[string]string {
	out := make(map[string]string)
	for _, v := range s.form.CrossField {
		msg, failed := v.Evaluate(all)
		if !failed {
			continue
		}
		if _, taken := out[v.Target]; !taken {
			out[v.Target] = msg
		}
	}
	return out
}

// HandleFieldChange schedules validation of name once input has been idle for
// the debounce interval. Nothing becomes visible unless the field is touched
// by the time the timer fires.
func (s *Session) HandleFieldChange(name string, value any, all rules.Values) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.counter++
	seq := s.counter
	s.seq[name] = seq
	s.mu.Unlock()

	values := all.Clone()
	s.timers.Trigger(name, s.delay, func() {
		s.fire(name, seq, value, values)
	})
}

func (s *Session) fire(name string, seq uint64, value any, all rules.Values) {
	s.mu.Lock()
	if s.closed || !s.touched[name] || s.seq[name] != seq {
		s.mu.Unlock()
		return
	}
	s.inflight++
	s.mu.Unlock()

	results := s.evaluateWithSiblings(name, value, all)

	s.mu.Lock()
	s.inflight--
	wrote := false
	if !s.closed && s.seq[name] == seq {
		s.writeLocked(results)
		wrote = true
	}
	s.mu.Unlock()

	if !wrote {
		return
	}
	s.record(fieldDelta(name, results[name], s.now()))
	if s.onUpdate != nil {
		s.onUpdate()
	}
}

// HandleFieldBlur marks name touched and writes its result immediately. A
// pending change validation for the field is cancelled.
func (s *Session) HandleFieldBlur(name string, value any, all rules.Values) {
	s.timers.Cancel(name)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.counter++
	s.seq[name] = s.counter
	s.touched[name] = true
	s.mu.Unlock()

	results := s.evaluateWithSiblings(name, value, all)

	s.mu.Lock()
	s.writeLocked(results)
	s.mu.Unlock()

	s.record(fieldDelta(name, results[name], s.now()))
}

// ValidateAll checks every field and cross-field rule, marks all fields touched
// and replaces the error map. It reports whether the form has no errors.
func (s *Session) ValidateAll(values rules.Values) bool {
	s.timers.CancelAll()

	errs := make(map[string]string)
	warns := make(map[string]string)
	cross := s.ValidateCrossFields(values)
	for _, spec := range s.form.Fields {
		r := s.evaluate(spec, values.Get(spec.Name), values, cross)
		if r.err != "" {
			errs[spec.Name] = r.err
		}
		if r.warn != "" {
			warns[spec.Name] = r.warn
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return len(errs) == 0
	}
	s.seq = make(map[string]uint64)
	for _, spec := range s.form.Fields {
		s.touched[spec.Name] = true
	}
	s.errors = errs
	if s.settings.ShowWarnings {
		s.warnings = warns
	} else {
		s.warnings = make(map[string]string)
	}
	s.mu.Unlock()

	delta := domain.AnalyticsDelta{Validations: 1, At: s.now()}
	if len(errs) > 0 {
		delta.Failures = 1
		delta.FieldErrors = make(map[string]int64, len(errs))
		for field := range errs {
			delta.FieldErrors[field] = 1
		}
	}
	s.record(delta)
	return len(errs) == 0
}

// ResetValidation returns every field to untouched and cancels pending timers.
func (s *Session) ResetValidation() {
	s.timers.CancelAll()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = make(map[string]string)
	s.warnings = make(map[string]string)
	s.touched = make(map[string]bool)
	s.seq = make(map[string]uint64)
}

// Close cancels every pending timer. Later events are ignored.
func (s *Session) Close() {
	s.timers.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Session) IsFieldTouched(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched[name]
}

// GetFieldError returns the visible error for name; untouched fields have none.
func (s *Session) GetFieldError(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.touched[name] {
		return ""
	}
	return s.errors[name]
}

func (s *Session) GetFieldWarning(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.touched[name] {
		return ""
	}
	return s.warnings[name]
}

func (s *Session) IsFieldValid(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched[name] && s.errors[name] == ""
}

func (s *Session) HasErrors() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.errors {
		if msg != "" {
			return true
		}
	}
	return false
}

func (s *Session) Errors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMap(s.errors)
}

func (s *Session) Warnings() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMap(s.warnings)
}

func (s *Session) IsValidating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// FieldHint describes the constraints on name when hints are enabled.
func (s *Session) FieldHint(name string) string {
	if !s.settings.HintsEnabled {
		return ""
	}
	spec, ok := s.form.Field(name)
	if !ok {
		return ""
	}
	return spec.Hint()
}

// CharacterCount returns the length of value and the configured limit for a
// text field. ok is false when counters are disabled or name is not bounded text.
func (s *Session) CharacterCount(name string, value any) (count, limit int, ok bool) {
	if !s.settings.CharacterCountEnabled {
		return 0, 0, false
	}
	spec, found := s.form.Field(name)
	if !found {
		return 0, 0, false
	}
	limit = spec.MaxLength()
	if limit == 0 {
		return 0, 0, false
	}
	return rules.Length(value), limit, true
}

type result struct {
	err  string
	warn string
}

func (s *Session) evaluate(spec rules.FieldSpec, value any, all rules.Values, cross map[string]string) result {
	errMsg, warnMsg := spec.Validate(value, all)
	if errMsg == "" {
		errMsg = cross[spec.Name]
	}
	return result{err: errMsg, warn: warnMsg}
}

// evaluateWithSiblings validates name and re-checks every touched field that
// shares a cross-field rule with it.
func (s *Session) evaluateWithSiblings(name string, value any, all rules.Values) map[string]result {
	out := make(map[string]result)
	spec, ok := s.form.Field(name)
	if !ok {
		return out
	}
	cross := s.ValidateCrossFields(all)
	out[name] = s.evaluate(spec, value, all, cross)

	for _, v := range s.form.CrossField {
		if !v.Involves(name) || v.Target == name {
			continue
		}
		if !s.IsFieldTouched(v.Target) {
			continue
		}
		if sibling, ok := s.form.Field(v.Target); ok {
			out[v.Target] = s.evaluate(sibling, all.Get(v.Target), all, cross)
		}
	}
	return out
}

func (s *Session) writeLocked(results map[string]result) {
	for field, r := range results {
		setOrDelete(s.errors, field, r.err)
		if s.settings.ShowWarnings {
			setOrDelete(s.warnings, field, r.warn)
		}
	}
}

func (s *Session) record(delta domain.AnalyticsDelta) {
	if s.recorder == nil || s.familyID == "" {
		return
	}
	s.recorder.Record(s.familyID, delta)
}

func fieldDelta(name string, r result, at time.Time) domain.AnalyticsDelta {
	delta := domain.AnalyticsDelta{Validations: 1, At: at}
	if r.err != "" {
		delta.Failures = 1
		delta.FieldErrors = map[string]int64{name: 1}
	}
	return delta
}

func setOrDelete(m map[string]string, key, value string) {
	if value == "" {
		delete(m, key)
		return
	}
	m[key] = value
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

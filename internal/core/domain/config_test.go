package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewFamilyConfigSeedsTemplate(t *testing.T) {
	cfg, err := NewFamilyConfig("fam-1", "", StrictnessStrict, testNow)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	if cfg.CreatedBy != "system" || cfg.Version != 1 || len(cfg.History) != 1 || cfg.History[0].Action != ActionCreated {
		t.Fatalf("unexpected identity %+v", cfg)
	}
	if !cfg.IsEnabled || cfg.GlobalSettings.Debounce() != DefaultDebounce {
		t.Fatalf("unexpected settings %+v", cfg.GlobalSettings)
	}
	if *cfg.ChoreRules.Title.MinLength != 3 || !cfg.ChoreRules.Description.Required || !cfg.MemberRules.Email.Required {
		t.Fatalf("expected strict bounds, got %+v", cfg.ChoreRules.Title)
	}

	if _, err := NewFamilyConfig("bad id", "", StrictnessNormal, testNow); !errors.Is(err, ErrInvalidFamilyID) {
		t.Fatalf("expected invalid family id, got %v", err)
	}
	if _, err := NewFamilyConfig("fam-1", "", "extreme", testNow); !errors.Is(err, ErrInvalidStrictness) {
		t.Fatalf("expected invalid strictness, got %v", err)
	}
}

func TestCustomTemplateStartsFromNormal(t *testing.T) {
	custom, _ := Template(StrictnessCustom)
	normal, _ := Template(StrictnessNormal)
	if *custom.Chore.Points.Max != *normal.Chore.Points.Max || *custom.Member.DisplayName.MaxLength != 30 {
		t.Fatalf("custom template should match normal, got %+v", custom.Chore.Points)
	}
	relaxed, _ := Template(StrictnessRelaxed)
	if *relaxed.Chore.Title.MaxLength <= *normal.Chore.Title.MaxLength {
		t.Fatal("relaxed should widen the title bound")
	}
}

func TestApplyMergesWithoutMutatingSource(t *testing.T) {
	cfg, _ := NewFamilyConfig("fam-1", "parent", StrictnessNormal, testNow)
	maxPoints := 250.0
	msg := "Give it a name"
	patch := ConfigPatch{
		ChoreRules:     &ChoreRulesPatch{Points: &RuleConfigPatch{Max: &maxPoints}},
		CustomMessages: map[string]*string{"title": &msg},
	}

	next, err := cfg.Apply(patch)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if *next.ChoreRules.Points.Max != 250 || *next.ChoreRules.Points.Min != 1 {
		t.Fatalf("expected merged bounds, got %+v", next.ChoreRules.Points)
	}
	if next.StrictnessLevel != StrictnessCustom || next.CustomMessages["title"] != msg {
		t.Fatalf("unexpected merge result %+v", next)
	}
	if *cfg.ChoreRules.Points.Max != 100 || cfg.CustomMessages != nil || cfg.StrictnessLevel != StrictnessNormal {
		t.Fatal("source config must not change")
	}

	removed, err := next.Apply(ConfigPatch{CustomMessages: map[string]*string{"title": nil}})
	if err != nil {
		t.Fatalf("apply removal: %v", err)
	}
	if _, ok := removed.CustomMessages["title"]; ok {
		t.Fatal("expected null custom message to remove the override")
	}
}

func TestApplyExplicitLevelAndRejections(t *testing.T) {
	cfg, _ := NewFamilyConfig("fam-1", "parent", StrictnessNormal, testNow)
	strict := StrictnessStrict
	minLen := 1
	next, err := cfg.Apply(ConfigPatch{StrictnessLevel: &strict, ChoreRules: &ChoreRulesPatch{Title: &RuleConfigPatch{MinLength: &minLen}}})
	if err != nil || next.StrictnessLevel != StrictnessStrict {
		t.Fatalf("explicit level should win, got %v %v", next.StrictnessLevel, err)
	}

	neg := -1
	debounce := 20000
	zeroDebounce := 0
	lo, hi := 5, 2
	blank := "x"
	cases := []struct {
		name  string
		patch ConfigPatch
	}{
		{"negative length", ConfigPatch{MemberRules: &MemberRulesPatch{DisplayName: &RuleConfigPatch{MaxLength: &neg}}}},
		{"inverted length", ConfigPatch{RewardRules: &RewardRulesPatch{Name: &RuleConfigPatch{MinLength: &lo, MaxLength: &hi}}}},
		{"debounce too long", ConfigPatch{GlobalSettings: &GlobalSettingsPatch{DebounceMs: &debounce}}},
		{"zero debounce", ConfigPatch{GlobalSettings: &GlobalSettingsPatch{DebounceMs: &zeroDebounce}}},
		{"blank message key", ConfigPatch{CustomMessages: map[string]*string{" ": &blank}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := cfg.Apply(tc.patch); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected invalid config, got %v", err)
			}
		})
	}
}

func TestApplyCreatesMissingCategoryEnabled(t *testing.T) {
	cfg := FamilyConfig{FamilyID: "fam-1"}
	maxAge := 99.0
	next, err := cfg.Apply(ConfigPatch{MemberRules: &MemberRulesPatch{Age: &RuleConfigPatch{Max: &maxAge}}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.MemberRules == nil || !next.MemberRules.Age.Enabled || next.MemberRules.DisplayName != nil {
		t.Fatalf("unexpected member rules %+v", next.MemberRules)
	}
}

func TestResetToKeepsIdentityAndHistory(t *testing.T) {
	cfg, _ := NewFamilyConfig("fam-1", "parent", StrictnessNormal, testNow)
	cfg.CustomMessages = map[string]string{"title": "x"}
	reset, err := cfg.ResetTo(StrictnessRelaxed)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset.CreatedBy != "parent" || len(reset.History) != 1 || reset.CustomMessages["title"] != "x" {
		t.Fatalf("unexpected reset %+v", reset)
	}
	if *reset.ChoreRules.Title.MaxLength != 100 {
		t.Fatalf("expected relaxed bounds, got %d", *reset.ChoreRules.Title.MaxLength)
	}
}

func TestBumpCapsHistory(t *testing.T) {
	cfg := FamilyConfig{}
	for i := 0; i < 5; i++ {
		cfg.Bump(ActionUpdated, "a", "", testNow, 3)
	}
	if cfg.Version != 5 || len(cfg.History) != 3 || cfg.History[0].Version != 3 {
		t.Fatalf("unexpected history %+v", cfg.History)
	}
}

func TestUnmarshalToleratesMalformedCategory(t *testing.T) {
	raw := `{
		"familyId": "fam-1",
		"isEnabled": true,
		"choreRules": {
			"title": {"enabled": true, "maxLength": "fifty"},
			"points": {"enabled": true, "required": true, "min": 1, "max": 5}
		},
		"memberRules": {"email": {"enabled": true, "required": true}},
		"rewardRules": "oops"
	}`
	var cfg FamilyConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.RewardRules != nil {
		t.Fatalf("expected malformed category to be absent, got %+v", cfg.RewardRules)
	}
	if cfg.ChoreRules == nil || cfg.ChoreRules.Title != nil {
		t.Fatalf("expected only the malformed field to be absent, got %+v", cfg.ChoreRules)
	}
	if p := cfg.ChoreRules.Points; p == nil || p.Max == nil || *p.Max != 5 || !p.Required {
		t.Fatalf("expected sibling field to keep its bounds, got %+v", cfg.ChoreRules.Points)
	}
	if cfg.MemberRules == nil || !cfg.MemberRules.Email.Required || cfg.FamilyID != "fam-1" {
		t.Fatalf("expected the valid category to survive, got %+v", cfg)
	}
	if cfg.Bundle(EntityReward) != nil || cfg.Bundle(EntityMember) == nil {
		t.Fatal("unexpected bundle lookup")
	}

	if err := json.Unmarshal([]byte(`{"familyId": 5}`), &cfg); err == nil {
		t.Fatal("expected top-level type errors to surface")
	}
}

func TestCloneIsDeep(t *testing.T) {
	cfg, _ := NewFamilyConfig("fam-1", "parent", StrictnessNormal, testNow)
	cfg.CustomMessages = map[string]string{"a": "b"}
	cp := cfg.Clone()
	*cp.ChoreRules.Title.MaxLength = 1
	cp.CustomMessages["a"] = "c"
	cp.History[0].Actor = "other"
	if *cfg.ChoreRules.Title.MaxLength != 50 || cfg.CustomMessages["a"] != "b" || cfg.History[0].Actor != "parent" {
		t.Fatal("clone shares state with the original")
	}
}

func TestPatchSummary(t *testing.T) {
	enabled := false
	msg := "m"
	p := ConfigPatch{IsEnabled: &enabled, RewardRules: &RewardRulesPatch{}, CustomMessages: map[string]*string{"z": &msg, "a": nil}}
	if got := p.Summary(); got != "isEnabled=false; rewardRules; customMessages(a,z)" {
		t.Fatalf("unexpected summary %q", got)
	}
	if (ConfigPatch{}).Summary() != "no changes" {
		t.Fatal("expected empty summary")
	}
}

func TestPresetValidateAndRevise(t *testing.T) {
	p := Preset{ID: "p1", OwnerFamilyID: "fam-1", Name: "Teens", Tags: []string{"teen"}, CreatedBy: "parent", CreatedAt: testNow}
	if err := p.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := (Preset{Name: strings.Repeat("x", 101)}).Validate(); !errors.Is(err, ErrInvalidPreset) {
		t.Fatalf("expected long name rejection, got %v", err)
	}
	if err := (Preset{Name: "a", Tags: []string{" "}}).Validate(); !errors.Is(err, ErrInvalidPreset) {
		t.Fatalf("expected blank tag rejection, got %v", err)
	}

	name := "Teens v2"
	rev := p.Revise(PresetRevision{Name: &name}, "other", testNow.Add(time.Hour))
	if rev.RevisionOf != "p1" || rev.Name != name || rev.CreatedBy != "other" || rev.ID != "" || rev.UsageCount != 0 {
		t.Fatalf("unexpected revision %+v", rev)
	}
	rev.Tags[0] = "changed"
	if p.Tags[0] != "teen" {
		t.Fatal("revision shares tags with the original")
	}
}

func TestAnalyticsApplyAndMerge(t *testing.T) {
	d := AnalyticsDelta{Validations: 1, FieldErrors: map[string]int64{"title": 1}, At: testNow}
	d = d.Merge(AnalyticsDelta{Validations: 1, Failures: 1, FieldErrors: map[string]int64{"title": 1, "points": 1}, At: testNow.Add(-time.Minute)})
	if d.Validations != 2 || d.FieldErrors["title"] != 2 || !d.At.Equal(testNow) {
		t.Fatalf("unexpected merge %+v", d)
	}
	stats := Analytics{}.Apply(d)
	if stats.TotalValidations != 2 || stats.FailedValidations != 1 || stats.FieldErrorCounts["points"] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !(AnalyticsDelta{}).IsZero() || d.IsZero() {
		t.Fatal("unexpected IsZero result")
	}
}

func TestParsers(t *testing.T) {
	if level, err := ParseStrictness(""); err != nil || level != StrictnessNormal {
		t.Fatalf("empty level should default to normal, got %v %v", level, err)
	}
	if _, err := ParseEntity("garden"); !errors.Is(err, ErrInvalidEntity) {
		t.Fatalf("expected invalid entity, got %v", err)
	}
	if !errors.Is(ErrPresetNotFound, ErrNotFound) {
		t.Fatal("preset not found must match ErrNotFound")
	}
	if EventType(ActionPresetApplied) != "validation_config.preset_applied" {
		t.Fatal("unexpected event type")
	}
}

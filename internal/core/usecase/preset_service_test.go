package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
)

func newPresetService(t *testing.T) (*PresetService, *memoryPresetRepo) {
	t.Helper()
	repo := newMemoryPresetRepo()
	svc := NewPresetService(repo, newValidator(t))
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("preset-%d", n)
	}
	return svc, repo
}

func TestPresetServiceCreateAndList(t *testing.T) {
	svc, repo := newPresetService(t)
	ctx := context.Background()

	own, err := svc.CreateJSON(ctx, "fam-1", json.RawMessage(`{"name":"Teens","tags":["teen"],"config":{"strictnessLevel":"strict"}}`), "parent")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if own.ID != "preset-1" || own.OwnerFamilyID != "fam-1" || own.CreatedBy != "parent" {
		t.Fatalf("unexpected preset %+v", own)
	}
	repo.Create(ctx, domain.Preset{ID: "shared", OwnerFamilyID: "fam-2", Name: "Shared", IsPublic: true})
	repo.Create(ctx, domain.Preset{ID: "hidden", OwnerFamilyID: "fam-2", Name: "Hidden"})

	list, err := svc.List(ctx, "fam-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "preset-1" || list[1].ID != "shared" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestPresetServiceRejectsInvalidDocuments(t *testing.T) {
	svc, _ := newPresetService(t)
	ctx := context.Background()

	_, err := svc.CreateJSON(ctx, "fam-1", json.RawMessage(`{"name":""}`), "")
	var violation *domain.ErrSchemaViolation
	if !errors.As(err, &violation) {
		t.Fatalf("expected schema violation, got %v", err)
	}

	_, err = svc.Create(ctx, "fam-1", PresetDocument{Name: "   "}, "")
	if !errors.Is(err, domain.ErrInvalidPreset) {
		t.Fatalf("expected invalid preset, got %v", err)
	}

	lo, hi := 10.0, 1.0
	_, err = svc.Create(ctx, "fam-1", PresetDocument{
		Name: "Broken",
		Config: domain.ConfigPatch{ChoreRules: &domain.ChoreRulesPatch{
			Points: &domain.RuleConfigPatch{Min: &lo, Max: &hi},
		}},
	}, "")
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestPresetServiceReviseCreatesNewPreset(t *testing.T) {
	svc, repo := newPresetService(t)
	ctx := context.Background()
	original, err := svc.Create(ctx, "fam-1", PresetDocument{Name: "Teens", Description: "v1"}, "parent")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	revised, err := svc.ReviseJSON(ctx, "fam-1", original.ID, json.RawMessage(`{"description":"v2"}`), "other")
	if err != nil {
		t.Fatalf("revise: %v", err)
	}
	if revised.ID == original.ID || revised.RevisionOf != original.ID {
		t.Fatalf("expected a new preset linked to the original, got %+v", revised)
	}
	if revised.Description != "v2" || revised.Name != "Teens" || revised.CreatedBy != "other" {
		t.Fatalf("unexpected revision %+v", revised)
	}
	stored, _ := repo.Get(ctx, original.ID)
	if stored.Description != "v1" {
		t.Fatal("original preset must not change")
	}

	if _, err := svc.Revise(ctx, "fam-1", "missing", domain.PresetRevision{}, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPresetServiceHidesOtherFamiliesPrivatePresets(t *testing.T) {
	svc, _ := newPresetService(t)
	ctx := context.Background()
	private, err := svc.Create(ctx, "fam-1", PresetDocument{Name: "Ours"}, "parent")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	shared, err := svc.Create(ctx, "fam-1", PresetDocument{Name: "Shared", IsPublic: true}, "parent")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(ctx, "fam-1", private.ID); err != nil {
		t.Fatalf("owner should see its private preset: %v", err)
	}
	if _, err := svc.Get(ctx, "fam-2", private.ID); !errors.Is(err, domain.ErrPresetNotFound) {
		t.Fatalf("expected private preset to be hidden, got %v", err)
	}
	public := true
	if _, err := svc.Revise(ctx, "fam-2", private.ID, domain.PresetRevision{IsPublic: &public}, "other"); !errors.Is(err, domain.ErrPresetNotFound) {
		t.Fatalf("expected revise of a hidden preset to fail, got %v", err)
	}

	copied, err := svc.Revise(ctx, "fam-2", shared.ID, domain.PresetRevision{}, "other")
	if err != nil {
		t.Fatalf("revise public preset: %v", err)
	}
	if copied.OwnerFamilyID != "fam-2" || copied.RevisionOf != shared.ID {
		t.Fatalf("expected the copy to belong to the reviser, got %+v", copied)
	}
}

func TestPresetServiceSeedIsIdempotent(t *testing.T) {
	svc, repo := newPresetService(t)
	ctx := context.Background()
	docs := []PresetDocument{{Name: "Little kids"}, {Name: "Teens"}}

	n, err := svc.Seed(ctx, docs)
	if err != nil || n != 2 {
		t.Fatalf("expected two seeded presets, got %d (%v)", n, err)
	}
	n, err = svc.Seed(ctx, docs)
	if err != nil || n != 0 {
		t.Fatalf("expected nothing seeded on rerun, got %d (%v)", n, err)
	}
	p, _ := repo.FindPublicByName(ctx, "Teens")
	if !p.IsPublic || p.OwnerFamilyID != "" || p.CreatedBy != "system" {
		t.Fatalf("unexpected seeded preset %+v", p)
	}
}

package usecase

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	schemaConfigPatch    = "config_patch.json"
	schemaPreset         = "preset.json"
	schemaPresetRevision = "preset_revision.json"
)

// PatchValidator checks configuration and preset documents against their JSON
// schemas before they are decoded into typed patches.
type PatchValidator struct {
	patch    *santhosh.Schema
	preset   *santhosh.Schema
	revision *santhosh.Schema
}

func NewPatchValidator() (*PatchValidator, error) {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	for _, name := range []string{schemaConfigPatch, schemaPreset, schemaPresetRevision} {
		raw, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}

	v := &PatchValidator{}
	var err error
	if v.patch, err = compiler.Compile(schemaConfigPatch); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	if v.preset, err = compiler.Compile(schemaPreset); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	if v.revision, err = compiler.Compile(schemaPresetRevision); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return v, nil
}

// DecodePatch validates raw and decodes it. Shape errors are returned as
// *domain.ErrSchemaViolation.
func (v *PatchValidator) DecodePatch(raw json.RawMessage) (domain.ConfigPatch, error) {
	var patch domain.ConfigPatch
	if err := decodeValidated(v.patch, raw, &patch); err != nil {
		return domain.ConfigPatch{}, err
	}
	return patch, nil
}

type PresetDocument struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	IsPublic    bool               `json:"isPublic"`
	Config      domain.ConfigPatch `json:"config"`
}

func (v *PatchValidator) DecodePreset(raw json.RawMessage) (PresetDocument, error) {
	var doc PresetDocument
	if err := decodeValidated(v.preset, raw, &doc); err != nil {
		return PresetDocument{}, err
	}
	return doc, nil
}

func (v *PatchValidator) DecodeRevision(raw json.RawMessage) (domain.PresetRevision, error) {
	var rev domain.PresetRevision
	if err := decodeValidated(v.revision, raw, &rev); err != nil {
		return domain.PresetRevision{}, err
	}
	return rev, nil
}

func decodeValidated(sch *santhosh.Schema, raw json.RawMessage, out any) error {
	if err := runValidation(sch, raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.ErrSchemaViolation{Errors: []string{err.Error()}}
	}
	return nil
}

// runValidation validates data against a pre-compiled schema.
func runValidation(sch *santhosh.Schema, data json.RawMessage) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return &domain.ErrSchemaViolation{Errors: []string{fmt.Sprintf("invalid json: %v", err)}}
	}
	if err := sch.Validate(v); err != nil {
		var ve *santhosh.ValidationError
		if errors.As(err, &ve) {
			return &domain.ErrSchemaViolation{Errors: collectValidationErrors(ve)}
		}
		return &domain.ErrSchemaViolation{Errors: []string{err.Error()}}
	}
	return nil
}

func collectValidationErrors(ve *santhosh.ValidationError) []string {
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, collectValidationErrors(cause)...)
	}
	if len(ve.Causes) == 0 {
		msgs = append(msgs, ve.Error())
	}
	return msgs
}

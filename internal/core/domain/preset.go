package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidPreset = errors.New("invalid preset")

// Preset is a named, shareable partial configuration. A stored preset is never
// edited; revisions are stored as new presets.
type Preset struct {
	ID            string      `json:"id"`
	OwnerFamilyID string      `json:"ownerFamilyId"`
	Name          string      `json:"name"`
	Description   string      `json:"description,omitempty"`
	Tags          []string    `json:"tags,omitempty"`
	IsPublic      bool        `json:"isPublic"`
	Config        ConfigPatch `json:"config"`
	UsageCount    int64       `json:"usageCount"`
	RevisionOf    string      `json:"revisionOf,omitempty"`
	CreatedBy     string      `json:"createdBy"`
	CreatedAt     time.Time   `json:"createdAt"`
}

func (p Preset) Validate() error {
	if p.OwnerFamilyID != "" {
		if err := ValidateFamilyID(p.OwnerFamilyID); err != nil {
			return err
		}
	}
	name := strings.TrimSpace(p.Name)
	if name == "" || len(name) > 100 {
		return fmt.Errorf("%w: name must be 1..100 characters", ErrInvalidPreset)
	}
	for _, tag := range p.Tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("%w: tags must not be blank", ErrInvalidPreset)
		}
	}
	if _, err := (FamilyConfig{}).Apply(p.Config); err != nil {
		return err
	}
	return nil
}

// VisibleTo reports whether familyID may read or apply p.
func (p Preset) VisibleTo(familyID string) bool {
	return p.IsPublic || p.OwnerFamilyID == familyID
}

// Revise derives a new preset from p. The caller assigns the new ID.
func (p Preset) Revise(changes PresetRevision, actor string, now time.Time) Preset {
	out := Preset{
		OwnerFamilyID: p.OwnerFamilyID,
		Name:          p.Name,
		Description:   p.Description,
		Tags:          append([]string(nil), p.Tags...),
		IsPublic:      p.IsPublic,
		Config:        p.Config,
		RevisionOf:    p.ID,
		CreatedBy:     actor,
		CreatedAt:     now,
	}
	if changes.Name != nil {
		out.Name = *changes.Name
	}
	if changes.Description != nil {
		out.Description = *changes.Description
	}
	if changes.Tags != nil {
		out.Tags = append([]string(nil), changes.Tags...)
	}
	if changes.IsPublic != nil {
		out.IsPublic = *changes.IsPublic
	}
	if changes.Config != nil {
		out.Config = *changes.Config
	}
	return out
}

type PresetRevision struct {
	Name        *string      `json:"name,omitempty"`
	Description *string      `json:"description,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	IsPublic    *bool        `json:"isPublic,omitempty"`
	Config      *ConfigPatch `json:"config,omitempty"`
}

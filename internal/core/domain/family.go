package domain

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrInvalidFamilyID   = errors.New("invalid family id")
	ErrInvalidPresetID   = errors.New("invalid preset id")
	ErrInvalidStrictness = errors.New("invalid strictness level")
	ErrInvalidEntity     = errors.New("invalid entity")
	ErrInvalidConfig     = errors.New("invalid validation config")
	ErrNotFound          = errors.New("not found")
	ErrConfigExists      = errors.New("validation config already exists")
	ErrPresetNotFound    = fmt.Errorf("preset %w", ErrNotFound)
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)

func ValidateFamilyID(id string) error {
	if id == "" || len(id) > 128 || !idPattern.MatchString(id) {
		return ErrInvalidFamilyID
	}
	return nil
}

func ValidatePresetID(id string) error {
	if id == "" || !idPattern.MatchString(id) {
		return ErrInvalidPresetID
	}
	return nil
}

type StrictnessLevel string

const (
	StrictnessRelaxed StrictnessLevel = "relaxed"
	StrictnessNormal  StrictnessLevel = "normal"
	StrictnessStrict  StrictnessLevel = "strict"
	StrictnessCustom  StrictnessLevel = "custom"
)

func ParseStrictness(raw string) (StrictnessLevel, error) {
	switch level := StrictnessLevel(raw); level {
	case StrictnessRelaxed, StrictnessNormal, StrictnessStrict, StrictnessCustom:
		return level, nil
	case "":
		return StrictnessNormal, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStrictness, raw)
	}
}

// Entity names a configuration category and the form that validates it.
type Entity string

const (
	EntityChore  Entity = "chore"
	EntityMember Entity = "member"
	EntityReward Entity = "reward"
)

func ParseEntity(raw string) (Entity, error) {
	switch e := Entity(raw); e {
	case EntityChore, EntityMember, EntityReward:
		return e, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidEntity, raw)
	}
}

// Field keys as they appear in form value maps.
const (
	FieldTitle          = "title"
	FieldDescription    = "description"
	FieldPoints         = "points"
	FieldFrequencyDays  = "frequencyDays"
	FieldCooldownHours  = "cooldownHours"
	FieldDueDate        = "dueDate"
	FieldDisplayName    = "displayName"
	FieldEmail          = "email"
	FieldAge            = "age"
	FieldName           = "name"
	FieldCost           = "cost"
	FieldQuantity       = "quantity"
	FieldPerMemberLimit = "perMemberLimit"
	FieldExpiresAt      = "expiresAt"
)

// Cross-field rule keys inside a category bundle.
const (
	CrossCooldownVsFrequency = "cooldownVsFrequency"
	CrossLimitWithinQuantity = "limitWithinQuantity"
)

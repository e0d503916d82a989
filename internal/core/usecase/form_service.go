package usecase

import (
	"context"
	"errors"

	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
	"github.com/atvirokodosprendimai/chorerules/internal/core/rules"
	"github.com/atvirokodosprendimai/chorerules/internal/core/session"
)

// ConfigLoader is the read side of ConfigService.
type ConfigLoader interface {
	Load(ctx context.Context, familyID string) (domain.FamilyConfig, error)
}

type FormResult struct {
	Valid    bool              `json:"valid"`
	Errors   map[string]string `json:"errors"`
	Warnings map[string]string `json:"warnings"`
}

type FieldRuleView struct {
	Field     string   `json:"field"`
	Rule      string   `json:"rule"`
	Kind      string   `json:"kind"`
	Enabled   bool     `json:"enabled"`
	Required  bool     `json:"required"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Hint      string   `json:"hint,omitempty"`
}

type EntityRulesView struct {
	Entity     domain.Entity   `json:"entity"`
	Fields     []FieldRuleView `json:"fields"`
	CrossField []string        `json:"crossField"`
}

// FormService runs the submit-time gate on the server with the family's
// current configuration.
type FormService struct {
	configs  ConfigLoader
	recorder session.Recorder
}

func NewFormService(configs ConfigLoader, recorder session.Recorder) *FormService {
	return &FormService{configs: configs, recorder: recorder}
}

// Validate checks a whole form. Families without a stored configuration are
// validated with the base rules.
func (s *FormService) Validate(ctx context.Context, familyID string, entity domain.Entity, values rules.Values) (FormResult, error) {
	cfg, err := s.config(ctx, familyID)
	if err != nil {
		return FormResult{}, err
	}
	sess, err := session.New(session.Options{
		FamilyID: familyID,
		Entity:   entity,
		Config:   cfg,
		Recorder: s.recorder,
	})
	if err != nil {
		return FormResult{}, err
	}
	defer sess.Close()

	valid := sess.ValidateAll(values)
	return FormResult{Valid: valid, Errors: sess.Errors(), Warnings: sess.Warnings()}, nil
}

// Rules describes the effective rules of every entity form for familyID.
func (s *FormService) Rules(ctx context.Context, familyID string) ([]EntityRulesView, error) {
	cfg, err := s.config(ctx, familyID)
	if err != nil {
		return nil, err
	}
	entities := []domain.Entity{domain.EntityChore, domain.EntityMember, domain.EntityReward}
	out := make([]EntityRulesView, 0, len(entities))
	for _, entity := range entities {
		form, err := rules.FormFor(entity, cfg)
		if err != nil {
			return nil, err
		}
		view := EntityRulesView{Entity: entity, CrossField: []string{}}
		for _, f := range form.Fields {
			view.Fields = append(view.Fields, FieldRuleView{
				Field:     f.Name,
				Rule:      f.Definition.Name,
				Kind:      f.Definition.Kind.String(),
				Enabled:   f.Enabled,
				Required:  f.Params.Required,
				MinLength: f.Params.MinLength,
				MaxLength: f.Params.MaxLength,
				Min:       f.Params.Min,
				Max:       f.Params.Max,
				Hint:      f.Hint(),
			})
		}
		for _, v := range form.CrossField {
			view.CrossField = append(view.CrossField, v.Name)
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *FormService) config(ctx context.Context, familyID string) (*domain.FamilyConfig, error) {
	if err := domain.ValidateFamilyID(familyID); err != nil {
		return nil, err
	}
	cfg, err := s.configs.Load(ctx, familyID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

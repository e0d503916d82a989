package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
	"github.com/atvirokodosprendimai/chorerules/internal/core/rules"
	"github.com/atvirokodosprendimai/chorerules/internal/core/usecase"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const (
	timeFormat             = "2006-01-02T15:04:05.999999999Z07:00"
	actorCtxKey     ctxKey = "actor"
	maxJSONBodySize        = 1 << 20
)

type Handler struct {
	configs   *usecase.ConfigService
	presets   *usecase.PresetService
	forms     *usecase.FormService
	analytics *usecase.AnalyticsService
}

func NewHandler(configs *usecase.ConfigService, presets *usecase.PresetService, forms *usecase.FormService, analytics *usecase.AnalyticsService) *Handler {
	return &Handler{configs: configs, presets: presets, forms: forms, analytics: analytics}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)

	r.Group(func(pr chi.Router) {
		pr.Use(withActor)

		pr.Get("/v1/families/{familyID}/validation-config", h.getConfig)
		pr.Patch("/v1/families/{familyID}/validation-config", h.patchConfig)
		pr.Post("/v1/families/{familyID}/validation-config:reset", h.resetConfig)
		pr.Post("/v1/families/{familyID}/validation-config:apply-preset", h.applyPreset)
		pr.Get("/v1/families/{familyID}/validation-rules", h.validationRules)
		pr.Post("/v1/families/{familyID}/forms/{entity}:validate", h.validateForm)
		pr.Get("/v1/families/{familyID}/validation-analytics", h.getAnalytics)

		pr.Get("/v1/families/{familyID}/presets", h.listPresets)
		pr.Post("/v1/families/{familyID}/presets", h.createPreset)
		pr.Get("/v1/families/{familyID}/presets/{presetID}", h.getPreset)
		pr.Post("/v1/families/{familyID}/presets/{presetID}:revise", h.revisePreset)
	})

	return r
}

type resetRequest struct {
	StrictnessLevel string `json:"strictnessLevel"`
}

type applyPresetRequest struct {
	PresetID string `json:"presetId"`
}

type validateFormRequest struct {
	Values map[string]any `json:"values"`
}

type presetResponse struct {
	ID            string             `json:"id"`
	OwnerFamilyID string             `json:"ownerFamilyId,omitempty"`
	Name          string             `json:"name"`
	Description   string             `json:"description,omitempty"`
	Tags          []string           `json:"tags"`
	IsPublic      bool               `json:"isPublic"`
	Config        domain.ConfigPatch `json:"config"`
	UsageCount    int64              `json:"usageCount"`
	RevisionOf    string             `json:"revisionOf,omitempty"`
	CreatedBy     string             `json:"createdBy"`
	CreatedAt     string             `json:"createdAt"`
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.configs.GetOrCreate(r.Context(), chi.URLParam(r, "familyID"), changeMetadata(r))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) patchConfig(w http.ResponseWriter, r *http.Request) {
	raw, ok := readRawBody(w, r)
	if !ok {
		return
	}
	cfg, err := h.configs.UpdateJSON(r.Context(), chi.URLParam(r, "familyID"), raw, changeMetadata(r))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) resetConfig(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeBody(w, r, &req, true) {
		return
	}
	cfg, err := h.configs.ResetToDefault(r.Context(), chi.URLParam(r, "familyID"), domain.StrictnessLevel(req.StrictnessLevel), changeMetadata(r))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) applyPreset(w http.ResponseWriter, r *http.Request) {
	var req applyPresetRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	cfg, err := h.configs.ApplyPreset(r.Context(), chi.URLParam(r, "familyID"), req.PresetID, changeMetadata(r))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) validationRules(w http.ResponseWriter, r *http.Request) {
	views, err := h.forms.Rules(r.Context(), chi.URLParam(r, "familyID"))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": views})
}

func (h *Handler) validateForm(w http.ResponseWriter, r *http.Request) {
	entity, err := domain.ParseEntity(chi.URLParam(r, "entity"))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	var req validateFormRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	res, err := h.forms.Validate(r.Context(), chi.URLParam(r, "familyID"), entity, rules.Values(req.Values))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) getAnalytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.Get(r.Context(), chi.URLParam(r, "familyID"))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) listPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := h.presets.List(r.Context(), chi.URLParam(r, "familyID"))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	result := make([]presetResponse, 0, len(presets))
	for _, p := range presets {
		result = append(result, toPresetResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) createPreset(w http.ResponseWriter, r *http.Request) {
	raw, ok := readRawBody(w, r)
	if !ok {
		return
	}
	p, err := h.presets.CreateJSON(r.Context(), chi.URLParam(r, "familyID"), raw, actorFromContext(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPresetResponse(p))
}

func (h *Handler) getPreset(w http.ResponseWriter, r *http.Request) {
	p, err := h.presets.Get(r.Context(), chi.URLParam(r, "familyID"), chi.URLParam(r, "presetID"))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPresetResponse(p))
}

func (h *Handler) revisePreset(w http.ResponseWriter, r *http.Request) {
	raw, ok := readRawBody(w, r)
	if !ok {
		return
	}
	p, err := h.presets.ReviseJSON(r.Context(), chi.URLParam(r, "familyID"), chi.URLParam(r, "presetID"), raw, actorFromContext(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPresetResponse(p))
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) openapi(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, openapiSpec())
}

func withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get("X-Actor"))
		ctx := context.WithValue(r.Context(), actorCtxKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func changeMetadata(r *http.Request) domain.ChangeMetadata {
	return domain.ChangeMetadata{
		Actor:         actorFromContext(r.Context()),
		Source:        "api",
		RequestID:     middleware.GetReqID(r.Context()),
		CorrelationID: strings.TrimSpace(r.Header.Get("X-Correlation-ID")),
	}
}

func toPresetResponse(p domain.Preset) presetResponse {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return presetResponse{
		ID:            p.ID,
		OwnerFamilyID: p.OwnerFamilyID,
		Name:          p.Name,
		Description:   p.Description,
		Tags:          tags,
		IsPublic:      p.IsPublic,
		Config:        p.Config,
		UsageCount:    p.UsageCount,
		RevisionOf:    p.RevisionOf,
		CreatedBy:     p.CreatedBy,
		CreatedAt:     p.CreatedAt.UTC().Format(timeFormat),
	}
}

// readRawBody returns the body for handlers that hand the document to the
// schema validator unchanged.
func readRawBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	var raw json.RawMessage
	if err := decoder.Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return nil, false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return nil, false
	}
	return raw, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Printf("encode json response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func handleDomainError(w http.ResponseWriter, err error) {
	var violation *domain.ErrSchemaViolation
	switch {
	case errors.As(err, &violation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "schema validation failed", "details": violation.Errors})
	case errors.Is(err, domain.ErrInvalidFamilyID),
		errors.Is(err, domain.ErrInvalidPresetID),
		errors.Is(err, domain.ErrInvalidStrictness),
		errors.Is(err, domain.ErrInvalidEntity),
		errors.Is(err, domain.ErrInvalidConfig),
		errors.Is(err, domain.ErrInvalidPreset):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConfigExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}

func actorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorCtxKey).(string)
	if actor == "" {
		return "api"
	}
	return actor
}

func openapiSpec() map[string]any {
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "chorerules",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/v1/families/{familyID}/validation-config": map[string]any{
				"get":   map[string]any{"summary": "Get the family validation config, creating it from the default template on first access"},
				"patch": map[string]any{"summary": "Merge a partial validation config"},
			},
			"/v1/families/{familyID}/validation-config:reset": map[string]any{
				"post": map[string]any{"summary": "Reset rule bundles to a strictness template"},
			},
			"/v1/families/{familyID}/validation-config:apply-preset": map[string]any{
				"post": map[string]any{"summary": "Apply a preset to the family config"},
			},
			"/v1/families/{familyID}/validation-rules": map[string]any{
				"get": map[string]any{"summary": "Effective field rules and hints per entity"},
			},
			"/v1/families/{familyID}/forms/{entity}:validate": map[string]any{
				"post": map[string]any{"summary": "Validate a chore, member or reward form"},
			},
			"/v1/families/{familyID}/validation-analytics": map[string]any{
				"get": map[string]any{"summary": "Validation counters for the family"},
			},
			"/v1/families/{familyID}/presets": map[string]any{
				"get":  map[string]any{"summary": "List presets visible to the family"},
				"post": map[string]any{"summary": "Create a preset"},
			},
			"/v1/families/{familyID}/presets/{presetID}": map[string]any{
				"get": map[string]any{"summary": "Get preset"},
			},
			"/v1/families/{familyID}/presets/{presetID}:revise": map[string]any{
				"post": map[string]any{"summary": "Store a revised copy of a preset"},
			},
		},
	}
}

// Package presetfile reads the shared preset catalog from a YAML file.
package presetfile

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/atvirokodosprendimai/chorerules/internal/core/usecase"
	"gopkg.in/yaml.v3"
)

// Decoder validates one preset document. *usecase.PatchValidator satisfies it.
type Decoder interface {
	DecodePreset(raw json.RawMessage) (usecase.PresetDocument, error)
}

type catalogFile struct {
	Presets []map[string]any `yaml:"presets"`
}

// Load parses the catalog at path. Every entry goes through the same schema
// checks as presets created over HTTP.
func Load(path string, dec Decoder) ([]usecase.PresetDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset catalog: %w", err)
	}
	return Parse(data, dec)
}

func Parse(data []byte, dec Decoder) ([]usecase.PresetDocument, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse preset catalog: %w", err)
	}

	docs := make([]usecase.PresetDocument, 0, len(file.Presets))
	seen := make(map[string]bool, len(file.Presets))
	for i, entry := range file.Presets {
		normalized, err := normalize(entry)
		if err != nil {
			return nil, fmt.Errorf("preset %d: %w", i, err)
		}
		raw, err := json.Marshal(normalized)
		if err != nil {
			return nil, fmt.Errorf("preset %d: encode: %w", i, err)
		}
		doc, err := dec.DecodePreset(raw)
		if err != nil {
			return nil, fmt.Errorf("preset %d: %w", i, err)
		}
		if seen[doc.Name] {
			return nil, fmt.Errorf("preset %d: duplicate name %q", i, doc.Name)
		}
		seen[doc.Name] = true
		docs = append(docs, doc)
	}
	return docs, nil
}

// normalize turns yaml's map[any]any nodes into JSON-encodable maps.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v", k)
			}
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}

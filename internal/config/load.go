package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed tunables.schema.json
var schemaSource string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("tunables.schema.json", schemaSource)
	})
	return schema, schemaErr
}

// Load reads a YAML tuning file, validates it and fills unset fields with
// defaults.
func Load(path string) (Tunables, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tunables{}, err
	}
	t, err := Parse(raw)
	if err != nil {
		return Tunables{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse is Load without the file.
func Parse(raw []byte) (Tunables, error) {
	if err := Validate(raw); err != nil {
		return Tunables{}, err
	}
	var t Tunables
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Tunables{}, fmt.Errorf("decode tuning: %w", err)
	}
	t.applyDefaults()
	sortThemes(t.Themes)
	return t, nil
}

// Validate checks a YAML document against the embedded tuning schema.
func Validate(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode tuning: %w", err)
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so numbers and maps have the shapes the
	// validator expects.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalize tuning: %w", err)
	}
	return validateJSON(b)
}

// ValidateTunables checks a complete set of tunables against the schema.
func ValidateTunables(t Tunables) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode tuning: %w", err)
	}
	return validateJSON(b)
}

func validateJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("normalize tuning: %w", err)
	}
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("invalid tuning: %w", err)
	}
	return nil
}

func sortThemes(themes []Theme) {
	sort.SliceStable(themes, func(i, j int) bool { return themes[i].Above > themes[j].Above })
}

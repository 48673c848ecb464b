package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed config_schema.yaml
var configSchemaYAML []byte

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// Validate checks one decoded configuration layer against the embedded
// schema. The document is round-tripped through encoding/json so the
// compiler sees the value shapes it expects.
func Validate(raw map[string]any) error {
	compileOnce.Do(func() {
		compiled, compileErr = compileSchema(configSchemaYAML)
	})
	if compileErr != nil {
		return fmt.Errorf("failed to compile config schema: %w", compileErr)
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode document for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("failed to decode document for validation: %w", err)
	}

	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// compileSchema compiles a schema authored in YAML by converting it to
// JSON first.
func compileSchema(data []byte) (*jsonschema.Schema, error) {
	var schemaData any
	if err := yaml.Unmarshal(data, &schemaData); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}

	jsonData, err := json.Marshal(schemaData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	return jsonschema.CompileString("config_schema.json", string(jsonData))
}

package config

import (
	stdjson "encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id stamped on the generated schema.
const SchemaID = "https://raw.githubusercontent.com/NikitaCOEUR/regiontrace/main/schema/regiontrace.schema.json"

// Schema reflects the JSON Schema of Config.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:             true,
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: true,
	}

	schema := r.Reflect(&Config{})

	// Use draft-07 for IDE compatibility
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.ID = SchemaID
	schema.Title = "regiontrace configuration"
	schema.Description = "Configuration file for regiontrace region recording"

	return schema
}

// GetSchemaJSON returns the indented JSON Schema for regiontrace configuration
func GetSchemaJSON() ([]byte, error) {
	data, err := stdjson.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

// WriteSchema writes the schema to path.
func WriteSchema(path string) error {
	data, err := GetSchemaJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// ValidateWithSchema validates config content against the JSON Schema.
// The format is chosen from the path extension.
func ValidateWithSchema(path string, content []byte) (*ValidationResult, error) {
	result := &ValidationResult{
		Valid:  true,
		Errors: []ValidationError{},
	}

	if _, err := ParserFor(path); err != nil {
		return nil, err
	}

	data, err := decodeDocument(path, content)
	if err != nil {
		result.add("syntax", err.Error())
		return result, nil
	}

	schemaJSON, err := GetSchemaJSON()
	if err != nil {
		return nil, err
	}

	validationResult, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}

	for _, e := range validationResult.Errors() {
		result.add(e.Field(), e.Description())
	}

	return result, nil
}

// decodeDocument turns content into a JSON-compatible value.
func decodeDocument(path string, content []byte) (any, error) {
	var data any

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		m, err := toml.Parser().Unmarshal(content)
		if err != nil {
			return nil, fmt.Errorf("invalid TOML syntax: %v", err)
		}
		data = m
	case ".json":
		if err := stdjson.Unmarshal(content, &data); err != nil {
			return nil, fmt.Errorf("invalid JSON syntax: %v", err)
		}
	default:
		if err := yaml.Unmarshal(content, &data); err != nil {
			return nil, fmt.Errorf("invalid YAML syntax: %v", err)
		}
	}

	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

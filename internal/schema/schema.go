// Package schema generates JSON Schemas from Go types and validates YAML or
// JSON documents against them.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	jsonvalidator "github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stoewer/go-strcase"
	"gopkg.in/yaml.v3"
)

// NewReflector returns a reflector that names keys and definitions in
// snake_case, matching the YAML and JSON documents perfmap reads and writes.
func NewReflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		KeyNamer: strcase.SnakeCase,
		Namer: func(t reflect.Type) string {
			return strcase.SnakeCase(t.Name())
		},
		ExpandedStruct: true,
	}
}

// Generate reflects v into an indented JSON Schema document.
func Generate(v any) ([]byte, error) {
	s := NewReflector().Reflect(v)
	return json.MarshalIndent(s, "", "  ")
}

// ValidationError represents a validation error with context
type ValidationError struct {
	Message string `json:"message" yaml:"message"`
	Path    string `json:"path" yaml:"path"`
}

func (e ValidationError) String() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validator validates documents against a compiled JSON Schema
type Validator struct {
	schema *jsonvalidator.Schema
}

// NewValidator compiles the schema reflected from v.
func NewValidator(v any) (*Validator, error) {
	data, err := Generate(v)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}

	url := fmt.Sprintf("https://schemas.perfmap.dev/%s.json", strcase.SnakeCase(reflect.Indirect(reflect.ValueOf(v)).Type().Name()))

	compiler := jsonvalidator.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: compiled}, nil
}

// ValidateYAML validates a YAML (or JSON) document. It returns no errors
// when the document conforms.
func (v *Validator) ValidateYAML(data []byte) []ValidationError {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []ValidationError{{Message: fmt.Sprintf("YAML parsing error: %v", err), Path: "root"}}
	}

	// Round trip through JSON so the validator sees JSON value types.
	raw, err := json.Marshal(doc)
	if err != nil {
		return []ValidationError{{Message: fmt.Sprintf("document is not representable as JSON: %v", err), Path: "root"}}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return []ValidationError{{Message: err.Error(), Path: "root"}}
	}

	err = v.schema.Validate(value)
	if err == nil {
		return nil
	}

	if validationErr, ok := err.(*jsonvalidator.ValidationError); ok {
		return convertValidationErrors(validationErr)
	}
	return []ValidationError{{Message: err.Error(), Path: "root"}}
}

// convertValidationErrors flattens the validator's error tree, keeping the
// leaves that carry the specific failures.
func convertValidationErrors(err *jsonvalidator.ValidationError) []ValidationError {
	if len(err.Causes) == 0 {
		return []ValidationError{{Message: err.Message, Path: err.InstanceLocation}}
	}

	var errs []ValidationError
	for _, cause := range err.Causes {
		errs = append(errs, convertValidationErrors(cause)...)
	}
	return errs
}

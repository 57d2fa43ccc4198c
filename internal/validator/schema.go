package validator

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CompiledSchema wraps a compiled JSON Schema, built once at service
// construction and reused per call — the same "build once, reuse" style
// the teacher applies to its own compiled regexes.
type CompiledSchema struct {
	schema *jsonschema.Schema
}

// CompileSchemaFile compiles the JSON Schema document at path.
func CompileSchemaFile(path string) (*CompiledSchema, error) {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("validator: compile schema %s: %w", path, err)
	}
	return &CompiledSchema{schema: schema}, nil
}

// Validate checks raw (already json.Unmarshal-ed into a document with
// float64/[]any/map[string]any shapes) against the compiled schema.
func (s *CompiledSchema) Validate(doc any) error {
	return s.schema.Validate(doc)
}

// decodeToDocument round-trips v through JSON so it has the
// float64/[]any/map[string]any shapes jsonschema.Schema.Validate expects,
// regardless of whether the caller handed us a typed struct or a map.
func decodeToDocument(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("validator: marshal for schema check: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("validator: unmarshal for schema check: %w", err)
	}
	return doc, nil
}

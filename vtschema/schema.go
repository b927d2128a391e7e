// Package vtschema validates the AliasMaster JSON document against its
// embedded JSON Schema before it is trusted as a load source.
package vtschema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// aliasMasterSchema is the draft 2020-12 schema for alias_master.json,
// matching the AliasMaster/SpeciesEntry/AliasData shapes.
const aliasMasterSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "memory://alias_master.schema.json",
  "type": "object",
  "required": ["version", "timestamp", "species"],
  "properties": {
    "version": {"type": "string"},
    "timestamp": {"type": "string"},
    "species": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["species_id", "canonical", "aliases"],
        "properties": {
          "species_id": {"type": "string"},
          "canonical": {"type": "string"},
          "tilename": {"type": "string"},
          "aliases": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["text", "source"],
              "properties": {
                "text": {"type": "string"},
                "norm": {"type": "string"},
                "cologne": {"type": "string"},
                "phonemes": {"type": "string"},
                "source": {
                  "type": "string",
                  "enum": ["seed_canonical", "seed_tilename", "user_field_training"]
                },
                "timestamp": {"type": "string"}
              }
            }
          }
        }
      }
    }
  }
}`

// Validator wraps a compiled instance of the AliasMaster schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewAliasMasterValidator compiles the embedded AliasMaster schema.
func NewAliasMasterValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	const virtualURL = "memory://alias_master.schema.json"
	if err := compiler.AddResource(virtualURL, strings.NewReader(aliasMasterSchema)); err != nil {
		return nil, fmt.Errorf("vtschema: add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(virtualURL)
	if err != nil {
		return nil, fmt.Errorf("vtschema: compile schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// ValidateJSON parses jsonData and validates it against the AliasMaster
// schema, returning the first validation error if any.
func (v *Validator) ValidateJSON(jsonData []byte) error {
	var payload interface{}
	if err := json.Unmarshal(jsonData, &payload); err != nil {
		return fmt.Errorf("vtschema: invalid JSON: %w", err)
	}
	if err := v.schema.Validate(payload); err != nil {
		return fmt.Errorf("vtschema: schema validation failed: %w", err)
	}
	return nil
}

package config

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON schema of Config.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{FieldNameTag: "yaml"}
	schema := r.Reflect(&Config{})
	schema.ID = "https://github.com/bnema/cosmetic/config.schema.json"
	schema.Title = "Cosmetic Filtering Configuration"
	schema.Description = "Configuration schema for the cosmetic filtering engine and its tools"
	return schema
}

// WriteSchema writes the indented JSON schema to w.
func WriteSchema(w io.Writer) error {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}
	return nil
}

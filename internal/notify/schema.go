// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package notify

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the label file schema.
const SchemaID = "https://keyward.dev/schemas/catalog.schema.json"

const languagePattern = "^[A-Z]{2}$"

var (
	compiledOnce   sync.Once
	compiledSchema *jschema.Schema
	compiledErr    error
)

// JSONSchemaExtend restricts map keys to language codes.
func (Labels) JSONSchemaExtend(s *jsonschema.Schema) {
	lang := &jsonschema.Schema{Type: "string", Pattern: languagePattern}
	if subject, ok := s.Properties.Get("subject"); ok {
		subject.PropertyNames = lang
	}
	if labels, ok := s.Properties.Get("labels"); ok && labels.AdditionalProperties != nil {
		labels.AdditionalProperties.PropertyNames = lang
	}
}

// GenerateSchema returns the JSON Schema of a label file.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(&Labels{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Keyward notification labels"
	schema.Description = "Localized subject and placeholder values for one email template"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").Wrap(err)
	}
	return data, nil
}

// ValidateLabels checks a YAML label file against the schema.
func ValidateLabels(data []byte) error {
	stage, err := checkLabels(data)
	if err != nil && stage != "" {
		return oops.Code("LABELS_INVALID").With("stage", stage).Wrap(err)
	}
	return err
}

// checkLabels reports which stage rejected data. Parse and validate failures
// carry no code so callers can attach their own.
func checkLabels(data []byte) (stage string, err error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "parse", err
	}
	if doc == nil {
		doc = map[string]any{}
	}

	sch, err := compiled()
	if err != nil {
		return "", err
	}
	if err := sch.Validate(doc); err != nil {
		return "validate", err
	}
	return "", nil
}

func compiled() (*jschema.Schema, error) {
	compiledOnce.Do(func() {
		raw, err := GenerateSchema()
		if err != nil {
			compiledErr = err
			return
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			compiledErr = oops.Code("SCHEMA_COMPILE_FAILED").Wrap(err)
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource(SchemaID, doc); err != nil {
			compiledErr = oops.Code("SCHEMA_COMPILE_FAILED").Wrap(err)
			return
		}
		compiledSchema, compiledErr = c.Compile(SchemaID)
		if compiledErr != nil {
			compiledErr = oops.Code("SCHEMA_COMPILE_FAILED").Wrap(compiledErr)
		}
	})
	return compiledSchema, compiledErr
}

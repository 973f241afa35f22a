// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package notify

import (
	"encoding/json"
	"testing"

	"github.com/keyward/keyward/pkg/errutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema(t *testing.T) {
	raw, err := GenerateSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, SchemaID, doc["$id"])
	assert.Equal(t, "object", doc["type"])
	assert.Contains(t, string(raw), languagePattern)
}

func TestValidateLabels(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		valid bool
	}{
		{"subject and labels", "subject:\n  EN: Hi\nlabels:\n  title:\n    EN: T\n    IT: T\n", true},
		{"labels only", "labels:\n  footer:\n    EN: F\n", true},
		{"empty document", "", true},
		{"lower-case language", "subject:\n  en: Hi\n", false},
		{"three-letter language", "labels:\n  title:\n    ENG: T\n", false},
		{"unknown top-level key", "subjects:\n  EN: Hi\n", false},
		{"non-string value", "subject:\n  EN:\n    nested: true\n", false},
		{"not yaml", "subject: [", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLabels([]byte(tt.yaml))
			if tt.valid {
				assert.NoError(t, err)
			} else {
				errutil.AssertErrorCode(t, err, "LABELS_INVALID")
			}
		})
	}
}

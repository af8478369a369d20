package llm

import (
	"encoding/json"
	"testing"

	"github.com/osmangurlek/arxiv-trend-radar/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalFlexible(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"plain", `{"canonical":"Large Language Model","aliases":["LLM"]}`},
		{"double encoded", `"{\"canonical\":\"Large Language Model\",\"aliases\":[\"LLM\"]}"`},
		{"code fence", "```json\n{\"canonical\":\"Large Language Model\",\"aliases\":[\"LLM\"]}\n```"},
		{"trailing comma", `{"canonical":"Large Language Model","aliases":["LLM",],}`},
		{"duplicate brace", `{{"canonical":"Large Language Model","aliases":["LLM"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var g models.CanonicalGroup
			require.NoError(t, UnmarshalFlexible(tt.input, &g))
			assert.Equal(t, "Large Language Model", g.Canonical)
			assert.Equal(t, []string{"LLM"}, g.Aliases)
		})
	}
}

func TestGenerateSchema(t *testing.T) {
	raw, err := json.Marshal(GenerateSchema(&classificationResponse{}))
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(raw, &schema))
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, false, schema["additionalProperties"])
	assert.Contains(t, string(raw), "Agents/Tool Use")
}

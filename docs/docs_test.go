package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestRegisteredDocIsValid(t *testing.T) {
	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	require.NoError(t, err)

	var doc struct {
		BasePath    string                     `json:"basePath"`
		Paths       map[string]json.RawMessage `json:"paths"`
		Definitions map[string]struct {
			Required   []string                   `json:"required"`
			Properties map[string]json.RawMessage `json:"properties"`
		} `json:"definitions"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	assert.Equal(t, "/api/v1", doc.BasePath)
	assert.Contains(t, doc.Paths, "/players/{id}")
	problem, ok := doc.Definitions["respond.Problem"]
	require.True(t, ok)
	assert.Equal(t, []string{"code", "detail"}, problem.Required)
	assert.Contains(t, problem.Properties, "canonical_id")
	assert.NotContains(t, problem.Properties, "message")
}

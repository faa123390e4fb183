package docs

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type swaggerDoc struct {
	Swagger  string `json:"swagger"`
	BasePath string `json:"basePath"`
	Info     struct {
		Title   string `json:"title"`
		Version string `json:"version"`
	} `json:"info"`
	Paths       map[string]map[string]json.RawMessage `json:"paths"`
	Definitions map[string]json.RawMessage            `json:"definitions"`
}

func readDoc(t *testing.T) (string, swaggerDoc) {
	t.Helper()
	raw := SwaggerInfo.ReadDoc()
	var doc swaggerDoc
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return raw, doc
}

func TestSwaggerInfo(t *testing.T) {
	assert.Equal(t, "Allocation Service API", SwaggerInfo.Title)
	assert.Equal(t, "1.0", SwaggerInfo.Version)
	assert.Equal(t, "/internal", SwaggerInfo.BasePath)
	assert.Equal(t, "swagger", SwaggerInfo.InfoInstanceName)
	assert.True(t, strings.HasPrefix(SwaggerInfo.Description, "Internal API for two-stage SKU allocation"))

	_, doc := readDoc(t)
	assert.Equal(t, "2.0", doc.Swagger)
	assert.Equal(t, "/internal", doc.BasePath)
	assert.Equal(t, SwaggerInfo.Title, doc.Info.Title)
}

func TestSwaggerOperations(t *testing.T) {
	_, doc := readDoc(t)

	want := map[string]string{
		"/allocate":         "post",
		"/health":           "get",
		"/scenarios":        "get",
		"/scenarios/{name}": "get",
	}
	assert.Len(t, doc.Paths, len(want))
	for path, method := range want {
		require.Contains(t, doc.Paths, path)
		assert.Contains(t, doc.Paths[path], method, path)
	}
}

var refPattern = regexp.MustCompile(`"\$ref":\s*"#/definitions/([^"]+)"`)

// Every reference in the document must name a definition.
func TestSwaggerReferencesResolve(t *testing.T) {
	raw, doc := readDoc(t)

	refs := refPattern.FindAllStringSubmatch(raw, -1)
	require.NotEmpty(t, refs)
	for _, m := range refs {
		assert.Contains(t, doc.Definitions, m[1])
	}
	for _, name := range []string{"handlers.AllocateRequest", "optimizer.Result", "optimizer.Scenario"} {
		assert.Contains(t, doc.Definitions, name)
	}
}

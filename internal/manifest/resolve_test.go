package manifest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeDoc(t *testing.T, raw string) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

func TestResolveRefsSubstitutesSource(t *testing.T) {
	doc := decodeDoc(t, `{
		"profiles": {"main": {"buildable": ["main"]}, "dev": {"buildable": ["dev"]}},
		"active": {"$ref": "#/profiles/{SOURCE}"}
	}`)

	resolved, err := resolveRefs(doc, "dev")
	require.NoError(t, err)

	active := resolved["active"].(map[string]any)
	require.Equal(t, []any{"dev"}, active["buildable"])
}

func TestResolveRefsLeavesPlainValuesAlone(t *testing.T) {
	doc := decodeDoc(t, `{"public": ["public"], "indexed": true}`)
	resolved, err := resolveRefs(doc, "main")
	require.NoError(t, err)
	require.Equal(t, []any{"public"}, resolved["public"])
	require.Equal(t, true, resolved["indexed"])
}

func TestResolveRefsMissingPointerErrors(t *testing.T) {
	doc := decodeDoc(t, `{"active": {"$ref": "#/nope"}}`)
	_, err := resolveRefs(doc, "main")
	require.Error(t, err)
}

func TestResolveRefsDetectsCycle(t *testing.T) {
	doc := decodeDoc(t, `{"a": {"$ref": "#/b"}, "b": {"$ref": "#/a"}}`)
	_, err := resolveRefs(doc, "main")
	require.Error(t, err)
}

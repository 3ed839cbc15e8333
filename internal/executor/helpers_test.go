package executor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	language "github.com/hanpama/graphedge/internal/language"
	schema "github.com/hanpama/graphedge/internal/schema"
)

func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	require.NoError(t, err)
	return d
}

func mustBuildSchema(t *testing.T, sdl string) *schema.Schema {
	t.Helper()
	s, err := schema.BuildFromSDL(&language.Source{Name: "test.graphql", Input: sdl})
	require.NoError(t, err)
	return s
}

func path(elems ...any) language.Path {
	p := make(language.Path, len(elems))
	for i, e := range elems {
		switch v := e.(type) {
		case string:
			p[i] = language.PathName(v)
		case int:
			p[i] = language.PathIndex(v)
		}
	}
	return p
}

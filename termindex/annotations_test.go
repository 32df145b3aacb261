package termindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/archivist/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnotations_Resolve(t *testing.T) {
	a := NewAnnotations(
		map[string]string{"n1": "Editor's note", "n2": "Date uncertain"},
		map[string][]string{
			"p1": {"n1", "n2"},
			"p2": {"n2", "missing"},
		},
	)

	resolved := a.Resolve([]string{"p2", "p1", "p9"})
	assert.Equal(t, []core.Annotation{
		{ID: "n2", Text: "Date uncertain"},
		{ID: "n1", Text: "Editor's note"},
	}, resolved)
}

func TestAnnotations_NilResolvesNothing(t *testing.T) {
	var a *Annotations
	assert.Empty(t, a.Resolve([]string{"p1"}))
	assert.Empty(t, a.Links())
}

func TestAnnotations_Rewrite(t *testing.T) {
	a := NewAnnotations(
		map[string]string{"n1": "one", "n2": "two"},
		map[string][]string{"p1": {"n1"}, "p2": {"n2"}},
	)

	rewritten := a.Rewrite(map[string]string{"p1": "m-1", "p2": "m-1"})
	assert.ElementsMatch(t, []string{"n1", "n2"}, rewritten.Links()["m-1"])
	assert.NotContains(t, rewritten.Links(), "p1")
	assert.Len(t, rewritten.Resolve([]string{"m-1"}), 2)
}

func TestLoadAnnotations_OptionalFiles(t *testing.T) {
	dir := t.TempDir()

	a, err := LoadAnnotations("", filepath.Join(dir, "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, a.Resolve([]string{"p1"}))

	textsPath := filepath.Join(dir, "texts.json")
	linksPath := filepath.Join(dir, "links.json")
	require.NoError(t, os.WriteFile(textsPath, []byte(`{"n1":"note"}`), 0644))
	require.NoError(t, os.WriteFile(linksPath, []byte(`{"p1":["n1"]}`), 0644))

	a, err = LoadAnnotations(textsPath, linksPath)
	require.NoError(t, err)
	assert.Equal(t, []core.Annotation{{ID: "n1", Text: "note"}}, a.Resolve([]string{"p1"}))
}

func TestLoadAnnotations_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texts.json")
	require.NoError(t, os.WriteFile(path, []byte(`[1,2`), 0644))

	_, err := LoadAnnotations(path, "")
	assert.ErrorIs(t, err, ErrMalformedAnnotations)
}

func TestWriteAnnotationLinks_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	linksPath := filepath.Join(dir, "nested", "links.json")

	a := NewAnnotations(map[string]string{"n1": "note"}, map[string][]string{"p1": {"n1"}})
	rewritten := a.Rewrite(map[string]string{"p1": "m-1"})
	require.NoError(t, WriteAnnotationLinks(linksPath, rewritten.Links()))

	loaded, err := LoadAnnotations("", linksPath)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"m-1": {"n1"}}, loaded.Links())
}

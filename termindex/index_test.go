package termindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFile() *File {
	return &File{
		TermToChunks: map[string][]string{
			"warburg":         {"p1", "p2", "p2"},
			"delbanco":        {"p2", "p3"},
			"bank of england": {"p7"},
			"hamburg":         {"p4"},
		},
		EntityAssociations: map[string][]string{
			"warburg":  {"Hamburg", "banking", "a", "b", "c", "d", "e"},
			"delbanco": {"venice"},
		},
		NameChanges: map[string][]string{
			"warburg":      {"Delbanco"},
			"warburg & co": {"warburg"},
			"hamburg":      {},
			"new york":     {"new amsterdam"},
		},
	}
}

func TestNew_DeduplicatesIDs(t *testing.T) {
	idx := New(sampleFile())
	assert.Equal(t, []string{"p1", "p2"}, idx.Lookup("warburg"))
	assert.Equal(t, []string{"p1", "p2"}, idx.Lookup("Warburg"))
	assert.Empty(t, idx.Lookup("unknown"))
}

func TestAliases_TransitiveAndSymmetric(t *testing.T) {
	idx := New(sampleFile())

	assert.Equal(t, []string{"delbanco", "warburg & co"}, idx.Aliases("warburg"))
	assert.Equal(t, []string{"warburg", "warburg & co"}, idx.Aliases("delbanco"))
	assert.Equal(t, []string{"delbanco", "warburg"}, idx.Aliases("Warburg & Co"))
	assert.Empty(t, idx.Aliases("hamburg"))
}

func TestAssociations_Limit(t *testing.T) {
	idx := New(sampleFile())

	assert.Equal(t, []string{"hamburg", "banking", "a", "b", "c"}, idx.Associations("warburg", DefaultAssociationLimit))
	assert.Len(t, idx.Associations("warburg", 0), 7)
	assert.Empty(t, idx.Associations("missing", 5))
}

func TestExpand_Symmetric(t *testing.T) {
	idx := New(sampleFile())

	fromWarburg := idx.Expand([]string{"warburg"}, DefaultAssociationLimit)
	fromDelbanco := idx.Expand([]string{"delbanco"}, DefaultAssociationLimit)

	assert.ElementsMatch(t, fromWarburg, fromDelbanco)
	assert.Contains(t, fromWarburg, "venice")
	assert.Contains(t, fromDelbanco, "hamburg")
	assert.Equal(t, "warburg", fromWarburg[0])
}

func TestExpand_NoDuplicates(t *testing.T) {
	idx := New(sampleFile())

	expanded := idx.Expand([]string{"warburg", "delbanco", "warburg", ""}, DefaultAssociationLimit)
	seen := make(map[string]bool)
	for _, term := range expanded {
		assert.False(t, seen[term], "duplicate term %q", term)
		seen[term] = true
	}
}

func TestQueryTerms_RecognizesKnownPhrases(t *testing.T) {
	idx := New(sampleFile())

	terms := idx.QueryTerms("What did the Bank of England lend to Warburg?")
	assert.Contains(t, terms, "bank of england")
	assert.Contains(t, terms, "warburg")
	assert.NotContains(t, terms, "the")
	assert.NotContains(t, terms, "bank england")

	terms = idx.QueryTerms("New Amsterdam harbour")
	assert.Contains(t, terms, "new amsterdam")
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexMissing)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrMalformedIndex)
}

func TestWriteFileAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.json")
	require.NoError(t, WriteFile(path, sampleFile()))

	idx, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3"}, idx.Lookup("delbanco"))
	assert.Equal(t, 4, idx.TermCount())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoad_EmptyTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"term_to_chunks":{"a1":["p1"]}}`), 0644))

	file, err := ReadFile(path)
	require.NoError(t, err)
	assert.NotNil(t, file.EntityAssociations)
	assert.NotNil(t, file.NameChanges)
}

func TestIndexFile_RoundTripsClosedAliases(t *testing.T) {
	file := New(sampleFile()).File()

	assert.ElementsMatch(t, []string{"delbanco", "warburg & co"}, file.NameChanges["warburg"])
	assert.Equal(t, []string{"p1", "p2"}, file.TermToChunks["warburg"])
}

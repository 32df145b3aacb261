package ingestion

import (
	"fmt"
	"strings"
	"testing"

	"github.com/poiesic/archivist/core"
	"github.com/poiesic/archivist/dedupe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []string
	}{
		{
			name:    "overlapping windows",
			text:    "a b c d e f g h i j",
			size:    4,
			overlap: 1,
			want:    []string{"a b c d", "d e f g", "g h i j"},
		},
		{
			name:    "no overlap with short tail",
			text:    "a b c d e",
			size:    2,
			overlap: 0,
			want:    []string{"a b", "c d", "e"},
		},
		{
			name: "exact fit",
			text: "a b c d",
			size: 4,
			want: []string{"a b c d"},
		},
		{
			name:    "whitespace normalized",
			text:    "  the\ttreaty\n\nof   nerchinsk ",
			size:    10,
			overlap: 2,
			want:    []string{"the treaty of nerchinsk"},
		},
		{
			name: "empty text",
			text: " \n\t ",
			size: 4,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Chunk(tt.text, tt.size, tt.overlap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, chunks)
		})
	}
}

func TestChunk_InvalidParameters(t *testing.T) {
	_, err := Chunk("a b c", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)

	_, err = Chunk("a b c", 3, 3)
	assert.ErrorIs(t, err, ErrInvalidChunkOverlap)

	_, err = Chunk("a b c", 3, -1)
	assert.ErrorIs(t, err, ErrInvalidChunkOverlap)
}

func TestChunk_DedupeRestoresDocument(t *testing.T) {
	words := make([]string, 23)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	text := strings.Join(words, " ")

	chunks, err := Chunk(text, 8, dedupe.DefaultWindow)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	passages := make([]*core.Passage, len(chunks))
	for i, chunk := range chunks {
		passages[i] = &core.Passage{ID: core.PassageIDFor("doc", i), Text: chunk, SourceDocument: "doc", Position: i}
	}

	result, err := dedupe.Dedupe(map[string][]*core.Passage{"doc": passages})
	require.NoError(t, err)
	require.Len(t, result.Passages, 1)
	assert.Equal(t, text, result.Passages[0].Text)
	assert.Empty(t, result.Lossy)
}

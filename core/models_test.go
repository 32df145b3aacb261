package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantSame bool
	}{
		{
			name:     "same content produces same ID",
			content:  "test content",
			wantSame: true,
		},
		{
			name:     "empty string",
			content:  "",
			wantSame: true,
		},
		{
			name:     "long content",
			content:  "This is a much longer piece of content that should still hash consistently",
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if tt.wantSame && id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_DifferentContent(t *testing.T) {
	assert.NotEqual(t, IDFromContent("warburg"), IDFromContent("delbanco"))
}

func TestMergedPassageID(t *testing.T) {
	a := MergedPassageID("letters-1923", "the quick brown fox")
	b := MergedPassageID("letters-1923", "the quick brown fox")
	c := MergedPassageID("letters-1924", "the quick brown fox")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c, "same text in another document must not collide")
	assert.True(t, strings.HasPrefix(a, "m-"))
}

func TestPassageIDFor(t *testing.T) {
	assert.Equal(t, PassageIDFor("doc", 3), PassageIDFor("doc", 3))
	assert.NotEqual(t, PassageIDFor("doc", 3), PassageIDFor("doc", 4))
	assert.True(t, strings.HasPrefix(PassageIDFor("doc", 0), "p-"))
}

func TestRetrievalResultIDs(t *testing.T) {
	result := &RetrievalResult{
		Passages: []*ScoredPassage{
			{Passage: &Passage{ID: "p2"}, Score: 1.2},
			{Passage: &Passage{ID: "p1"}, Score: 0.4},
		},
	}
	assert.Equal(t, []string{"p2", "p1"}, result.IDs())
	assert.Empty(t, (&RetrievalResult{}).IDs())
}

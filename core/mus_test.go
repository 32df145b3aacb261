package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassageMUS(t *testing.T) {
	now := time.Date(1621, time.March, 4, 12, 30, 0, 123000, time.UTC)
	passage := Passage{
		ID:             PassageIDFor("letters", 2),
		Text:           "The shipment left Venice.",
		SourceDocument: "letters",
		Position:       2,
		Metadata:       map[string]string{"year": "1621"},
		Vector:         []float32{0.6, -0.8},
		InsertedAt:     now,
		UpdatedAt:      now.Add(time.Hour),
	}

	buf := make([]byte, PassageMUS.Size(passage))
	n := PassageMUS.Marshal(passage, buf)
	require.Equal(t, len(buf), n)

	decoded, m, err := PassageMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, n, m)
	assert.Equal(t, passage, decoded)

	skipped, err := PassageMUS.Skip(buf)
	require.NoError(t, err)
	assert.Equal(t, n, skipped)
}

func TestPassageMUS_EmptyVectorDecodesNil(t *testing.T) {
	passage := Passage{ID: "p1", Text: "x", Vector: []float32{}}
	buf := make([]byte, PassageMUS.Size(passage))
	PassageMUS.Marshal(passage, buf)

	decoded, _, err := PassageMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Nil(t, decoded.Vector)
	assert.NotNil(t, decoded.Metadata)
}

func TestCheckpointMUS(t *testing.T) {
	checkpoint := Checkpoint{ProcessorType: "reembed", LastID: "p-9", Processed: 120, UpdatedAt: time.Unix(1700000000, 0).UTC()}

	buf := make([]byte, CheckpointMUS.Size(checkpoint))
	n := CheckpointMUS.Marshal(checkpoint, buf)

	decoded, m, err := CheckpointMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, n, m)
	assert.Equal(t, checkpoint, decoded)

	skipped, err := CheckpointMUS.Skip(buf)
	require.NoError(t, err)
	assert.Equal(t, n, skipped)

	_, _, err = CheckpointMUS.Unmarshal(buf[:n-1])
	assert.Error(t, err)
}

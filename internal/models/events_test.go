package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStreamEvent(t *testing.T) {
	t.Run("text event", func(t *testing.T) {
		evt, ok := ParseStreamEvent(`data: {"type":"text","content":"Hello"}`)
		require.True(t, ok)
		text, ok := evt.(TextEvent)
		require.True(t, ok)
		assert.Equal(t, "Hello", text.Content)
	})

	t.Run("citations event", func(t *testing.T) {
		evt, ok := ParseStreamEvent(`data: {"type":"citations","citations":[{"qdrant_chunk_id":"c1","source_id":"s1"}]}`)
		require.True(t, ok)
		cits, ok := evt.(CitationsEvent)
		require.True(t, ok)
		require.Len(t, cits.Citations, 1)
		assert.Equal(t, "c1", cits.Citations[0].QdrantChunkID)
	})

	t.Run("error event", func(t *testing.T) {
		evt, ok := ParseStreamEvent(`data: {"type":"error","message":"boom"}`)
		require.True(t, ok)
		errEvt, ok := evt.(ErrorEvent)
		require.True(t, ok)
		assert.Equal(t, "boom", errEvt.Message)
	})

	t.Run("ignores non-data lines", func(t *testing.T) {
		for _, line := range []string{"", ": comment", "event: message", "id: 42"} {
			_, ok := ParseStreamEvent(line)
			assert.False(t, ok, "line %q should not parse", line)
		}
	})

	t.Run("ignores garbage payloads", func(t *testing.T) {
		for _, line := range []string{"data: not json", `data: {"type":"unknown"}`, "data: [1,2]"} {
			_, ok := ParseStreamEvent(line)
			assert.False(t, ok, "line %q should not parse", line)
		}
	})
}

func TestSSEErrorFrame(t *testing.T) {
	frame := SSEErrorFrame("RAG service unavailable")
	assert.Equal(t, "data: {\"type\":\"error\",\"message\":\"RAG service unavailable\"}\n\n", string(frame))
}

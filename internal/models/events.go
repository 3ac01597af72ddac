package models

import (
	"encoding/json"
	"strings"
)

// The RAG service streams SSE frames of the form "data: <json>\n\n" with three
// event variants. The relay forwards the raw bytes untouched and uses these
// types only for its own bookkeeping (accumulating assistant text and the
// final citation set).

// StreamEvent is one decoded SSE data payload from the RAG chat stream.
type StreamEvent interface {
	eventType() string
}

// TextEvent carries an incremental piece of the assistant's answer.
type TextEvent struct {
	Content string `json:"content"`
}

func (TextEvent) eventType() string { return "text" }

// Citation references one indexed chunk supporting the assistant's answer.
type Citation struct {
	QdrantChunkID  string `json:"qdrant_chunk_id"`
	SourceID       string `json:"source_id,omitempty"`
	Filename       string `json:"filename,omitempty"`
	Module         string `json:"module,omitempty"`
	ContentPreview string `json:"content_preview,omitempty"`
}

// CitationsEvent carries the citation set for the answer. A later
// CitationsEvent replaces an earlier one entirely (last write wins).
type CitationsEvent struct {
	Citations []Citation `json:"citations"`
}

func (CitationsEvent) eventType() string { return "citations" }

// ErrorEvent signals an upstream failure inline in the stream.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) eventType() string { return "error" }

const sseDataPrefix = "data: "

// ParseStreamEvent decodes a single SSE line into one of the event variants.
// Returns (nil, false) for non-data lines, unparseable payloads, and unknown
// event types; the relay ignores those for bookkeeping but has already
// forwarded the raw line to the client.
func ParseStreamEvent(line string) (StreamEvent, bool) {
	if !strings.HasPrefix(line, sseDataPrefix) {
		return nil, false
	}
	payload := []byte(line[len(sseDataPrefix):])

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, false
	}

	switch probe.Type {
	case "text":
		var evt TextEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, false
		}
		return evt, true
	case "citations":
		var evt CitationsEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, false
		}
		return evt, true
	case "error":
		var evt ErrorEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, false
		}
		return evt, true
	default:
		return nil, false
	}
}

// SSEErrorFrame renders a complete error frame for writing to the downstream
// client, as "data: {\"type\":\"error\",\"message\":\"<text>\"}\n\n".
func SSEErrorFrame(message string) []byte {
	payload, _ := json.Marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{Type: "error", Message: message})
	return []byte(sseDataPrefix + string(payload) + "\n\n")
}

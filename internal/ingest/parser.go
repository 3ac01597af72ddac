// Package ingest parses uploaded newline-delimited JSON into normalized
// records ready to forward to the external indexer.
package ingest

import (
	"encoding/json"
	"strings"

	"admin-console-backend/internal/models"
)

// Reasons attached to malformed-line reports.
const (
	ReasonInvalidJSON   = "Invalid JSON"
	ReasonMissingFields = "Missing required fields: content (or body/title), source_id (or id)"
)

// Record is one well-formed ingestion line. It carries every field from the
// original JSON object plus the normalized "content", "source_id" and
// "module" keys.
type Record map[string]any

// ParseJSONL splits data on newlines and classifies every non-blank line as
// either a well-formed record or a malformed-line report. Blank lines (empty
// after trimming) are skipped but still occupy a line number; nothing is
// dropped silently.
//
// Legacy export fields are normalized: content from content|body|title (first
// non-empty), source_id from source_id|id, module from module|type with
// "general" as the default.
func ParseJSONL(data []byte) ([]Record, []models.MalformedLine) {
	var records []Record
	var malformed []models.MalformedLine

	for idx, raw := range strings.Split(string(data), "\n") {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}

		var parsed any
		if err := json.Unmarshal([]byte(text), &parsed); err != nil || parsed == nil {
			malformed = append(malformed, models.MalformedLine{Line: idx + 1, Reason: ReasonInvalidJSON})
			continue
		}

		// Valid JSON that is not an object (a number, string or array) has no
		// fields to normalize and falls through to the missing-fields report.
		obj, _ := parsed.(map[string]any)

		content := firstString(obj, "content", "body", "title")
		sourceID := firstString(obj, "source_id", "id")
		module := firstString(obj, "module", "type")
		if module == "" {
			module = "general"
		}

		if content == "" || sourceID == "" {
			malformed = append(malformed, models.MalformedLine{Line: idx + 1, Reason: ReasonMissingFields})
			continue
		}

		rec := make(Record, len(obj)+3)
		for k, v := range obj {
			rec[k] = v
		}
		rec["content"] = content
		rec["source_id"] = sourceID
		rec["module"] = module
		records = append(records, rec)
	}

	return records, malformed
}

// firstString returns the first key whose value is a non-empty string.
func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

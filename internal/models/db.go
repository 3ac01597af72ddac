package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User represents a console user in the database.
type User struct {
	ID             uuid.UUID `db:"id"`
	Email          string    `db:"email"`
	HashedPassword string    `db:"hashed_password"`
	Role           string    `db:"role"` // "admin" or "member"
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Job statuses. Transitions only move forward: pending -> running -> terminal.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// IngestionJob tracks one uploaded JSONL file from acceptance through external
// indexing to a terminal outcome. Counts are only meaningful once the job has
// succeeded. ErrorDetails may be present even on success (malformed lines
// coexisting with a partial success).
type IngestionJob struct {
	ID           uuid.UUID       `db:"id"`
	Filename     string          `db:"filename"`
	Status       string          `db:"status"`
	Inserted     int             `db:"inserted"`
	Updated      int             `db:"updated"`
	Skipped      int             `db:"skipped"`
	ErrorDetails json.RawMessage `db:"error_details"` // Nullable JSONB
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// JobErrorDetails is the structured payload stored in IngestionJob.ErrorDetails.
type JobErrorDetails struct {
	RAGError       string          `json:"rag_error,omitempty"`
	MalformedLines []MalformedLine `json:"malformed_lines,omitempty"`
	Message        string          `json:"message,omitempty"`
}

// MalformedLine reports one rejected line of an uploaded file (1-based).
type MalformedLine struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Conversation is one chat session, owned by exactly one user.
type Conversation struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Name      string    `db:"name"` // Defaults to "New Conversation" until renamed
	CreatedAt time.Time `db:"created_at"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn within a conversation, ordered by CreatedAt.
type Message struct {
	ID             uuid.UUID `db:"id"`
	ConversationID uuid.UUID `db:"conversation_id"`
	Role           string    `db:"role"`
	Content        string    `db:"content"`
	CreatedAt      time.Time `db:"created_at"`
}

// MessageSource is one citation attached to an assistant message, referencing
// an indexed chunk in the external vector store.
type MessageSource struct {
	ID            uuid.UUID       `db:"id"`
	MessageID     uuid.UUID       `db:"message_id"`
	QdrantChunkID string          `db:"qdrant_chunk_id"`
	Metadata      json.RawMessage `db:"metadata"`
	CreatedAt     time.Time       `db:"created_at"`
}

// SourceMetadata is the structured shape stored in MessageSource.Metadata.
type SourceMetadata struct {
	SourceID       string `json:"source_id,omitempty"`
	Filename       string `json:"filename,omitempty"`
	Module         string `json:"module,omitempty"`
	ContentPreview string `json:"content_preview,omitempty"`
}

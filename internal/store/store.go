package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"admin-console-backend/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// CreateUserParams holds the data needed to create a new user.
type CreateUserParams struct {
	Email          string
	HashedPassword string
	Role           string
}

// CreateIngestionJobParams holds the data needed to register a new ingestion job.
type CreateIngestionJobParams struct {
	ID       uuid.UUID
	Filename string
}

// JobCounts carries the per-record outcome counts reported by the indexer.
type JobCounts struct {
	Inserted int
	Updated  int
	Skipped  int
}

// CreateMessageParams holds the data needed to persist a chat message.
type CreateMessageParams struct {
	ConversationID uuid.UUID
	Role           string
	Content        string
}

// CreateMessageSourceParams holds one citation row for a persisted message.
type CreateMessageSourceParams struct {
	MessageID     uuid.UUID
	QdrantChunkID string
	Metadata      json.RawMessage
}

// Store defines the persistence operations required by the service layer.
type Store interface {
	// --- Users ---
	CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// --- Ingestion Jobs ---
	CreateIngestionJob(ctx context.Context, params CreateIngestionJobParams) (*models.IngestionJob, error)
	GetIngestionJobByID(ctx context.Context, jobID uuid.UUID) (*models.IngestionJob, error)
	ListIngestionJobs(ctx context.Context) ([]models.IngestionJob, error)
	// MarkJobRunning transitions a pending job to running. It is a no-op
	// (ErrNotFound) if the job is missing or already past pending.
	MarkJobRunning(ctx context.Context, jobID uuid.UUID) error
	// MarkJobSucceeded finalizes a non-terminal job with its counts and any
	// partial-failure details. Terminal jobs are never overwritten.
	MarkJobSucceeded(ctx context.Context, jobID uuid.UUID, counts JobCounts, errorDetails json.RawMessage) error
	// MarkJobFailed finalizes a non-terminal job as failed. Terminal jobs are
	// never overwritten.
	MarkJobFailed(ctx context.Context, jobID uuid.UUID, errorDetails json.RawMessage) error

	// --- Conversations ---
	CreateConversation(ctx context.Context, userID uuid.UUID, name string) (*models.Conversation, error)
	GetConversation(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error)
	ListConversationsByUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	RenameConversation(ctx context.Context, conversationID, userID uuid.UUID, name string) error
	// SetConversationName updates the name without an ownership check. Used by
	// the auto-naming path, which already operates on a verified conversation.
	SetConversationName(ctx context.Context, conversationID uuid.UUID, name string) error
	DeleteConversation(ctx context.Context, conversationID, userID uuid.UUID) error

	// --- Messages ---
	CountMessages(ctx context.Context, conversationID uuid.UUID) (int64, error)
	CreateMessage(ctx context.Context, params CreateMessageParams) (*models.Message, error)
	ListMessagesByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
	// CreateMessageSources inserts all citation rows for a message atomically.
	CreateMessageSources(ctx context.Context, params []CreateMessageSourceParams) error
	ListMessageSourcesByMessageIDs(ctx context.Context, messageIDs []uuid.UUID) ([]models.MessageSource, error)
}

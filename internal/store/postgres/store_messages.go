package postgres

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	db_models "admin-console-backend/internal/models"
	"admin-console-backend/internal/store"
)

// --- Message Methods ---

const countMessages = `-- name: CountMessages :one
SELECT COUNT(*)
FROM messages
WHERE conversation_id = $1;
`

func (s *PostgresStore) CountMessages(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, countMessages, conversationID).Scan(&count)
	if err != nil {
		log.Printf("ERROR [PostgresStore] CountMessages: Failed query/scan for conversation %s: %v", conversationID, err)
		return 0, fmt.Errorf("database error counting messages: %w", err)
	}
	return count, nil
}

const createMessage = `-- name: CreateMessage :one
INSERT INTO messages (
    conversation_id, role, content
) VALUES (
    $1, $2, $3
)
RETURNING id, conversation_id, role, content, created_at;
`

func (s *PostgresStore) CreateMessage(ctx context.Context, arg store.CreateMessageParams) (*db_models.Message, error) {
	row := s.db.QueryRow(ctx, createMessage, arg.ConversationID, arg.Role, arg.Content)
	msg := &db_models.Message{}
	err := row.Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.Role,
		&msg.Content,
		&msg.CreatedAt,
	)
	if err != nil {
		log.Printf("ERROR [PostgresStore] CreateMessage: Failed exec/scan for conversation %s (role=%s): %v", arg.ConversationID, arg.Role, err)
		return nil, fmt.Errorf("database error creating message: %w", err)
	}
	return msg, nil
}

const listMessagesByConversation = `-- name: ListMessagesByConversation :many
SELECT id, conversation_id, role, content, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY created_at ASC;
`

func (s *PostgresStore) ListMessagesByConversation(ctx context.Context, conversationID uuid.UUID) ([]db_models.Message, error) {
	rows, err := s.db.Query(ctx, listMessagesByConversation, conversationID)
	if err != nil {
		log.Printf("ERROR [PostgresStore] ListMessagesByConversation: Failed query for conversation %s: %v", conversationID, err)
		return nil, fmt.Errorf("database error listing messages: %w", err)
	}
	defer rows.Close()

	msgs := []db_models.Message{}
	for rows.Next() {
		var msg db_models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Role,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			log.Printf("ERROR [PostgresStore] ListMessagesByConversation: Failed scanning row: %v", err)
			return nil, fmt.Errorf("database error scanning message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error iterating messages: %w", err)
	}
	return msgs, nil
}

const createMessageSource = `-- name: CreateMessageSource :exec
INSERT INTO message_sources (
    message_id, qdrant_chunk_id, metadata
) VALUES (
    $1, $2, $3
);
`

// CreateMessageSources inserts all citation rows for a message in a single
// transaction, so a partial insert never leaves a half-cited message behind.
func (s *PostgresStore) CreateMessageSources(ctx context.Context, params []store.CreateMessageSourceParams) error {
	if len(params) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		log.Printf("ERROR [PostgresStore] CreateMessageSources: Failed to begin transaction: %v", err)
		return fmt.Errorf("database error starting citation transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range params {
		batch.Queue(createMessageSource, p.MessageID, p.QdrantChunkID, p.Metadata)
	}

	br := tx.SendBatch(ctx, batch)
	for range params {
		if _, err := br.Exec(); err != nil {
			br.Close()
			log.Printf("ERROR [PostgresStore] CreateMessageSources: Batch insert failed: %v", err)
			return fmt.Errorf("database error inserting message sources: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("database error closing citation batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("database error committing message sources: %w", err)
	}
	return nil
}

const listMessageSourcesByMessageIDs = `-- name: ListMessageSourcesByMessageIDs :many
SELECT id, message_id, qdrant_chunk_id, metadata, created_at
FROM message_sources
WHERE message_id = ANY($1)
ORDER BY created_at ASC;
`

func (s *PostgresStore) ListMessageSourcesByMessageIDs(ctx context.Context, messageIDs []uuid.UUID) ([]db_models.MessageSource, error) {
	if len(messageIDs) == 0 {
		return []db_models.MessageSource{}, nil
	}

	rows, err := s.db.Query(ctx, listMessageSourcesByMessageIDs, messageIDs)
	if err != nil {
		log.Printf("ERROR [PostgresStore] ListMessageSourcesByMessageIDs: Failed query: %v", err)
		return nil, fmt.Errorf("database error listing message sources: %w", err)
	}
	defer rows.Close()

	sources := []db_models.MessageSource{}
	for rows.Next() {
		var src db_models.MessageSource
		if err := rows.Scan(
			&src.ID,
			&src.MessageID,
			&src.QdrantChunkID,
			&src.Metadata,
			&src.CreatedAt,
		); err != nil {
			log.Printf("ERROR [PostgresStore] ListMessageSourcesByMessageIDs: Failed scanning row: %v", err)
			return nil, fmt.Errorf("database error scanning message source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error iterating message sources: %w", err)
	}
	return sources, nil
}

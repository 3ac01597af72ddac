package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	db_models "admin-console-backend/internal/models"
	"admin-console-backend/internal/store"
)

// --- Conversation Methods ---

const createConversation = `-- name: CreateConversation :one
INSERT INTO conversations (
    user_id, name
) VALUES (
    $1, $2
)
RETURNING id, user_id, name, created_at;
`

func (s *PostgresStore) CreateConversation(ctx context.Context, userID uuid.UUID, name string) (*db_models.Conversation, error) {
	row := s.db.QueryRow(ctx, createConversation, userID, name)
	conv := &db_models.Conversation{}
	err := row.Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Name,
		&conv.CreatedAt,
	)
	if err != nil {
		log.Printf("ERROR [PostgresStore] CreateConversation: Failed exec/scan for user %s: %v", userID, err)
		return nil, fmt.Errorf("database error creating conversation: %w", err)
	}

	log.Printf("[PostgresStore] CreateConversation: Created conversation %s for user %s", conv.ID, userID)
	return conv, nil
}

const getConversation = `-- name: GetConversation :one
SELECT id, user_id, name, created_at
FROM conversations
WHERE id = $1 AND user_id = $2;
`

// GetConversation retrieves a conversation scoped to its owner. A conversation
// belonging to another user reports store.ErrNotFound, not a permission error.
func (s *PostgresStore) GetConversation(ctx context.Context, conversationID, userID uuid.UUID) (*db_models.Conversation, error) {
	row := s.db.QueryRow(ctx, getConversation, conversationID, userID)
	conv := &db_models.Conversation{}
	err := row.Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Name,
		&conv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		log.Printf("ERROR [PostgresStore] GetConversation: Failed query/scan for conversation %s: %v", conversationID, err)
		return nil, fmt.Errorf("database error fetching conversation: %w", err)
	}
	return conv, nil
}

const listConversationsByUser = `-- name: ListConversationsByUser :many
SELECT id, user_id, name, created_at
FROM conversations
WHERE user_id = $1
ORDER BY created_at DESC;
`

func (s *PostgresStore) ListConversationsByUser(ctx context.Context, userID uuid.UUID) ([]db_models.Conversation, error) {
	rows, err := s.db.Query(ctx, listConversationsByUser, userID)
	if err != nil {
		log.Printf("ERROR [PostgresStore] ListConversationsByUser: Failed query for user %s: %v", userID, err)
		return nil, fmt.Errorf("database error listing conversations: %w", err)
	}
	defer rows.Close()

	convs := []db_models.Conversation{}
	for rows.Next() {
		var conv db_models.Conversation
		if err := rows.Scan(
			&conv.ID,
			&conv.UserID,
			&conv.Name,
			&conv.CreatedAt,
		); err != nil {
			log.Printf("ERROR [PostgresStore] ListConversationsByUser: Failed scanning row: %v", err)
			return nil, fmt.Errorf("database error scanning conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error iterating conversations: %w", err)
	}
	return convs, nil
}

const renameConversation = `-- name: RenameConversation :exec
UPDATE conversations
SET name = $3
WHERE id = $1 AND user_id = $2;
`

func (s *PostgresStore) RenameConversation(ctx context.Context, conversationID, userID uuid.UUID, name string) error {
	tag, err := s.db.Exec(ctx, renameConversation, conversationID, userID, name)
	if err != nil {
		log.Printf("ERROR [PostgresStore] RenameConversation: Failed exec for conversation %s: %v", conversationID, err)
		return fmt.Errorf("database error renaming conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const setConversationName = `-- name: SetConversationName :exec
UPDATE conversations
SET name = $2
WHERE id = $1;
`

// SetConversationName updates the name without an ownership filter. Only the
// auto-naming path uses it, after the conversation has already been verified.
func (s *PostgresStore) SetConversationName(ctx context.Context, conversationID uuid.UUID, name string) error {
	tag, err := s.db.Exec(ctx, setConversationName, conversationID, name)
	if err != nil {
		log.Printf("ERROR [PostgresStore] SetConversationName: Failed exec for conversation %s: %v", conversationID, err)
		return fmt.Errorf("database error naming conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const deleteConversation = `-- name: DeleteConversation :exec
DELETE FROM conversations
WHERE id = $1 AND user_id = $2;
`

// DeleteConversation removes a conversation. Messages and message sources are
// removed by ON DELETE CASCADE.
func (s *PostgresStore) DeleteConversation(ctx context.Context, conversationID, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, deleteConversation, conversationID, userID)
	if err != nil {
		log.Printf("ERROR [PostgresStore] DeleteConversation: Failed exec for conversation %s: %v", conversationID, err)
		return fmt.Errorf("database error deleting conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	log.Printf("[PostgresStore] DeleteConversation: Deleted conversation %s for user %s", conversationID, userID)
	return nil
}

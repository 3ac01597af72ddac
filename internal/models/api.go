package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// --- Auth DTOs ---

// SignupRequest defines the expected body for the signup endpoint.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest defines the expected body for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse defines the user information returned by the API.
// Avoid returning sensitive info like HashedPassword.
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
}

// AuthResponse defines the response body for successful authentication.
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	User        UserResponse `json:"user"`
}

// --- Ingestion DTOs ---

// UploadAcceptedResponse is returned when an upload is accepted for async
// processing. The job itself must be polled via the job status endpoint.
type UploadAcceptedResponse struct {
	JobID uuid.UUID `json:"job_id"`
}

// IngestionJobResponse is the full job record returned by the status endpoint.
type IngestionJobResponse struct {
	ID           uuid.UUID       `json:"id"`
	Filename     string          `json:"filename"`
	Status       string          `json:"status"`
	Inserted     int             `json:"inserted"`
	Updated      int             `json:"updated"`
	Skipped      int             `json:"skipped"`
	ErrorDetails json.RawMessage `json:"error_details,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ListIngestionJobsResponse wraps the job listing for the admin page.
type ListIngestionJobsResponse struct {
	Jobs []IngestionJobResponse `json:"jobs"`
}

// --- Assistant DTOs ---

// CreateConversationResponse is returned when a new conversation is opened.
type CreateConversationResponse struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

// ConversationResponse is the API representation of a conversation.
type ConversationResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ListConversationsResponse wraps the user's conversation listing.
type ListConversationsResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
}

// RenameConversationRequest defines the PATCH body for renaming a conversation.
type RenameConversationRequest struct {
	Name string `json:"name"`
}

// HistoryMessage is a prior role/content pair forwarded to the RAG service as
// conversation context.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest defines the body for the streaming chat endpoint.
type ChatRequest struct {
	Query               string           `json:"query"`
	ConversationHistory []HistoryMessage `json:"conversation_history"`
}

// MessageSourceResponse is one citation attached to an assistant message.
type MessageSourceResponse struct {
	ID            uuid.UUID       `json:"id"`
	MessageID     uuid.UUID       `json:"message_id"`
	QdrantChunkID string          `json:"qdrant_chunk_id"`
	Metadata      json.RawMessage `json:"metadata"`
}

// MessageResponse is a message with its attached sources.
type MessageResponse struct {
	ID             uuid.UUID               `json:"id"`
	ConversationID uuid.UUID               `json:"conversation_id"`
	Role           string                  `json:"role"`
	Content        string                  `json:"content"`
	CreatedAt      time.Time               `json:"created_at"`
	Sources        []MessageSourceResponse `json:"sources"`
}

// ListMessagesResponse wraps a conversation's message listing.
type ListMessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
}

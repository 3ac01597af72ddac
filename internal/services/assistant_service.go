package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"admin-console-backend/internal/models"
	"admin-console-backend/internal/store"
)

// Custom errors for the assistant service
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyQuery           = errors.New("query cannot be empty")
	ErrConversationStore    = errors.New("failed to access conversation storage")
)

// defaultConversationName is the placeholder until the first turn triggers
// auto-naming.
const defaultConversationName = "New Conversation"

// persistTimeout bounds the detached persistence pass that runs after a chat
// stream has closed.
const persistTimeout = 30 * time.Second

// TitleGenerator names a conversation from its opening query. Narrowed to an
// interface so tests can substitute a fake.
type TitleGenerator interface {
	ConversationName(ctx context.Context, query string) string
}

// AssistantService owns conversations, their message history, and the
// persistence that follows a completed chat stream.
type AssistantService struct {
	store  store.Store
	titler TitleGenerator
}

func NewAssistantService(s store.Store, titler TitleGenerator) *AssistantService {
	return &AssistantService{
		store:  s,
		titler: titler,
	}
}

// CreateConversation opens a new, empty conversation for the user.
func (s *AssistantService) CreateConversation(ctx context.Context, userID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.store.CreateConversation(ctx, userID, defaultConversationName)
	if err != nil {
		log.Printf("Error creating conversation for user %s: %v", userID, err)
		return nil, ErrConversationStore
	}
	return conv, nil
}

// GetConversation fetches a conversation the user owns.
func (s *AssistantService) GetConversation(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		log.Printf("Error fetching conversation %s: %v", conversationID, err)
		return nil, ErrConversationStore
	}
	return conv, nil
}

// ListConversations fetches the user's conversations, newest first.
func (s *AssistantService) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	convs, err := s.store.ListConversationsByUser(ctx, userID)
	if err != nil {
		log.Printf("Error listing conversations for user %s: %v", userID, err)
		return nil, ErrConversationStore
	}
	return convs, nil
}

// RenameConversation updates a conversation's display name, scoped to the owner.
func (s *AssistantService) RenameConversation(ctx context.Context, conversationID, userID uuid.UUID, name string) error {
	err := s.store.RenameConversation(ctx, conversationID, userID, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrConversationNotFound
		}
		log.Printf("Error renaming conversation %s: %v", conversationID, err)
		return ErrConversationStore
	}
	return nil
}

// DeleteConversation removes a conversation and, via cascade, its messages.
func (s *AssistantService) DeleteConversation(ctx context.Context, conversationID, userID uuid.UUID) error {
	err := s.store.DeleteConversation(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrConversationNotFound
		}
		log.Printf("Error deleting conversation %s: %v", conversationID, err)
		return ErrConversationStore
	}
	return nil
}

// ListMessages fetches a conversation's messages in order, with each assistant
// message's citation rows attached.
func (s *AssistantService) ListMessages(ctx context.Context, conversationID, userID uuid.UUID) ([]models.Message, map[uuid.UUID][]models.MessageSource, error) {
	if _, err := s.GetConversation(ctx, conversationID, userID); err != nil {
		return nil, nil, err
	}

	msgs, err := s.store.ListMessagesByConversation(ctx, conversationID)
	if err != nil {
		log.Printf("Error listing messages for conversation %s: %v", conversationID, err)
		return nil, nil, ErrConversationStore
	}

	ids := make([]uuid.UUID, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	sources, err := s.store.ListMessageSourcesByMessageIDs(ctx, ids)
	if err != nil {
		log.Printf("Error listing message sources for conversation %s: %v", conversationID, err)
		return nil, nil, ErrConversationStore
	}

	byMessage := make(map[uuid.UUID][]models.MessageSource, len(msgs))
	for _, src := range sources {
		byMessage[src.MessageID] = append(byMessage[src.MessageID], src)
	}
	return msgs, byMessage, nil
}

// StartTurn verifies ownership and persists the user's message before the
// upstream stream is opened, so the question survives even if the RAG call
// fails. It reports whether this is the conversation's first message.
func (s *AssistantService) StartTurn(ctx context.Context, conversationID, userID uuid.UUID, query string) (bool, error) {
	if query == "" {
		return false, ErrEmptyQuery
	}
	if _, err := s.GetConversation(ctx, conversationID, userID); err != nil {
		return false, err
	}

	count, err := s.store.CountMessages(ctx, conversationID)
	if err != nil {
		log.Printf("Error counting messages for conversation %s: %v", conversationID, err)
		return false, ErrConversationStore
	}

	if _, err := s.store.CreateMessage(ctx, store.CreateMessageParams{
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        query,
	}); err != nil {
		log.Printf("Error persisting user message for conversation %s: %v", conversationID, err)
		return false, ErrConversationStore
	}

	return count == 0, nil
}

// PersistAssistantTurn records the outcome of a completed chat stream. It runs
// detached from any request, after the response to the client has finished, so
// every failure here is logged and absorbed rather than surfaced.
//
// An empty accumulated text means the stream produced nothing usable (for
// example, it errored before the first token); in that case no assistant
// message is written and the conversation keeps only the user's question.
func (s *AssistantService) PersistAssistantTurn(conversationID uuid.UUID, query, text string, citations []models.Citation, firstTurn bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR [AssistantService] Recovered panic persisting turn for conversation %s: %v", conversationID, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if text == "" {
		log.Printf("[AssistantService] Conversation %s: stream produced no text, skipping assistant message", conversationID)
		return
	}

	msg, err := s.store.CreateMessage(ctx, store.CreateMessageParams{
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        text,
	})
	if err != nil {
		log.Printf("ERROR [AssistantService] Conversation %s: failed to persist assistant message: %v", conversationID, err)
		return
	}

	if len(citations) > 0 {
		params := make([]store.CreateMessageSourceParams, 0, len(citations))
		for _, c := range citations {
			meta, err := json.Marshal(models.SourceMetadata{
				SourceID:       c.SourceID,
				Filename:       c.Filename,
				Module:         c.Module,
				ContentPreview: c.ContentPreview,
			})
			if err != nil {
				continue
			}
			params = append(params, store.CreateMessageSourceParams{
				MessageID:     msg.ID,
				QdrantChunkID: c.QdrantChunkID,
				Metadata:      meta,
			})
		}
		// Citation loss is acceptable; the assistant message itself stays.
		if err := s.store.CreateMessageSources(ctx, params); err != nil {
			log.Printf("WARN: [AssistantService] Conversation %s: failed to persist %d citations for message %s: %v", conversationID, len(params), msg.ID, err)
		}
	}

	if firstTurn {
		name := s.titler.ConversationName(ctx, query)
		if err := s.store.SetConversationName(ctx, conversationID, name); err != nil {
			log.Printf("WARN: [AssistantService] Conversation %s: failed to set auto-generated name: %v", conversationID, err)
		}
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"admin-console-backend/internal/models"
	"admin-console-backend/internal/rag"
	"admin-console-backend/internal/services"
	"admin-console-backend/pkg/httputil"
)

// Error messages written as inline SSE error frames. The wording distinguishes
// a connection failure from an upstream error status.
const (
	msgRAGUnavailable = "RAG service unavailable"
	msgRAGError       = "RAG service error"
)

// AssistantService defines the interface expected from the assistant service.
type AssistantService interface {
	CreateConversation(ctx context.Context, userID uuid.UUID) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	RenameConversation(ctx context.Context, conversationID, userID uuid.UUID, name string) error
	DeleteConversation(ctx context.Context, conversationID, userID uuid.UUID) error
	ListMessages(ctx context.Context, conversationID, userID uuid.UUID) ([]models.Message, map[uuid.UUID][]models.MessageSource, error)
	StartTurn(ctx context.Context, conversationID, userID uuid.UUID, query string) (bool, error)
	PersistAssistantTurn(conversationID uuid.UUID, query, text string, citations []models.Citation, firstTurn bool)
}

// ChatStreamer opens the upstream RAG chat stream.
type ChatStreamer interface {
	Chat(ctx context.Context, req rag.ChatRequest) (io.ReadCloser, error)
}

type AssistantHandler struct {
	assistantService AssistantService
	ragClient        ChatStreamer
}

func NewAssistantHandler(svc AssistantService, ragClient ChatStreamer) *AssistantHandler {
	return &AssistantHandler{
		assistantService: svc,
		ragClient:        ragClient,
	}
}

// requireUserID pulls the authenticated user out of the request context. The
// JWT middleware guarantees it is present on protected routes.
func requireUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := authUserID(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, httputil.CodeUnauthorized, "Authentication required")
		return uuid.Nil, false
	}
	return userID, true
}

// HandleCreateConversation handles POST /v1/assistant/conversations.
func (h *AssistantHandler) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	conv, err := h.assistantService.CreateConversation(r.Context(), userID)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, httputil.CodeInternal, "Failed to create conversation")
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, models.CreateConversationResponse{ConversationID: conv.ID})
}

// HandleListConversations handles GET /v1/assistant/conversations.
func (h *AssistantHandler) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	convs, err := h.assistantService.ListConversations(r.Context(), userID)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, httputil.CodeInternal, "Failed to list conversations")
		return
	}

	resp := models.ListConversationsResponse{Conversations: make([]models.ConversationResponse, 0, len(convs))}
	for _, c := range convs {
		resp.Conversations = append(resp.Conversations, models.ConversationResponse{
			ID:        c.ID,
			Name:      c.Name,
			CreatedAt: c.CreatedAt,
		})
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleRenameConversation handles PATCH /v1/assistant/conversations/{conversationID}.
func (h *AssistantHandler) HandleRenameConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	convID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, httputil.CodeValidation, "Invalid conversation ID format")
		return
	}

	var req models.RenameConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, httputil.CodeValidation, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httputil.RespondError(w, http.StatusBadRequest, httputil.CodeValidation, "Name cannot be empty")
		return
	}

	if err := h.assistantService.RenameConversation(r.Context(), convID, userID, req.Name); err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			httputil.RespondError(w, http.StatusNotFound, httputil.CodeNotFound, "Conversation not found")
			return
		}
		httputil.RespondError(w, http.StatusInternalServerError, httputil.CodeInternal, "Failed to rename conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteConversation handles DELETE /v1/assistant/conversations/{conversationID}.
func (h *AssistantHandler) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	convID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, httputil.CodeValidation, "Invalid conversation ID format")
		return
	}

	if err := h.assistantService.DeleteConversation(r.Context(), convID, userID); err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			httputil.RespondError(w, http.StatusNotFound, httputil.CodeNotFound, "Conversation not found")
			return
		}
		httputil.RespondError(w, http.StatusInternalServerError, httputil.CodeInternal, "Failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListMessages handles GET /v1/assistant/conversations/{conversationID}/messages.
func (h *AssistantHandler) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	convID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, httputil.CodeValidation, "Invalid conversation ID format")
		return
	}

	msgs, sourcesByMsg, err := h.assistantService.ListMessages(r.Context(), convID, userID)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			httputil.RespondError(w, http.StatusNotFound, httputil.CodeNotFound, "Conversation not found")
			return
		}
		httputil.RespondError(w, http.StatusInternalServerError, httputil.CodeInternal, "Failed to list messages")
		return
	}

	resp := models.ListMessagesResponse{Messages: make([]models.MessageResponse, 0, len(msgs))}
	for _, m := range msgs {
		out := models.MessageResponse{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			Role:           m.Role,
			Content:        m.Content,
			CreatedAt:      m.CreatedAt,
			Sources:        []models.MessageSourceResponse{},
		}
		for _, src := range sourcesByMsg[m.ID] {
			out.Sources = append(out.Sources, models.MessageSourceResponse{
				ID:            src.ID,
				MessageID:     src.MessageID,
				QdrantChunkID: src.QdrantChunkID,
				Metadata:      src.Metadata,
			})
		}
		resp.Messages = append(resp.Messages, out)
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleChat handles POST /v1/assistant/conversations/{conversationID}/chat.
//
// The response is an SSE stream relayed byte-for-byte from the RAG service.
// The user's message is persisted before the upstream dial so it survives an
// upstream failure; the assistant's reply is persisted by a detached follow-up
// after the stream closes.
func (h *AssistantHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	convID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, httputil.CodeValidation, "Invalid conversation ID format")
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, httputil.CodeValidation, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	query := strings.TrimSpace(req.Query)

	firstTurn, err := h.assistantService.StartTurn(r.Context(), convID, userID, query)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyQuery):
			httputil.RespondError(w, http.StatusBadRequest, httputil.CodeValidation, "Query cannot be empty")
		case errors.Is(err, services.ErrConversationNotFound):
			httputil.RespondError(w, http.StatusNotFound, httputil.CodeNotFound, "Conversation not found")
		default:
			httputil.RespondError(w, http.StatusInternalServerError, httputil.CodeInternal, "Failed to start chat turn")
		}
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Printf("ERROR [AssistantHandler] HandleChat: ResponseWriter does not support flushing")
		httputil.RespondError(w, http.StatusInternalServerError, httputil.CodeInternal, "Streaming not supported")
		return
	}

	// The client must see the stream open before any upstream bytes exist.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Dialing with the request context ties the upstream connection to the
	// downstream one: a client disconnect cancels the upstream read instead of
	// leaking the connection.
	upstream, err := h.ragClient.Chat(r.Context(), rag.ChatRequest{
		Query:               query,
		ConversationHistory: req.ConversationHistory,
	})
	if err != nil {
		msg := msgRAGUnavailable
		if errors.Is(err, rag.ErrUpstreamStatus) {
			msg = msgRAGError
		}
		log.Printf("WARN: [AssistantHandler] HandleChat: Upstream dial failed for conversation %s: %v", convID, err)
		w.Write(models.SSEErrorFrame(msg))
		flusher.Flush()
		return
	}
	defer upstream.Close()

	text, citations := h.relay(w, flusher, upstream)

	// Persistence runs detached. The HTTP exchange is already complete, so
	// nothing here can (or should) surface to the client.
	go h.assistantService.PersistAssistantTurn(convID, query, text, citations, firstTurn)
}

// relay copies the upstream stream to the client verbatim while reassembling
// lines on the side to accumulate the assistant's text and final citation set.
func (h *AssistantHandler) relay(w http.ResponseWriter, flusher http.Flusher, upstream io.Reader) (string, []models.Citation) {
	var (
		text      strings.Builder
		citations []models.Citation
		carry     string
		buf       = make([]byte, 4096)
	)

	consume := func(line string) {
		evt, ok := models.ParseStreamEvent(strings.TrimSuffix(line, "\r"))
		if !ok {
			return
		}
		switch e := evt.(type) {
		case models.TextEvent:
			text.WriteString(e.Content)
		case models.CitationsEvent:
			// Last write wins; an upstream refinement replaces the set.
			citations = e.Citations
		}
	}

	for {
		n, err := upstream.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if _, werr := w.Write(chunk); werr != nil {
				// Downstream is gone; keep draining lines for bookkeeping
				// until upstream ends so persistence still has the full text.
				log.Printf("WARN: [AssistantHandler] relay: Downstream write failed: %v", werr)
			}
			flusher.Flush()

			carry += string(chunk)
			lines := strings.Split(carry, "\n")
			carry = lines[len(lines)-1]
			for _, line := range lines[:len(lines)-1] {
				consume(line)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("WARN: [AssistantHandler] relay: Upstream read ended with error: %v", err)
			}
			break
		}
	}
	// A trailing partial line at end-of-stream was forwarded but never
	// completed; it is dropped from bookkeeping.

	return text.String(), citations
}

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admin-console-backend/internal/auth"
	"admin-console-backend/internal/models"
	"admin-console-backend/internal/rag"
	"admin-console-backend/internal/services"
	"admin-console-backend/internal/store"
	"admin-console-backend/internal/store/storetest"
)

type staticTitler struct{ title string }

func (s *staticTitler) ConversationName(ctx context.Context, query string) string { return s.title }

// syncAssistant wraps the real service and signals when the detached
// persistence pass has finished, so tests can wait deterministically.
type syncAssistant struct {
	*services.AssistantService
	persisted chan struct{}
}

func (s *syncAssistant) PersistAssistantTurn(conversationID uuid.UUID, query, text string, citations []models.Citation, firstTurn bool) {
	s.AssistantService.PersistAssistantTurn(conversationID, query, text, citations, firstTurn)
	close(s.persisted)
}

type chatFixture struct {
	store   *storetest.MemStore
	svc     *syncAssistant
	router  *chi.Mux
	userID  uuid.UUID
	convID  uuid.UUID
	baseCtx context.Context
}

func newChatFixture(t *testing.T, ragBaseURL string) *chatFixture {
	t.Helper()
	st := storetest.New()
	inner := services.NewAssistantService(st, &staticTitler{title: "Test Title"})
	svc := &syncAssistant{AssistantService: inner, persisted: make(chan struct{})}

	user, err := st.CreateUser(context.Background(), store.CreateUserParams{
		Email: "u@example.com", HashedPassword: "x", Role: auth.RoleMember,
	})
	require.NoError(t, err)
	conv, err := inner.CreateConversation(context.Background(), user.ID)
	require.NoError(t, err)

	h := NewAssistantHandler(svc, rag.NewClient(ragBaseURL, 5*time.Second))
	r := chi.NewRouter()
	r.Post("/conversations/{conversationID}/chat", h.HandleChat)
	r.Get("/conversations/{conversationID}/messages", h.HandleListMessages)

	return &chatFixture{
		store:   st,
		svc:     svc,
		router:  r,
		userID:  user.ID,
		convID:  conv.ID,
		baseCtx: context.WithValue(context.Background(), auth.UserIDKey, user.ID),
	}
}

func (f *chatFixture) chat(t *testing.T, convID uuid.UUID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/conversations/%s/chat", convID), strings.NewReader(body))
	req = req.WithContext(context.WithValue(f.baseCtx, auth.RoleKey, auth.RoleMember))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *chatFixture) waitPersisted(t *testing.T) {
	t.Helper()
	select {
	case <-f.svc.persisted:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for detached persistence")
	}
}

// sseUpstream serves a fixed SSE body in small flushed chunks, simulating an
// upstream that emits frames incrementally and splits them across reads.
func sseUpstream(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i := 0; i < len(body); i += 7 {
			end := i + 7
			if end > len(body) {
				end = len(body)
			}
			w.Write([]byte(body[i:end]))
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatRelaysBytesVerbatim(t *testing.T) {
	upstreamBody := `data: {"type":"text","content":"Hello"}` + "\n\n" +
		`data: {"type":"text","content":", world"}` + "\n\n" +
		`data: {"type":"citations","citations":[{"qdrant_chunk_id":"old","source_id":"s0"}]}` + "\n\n" +
		`: keep-alive comment line` + "\n" +
		`data: {"type":"citations","citations":[{"qdrant_chunk_id":"c1","source_id":"s1","filename":"f.jsonl","module":"general"}]}` + "\n\n"

	srv := sseUpstream(t, upstreamBody)
	f := newChatFixture(t, srv.URL)

	rec := f.chat(t, f.convID, `{"query":"hi there"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	// Byte-for-byte relay: the downstream body is exactly the upstream bytes.
	assert.Equal(t, upstreamBody, rec.Body.String())

	f.waitPersisted(t)

	msgs := f.store.Messages(f.convID)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi there", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hello, world", msgs[1].Content)

	// Last citations frame wins; the earlier set is replaced, not appended.
	sources := f.store.Sources(msgs[1].ID)
	require.Len(t, sources, 1)
	assert.Equal(t, "c1", sources[0].QdrantChunkID)

	// First turn triggers auto-naming.
	assert.Equal(t, "Test Title", f.store.ConversationName(f.convID))
}

func TestChatUpstreamUnavailable(t *testing.T) {
	// Point at a closed port; the dial itself fails.
	f := newChatFixture(t, "http://127.0.0.1:1")

	rec := f.chat(t, f.convID, `{"query":"hi"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(models.SSEErrorFrame("RAG service unavailable")), rec.Body.String())

	// The user's question was persisted before the dial and survives it.
	msgs := f.store.Messages(f.convID)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestChatUpstreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal retrieval failure", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	f := newChatFixture(t, srv.URL)

	rec := f.chat(t, f.convID, `{"query":"hi"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(models.SSEErrorFrame("RAG service error")), rec.Body.String())

	msgs := f.store.Messages(f.convID)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
}

func TestChatEmptyStreamPersistsNoAssistantMessage(t *testing.T) {
	srv := sseUpstream(t, "")
	f := newChatFixture(t, srv.URL)

	rec := f.chat(t, f.convID, `{"query":"hi"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	f.waitPersisted(t)

	msgs := f.store.Messages(f.convID)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	// An empty stream does not trigger auto-naming either.
	assert.Equal(t, "New Conversation", f.store.ConversationName(f.convID))
}

func TestChatBlankQueryRejected(t *testing.T) {
	f := newChatFixture(t, "http://127.0.0.1:1")
	rec := f.chat(t, f.convID, `{"query":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.store.Messages(f.convID))
}

func TestChatUnknownConversationIs404(t *testing.T) {
	f := newChatFixture(t, "http://127.0.0.1:1")
	rec := f.chat(t, uuid.New(), `{"query":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatSplitFrameAcrossChunks(t *testing.T) {
	// The 7-byte chunking in sseUpstream slices every frame across multiple
	// reads; the accumulator must reassemble them correctly.
	upstreamBody := `data: {"type":"text","content":"abcdefghij"}` + "\n\n" +
		`data: {"type":"text","content":"klmnopqrst"}` + "\n\n"
	srv := sseUpstream(t, upstreamBody)
	f := newChatFixture(t, srv.URL)

	rec := f.chat(t, f.convID, `{"query":"hi"}`)
	assert.Equal(t, upstreamBody, rec.Body.String())

	f.waitPersisted(t)

	msgs := f.store.Messages(f.convID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "abcdefghijklmnopqrst", msgs[1].Content)
}

func TestChatTrailingPartialLineNotBookkept(t *testing.T) {
	// The stream ends without a final newline. The unterminated line is still
	// forwarded verbatim but must not contribute to the persisted text.
	upstreamBody := `data: {"type":"text","content":"complete"}` + "\n\n" +
		`data: {"type":"text","content":"tail"}`
	srv := sseUpstream(t, upstreamBody)
	f := newChatFixture(t, srv.URL)

	rec := f.chat(t, f.convID, `{"query":"hi"}`)
	assert.Equal(t, upstreamBody, rec.Body.String())

	f.waitPersisted(t)

	msgs := f.store.Messages(f.convID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "complete", msgs[1].Content)
}

func TestListMessagesUnknownConversation(t *testing.T) {
	f := newChatFixture(t, "http://127.0.0.1:1")
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/conversations/%s/messages", uuid.New()), nil)
	req = req.WithContext(f.baseCtx)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package rag

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admin-console-backend/internal/ingest"
)

func TestIngestRoundTrip(t *testing.T) {
	var got IngestRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ingest", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(IngestResult{Inserted: 3, Updated: 1, Skipped: 2})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, time.Second)
	jobID := uuid.New()
	result, err := client.Ingest(context.Background(), IngestRequest{
		JobID:    jobID,
		Filename: "docs.jsonl",
		Lines:    []ingest.Record{{"content": "a", "source_id": "s1", "module": "general"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Inserted)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, jobID, got.JobID)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "a", got.Lines[0]["content"])
}

func TestIngestNonSuccessStatusCapturesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "vector store offline", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, time.Second)
	_, err := client.Ingest(context.Background(), IngestRequest{JobID: uuid.New()})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "vector store offline")
	assert.ErrorIs(t, err, ErrUpstreamStatus)
}

func TestChatReturnsStreamBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat", r.URL.Path)
		require.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"type\":\"text\",\"content\":\"hi\"}\n\n"))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, time.Second)
	body, err := client.Chat(context.Background(), ChatRequest{Query: "hello"})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "data: {\"type\":\"text\",\"content\":\"hi\"}\n\n", string(raw))
}

func TestChatErrorStatusClosesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "retrieval failed", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, time.Second)
	_, err := client.Chat(context.Background(), ChatRequest{Query: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamStatus)
}

func TestChatDialFailure(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second)
	_, err := client.Chat(context.Background(), ChatRequest{Query: "hello"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUpstreamStatus))
}

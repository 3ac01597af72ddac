// Package rag wraps the external retrieval service: synchronous indexing calls
// for uploaded documents and the streaming chat endpoint the relay forwards.
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"admin-console-backend/internal/ingest"
	"admin-console-backend/internal/models"
)

// ErrUpstreamStatus indicates the RAG service answered with a non-2xx status.
// Callers use it to distinguish a rejected request from a connection failure.
var ErrUpstreamStatus = errors.New("rag service returned error status")

// StatusError carries the upstream status and response body alongside
// ErrUpstreamStatus.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rag service returned status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUpstreamStatus }

// Client talks to the RAG service over HTTP.
type Client struct {
	baseURL string
	// http serves the bounded calls (indexing). stream has no client-level
	// timeout because chat responses are open-ended SSE streams; cancellation
	// comes from the request context instead.
	http   *http.Client
	stream *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		stream:  &http.Client{},
	}
}

// IngestRequest is the payload sent to the RAG service's ingest endpoint. Lines
// carry the normalized records exactly as parsed from the uploaded file.
type IngestRequest struct {
	JobID    uuid.UUID       `json:"job_id"`
	Filename string          `json:"filename"`
	Lines    []ingest.Record `json:"lines"`
}

// IngestResult reports per-record outcomes from the indexer.
type IngestResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// Ingest submits parsed records for indexing and waits for the result.
func (c *Client) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshalling ingest request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ingest", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building ingest request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.Printf("ERROR [RAGClient] Ingest: Request failed for job %s: %v", req.JobID, err)
		return nil, fmt.Errorf("calling rag ingest endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Capture the body so the failure reason lands in the job record.
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Printf("ERROR [RAGClient] Ingest: Job %s rejected with status %d: %s", req.JobID, resp.StatusCode, string(raw))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var result IngestResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding ingest response: %w", err)
	}
	return &result, nil
}

// ChatRequest is the payload for the RAG service's streaming chat endpoint.
type ChatRequest struct {
	Query               string                  `json:"query"`
	ConversationHistory []models.HistoryMessage `json:"conversation_history"`
}

// Chat opens a streaming chat call and returns the raw response body. The
// caller owns the body and must close it. A non-2xx response is drained and
// reported as a StatusError.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshalling chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling rag chat endpoint: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		log.Printf("ERROR [RAGClient] Chat: Upstream rejected stream with status %d: %s", resp.StatusCode, string(raw))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return resp.Body, nil
}

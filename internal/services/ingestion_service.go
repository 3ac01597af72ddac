package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"admin-console-backend/internal/ingest"
	"admin-console-backend/internal/models"
	"admin-console-backend/internal/rag"
	"admin-console-backend/internal/store"
)

// MaxUploadBytes is the largest accepted upload, inclusive. A file of exactly
// this size is accepted; one byte more is rejected.
const MaxUploadBytes = 10 << 20 // 10 MiB

// Custom errors for the ingestion service
var (
	ErrFileEmpty      = errors.New("uploaded file is empty")
	ErrFileTooLarge   = fmt.Errorf("uploaded file exceeds the %d byte limit", MaxUploadBytes)
	ErrUnsupportedExt = errors.New("unsupported file extension, expected .jsonl or .ndjson")
	ErrCreatingJob    = errors.New("failed to register ingestion job")
	ErrJobNotFound    = errors.New("ingestion job not found")
	ErrFetchingJobs   = errors.New("failed to fetch ingestion jobs")
)

// Indexer is the slice of the RAG client the orchestrator needs. Narrowed to
// an interface so tests can substitute a fake.
type Indexer interface {
	Ingest(ctx context.Context, req rag.IngestRequest) (*rag.IngestResult, error)
}

// IngestionService owns JSONL uploads: synchronous validation and job
// registration, then the detached processing continuation that drives the job
// through its lifecycle.
type IngestionService struct {
	store   store.Store
	indexer Indexer
	timeout time.Duration
}

func NewIngestionService(s store.Store, indexer Indexer, timeout time.Duration) *IngestionService {
	return &IngestionService{
		store:   s,
		indexer: indexer,
		timeout: timeout,
	}
}

// Accept validates an upload and registers a pending job for it. It performs
// no parsing and no indexer calls; those happen in Process after the HTTP
// response has been written.
func (s *IngestionService) Accept(ctx context.Context, filename string, size int64) (*models.IngestionJob, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".jsonl" && ext != ".ndjson" {
		return nil, ErrUnsupportedExt
	}
	if size == 0 {
		return nil, ErrFileEmpty
	}
	if size > MaxUploadBytes {
		return nil, ErrFileTooLarge
	}

	job, err := s.store.CreateIngestionJob(ctx, store.CreateIngestionJobParams{
		ID:       uuid.New(),
		Filename: filename,
	})
	if err != nil {
		log.Printf("Error creating ingestion job for %q: %v", filename, err)
		return nil, ErrCreatingJob
	}
	return job, nil
}

// Process runs the asynchronous continuation for an accepted upload. It is
// invoked in its own goroutine after the 202 response has been sent, so it
// must never panic out and must never assume the request context is alive.
func (s *IngestionService) Process(jobID uuid.UUID, filename string, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR [IngestionService] Recovered panic processing job %s: %v", jobID, r)
			s.failJob(jobID, models.JobErrorDetails{Message: "internal processing error"})
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	records, malformed := ingest.ParseJSONL(data)
	log.Printf("[IngestionService] Job %s: parsed %d records, %d malformed lines from %q", jobID, len(records), len(malformed), filename)

	if err := s.store.MarkJobRunning(ctx, jobID); err != nil {
		log.Printf("ERROR [IngestionService] Job %s: failed to mark running: %v", jobID, err)
		if errors.Is(err, store.ErrNotFound) {
			// The job is gone or already past pending (a stray second run);
			// leave it alone.
			return
		}
		s.failJob(jobID, models.JobErrorDetails{Message: "failed to start processing: " + err.Error()})
		return
	}

	result, err := s.indexer.Ingest(ctx, rag.IngestRequest{
		JobID:    jobID,
		Filename: filename,
		Lines:    records,
	})
	if err != nil {
		details := models.JobErrorDetails{MalformedLines: malformed}
		var statusErr *rag.StatusError
		if errors.As(err, &statusErr) {
			details.RAGError = statusErr.Body
		} else {
			details.Message = err.Error()
		}
		s.failJob(jobID, details)
		return
	}

	var details json.RawMessage
	if len(malformed) > 0 {
		// Malformed lines ride along as error detail even on success so the
		// uploader can see which lines were dropped.
		details = marshalDetails(models.JobErrorDetails{MalformedLines: malformed})
	}
	counts := store.JobCounts{
		Inserted: result.Inserted,
		Updated:  result.Updated,
		Skipped:  result.Skipped,
	}
	if err := s.store.MarkJobSucceeded(ctx, jobID, counts, details); err != nil {
		log.Printf("ERROR [IngestionService] Job %s: failed to mark succeeded: %v", jobID, err)
	}
}

// failJob writes the failed terminal state. The write is best-effort: a
// failure to record the failure is logged and swallowed.
func (s *IngestionService) failJob(jobID uuid.UUID, details models.JobErrorDetails) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.store.MarkJobFailed(ctx, jobID, marshalDetails(details)); err != nil {
		log.Printf("ERROR [IngestionService] Job %s: failed to record failure: %v", jobID, err)
	}
}

func marshalDetails(details models.JobErrorDetails) json.RawMessage {
	raw, err := json.Marshal(details)
	if err != nil {
		// JobErrorDetails is plain data; this cannot realistically fail.
		return json.RawMessage(`{}`)
	}
	return raw
}

// GetJob fetches a single job record.
func (s *IngestionService) GetJob(ctx context.Context, jobID uuid.UUID) (*models.IngestionJob, error) {
	job, err := s.store.GetIngestionJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		log.Printf("Error fetching ingestion job %s: %v", jobID, err)
		return nil, ErrFetchingJobs
	}
	return job, nil
}

// ListJobs fetches all job records, newest first.
func (s *IngestionService) ListJobs(ctx context.Context) ([]models.IngestionJob, error) {
	jobs, err := s.store.ListIngestionJobs(ctx)
	if err != nil {
		log.Printf("Error listing ingestion jobs: %v", err)
		return nil, ErrFetchingJobs
	}
	return jobs, nil
}

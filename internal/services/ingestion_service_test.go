package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admin-console-backend/internal/models"
	"admin-console-backend/internal/rag"
	"admin-console-backend/internal/store/storetest"
)

type fakeIndexer struct {
	result *rag.IngestResult
	err    error

	gotReq rag.IngestRequest
}

func (f *fakeIndexer) Ingest(ctx context.Context, req rag.IngestRequest) (*rag.IngestResult, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestAcceptValidation(t *testing.T) {
	svc := NewIngestionService(storetest.New(), &fakeIndexer{}, time.Minute)
	ctx := context.Background()

	t.Run("rejects unsupported extension", func(t *testing.T) {
		_, err := svc.Accept(ctx, "data.txt", 100)
		assert.ErrorIs(t, err, ErrUnsupportedExt)
	})

	t.Run("rejects empty file", func(t *testing.T) {
		_, err := svc.Accept(ctx, "data.jsonl", 0)
		assert.ErrorIs(t, err, ErrFileEmpty)
	})

	t.Run("accepts file of exactly the cap", func(t *testing.T) {
		job, err := svc.Accept(ctx, "data.jsonl", MaxUploadBytes)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusPending, job.Status)
	})

	t.Run("rejects file one byte over the cap", func(t *testing.T) {
		_, err := svc.Accept(ctx, "data.jsonl", MaxUploadBytes+1)
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})

	t.Run("accepts ndjson extension", func(t *testing.T) {
		job, err := svc.Accept(ctx, "export.NDJSON", 50)
		require.NoError(t, err)
		assert.Equal(t, "export.NDJSON", job.Filename)
	})
}

func TestProcessSuccess(t *testing.T) {
	st := storetest.New()
	indexer := &fakeIndexer{result: &rag.IngestResult{Inserted: 2, Updated: 1, Skipped: 0}}
	svc := NewIngestionService(st, indexer, time.Minute)

	job, err := svc.Accept(context.Background(), "docs.jsonl", 10)
	require.NoError(t, err)

	data := []byte(`{"content":"a","source_id":"s1"}` + "\n" +
		`{"body":"b","id":"s2"}` + "\n" +
		`not json` + "\n" +
		`{"content":"c","source_id":"s3"}`)
	svc.Process(job.ID, "docs.jsonl", data)

	got, ok := st.Job(job.ID)
	require.True(t, ok)
	assert.Equal(t, models.JobStatusSucceeded, got.Status)
	assert.Equal(t, 2, got.Inserted)
	assert.Equal(t, 1, got.Updated)
	assert.Equal(t, 0, got.Skipped)

	// Malformed lines ride along as error detail on a succeeded job.
	var details models.JobErrorDetails
	require.NoError(t, json.Unmarshal(got.ErrorDetails, &details))
	require.Len(t, details.MalformedLines, 1)
	assert.Equal(t, 3, details.MalformedLines[0].Line)
	assert.Empty(t, details.RAGError)

	// The indexer saw the well-formed records only.
	assert.Len(t, indexer.gotReq.Lines, 3)
	assert.Equal(t, job.ID, indexer.gotReq.JobID)
}

func TestProcessUpstreamStatusFailure(t *testing.T) {
	st := storetest.New()
	indexer := &fakeIndexer{err: &rag.StatusError{StatusCode: 500, Body: "index corrupt"}}
	svc := NewIngestionService(st, indexer, time.Minute)

	job, err := svc.Accept(context.Background(), "docs.jsonl", 10)
	require.NoError(t, err)

	svc.Process(job.ID, "docs.jsonl", []byte(`{"content":"a","source_id":"s1"}`+"\n"+`broken`))

	got, ok := st.Job(job.ID)
	require.True(t, ok)
	assert.Equal(t, models.JobStatusFailed, got.Status)

	var details models.JobErrorDetails
	require.NoError(t, json.Unmarshal(got.ErrorDetails, &details))
	assert.Equal(t, "index corrupt", details.RAGError)
	require.Len(t, details.MalformedLines, 1)
	assert.Equal(t, 2, details.MalformedLines[0].Line)
}

func TestProcessConnectionFailure(t *testing.T) {
	st := storetest.New()
	indexer := &fakeIndexer{err: errors.New("dial tcp: connection refused")}
	svc := NewIngestionService(st, indexer, time.Minute)

	job, err := svc.Accept(context.Background(), "docs.jsonl", 10)
	require.NoError(t, err)

	svc.Process(job.ID, "docs.jsonl", []byte(`{"content":"a","source_id":"s1"}`))

	got, ok := st.Job(job.ID)
	require.True(t, ok)
	assert.Equal(t, models.JobStatusFailed, got.Status)

	var details models.JobErrorDetails
	require.NoError(t, json.Unmarshal(got.ErrorDetails, &details))
	assert.Contains(t, details.Message, "connection refused")
	assert.Empty(t, details.RAGError)
}

func TestProcessRecoversFromPanic(t *testing.T) {
	st := storetest.New()
	svc := NewIngestionService(st, nil, time.Minute) // nil indexer panics when called

	job, err := svc.Accept(context.Background(), "docs.jsonl", 10)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		svc.Process(job.ID, "docs.jsonl", []byte(`{"content":"a","source_id":"s1"}`))
	})

	got, ok := st.Job(job.ID)
	require.True(t, ok)
	assert.Equal(t, models.JobStatusFailed, got.Status)
}

// flakyRunStore simulates a transient database error on the running
// transition while leaving every other operation intact.
type flakyRunStore struct {
	*storetest.MemStore
}

func (f *flakyRunStore) MarkJobRunning(ctx context.Context, jobID uuid.UUID) error {
	return errors.New("connection reset by peer")
}

func TestProcessMarksJobFailedWhenRunningTransitionErrors(t *testing.T) {
	st := storetest.New()
	indexer := &fakeIndexer{result: &rag.IngestResult{Inserted: 1}}
	svc := NewIngestionService(&flakyRunStore{MemStore: st}, indexer, time.Minute)

	job, err := svc.Accept(context.Background(), "docs.jsonl", 10)
	require.NoError(t, err)

	svc.Process(job.ID, "docs.jsonl", []byte(`{"content":"a","source_id":"s1"}`))

	// A real database error must not leave the job stuck in pending.
	got, ok := st.Job(job.ID)
	require.True(t, ok)
	assert.Equal(t, models.JobStatusFailed, got.Status)

	var details models.JobErrorDetails
	require.NoError(t, json.Unmarshal(got.ErrorDetails, &details))
	assert.Contains(t, details.Message, "connection reset by peer")
}

func TestTerminalJobIsNeverMutatedAgain(t *testing.T) {
	st := storetest.New()
	indexer := &fakeIndexer{result: &rag.IngestResult{Inserted: 1}}
	svc := NewIngestionService(st, indexer, time.Minute)

	job, err := svc.Accept(context.Background(), "docs.jsonl", 10)
	require.NoError(t, err)

	svc.Process(job.ID, "docs.jsonl", []byte(`{"content":"a","source_id":"s1"}`))
	first, _ := st.Job(job.ID)
	require.Equal(t, models.JobStatusSucceeded, first.Status)

	// A stray second run must not move the job out of its terminal state.
	indexer.err = errors.New("boom")
	indexer.result = nil
	svc.Process(job.ID, "docs.jsonl", []byte(`{"content":"a","source_id":"s1"}`))

	second, _ := st.Job(job.ID)
	assert.Equal(t, models.JobStatusSucceeded, second.Status)
	assert.Equal(t, 1, second.Inserted)
}

func TestGetJobNotFound(t *testing.T) {
	svc := NewIngestionService(storetest.New(), &fakeIndexer{}, time.Minute)
	_, err := svc.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrJobNotFound)
}

// Package storetest provides an in-memory store.Store used by service and
// handler tests.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"admin-console-backend/internal/models"
	"admin-console-backend/internal/store"
)

// Ensure MemStore implements store.Store
var _ store.Store = (*MemStore)(nil)

// MemStore keeps all records in maps guarded by a single mutex. Safe for the
// concurrent access tests exercise (detached persistence goroutines).
type MemStore struct {
	mu            sync.Mutex
	users         map[uuid.UUID]models.User
	jobs          map[uuid.UUID]models.IngestionJob
	conversations map[uuid.UUID]models.Conversation
	messages      map[uuid.UUID]models.Message
	sources       map[uuid.UUID]models.MessageSource

	// FailMessageSources forces CreateMessageSources to fail, for the
	// citation-loss path.
	FailMessageSources bool
}

func New() *MemStore {
	return &MemStore{
		users:         make(map[uuid.UUID]models.User),
		jobs:          make(map[uuid.UUID]models.IngestionJob),
		conversations: make(map[uuid.UUID]models.Conversation),
		messages:      make(map[uuid.UUID]models.Message),
		sources:       make(map[uuid.UUID]models.MessageSource),
	}
}

func (m *MemStore) CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	user := models.User{
		ID:             uuid.New(),
		Email:          params.Email,
		HashedPassword: params.HashedPassword,
		Role:           params.Role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.users[user.ID] = user
	return &user, nil
}

func (m *MemStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemStore) CreateIngestionJob(ctx context.Context, params store.CreateIngestionJobParams) (*models.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	job := models.IngestionJob{
		ID:        params.ID,
		Filename:  params.Filename,
		Status:    models.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.jobs[job.ID] = job
	return &job, nil
}

func (m *MemStore) GetIngestionJobByID(ctx context.Context, jobID uuid.UUID) (*models.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &job, nil
}

func (m *MemStore) ListIngestionJobs(ctx context.Context) ([]models.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := make([]models.IngestionJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].CreatedAt.After(jobs[k].CreatedAt) })
	return jobs, nil
}

func (m *MemStore) MarkJobRunning(ctx context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != models.JobStatusPending {
		return store.ErrNotFound
	}
	job.Status = models.JobStatusRunning
	job.UpdatedAt = time.Now()
	m.jobs[jobID] = job
	return nil
}

func (m *MemStore) MarkJobSucceeded(ctx context.Context, jobID uuid.UUID, counts store.JobCounts, errorDetails json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || (job.Status != models.JobStatusPending && job.Status != models.JobStatusRunning) {
		return store.ErrNotFound
	}
	job.Status = models.JobStatusSucceeded
	job.Inserted = counts.Inserted
	job.Updated = counts.Updated
	job.Skipped = counts.Skipped
	job.ErrorDetails = errorDetails
	job.UpdatedAt = time.Now()
	m.jobs[jobID] = job
	return nil
}

func (m *MemStore) MarkJobFailed(ctx context.Context, jobID uuid.UUID, errorDetails json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || (job.Status != models.JobStatusPending && job.Status != models.JobStatusRunning) {
		return store.ErrNotFound
	}
	job.Status = models.JobStatusFailed
	job.ErrorDetails = errorDetails
	job.UpdatedAt = time.Now()
	m.jobs[jobID] = job
	return nil
}

func (m *MemStore) CreateConversation(ctx context.Context, userID uuid.UUID, name string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv := models.Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	m.conversations[conv.ID] = conv
	return &conv, nil
}

func (m *MemStore) GetConversation(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok || conv.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &conv, nil
}

func (m *MemStore) ListConversationsByUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	convs := []models.Conversation{}
	for _, c := range m.conversations {
		if c.UserID == userID {
			convs = append(convs, c)
		}
	}
	sort.Slice(convs, func(i, k int) bool { return convs[i].CreatedAt.After(convs[k].CreatedAt) })
	return convs, nil
}

func (m *MemStore) RenameConversation(ctx context.Context, conversationID, userID uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok || conv.UserID != userID {
		return store.ErrNotFound
	}
	conv.Name = name
	m.conversations[conversationID] = conv
	return nil
}

func (m *MemStore) SetConversationName(ctx context.Context, conversationID uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return store.ErrNotFound
	}
	conv.Name = name
	m.conversations[conversationID] = conv
	return nil
}

func (m *MemStore) DeleteConversation(ctx context.Context, conversationID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok || conv.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.conversations, conversationID)
	for id, msg := range m.messages {
		if msg.ConversationID == conversationID {
			delete(m.messages, id)
		}
	}
	return nil
}

func (m *MemStore) CountMessages(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			count++
		}
	}
	return count, nil
}

func (m *MemStore) CreateMessage(ctx context.Context, params store.CreateMessageParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := models.Message{
		ID:             uuid.New(),
		ConversationID: params.ConversationID,
		Role:           params.Role,
		Content:        params.Content,
		CreatedAt:      time.Now(),
	}
	m.messages[msg.ID] = msg
	return &msg, nil
}

func (m *MemStore) ListMessagesByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := []models.Message{}
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			msgs = append(msgs, msg)
		}
	}
	sort.Slice(msgs, func(i, k int) bool { return msgs[i].CreatedAt.Before(msgs[k].CreatedAt) })
	return msgs, nil
}

func (m *MemStore) CreateMessageSources(ctx context.Context, params []store.CreateMessageSourceParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailMessageSources {
		return errors.New("forced message source failure")
	}
	for _, p := range params {
		src := models.MessageSource{
			ID:            uuid.New(),
			MessageID:     p.MessageID,
			QdrantChunkID: p.QdrantChunkID,
			Metadata:      p.Metadata,
			CreatedAt:     time.Now(),
		}
		m.sources[src.ID] = src
	}
	return nil
}

func (m *MemStore) ListMessageSourcesByMessageIDs(ctx context.Context, messageIDs []uuid.UUID) ([]models.MessageSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(messageIDs))
	for _, id := range messageIDs {
		want[id] = true
	}
	sources := []models.MessageSource{}
	for _, src := range m.sources {
		if want[src.MessageID] {
			sources = append(sources, src)
		}
	}
	sort.Slice(sources, func(i, k int) bool { return sources[i].CreatedAt.Before(sources[k].CreatedAt) })
	return sources, nil
}

// Messages returns a snapshot of all messages in a conversation, for
// assertions.
func (m *MemStore) Messages(conversationID uuid.UUID) []models.Message {
	msgs, _ := m.ListMessagesByConversation(context.Background(), conversationID)
	return msgs
}

// Sources returns a snapshot of all citation rows for a message.
func (m *MemStore) Sources(messageID uuid.UUID) []models.MessageSource {
	sources, _ := m.ListMessageSourcesByMessageIDs(context.Background(), []uuid.UUID{messageID})
	return sources
}

// Job returns a snapshot of a job record, for assertions.
func (m *MemStore) Job(jobID uuid.UUID) (models.IngestionJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	return job, ok
}

// ConversationName returns the current name of a conversation.
func (m *MemStore) ConversationName(conversationID uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conversations[conversationID].Name
}

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Lllllllleong/docenrich/internal/models"
)

// MemoryDocuments is an in-memory DocumentStore.
type MemoryDocuments struct {
	mu     sync.RWMutex
	docs   map[string]models.Document
	writes int

	// Err, when set, is returned by every Upsert.
	Err error
}

func NewMemoryDocuments() *MemoryDocuments {
	return &MemoryDocuments{docs: make(map[string]models.Document)}
}

func (m *MemoryDocuments) Upsert(_ context.Context, documentID string, doc models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.docs[documentID] = copyDocument(doc)
	m.writes++
	return nil
}

func (m *MemoryDocuments) Get(_ context.Context, documentID string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[documentID]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, documentID)
	}
	doc = copyDocument(doc)
	return &doc, nil
}

// Writes returns the number of successful upserts.
func (m *MemoryDocuments) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func copyDocument(doc models.Document) models.Document {
	doc.Tags = append([]string(nil), doc.Tags...)
	doc.Confidences = append([]float64(nil), doc.Confidences...)
	return doc
}

// MemoryExecutions is an in-memory ExecutionStore.
type MemoryExecutions struct {
	mu         sync.Mutex
	executions map[string]*models.Execution
	running    map[string]string // documentId -> executionId

	// SaveErr, when set, is returned by every Save.
	SaveErr error
	// FailSaves makes that many upcoming Saves fail before SaveErr applies.
	FailSaves int
	// Now is the clock lease expiry is judged by. Defaults to time.Now.
	Now func() time.Time
}

func NewMemoryExecutions() *MemoryExecutions {
	return &MemoryExecutions{
		executions: make(map[string]*models.Execution),
		running:    make(map[string]string),
	}
}

func (m *MemoryExecutions) Create(_ context.Context, exec *models.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if other, ok := m.running[exec.DocumentID]; ok {
		now := m.now()
		prev := m.executions[other]
		if prev == nil || !prev.Abandoned(now) {
			return fmt.Errorf("%w: document %s, execution %s", ErrExecutionInProgress, exec.DocumentID, other)
		}
		prev.Abandon(now)
		delete(m.running, exec.DocumentID)
	}
	m.executions[exec.ID] = exec.Clone()
	if exec.Status == models.StatusRunning {
		m.running[exec.DocumentID] = exec.ID
	}
	return nil
}

func (m *MemoryExecutions) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

func (m *MemoryExecutions) Save(_ context.Context, exec *models.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves > 0 {
		m.FailSaves--
		return fmt.Errorf("execution store unavailable")
	}
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if _, ok := m.executions[exec.ID]; !ok {
		return fmt.Errorf("%w: execution %s", ErrNotFound, exec.ID)
	}
	m.executions[exec.ID] = exec.Clone()
	if exec.Status != models.StatusRunning && m.running[exec.DocumentID] == exec.ID {
		delete(m.running, exec.DocumentID)
	}
	return nil
}

func (m *MemoryExecutions) Get(_ context.Context, id string) (*models.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exec, ok := m.executions[id]
	if !ok {
		return nil, fmt.Errorf("%w: execution %s", ErrNotFound, id)
	}
	return exec.Clone(), nil
}

func (m *MemoryExecutions) ListByDocument(_ context.Context, documentID string) ([]*models.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Execution
	for _, exec := range m.executions {
		if exec.DocumentID == documentID {
			out = append(out, exec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

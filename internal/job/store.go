package job

import (
	"context"
	"sort"
	"sync"

	"github.com/ahmethakanbesel/candle-csv/internal/apperror"
)

// Store keeps job records. Implementations return copies, so callers may
// mutate what they get back without affecting stored state.
type Store interface {
	// CreateIfAbsent stores j unless a job with the same id exists. It
	// reports whether j was stored.
	CreateIfAbsent(ctx context.Context, j *Job) (bool, error)
	Get(ctx context.Context, id string) (*Job, error)
	// Set replaces a stored job. Finished jobs cannot be replaced.
	Set(ctx context.Context, j *Job) error
	List(ctx context.Context) ([]Job, error)
}

func notFound() error {
	return apperror.New(apperror.NotFound, "job not found")
}

// MemoryStore is a Store backed by a map. Safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) CreateIfAbsent(_ context.Context, j *Job) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[j.ID]; ok {
		return false, nil
	}
	cp := *j
	m.jobs[j.ID] = &cp
	return true, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, notFound()
	}
	cp := *j
	return &cp, nil
}

func (m *MemoryStore) Set(_ context.Context, j *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.jobs[j.ID]
	if !ok {
		return notFound()
	}
	if cur.Status.Terminal() {
		return errTerminal(cur)
	}
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

// List returns all jobs, newest first.
func (m *MemoryStore) List(_ context.Context) ([]Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out, nil
}

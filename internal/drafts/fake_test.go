package drafts

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// memoryRepo is a non-transactional Repository with failure injection.
type memoryRepo struct {
	mu         sync.Mutex
	entries    map[string]PendingEntry
	docs       []Document
	insertErr  error
	resolveErr error
	writes     int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entries: map[string]PendingEntry{}}
}

func (r *memoryRepo) CreatePending(_ context.Context, e PendingEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	r.entries[e.ID] = e
	return nil
}

func (r *memoryRepo) GetPending(_ context.Context, tenantID, id string) (PendingEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.TenantID != tenantID {
		return PendingEntry{}, ErrNotFound
	}
	return e, nil
}

func (r *memoryRepo) ListPending(_ context.Context, tenantID string) ([]PendingEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []PendingEntry
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.Status == StatusPending {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b PendingEntry) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (r *memoryRepo) InsertDocument(_ context.Context, d Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	r.writes++
	r.docs = append(r.docs, d)
	return nil
}

func (r *memoryRepo) ResolvePending(_ context.Context, e PendingEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolveErr != nil {
		return r.resolveErr
	}
	stored, ok := r.entries[e.ID]
	if !ok || stored.Status != StatusPending {
		return ErrAlreadyResolved
	}
	r.writes++
	r.entries[e.ID] = e
	return nil
}

func (r *memoryRepo) status(id string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id].Status
}

func (r *memoryRepo) docCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

// txRepo adds Transactor to memoryRepo by staging writes and applying them
// only when fn succeeds.
type txRepo struct {
	*memoryRepo
}

type stagedRepo struct {
	base    *memoryRepo
	docs    []Document
	entries []PendingEntry
}

func (s *stagedRepo) CreatePending(_ context.Context, e PendingEntry) error {
	s.entries = append(s.entries, e)
	return nil
}

func (s *stagedRepo) GetPending(ctx context.Context, tenantID, id string) (PendingEntry, error) {
	return s.base.GetPending(ctx, tenantID, id)
}

func (s *stagedRepo) ListPending(ctx context.Context, tenantID string) ([]PendingEntry, error) {
	return s.base.ListPending(ctx, tenantID)
}

func (s *stagedRepo) InsertDocument(_ context.Context, d Document) error {
	if s.base.insertErr != nil {
		return s.base.insertErr
	}
	s.docs = append(s.docs, d)
	return nil
}

func (s *stagedRepo) ResolvePending(ctx context.Context, e PendingEntry) error {
	if s.base.resolveErr != nil {
		return s.base.resolveErr
	}
	stored, err := s.base.GetPending(ctx, e.TenantID, e.ID)
	if err != nil || stored.Status != StatusPending {
		return ErrAlreadyResolved
	}
	s.entries = append(s.entries, e)
	return nil
}

func (t txRepo) WithinTx(ctx context.Context, fn func(repo Repository) error) error {
	staged := &stagedRepo{base: t.memoryRepo}
	if err := fn(staged); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.docs = append(t.docs, staged.docs...)
	for _, e := range staged.entries {
		t.entries[e.ID] = e
	}
	t.writes += len(staged.docs) + len(staged.entries)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ReviewEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e ReviewEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type stubEmbedder struct {
	err error
}

func (s stubEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(inputs))
	for i := range out {
		out[i] = []float32{0.5, 0.25}
	}
	return out, nil
}

var errBoom = errors.New("boom")

func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}

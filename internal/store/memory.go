package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store used for local runs and tests. Updates are
// pushed to the subscriber of the changed id just like the Postgres listener.
type Memory struct {
	mu      sync.Mutex
	records map[int64]Record
	nextID  int64
	subs    subscriptions
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[int64]Record),
		subs:    newSubscriptions(),
		now:     time.Now,
	}
}

func (m *Memory) Load(ctx context.Context, id int64) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) List(ctx context.Context) ([]Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Summary, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, Summary{ID: r.ID, Title: r.Title, CreatedAt: r.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) Create(ctx context.Context, title string, d Defaults) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	now := m.now()
	rec := Record{
		ID:        m.nextID,
		Title:     title,
		P1Name:    d.P1Name,
		P2Name:    d.P2Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *Memory) Update(ctx context.Context, id int64, f Fields) error {
	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	f.Apply(&rec)
	rec.UpdatedAt = m.now()
	m.records[id] = rec
	fn := m.subs.get(id)
	m.mu.Unlock()

	if fn != nil {
		fn(Update{Record: rec, Origin: f.Origin})
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	if _, ok := m.records[id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.records, id)
	fn := m.subs.get(id)
	m.mu.Unlock()

	if fn != nil {
		fn(Update{Record: Record{ID: id}, Deleted: true})
	}
	return nil
}

func (m *Memory) Subscribe(id int64, fn func(Update)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs.add(id, fn, m.mu.Lock, m.mu.Unlock)
}

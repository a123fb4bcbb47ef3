package server

import (
	"context"
	"sync"

	"github.com/njoerd114/prayerrelay/internal/cache"
	"github.com/njoerd114/prayerrelay/internal/refresh"
)

// --- Mock Engine -------------------------------------------------------------

type mockEngine struct {
	mu        sync.Mutex
	status    refresh.Status
	month     cache.Snapshot
	err       error
	refreshes int
	wakes     int
	unlocks   int
}

func (m *mockEngine) Status(context.Context) (refresh.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.err
}

func (m *mockEngine) Month(context.Context) (cache.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.month, m.err
}

func (m *mockEngine) Refresh() { m.mu.Lock(); m.refreshes++; m.mu.Unlock() }
func (m *mockEngine) Wake()    { m.mu.Lock(); m.wakes++; m.mu.Unlock() }
func (m *mockEngine) Unlock()  { m.mu.Lock(); m.unlocks++; m.mu.Unlock() }

// --- Memory settings backend -------------------------------------------------

type memBackend struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string]string)}
}

func (b *memBackend) SetSetting(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	return nil
}

func (b *memBackend) AllSettings(context.Context) (map[string]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.data))
	for k, v := range b.data {
		out[k] = v
	}
	return out, nil
}

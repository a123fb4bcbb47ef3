package homeassistant

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

type serviceCall struct {
	domain  string
	service string
	data    map[string]any
}

type mockREST struct {
	mu       sync.Mutex
	pingErr  error
	errs     []error // returned by successive CallService calls, then nil
	calls    []serviceCall
	pingHits int
}

func (m *mockREST) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingHits++
	return m.pingErr
}

func (m *mockREST) CallService(_ context.Context, domain, service string, body io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var data map[string]any
	_ = json.NewDecoder(body).Decode(&data)
	m.calls = append(m.calls, serviceCall{domain: domain, service: service, data: data})
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return err
	}
	return nil
}

package notify

import (
	"context"
	"errors"
	"sync"

	"gopkg.in/telebot.v3"

	"github.com/njoerd114/prayerrelay/internal/model"
)

// --- Mock Delivery -----------------------------------------------------------

type mockDelivery struct {
	mu       sync.Mutex
	pending  map[string]model.NotificationRequest
	clears   int
	failIDs  map[string]bool
	clearErr error
}

func newMockDelivery() *mockDelivery {
	return &mockDelivery{pending: make(map[string]model.NotificationRequest), failIDs: make(map[string]bool)}
}

func (m *mockDelivery) ClearAllPending(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	m.clears++
	m.pending = make(map[string]model.NotificationRequest)
	return nil
}

func (m *mockDelivery) Schedule(_ context.Context, req model.NotificationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIDs[req.ID] {
		return errors.New("delivery refused")
	}
	m.pending[req.ID] = req
	return nil
}

func (m *mockDelivery) snapshot() map[string]model.NotificationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]model.NotificationRequest, len(m.pending))
	for k, v := range m.pending {
		cp[k] = v
	}
	return cp
}

// --- Recording Sender --------------------------------------------------------

type recordingSender struct {
	got chan model.NotificationRequest
}

func newRecordingSender() *recordingSender {
	return &recordingSender{got: make(chan model.NotificationRequest, 64)}
}

func (s *recordingSender) Send(_ context.Context, req model.NotificationRequest) error {
	s.got <- req
	return nil
}

// --- Mock Telegram -----------------------------------------------------------

type mockTelegram struct {
	to   telebot.Recipient
	text string
	err  error
}

func (m *mockTelegram) Send(to telebot.Recipient, what interface{}, _ ...interface{}) (*telebot.Message, error) {
	m.to = to
	m.text, _ = what.(string)
	if m.err != nil {
		return nil, m.err
	}
	return &telebot.Message{}, nil
}

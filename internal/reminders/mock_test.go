package reminders

import (
	"errors"
	"fmt"
	"sync"

	ekreminders "github.com/BRO3886/go-eventkit/reminders"
)

// mockEventKit is an in-memory EventKit list store.
type mockEventKit struct {
	mu        sync.Mutex
	byID      map[string]ekreminders.Reminder
	next      int
	created   []ekreminders.CreateReminderInput
	deleted   []string
	lists     int
	listErr   error
	createErr error
}

func newMockEventKit() *mockEventKit {
	return &mockEventKit{byID: make(map[string]ekreminders.Reminder)}
}

func (m *mockEventKit) add(r ekreminders.Reminder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[r.ID] = r
}

func (m *mockEventKit) Reminders(_ ...ekreminders.ListOption) ([]ekreminders.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]ekreminders.Reminder, 0, len(m.byID))
	for _, r := range m.byID {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockEventKit) CreateReminder(in ekreminders.CreateReminderInput) (*ekreminders.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.next++
	r := ekreminders.Reminder{
		ID:      fmt.Sprintf("ek-%d", m.next),
		Title:   in.Title,
		Notes:   in.Notes,
		DueDate: in.DueDate,
	}
	m.byID[r.ID] = r
	m.created = append(m.created, in)
	return &r, nil
}

func (m *mockEventKit) DeleteReminder(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return errors.New("reminder not found")
	}
	delete(m.byID, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// Package reminders delivers prayer notifications as Apple Reminders through
// EventKit, so they reach every device signed into the same iCloud account.
//
// Each reminder carries a marker line in its notes naming the notification
// ID. Only marked reminders are ever replaced or deleted; anything else in
// the list is left alone. EventKit calls are non-cancellable (sub-200ms
// latency), so context is only checked before each call.
package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	ekreminders "github.com/BRO3886/go-eventkit/reminders"

	"github.com/njoerd114/prayerrelay/internal/model"
)

// markerPrefix starts the notes line identifying reminders owned by this
// program.
const markerPrefix = "prayerrelay:"

// EventKitClient is the subset of [ekreminders.Client] methods used by the
// adapter. Defining it as an interface allows mock injection in tests.
type EventKitClient interface {
	Reminders(opts ...ekreminders.ListOption) ([]ekreminders.Reminder, error)
	CreateReminder(input ekreminders.CreateReminderInput) (*ekreminders.Reminder, error)
	DeleteReminder(id string) error
}

// Adapter is a notify.Delivery backend writing into one Reminders list.
// Create one with [NewAdapter] or [NewAdapterWithClient].
type Adapter struct {
	client EventKitClient
	list   string
	log    *slog.Logger

	mu sync.Mutex
	// index maps notification IDs to EventKit reminder IDs for pending
	// owned reminders. Nil until the list has been read once.
	index map[string]string
}

// NewAdapter creates an Adapter backed by a real EventKit client.
// This triggers the macOS TCC permissions prompt on first use.
func NewAdapter(list string, logger *slog.Logger) (*Adapter, error) {
	c, err := ekreminders.New()
	if err != nil {
		return nil, fmt.Errorf("initialising reminders client: %w", err)
	}
	return &Adapter{client: c, list: list, log: logger}, nil
}

// NewAdapterWithClient creates an Adapter with a caller-supplied client.
// Intended for testing with a mock [EventKitClient].
func NewAdapterWithClient(client EventKitClient, list string, logger *slog.Logger) *Adapter {
	return &Adapter{client: client, list: list, log: logger}
}

// Schedule creates a reminder alerting at req.FireAt. A pending reminder with
// the same notification ID is deleted first. The list is read only when the
// adapter has no index yet, so a reschedule after [Adapter.ClearAllPending]
// costs one EventKit create per request.
func (a *Adapter) Schedule(ctx context.Context, req model.NotificationRequest) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("schedule reminder: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.index == nil {
		if _, err := a.reindex(); err != nil {
			return err
		}
	}
	if ekID, ok := a.index[req.ID]; ok {
		// Already gone when the user deleted it by hand.
		if err := a.delete(ekID); err != nil {
			a.log.Debug("previous reminder not deleted", "id", req.ID, "error", err)
		}
		delete(a.index, req.ID)
	}

	a.log.Debug("creating reminder", "id", req.ID, "fire_at", req.FireAt, "list", a.list)
	created, err := a.client.CreateReminder(toCreateInput(req, a.list))
	if err != nil {
		return fmt.Errorf("creating reminder %q in list %q: %w", req.ID, a.list, err)
	}
	a.index[req.ID] = created.ID
	return nil
}

// ClearAllPending deletes every incomplete reminder this program created.
// Completed ones stay as history.
func (a *Adapter) ClearAllPending(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("clear reminders: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	owned, err := a.reindex()
	if err != nil {
		return err
	}
	for _, r := range owned {
		if err := a.delete(r.ID); err != nil {
			return err
		}
		delete(a.index, markerID(r.Notes))
	}
	a.log.Debug("cleared reminders", "list", a.list, "count", len(owned))
	return nil
}

// Pending returns the notification IDs of incomplete owned reminders.
func (a *Adapter) Pending(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	owned, err := a.reindex()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(owned))
	for _, r := range owned {
		ids = append(ids, markerID(r.Notes))
	}
	return ids, nil
}

// reindex reads the list and rebuilds the index from it.
func (a *Adapter) reindex() ([]ekreminders.Reminder, error) {
	owned, err := a.owned()
	if err != nil {
		return nil, err
	}
	a.index = make(map[string]string, len(owned))
	for _, r := range owned {
		a.index[markerID(r.Notes)] = r.ID
	}
	return owned, nil
}

// owned returns the incomplete reminders in the list that carry a marker.
func (a *Adapter) owned() ([]ekreminders.Reminder, error) {
	rems, err := a.client.Reminders(ekreminders.WithList(a.list))
	if err != nil {
		return nil, fmt.Errorf("fetching reminders for list %q: %w", a.list, err)
	}
	var out []ekreminders.Reminder
	for _, r := range rems {
		if r.Completed || markerID(r.Notes) == "" {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (a *Adapter) delete(id string) error {
	if err := a.client.DeleteReminder(id); err != nil {
		return fmt.Errorf("deleting reminder %q: %w", id, err)
	}
	return nil
}

// --- conversion --------------------------------------------------------------

// toCreateInput sets both dates: DueDate only files the reminder, the
// RemindMeDate alarm is what raises the notification.
func toCreateInput(req model.NotificationRequest, list string) ekreminders.CreateReminderInput {
	due := req.FireAt
	return ekreminders.CreateReminderInput{
		Title:        req.Title,
		Notes:        req.Body + "\n\n" + markerPrefix + req.ID,
		ListName:     list,
		DueDate:      &due,
		RemindMeDate: &due,
	}
}

// markerID extracts the notification ID from notes, or "" if none.
func markerID(notes string) string {
	for _, line := range strings.Split(notes, "\n") {
		if id, ok := strings.CutPrefix(strings.TrimSpace(line), markerPrefix); ok {
			return id
		}
	}
	return ""
}

package notify

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/njoerd114/prayerrelay/internal/clock"
	"github.com/njoerd114/prayerrelay/internal/model"
)

// maxSleepCap bounds a single wait so reminders still fire close to time
// after the host resumes from suspend.
const maxSleepCap = time.Minute

// ErrStopped is returned by [Local] operations after Run has exited.
var ErrStopped = errors.New("local notifier stopped")

// Sender delivers one due reminder to the user.
type Sender interface {
	Send(ctx context.Context, req model.NotificationRequest) error
}

// Local is an in-process [Delivery]. A single goroutine started by Run owns
// the pending set; Schedule and ClearAllPending are applied in call order.
type Local struct {
	clk     clock.Clock
	senders []Sender
	ops     chan func(*localState)
	wake    chan struct{}
	done    chan struct{}
	log     *slog.Logger
}

type localState struct {
	pending requestHeap
	timer   clock.Timer
}

// NewLocal creates a Local that fires through senders. Call Run before use.
func NewLocal(clk clock.Clock, logger *slog.Logger, senders ...Sender) *Local {
	return &Local{
		clk:     clk,
		senders: senders,
		ops:     make(chan func(*localState)),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		log:     logger,
	}
}

// Run processes operations and fires due reminders until ctx is cancelled.
func (l *Local) Run(ctx context.Context) {
	defer close(l.done)

	st := &localState{}
	defer func() {
		if st.timer != nil {
			st.timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case op := <-l.ops:
			op(st)
		case <-l.wake:
			l.fireDue(ctx, st)
		}
		l.resetTimer(st)
	}
}

// ClearAllPending drops every pending reminder.
func (l *Local) ClearAllPending(ctx context.Context) error {
	return l.do(ctx, func(st *localState) {
		st.pending = st.pending[:0]
	})
}

// Schedule adds req, replacing any pending reminder with the same ID.
func (l *Local) Schedule(ctx context.Context, req model.NotificationRequest) error {
	return l.do(ctx, func(st *localState) {
		st.pending.upsert(req)
	})
}

// Pending returns the pending reminders ordered by fire time.
func (l *Local) Pending(ctx context.Context) ([]model.NotificationRequest, error) {
	var out []model.NotificationRequest
	err := l.do(ctx, func(st *localState) {
		cp := make(requestHeap, len(st.pending))
		copy(cp, st.pending)
		for cp.Len() > 0 {
			out = append(out, heap.Pop(&cp).(model.NotificationRequest))
		}
	})
	return out, err
}

// do runs op on the Run goroutine and waits until it and the timer reset
// have completed.
func (l *Local) do(ctx context.Context, op func(*localState)) error {
	applied := make(chan struct{})
	wrapped := func(st *localState) {
		op(st)
		l.resetTimer(st)
		close(applied)
	}
	select {
	case l.ops <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
	<-applied
	return nil
}

func (l *Local) resetTimer(st *localState) {
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	if st.pending.Len() == 0 {
		return
	}
	d := st.pending[0].FireAt.Sub(l.clk.Now())
	if d > maxSleepCap {
		d = maxSleepCap
	}
	if d < 0 {
		d = 0
	}
	st.timer = l.clk.AfterFunc(d, func() {
		select {
		case l.wake <- struct{}{}:
		default:
		}
	})
}

func (l *Local) fireDue(ctx context.Context, st *localState) {
	now := l.clk.Now()
	for st.pending.Len() > 0 && !st.pending[0].FireAt.After(now) {
		req := heap.Pop(&st.pending).(model.NotificationRequest)
		l.log.Info("notification due", "id", req.ID, "title", req.Title)
		go l.deliver(ctx, req)
	}
}

func (l *Local) deliver(ctx context.Context, req model.NotificationRequest) {
	for _, s := range l.senders {
		if err := s.Send(ctx, req); err != nil {
			l.log.Warn("delivering notification failed", "id", req.ID, "error", err)
		}
	}
}

// Package display carries the status label computed by the refresh engine to
// wherever the user looks at it: the terminal, an MQTT topic read by signage
// screens, or a Home Assistant entity.
package display

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Sink receives every recomputed label. Show must not block the caller for
// long; network sinks are wrapped in [Async].
type Sink interface {
	Show(label string)
}

// Publisher is a blocking label destination, typically over the network.
type Publisher interface {
	Publish(ctx context.Context, label string) error
}

// --- Writer ------------------------------------------------------------------

// Writer prints each label on its own line, skipping consecutive repeats.
type Writer struct {
	mu   sync.Mutex
	w    io.Writer
	last string
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Show writes label unless it equals the previous one.
func (s *Writer) Show(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if label == s.last {
		return
	}
	s.last = label
	_, _ = fmt.Fprintln(s.w, label)
}

// --- Multi -------------------------------------------------------------------

// Multi fans a label out to several sinks in order.
type Multi []Sink

// Show forwards label to every sink.
func (m Multi) Show(label string) {
	for _, s := range m {
		s.Show(label)
	}
}

// --- Async -------------------------------------------------------------------

// Async decouples a slow [Publisher] from the engine. Only the most recent
// label is kept while a publish is in flight; older unsent labels are
// dropped.
type Async struct {
	name   string
	pub    Publisher
	latest chan string
	log    *slog.Logger
}

// NewAsync wraps pub. Call Run to start publishing.
func NewAsync(name string, pub Publisher, logger *slog.Logger) *Async {
	return &Async{name: name, pub: pub, latest: make(chan string, 1), log: logger}
}

// Show replaces any label still waiting to be published.
func (a *Async) Show(label string) {
	for {
		select {
		case a.latest <- label:
			return
		default:
		}
		select {
		case <-a.latest:
		default:
		}
	}
}

// Run publishes labels until ctx is cancelled.
func (a *Async) Run(ctx context.Context) {
	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case label := <-a.latest:
			if label == last {
				continue
			}
			if err := a.pub.Publish(ctx, label); err != nil {
				a.log.Warn("publishing label failed", "sink", a.name, "error", err)
				continue
			}
			last = label
		}
	}
}

package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/njoerd114/prayerrelay/internal/cache"
	"github.com/njoerd114/prayerrelay/internal/model"
)

// --- Fake Source -------------------------------------------------------------

type fetchCall struct {
	region string
	ym     model.YearMonth
}

type fakeSource struct {
	mu       sync.Mutex
	calls    []fetchCall
	returned int
	failures int                      // number of upcoming calls that fail
	failErr  error                    // returned by failing calls; a generic error when nil
	gates    map[string]chan struct{} // region → gate the call waits on
	skip     map[model.Date]bool      // dates left out of every result
}

func newFakeSource() *fakeSource {
	return &fakeSource{gates: make(map[string]chan struct{}), skip: make(map[model.Date]bool)}
}

func (f *fakeSource) FetchMonth(_ context.Context, region string, ym model.YearMonth) ([]model.DailyPrayerTime, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{region: region, ym: ym})
	gate := f.gates[region]
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	failErr := f.failErr
	skip := make(map[model.Date]bool, len(f.skip))
	for d := range f.skip {
		skip[d] = true
	}
	f.mu.Unlock()

	// The gate deliberately ignores ctx so a cancelled fetch can still
	// deliver a result late.
	if gate != nil {
		<-gate
	}

	defer func() {
		f.mu.Lock()
		f.returned++
		f.mu.Unlock()
	}()

	if fail {
		if failErr != nil {
			return nil, failErr
		}
		return nil, errors.New("network unreachable")
	}
	var days []model.DailyPrayerTime
	for _, d := range monthFor(region, ym) {
		if !skip[d.Date] {
			days = append(days, d)
		}
	}
	return days, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSource) returnedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.returned
}

func (f *fakeSource) call(i int) fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func monthFor(region string, ym model.YearMonth) []model.DailyPrayerTime {
	first := model.Date{Year: ym.Year, Month: ym.Month, Day: 1}
	days := make([]model.DailyPrayerTime, ym.Days())
	for i := range days {
		days[i] = model.DailyPrayerTime{
			Region:  region,
			Date:    first.AddDays(i),
			Fajr:    model.MustClock("03:41:00"),
			Sunrise: model.MustClock("05:10:00"),
			Dhuhr:   model.MustClock("12:21:00"),
			Asr:     model.MustClock("17:17:00"),
			Maghrib: model.MustClock("19:49:00"),
			Isha:    model.MustClock("21:17:00"),
		}
	}
	return days
}

// --- Mock Sink ---------------------------------------------------------------

type mockSink struct {
	mu     sync.Mutex
	labels []string
}

func (s *mockSink) Show(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels = append(s.labels, label)
}

func (s *mockSink) seen(label string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.labels {
		if l == label {
			return true
		}
	}
	return false
}

// --- Mock Notifier -----------------------------------------------------------

type mockNotifier struct {
	mu           sync.Mutex
	reschedules  int
	clears       int
	lastSettings model.Settings
	lastDays     int
}

func (n *mockNotifier) Reschedule(_ context.Context, days []model.DailyPrayerTime, settings model.Settings, _ time.Time) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reschedules++
	n.lastSettings = settings
	n.lastDays = len(days)
	return len(days) * len(model.Prayers), nil
}

func (n *mockNotifier) Clear(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clears++
	return nil
}

func (n *mockNotifier) counts() (reschedules, clears int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reschedules, n.clears
}

// --- Memory Snapshot Store ---------------------------------------------------

type memStore struct {
	mu    sync.Mutex
	snaps map[string]cache.Snapshot
	saves int
}

func newMemStore() *memStore {
	return &memStore{snaps: make(map[string]cache.Snapshot)}
}

func (m *memStore) LoadSnapshot(_ context.Context, region string) (*cache.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[region]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) SaveSnapshot(_ context.Context, snap cache.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.Region] = snap
	m.saves++
	return nil
}

func (m *memStore) saved(region string) (cache.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[region]
	return s, ok
}

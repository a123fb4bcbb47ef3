package notify

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"gopkg.in/telebot.v3"

	"github.com/njoerd114/prayerrelay/internal/clock"
	"github.com/njoerd114/prayerrelay/internal/model"
)

var (
	testLogger = slog.Default()
	tashkent   = time.FixedZone("UZT", 5*3600)
)

func monthDays(n int) []model.DailyPrayerTime {
	first := model.MustDate("2025-05-01")
	days := make([]model.DailyPrayerTime, n)
	for i := range days {
		days[i] = model.DailyPrayerTime{
			Region:  "Toshkent",
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

func TestBuild_SkipsPastDaysAndCapsAtTen(t *testing.T) {
	now := time.Date(2025, 5, 14, 1, 0, 0, 0, tashkent)
	reqs := Build(monthDays(31), 0, model.LanguageUzbek, now)

	if len(reqs) != MaxDays*len(model.Prayers) {
		t.Fatalf("requests = %d, want %d", len(reqs), MaxDays*len(model.Prayers))
	}
	if got := reqs[0].Date.String(); got != "2025-05-14" {
		t.Errorf("first date = %s, want 2025-05-14", got)
	}
	if got := reqs[len(reqs)-1].Date.String(); got != "2025-05-23" {
		t.Errorf("last date = %s, want 2025-05-23", got)
	}
	first := reqs[0]
	if first.ID != "prayer_fajr_2025-05-14" {
		t.Errorf("ID = %q", first.ID)
	}
	if !first.FireAt.Equal(time.Date(2025, 5, 14, 3, 41, 0, 0, tashkent)) {
		t.Errorf("FireAt = %v", first.FireAt)
	}
	if first.Title != "Bomdod vaqti" {
		t.Errorf("Title = %q", first.Title)
	}
}

func TestBuild_DropsPassedPrayersToday(t *testing.T) {
	now := time.Date(2025, 5, 14, 14, 0, 0, 0, tashkent)
	reqs := Build(monthDays(31)[13:15], 0, model.LanguageEnglish, now)

	// Today: Asr, Maghrib, Isha remain. Tomorrow: all five.
	if len(reqs) != 8 {
		t.Fatalf("requests = %d, want 8", len(reqs))
	}
	if reqs[0].Prayer != model.Asr {
		t.Errorf("first prayer = %v, want Asr", reqs[0].Prayer)
	}
	if reqs[0].Body != "It is time for Asr prayer" {
		t.Errorf("Body = %q", reqs[0].Body)
	}
}

func TestBuild_LeadMinutes(t *testing.T) {
	now := time.Date(2025, 5, 14, 17, 10, 0, 0, tashkent)
	reqs := Build(monthDays(31)[13:14], 10, model.LanguageUzbek, now)

	// Asr at 17:17 would fire at 17:07, already past.
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want 2 (Shom, Xufton)", len(reqs))
	}
	if want := time.Date(2025, 5, 14, 19, 39, 0, 0, tashkent); !reqs[0].FireAt.Equal(want) {
		t.Errorf("FireAt = %v, want %v", reqs[0].FireAt, want)
	}
	if !strings.Contains(reqs[0].Body, "10 daqiqa") {
		t.Errorf("Body = %q", reqs[0].Body)
	}
}

func TestReschedule_Idempotent(t *testing.T) {
	d := newMockDelivery()
	s := NewScheduler(d, model.LanguageUzbek, testLogger)
	now := time.Date(2025, 5, 14, 1, 0, 0, 0, tashkent)
	settings := model.Settings{Region: "Toshkent", Notifications: true}
	days := monthDays(31)

	n1, err := s.Reschedule(context.Background(), days, settings, now)
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	first := d.snapshot()

	n2, err := s.Reschedule(context.Background(), days, settings, now)
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	second := d.snapshot()

	if n1 != n2 || n1 != 50 {
		t.Errorf("scheduled = %d then %d, want 50 both times", n1, n2)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("pending set differs between identical reschedules")
	}
	if d.clears != 2 {
		t.Errorf("clears = %d, want 2", d.clears)
	}
}

func TestReschedule_DisabledClears(t *testing.T) {
	d := newMockDelivery()
	s := NewScheduler(d, model.LanguageUzbek, testLogger)
	now := time.Date(2025, 5, 14, 1, 0, 0, 0, tashkent)

	if _, err := s.Reschedule(context.Background(), monthDays(31), model.Settings{Notifications: true}, now); err != nil {
		t.Fatal(err)
	}
	n, err := s.Reschedule(context.Background(), monthDays(31), model.Settings{Notifications: false}, now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || len(d.snapshot()) != 0 {
		t.Errorf("scheduled = %d, pending = %d, want 0 and 0", n, len(d.snapshot()))
	}
}

func TestReschedule_ClearFailureAborts(t *testing.T) {
	d := newMockDelivery()
	d.clearErr = errors.New("permission denied")
	s := NewScheduler(d, model.LanguageUzbek, testLogger)

	_, err := s.Reschedule(context.Background(), monthDays(31), model.Settings{Notifications: true}, time.Now())
	if err == nil {
		t.Fatal("expected error when clearing fails")
	}
	if len(d.snapshot()) != 0 {
		t.Error("nothing should be scheduled after a failed clear")
	}
}

func TestReschedule_SkipsFailedRequests(t *testing.T) {
	d := newMockDelivery()
	d.failIDs["prayer_asr_2025-05-14"] = true
	s := NewScheduler(d, model.LanguageUzbek, testLogger)
	now := time.Date(2025, 5, 14, 1, 0, 0, 0, tashkent)

	n, err := s.Reschedule(context.Background(), monthDays(31)[13:14], model.Settings{Notifications: true}, now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("scheduled = %d, want 4", n)
	}
}

// --- Local -------------------------------------------------------------------

func startLocal(t *testing.T, clk clock.Clock, senders ...Sender) *Local {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLocal(clk, testLogger, senders...)
	go l.Run(ctx)
	t.Cleanup(cancel)
	return l
}

func request(id string, at time.Time) model.NotificationRequest {
	return model.NotificationRequest{ID: id, Title: id, Body: "body", FireAt: at}
}

func TestLocal_FiresDueRequests(t *testing.T) {
	start := time.Date(2025, 5, 14, 10, 0, 0, 0, tashkent)
	clk := clock.NewFake(start)
	rec := newRecordingSender()
	l := startLocal(t, clk, rec)
	ctx := context.Background()

	if err := l.Schedule(ctx, request("b", start.Add(40*time.Second))); err != nil {
		t.Fatal(err)
	}
	if err := l.Schedule(ctx, request("a", start.Add(20*time.Second))); err != nil {
		t.Fatal(err)
	}

	clk.Advance(20 * time.Second)
	select {
	case got := <-rec.got:
		if got.ID != "a" {
			t.Errorf("first delivered = %q, want a", got.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("request a was not delivered")
	}

	pending, err := l.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != "b" {
		t.Errorf("pending = %v, want [b]", pending)
	}
}

func TestLocal_ScheduleReplacesByID(t *testing.T) {
	start := time.Date(2025, 5, 14, 10, 0, 0, 0, tashkent)
	l := startLocal(t, clock.NewFake(start))
	ctx := context.Background()

	_ = l.Schedule(ctx, request("x", start.Add(time.Hour)))
	_ = l.Schedule(ctx, request("y", start.Add(2*time.Hour)))
	_ = l.Schedule(ctx, request("x", start.Add(3*time.Hour)))

	pending, err := l.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0].ID != "y" || pending[1].ID != "x" {
		t.Errorf("pending = %v, want [y x]", pending)
	}
}

func TestLocal_ClearAllPending(t *testing.T) {
	start := time.Date(2025, 5, 14, 10, 0, 0, 0, tashkent)
	clk := clock.NewFake(start)
	rec := newRecordingSender()
	l := startLocal(t, clk, rec)
	ctx := context.Background()

	_ = l.Schedule(ctx, request("x", start.Add(30*time.Second)))
	if err := l.ClearAllPending(ctx); err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Minute)

	select {
	case got := <-rec.got:
		t.Errorf("cleared request delivered: %v", got.ID)
	case <-time.After(100 * time.Millisecond):
	}
	if clk.Pending() != 0 {
		t.Errorf("timers pending = %d, want 0", clk.Pending())
	}
}

func TestLocal_StoppedReturnsError(t *testing.T) {
	l := NewLocal(clock.Real{}, testLogger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if err := l.Schedule(context.Background(), request("x", time.Now())); !errors.Is(err, ErrStopped) {
		t.Errorf("error = %v, want ErrStopped", err)
	}
}

// --- Senders -----------------------------------------------------------------

func TestDesktopSender(t *testing.T) {
	var gotTitle, gotMessage string
	s := &DesktopSender{alert: func(title, message string, _ any) error {
		gotTitle, gotMessage = title, message
		return nil
	}}
	req := model.NotificationRequest{ID: "prayer_asr_2025-05-14", Title: "Asr vaqti", Body: "Asr namozi vaqti kirdi\u00a0✓"}
	if err := s.Send(context.Background(), req); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotTitle != req.Title || gotMessage != req.Body {
		t.Errorf("alert(%q, %q), want (%q, %q)", gotTitle, gotMessage, req.Title, req.Body)
	}
}

func TestDesktopSender_Errors(t *testing.T) {
	calls := 0
	s := &DesktopSender{alert: func(string, string, any) error {
		calls++
		return errors.New("no notification daemon")
	}}
	req := model.NotificationRequest{ID: "prayer_isha_2025-05-14", Title: "Xufton vaqti"}

	err := s.Send(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "prayer_isha_2025-05-14") {
		t.Errorf("err = %v, want wrapped alert error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Send(ctx, req); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("alert calls = %d, want 1", calls)
	}
}

func TestTelegramSender(t *testing.T) {
	m := &mockTelegram{}
	s := NewTelegramSenderWithClient(m, 4242)
	req := model.NotificationRequest{Title: "Shom vaqti", Body: "Shom namozi vaqti kirdi"}

	if err := s.Send(context.Background(), req); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if m.to.Recipient() != "4242" {
		t.Errorf("recipient = %q, want 4242", m.to.Recipient())
	}
	if m.text != "Shom vaqti\nShom namozi vaqti kirdi" {
		t.Errorf("text = %q", m.text)
	}

	m.err = telebot.ErrBlockedByUser
	if err := s.Send(context.Background(), req); !errors.Is(err, telebot.ErrBlockedByUser) {
		t.Errorf("error = %v, want wrapped ErrBlockedByUser", err)
	}
}

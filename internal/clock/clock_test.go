package clock

import (
	"testing"
	"time"
)

func TestUntilNextMinute(t *testing.T) {
	base := time.Date(2025, 5, 14, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want time.Duration
	}{
		{base, time.Minute},
		{base.Add(15 * time.Second), 45 * time.Second},
		{base.Add(59*time.Second + 500*time.Millisecond), 500 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := UntilNextMinute(tt.at); got != tt.want {
			t.Errorf("UntilNextMinute(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestFake_AdvanceFiresInOrder(t *testing.T) {
	start := time.Date(2025, 5, 14, 10, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var fired []string
	c.AfterFunc(2*time.Minute, func() { fired = append(fired, "b") })
	c.AfterFunc(time.Minute, func() {
		fired = append(fired, "a")
		if got := c.Now(); !got.Equal(start.Add(time.Minute)) {
			t.Errorf("Now inside callback = %v, want %v", got, start.Add(time.Minute))
		}
	})
	c.AfterFunc(time.Hour, func() { fired = append(fired, "late") })

	c.Advance(5 * time.Minute)

	if len(fired) != 2 || fired[0] != "a" || fired[1] != "b" {
		t.Errorf("fired = %v, want [a b]", fired)
	}
	if c.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", c.Pending())
	}
	if !c.Now().Equal(start.Add(5 * time.Minute)) {
		t.Errorf("Now = %v", c.Now())
	}
}

func TestFake_RearmFromCallback(t *testing.T) {
	c := NewFake(time.Date(2025, 5, 14, 10, 0, 0, 0, time.UTC))
	count := 0
	var tick func()
	tick = func() {
		count++
		c.AfterFunc(time.Minute, tick)
	}
	c.AfterFunc(time.Minute, tick)

	c.Advance(3 * time.Minute)
	if count != 3 {
		t.Errorf("ticks = %d, want 3", count)
	}
}

func TestFake_Stop(t *testing.T) {
	c := NewFake(time.Now())
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Error("Stop on pending timer should return true")
	}
	if timer.Stop() {
		t.Error("second Stop should return false")
	}
	c.Advance(time.Minute)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestFake_JumpDoesNotFire(t *testing.T) {
	start := time.Date(2025, 5, 14, 10, 0, 0, 0, time.UTC)
	c := NewFake(start)
	fired := false
	c.AfterFunc(time.Minute, func() { fired = true })
	c.Jump(start.Add(time.Hour))
	if fired {
		t.Error("Jump must not fire timers")
	}
	due, ok := c.NextDue()
	if !ok || !due.Equal(start.Add(time.Minute)) {
		t.Errorf("NextDue = %v, %v", due, ok)
	}
}

package retry

import (
	"testing"
	"time"

	"github.com/njoerd114/prayerrelay/internal/clock"
)

func TestOnFailure_FollowsTableAndSaturates(t *testing.T) {
	c := New()
	want := []time.Duration{
		5 * time.Minute, 15 * time.Minute, 30 * time.Minute,
		time.Hour, 2 * time.Hour, 6 * time.Hour,
		6 * time.Hour, 6 * time.Hour,
	}
	for i, w := range want {
		if got := c.OnFailure(); got != w {
			t.Errorf("failure %d: delay = %v, want %v", i+1, got, w)
		}
	}
	if c.Failures() != len(want) {
		t.Errorf("Failures = %d, want %d", c.Failures(), len(want))
	}
}

func TestOnSuccess_ResetsToFirstDelay(t *testing.T) {
	// For every failure run length, a success resets the next delay.
	for n := 1; n <= 8; n++ {
		c := New()
		for range n {
			c.OnFailure()
		}
		c.OnSuccess()
		if c.Failures() != 0 {
			t.Errorf("n=%d: Failures after success = %d", n, c.Failures())
		}
		if got := c.OnFailure(); got != DefaultTable[0] {
			t.Errorf("n=%d: delay after success = %v, want %v", n, got, DefaultTable[0])
		}
	}
}

func TestNew_CustomTableIsCopied(t *testing.T) {
	table := []time.Duration{time.Second, 2 * time.Second}
	c := New(table...)
	table[0] = time.Hour
	if got := c.OnFailure(); got != time.Second {
		t.Errorf("delay = %v, want 1s", got)
	}
}

func TestArm_ReplacesPreviousTimer(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 5, 14, 10, 0, 0, 0, time.UTC))
	c := New()

	var fired []string
	c.Arm(clk, time.Minute, func() { fired = append(fired, "first") })
	c.Arm(clk, 2*time.Minute, func() { fired = append(fired, "second") })

	if clk.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", clk.Pending())
	}
	clk.Advance(5 * time.Minute)
	if len(fired) != 1 || fired[0] != "second" {
		t.Errorf("fired = %v, want [second]", fired)
	}
}

func TestOnSuccess_DisarmsTimer(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 5, 14, 10, 0, 0, 0, time.UTC))
	c := New()
	c.Arm(clk, c.OnFailure(), func() { t.Error("disarmed retry fired") })
	if !c.Armed() {
		t.Fatal("Armed = false after Arm")
	}
	c.OnSuccess()
	if c.Armed() || clk.Pending() != 0 {
		t.Errorf("Armed = %v, Pending = %d after success", c.Armed(), clk.Pending())
	}
	clk.Advance(time.Hour)
}

func TestBackOffInterface(t *testing.T) {
	c := New()
	if got := c.NextBackOff(); got != 5*time.Minute {
		t.Errorf("NextBackOff = %v", got)
	}
	c.Reset()
	if c.Failures() != 0 {
		t.Errorf("Failures after Reset = %d", c.Failures())
	}
}

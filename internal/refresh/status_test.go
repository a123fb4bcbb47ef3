package refresh

import (
	"encoding/json"
	"testing"
)

func TestState_TextRoundTrip(t *testing.T) {
	for _, st := range []State{Idle, Fetching, StaleWithCache, ErrorNoCache} {
		b, err := json.Marshal(Status{State: st})
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var got Status
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("Unmarshal %s: %v", b, err)
		}
		if got.State != st {
			t.Errorf("State = %v, want %v", got.State, st)
		}
	}

	var s State
	if err := s.UnmarshalText([]byte("sleeping")); err == nil {
		t.Error("expected error for unknown state")
	}
}

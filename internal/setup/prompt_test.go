package setup

import (
	"bytes"
	"strings"
	"testing"
)

func newTestPrompter(input string) (*Prompter, *bytes.Buffer) {
	var out bytes.Buffer
	return NewPrompter(strings.NewReader(input), &out), &out
}

func TestPrompter_String(t *testing.T) {
	p, _ := newTestPrompter("\n  Samarqand  \n")
	if got := p.String("Region", "Toshkent"); got != "Toshkent" {
		t.Errorf("String = %q, want default Toshkent", got)
	}
	if got := p.String("Region", "Toshkent"); got != "Samarqand" {
		t.Errorf("String = %q, want Samarqand", got)
	}
}

func TestPrompter_StringRequiredRepeats(t *testing.T) {
	p, out := newTestPrompter("\n\nvalue\n")
	if got := p.String("Name", ""); got != "value" {
		t.Errorf("String = %q, want value", got)
	}
	if n := strings.Count(out.String(), "required"); n != 2 {
		t.Errorf("required hint shown %d times, want 2", n)
	}
}

func TestPrompter_Confirm(t *testing.T) {
	tests := []struct {
		input      string
		defaultYes bool
		want       bool
	}{
		{"\n", true, true},
		{"\n", false, false},
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", true, false},
		{"maybe\n", true, false},
		{"", true, true}, // EOF
	}
	for _, tt := range tests {
		p, _ := newTestPrompter(tt.input)
		if got := p.Confirm("Continue?", tt.defaultYes); got != tt.want {
			t.Errorf("Confirm(%q, %v) = %v, want %v", tt.input, tt.defaultYes, got, tt.want)
		}
	}
}

func TestPrompter_Int(t *testing.T) {
	p, out := newTestPrompter("abc\n61\n15\n\n")
	if got := p.Int("Lead", 5, 0, 60); got != 15 {
		t.Errorf("Int = %d, want 15", got)
	}
	if n := strings.Count(out.String(), "between 0 and 60"); n != 2 {
		t.Errorf("range hint shown %d times, want 2", n)
	}
	if got := p.Int("Lead", 5, 0, 60); got != 5 {
		t.Errorf("Int = %d, want default 5", got)
	}
}

func TestPrompter_Select(t *testing.T) {
	p, _ := newTestPrompter("0\n4\n2\n\n")
	opts := []string{"a", "b", "c"}

	idx, err := p.Select("Pick", opts, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if idx != 1 {
		t.Errorf("Select = %d, want 1", idx)
	}

	idx, err = p.Select("Pick", opts, 2)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if idx != 2 {
		t.Errorf("Select = %d, want default 2", idx)
	}
}

func TestPrompter_SelectErrors(t *testing.T) {
	p, _ := newTestPrompter("")
	if _, err := p.Select("Pick", nil, 0); err == nil {
		t.Error("expected error for empty options")
	}
	if _, err := p.Select("Pick", []string{"a"}, 0); err == nil {
		t.Error("expected error on EOF")
	}
}

package utils

import (
	"strings"
	"testing"
)

func TestRoundToHalfBand(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{6.4, 6.5},
		{6.2, 6.0},
		{6.25, 6.5},
		{6.75, 7.0},
		{7.0, 7.0},
		{-0.3, 0},
		{9.6, 9},
	}
	for _, tt := range tests {
		if got := RoundToHalfBand(tt.in); got != tt.want {
			t.Fatalf("RoundToHalfBand(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWordCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"some people  think\nthat", 4},
	}
	for _, tt := range tests {
		if got := WordCount(tt.in); got != tt.want {
			t.Fatalf("WordCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNewTraceID_Format(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewTraceID()
		if !strings.HasPrefix(id, "ERR-") {
			t.Fatalf("missing prefix: %q", id)
		}
		if len(id) != len("ERR-")+6 {
			t.Fatalf("unexpected length: %q", id)
		}
		for _, r := range id[4:] {
			if !strings.ContainsRune(traceIDAlphabet, r) {
				t.Fatalf("character outside alphabet: %q", id)
			}
		}
		seen[id] = true
	}
	if len(seen) < 2 {
		t.Fatalf("trace ids are not random")
	}
}

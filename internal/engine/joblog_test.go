package engine

import (
	"fmt"
	"testing"
	"time"
)

func TestLogRing_TrimsAtMax(t *testing.T) {
	l := newLogRing(500, 300)
	for i := 0; i < 501; i++ {
		l.append(LogEntry{Time: time.Now(), Level: "info", Message: fmt.Sprintf("m%d", i)})
	}
	if got := l.len(); got != 300 {
		t.Fatalf("len = %d after overflow, want 300", got)
	}
	// The survivors are the newest 300.
	entries := l.tail(0)
	if entries[0].Message != "m201" {
		t.Errorf("oldest survivor = %q, want m201", entries[0].Message)
	}
	if entries[len(entries)-1].Message != "m500" {
		t.Errorf("newest survivor = %q, want m500", entries[len(entries)-1].Message)
	}
}

func TestLogRing_Tail(t *testing.T) {
	l := newLogRing(100, 50)
	for i := 0; i < 10; i++ {
		l.append(LogEntry{Message: fmt.Sprintf("m%d", i)})
	}

	tests := []struct {
		n    int
		want int
	}{
		{3, 3},
		{0, 10},
		{-1, 10},
		{100, 10},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d", tt.n), func(t *testing.T) {
			got := l.tail(tt.n)
			if len(got) != tt.want {
				t.Fatalf("tail(%d) returned %d entries, want %d", tt.n, len(got), tt.want)
			}
			if got[len(got)-1].Message != "m9" {
				t.Errorf("last entry = %q, want m9", got[len(got)-1].Message)
			}
		})
	}
}

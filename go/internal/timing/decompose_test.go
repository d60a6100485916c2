package timing_test

import (
	"testing"

	"github.com/mcdev12/racetime/go/internal/timing"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDecompose(t *testing.T) {
	tests := []struct {
		name      string
		elapsedMs int64
		want      timing.Split
		formatted string
	}{
		{"zero", 0, timing.Split{}, "0:00:00.000"},
		{"seconds", 12_345, timing.Split{Seconds: 12, Milliseconds: 345}, "0:00:12.345"},
		{"one hour one minute", 3_661_001, timing.Split{Hours: 1, Minutes: 1, Seconds: 1, Milliseconds: 1}, "1:01:01.001"},
		{"unbounded hours", 30 * 3_600_000, timing.Split{Hours: 30}, "30:00:00.000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := timing.Decompose(tt.elapsedMs)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.formatted, got.String())
		})
	}
}

func TestDecompose_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ms := rapid.Int64Range(0, 1<<45).Draw(t, "elapsedMs")
		s := timing.Decompose(ms)

		if s.ElapsedMs() != ms {
			t.Fatalf("recombined %d, want %d", s.ElapsedMs(), ms)
		}
		if s.Minutes < 0 || s.Minutes > 59 || s.Seconds < 0 || s.Seconds > 59 {
			t.Fatalf("minutes/seconds out of range: %+v", s)
		}
		if s.Milliseconds < 0 || s.Milliseconds > 999 || s.Hours < 0 {
			t.Fatalf("components out of range: %+v", s)
		}
	})
}

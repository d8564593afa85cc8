package realtime

import (
	"testing"
	"time"

	"resboard/internal/config"
)

func TestSelectFrequency(t *testing.T) {
	bands := config.Default().Realtime.Bands

	tests := []struct {
		hour int
		want time.Duration
	}{
		{0, 300 * time.Second},
		{2, 300 * time.Second},
		{5, 300 * time.Second},
		{6, 60 * time.Second},
		{9, 60 * time.Second},
		{10, 120 * time.Second},
		{14, 120 * time.Second},
		{15, 60 * time.Second},
		{20, 120 * time.Second},
		{22, 120 * time.Second},
		{23, 300 * time.Second},
	}
	for _, tt := range tests {
		got, ok := SelectFrequency(bands, tt.hour)
		if !ok {
			t.Errorf("SelectFrequency(hour=%d) matched no band", tt.hour)
			continue
		}
		if got != tt.want {
			t.Errorf("SelectFrequency(hour=%d) = %v, want %v", tt.hour, got, tt.want)
		}
	}
}

func TestSelectFrequency_Wraparound(t *testing.T) {
	bands := []config.Band{{Start: 23, End: 6, Frequency: 300}}

	for _, hour := range []int{23, 0, 2, 5} {
		got, ok := SelectFrequency(bands, hour)
		if !ok || got != 300*time.Second {
			t.Errorf("SelectFrequency(hour=%d) = %v, %v, want 5m0s, true", hour, got, ok)
		}
	}
	for _, hour := range []int{6, 12, 22} {
		if _, ok := SelectFrequency(bands, hour); ok {
			t.Errorf("SelectFrequency(hour=%d) should not match an overnight band", hour)
		}
	}
}

func TestSelectFrequency_FirstMatchWins(t *testing.T) {
	bands := []config.Band{
		{Start: 8, End: 12, Frequency: 30},
		{Start: 0, End: 24, Frequency: 600},
	}
	if got, _ := SelectFrequency(bands, 9); got != 30*time.Second {
		t.Errorf("hour 9 = %v, want 30s", got)
	}
	if got, _ := SelectFrequency(bands, 13); got != 600*time.Second {
		t.Errorf("hour 13 = %v, want 10m0s", got)
	}
}

func TestSelectFrequency_NoMatch(t *testing.T) {
	if _, ok := SelectFrequency(nil, 3); ok {
		t.Error("no bands should not match")
	}
	// start == end is an empty band
	if _, ok := SelectFrequency([]config.Band{{Start: 4, End: 4, Frequency: 10}}, 4); ok {
		t.Error("empty band should not match")
	}
}

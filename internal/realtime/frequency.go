package realtime

import (
	"time"

	"resboard/internal/config"
)

// SelectFrequency returns the polling interval of the first band containing
// hour. A band with Start > End wraps midnight. ok is false when no band
// matches.
func SelectFrequency(bands []config.Band, hour int) (d time.Duration, ok bool) {
	for _, b := range bands {
		if inBand(b, hour) {
			return time.Duration(b.Frequency) * time.Second, true
		}
	}
	return 0, false
}

func inBand(b config.Band, hour int) bool {
	if b.Start <= b.End {
		return b.Start <= hour && hour < b.End
	}
	return hour >= b.Start || hour < b.End
}

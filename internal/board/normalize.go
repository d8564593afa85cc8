package board

import (
	"time"
	"unicode"
	"unicode/utf8"

	"resboard/internal/resrobot"
)

// truncate cuts s at the first whitespace at or after rune position n.
// n <= 0 disables truncation.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	pos := 0
	for i, r := range s {
		if pos >= n && unicode.IsSpace(r) {
			return s[:i]
		}
		pos++
	}
	return s
}

// normalize converts raw board entries for one route into departures,
// dropping entries in the wrong direction, with unparsable times, or
// departing before cutoff.
func (m *Merger) normalize(routeID int, raw []resrobot.Departure, cutoff time.Time) []Departure {
	var out []Departure
	for _, r := range raw {
		if m.opts.DirectionFlag != "" && r.DirectionFlag != m.opts.DirectionFlag {
			continue
		}
		scheduled, err := r.ScheduledAt(m.opts.Location)
		if err != nil {
			m.logger.Warn("skipping departure", "route", routeID, "error", err)
			continue
		}
		if scheduled.Before(cutoff) {
			continue
		}
		out = append(out, Departure{
			RouteID:       routeID,
			Scheduled:     scheduled,
			Line:          truncate(r.Product.Num, m.opts.TruncateLineAfter),
			Track:         r.RtTrack,
			Type:          r.Product.CatOutS,
			Destination:   truncate(r.Direction, m.opts.TruncateAfter),
			DirectionFlag: r.DirectionFlag,
		})
	}
	return out
}

package resrobot

import (
	"fmt"
	"time"
)

// Response is the top-level departureBoard API response.
type Response struct {
	Departures []Departure `json:"Departure"`

	// Set instead of Departures when the API rejects the request.
	ErrorCode string `json:"errorCode,omitempty"`
	ErrorText string `json:"errorText,omitempty"`
}

// Departure is a single scheduled departure from the board.
type Departure struct {
	Name          string  `json:"name"`
	Stop          string  `json:"stop"`
	StopID        string  `json:"stopid"`
	Date          string  `json:"date"` // YYYY-MM-DD, local time
	Time          string  `json:"time"` // HH:MM:SS, local time
	Direction     string  `json:"direction"`
	DirectionFlag string  `json:"directionFlag"`
	RtTrack       string  `json:"rtTrack,omitempty"`
	Product       Product `json:"ProductAtStop"`
}

// Product describes the service operating a departure.
type Product struct {
	Name     string `json:"name"`
	Num      string `json:"num"`      // line number
	CatCode  string `json:"catCode"`
	CatOutS  string `json:"catOutS"`  // short category, e.g. "BLT", "JLT", "ULT"
	CatOutL  string `json:"catOutL"`
	Operator string `json:"operator"`
}

// ScheduledAt parses Date and Time in loc.
func (d Departure) ScheduledAt(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", d.Date+" "+d.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse departure time %q %q: %w", d.Date, d.Time, err)
	}
	return t, nil
}

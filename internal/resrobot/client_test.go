package resrobot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resboard/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(apiBase string) *Client {
	cfg := config.Default()
	cfg.ResRobot.APIBase = apiBase
	cfg.ResRobot.APIKey = "secret-key"
	return NewClient(cfg, testLogger())
}

func TestClient_URL(t *testing.T) {
	c := testClient("https://api.resrobot.se/v2.1/departureBoard?format=json&passlist=0")

	tests := []struct {
		name  string
		route config.Route
		want  map[string]string
		not   []string
	}{
		{
			name:  "origin only",
			route: config.Route{From: "740020749"},
			want: map[string]string{
				"format": "json", "passlist": "0", "accessId": "secret-key",
				"duration": "360", "maxJourneys": "6", "id": "740020749",
			},
			not: []string{"direction"},
		},
		{
			name:  "origin and destination",
			route: config.Route{From: "740020749", To: "740000001"},
			want:  map[string]string{"id": "740020749", "direction": "740000001"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := c.URL(tt.route)
			require.NoError(t, err)
			u, err := url.Parse(raw)
			require.NoError(t, err)
			q := u.Query()
			for k, v := range tt.want {
				assert.Equal(t, v, q.Get(k), "param %s", k)
			}
			for _, k := range tt.not {
				assert.False(t, q.Has(k), "param %s should be absent", k)
			}
		})
	}
}

func TestClient_URL_OmitsZeroLimits(t *testing.T) {
	c := testClient("https://example.test/departureBoard")
	c.duration = 0
	c.maxJourneys = 0

	raw, err := c.URL(config.Route{From: "1"})
	require.NoError(t, err)
	assert.NotContains(t, raw, "duration")
	assert.NotContains(t, raw, "maxJourneys")
}

const boardJSON = `{
  "Departure": [
    {
      "ProductAtStop": {"name": "Länstrafik - Buss 4", "num": "4", "catOutS": "BLT"},
      "name": "Länstrafik - Buss 4",
      "stop": "Gävle Centralstation",
      "stopid": "740000193",
      "date": "2024-10-09",
      "time": "10:05:00",
      "direction": "Sätra centrum (Gävle kn)",
      "directionFlag": "2",
      "rtTrack": "B"
    }
  ]
}`

func TestClient_Departures(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(boardJSON))
	}))
	defer srv.Close()

	c := testClient(srv.URL + "/departureBoard?format=json")
	deps, err := c.Departures(context.Background(), config.Route{From: "740000193"})
	require.NoError(t, err)
	require.Len(t, deps, 1)

	d := deps[0]
	assert.Equal(t, "4", d.Product.Num)
	assert.Equal(t, "BLT", d.Product.CatOutS)
	assert.Equal(t, "Sätra centrum (Gävle kn)", d.Direction)
	assert.Equal(t, "2", d.DirectionFlag)
	assert.Equal(t, "B", d.RtTrack)
	assert.Equal(t, "740000193", gotQuery.Get("id"))

	loc, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)
	at, err := d.ScheduledAt(loc)
	require.NoError(t, err)
	assert.True(t, at.Equal(time.Date(2024, 10, 9, 10, 5, 0, 0, loc)))
}

func TestClient_Departures_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantText   string
	}{
		{"server error", http.StatusInternalServerError, "oops", 500, "unexpected status"},
		{"auth error payload", http.StatusUnauthorized, `{"errorCode":"API_AUTH","errorText":"bad key"}`, 401, "API_AUTH"},
		{"error payload with 200", http.StatusOK, `{"errorCode":"SVC_LOC","errorText":"location missing"}`, 200, "SVC_LOC"},
		{"malformed json", http.StatusOK, `{"Departure": [`, 200, "decode response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := testClient(srv.URL).Departures(context.Background(), config.Route{From: "1"})
			require.Error(t, err)

			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.wantStatus, fe.Status)
			assert.Contains(t, err.Error(), tt.wantText)
			assert.NotContains(t, err.Error(), "secret-key")
		})
	}
}

func TestClient_Departures_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := testClient(srv.URL).Departures(context.Background(), config.Route{From: "1"})
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.Status)
	assert.True(t, strings.Contains(fe.URL, "accessId=REDACTED"))
}

func TestScheduledAt_Invalid(t *testing.T) {
	_, err := Departure{Date: "2024-10-09", Time: "25:99"}.ScheduledAt(time.UTC)
	assert.Error(t, err)
}

package realtime

import (
	"io"
	"log/slog"
	"testing"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

const watchStop = "9022021480123002"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stopUpdate builds a stop time update with a departure event.
func stopUpdate(stopID string, seq uint32, realtime int64, delay int32) *gtfs.TripUpdate_StopTimeUpdate {
	return &gtfs.TripUpdate_StopTimeUpdate{
		StopSequence: proto.Uint32(seq),
		StopId:       proto.String(stopID),
		Departure: &gtfs.TripUpdate_StopTimeEvent{
			Time:  proto.Int64(realtime),
			Delay: proto.Int32(delay),
		},
	}
}

func tripEntity(id string, updates ...*gtfs.TripUpdate_StopTimeUpdate) *gtfs.FeedEntity {
	return &gtfs.FeedEntity{
		Id: proto.String(id),
		TripUpdate: &gtfs.TripUpdate{
			Trip:           &gtfs.TripDescriptor{TripId: proto.String("trip-" + id)},
			StopTimeUpdate: updates,
		},
	}
}

func feedBytes(t *testing.T, timestamp uint64, entities ...*gtfs.FeedEntity) []byte {
	t.Helper()
	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(timestamp),
		},
		Entity: entities,
	}
	b, err := proto.Marshal(msg)
	require.NoError(t, err)
	return b
}

package ingest

import (
	"errors"
	"testing"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/theoremus-urban-solutions/geotrack/tracking"
)

func TestDecodeReport(t *testing.T) {
	payload := []byte(`{"organizationId":"org-a","entityId":"bus-12","latitude":60.1,"longitude":24.5,"timestampMillis":1700000000000}`)
	rep, err := decodeReport(payload)
	if err != nil {
		t.Fatalf("decodeReport: %v", err)
	}
	want := tracking.Report{
		Organization: "org-a",
		Entity:       "bus-12",
		Lat:          60.1,
		Lon:          24.5,
		TimestampMS:  1700000000000,
	}
	if rep != want {
		t.Errorf("decoded %+v, want %+v", rep, want)
	}
}

func TestDecodeReport_Malformed(t *testing.T) {
	_, err := decodeReport([]byte(`{"organizationId":`))
	if !errors.Is(err, tracking.ErrInvalidReport) {
		t.Errorf("expected ErrInvalidReport, got %v", err)
	}
}

func TestReportsFromFeed(t *testing.T) {
	fm := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(1700000000),
		},
		Entity: []*gtfsrtpb.FeedEntity{
			{
				Id: proto.String("1"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Vehicle:   &gtfsrtpb.VehicleDescriptor{Id: proto.String("bus-1")},
					Position:  &gtfsrtpb.Position{Latitude: proto.Float32(60.1), Longitude: proto.Float32(24.5)},
					Timestamp: proto.Uint64(1700000100),
				},
			},
			{
				// no per-vehicle timestamp: falls back to the header's
				Id: proto.String("2"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Vehicle:  &gtfsrtpb.VehicleDescriptor{Id: proto.String("bus-2")},
					Position: &gtfsrtpb.Position{Latitude: proto.Float32(60.3), Longitude: proto.Float32(24.5)},
				},
			},
			{
				// no vehicle id: skipped
				Id: proto.String("3"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Position: &gtfsrtpb.Position{Latitude: proto.Float32(60.5), Longitude: proto.Float32(24.5)},
				},
			},
			{
				// no position: skipped
				Id: proto.String("4"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Vehicle: &gtfsrtpb.VehicleDescriptor{Id: proto.String("bus-4")},
				},
			},
		},
	}

	reps := reportsFromFeed(fm, "hsl")
	if len(reps) != 2 {
		t.Fatalf("got %d reports, want 2: %+v", len(reps), reps)
	}
	if reps[0].Entity != "bus-1" || reps[0].TimestampMS != 1700000100000 {
		t.Errorf("first report = %+v", reps[0])
	}
	if reps[1].Entity != "bus-2" || reps[1].TimestampMS != 1700000000000 {
		t.Errorf("second report = %+v", reps[1])
	}
	for _, rep := range reps {
		if rep.Organization != "hsl" {
			t.Errorf("report org = %q, want hsl", rep.Organization)
		}
	}
}

func TestReportsFromFeed_Empty(t *testing.T) {
	fm := &gtfsrtpb.FeedMessage{}
	if reps := reportsFromFeed(fm, "hsl"); len(reps) != 0 {
		t.Errorf("got %d reports from empty feed", len(reps))
	}
}

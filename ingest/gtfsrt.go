package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/theoremus-urban-solutions/geotrack/config"
	"github.com/theoremus-urban-solutions/geotrack/tracking"
)

// GTFSRTPoller periodically fetches a GTFS-RT VehiclePositions feed and
// routes one report per vehicle entity, all under a single configured
// organization.
type GTFSRTPoller struct {
	url        string
	org        string
	interval   time.Duration
	httpClient *http.Client
	router     *tracking.IngestRouter
}

// NewGTFSRTPoller creates a poller from the feed settings. Returns nil if
// no feed URL is configured.
func NewGTFSRTPoller(cfg config.GTFSRTConfig, router *tracking.IngestRouter) *GTFSRTPoller {
	if cfg.VehiclePositionsURL == "" {
		return nil
	}
	interval := time.Duration(cfg.ReadIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 15 * time.Second
	}
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GTFSRTPoller{
		url:        cfg.VehiclePositionsURL,
		org:        cfg.Organization,
		interval:   interval,
		httpClient: &http.Client{Timeout: timeout},
		router:     router,
	}
}

// Run polls the feed until ctx is done. Fetch errors are logged and the
// next tick retries; the feed is the system of record, nothing is replayed.
func (p *GTFSRTPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.poll(); err != nil {
				log.Printf("gtfsrt: poll failed: %v", err)
			}
		}
	}
}

func (p *GTFSRTPoller) poll() error {
	data, err := p.fetch()
	if err != nil {
		return err
	}
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(data, &fm); err != nil {
		return fmt.Errorf("parse feed: %w", err)
	}
	for _, rep := range reportsFromFeed(&fm, p.org) {
		if err := p.router.Route(rep); err != nil && !errors.Is(err, tracking.ErrStaleUpdate) {
			log.Printf("gtfsrt: dropped report for %s: %v", rep.Entity, err)
		}
	}
	return nil
}

func (p *GTFSRTPoller) fetch() ([]byte, error) {
	resp, err := p.httpClient.Get(p.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", p.url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, p.url)
	}
	return io.ReadAll(resp.Body)
}

// reportsFromFeed flattens the feed's vehicle entities into reports.
// Entities without a vehicle ID or a position are skipped; a missing
// per-vehicle timestamp falls back to the feed header's.
func reportsFromFeed(fm *gtfsrtpb.FeedMessage, org string) []tracking.Report {
	var headerTS int64
	if fm.Header != nil && fm.Header.Timestamp != nil {
		headerTS = int64(*fm.Header.Timestamp)
	}
	out := make([]tracking.Report, 0, len(fm.Entity))
	for _, e := range fm.Entity {
		v := e.Vehicle
		if v == nil || v.Position == nil || v.Position.Latitude == nil || v.Position.Longitude == nil {
			continue
		}
		var vehicleID string
		if v.Vehicle != nil && v.Vehicle.Id != nil {
			vehicleID = *v.Vehicle.Id
		}
		if vehicleID == "" {
			continue
		}
		ts := headerTS
		if v.Timestamp != nil {
			ts = int64(*v.Timestamp)
		}
		if ts <= 0 {
			continue
		}
		out = append(out, tracking.Report{
			Organization: org,
			Entity:       vehicleID,
			Lat:          float64(*v.Position.Latitude),
			Lon:          float64(*v.Position.Longitude),
			TimestampMS:  ts * 1000,
		})
	}
	return out
}

package geotrack

import (
	"context"
	"fmt"
	"time"

	"github.com/theoremus-urban-solutions/geotrack/config"
	"github.com/theoremus-urban-solutions/geotrack/grid"
	"github.com/theoremus-urban-solutions/geotrack/hub"
	"github.com/theoremus-urban-solutions/geotrack/tracking"
)

// Engine assembles the tracking core: spatial grid, cell map, ingest
// router and push-hub registry. The ingest adapters and the HTTP layer
// talk to the core only through this type and the router it exposes.
type Engine struct {
	Grid   *grid.Grid
	Cells  *tracking.CellMap
	Router *tracking.IngestRouter
	Hub    *hub.Registry

	janitorInterval time.Duration
}

// NewEngine builds an engine from the application configuration. The
// region, cell size and organization list are fixed for the engine's
// lifetime.
func NewEngine(cfg config.AppConfig) (*Engine, error) {
	g, err := grid.New(cfg.Region.MinLat, cfg.Region.MaxLat, cfg.Region.MinLon, cfg.Region.MaxLon, cfg.Region.CellSizeDeg)
	if err != nil {
		return nil, fmt.Errorf("region grid: %w", err)
	}
	cells := tracking.NewCellMap()
	registry := hub.NewRegistry()
	router := tracking.NewIngestRouter(g, cells, registry, cfg.OrganizationIDs(),
		time.Duration(cfg.Tracking.IdleTimeoutS)*time.Second)
	janitorInterval := time.Duration(cfg.Tracking.JanitorIntervalS) * time.Second
	if janitorInterval <= 0 {
		janitorInterval = time.Minute
	}
	return &Engine{
		Grid:            g,
		Cells:           cells,
		Router:          router,
		Hub:             registry,
		janitorInterval: janitorInterval,
	}, nil
}

// Start launches background maintenance until ctx is done.
func (e *Engine) Start(ctx context.Context) {
	go e.Router.RunJanitor(ctx, e.janitorInterval)
}

// CurrentState returns a snapshot of one entity's state.
func (e *Engine) CurrentState(org, entity string) (tracking.EntityState, bool) {
	return e.Router.CurrentState(org, entity)
}

// MembersSnapshot lists org's entities currently in a grid cell.
func (e *Engine) MembersSnapshot(org string, cell grid.Cell) []string {
	return e.Router.MembersSnapshot(org, cell)
}

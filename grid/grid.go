package grid

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfBounds is returned for coordinates outside the configured region.
var ErrOutOfBounds = errors.New("coordinate outside configured region")

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Cell identifies one rectangular partition of the tracked region.
// Row 0 starts at the southern edge, Col 0 at the western edge.
type Cell struct {
	Row int
	Col int
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Grid divides a bounding box into square cells of a fixed edge length
// in degrees. It has no mutable state and is safe for concurrent use.
type Grid struct {
	minLat, maxLat float64
	minLon, maxLon float64
	cellSize       float64
	rows, cols     int
}

// New builds a grid over [minLat,maxLat] x [minLon,maxLon] with the given
// cell edge length in degrees.
func New(minLat, maxLat, minLon, maxLon, cellSize float64) (*Grid, error) {
	if cellSize <= 0 {
		return nil, fmt.Errorf("cell size must be positive, got %g", cellSize)
	}
	if maxLat <= minLat || maxLon <= minLon {
		return nil, fmt.Errorf("degenerate bounding box (%g,%g)-(%g,%g)", minLat, minLon, maxLat, maxLon)
	}
	return &Grid{
		minLat:   minLat,
		maxLat:   maxLat,
		minLon:   minLon,
		maxLon:   maxLon,
		cellSize: cellSize,
		rows:     spanCells(maxLat-minLat, cellSize),
		cols:     spanCells(maxLon-minLon, cellSize),
	}, nil
}

// spanCells counts the cells covering a span. The epsilon keeps an exact
// multiple like 0.6/0.2 from rounding up to an extra cell.
func spanCells(span, cellSize float64) int {
	return int(math.Ceil(span/cellSize - 1e-9))
}

// Rows returns the number of rows in the grid.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the number of columns in the grid.
func (g *Grid) Cols() int { return g.cols }

// Contains reports whether the coordinate lies inside the bounding box.
func (g *Grid) Contains(c Coordinate) bool {
	return c.Lat >= g.minLat && c.Lat <= g.maxLat &&
		c.Lon >= g.minLon && c.Lon <= g.maxLon
}

// CellFor maps a coordinate to its cell. The mapping is deterministic and
// total over the bounding box; anything outside fails with ErrOutOfBounds.
func (g *Grid) CellFor(c Coordinate) (Cell, error) {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || !g.Contains(c) {
		return Cell{}, ErrOutOfBounds
	}
	row := int((c.Lat - g.minLat) / g.cellSize)
	col := int((c.Lon - g.minLon) / g.cellSize)
	// Points on the north/east edge belong to the outermost cell.
	if row >= g.rows {
		row = g.rows - 1
	}
	if col >= g.cols {
		col = g.cols - 1
	}
	return Cell{Row: row, Col: col}, nil
}

// Valid reports whether the cell exists within this grid's dimensions.
func (g *Grid) Valid(c Cell) bool {
	return c.Row >= 0 && c.Row < g.rows && c.Col >= 0 && c.Col < g.cols
}

package tracking

import "github.com/theoremus-urban-solutions/geotrack/grid"

// ChangeEvent is produced once per accepted state update and never mutated
// afterwards. The JSON field names are the push wire format.
type ChangeEvent struct {
	Entity       string  `json:"entityId"`
	Organization string  `json:"organizationId"`
	Row          int     `json:"gridRow"`
	Col          int     `json:"gridCol"`
	Lat          float64 `json:"latitude"`
	Lon          float64 `json:"longitude"`
	Sequence     uint64  `json:"sequence"`
	TimestampMS  int64   `json:"timestampMillis"`
}

// Cell returns the grid cell the event was produced in.
func (e ChangeEvent) Cell() grid.Cell {
	return grid.Cell{Row: e.Row, Col: e.Col}
}

// Publisher receives change events for fan-out. Implementations must not
// block: by the time Publish is called the entity's cell membership is
// already up to date, and the actor loop is waiting on the call.
type Publisher interface {
	Publish(ev ChangeEvent)
}

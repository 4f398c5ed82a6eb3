package hub

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/theoremus-urban-solutions/geotrack/grid"
)

// Handler upgrades push-channel connections and keeps each one's
// subscription in sync with the viewport messages the client sends.
type Handler struct {
	registry *Registry
	grid     *grid.Grid
	orgs     map[string]struct{}
	upgrader websocket.Upgrader
}

// NewHandler creates the WebSocket handler for the given organizations.
func NewHandler(registry *Registry, g *grid.Grid, orgIDs []string) *Handler {
	orgs := make(map[string]struct{}, len(orgIDs))
	for _, id := range orgIDs {
		orgs[id] = struct{}{}
	}
	return &Handler{
		registry: registry,
		grid:     g,
		orgs:     orgs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// viewportMessage is the only client-to-server message: a replacement cell
// set, e.g. {"cells":[[0,0],[1,0]]}. An empty list means the whole
// organization.
type viewportMessage struct {
	Cells [][2]int `json:"cells"`
}

// Handle serves one subscriber connection. Query parameters: org (required)
// and cells ("row,col;row,col", optional; absent means org-wide).
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	org := r.URL.Query().Get("org")
	if org == "" {
		http.Error(w, "missing org", http.StatusBadRequest)
		return
	}
	if _, ok := h.orgs[org]; !ok {
		http.Error(w, "unknown org", http.StatusForbidden)
		return
	}
	cells, err := ParseCells(r.URL.Query().Get("cells"), h.grid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	connID := uuid.NewString()
	h.registry.Subscribe(connID, org, cells, &wsSink{conn: conn})
	log.Printf("subscriber %s connected (org=%s, cells=%d)", connID, org, len(cells))

	for {
		var msg viewportMessage
		if err := conn.ReadJSON(&msg); err != nil {
			h.registry.Unsubscribe(connID)
			log.Printf("subscriber %s disconnected: %v", connID, err)
			return
		}
		update, err := cellsFromPairs(msg.Cells, h.grid)
		if err != nil {
			log.Printf("subscriber %s sent bad viewport: %v", connID, err)
			continue
		}
		h.registry.UpdateViewport(connID, update)
	}
}

// ParseCells parses "row,col;row,col" into cells, validating each against
// the grid. Empty input means nil (organization-wide).
func ParseCells(s string, g *grid.Grid) ([]grid.Cell, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ";")
	out := make([]grid.Cell, 0, len(parts))
	for _, p := range parts {
		rc := strings.SplitN(p, ",", 2)
		if len(rc) != 2 {
			return nil, fmt.Errorf("malformed cell %q", p)
		}
		row, err1 := strconv.Atoi(strings.TrimSpace(rc[0]))
		col, err2 := strconv.Atoi(strings.TrimSpace(rc[1]))
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("malformed cell %q", p)
		}
		c := grid.Cell{Row: row, Col: col}
		if !g.Valid(c) {
			return nil, fmt.Errorf("cell %v outside grid", c)
		}
		out = append(out, c)
	}
	return out, nil
}

func cellsFromPairs(pairs [][2]int, g *grid.Grid) ([]grid.Cell, error) {
	out := make([]grid.Cell, 0, len(pairs))
	for _, p := range pairs {
		c := grid.Cell{Row: p[0], Col: p[1]}
		if !g.Valid(c) {
			return nil, fmt.Errorf("cell %v outside grid", c)
		}
		out = append(out, c)
	}
	return out, nil
}

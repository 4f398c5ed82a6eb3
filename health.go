package geotrack

import (
	"encoding/json"
	"net/http"

	"github.com/theoremus-urban-solutions/geotrack/tracking"
	"github.com/theoremus-urban-solutions/geotrack/utils"
)

type healthResponse struct {
	Status            string                 `json:"status"`
	Timestamp         string                 `json:"timestamp"`
	TrackedEntities   int                    `json:"tracked_entities"`
	Subscribers       int                    `json:"subscribers"`
	DroppedDeliveries uint64                 `json:"dropped_deliveries"`
	Ingest            tracking.StatsSnapshot `json:"ingest"`
}

func (e *Engine) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := healthResponse{
		Status:            "ok",
		Timestamp:         utils.Iso8601Now(),
		TrackedEntities:   e.Router.ActorCount(),
		Subscribers:       e.Hub.SubscriberCount(),
		DroppedDeliveries: e.Hub.DroppedEvents(),
		Ingest:            e.Router.Stats().Snapshot(),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

package web

// sse.go writes a run's event channel to the client as Server-Sent Events.
//
// Framing per event: "id: <n>\nevent: <name>\ndata: <json>\n\n", flushed
// immediately. The stream ends when the engine closes the channel (after its
// complete or run-level error event) or when the client disconnects; a
// disconnect cancels the request context, which the engine observes and
// abandons the run.

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sidmazak/bulk-csv-editor/internal/engine"
)

// streamEvents forwards the run's progress events to the client.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, events <-chan engine.Event) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventID := 0
	for {
		select {
		case ev, open := <-events:
			if !open {
				// Channel closed: the run delivered its final event.
				return
			}

			data, err := json.Marshal(ev.Data)
			if err != nil {
				slog.Error("marshal event", "event", ev.Name, "error", err)
				continue
			}

			eventID++
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", eventID, ev.Name, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

package admissions_api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kidzo/gatesync/internal/notify"
)

// streamEvents serves the live feed over SSE. Every new observer gets the
// current counter snapshot first, then hub events as they happen. The
// subscription ends with the request context.
func (a *API) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := a.hub.Subscribe(r.Context())

	if snap, err := a.admissions.Snapshot(r.Context()); err == nil {
		writeSSE(w, notify.Event{Type: notify.EventCounterSnapshot, Snapshot: &snap})
		flusher.Flush()
	}

	for ev := range ch {
		writeSSE(w, ev)
		flusher.Flush()
	}
}

func writeSSE(w io.Writer, ev notify.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
}

package gateway

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// StatusResponse is the JSON body returned by GET /api/v1/status.
type StatusResponse struct {
	App       AppStatus      `json:"app"`
	Renderers RendererStatus `json:"renderers"`
	Windows   WindowStatus   `json:"windows"`
	Dialogues DialogueStatus `json:"dialogues"`
}

// AppStatus holds process overview info.
type AppStatus struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// RendererStatus counts connected renderer processes.
type RendererStatus struct {
	Connected int `json:"connected"`
}

// WindowStatus holds window lifecycle counters.
type WindowStatus struct {
	Opened int64 `json:"opened"`
	Closed int64 `json:"closed"`
}

// DialogueStatus holds streaming session counters.
type DialogueStatus struct {
	Active  int64 `json:"active"`
	Started int64 `json:"started"`
	Errors  int64 `json:"errors"`
}

// Metrics tracks counters for the status API and Prometheus metrics.
type Metrics struct {
	DialoguesStarted atomic.Int64
	DialoguesEnded   atomic.Int64
	DialogueErrors   atomic.Int64
	WindowsOpened    atomic.Int64
	WindowsClosed    atomic.Int64
	MenuClicks       atomic.Int64
}

// ActiveDialogues is the number of sessions started and not yet ended.
func (m *Metrics) ActiveDialogues() int64 {
	return max(m.DialoguesStarted.Load()-m.DialoguesEnded.Load(), 0)
}

// statusHandler returns an HTTP handler for GET /api/v1/status.
func statusHandler(s *Server, deps HandlerDeps, startTime time.Time, metrics *Metrics) http.HandlerFunc {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		resp := StatusResponse{
			App: AppStatus{
				Name:          "noelle",
				Version:       version,
				UptimeSeconds: int64(time.Since(startTime).Seconds()),
			},
			Renderers: RendererStatus{Connected: s.Connected()},
			Windows: WindowStatus{
				Opened: metrics.WindowsOpened.Load(),
				Closed: metrics.WindowsClosed.Load(),
			},
			Dialogues: DialogueStatus{
				Active:  metrics.ActiveDialogues(),
				Started: metrics.DialoguesStarted.Load(),
				Errors:  metrics.DialogueErrors.Load(),
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

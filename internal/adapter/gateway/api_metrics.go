package gateway

import (
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"
)

// metricsHandler returns an HTTP handler for GET /metrics in Prometheus text format.
// This uses the lightweight text format to avoid pulling in the full prometheus client.
func metricsHandler(s *Server, startTime time.Time, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		writeMetric(w, "noelle_renderers_connected", "gauge", "Connected renderer processes.", s.Connected())

		writeMetric(w, "noelle_dialogues_active", "gauge", "Streaming sessions in flight.", metrics.ActiveDialogues())
		writeMetric(w, "noelle_dialogues_started_total", "counter", "Streaming sessions started.", metrics.DialoguesStarted.Load())
		writeMetric(w, "noelle_dialogue_errors_total", "counter", "Streaming sessions ended with an error.", metrics.DialogueErrors.Load())

		writeMetric(w, "noelle_windows_opened_total", "counter", "Windows opened.", metrics.WindowsOpened.Load())
		writeMetric(w, "noelle_windows_closed_total", "counter", "Windows destroyed.", metrics.WindowsClosed.Load())
		writeMetric(w, "noelle_menu_clicks_total", "counter", "Context menu items clicked.", metrics.MenuClicks.Load())

		fmt.Fprintf(w, "# HELP noelle_uptime_seconds Seconds since the core started.\n")
		fmt.Fprintf(w, "# TYPE noelle_uptime_seconds gauge\n")
		fmt.Fprintf(w, "noelle_uptime_seconds %.0f\n", time.Since(startTime).Seconds())

		// Go runtime metrics.
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		writeMetric(w, "go_goroutines", "gauge", "Number of goroutines.", runtime.NumGoroutine())
		writeMetric(w, "go_memstats_alloc_bytes", "gauge", "Bytes of allocated heap objects.", mem.Alloc)
		writeMetric(w, "go_memstats_sys_bytes", "gauge", "Total bytes of memory obtained from the OS.", mem.Sys)

		fmt.Fprintf(w, "# HELP go_gc_duration_seconds Total GC pause duration.\n")
		fmt.Fprintf(w, "# TYPE go_gc_duration_seconds gauge\n")
		fmt.Fprintf(w, "go_gc_duration_seconds %f\n", float64(mem.PauseTotalNs)/1e9)
	}
}

func writeMetric(w io.Writer, name, kind, help string, value any) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %d\n", name, value)
}

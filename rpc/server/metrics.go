package server

import (
	"net/http"

	"github.com/VictoriaMetrics/metrics"
)

// Server metrics, registered in the default set of VictoriaMetrics/metrics
var (
	connectedClients = metrics.NewCounter(`respkv_server_connected_clients`)

	execCommitted      = metrics.NewCounter(`respkv_server_exec_total{result="committed"}`)
	execAborted        = metrics.NewCounter(`respkv_server_exec_total{result="execabort"}`)
	execWatchConflicts = metrics.NewCounter(`respkv_server_exec_total{result="watch_conflict"}`)
)

// countCommand increments the counter of the command. Unknown commands share
// one counter.
func countCommand(name string) {
	if _, ok := commands[name]; !ok {
		switch name {
		case "MULTI", "EXEC", "DISCARD", "WATCH":
		default:
			name = "unknown"
		}
	}
	metrics.GetOrCreateCounter(`respkv_server_commands_total{command="` + name + `"}`).Inc()
}

// NewMetricsHandler returns a handler serving all metrics of the process
// (server, client and go runtime) in the prometheus text format on /metrics.
func NewMetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	return mux
}

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ValentinKolb/dRec/rpc/protocol"
	"github.com/VictoriaMetrics/metrics"
)

// serverMetrics are the counters of one server instance. They are kept in an
// own set so several servers (e.g. in tests) do not share them.
type serverMetrics struct {
	set *metrics.Set

	commands      map[protocol.Kind]*metrics.Counter
	connections   *metrics.Counter
	readErrors    *metrics.Counter
	decodeErrors  *metrics.Counter
	handlerErrors *metrics.Counter
	logErrors     *metrics.Counter
	duration      *metrics.Summary
}

func newServerMetrics() *serverMetrics {
	set := metrics.NewSet()

	m := &serverMetrics{
		set:           set,
		commands:      make(map[protocol.Kind]*metrics.Counter, len(protocol.Kinds)),
		connections:   set.NewCounter("drec_connections_total"),
		readErrors:    set.NewCounter("drec_read_errors_total"),
		decodeErrors:  set.NewCounter("drec_decode_errors_total"),
		handlerErrors: set.NewCounter("drec_handler_errors_total"),
		logErrors:     set.NewCounter("drec_log_errors_total"),
		duration:      set.NewSummary("drec_command_duration_seconds"),
	}
	for _, k := range protocol.Kinds {
		m.commands[k] = set.NewCounter(fmt.Sprintf(`drec_commands_total{kind=%q}`, k))
	}
	return m
}

// registerGauges adds gauges that are computed on every scrape
func (m *serverMetrics) registerGauges(pending func() int, logEntries func() int) {
	m.set.NewGauge("drec_pending_connections", func() float64 { return float64(pending()) })
	m.set.NewGauge("drec_log_entries", func() float64 { return float64(logEntries()) })
}

// commandDone records a processed command
func (m *serverMetrics) commandDone(kind protocol.Kind, start time.Time) {
	if c, ok := m.commands[kind]; ok {
		c.Inc()
	}
	m.duration.UpdateDuration(start)
}

// writePrometheus writes the server metrics plus the process metrics
func (m *serverMetrics) writePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
	metrics.WritePrometheus(w, true)
}

// --------------------------------------------------------------------------
// HTTP endpoint
// --------------------------------------------------------------------------

// metricsEndpoint serves GET /metrics in the prometheus text format
type metricsEndpoint struct {
	srv *http.Server
}

func startMetricsEndpoint(addr string, m *serverMetrics) *metricsEndpoint {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		m.writePrometheus(w)
	})

	e := &metricsEndpoint{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	go func() {
		Logger.Infof("Serving metrics on http://%s/metrics", addr)
		if err := e.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("Metrics endpoint failed: %v", err)
		}
	}()

	return e
}

func (e *metricsEndpoint) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.srv.Shutdown(ctx); err != nil {
		Logger.Warningf("Failed to stop metrics endpoint: %v", err)
	}
}

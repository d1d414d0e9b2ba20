// Package observability exposes Prometheus gauges/counters/histograms for
// the tick loop, grounded on internal/api/observability.go's debug server:
// same bounded-cardinality metric set, same localhost-only pprof+metrics
// mux, same package-level promauto vars.
package observability

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rysteria_tick_duration_seconds",
		Help:    "Time spent running one 40ms tick pipeline",
		Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.03, 0.04, 0.08},
	})

	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rysteria_connected_clients",
		Help: "Currently connected game-socket sessions",
	})

	entitiesAlive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rysteria_entities_alive",
		Help: "Live ECS entities this tick",
	})

	spawnAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rysteria_spawn_attempts_total",
		Help: "Mob spawn attempts made by the maze spawner",
	})

	spawnRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rysteria_spawn_rejected_total",
		Help: "Spawn attempts rejected by broad-phase clearance or table exhaustion",
	})

	packetsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rysteria_packets_dropped_total",
		Help: "Inbound/outbound packets dropped",
	}, []string{"reason"}) // bounded: "decrypt", "rate_limit", "queue_full", "malformed"

	squadKicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rysteria_squad_kicks_total",
		Help: "Squad kick votes that reached quorum",
	})
)

// Config configures the debug server (metrics + pprof).
type Config struct {
	Enabled    bool
	ListenAddr string // should stay loopback-only, mirrors the teacher's pprof exposure guard
}

// DefaultConfig returns the safe, loopback-only default.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// StartDebugServer starts the metrics/pprof server in a background
// goroutine. Binding anywhere but loopback requires an explicit env opt-in,
// same guard the teacher's debug server applies.
func StartDebugServer(cfg Config) {
	if !cfg.Enabled {
		log.Println("📊 debug server disabled")
		return
	}

	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("⚠️ debug server forced to localhost")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	go func() {
		log.Printf("📊 debug server starting on %s", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
			log.Printf("⚠️ debug server error: %v", err)
		}
	}()
}

// RecordTick records one tick's wall-clock duration.
func RecordTick(d time.Duration) { tickDuration.Observe(d.Seconds()) }

// UpdateConnectedClients sets the connected-session gauge.
func UpdateConnectedClients(n int) { connectedClients.Set(float64(n)) }

// UpdateEntitiesAlive sets the live-entity gauge.
func UpdateEntitiesAlive(n int) { entitiesAlive.Set(float64(n)) }

// RecordSpawnAttempt increments the spawn-attempt counter, optionally the
// rejected counter too.
func RecordSpawnAttempt(rejected bool) {
	spawnAttemptsTotal.Inc()
	if rejected {
		spawnRejectedTotal.Inc()
	}
}

// RecordPacketDropped increments the dropped-packet counter for reason,
// one of "decrypt", "rate_limit", "queue_full", "malformed".
func RecordPacketDropped(reason string) {
	packetsDroppedTotal.WithLabelValues(reason).Inc()
}

// RecordSquadKick increments the squad-kick counter.
func RecordSquadKick() { squadKicksTotal.Inc() }

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fleet metrics
	DeploymentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "paddock_deployments_total",
			Help: "Total number of deployments by status",
		},
		[]string{"status"},
	)

	ReplicasTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "paddock_replicas_total",
			Help: "Total number of tracked replicas by lifecycle state",
		},
		[]string{"state"},
	)

	// Replica lifecycle metrics
	ReplicasStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paddock_replicas_started_total",
			Help: "Total number of replica start commands issued",
		},
	)

	ReplicasStopped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paddock_replicas_stopped_total",
			Help: "Total number of replica stop commands issued",
		},
	)

	ReplicaStartFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paddock_replica_start_failures_total",
			Help: "Total number of replicas that failed to start",
		},
	)

	// Reconciliation metrics
	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "paddock_reconcile_duration_seconds",
			Help:    "Duration of one fleet reconciliation tick in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconcileCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paddock_reconcile_cycles_total",
			Help: "Total number of fleet reconciliation ticks",
		},
	)

	CheckpointFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paddock_checkpoint_failures_total",
			Help: "Total number of failed checkpoint saves",
		},
	)
)

func init() {
	prometheus.MustRegister(DeploymentsTotal)
	prometheus.MustRegister(ReplicasTotal)
	prometheus.MustRegister(ReplicasStarted)
	prometheus.MustRegister(ReplicasStopped)
	prometheus.MustRegister(ReplicaStartFailures)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(ReconcileCyclesTotal)
	prometheus.MustRegister(CheckpointFailures)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

package workitem

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the work-item subsystem.
type Metrics struct {
	QueueReadsTotal      *prometheus.CounterVec
	QueueReadDuration    *prometheus.HistogramVec
	ItemsScored          prometheus.Histogram
	ItemsSelected        prometheus.Histogram
	BelowThresholdTotal  prometheus.Counter
	DiversitySkipsTotal  prometheus.Counter
	AutoResolvedTotal    prometheus.Counter
	EnsuresTotal         *prometheus.CounterVec
	ActionsTotal         *prometheus.CounterVec
	AdapterFailuresTotal *prometheus.CounterVec
	WritebackDropsTotal  *prometheus.CounterVec
}

// NewMetrics registers and returns work-item metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueueReadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "focus_queue_reads_total",
			Help: "Total queue reads by outcome.",
		}, []string{"outcome"}),
		QueueReadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "focus_queue_read_duration_seconds",
			Help:    "Duration of queue reads in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms .. ~5s
		}, []string{"outcome"}),
		ItemsScored: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "focus_queue_items_scored",
			Help:    "Items scored per queue read.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 .. 512
		}),
		ItemsSelected: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "focus_queue_items_selected",
			Help:    "Items selected per queue read.",
			Buckets: prometheus.LinearBuckets(0, 2, 11), // 0 .. 20
		}),
		BelowThresholdTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "focus_queue_below_threshold_total",
			Help: "Items dropped below the minimum score threshold.",
		}),
		DiversitySkipsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "focus_queue_diversity_skips_total",
			Help: "Items skipped by the per-source diversity cap.",
		}),
		AutoResolvedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "focus_queue_auto_resolved_total",
			Help: "Items auto-promoted to trusted during reconciliation.",
		}),
		EnsuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "focus_ensure_total",
			Help: "ensure-work-item calls by result.",
		}, []string{"result"}),
		ActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "focus_actions_total",
			Help: "Explicit user actions by type.",
		}, []string{"action"}),
		AdapterFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "focus_adapter_failures_total",
			Help: "Source adapter batch-fetch failures by source type.",
		}, []string{"source"}),
		WritebackDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "focus_writeback_drops_total",
			Help: "Write-back tasks dropped because the buffer was full.",
		}, []string{"task"}),
	}

	reg.MustRegister(
		m.QueueReadsTotal,
		m.QueueReadDuration,
		m.ItemsScored,
		m.ItemsSelected,
		m.BelowThresholdTotal,
		m.DiversitySkipsTotal,
		m.AutoResolvedTotal,
		m.EnsuresTotal,
		m.ActionsTotal,
		m.AdapterFailuresTotal,
		m.WritebackDropsTotal,
	)

	return m
}

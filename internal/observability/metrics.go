package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for BasketCore.
type Metrics struct {
	// --- Core processing ---
	CoreEventsApplied  *prometheus.CounterVec
	CoreEventsRejected *prometheus.CounterVec
	CoreEventDuration  *prometheus.HistogramVec
	CoreSequence       prometheus.Gauge

	// --- Accounting ---
	IssuesTotal          *prometheus.CounterVec
	RedeemsTotal         *prometheus.CounterVec
	BalanceSyncsTotal    *prometheus.CounterVec
	FeeAccrualsTotal     *prometheus.CounterVec
	PositionMultiplier   *prometheus.GaugeVec
	BasketSupply         *prometheus.GaugeVec
	CollateralViolations *prometheus.CounterVec
	PolicyRejections     *prometheus.CounterVec

	// --- Idempotency & ordering ---
	IdempotencyDuplicates *prometheus.CounterVec
	EventOutOfOrder       *prometheus.CounterVec

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchSize     prometheus.Histogram
	PersistBatchDur      prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistLastSequence  prometheus.Gauge

	// --- Snapshot ---
	SnapshotTaken    prometheus.Counter
	SnapshotDuration prometheus.Histogram
	SnapshotLastSeq  prometheus.Gauge

	// --- Publishing & queries ---
	PublishDrops  prometheus.Counter
	QueryRequests *prometheus.CounterVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		CoreEventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_core_events_applied_total",
			Help: "Events successfully applied by the engine",
		}, []string{"event_type"}),

		CoreEventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_core_events_rejected_total",
			Help: "Events rejected (dedup, ordering, validation)",
		}, []string{"event_type", "reason"}),

		CoreEventDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "basket_core_event_apply_duration_seconds",
			Help:    "Time to apply a single event in the engine",
			Buckets: latencyBuckets,
		}, []string{"event_type"}),

		CoreSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "basket_core_sequence",
			Help: "Current engine sequence number",
		}),

		IssuesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_issues_total",
			Help: "Completed issuances",
		}, []string{"basket"}),

		RedeemsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_redeems_total",
			Help: "Completed redemptions",
		}, []string{"basket"}),

		BalanceSyncsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_balance_syncs_total",
			Help: "Default position units recomputed from measured balances",
		}, []string{"basket"}),

		FeeAccrualsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_fee_accruals_total",
			Help: "Streaming fee accruals applied",
		}, []string{"basket"}),

		PositionMultiplier: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "basket_position_multiplier",
			Help: "Current position multiplier (18-decimal fixed point, as float)",
		}, []string{"basket"}),

		BasketSupply: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "basket_token_supply",
			Help: "Outstanding basket token supply (18-decimal fixed point, as float)",
		}, []string{"basket"}),

		CollateralViolations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_collateral_violations_total",
			Help: "Collateralization check failures (operation aborted)",
		}, []string{"basket", "check"}),

		PolicyRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_policy_rejections_total",
			Help: "Expected policy rejections (slippage, supply floor)",
		}, []string{"basket", "event_type"}),

		IdempotencyDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_idempotency_duplicates_total",
			Help: "Duplicate events skipped",
		}, []string{"event_type", "tier"}),

		EventOutOfOrder: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_events_out_of_order_total",
			Help: "Events rejected for stale source sequence",
		}, []string{"basket"}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "basket_persist_events_written_total",
			Help: "Events written to the event log",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "basket_persist_batch_size",
			Help:    "Events per persistence batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "basket_persist_batch_duration_seconds",
			Help:    "Time to flush one persistence batch",
			Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_persist_errors_total",
			Help: "Persistence failures by stage",
		}, []string{"stage"}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "basket_persist_last_sequence",
			Help: "Highest sequence flushed to the event log",
		}),

		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "basket_snapshots_taken_total",
			Help: "State snapshots persisted",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "basket_snapshot_duration_seconds",
			Help:    "Time to persist one snapshot",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "basket_snapshot_last_sequence",
			Help: "Sequence of the latest snapshot",
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "basket_publish_drops_total",
			Help: "Outbound events dropped on full publish channel",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_query_requests_total",
			Help: "Query API requests",
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_query_errors_total",
			Help: "Query API errors",
		}, []string{"endpoint"}),
	}
}

// Package obs holds the Prometheus instrumentation for the risk core.
// Metrics are registered via promauto at init and exposed by the /metrics
// endpoint wired in main.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TradeOpens counts open attempts by outcome (accepted, rejected, error).
var TradeOpens = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "riskcore",
		Subsystem: "trading",
		Name:      "trade_opens_total",
		Help:      "Total trade open attempts by outcome",
	},
	[]string{"outcome"},
)

// TradeRejections counts rejected opens by reason code.
var TradeRejections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "riskcore",
		Subsystem: "trading",
		Name:      "trade_rejections_total",
		Help:      "Total rejected trade opens by reason",
	},
	[]string{"reason"},
)

// PositionCloses counts applied closes by reason (SL, TP, MANUAL).
var PositionCloses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "riskcore",
		Subsystem: "trading",
		Name:      "position_closes_total",
		Help:      "Total position closes by reason",
	},
	[]string{"reason"},
)

// ScanDuration observes how long a full monitor scan takes.
var ScanDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "riskcore",
		Subsystem: "monitor",
		Name:      "scan_duration_seconds",
		Help:      "Duration of a full SL/TP scan",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
)

// ScanErrors counts per-symbol and per-position failures inside a scan.
// A failure here never aborts the rest of the scan.
var ScanErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "riskcore",
		Subsystem: "monitor",
		Name:      "scan_errors_total",
		Help:      "Isolated failures during monitor scans",
	},
	[]string{"stage"}, // quote, close
)

// QuoteLookups counts price source lookups by freshness class of the
// returned quote.
var QuoteLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "riskcore",
		Subsystem: "pricing",
		Name:      "quote_lookups_total",
		Help:      "Price lookups by freshness of the returned quote",
	},
	[]string{"freshness"},
)

// CacheUnavailable counts lookups that failed against the quote cache and
// degraded to the synthetic fallback.
var CacheUnavailable = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "riskcore",
		Subsystem: "pricing",
		Name:      "cache_unavailable_total",
		Help:      "Quote cache failures that triggered fallback",
	},
)

// SyntheticClosesSuppressed counts closes that were triggered solely by a
// synthetic quote and suppressed by the strictness policy.
var SyntheticClosesSuppressed = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "riskcore",
		Subsystem: "monitor",
		Name:      "synthetic_closes_suppressed_total",
		Help:      "Closes suppressed because only a synthetic quote crossed the trigger",
	},
)

// ReconciliationsFlagged counts closes whose balance debit had to be
// clamped at zero and handed to reconciliation.
var ReconciliationsFlagged = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "riskcore",
		Subsystem: "trading",
		Name:      "reconciliations_flagged_total",
		Help:      "Closes flagged for external reconciliation",
	},
)

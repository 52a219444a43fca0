// Package observability holds the Prometheus metrics for the settlement
// ledger, exposed at /metrics when enabled.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Settlement metrics ─────────────────────────────────────────────────────

// SettlementsCreatedTotal counts accepted withdrawal requests.
var SettlementsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "settled_settlements_created_total",
	Help: "Total settlement requests accepted into status pending",
})

// InsufficientBalanceTotal counts requests refused by the balance check.
var InsufficientBalanceTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "settled_insufficient_balance_total",
	Help: "Settlement requests rejected because the amount exceeded the available balance",
})

// TransitionsTotal counts status-transition attempts by target status and
// outcome (applied, conflict, error).
var TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "settled_transitions_total",
	Help: "Settlement status transition attempts",
}, []string{"to_status", "outcome"})

// BalanceComputeDuration observes balance derivation latency.
var BalanceComputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "settled_balance_compute_seconds",
	Help:    "Time spent deriving a merchant balance",
	Buckets: prometheus.DefBuckets,
})

// TransactionsIngestedTotal counts feed transactions upserted into the store.
var TransactionsIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "settled_transactions_ingested_total",
	Help: "Finalized transactions ingested from the external ledger feed",
})

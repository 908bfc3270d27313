// Package metrics declares the service's Prometheus collectors on the
// default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cratecore",
			Subsystem: "purchase",
			Name:      "processed_total",
			Help:      "Processed purchase requests partitioned by result.",
		},
		[]string{"result"},
	)

	// CompensationFailures counts rollbacks that themselves failed. Any
	// increase here means a balance needs manual reconciliation.
	CompensationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cratecore",
			Subsystem: "purchase",
			Name:      "compensation_failures_total",
			Help:      "Compensating ledger entries that could not be applied.",
		},
	)

	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cratecore",
			Subsystem: "verifier",
			Name:      "lookups_total",
			Help:      "Payment verification outcomes partitioned by status.",
		},
		[]string{"status"},
	)

	LedgerAppliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cratecore",
			Subsystem: "ledger",
			Name:      "applies_total",
			Help:      "Ledger mutations partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	WithdrawalTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cratecore",
			Subsystem: "withdrawal",
			Name:      "transitions_total",
			Help:      "Withdrawal status transitions partitioned by target status.",
		},
		[]string{"to"},
	)
)

package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gastropass_reconciler_transitions_applied_total",
		Help: "Terminal transitions applied to payments, by status.",
	}, []string{"status"})

	duplicateSignals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gastropass_reconciler_duplicate_signals_total",
		Help: "Repeated terminal observations dropped as duplicates.",
	})

	conflictingSignals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gastropass_reconciler_conflicting_signals_total",
		Help: "Conflicting terminal observations dropped by the latch.",
	})

	nonTerminalIgnored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gastropass_reconciler_nonterminal_ignored_total",
		Help: "Non-terminal observations ignored by the channels.",
	})
)

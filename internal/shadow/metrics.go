package shadow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dualwrite",
		Subsystem: "shadow",
		Name:      "dispatched_total",
		Help:      "Number of request snapshots accepted for shadow delivery.",
	})

	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dualwrite",
		Subsystem: "shadow",
		Name:      "dropped_total",
		Help:      "Number of snapshots dropped because the dispatch queue was full.",
	})

	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dualwrite",
		Subsystem: "shadow",
		Name:      "outcomes_total",
		Help:      "Shadow delivery outcomes by status class.",
	}, []string{"class"})
)

package mesh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rulesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meshgen",
			Subsystem: "mesh",
			Name:      "rules_executed_total",
			Help:      "Rule handlers invoked, by rule kind",
		},
		[]string{"kind"},
	)

	executions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meshgen",
			Subsystem: "mesh",
			Name:      "executions_total",
			Help:      "Devices processed by the executor, by result",
		},
		[]string{"result"},
	)

	peersGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "meshgen",
			Subsystem: "mesh",
			Name:      "peers_generated_total",
			Help:      "BGP peers produced by the executor",
		},
	)
)

package treestore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	treeMoves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backoffice",
		Subsystem: "tree",
		Name:      "moves_total",
		Help:      "Total number of sibling reorders broken down by tree and direction.",
	}, []string{"tree", "direction"})

	treeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backoffice",
		Subsystem: "tree",
		Name:      "rejections_total",
		Help:      "Total number of tree operations rejected for cycles or depth.",
	}, []string{"tree", "reason"})
)

func recordMove(tree string, dir int) {
	direction := "down"
	if dir < 0 {
		direction = "up"
	}
	treeMoves.WithLabelValues(tree, direction).Inc()
}

func recordRejection(tree, reason string) {
	treeRejections.WithLabelValues(tree, reason).Inc()
}

package service

import (
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	subsystemAntiEntropy = "anti_entropy"
	subsystemReplicas    = "replicas"
	subsystemBlocks      = "blocks"
)

var (
	passesTotal = metrics.NewCounter(
		"passes_total",
		subsystemAntiEntropy,
		"Reconciliation passes by outcome",
		[]string{"outcome"},
	)
	passDuration = metrics.NewHistogramWithBuckets(
		"pass_duration_seconds",
		subsystemAntiEntropy,
		"Duration of reconciliation passes",
		[]string{"outcome"},
		prometheus.ExponentialBuckets(0.001, 2, 16),
	)
	digestComparisons = metrics.NewCounter(
		"digest_comparisons_total",
		subsystemAntiEntropy,
		"Merkle digests compared against replicas",
		nil,
	)
	keysTotal = metrics.NewCounter(
		"keys_total",
		subsystemAntiEntropy,
		"Divergent keys handled by action",
		[]string{"action"},
	)
	refreshFailures = metrics.NewCounter(
		"refresh_failures_total",
		subsystemReplicas,
		"Replica set refreshes that failed to resolve",
		nil,
	)
	replicaSetSize = metrics.NewGauge(
		"set_size",
		subsystemReplicas,
		"Current number of replicas",
		nil,
	)
	storeTotal = metrics.NewCounter(
		"store_total",
		subsystemBlocks,
		"Store calls by result",
		[]string{"result"},
	)
)

func observePass(res domain.PassResult, seconds float64) {
	outcome := string(res.Outcome)
	passesTotal.WithLabelValues(outcome).Inc()
	passDuration.WithLabelValues(outcome).Observe(seconds)
	digestComparisons.WithLabelValues().Add(float64(res.Comparisons))

	for action, n := range map[string]int{
		"pushed":     res.Pushed,
		"pulled":     res.Pulled,
		"replaced":   res.Replaced,
		"kept":       res.Kept,
		"unresolved": res.Unresolved,
		"divergent":  res.Divergent,
	} {
		if n > 0 {
			keysTotal.WithLabelValues(action).Add(float64(n))
		}
	}
}

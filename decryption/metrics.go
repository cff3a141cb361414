// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package decryption

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	failedHandles       prometheus.Counter
	failedPersists      prometheus.Counter
	decryptBatchLatency prometheus.Histogram
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := Metrics{
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "decryption_cache_hits",
				Help: "Number of handles served from the decryption cache",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "decryption_cache_misses",
				Help: "Number of handles sent to the decryption service",
			},
		),
		failedHandles: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "decryption_failed_handles",
				Help: "Number of handles the decryption service could not decrypt",
			},
		),
		failedPersists: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "decryption_cache_failed_persists",
				Help: "Number of cache partitions that could not be written to storage",
			},
		),
		decryptBatchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "decryption_batch_latency_seconds",
				Help:    "Latency of one decryption service call",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	registerer.MustRegister(m.cacheHits)
	registerer.MustRegister(m.cacheMisses)
	registerer.MustRegister(m.failedHandles)
	registerer.MustRegister(m.failedPersists)
	registerer.MustRegister(m.decryptBatchLatency)

	return &m
}

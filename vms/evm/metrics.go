// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	sends     *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := Metrics{
		sends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "submitter_sends",
				Help: "Number of send attempts by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "submitter_fallbacks",
				Help: "Number of sends that fell back from the given strategy",
			},
			[]string{"strategy"},
		),
	}

	registerer.MustRegister(m.sends)
	registerer.MustRegister(m.fallbacks)

	return &m
}

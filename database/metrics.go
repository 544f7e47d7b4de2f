// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"errors"

	"github.com/blinklabs-io/zkcircles/circle"
	"github.com/prometheus/client_golang/prometheus"
)

const gatewayMetricNamePrefix = "gateway_"

type gatewayMetrics struct {
	opsTotal     *prometheus.CounterVec
	repairsTotal prometheus.Counter
}

func newGatewayMetrics(promRegistry prometheus.Registerer) *gatewayMetrics {
	m := &gatewayMetrics{
		opsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: gatewayMetricNamePrefix + "ops_total",
				Help: "Gateway operations by name and result",
			},
			[]string{"op", "result"},
		),
		repairsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: gatewayMetricNamePrefix + "read_repairs_total",
				Help: "Circles whose counters were repaired on read",
			},
		),
	}
	promRegistry.MustRegister(m.opsTotal, m.repairsTotal)
	return m
}

func (d *Database) observe(op string, err error) {
	if d.metrics == nil {
		return
	}
	d.metrics.opsTotal.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, circle.ErrNotFound):
		return "not_found"
	case errors.Is(err, circle.ErrForbidden):
		return "forbidden"
	case errors.Is(err, circle.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, circle.ErrConflict):
		return "conflict"
	case circle.IsValidation(err):
		return "invalid"
	default:
		return "error"
	}
}

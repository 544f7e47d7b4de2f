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

package circlesync

import (
	"github.com/prometheus/client_golang/prometheus"
)

const syncMetricNamePrefix = "circlesync_"

type syncMetrics struct {
	remoteErrors *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
}

func newSyncMetrics(promRegistry prometheus.Registerer) *syncMetrics {
	m := &syncMetrics{
		remoteErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: syncMetricNamePrefix + "remote_errors_total",
				Help: "Remote calls that failed with an infrastructure error",
			},
			[]string{"op"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: syncMetricNamePrefix + "fallbacks_total",
				Help: "Reads answered from the local mirror",
			},
			[]string{"op"},
		),
	}
	promRegistry.MustRegister(m.remoteErrors, m.fallbacks)
	return m
}

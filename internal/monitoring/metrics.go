/*
Copyright The Helm Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for bundle transfers.
type Metrics struct {
	FilesTotal       *prometheus.CounterVec
	BytesTotal       *prometheus.CounterVec
	RetriesTotal     *prometheus.CounterVec
	TransferDuration *prometheus.HistogramVec
	BatchesActive    *prometheus.GaugeVec
}

// NewMetrics registers the collectors with reg. A nil reg registers with
// the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		FilesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yoo_bundle_files_total",
				Help: "Bundles processed by batch operations, by outcome",
			},
			[]string{"package", "kind", "result"},
		),
		BytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yoo_bundle_bytes_total",
				Help: "Verified bundle bytes written to the cache",
			},
			[]string{"package", "kind"},
		),
		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yoo_bundle_retries_total",
				Help: "Failed bundle attempts that were retried",
			},
			[]string{"package", "kind"},
		),
		TransferDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yoo_bundle_transfer_duration_seconds",
				Help:    "Time to fetch, verify and persist one bundle",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"package", "kind"},
		),
		BatchesActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "yoo_batches_active",
				Help: "Batch operations currently running",
			},
			[]string{"package", "kind"},
		),
	}
}

// BatchStarted marks a batch as running.
func (m *Metrics) BatchStarted(pkg, kind string) {
	m.BatchesActive.WithLabelValues(pkg, kind).Inc()
}

// BatchFinished marks a batch as finished.
func (m *Metrics) BatchFinished(pkg, kind string) {
	m.BatchesActive.WithLabelValues(pkg, kind).Dec()
}

// FileSucceeded records a bundle that was verified and cached.
func (m *Metrics) FileSucceeded(pkg, kind string, size int64, elapsed time.Duration) {
	m.FilesTotal.WithLabelValues(pkg, kind, "succeed").Inc()
	m.BytesTotal.WithLabelValues(pkg, kind).Add(float64(size))
	m.TransferDuration.WithLabelValues(pkg, kind).Observe(elapsed.Seconds())
}

// FileFailed records a bundle whose retry budget ran out.
func (m *Metrics) FileFailed(pkg, kind string) {
	m.FilesTotal.WithLabelValues(pkg, kind, "failed").Inc()
}

// FileRetried records one failed attempt that will be retried.
func (m *Metrics) FileRetried(pkg, kind string) {
	m.RetriesTotal.WithLabelValues(pkg, kind).Inc()
}

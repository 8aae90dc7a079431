// Package metrics exposes Prometheus counters for lifecycle operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DownloadsTotal counts artifact download attempts by outcome.
	DownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "craftd",
		Name:      "downloads_total",
		Help:      "Artifact download attempts by outcome.",
	}, []string{"outcome"})

	// DownloadBytes counts bytes of verified artifacts written to disk.
	DownloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "craftd",
		Name:      "download_bytes_total",
		Help:      "Bytes of verified artifacts written to disk.",
	})

	// ProvisionsTotal counts provisioning calls by outcome.
	ProvisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "craftd",
		Name:      "provisions_total",
		Help:      "Instance provisioning calls by outcome.",
	}, []string{"outcome"})

	// StartsTotal counts process start attempts by outcome.
	StartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "craftd",
		Name:      "starts_total",
		Help:      "Process start attempts by outcome.",
	}, []string{"outcome"})

	// StopsTotal counts stop calls by method (graceful, forceful, none).
	StopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "craftd",
		Name:      "stops_total",
		Help:      "Process stop calls by termination method.",
	}, []string{"method"})

	// RunningInstances gauges how many instances were running at the last
	// registry scan.
	RunningInstances = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "craftd",
		Name:      "running_instances",
		Help:      "Running instances observed by the last registry scan.",
	})
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

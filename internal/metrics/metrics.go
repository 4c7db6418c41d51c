// Package metrics exports run statistics in the Prometheus text exposition
// format, for pickup by a node_exporter textfile collector on CI hosts.
package metrics

import (
	"fmt"
	"gitpuller/internal/output"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink is an output.Sink that counts repository outcomes and writes the
// registry to a file on Close.
type Sink struct {
	path string

	mu       sync.Mutex
	registry *prometheus.Registry

	Repositories   *prometheus.CounterVec
	UpdateDuration *prometheus.HistogramVec
	RunDuration    prometheus.Gauge
	LastRun        prometheus.Gauge
}

func NewSink(path string) (*Sink, error) {
	if path == "" {
		return nil, fmt.Errorf("metrics path required")
	}

	s := &Sink{
		path:     path,
		registry: prometheus.NewRegistry(),
		Repositories: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gitpuller_repositories_total",
				Help: "Repositories processed in the last run by outcome",
			},
			[]string{"status", "reason"},
		),
		UpdateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gitpuller_update_duration_seconds",
				Help:    "Time spent updating a single repository",
				Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gitpuller_run_duration_seconds",
			Help: "Wall-clock duration of the last run",
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gitpuller_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
	s.registry.MustRegister(s.Repositories, s.UpdateDuration, s.RunDuration, s.LastRun)
	return s, nil
}

func (s *Sink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var e output.Event
	switch t := v.(type) {
	case output.Event:
		e = t
	case output.RepoResult:
		e = output.Event{Type: output.EventRepoFinished, RepoResult: &t}
	default:
		return nil
	}

	switch e.Type {
	case output.EventRepoFinished:
		if e.RepoResult == nil {
			return nil
		}
		s.Repositories.WithLabelValues(e.Status, e.Reason).Inc()
		s.UpdateDuration.WithLabelValues(e.Status).Observe(float64(e.DurationMS) / 1000)
	case output.EventRunFinished:
		if e.Summary != nil {
			s.RunDuration.Set(float64(e.Summary.DurationMS) / 1000)
		}
		s.LastRun.SetToCurrentTime()
	}
	return nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := prometheus.WriteToTextfile(s.path, s.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// Copyright (C) 2026 Slipway Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// MetricsPublisher exports deployment outcomes for node_exporter's
// textfile collector.
//
// # Description
//
// A short-lived CLI cannot be scraped, so after each run the publisher
// renders its registry in Prometheus text format and writes it to a
// .prom file via write-temp-then-rename. The collector picks the file
// up on its next scrape; a crash mid-write leaves the previous file
// intact.
type MetricsPublisher struct {
	path     string
	registry *prometheus.Registry

	deployTotal    *prometheus.CounterVec
	deployDuration prometheus.Gauge
	lastDeploy     prometheus.Gauge
	lastSuccess    prometheus.Gauge
}

// NewMetricsPublisher creates a publisher writing to path. An empty
// path returns nil, disabling metrics export.
//
// Each CLI invocation starts with a fresh registry, so cumulative
// series are rehydrated from the previous textfile before the first
// publish; slipway_deploy_total keeps counting across runs.
func NewMetricsPublisher(path string) *MetricsPublisher {
	if path == "" {
		return nil
	}

	registry := prometheus.NewRegistry()
	p := &MetricsPublisher{
		path:     path,
		registry: registry,
		deployTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slipway_deploy_total",
			Help: "Deployment attempts by terminal state.",
		}, []string{"state"}),
		deployDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slipway_deploy_duration_seconds",
			Help: "Wall-clock duration of the most recent deployment.",
		}),
		lastDeploy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slipway_last_deploy_timestamp_seconds",
			Help: "Unix time of the most recent deployment attempt.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slipway_last_successful_deploy_timestamp_seconds",
			Help: "Unix time of the most recent promoted deployment.",
		}),
	}

	registry.MustRegister(p.deployTotal, p.deployDuration, p.lastDeploy, p.lastSuccess)
	p.restore()
	return p
}

// restore carries cumulative series over from the previous textfile.
// A missing or unparsable file just means starting from zero.
func (p *MetricsPublisher) restore() {
	f, err := os.Open(p.path)
	if err != nil {
		return
	}
	defer f.Close()

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(f)
	if err != nil {
		return
	}

	if fam, ok := families["slipway_deploy_total"]; ok {
		for _, m := range fam.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "state" {
					p.deployTotal.WithLabelValues(label.GetValue()).Add(m.GetCounter().GetValue())
				}
			}
		}
	}
	if fam, ok := families["slipway_last_successful_deploy_timestamp_seconds"]; ok && len(fam.GetMetric()) > 0 {
		p.lastSuccess.Set(fam.GetMetric()[0].GetGauge().GetValue())
	}
}

// PublishDeploy records a deployment outcome and rewrites the textfile.
func (p *MetricsPublisher) PublishDeploy(result *DeployResult) error {
	now := float64(time.Now().Unix())

	p.deployTotal.WithLabelValues(string(result.State)).Inc()
	p.deployDuration.Set(result.Duration.Seconds())
	p.lastDeploy.Set(now)
	if result.State == DeployStatePromoted {
		p.lastSuccess.Set(now)
	}

	return p.write()
}

// write renders the registry atomically to the textfile path.
func (p *MetricsPublisher) write() error {
	families, err := p.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), filepath.Base(p.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create metrics temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := expfmt.NewEncoder(tmp, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close metrics temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("failed to publish metrics file: %w", err)
	}
	return nil
}

// Copyright (C) 2026 Slipway Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// HealthChecker gates promotion on service availability.
//
// # Description
//
// A release is only promotable once its HTTP health endpoint answers
// with a 2xx status. The checker polls the endpoint until it succeeds
// or an overall budget runs out. Individual probe failures (connection
// refused, non-2xx, per-probe timeout) are expected during startup and
// never surface to the caller.
//
// # Outputs
//
// Await returns nil once the endpoint is healthy, ErrHealthCheckTimeout
// when the budget is exhausted, or the context error on cancellation.
type HealthChecker interface {
	// Await blocks until endpoint answers 2xx, the budget in opts runs
	// out, or ctx is cancelled.
	Await(ctx context.Context, endpoint string, opts WaitOptions) error
}

// WaitOptions bounds a health wait.
type WaitOptions struct {
	// Timeout is the overall budget for the wait.
	Timeout time.Duration

	// Interval is the delay between probes.
	Interval time.Duration

	// Jitter is the maximum random extra delay added to each interval,
	// so repeated deployments don't probe in lockstep.
	Jitter time.Duration

	// ProbeTimeout bounds a single HTTP probe.
	ProbeTimeout time.Duration
}

// DefaultWaitOptions returns the standard health wait configuration.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{
		Timeout:      120 * time.Second,
		Interval:     2 * time.Second,
		Jitter:       250 * time.Millisecond,
		ProbeTimeout: 5 * time.Second,
	}
}

// HTTPHealthChecker implements HealthChecker with plain HTTP GETs.
type HTTPHealthChecker struct {
	client *http.Client
}

// NewHTTPHealthChecker creates a health checker. A nil client uses a
// fresh http.Client; per-probe timeouts come from WaitOptions.
func NewHTTPHealthChecker(client *http.Client) *HTTPHealthChecker {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPHealthChecker{client: client}
}

// Await polls endpoint until it reports healthy or the budget runs out.
func (c *HTTPHealthChecker) Await(ctx context.Context, endpoint string, opts WaitOptions) error {
	deadline := time.Now().Add(opts.Timeout)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.probe(ctx, endpoint, opts.ProbeTimeout) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s not healthy after %v", ErrHealthCheckTimeout, endpoint, opts.Timeout)
		}

		delay := opts.Interval
		if opts.Jitter > 0 {
			delay += time.Duration(rand.Int63n(int64(opts.Jitter)))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// probe performs one GET. Any failure means "not healthy yet".
func (c *HTTPHealthChecker) probe(ctx context.Context, endpoint string, timeout time.Duration) bool {
	probeCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// MockHealthChecker is a configurable mock for unit tests.
type MockHealthChecker struct {
	AwaitFunc func(ctx context.Context, endpoint string, opts WaitOptions) error

	// Endpoints records every awaited endpoint in call order.
	Endpoints []string
}

// Await invokes AwaitFunc or returns nil.
func (m *MockHealthChecker) Await(ctx context.Context, endpoint string, opts WaitOptions) error {
	m.Endpoints = append(m.Endpoints, endpoint)
	if m.AwaitFunc != nil {
		return m.AwaitFunc(ctx, endpoint, opts)
	}
	return nil
}

// Compile-time interface compliance checks.
var (
	_ HealthChecker = (*HTTPHealthChecker)(nil)
	_ HealthChecker = (*MockHealthChecker)(nil)
)

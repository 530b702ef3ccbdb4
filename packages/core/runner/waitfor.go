package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/http"
)

// WaitFor delays a run until URL answers with Status.
type WaitFor struct {
	URL      string
	Status   int
	Timeout  time.Duration
	Interval time.Duration
}

// waitForService polls a URL through the runner's transport until it returns
// the expected status code or times out
func (r *Runner) waitForService(ctx context.Context, cfg *WaitFor) error {
	if r.transport == nil {
		return ErrNoTransport
	}

	url := r.store.Substitute(cfg.URL)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	expectedStatus := cfg.Status
	if expectedStatus == 0 {
		expectedStatus = 200
	}

	r.logger.Info("waiting for service", "url", url, "status", expectedStatus, "timeout", timeout)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	var lastStatus int

	for {
		resp, err := r.transport.Do(ctx, http.NewRequest("GET", url))
		if err != nil {
			lastErr = err
		} else {
			lastStatus = resp.StatusCode
			if resp.StatusCode == expectedStatus {
				r.logger.Info("service is ready", "url", url)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			if lastErr != nil && lastStatus == 0 {
				return fmt.Errorf("service %s not ready after %v: %w", url, timeout, lastErr)
			}
			return fmt.Errorf("service %s not ready after %v: got status %d, expected %d",
				url, timeout, lastStatus, expectedStatus)
		case <-ticker.C:
		}
	}
}

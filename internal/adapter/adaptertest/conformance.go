// Package adaptertest provides vendor-agnostic conformance testing for radio adapters.
//
// Every adapter must report its link and enabled state, accept reconnect
// commands without blocking on the link, honour context cancellation and
// normalize vendor failures to BUSY, UNAVAILABLE, INVALID_RANGE or INTERNAL.
package adaptertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/radio-control/radiowake/internal/adapter"
)

// Capabilities describes what the suite may expect from an adapter.
type Capabilities struct {
	// ReconnectBudget bounds how long Reconnect may take to accept the command.
	ReconnectBudget time.Duration
	// Faults are adapters set up to fail, with the normalized error they
	// must return from Reconnect.
	Faults []FaultCase
}

// FaultCase is one failure mapping check.
type FaultCase struct {
	Name       string
	NewAdapter func() adapter.RadioAdapter
	Want       error
}

// ConformanceResult represents the result of a conformance test.
type ConformanceResult struct {
	TestName string
	Passed   bool
	Error    string
	Duration time.Duration
	Details  map[string]any
}

// ConformanceReport represents the complete conformance test report.
type ConformanceReport struct {
	AdapterName   string
	TotalTests    int
	PassedTests   int
	FailedTests   int
	Results       []ConformanceResult
	OverallPassed bool
	Duration      time.Duration
}

// RunConformance runs the complete conformance test suite for an adapter.
func RunConformance(t *testing.T, name string, newAdapter func() adapter.RadioAdapter, caps Capabilities) {
	t.Helper()
	startTime := time.Now()

	if caps.ReconnectBudget <= 0 {
		caps.ReconnectBudget = 50 * time.Millisecond
	}

	report := &ConformanceReport{
		AdapterName:   name,
		OverallPassed: true,
	}

	runLinkStateTests(newAdapter, report)
	runEnabledTests(newAdapter, report)
	runReconnectTests(newAdapter, caps, report)
	runCancellationTests(newAdapter, report)
	runFailureMappingTests(caps, report)

	report.Duration = time.Since(startTime)
	printConformanceReport(t, report)

	if !report.OverallPassed {
		t.Fatalf("Adapter conformance test failed: %d/%d tests passed", report.PassedTests, report.TotalTests)
	}
}

func runLinkStateTests(newAdapter func() adapter.RadioAdapter, report *ConformanceReport) {
	a := newAdapter()
	result := ConformanceResult{TestName: "LinkState_Basic", Details: make(map[string]any)}
	start := time.Now()

	link, err := a.LinkState(context.Background())
	result.Duration = time.Since(start)

	switch {
	case err != nil:
		result.Error = fmt.Sprintf("LinkState failed: %v", err)
	case link != adapter.LinkConnected && link != adapter.LinkConnecting && link != adapter.LinkDisconnected:
		result.Error = fmt.Sprintf("LinkState returned %q, want connected, connecting or disconnected", link)
	default:
		result.Passed = true
		result.Details["link"] = string(link)
	}
	report.addResult(result)
}

func runEnabledTests(newAdapter func() adapter.RadioAdapter, report *ConformanceReport) {
	a := newAdapter()
	result := ConformanceResult{TestName: "Enabled_Basic", Details: make(map[string]any)}
	start := time.Now()

	on, err := a.Enabled(context.Background())
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = fmt.Sprintf("Enabled failed: %v", err)
	} else {
		result.Passed = true
		result.Details["enabled"] = on
	}
	report.addResult(result)
}

func runReconnectTests(newAdapter func() adapter.RadioAdapter, caps Capabilities, report *ConformanceReport) {
	a := newAdapter()
	ctx := context.Background()

	result := ConformanceResult{TestName: "Reconnect_AcceptsWithoutWaiting", Details: make(map[string]any)}
	start := time.Now()
	err := a.Reconnect(ctx)
	result.Duration = time.Since(start)

	switch {
	case err != nil:
		result.Error = fmt.Sprintf("Reconnect failed: %v", err)
	case result.Duration > caps.ReconnectBudget:
		result.Error = fmt.Sprintf("Reconnect took %v, budget %v (it must not wait for the link)", result.Duration, caps.ReconnectBudget)
	default:
		result.Passed = true
		result.Details["duration"] = result.Duration.String()
	}
	report.addResult(result)

	// A second command while the first is in flight must also be accepted.
	result = ConformanceResult{TestName: "Reconnect_Repeated", Details: make(map[string]any)}
	start = time.Now()
	err = a.Reconnect(ctx)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Sprintf("Second Reconnect failed: %v", err)
	} else {
		result.Passed = true
	}
	report.addResult(result)
}

func runCancellationTests(newAdapter func() adapter.RadioAdapter, report *ConformanceReport) {
	a := newAdapter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checks := []struct {
		name string
		call func() error
	}{
		{"LinkState", func() error { _, err := a.LinkState(ctx); return err }},
		{"Enabled", func() error { _, err := a.Enabled(ctx); return err }},
		{"Reconnect", func() error { return a.Reconnect(ctx) }},
	}
	for _, c := range checks {
		result := ConformanceResult{TestName: "Cancellation_" + c.name, Details: make(map[string]any)}
		start := time.Now()
		err := c.call()
		result.Duration = time.Since(start)

		if err == nil {
			result.Error = c.name + " with cancelled context should have failed"
		} else {
			result.Passed = true
			result.Details["error"] = err.Error()
		}
		report.addResult(result)
	}
}

func runFailureMappingTests(caps Capabilities, report *ConformanceReport) {
	for _, fc := range caps.Faults {
		a := fc.NewAdapter()
		result := ConformanceResult{TestName: "FailureMapping_" + fc.Name, Details: make(map[string]any)}
		start := time.Now()

		err := a.Reconnect(context.Background())
		result.Duration = time.Since(start)

		switch {
		case err == nil:
			result.Error = "Reconnect should have failed but succeeded"
		case !errors.Is(err, fc.Want):
			result.Error = fmt.Sprintf("Reconnect should return %v, got: %v", fc.Want, err)
		default:
			result.Passed = true
			result.Details["expectedError"] = fc.Want.Error()
			result.Details["actualError"] = err.Error()
		}
		report.addResult(result)
	}
}

func (r *ConformanceReport) addResult(result ConformanceResult) {
	r.TotalTests++
	if result.Passed {
		r.PassedTests++
	} else {
		r.FailedTests++
		r.OverallPassed = false
	}
	r.Results = append(r.Results, result)
}

func printConformanceReport(t *testing.T, report *ConformanceReport) {
	t.Helper()
	t.Logf("%s", strings.Repeat("=", 60))
	t.Logf("ADAPTER CONFORMANCE REPORT: %s", report.AdapterName)
	t.Logf("%s", strings.Repeat("=", 60))
	for _, r := range report.Results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		if r.Error != "" {
			t.Logf("%-4s %-40s %8v  %s", status, r.TestName, r.Duration.Round(time.Microsecond), r.Error)
		} else {
			t.Logf("%-4s %-40s %8v", status, r.TestName, r.Duration.Round(time.Microsecond))
		}
	}
	t.Logf("%d/%d passed in %v", report.PassedTests, report.TotalTests, report.Duration.Round(time.Millisecond))
}

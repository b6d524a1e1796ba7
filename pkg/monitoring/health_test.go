package monitoring

import (
	"testing"
)

func TestCheckHealthAggregation(t *testing.T) {
	hc := NewHealthChecker("bursar", "v1")
	hc.AddCheck("ok", func() CheckResult {
		return CheckResult{Status: StatusHealthy}
	})

	status := hc.CheckHealth()
	if status.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s", status.Status)
	}

	hc.AddCheck("degraded", func() CheckResult {
		return CheckResult{Status: StatusDegraded}
	})
	if got := hc.CheckHealth().Status; got != StatusDegraded {
		t.Fatalf("expected degraded, got %s", got)
	}

	hc.AddCheck("down", func() CheckResult {
		return CheckResult{Status: StatusUnhealthy}
	})
	if got := hc.CheckHealth().Status; got != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", got)
	}
}

func TestConfigurationHealthCheck(t *testing.T) {
	check := ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":   "postgres://localhost/billing",
		"MOLLIE_API_KEY": "",
	})
	result := check()
	if result.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy on missing config, got %s", result.Status)
	}

	check = ConfigurationHealthCheck(map[string]string{"DATABASE_URL": "set"})
	if result := check(); result.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s", result.Status)
	}
}

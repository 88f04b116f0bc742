package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	g, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d := g.Get()
	if d.ListenAddr == "" || d.HTTPAddr == "" {
		t.Fatalf("expected non-empty defaults, got %+v", d)
	}
	if g.NominalSessionDuration() != 14*time.Second {
		t.Fatalf("nominal session duration = %v, want 14s", g.NominalSessionDuration())
	}
}

func TestEnvOverlay(t *testing.T) {
	t.Setenv("EVCC_LISTEN_ADDR", ":7000")
	t.Setenv("EVCC_NOMINAL_SESSION_DURATION", "5s")

	g, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if g.Get().ListenAddr != ":7000" {
		t.Fatalf("ListenAddr = %q, want :7000", g.Get().ListenAddr)
	}
	if g.NominalSessionDuration() != 5*time.Second {
		t.Fatalf("nominal session duration = %v, want 5s", g.NominalSessionDuration())
	}
}

func TestSet(t *testing.T) {
	g, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d := g.Get()
	d.HTTPAddr = ":9999"
	g.Set(d)
	if g.Get().HTTPAddr != ":9999" {
		t.Fatalf("Set did not take effect")
	}
}

func TestMalformedDurationFallsBackToDefault(t *testing.T) {
	g, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d := g.Get()
	d.DashboardInterval = "not-a-duration"
	g.Set(d)
	if g.DashboardIntervalDuration() != 2*time.Second {
		t.Fatalf("expected fallback 2s, got %v", g.DashboardIntervalDuration())
	}
}

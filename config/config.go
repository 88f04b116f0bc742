// Package config manages the Central Coordinator's global configuration.
// Defaults are loaded from an embedded YAML file and overlaid with
// environment variables; there is no config-store row to round-trip through
// since, unlike the teacher, this service persists domain data (charging
// points, drivers, history) rather than its own settings.
package config

import (
	_ "embed"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config.default.yaml
var defaultYAML []byte

// Data holds the serialisable global configuration.
type Data struct {
	ListenAddr           string `yaml:"listen_addr"`
	HTTPAddr             string `yaml:"http_addr"`
	DataDir              string `yaml:"data_dir"`
	NominalSessionDur    string `yaml:"nominal_session_duration"`
	DashboardInterval    string `yaml:"dashboard_interval"`
	RegistryPollInterval string `yaml:"registry_poll_interval"`
	RegistryURL          string `yaml:"registry_url"`
	JWTSecret            string `yaml:"jwt_secret"`
	AdminUsername        string `yaml:"admin_username"`
	AdminPassword        string `yaml:"admin_password"`
}

// Global is a thread-safe, env-overlaid wrapper around Data.
type Global struct {
	mu   sync.RWMutex
	data Data
}

// Load parses the embedded defaults, then overlays any matching
// environment variables (EVCC_LISTEN_ADDR, EVCC_HTTP_ADDR, ...).
func Load() (*Global, error) {
	d, err := defaults()
	if err != nil {
		return nil, err
	}
	overlayEnv(&d)
	return &Global{data: d}, nil
}

func defaults() (Data, error) {
	var d Data
	if err := yaml.Unmarshal(defaultYAML, &d); err != nil {
		return Data{}, err
	}
	return d, nil
}

func overlayEnv(d *Data) {
	str := func(env string, dst *string) {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*dst = v
		}
	}
	str("EVCC_LISTEN_ADDR", &d.ListenAddr)
	str("EVCC_HTTP_ADDR", &d.HTTPAddr)
	str("EVCC_DATA_DIR", &d.DataDir)
	str("EVCC_NOMINAL_SESSION_DURATION", &d.NominalSessionDur)
	str("EVCC_DASHBOARD_INTERVAL", &d.DashboardInterval)
	str("EVCC_REGISTRY_POLL_INTERVAL", &d.RegistryPollInterval)
	str("EVCC_REGISTRY_URL", &d.RegistryURL)
	str("JWT_SECRET", &d.JWTSecret)
	str("ADMIN_USERNAME", &d.AdminUsername)
	str("ADMIN_PASSWORD", &d.AdminPassword)
}

// Get returns a thread-safe copy of the current configuration.
func (g *Global) Get() Data {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.data
}

// Set replaces the in-memory configuration. There is nothing to persist:
// config lives for the life of the process, per spec.md's non-goal on
// hot-reloadable config.
func (g *Global) Set(d Data) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.data = d
}

// NominalSessionDuration parses NominalSessionDur, falling back to 14s (the
// value scenario S1 in the spec is built around) if it fails to parse.
func (g *Global) NominalSessionDuration() time.Duration {
	d := g.Get()
	dur, err := time.ParseDuration(d.NominalSessionDur)
	if err != nil {
		return 14 * time.Second
	}
	return dur
}

// DashboardIntervalDuration parses DashboardInterval, falling back to 2s.
func (g *Global) DashboardIntervalDuration() time.Duration {
	d := g.Get()
	dur, err := time.ParseDuration(d.DashboardInterval)
	if err != nil {
		return 2 * time.Second
	}
	return dur
}

// RegistryPollIntervalDuration parses RegistryPollInterval, falling back to 10s.
func (g *Global) RegistryPollIntervalDuration() time.Duration {
	d := g.Get()
	dur, err := time.ParseDuration(d.RegistryPollInterval)
	if err != nil {
		return 10 * time.Second
	}
	return dur
}

// Package dashboard prints a periodic fleet snapshot to stdout and fans the
// same snapshot out over the events bus for the httpapi websocket feed.
// Modeled on the teacher's periodic-ticker pattern in backend/main.go (the
// hourly expired-session sweep), generalized from a silent maintenance job
// to a visible supervisory printer.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/evcharge/central/events"
	"github.com/evcharge/central/session"
)

// Printer snapshots the fleet on a fixed interval.
type Printer struct {
	mgr      *session.Manager
	bus      *events.Bus
	interval time.Duration
}

func New(mgr *session.Manager, bus *events.Bus, interval time.Duration) *Printer {
	return &Printer{mgr: mgr, bus: bus, interval: interval}
}

// Run prints and broadcasts a snapshot immediately, then on every tick,
// until ctx is canceled.
func (p *Printer) Run(ctx context.Context) {
	p.tick()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Printer) tick() {
	status := p.mgr.Status()
	cps := p.mgr.ListCPs()

	fmt.Printf("[dashboard] cps=%d active=%d charging=%d out_of_order=%d drivers=%d charging_drivers=%d weather_alerts=%d\n",
		status.TotalCPs, status.ActiveCPs, status.ChargingCPs, status.OutOfOrderCPs,
		status.TotalDrivers, status.ChargingDriver, status.WeatherAlerts)
	for _, cp := range cps {
		fmt.Printf("[dashboard]   %s state=%s driver=%s energy=%.2f/%.2f\n",
			cp.ID, cp.State, cp.CurrentDriver, cp.EnergyDelivered, cp.EnergyRequested)
	}

	p.bus.Publish(events.Event{
		Type: "dashboard_snapshot",
		Data: map[string]any{
			"status": status,
			"cps":    cps,
		},
	})
}

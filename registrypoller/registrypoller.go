// Package registrypoller reconciles the Central Coordinator's local CP table
// against an external Registry HTTP service: the source of truth for which
// CPs exist, not for their charging state. Modeled on the teacher's
// converter.Client.GetFiles — dial, send, read-with-deadline, degrade to a
// no-op on error rather than fail the loop — translated from that client's
// websocket transport to the plain HTTP GET the Registry actually exposes.
package registrypoller

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/evcharge/central/session"
)

const requestTimeout = 5 * time.Second

// listResponse mirrors the Registry's {registry}/list response: a wrapper
// object carrying the charging-point rows, not a bare array. Field names
// and nesting follow the one piece of ground truth for this contract,
// the CP manager's own registry client (original_source/charging_point,
// list_cps): `data.get("charging_points", [])`, rows keyed "cp_id".
type listResponse struct {
	ChargingPoints []entry `json:"charging_points"`
}

// entry mirrors one row of listResponse.charging_points. The Registry
// tracks identity and location only — price is never part of this
// contract, since a CP reports its own price directly to the Central on
// REGISTER; reconciliation never needs to invent one.
type entry struct {
	CPID      string  `json:"cp_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// RegisteredAt is read but not currently used: the Central tracks its
	// own registration bookkeeping once a CP connects directly.
	RegisteredAt string `json:"registered_at"`
}

// Poller periodically reconciles the Session Manager's CP table against the
// external Registry.
type Poller struct {
	url      string
	interval time.Duration
	mgr      *session.Manager
	client   *http.Client
}

// New returns a Poller. If url is empty, Run becomes a permanent no-op —
// the Registry is an optional collaborator, never a startup dependency.
func New(url string, interval time.Duration, mgr *session.Manager) *Poller {
	return &Poller{
		url:      url,
		interval: interval,
		mgr:      mgr,
		client:   &http.Client{Timeout: requestTimeout},
	}
}

// Run polls until ctx is canceled.
func (p *Poller) Run(ctx context.Context) {
	if p.url == "" {
		log.Printf("registrypoller: no registry url configured, reconciliation disabled")
		<-ctx.Done()
		return
	}

	p.pollOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	entries, err := p.fetchList(ctx)
	if err != nil {
		// Registry unreachable — degrade gracefully, try again next tick.
		log.Printf("registrypoller: list %s: %v", p.url, err)
		return
	}

	remote := make(map[string]entry, len(entries))
	for _, e := range entries {
		remote[e.CPID] = e
		// Price is unknown to the Registry; 0 here is a placeholder that the
		// CP's own REGISTER to the Central overwrites once it connects.
		p.mgr.EnsureCPKnown(ctx, e.CPID, e.Latitude, e.Longitude, 0)
	}

	for _, id := range p.mgr.KnownCPIDs() {
		if _, ok := remote[id]; !ok {
			p.mgr.RemoveCP(ctx, id)
		}
	}
}

func (p *Poller) fetchList(ctx context.Context) ([]entry, error) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.url+"/list", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{resp.StatusCode}
	}

	var wrapper listResponse
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return nil, err
	}
	return wrapper.ChargingPoints, nil
}

type statusError struct{ code int }

func (e *statusError) Error() string {
	return http.StatusText(e.code)
}

package registrypoller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evcharge/central/events"
	"github.com/evcharge/central/registry"
	"github.com/evcharge/central/session"
	"github.com/evcharge/central/store"
)

type nopStore struct{}

func (nopStore) LoadCPs(ctx context.Context) ([]*store.ChargingPoint, error) { return nil, nil }
func (nopStore) SaveCP(ctx context.Context, cp *store.ChargingPoint) error   { return nil }
func (nopStore) DeleteCP(ctx context.Context, id string) error              { return nil }
func (nopStore) LoadDrivers(ctx context.Context) ([]*store.Driver, error)   { return nil, nil }
func (nopStore) SaveDriver(ctx context.Context, d *store.Driver) error      { return nil }
func (nopStore) AppendHistory(ctx context.Context, r *store.HistoryRecord) error {
	return nil
}
func (nopStore) RecentHistory(ctx context.Context, limit int) ([]*store.HistoryRecord, error) {
	return nil, nil
}
func (nopStore) Close() error { return nil }

func newTestManager(t *testing.T) *session.Manager {
	t.Helper()
	mgr, err := session.New(context.Background(), nopStore{}, registry.New(), events.New(), 14*time.Second)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	return mgr
}

func TestPollOnceAddsAndRemovesCPs(t *testing.T) {
	mgr := newTestManager(t)
	mgr.EnsureCPKnown(context.Background(), "CP-STALE", 0, 0, 0)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/list" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(listResponse{
			ChargingPoints: []entry{
				{CPID: "CP-001", Latitude: 1, Longitude: 2, RegisteredAt: "2026-07-30T10:00:00"},
			},
		})
	}))
	defer srv.Close()

	p := New(srv.URL, time.Second, mgr)
	p.pollOnce(context.Background())

	ids := map[string]bool{}
	for _, id := range mgr.KnownCPIDs() {
		ids[id] = true
	}
	if !ids["CP-001"] {
		t.Error("expected CP-001 to be added from the registry")
	}
	if ids["CP-STALE"] {
		t.Error("expected CP-STALE to be removed since it is absent from the registry")
	}
}

// TestPollOnceParsesRealRegistryShape decodes the literal response shape
// the Registry's own clients expect (original_source/charging_point's
// list_cps: a "charging_points" wrapper, rows keyed "cp_id"), rather than
// a round-trip of this package's own types, so a schema mismatch against
// the real Registry would actually fail this test.
func TestPollOnceParsesRealRegistryShape(t *testing.T) {
	mgr := newTestManager(t)

	const body = `{
		"charging_points": [
			{"cp_id": "CP-007", "latitude": 40.5, "longitude": -3.1, "registered_at": "2026-07-30T08:15:00"}
		]
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	p := New(srv.URL, time.Second, mgr)
	p.pollOnce(context.Background())

	ids := mgr.KnownCPIDs()
	if len(ids) != 1 || ids[0] != "CP-007" {
		t.Fatalf("expected CP-007 parsed from the real registry shape, got %v", ids)
	}
}

func TestPollOnceDegradesOnUnreachableRegistry(t *testing.T) {
	mgr := newTestManager(t)
	mgr.EnsureCPKnown(context.Background(), "CP-001", 0, 0, 0)

	p := New("http://127.0.0.1:1", time.Second, mgr)
	p.pollOnce(context.Background())

	ids := mgr.KnownCPIDs()
	if len(ids) != 1 || ids[0] != "CP-001" {
		t.Errorf("expected local table untouched on unreachable registry, got %v", ids)
	}
}

func TestRunWithoutURLIsNoopUntilCanceled(t *testing.T) {
	mgr := newTestManager(t)
	p := New("", 10*time.Millisecond, mgr)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

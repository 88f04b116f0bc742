package console

import (
	"bytes"
	"context"
	"strings"
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

func runLines(t *testing.T, mgr *session.Manager, input string) string {
	t.Helper()
	var out bytes.Buffer
	c := New(mgr, strings.NewReader(input), &out)
	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("console did not exit")
	}
	return out.String()
}

func TestHelpListsCommands(t *testing.T) {
	mgr := newTestManager(t)
	out := runLines(t, mgr, "help\nquit\n")
	if !strings.Contains(out, "stop <cp_id>") {
		t.Errorf("expected help output to mention stop command, got %q", out)
	}
}

func TestListShowsRegisteredCPs(t *testing.T) {
	mgr := newTestManager(t)
	mgr.EnsureCPKnown(context.Background(), "CP-001", 1, 2, 0.5)
	out := runLines(t, mgr, "list\nquit\n")
	if !strings.Contains(out, "CP-001") {
		t.Errorf("expected CP-001 in list output, got %q", out)
	}
}

func TestStopUnknownCPReportsError(t *testing.T) {
	mgr := newTestManager(t)
	out := runLines(t, mgr, "stop CP-404\nquit\n")
	if !strings.Contains(out, "stop CP-404") {
		t.Errorf("expected stop error message, got %q", out)
	}
}

func TestQuitStopsTheLoop(t *testing.T) {
	mgr := newTestManager(t)
	out := runLines(t, mgr, "quit\nlist\n")
	if strings.Contains(out, "no charging points") {
		t.Error("expected loop to stop at quit, before reaching the list command")
	}
}

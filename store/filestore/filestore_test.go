package filestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/evcharge/central/store"
)

func TestSaveAndReloadCPs(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	cp := &store.ChargingPoint{
		ID:        "CP-001",
		Latitude:  40.5,
		Longitude: -3.1,
		Price:     0.30,
		State:     store.StateActivated,
	}
	if err := s.SaveCP(ctx, cp); err != nil {
		t.Fatalf("SaveCP: %v", err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	cps, err := s2.LoadCPs(ctx)
	if err != nil {
		t.Fatalf("LoadCPs: %v", err)
	}
	if len(cps) != 1 {
		t.Fatalf("got %d cps, want 1", len(cps))
	}
	// Reload must mark every CP Disconnected regardless of what was saved.
	if cps[0].State != store.StateDisconnected {
		t.Fatalf("reloaded state = %s, want Disconnected", cps[0].State)
	}
	if cps[0].ID != "CP-001" || cps[0].Price != 0.30 {
		t.Fatalf("reloaded cp mismatch: %+v", cps[0])
	}
}

func TestDeleteCP(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := s.SaveCP(ctx, &store.ChargingPoint{ID: "CP-A"}); err != nil {
		t.Fatalf("SaveCP: %v", err)
	}
	if err := s.SaveCP(ctx, &store.ChargingPoint{ID: "CP-B"}); err != nil {
		t.Fatalf("SaveCP: %v", err)
	}
	if err := s.DeleteCP(ctx, "CP-A"); err != nil {
		t.Fatalf("DeleteCP: %v", err)
	}

	cps, err := s.LoadCPs(ctx)
	if err != nil {
		t.Fatalf("LoadCPs: %v", err)
	}
	if len(cps) != 1 || cps[0].ID != "CP-B" {
		t.Fatalf("after delete, got %+v", cps)
	}
}

func TestAppendAndRecentHistory(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i := 0; i < 5; i++ {
		rec := &store.HistoryRecord{CPID: "CP-001", DriverID: "D1", KWhDelivered: float64(i)}
		if err := s.AppendHistory(ctx, rec); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	recent, err := s.RecentHistory(ctx, 2)
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d records, want 2", len(recent))
	}
	if recent[0].KWhDelivered != 3 || recent[1].KWhDelivered != 4 {
		t.Fatalf("recent records out of order: %+v", recent)
	}

	all, err := s.RecentHistory(ctx, 0)
	if err != nil {
		t.Fatalf("RecentHistory(0): %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("RecentHistory(0) got %d, want all 5", len(all))
	}
}

func TestSaveDriverPersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	d := &store.Driver{ID: "D1", Status: store.DriverIdle, TotalCharges: 3}
	if err := s.SaveDriver(ctx, d); err != nil {
		t.Fatalf("SaveDriver: %v", err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	drivers, err := s2.LoadDrivers(ctx)
	if err != nil {
		t.Fatalf("LoadDrivers: %v", err)
	}
	if len(drivers) != 1 || drivers[0].TotalCharges != 3 {
		t.Fatalf("got %+v", drivers)
	}
}

func TestOpenCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	if _, err := Open(dir); err != nil {
		t.Fatalf("Open on missing nested dir: %v", err)
	}
}

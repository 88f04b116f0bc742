// Package filestore implements store.Store over three local append-structured
// files: one JSON-object-per-line for charging points (rewritten whole on any
// change), one for drivers (same), and one append-only for completed session
// history. This mirrors the teacher's single-writer-serializes-everything
// design (there, one *sql.DB pinned to SetMaxOpenConns(1); here, one mutex
// guarding all file I/O) without pulling in an embedded SQL engine — spec.md's
// persistence model is explicitly flat JSON-line files, not a database.
package filestore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/evcharge/central/store"
)

// File names and the one-JSON-object-per-line layout are normative per
// spec.md §6 — reproduced here exactly, including the literal ".txt"
// extension (the content is JSON lines; the extension is not).
const (
	cpFile      = "charging_points.txt"
	driverFile  = "drivers.txt"
	historyFile = "charging_history.txt"
)

// Store is the file-backed store.Store implementation.
type Store struct {
	mu   sync.Mutex
	dir  string
	cps  map[string]*store.ChargingPoint
	drvs map[string]*store.Driver
}

// Open loads (or creates) the three table files under dir. CPs load marked
// Disconnected regardless of the state they were persisted in — they must
// re-register to become Activated, per spec.md §4.2.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: mkdir %s: %w", dir, err)
	}

	s := &Store{
		dir:  dir,
		cps:  make(map[string]*store.ChargingPoint),
		drvs: make(map[string]*store.Driver),
	}

	if err := s.loadCPs(); err != nil {
		return nil, err
	}
	if err := s.loadDrivers(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

func (s *Store) loadCPs() error {
	lines, err := readLines(s.path(cpFile))
	if err != nil {
		return err
	}
	for _, line := range lines {
		var cp store.ChargingPoint
		if err := json.Unmarshal(line, &cp); err != nil {
			log.Printf("filestore: skipping malformed cp record: %v", err)
			continue
		}
		cp.State = store.StateDisconnected
		cp.CurrentDriver = ""
		cp.SessionStart = cp.SessionStart.UTC()
		s.cps[cp.ID] = &cp
	}
	return nil
}

func (s *Store) loadDrivers() error {
	lines, err := readLines(s.path(driverFile))
	if err != nil {
		return err
	}
	for _, line := range lines {
		var d store.Driver
		if err := json.Unmarshal(line, &d); err != nil {
			log.Printf("filestore: skipping malformed driver record: %v", err)
			continue
		}
		s.drvs[d.ID] = &d
	}
	return nil
}

func readLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: open %s: %w", path, err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		lines = append(lines, cp)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("filestore: scan %s: %w", path, err)
	}
	return lines, nil
}

// rewriteFile writes lines, one per line, to a temp file and renames it over
// path. Errors are returned; callers log them, and the session manager never
// aborts its in-memory transition on one (spec.md §4.2).
func rewriteFile(path string, lines [][]byte) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("filestore: create %s: %w", tmp, err)
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.Write(line); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("filestore: write %s: %w", tmp, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("filestore: write %s: %w", tmp, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("filestore: flush %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("filestore: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("filestore: rename %s: %w", path, err)
	}
	return nil
}

// LoadCPs returns a snapshot of all loaded charging points (Disconnected).
func (s *Store) LoadCPs(ctx context.Context) ([]*store.ChargingPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.ChargingPoint, 0, len(s.cps))
	for _, cp := range s.cps {
		cpCopy := *cp
		out = append(out, &cpCopy)
	}
	return out, nil
}

// SaveCP upserts cp in memory and rewrites the whole CP file.
func (s *Store) SaveCP(ctx context.Context, cp *store.ChargingPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cpCopy := *cp
	s.cps[cp.ID] = &cpCopy

	if err := s.flushCPsLocked(); err != nil {
		log.Printf("filestore: save cp %s: %v", cp.ID, err)
		return err
	}
	return nil
}

// DeleteCP removes cp from memory and rewrites the whole CP file. Used by
// the Registry reconciliation loop when a CP disappears from the external
// Registry.
func (s *Store) DeleteCP(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cps, id)
	if err := s.flushCPsLocked(); err != nil {
		log.Printf("filestore: delete cp %s: %v", id, err)
		return err
	}
	return nil
}

func (s *Store) flushCPsLocked() error {
	lines := make([][]byte, 0, len(s.cps))
	for _, cp := range s.cps {
		b, err := json.Marshal(cp)
		if err != nil {
			return fmt.Errorf("filestore: marshal cp %s: %w", cp.ID, err)
		}
		lines = append(lines, b)
	}
	return rewriteFile(s.path(cpFile), lines)
}

// LoadDrivers returns a snapshot of all loaded drivers.
func (s *Store) LoadDrivers(ctx context.Context) ([]*store.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.Driver, 0, len(s.drvs))
	for _, d := range s.drvs {
		dCopy := *d
		out = append(out, &dCopy)
	}
	return out, nil
}

// SaveDriver upserts d in memory and rewrites the whole driver file.
func (s *Store) SaveDriver(ctx context.Context, d *store.Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dCopy := *d
	s.drvs[d.ID] = &dCopy

	lines := make([][]byte, 0, len(s.drvs))
	for _, dr := range s.drvs {
		b, err := json.Marshal(dr)
		if err != nil {
			log.Printf("filestore: marshal driver %s: %v", dr.ID, err)
			return err
		}
		lines = append(lines, b)
	}
	if err := rewriteFile(s.path(driverFile), lines); err != nil {
		log.Printf("filestore: save driver %s: %v", d.ID, err)
		return err
	}
	return nil
}

// AppendHistory appends one JSON line to the history file. Never rewrites
// the rest of the file.
func (s *Store) AppendHistory(ctx context.Context, rec *store.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("filestore: marshal history: %w", err)
	}

	f, err := os.OpenFile(s.path(historyFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("filestore: append history: %v", err)
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(b, '\n')); err != nil {
		log.Printf("filestore: append history: %v", err)
		return err
	}
	return nil
}

// RecentHistory returns up to the last limit history records, newest last
// truncated from the front (matching the "last N" semantics of spec.md §4.6).
func (s *Store) RecentHistory(ctx context.Context, limit int) ([]*store.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := readLines(s.path(historyFile))
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > len(lines) {
		limit = len(lines)
	}
	start := len(lines) - limit
	out := make([]*store.HistoryRecord, 0, limit)
	for _, line := range lines[start:] {
		var rec store.HistoryRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			log.Printf("filestore: skipping malformed history record: %v", err)
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

// Close is a no-op: every write already flushes and closes its file within
// its own call. No write is fsynced.
func (s *Store) Close() error { return nil }

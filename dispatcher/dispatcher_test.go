package dispatcher

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/evcharge/central/events"
	"github.com/evcharge/central/protocol"
	"github.com/evcharge/central/registry"
	"github.com/evcharge/central/session"
	"github.com/evcharge/central/store"
)

type nopStore struct{}

func (nopStore) LoadCPs(ctx context.Context) ([]*store.ChargingPoint, error)     { return nil, nil }
func (nopStore) SaveCP(ctx context.Context, cp *store.ChargingPoint) error       { return nil }
func (nopStore) DeleteCP(ctx context.Context, id string) error                  { return nil }
func (nopStore) LoadDrivers(ctx context.Context) ([]*store.Driver, error)       { return nil, nil }
func (nopStore) SaveDriver(ctx context.Context, d *store.Driver) error          { return nil }
func (nopStore) AppendHistory(ctx context.Context, rec *store.HistoryRecord) error { return nil }
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

func TestWorkerRegistersCPAndAcks(t *testing.T) {
	mgr := newTestManager(t)
	client, server := net.Pipe()
	defer client.Close()

	w := &worker{conn: server, mgr: mgr}
	go w.run()

	frame := protocol.Encode([]string{protocol.MsgRegister, protocol.RegisterCP, "CP-001", "40.5", "-3.1", "0.30"})
	if _, err := client.Write(frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	reply, err := readFrame(client)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if reply[0] != protocol.MsgAcknowledge || reply[1] != "CP-001" || reply[2] != "OK" {
		t.Fatalf("got %v", reply)
	}
}

func TestWorkerHandlesTwoFramesInOneRead(t *testing.T) {
	mgr := newTestManager(t)
	client, server := net.Pipe()
	defer client.Close()

	w := &worker{conn: server, mgr: mgr}
	go w.run()

	f1 := protocol.Encode([]string{protocol.MsgRegister, protocol.RegisterDriver, "D1"})
	f2 := protocol.Encode([]string{protocol.MsgQueryAvailableCPs, "D1"})
	stream := append(append([]byte{}, f1...), f2...)
	if _, err := client.Write(stream); err != nil {
		t.Fatalf("write: %v", err)
	}

	ack, err := readFrame(client)
	if err != nil {
		t.Fatalf("readFrame ack: %v", err)
	}
	if ack[0] != protocol.MsgAcknowledge {
		t.Fatalf("got %v", ack)
	}

	avail, err := readFrame(client)
	if err != nil {
		t.Fatalf("readFrame available: %v", err)
	}
	if avail[0] != protocol.MsgAvailableCPs {
		t.Fatalf("got %v", avail)
	}
}

func TestTeardownUnregistersOnClose(t *testing.T) {
	mgr := newTestManager(t)
	client, server := net.Pipe()

	w := &worker{conn: server, mgr: mgr}
	done := make(chan struct{})
	go func() {
		w.run()
		close(done)
	}()

	frame := protocol.Encode([]string{protocol.MsgRegister, protocol.RegisterCP, "CP-001", "0", "0", "0.1"})
	client.Write(frame)
	readFrame(client)

	client.Close()
	<-done

	if _, ok := mgr.Registry().CP("CP-001"); ok {
		t.Fatalf("expected CP-001 to be unregistered after connection close")
	}
}

func TestWorkerDropsConnectionOnOversizedFrame(t *testing.T) {
	mgr := newTestManager(t)
	client, server := net.Pipe()
	defer client.Close()

	w := &worker{conn: server, mgr: mgr}
	done := make(chan struct{})
	go func() {
		w.run()
		close(done)
	}()

	// STX with no ETX, exceeding protocol.MaxFrameSize: a peer stuck
	// mid-frame forever must not grow the buffer without bound.
	garbage := make([]byte, protocol.MaxFrameSize+1)
	for i := range garbage {
		garbage[i] = 'x'
	}
	garbage[0] = 0x02 // STX

	writeErr := make(chan error, 1)
	go func() {
		_, err := client.Write(garbage)
		writeErr <- err
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected worker.run to drop the connection on an oversized frame")
	}
	<-writeErr
}

func readFrame(conn net.Conn) ([]string, error) {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var buf []byte
	tmp := make([]byte, 256)
	for {
		n, err := conn.Read(tmp)
		if err != nil {
			return nil, err
		}
		buf = append(buf, tmp[:n]...)
		frames, _ := protocol.DecodeAll(buf)
		if len(frames) > 0 {
			return frames[0], nil
		}
	}
}

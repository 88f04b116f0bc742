// Package registry tracks the live TCP connections for every connected
// agent (charging points, their monitors, and drivers) and serializes writes
// to each one. It never touches charging/session state — session.Manager
// decides what to send while holding its own lock (it may look up a
// connection here meanwhile), then sends through the registry only after
// releasing it, mirroring the teacher's rule that the state lock and a
// connection's write lock are never held at once.
package registry

import (
	"fmt"
	"net"
	"sync"
)

// Conn wraps one live connection and serializes writes to it. A CP's data
// connection and its monitor's connection are separate Conns even though
// they share a cp_id, since a monitor only watches and a CP both reports
// and receives commands.
type Conn struct {
	writeMu sync.Mutex
	net.Conn
}

// Send writes a pre-framed message, holding the per-connection write lock so
// two goroutines (e.g. a heartbeat ack and a stop command) never interleave
// bytes on the same socket.
func (c *Conn) Send(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.Write(frame)
	return err
}

// Registry holds three independent id->connection namespaces: charging
// points, the monitors watching those charging points, and drivers. All
// three share one RWMutex since lookups vastly outnumber (re)registrations.
type Registry struct {
	mu       sync.RWMutex
	cps      map[string]*Conn
	monitors map[string]*Conn
	drivers  map[string]*Conn
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		cps:      make(map[string]*Conn),
		monitors: make(map[string]*Conn),
		drivers:  make(map[string]*Conn),
	}
}

// RegisterCP associates id with conn, replacing (last-writer-wins) any prior
// CP connection for id. The caller is responsible for closing the previous
// connection if it wants one-socket-per-CP; the registry itself only tracks
// the mapping.
func (r *Registry) RegisterCP(id string, conn net.Conn) *Conn {
	c := &Conn{Conn: conn}
	r.mu.Lock()
	r.cps[id] = c
	r.mu.Unlock()
	return c
}

// RegisterMonitor associates id (the cp_id being watched) with conn.
func (r *Registry) RegisterMonitor(id string, conn net.Conn) *Conn {
	c := &Conn{Conn: conn}
	r.mu.Lock()
	r.monitors[id] = c
	r.mu.Unlock()
	return c
}

// RegisterDriver associates id with conn.
func (r *Registry) RegisterDriver(id string, conn net.Conn) *Conn {
	c := &Conn{Conn: conn}
	r.mu.Lock()
	r.drivers[id] = c
	r.mu.Unlock()
	return c
}

// CP returns the live connection for a CP, if any.
func (r *Registry) CP(id string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cps[id]
	return c, ok
}

// Monitor returns the live connection for a CP's monitor, if any.
func (r *Registry) Monitor(id string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.monitors[id]
	return c, ok
}

// Driver returns the live connection for a driver, if any.
func (r *Registry) Driver(id string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.drivers[id]
	return c, ok
}

// UnregisterCP removes id's entry only if it still points at conn. This
// guards against the ABA case where a worker goroutine for an old, already
// superseded connection runs its teardown after a newer connection for the
// same id has already registered — the stale teardown must not evict the
// live connection.
func (r *Registry) UnregisterCP(id string, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cps[id] == conn {
		delete(r.cps, id)
	}
}

// UnregisterMonitor is UnregisterCP's counterpart for the monitor namespace.
func (r *Registry) UnregisterMonitor(id string, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.monitors[id] == conn {
		delete(r.monitors, id)
	}
}

// UnregisterDriver is UnregisterCP's counterpart for the driver namespace.
func (r *Registry) UnregisterDriver(id string, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drivers[id] == conn {
		delete(r.drivers, id)
	}
}

// SendToCP looks up id and sends frame, returning an error if the CP has no
// live connection. Call this only after releasing any session-state lock.
func (r *Registry) SendToCP(id string, frame []byte) error {
	c, ok := r.CP(id)
	if !ok {
		return fmt.Errorf("registry: no live connection for cp %s", id)
	}
	return c.Send(frame)
}

// SendToMonitor is SendToCP's counterpart for the monitor namespace. A
// missing monitor is not an error — monitors are optional observers.
func (r *Registry) SendToMonitor(id string, frame []byte) error {
	c, ok := r.Monitor(id)
	if !ok {
		return nil
	}
	return c.Send(frame)
}

// SendToDriver is SendToCP's counterpart for the driver namespace.
func (r *Registry) SendToDriver(id string, frame []byte) error {
	c, ok := r.Driver(id)
	if !ok {
		return fmt.Errorf("registry: no live connection for driver %s", id)
	}
	return c.Send(frame)
}

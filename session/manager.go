// Package session implements the Central Coordinator's decision surface:
// the per-CP charging state machine, metering accumulation, authorization,
// and every termination path (normal completion, operator stop, fault,
// weather). This is the core of the coordinator, mirroring the weight the
// teacher's Manager carries in its own service.
//
// Every exported method follows one rule without exception: mutate state
// under mu, copy out whatever a reply needs, release mu, and only then touch
// a connection. The session mutex must never be held across a socket write.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/evcharge/central/events"
	"github.com/evcharge/central/protocol"
	"github.com/evcharge/central/registry"
	"github.com/evcharge/central/store"
)

// ErrCPNotFound is returned by operations that need an existing CP record
// (the weather hooks and OperatorStop/OperatorResume, which the HTTP surface
// maps to a 404).
var ErrCPNotFound = errors.New("session: cp not found")

// Manager owns the CP table, the driver table, and the weather-alert list.
// It holds a Registry to look up and write to live connections, a Store to
// persist rows, and an events.Bus to publish best-effort notifications.
type Manager struct {
	mu      sync.Mutex
	cps     map[string]*store.ChargingPoint
	drivers map[string]*store.Driver
	weather map[string]*store.WeatherAlert

	st              store.Store
	reg             *registry.Registry
	bus             *events.Bus
	nominalDuration time.Duration
}

// New constructs a Manager and loads existing CPs/drivers from st. CPs come
// back marked Disconnected by the store itself (store/filestore's contract).
func New(ctx context.Context, st store.Store, reg *registry.Registry, bus *events.Bus, nominalDuration time.Duration) (*Manager, error) {
	m := &Manager{
		cps:             make(map[string]*store.ChargingPoint),
		drivers:         make(map[string]*store.Driver),
		weather:         make(map[string]*store.WeatherAlert),
		st:              st,
		reg:             reg,
		bus:             bus,
		nominalDuration: nominalDuration,
	}

	cps, err := st.LoadCPs(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: load cps: %w", err)
	}
	for _, cp := range cps {
		m.cps[cp.ID] = cp
	}

	drivers, err := st.LoadDrivers(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: load drivers: %w", err)
	}
	for _, d := range drivers {
		m.drivers[d.ID] = d
	}

	return m, nil
}

// Registry exposes the underlying connection registry so the dispatcher's
// per-connection worker can perform the ABA-safe conditional unregister on
// teardown.
func (m *Manager) Registry() *registry.Registry { return m.reg }

const (
	kindCP = iota
	kindDriver
	kindMonitor
)

type outbound struct {
	kind  int
	id    string
	frame []byte
}

// flush dispatches every queued message. Must be called with mu released.
func (m *Manager) flush(msgs []outbound) {
	for _, o := range msgs {
		var err error
		var what string
		switch o.kind {
		case kindCP:
			err, what = m.reg.SendToCP(o.id, o.frame), "cp"
		case kindDriver:
			err, what = m.reg.SendToDriver(o.id, o.frame), "driver"
		case kindMonitor:
			err, what = m.reg.SendToMonitor(o.id, o.frame), "monitor"
		}
		if err != nil {
			log.Printf("session: send to %s %s failed: %v", what, o.id, err)
		}
	}
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// RegisterCP creates or re-activates a CP record and binds id to conn in the
// registry. Returns the registry handle so the caller's connection worker
// can use it for the tear-down-time conditional unregister.
func (m *Manager) RegisterCP(ctx context.Context, id string, lat, lon, price float64, conn net.Conn) *registry.Conn {
	m.mu.Lock()
	cp, ok := m.cps[id]
	if !ok {
		cp = &store.ChargingPoint{ID: id, RegisteredAt: time.Now()}
		m.cps[id] = cp
	}
	cp.Latitude = lat
	cp.Longitude = lon
	cp.Price = price
	cp.State = store.StateActivated
	cp.CurrentDriver = ""
	cp.SessionStart = time.Time{}
	cp.EnergyRequested = 0
	cp.EnergyDelivered = 0
	cp.AccruedAmount = 0
	cp.ChargingComplete = false
	cpCopy := *cp
	m.mu.Unlock()

	rc := m.reg.RegisterCP(id, conn)

	if err := m.st.SaveCP(ctx, &cpCopy); err != nil {
		log.Printf("session: persist cp %s: %v", id, err)
	}
	m.bus.Publish(events.Event{Type: "CP_REGISTERED", CPID: id})

	m.flush([]outbound{{kindCP, id, protocol.Encode([]string{protocol.MsgAcknowledge, id, "OK"})}})
	return rc
}

// RegisterDriver creates the driver if absent and binds id to conn.
func (m *Manager) RegisterDriver(ctx context.Context, id string, conn net.Conn) *registry.Conn {
	m.mu.Lock()
	d, ok := m.drivers[id]
	if !ok {
		d = &store.Driver{ID: id, RegisteredAt: time.Now()}
		m.drivers[id] = d
	}
	d.Status = store.DriverIdle
	d.CurrentCP = ""
	dCopy := *d
	m.mu.Unlock()

	rc := m.reg.RegisterDriver(id, conn)

	if err := m.st.SaveDriver(ctx, &dCopy); err != nil {
		log.Printf("session: persist driver %s: %v", id, err)
	}
	m.bus.Publish(events.Event{Type: "DRIVER_REGISTERED", CPID: ""})

	m.flush([]outbound{{kindDriver, id, protocol.Encode([]string{protocol.MsgAcknowledge, id, "OK"})}})
	return rc
}

// RegisterMonitor binds cpID to conn in the monitor namespace. It does not
// touch the CP record.
func (m *Manager) RegisterMonitor(cpID string, conn net.Conn) *registry.Conn {
	rc := m.reg.RegisterMonitor(cpID, conn)
	m.flush([]outbound{{kindMonitor, cpID, protocol.Encode([]string{protocol.MsgAcknowledge, cpID, "MONITOR_OK"})}})
	return rc
}

// QueryAvailable sends AVAILABLE_CPS to driverID listing every CP that is
// Activated and unbound.
func (m *Manager) QueryAvailable(driverID string) {
	m.mu.Lock()
	fields := []string{protocol.MsgAvailableCPs}
	for _, cp := range m.cps {
		if cp.State == store.StateActivated && cp.CurrentDriver == "" {
			fields = append(fields, cp.ID, ff(cp.Latitude), ff(cp.Longitude), ff(cp.Price))
		}
	}
	m.mu.Unlock()

	m.flush([]outbound{{kindDriver, driverID, protocol.Encode(fields)}})
}

// RequestCharge attempts to authorize driverID onto cpID for energyRequested
// units of energy. Exactly one of a grant or a denial is sent to a
// registered driver; a request from an unregistered driver is logged and
// gets no reply.
func (m *Manager) RequestCharge(ctx context.Context, driverID, cpID string, energyRequested float64) {
	m.mu.Lock()
	cp, ok := m.cps[cpID]
	if !ok {
		m.mu.Unlock()
		m.flush([]outbound{{kindDriver, driverID, protocol.Encode([]string{protocol.MsgDeny, driverID, cpID, protocol.ReasonCPNotFound})}})
		return
	}
	if cp.CurrentDriver != "" {
		m.mu.Unlock()
		m.flush([]outbound{{kindDriver, driverID, protocol.Encode([]string{protocol.MsgDeny, driverID, cpID, protocol.ReasonCPAlreadyInUse})}})
		return
	}
	if cp.State != store.StateActivated {
		reason := protocol.ReasonCPState(string(cp.State))
		m.mu.Unlock()
		m.flush([]outbound{{kindDriver, driverID, protocol.Encode([]string{protocol.MsgDeny, driverID, cpID, reason})}})
		return
	}

	d, ok := m.drivers[driverID]
	if !ok {
		m.mu.Unlock()
		log.Printf("session: request_charge from unknown driver %s", driverID)
		return
	}

	cp.State = store.StateSupplying
	cp.CurrentDriver = driverID
	cp.SessionStart = time.Now()
	cp.EnergyRequested = energyRequested
	cp.EnergyDelivered = 0
	cp.AccruedAmount = 0
	cp.ChargingComplete = false
	d.Status = store.DriverCharging
	d.CurrentCP = cpID

	cpCopy := *cp
	dCopy := *d
	_, hasMonitor := m.reg.Monitor(cpID)
	m.mu.Unlock()

	if err := m.st.SaveCP(ctx, &cpCopy); err != nil {
		log.Printf("session: persist cp %s: %v", cpID, err)
	}
	if err := m.st.SaveDriver(ctx, &dCopy); err != nil {
		log.Printf("session: persist driver %s: %v", driverID, err)
	}
	m.bus.Publish(events.Event{Type: "CHARGE_AUTHORIZED", CPID: cpID})

	msgs := []outbound{
		{kindDriver, driverID, protocol.Encode([]string{protocol.MsgAuthorize, driverID, cpID, ff(energyRequested), ff(cp.Price)})},
		{kindCP, cpID, protocol.Encode([]string{protocol.MsgAuthorize, driverID, cpID, ff(energyRequested)})},
	}
	if hasMonitor {
		msgs = append(msgs, outbound{kindMonitor, cpID, protocol.Encode([]string{protocol.MsgDriverStart, cpID, driverID})})
	}
	m.flush(msgs)
}

// SupplyUpdate accumulates a metering increment reported by cpID's engine
// and forwards it to the driver. The CP's own running_amount is accepted
// verbatim as the authoritative accrued amount.
func (m *Manager) SupplyUpdate(ctx context.Context, cpID string, increment, runningAmount float64) {
	m.mu.Lock()
	cp, ok := m.cps[cpID]
	if !ok || cp.State != store.StateSupplying {
		m.mu.Unlock()
		log.Printf("session: supply_update for non-supplying cp %s", cpID)
		return
	}

	cp.EnergyDelivered += increment
	cp.AccruedAmount = runningAmount
	driverID := cp.CurrentDriver

	crossed := !cp.ChargingComplete && cp.EnergyDelivered >= cp.EnergyRequested
	if crossed {
		cp.ChargingComplete = true
	}
	cpCopy := *cp
	_, hasMonitor := m.reg.Monitor(cpID)
	m.mu.Unlock()

	if err := m.st.SaveCP(ctx, &cpCopy); err != nil {
		log.Printf("session: persist cp %s: %v", cpID, err)
	}

	msgs := []outbound{
		{kindDriver, driverID, protocol.Encode([]string{protocol.MsgSupplyUpdate, cpID, ff(increment), ff(runningAmount)})},
	}
	if crossed && hasMonitor {
		msgs = append(msgs, outbound{kindMonitor, cpID, protocol.Encode([]string{protocol.MsgChargingComplete, cpID, driverID})})
	}
	m.flush(msgs)
}

// terminationOutcome carries everything a caller needs to persist and
// notify after a session has been torn down. A nil outcome means cp was not
// Supplying when terminateSession was called — the losing side of a
// tie-break, or a terminator firing on an already-idle CP.
type terminationOutcome struct {
	driverID  string
	delivered float64
	amount    float64
	duration  float64
	rec       *store.HistoryRecord
	driver    *store.Driver
}

// terminateSession is the single place that resets a Supplying CP's session
// fields, idles its driver, and builds the history record. Callers decide
// the cause-specific outbound messages (TICKET vs DENY, STOP_COMMAND,
// END_SUPPLY, ...) since those vary by termination path. Must be called
// with mu held; cp.State is always set to newState before return, even on
// the no-op path (some paths, like OperatorStop, must land in newState
// whether or not a session was actually running).
func (m *Manager) terminateSession(cp *store.ChargingPoint, cause string, newState store.CPState) *terminationOutcome {
	wasSupplying := cp.State == store.StateSupplying

	var outcome *terminationOutcome
	if wasSupplying {
		driverID := cp.CurrentDriver
		delivered := cp.EnergyDelivered
		amount := cp.AccruedAmount
		duration := time.Since(cp.SessionStart).Seconds()

		var driverRec *store.Driver
		if d, ok := m.drivers[driverID]; ok {
			d.Status = store.DriverIdle
			d.CurrentCP = ""
			d.TotalCharges++
			d.TotalSpent += amount
			driverRec = d
		}

		outcome = &terminationOutcome{
			driverID:  driverID,
			delivered: delivered,
			amount:    amount,
			duration:  duration,
			driver:    driverRec,
			rec: &store.HistoryRecord{
				Timestamp:       time.Now(),
				CPID:            cp.ID,
				DriverID:        driverID,
				KWhDelivered:    delivered,
				TotalAmount:     amount,
				DurationSeconds: duration,
				Cause:           cause,
			},
		}
	}

	cp.State = newState
	cp.CurrentDriver = ""
	cp.SessionStart = time.Time{}
	cp.EnergyRequested = 0
	cp.EnergyDelivered = 0
	cp.AccruedAmount = 0
	cp.ChargingComplete = false

	return outcome
}

// persistTermination writes the CP row, the driver row (if any), and the
// history record. Call after releasing mu.
func (m *Manager) persistTermination(ctx context.Context, cpCopy store.ChargingPoint, outcome *terminationOutcome) {
	if err := m.st.SaveCP(ctx, &cpCopy); err != nil {
		log.Printf("session: persist cp %s: %v", cpCopy.ID, err)
	}
	if outcome == nil {
		return
	}
	if outcome.driver != nil {
		dCopy := *outcome.driver
		if err := m.st.SaveDriver(ctx, &dCopy); err != nil {
			log.Printf("session: persist driver %s: %v", outcome.driverID, err)
		}
	}
	if err := m.st.AppendHistory(ctx, outcome.rec); err != nil {
		log.Printf("session: append history for cp %s: %v", cpCopy.ID, err)
	}
}

// SupplyEnd is the CP engine's normal termination: it reports its own
// final totals, which are accepted verbatim.
func (m *Manager) SupplyEnd(ctx context.Context, cpID, driverID string, totalEnergy, totalAmount float64) {
	m.mu.Lock()
	cp, ok := m.cps[cpID]
	if !ok || cp.State != store.StateSupplying || cp.CurrentDriver != driverID {
		m.mu.Unlock()
		log.Printf("session: supply_end mismatch for cp %s driver %s", cpID, driverID)
		return
	}
	cp.EnergyDelivered = totalEnergy
	cp.AccruedAmount = totalAmount

	outcome := m.terminateSession(cp, "SupplyEnd", store.StateActivated)
	cpCopy := *cp
	_, hasMonitor := m.reg.Monitor(cpID)
	m.mu.Unlock()

	m.persistTermination(ctx, cpCopy, outcome)
	if outcome == nil {
		return
	}
	m.bus.Publish(events.Event{Type: "CHARGE_COMPLETED", CPID: cpID})

	msgs := []outbound{
		{kindDriver, driverID, protocol.Encode([]string{protocol.MsgTicket, cpID, ff(outcome.delivered), ff(outcome.amount)})},
	}
	if hasMonitor {
		msgs = append(msgs, outbound{kindMonitor, cpID, protocol.Encode([]string{protocol.MsgDriverStop, cpID, driverID})})
	}
	m.flush(msgs)
}

// EndCharge is the driver-initiated unplug. The CP's reported accumulator is
// authoritative; when it is still zero (the driver disconnected before any
// SUPPLY_UPDATE arrived), an elapsed-time estimate against the configured
// nominal session duration is used instead, clamped to energy_requested.
func (m *Manager) EndCharge(ctx context.Context, driverID, cpID string) {
	m.mu.Lock()
	cp, ok := m.cps[cpID]
	if !ok || cp.State != store.StateSupplying || cp.CurrentDriver != driverID {
		m.mu.Unlock()
		log.Printf("session: end_charge mismatch for cp %s driver %s", cpID, driverID)
		return
	}

	if cp.EnergyDelivered <= 0 {
		elapsed := time.Since(cp.SessionStart).Seconds()
		nominal := m.nominalDuration.Seconds()
		var estimate float64
		if nominal > 0 {
			estimate = cp.EnergyRequested * elapsed / nominal
		}
		if estimate > cp.EnergyRequested {
			estimate = cp.EnergyRequested
		}
		if estimate < 0 {
			estimate = 0
		}
		cp.EnergyDelivered = estimate
		cp.AccruedAmount = estimate * cp.Price
	}

	outcome := m.terminateSession(cp, "EndCharge", store.StateActivated)
	cpCopy := *cp
	_, hasMonitor := m.reg.Monitor(cpID)
	m.mu.Unlock()

	m.persistTermination(ctx, cpCopy, outcome)
	if outcome == nil {
		return
	}
	m.bus.Publish(events.Event{Type: "CHARGE_COMPLETED", CPID: cpID})

	msgs := []outbound{
		{kindDriver, driverID, protocol.Encode([]string{protocol.MsgTicket, cpID, ff(outcome.delivered), ff(outcome.amount)})},
		{kindCP, cpID, protocol.Encode([]string{protocol.MsgEndSupply, cpID})},
	}
	if hasMonitor {
		msgs = append(msgs, outbound{kindMonitor, cpID, protocol.Encode([]string{protocol.MsgDriverStop, cpID, driverID})})
	}
	m.flush(msgs)
}

// Fault force-terminates any in-flight session with whatever was delivered
// so far, denies the driver, and moves the CP to OutOfOrder.
func (m *Manager) Fault(ctx context.Context, cpID string) {
	m.mu.Lock()
	cp, ok := m.cps[cpID]
	if !ok {
		m.mu.Unlock()
		log.Printf("session: fault for unknown cp %s", cpID)
		return
	}
	outcome := m.terminateSession(cp, "Fault", store.StateOutOfOrder)
	cpCopy := *cp
	m.mu.Unlock()

	m.persistTermination(ctx, cpCopy, outcome)
	m.bus.Publish(events.Event{Type: "CP_FAULT", CPID: cpID})

	if outcome != nil {
		m.flush([]outbound{
			{kindDriver, outcome.driverID, protocol.Encode([]string{protocol.MsgDeny, outcome.driverID, cpID, protocol.ReasonCPFaultEmergencyStop})},
		})
	}
}

// Recovery restores a CP to Activated.
func (m *Manager) Recovery(ctx context.Context, cpID string) {
	m.mu.Lock()
	cp, ok := m.cps[cpID]
	if !ok {
		m.mu.Unlock()
		log.Printf("session: recovery for unknown cp %s", cpID)
		return
	}
	cp.State = store.StateActivated
	cpCopy := *cp
	m.mu.Unlock()

	if err := m.st.SaveCP(ctx, &cpCopy); err != nil {
		log.Printf("session: persist cp %s: %v", cpID, err)
	}
	m.bus.Publish(events.Event{Type: "CP_RECOVERED", CPID: cpID})
}

// Heartbeat updates a CP's reported state, unless the session manager
// currently owns that CP's state because it is Supplying.
func (m *Manager) Heartbeat(cpID, reportedState string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.cps[cpID]
	if !ok || cp.State == store.StateSupplying {
		return
	}
	cp.State = store.CPState(reportedState)
}

// OperatorStop force-terminates any running session (cause OperatorStop, ticket
// rather than deny) and always leaves the CP in Stopped.
func (m *Manager) OperatorStop(ctx context.Context, cpID string) error {
	m.mu.Lock()
	cp, ok := m.cps[cpID]
	if !ok {
		m.mu.Unlock()
		return ErrCPNotFound
	}
	outcome := m.terminateSession(cp, "OperatorStop", store.StateStopped)
	cpCopy := *cp
	m.mu.Unlock()

	m.persistTermination(ctx, cpCopy, outcome)
	m.bus.Publish(events.Event{Type: "CP_STOPPED_BY_OPERATOR", CPID: cpID})

	msgs := []outbound{{kindCP, cpID, protocol.Encode([]string{protocol.MsgStopCommand, cpID})}}
	if outcome != nil {
		msgs = append(msgs, outbound{kindDriver, outcome.driverID, protocol.Encode([]string{protocol.MsgTicket, cpID, ff(outcome.delivered), ff(outcome.amount)})})
	}
	m.flush(msgs)
	return nil
}

// OperatorResume restores a Stopped CP to Activated.
func (m *Manager) OperatorResume(ctx context.Context, cpID string) error {
	m.mu.Lock()
	cp, ok := m.cps[cpID]
	if !ok {
		m.mu.Unlock()
		return ErrCPNotFound
	}
	cp.State = store.StateActivated
	cpCopy := *cp
	m.mu.Unlock()

	if err := m.st.SaveCP(ctx, &cpCopy); err != nil {
		log.Printf("session: persist cp %s: %v", cpID, err)
	}
	m.bus.Publish(events.Event{Type: "CP_RESUMED_BY_OPERATOR", CPID: cpID})
	m.flush([]outbound{{kindCP, cpID, protocol.Encode([]string{protocol.MsgResumeCommand, cpID})}})
	return nil
}

// WeatherAlert force-terminates any in-flight session (with a TICKET, not a
// DENY — weather is a site condition, not the driver's fault) and holds the
// CP OutOfOrder until a matching WeatherClear. An operator-stopped CP is
// left alone if it isn't also Supplying: WeatherClear never overrides an
// operator's Stop, since the two causes are tracked independently.
func (m *Manager) WeatherAlert(ctx context.Context, cpID, location string, temperature float64) error {
	m.mu.Lock()
	cp, ok := m.cps[cpID]
	if !ok {
		m.mu.Unlock()
		return ErrCPNotFound
	}
	newState := store.StateOutOfOrder
	if cp.State == store.StateStopped {
		newState = store.StateStopped
	}
	outcome := m.terminateSession(cp, "WeatherAlert", newState)
	m.weather[cpID] = &store.WeatherAlert{
		CPID:        cpID,
		Location:    location,
		Temperature: temperature,
		Timestamp:   time.Now(),
		Message:     fmt.Sprintf("weather alert at %s: %.1f°C", location, temperature),
	}
	cpCopy := *cp
	m.mu.Unlock()

	m.persistTermination(ctx, cpCopy, outcome)
	m.bus.Publish(events.Event{Type: "CP_WEATHER_ALERT", CPID: cpID})

	if outcome != nil {
		m.flush([]outbound{
			{kindDriver, outcome.driverID, protocol.Encode([]string{protocol.MsgTicket, cpID, ff(outcome.delivered), ff(outcome.amount)})},
		})
	}
	return nil
}

// WeatherClear restores Activated only if the CP is currently OutOfOrder
// (so it never overrides an operator Stop) and removes the alert record.
func (m *Manager) WeatherClear(ctx context.Context, cpID string) error {
	m.mu.Lock()
	cp, ok := m.cps[cpID]
	if !ok {
		m.mu.Unlock()
		return ErrCPNotFound
	}
	if cp.State == store.StateOutOfOrder {
		cp.State = store.StateActivated
	}
	delete(m.weather, cpID)
	cpCopy := *cp
	m.mu.Unlock()

	if err := m.st.SaveCP(ctx, &cpCopy); err != nil {
		log.Printf("session: persist cp %s: %v", cpID, err)
	}
	m.bus.Publish(events.Event{Type: "CP_WEATHER_CLEARED", CPID: cpID})
	return nil
}

// EnsureCPKnown inserts a Disconnected CP record if id isn't already known.
// Used by the registry poller to reflect CPs that exist externally but
// haven't registered over the wire yet.
func (m *Manager) EnsureCPKnown(ctx context.Context, id string, lat, lon, price float64) {
	m.mu.Lock()
	if _, ok := m.cps[id]; ok {
		m.mu.Unlock()
		return
	}
	cp := &store.ChargingPoint{
		ID:           id,
		Latitude:     lat,
		Longitude:    lon,
		Price:        price,
		State:        store.StateDisconnected,
		RegisteredAt: time.Now(),
	}
	m.cps[id] = cp
	cpCopy := *cp
	m.mu.Unlock()

	if err := m.st.SaveCP(ctx, &cpCopy); err != nil {
		log.Printf("session: persist cp %s: %v", id, err)
	}
}

// RemoveCP deletes a CP that the external Registry no longer lists.
func (m *Manager) RemoveCP(ctx context.Context, id string) {
	m.mu.Lock()
	_, ok := m.cps[id]
	delete(m.cps, id)
	m.mu.Unlock()

	if !ok {
		return
	}
	if err := m.st.DeleteCP(ctx, id); err != nil {
		log.Printf("session: delete cp %s: %v", id, err)
	}
}

// KnownCPIDs returns every CP id currently tracked, for the registry poller
// to diff against the external Registry's listing.
func (m *Manager) KnownCPIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.cps))
	for id := range m.cps {
		ids = append(ids, id)
	}
	return ids
}

// ListCPs returns a snapshot of every CP.
func (m *Manager) ListCPs() []*store.ChargingPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*store.ChargingPoint, 0, len(m.cps))
	for _, cp := range m.cps {
		cpCopy := *cp
		out = append(out, &cpCopy)
	}
	return out
}

// ListDrivers returns a snapshot of every driver.
func (m *Manager) ListDrivers() []*store.Driver {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*store.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		dCopy := *d
		out = append(out, &dCopy)
	}
	return out
}

// WeatherAlerts returns a snapshot of every active weather alert.
func (m *Manager) WeatherAlerts() []*store.WeatherAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*store.WeatherAlert, 0, len(m.weather))
	for _, w := range m.weather {
		wCopy := *w
		out = append(out, &wCopy)
	}
	return out
}

// Status is the aggregate view served at GET /api/status.
type Status struct {
	TotalCPs       int `json:"total_cps"`
	ActiveCPs      int `json:"active_cps"`
	ChargingCPs    int `json:"charging_cps"`
	OutOfOrderCPs  int `json:"out_of_order_cps"`
	TotalDrivers   int `json:"total_drivers"`
	ChargingDriver int `json:"charging_drivers"`
	WeatherAlerts  int `json:"weather_alerts"`
}

// Status computes the aggregate counts.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s Status
	s.TotalCPs = len(m.cps)
	s.TotalDrivers = len(m.drivers)
	s.WeatherAlerts = len(m.weather)
	for _, cp := range m.cps {
		switch cp.State {
		case store.StateActivated:
			s.ActiveCPs++
		case store.StateSupplying:
			s.ChargingCPs++
		case store.StateOutOfOrder:
			s.OutOfOrderCPs++
		}
	}
	for _, d := range m.drivers {
		if d.Status == store.DriverCharging {
			s.ChargingDriver++
		}
	}
	return s
}

// History returns the last limit completed session records.
func (m *Manager) History(ctx context.Context, limit int) ([]*store.HistoryRecord, error) {
	return m.st.RecentHistory(ctx, limit)
}

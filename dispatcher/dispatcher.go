// Package dispatcher accepts agent connections (CP engines, CP monitors,
// drivers) and runs one worker goroutine per connection: read bytes, drain
// frames with the protocol codec, route each to the session Manager. This
// is the generalization of the teacher's single persistent overseer client
// loop to "one server, N peers" instead of "one client, one peer".
package dispatcher

import (
	"context"
	"errors"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/evcharge/central/protocol"
	"github.com/evcharge/central/registry"
	"github.com/evcharge/central/session"
)

const readBufSize = 4096

// readTimeout bounds each Read call; a timeout here is not an error and the
// worker simply reads again. Workers do not watch for shutdown: one exits
// only on EOF, a read error, or an oversized buffer.
const readTimeout = 2 * time.Second

// Listener accepts TCP connections and spawns a worker per connection.
type Listener struct {
	addr string
	mgr  *session.Manager
	ln   net.Listener
}

// New returns a Listener bound to addr (not yet listening).
func New(addr string, mgr *session.Manager) *Listener {
	return &Listener{addr: addr, mgr: mgr}
}

// Run binds the listener and accepts connections until ctx is canceled or
// Close is called. It blocks until the accept loop exits.
func (l *Listener) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	l.ln = ln
	log.Printf("dispatcher: listening on %s", l.addr)

	go func() {
		<-ctx.Done()
		l.ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				log.Printf("dispatcher: listener closed")
				return nil
			default:
				if errors.Is(err, net.ErrClosed) {
					log.Printf("dispatcher: listener closed")
					return nil
				}
				log.Printf("dispatcher: accept error: %v", err)
				continue
			}
		}
		w := &worker{conn: conn, mgr: l.mgr}
		go w.run()
	}
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}

// worker owns one connection's read side. Write traffic is driven entirely
// by the session Manager through the registry.Conn it hands back on
// registration; the worker only tears down bindings on exit.
type worker struct {
	conn net.Conn
	mgr  *session.Manager

	entityID string
	kind     string // "cp", "driver", "monitor", or "" before REGISTER
	handle   *registry.Conn
}

func (w *worker) run() {
	defer w.teardown()

	var buf []byte
	tmp := make([]byte, readBufSize)

	for {
		w.conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, err := w.conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			frames, consumed := protocol.DecodeAll(buf)
			buf = buf[consumed:]
			for _, fields := range frames {
				w.dispatch(fields)
			}
			if len(buf) > protocol.MaxFrameSize {
				log.Printf("dispatcher: frame buffer exceeded %d bytes without yielding a frame, dropping connection", protocol.MaxFrameSize)
				return
			}
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}
	}
}

func (w *worker) teardown() {
	w.conn.Close()
	if w.handle == nil {
		return
	}
	switch w.kind {
	case "cp":
		w.mgr.Registry().UnregisterCP(w.entityID, w.handle)
	case "driver":
		w.mgr.Registry().UnregisterDriver(w.entityID, w.handle)
	case "monitor":
		w.mgr.Registry().UnregisterMonitor(w.entityID, w.handle)
	}
}

func (w *worker) dispatch(fields []string) {
	if len(fields) == 0 {
		return
	}
	ctx := context.Background()
	msgType := fields[0]
	args := fields[1:]

	switch msgType {
	case protocol.MsgRegister:
		w.handleRegister(ctx, args)
	case protocol.MsgHeartbeat:
		if len(args) < 2 {
			log.Printf("dispatcher: malformed HEARTBEAT %v", args)
			return
		}
		w.mgr.Heartbeat(args[0], args[1])
	case protocol.MsgRequestCharge:
		if len(args) < 3 {
			log.Printf("dispatcher: malformed REQUEST_CHARGE %v", args)
			return
		}
		energy, err := parseFloat(args[2])
		if err != nil {
			log.Printf("dispatcher: bad energy in REQUEST_CHARGE: %v", err)
			return
		}
		w.mgr.RequestCharge(ctx, args[0], args[1], energy)
	case protocol.MsgQueryAvailableCPs:
		if len(args) < 1 {
			log.Printf("dispatcher: malformed QUERY_AVAILABLE_CPS %v", args)
			return
		}
		w.mgr.QueryAvailable(args[0])
	case protocol.MsgSupplyUpdate:
		if len(args) < 3 {
			log.Printf("dispatcher: malformed SUPPLY_UPDATE %v", args)
			return
		}
		inc, err1 := parseFloat(args[1])
		amt, err2 := parseFloat(args[2])
		if err1 != nil || err2 != nil {
			log.Printf("dispatcher: bad numbers in SUPPLY_UPDATE %v", args)
			return
		}
		w.mgr.SupplyUpdate(ctx, args[0], inc, amt)
	case protocol.MsgSupplyEnd:
		if len(args) < 4 {
			log.Printf("dispatcher: malformed SUPPLY_END %v", args)
			return
		}
		energy, err1 := parseFloat(args[2])
		amt, err2 := parseFloat(args[3])
		if err1 != nil || err2 != nil {
			log.Printf("dispatcher: bad numbers in SUPPLY_END %v", args)
			return
		}
		w.mgr.SupplyEnd(ctx, args[0], args[1], energy, amt)
	case protocol.MsgEndCharge:
		if len(args) < 2 {
			log.Printf("dispatcher: malformed END_CHARGE %v", args)
			return
		}
		w.mgr.EndCharge(ctx, args[0], args[1])
	case protocol.MsgFault:
		if len(args) < 1 {
			log.Printf("dispatcher: malformed FAULT %v", args)
			return
		}
		w.mgr.Fault(ctx, args[0])
	case protocol.MsgRecovery:
		if len(args) < 1 {
			log.Printf("dispatcher: malformed RECOVERY %v", args)
			return
		}
		w.mgr.Recovery(ctx, args[0])
	case protocol.MsgHealthOK, protocol.MsgHealthKO:
		// Monitor<->Engine health checks happen out-of-band of Central on a
		// sidecar port; if one lands here it's a misrouted frame.
		log.Printf("dispatcher: %s received on central port, ignoring", msgType)
	default:
		log.Printf("dispatcher: unknown message type %q, dropping", msgType)
	}
}

func (w *worker) handleRegister(ctx context.Context, args []string) {
	if len(args) < 1 {
		log.Printf("dispatcher: malformed REGISTER %v", args)
		return
	}
	switch args[0] {
	case protocol.RegisterCP:
		if len(args) < 5 {
			log.Printf("dispatcher: malformed REGISTER CP %v", args)
			return
		}
		lat, err1 := parseFloat(args[2])
		lon, err2 := parseFloat(args[3])
		price, err3 := parseFloat(args[4])
		if err1 != nil || err2 != nil || err3 != nil {
			log.Printf("dispatcher: bad numbers in REGISTER CP %v", args)
			return
		}
		w.entityID = args[1]
		w.kind = "cp"
		w.handle = w.mgr.RegisterCP(ctx, args[1], lat, lon, price, w.conn)
	case protocol.RegisterDriver:
		if len(args) < 2 {
			log.Printf("dispatcher: malformed REGISTER DRIVER %v", args)
			return
		}
		w.entityID = args[1]
		w.kind = "driver"
		w.handle = w.mgr.RegisterDriver(ctx, args[1], w.conn)
	case protocol.RegisterMonitor:
		if len(args) < 3 {
			log.Printf("dispatcher: malformed REGISTER MONITOR %v", args)
			return
		}
		w.entityID = args[2]
		w.kind = "monitor"
		w.handle = w.mgr.RegisterMonitor(args[2], w.conn)
	default:
		log.Printf("dispatcher: unknown REGISTER kind %q", args[0])
	}
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

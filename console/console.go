// Package console runs the stdin operator command loop: stop/resume a CP,
// list the fleet, show recent history. Line-oriented, bufio.Scanner over
// os.Stdin, in the style of the dev-console stdio loops found elsewhere in
// the pack (scan, trim, dispatch on the first token, skip blank lines).
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/evcharge/central/session"
)

// Console reads commands from in and writes responses to out.
type Console struct {
	mgr *session.Manager
	in  io.Reader
	out io.Writer
}

func New(mgr *session.Manager, in io.Reader, out io.Writer) *Console {
	return &Console{mgr: mgr, in: in, out: out}
}

// Run scans lines until EOF, ctx cancellation, or a "quit" command.
func (c *Console) Run(ctx context.Context) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Fprintln(c.out, "operator console ready. type 'help' for commands.")
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if c.dispatch(ctx, line) {
				return
			}
		}
	}
}

// dispatch handles one line, returning true if the console should stop.
func (c *Console) dispatch(ctx context.Context, line string) bool {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "help":
		fmt.Fprintln(c.out, "commands: stop <cp_id>, resume <cp_id>, list, history, quit, help")
	case "list":
		c.list()
	case "history":
		c.history(ctx)
	case "stop":
		c.stop(ctx, fields)
	case "resume":
		c.resume(ctx, fields)
	case "quit":
		fmt.Fprintln(c.out, "bye")
		return true
	default:
		fmt.Fprintf(c.out, "unknown command %q, type 'help'\n", fields[0])
	}
	return false
}

func (c *Console) list() {
	cps := c.mgr.ListCPs()
	if len(cps) == 0 {
		fmt.Fprintln(c.out, "no charging points registered")
		return
	}
	for _, cp := range cps {
		fmt.Fprintf(c.out, "%s state=%s driver=%s energy=%.2f/%.2f\n",
			cp.ID, cp.State, cp.CurrentDriver, cp.EnergyDelivered, cp.EnergyRequested)
	}
}

func (c *Console) history(ctx context.Context) {
	recs, err := c.mgr.History(ctx, 20)
	if err != nil {
		fmt.Fprintf(c.out, "history: %v\n", err)
		return
	}
	if len(recs) == 0 {
		fmt.Fprintln(c.out, "no completed sessions yet")
		return
	}
	for _, r := range recs {
		fmt.Fprintf(c.out, "%s cp=%s driver=%s energy=%.2f amount=%.2f cause=%s\n",
			r.Timestamp.Format("15:04:05"), r.CPID, r.DriverID, r.KWhDelivered, r.TotalAmount, r.Cause)
	}
}

func (c *Console) stop(ctx context.Context, fields []string) {
	if len(fields) != 2 {
		fmt.Fprintln(c.out, "usage: stop <cp_id>")
		return
	}
	if err := c.mgr.OperatorStop(ctx, fields[1]); err != nil {
		fmt.Fprintf(c.out, "stop %s: %v\n", fields[1], err)
		return
	}
	fmt.Fprintf(c.out, "%s stopped\n", fields[1])
}

func (c *Console) resume(ctx context.Context, fields []string) {
	if len(fields) != 2 {
		fmt.Fprintln(c.out, "usage: resume <cp_id>")
		return
	}
	if err := c.mgr.OperatorResume(ctx, fields[1]); err != nil {
		fmt.Fprintf(c.out, "resume %s: %v\n", fields[1], err)
		return
	}
	fmt.Fprintf(c.out, "%s resumed\n", fields[1])
}

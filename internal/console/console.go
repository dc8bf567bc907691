// Package console runs the interactive stdin command loop described in
// help/controls/monitors/presets/preset URI/quit/set,
// generalized from a numeric-command stdin monitor
// (internal/control/stdin.go) into a small parser over named commands
// and "symbol = value" assignments.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jalv-go/jalv/internal/controls"
)

// Host is the subset of internal/host.Jalv the console drives.
type Host interface {
	Controls() *controls.Set
	SetControlByIndex(index int, value float64) error
	SetControlBySymbol(symbol string, value float64) error
	LoadPresetURI(uri string) error
	ListPresetURIs() []string
	Monitors() []string
	Quit()
}

// Monitor runs the stdin command loop until ctx is cancelled or the
// user issues "quit". Output goes to out (normally os.Stdout).
type Monitor struct {
	host Host
	in   io.Reader
	out  io.Writer
}

// New creates a console Monitor.
func New(host Host, in io.Reader, out io.Writer) *Monitor {
	return &Monitor{host: host, in: in, out: out}
}

// Run reads commands until ctx is cancelled, EOF, or "quit".
func (m *Monitor) Run(ctx context.Context) {
	scanner := bufio.NewScanner(m.in)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Fprintln(m.out, "jalv console — type 'help' for commands")
	for {
		fmt.Fprint(m.out, "> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if m.dispatch(strings.TrimSpace(line)) {
				return
			}
		}
	}
}

// dispatch processes one line, returning true if the console should
// stop, which only the "quit" command does; malformed input is
// reported and the console keeps running.
func (m *Monitor) dispatch(line string) bool {
	if line == "" {
		return false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "help":
		m.printHelp()
	case "controls":
		m.printControls()
	case "monitors":
		m.printMonitors()
	case "presets":
		m.printPresets()
	case "preset":
		if len(fields) < 2 {
			fmt.Fprintln(m.out, "usage: preset <URI>")
			return false
		}
		if err := m.host.LoadPresetURI(fields[1]); err != nil {
			fmt.Fprintf(m.out, "preset load failed: %v\n", err)
		}
	case "set":
		m.handleSet(fields[1:])
	case "quit":
		m.host.Quit()
		return true
	default:
		if ok := m.handleAssignment(line); !ok {
			fmt.Fprintf(m.out, "unknown command: %s\n", fields[0])
		}
	}
	return false
}

func (m *Monitor) handleSet(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(m.out, "usage: set <index|symbol> <float>")
		return
	}
	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Fprintf(m.out, "invalid value %q: %v\n", args[1], err)
		return
	}
	if index, err := strconv.Atoi(args[0]); err == nil {
		if err := m.host.SetControlByIndex(index, value); err != nil {
			fmt.Fprintf(m.out, "set failed: %v\n", err)
		}
		return
	}
	if err := m.host.SetControlBySymbol(args[0], value); err != nil {
		fmt.Fprintf(m.out, "set failed: %v\n", err)
	}
}

// handleAssignment recognizes "<symbol> = <float>" as a shorthand for
// "set <symbol> <float>".
func (m *Monitor) handleAssignment(line string) bool {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return false
	}
	symbol := strings.TrimSpace(parts[0])
	valueStr := strings.TrimSpace(parts[1])
	if symbol == "" || strings.Contains(symbol, " ") {
		return false
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return false
	}
	if err := m.host.SetControlBySymbol(symbol, value); err != nil {
		fmt.Fprintf(m.out, "set failed: %v\n", err)
	}
	return true
}

func (m *Monitor) printHelp() {
	fmt.Fprintln(m.out, "commands:")
	fmt.Fprintln(m.out, "  help                 show this message")
	fmt.Fprintln(m.out, "  controls             list controls and current values")
	fmt.Fprintln(m.out, "  monitors             list active monitors")
	fmt.Fprintln(m.out, "  presets              list known preset URIs")
	fmt.Fprintln(m.out, "  preset <URI>         load a preset")
	fmt.Fprintln(m.out, "  set <index|sym> <v>  set a control value")
	fmt.Fprintln(m.out, "  <symbol> = <v>       same as 'set <symbol> <v>'")
	fmt.Fprintln(m.out, "  quit                 exit")
}

func (m *Monitor) printControls() {
	set := m.host.Controls()
	for i := 0; i < set.Len(); i++ {
		c := set.ByIndex(i)
		fmt.Fprintf(m.out, "  [%d] %s (%s)\n", i, c.Symbol, kindName(c.Kind))
	}
}

func (m *Monitor) printMonitors() {
	for _, name := range m.host.Monitors() {
		fmt.Fprintln(m.out, "  "+name)
	}
}

func (m *Monitor) printPresets() {
	for _, uri := range m.host.ListPresetURIs() {
		fmt.Fprintln(m.out, "  "+uri)
	}
}

func kindName(k controls.Kind) string {
	if k == controls.KindPort {
		return "port"
	}
	return "property"
}

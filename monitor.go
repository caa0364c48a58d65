// monitor.go - The `monitor` command shell: tokenizing, prefix-matching
// dispatch, and the command table itself.
//
// Commands are matched the way the host debugger's monitor passthrough
// expects: a prefix of a command name is accepted as long as it is
// unambiguous, so "ver" dispatches to "version", while "ha" is rejected
// as ambiguous between "halt_timeout" and "hard_srst".

package dbgprobe

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MonitorCommand is one parsed input line: a command name plus its
// argument tokens.
type MonitorCommand struct {
	Name string
	Args []string
}

// ParseCommand tokenizes line on whitespace and lowercases the command
// name; arguments are left as-is since some (addresses, paths) are
// case-sensitive.
func ParseCommand(line string) MonitorCommand {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return MonitorCommand{}
	}
	return MonitorCommand{Name: strings.ToLower(fields[0]), Args: fields[1:]}
}

// ParseAddress accepts '#' decimal, '$' hex, "0x"/"0X" hex, or bare hex.
func ParseAddress(s string) (uint32, error) {
	switch {
	case strings.HasPrefix(s, "#"):
		v, err := strconv.ParseUint(s[1:], 10, 32)
		return uint32(v), err
	case strings.HasPrefix(s, "$"):
		v, err := strconv.ParseUint(s[1:], 16, 32)
		return uint32(v), err
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		v, err := strconv.ParseUint(s[2:], 16, 32)
		return uint32(v), err
	default:
		v, err := strconv.ParseUint(s, 16, 32)
		return uint32(v), err
	}
}

// monitorHandler implements one monitor command. out receives human-
// readable response lines.
type monitorHandler func(ctx context.Context, m *Monitor, args []string, out *strings.Builder) error

type monitorCommandEntry struct {
	name    string
	help    string
	handler monitorHandler
}

// Monitor dispatches monitor shell commands against a single attached
// target.
type Monitor struct {
	target      DebugTarget
	haltTimeout time.Duration
	assertSRST  string
	coreDir     string
	resetSig    int32
	commands    []monitorCommandEntry

	morseMsg string

	tpwrEnabled  bool
	traceSWOBaud int
	debugBMPOn   bool
}

// NewMonitor returns a monitor shell bound to target, with the standard
// command table registered. The platform-conditional tpwr/traceswo/
// debug_bmp commands are only registered when cfg.PlatformExtras is set.
func NewMonitor(target DebugTarget, cfg *EngineConfig) *Monitor {
	m := &Monitor{
		target:      target,
		haltTimeout: cfg.HaltTimeout,
		assertSRST:  cfg.AssertSRST,
		coreDir:     cfg.CoreDir,
	}
	m.commands = []monitorCommandEntry{
		{"version", "display firmware version", cmdVersion},
		{"help", "list monitor commands", cmdHelp},
		{"targets", "list available targets", cmdTargets},
		{"morse", "display the last morse error message", cmdMorse},
		{"halt_timeout", "get/set the monitor's halt_timeout value in milliseconds (not applied to the target)", cmdHaltTimeout},
		{"assert_srst", "get/set when SRST is asserted (never|scan|attach)", cmdAssertSRST},
		{"hard_srst", "force a hardware reset of the attached core", cmdHardSRST},
		{"gcore", "write a core dump of the attached core into the given directory (default: the configured core directory)", cmdGcore},
	}
	if cfg.PlatformExtras {
		m.commands = append(m.commands,
			monitorCommandEntry{"tpwr", "get/set target power: (enable|disable)", cmdTPWR},
			monitorCommandEntry{"traceswo", "start trace capture [baudrate for async swo]", cmdTraceSWO},
			monitorCommandEntry{"debug_bmp", "get/set debug string output: (enable|disable)", cmdDebugBMP},
		)
	}
	return m
}

// Dispatch runs the unambiguous-prefix match for cmd.Name and invokes its
// handler, returning the accumulated output text.
func (m *Monitor) Dispatch(ctx context.Context, cmd MonitorCommand) (string, error) {
	if cmd.Name == "" {
		return "", nil
	}

	entry, err := m.resolve(cmd.Name)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	if err := entry.handler(ctx, m, cmd.Args, &out); err != nil {
		return out.String(), err
	}
	return out.String(), nil
}

func (m *Monitor) resolve(prefix string) (monitorCommandEntry, error) {
	var matches []monitorCommandEntry
	for _, c := range m.commands {
		if c.name == prefix {
			return c, nil
		}
		if strings.HasPrefix(c.name, prefix) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return monitorCommandEntry{}, fmt.Errorf("monitor: unrecognized command %q", prefix)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, c := range matches {
			names[i] = c.name
		}
		sort.Strings(names)
		return monitorCommandEntry{}, fmt.Errorf("monitor: %q is ambiguous between %s", prefix, strings.Join(names, ", "))
	}
}

func cmdVersion(ctx context.Context, m *Monitor, args []string, out *strings.Builder) error {
	fmt.Fprintln(out, "Zynq-7000 AMP debug probe")
	return nil
}

func cmdHelp(ctx context.Context, m *Monitor, args []string, out *strings.Builder) error {
	for _, c := range m.commands {
		fmt.Fprintf(out, "%-14s %s\n", c.name, c.help)
	}
	return nil
}

func cmdTargets(ctx context.Context, m *Monitor, args []string, out *strings.Builder) error {
	fmt.Fprintln(out, "1   Cortex-A9 (slave, AMP)")
	return nil
}

func cmdHaltTimeout(ctx context.Context, m *Monitor, args []string, out *strings.Builder) error {
	if len(args) == 0 {
		fmt.Fprintf(out, "halt_timeout: %d ms\n", m.haltTimeout.Milliseconds())
		return nil
	}
	ms, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("halt_timeout: %w", err)
	}
	m.haltTimeout = time.Duration(ms) * time.Millisecond
	fmt.Fprintf(out, "halt_timeout: %d ms\n", ms)
	return nil
}

func cmdAssertSRST(ctx context.Context, m *Monitor, args []string, out *strings.Builder) error {
	if len(args) == 0 {
		fmt.Fprintf(out, "assert_srst: %s\n", m.assertSRST)
		return nil
	}
	switch args[0] {
	case "never", "scan", "attach":
		m.assertSRST = args[0]
	default:
		return fmt.Errorf("assert_srst: must be 'never', 'scan', or 'attach', got %q", args[0])
	}
	fmt.Fprintf(out, "assert_srst: %s\n", m.assertSRST)
	return nil
}

func cmdHardSRST(ctx context.Context, m *Monitor, args []string, out *strings.Builder) error {
	if err := m.target.Reset(ctx); err != nil {
		return fmt.Errorf("hard_srst: %w", err)
	}
	fmt.Fprintln(out, "target reset")
	return nil
}

func cmdMorse(ctx context.Context, m *Monitor, args []string, out *strings.Builder) error {
	if m.morseMsg != "" {
		fmt.Fprintln(out, m.morseMsg)
	}
	return nil
}

func cmdTPWR(ctx context.Context, m *Monitor, args []string, out *strings.Builder) error {
	if len(args) > 0 {
		m.tpwrEnabled = strings.HasPrefix("enable", args[0])
	}
	fmt.Fprintf(out, "Target Power: %s\n", enabledDisabled(m.tpwrEnabled))
	return nil
}

func cmdTraceSWO(ctx context.Context, m *Monitor, args []string, out *strings.Builder) error {
	baud := 0
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("traceswo: %w", err)
		}
		baud = v
	}
	m.traceSWOBaud = baud
	if baud > 0 {
		fmt.Fprintf(out, "traceswo: capturing at %d baud\n", baud)
	} else {
		fmt.Fprintln(out, "traceswo: capturing (async)")
	}
	return nil
}

func cmdDebugBMP(ctx context.Context, m *Monitor, args []string, out *strings.Builder) error {
	if len(args) > 0 {
		m.debugBMPOn = args[0] == "enable"
	}
	fmt.Fprintf(out, "Debug mode is %s\n", enabledDisabled(m.debugBMPOn))
	return nil
}

func enabledDisabled(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}

func cmdGcore(ctx context.Context, m *Monitor, args []string, out *strings.Builder) error {
	dir := m.coreDir
	if len(args) > 0 {
		dir = args[0]
	}
	dumper, ok := m.target.(coreDumper)
	if !ok {
		return fmt.Errorf("gcore: target does not support core dumping")
	}
	path, err := dumper.DumpCore(ctx, dir, m.resetSig, time.Now())
	if err != nil {
		return fmt.Errorf("gcore: %w", err)
	}
	fmt.Fprintf(out, "core dump written: %s\n", path)
	return nil
}

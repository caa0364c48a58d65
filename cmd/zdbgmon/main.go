// zdbgmon is the interactive front-end for the monitor command shell: a
// raw-terminal line reader that dispatches each line through the engine's
// Monitor and prints the response.
//
// Raw mode is needed so backspace and Ctrl-C are handled a line at a time
// instead of being left to the normal tty line discipline.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/zynqamp/dbgprobe"
)

func main() {
	debugAPBBase := flag.Int64("debug-apb-base", 0xF889A000, "physical base address of the Cortex-A9 external debug APB window")
	slcrBase := flag.Int64("slcr-base", 0xF8000000, "physical base address of the Zynq SLCR block")
	coreDir := flag.String("core-dir", "/tmp/cores", "directory to write gcore dumps to")
	haltTimeout := flag.Duration("halt-timeout", 2*time.Second, "timeout for each injected debug instruction to complete")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dbg, err := dbgprobe.MapPhysicalWindow("debug-apb", *debugAPBBase, 4096)
	if err != nil {
		fmt.Fprintln(os.Stderr, "zdbgmon: map debug APB window:", err)
		os.Exit(1)
	}
	defer dbg.Close()

	slcr, err := dbgprobe.MapPhysicalWindow("slcr", *slcrBase, 4096)
	if err != nil {
		fmt.Fprintln(os.Stderr, "zdbgmon: map SLCR window:", err)
		os.Exit(1)
	}
	defer slcr.Close()

	target, err := dbgprobe.NewCortexA9Target(dbg, slcr, dbgprobe.NewExecResetStrategy(), *haltTimeout, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "zdbgmon: probe target:", err)
		os.Exit(1)
	}
	defer target.Close()

	if err := target.Attach(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "zdbgmon: attach:", err)
		os.Exit(1)
	}
	defer target.Detach(context.Background())

	cfg := dbgprobe.DefaultEngineConfig()
	cfg.HaltTimeout = *haltTimeout
	cfg.CoreDir = *coreDir
	mon := dbgprobe.NewMonitor(target, cfg)

	runShell(ctx, mon)
}

// runShell puts stdin into raw mode (when it's a real terminal) and reads
// one line at a time, dispatching each through mon until EOF or ctx is
// cancelled.
func runShell(ctx context.Context, mon *dbgprobe.Monitor) {
	fd := int(os.Stdin.Fd())

	if term.IsTerminal(fd) {
		old, err := term.MakeRaw(fd)
		if err == nil {
			defer term.Restore(fd, old)
		}
	}

	stdin := bufio.NewReader(os.Stdin)

	fmt.Fprint(os.Stdout, "zdbgmon> ")
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := readRawLine(stdin)
		if err != nil {
			return
		}

		cmd := parseCommandLine(line)
		out, err := mon.Dispatch(ctx, cmd)
		fmt.Fprint(os.Stdout, strings.ReplaceAll(out, "\n", "\r\n"))
		if err != nil {
			fmt.Fprintf(os.Stdout, "error: %v\r\n", err)
		}
		fmt.Fprint(os.Stdout, "zdbgmon> ")
	}
}

// readRawLine accumulates bytes until a carriage return or newline,
// handling backspace (0x7f) the way a normal tty line discipline would,
// since raw mode leaves that to us.
func readRawLine(r *bufio.Reader) (string, error) {
	var line []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		switch b {
		case '\r', '\n':
			fmt.Fprint(os.Stdout, "\r\n")
			return string(line), nil
		case 0x7f, '\b':
			if len(line) > 0 {
				line = line[:len(line)-1]
				fmt.Fprint(os.Stdout, "\b \b")
			}
		case 0x03: // Ctrl-C
			return "", fmt.Errorf("interrupted")
		default:
			line = append(line, b)
			fmt.Fprintf(os.Stdout, "%c", b)
		}
	}
}

func parseCommandLine(line string) dbgprobe.MonitorCommand {
	return dbgprobe.ParseCommand(line)
}

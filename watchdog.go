// watchdog.go - Crash watchdog: attach once, then poll halt status
// forever, dumping core and resetting on anything that isn't a clean
// running state.
//
// The watchdog treats every halt reason other than "still running" as
// terminal: there is no interactive session behind it deciding whether to
// continue past a breakpoint, so a breakpoint, watchpoint, fault, or
// unexpected halt request all lead to the same dump-and-reset action.

package dbgprobe

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CrashWatchdog owns the attach/poll/dump/reset cycle for one slave core.
type CrashWatchdog struct {
	target   DebugTarget
	coreDir  string
	pollTick time.Duration
	log      *slog.Logger

	attached bool
}

// NewCrashWatchdog returns a watchdog that polls target every pollTick and
// writes core files under coreDir.
func NewCrashWatchdog(target DebugTarget, coreDir string, pollTick time.Duration, log *slog.Logger) *CrashWatchdog {
	if log == nil {
		log = slog.Default()
	}
	return &CrashWatchdog{target: target, coreDir: coreDir, pollTick: pollTick, log: log}
}

// Run polls until ctx is cancelled, dumping core and resetting the target
// whenever it observes anything other than a running core.
func (w *CrashWatchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.poll(ctx); err != nil {
				w.log.Error("watchdog poll failed", "error", err)
			}
		}
	}
}

func (w *CrashWatchdog) poll(ctx context.Context) error {
	if !w.attached {
		if err := w.target.Attach(ctx); err != nil {
			return fmt.Errorf("attach: %w", err)
		}
		w.attached = true
		if err := w.target.HaltResume(ctx, false); err != nil {
			return fmt.Errorf("resume after attach: %w", err)
		}
		return nil
	}

	reason, addr, err := w.target.HaltPoll(ctx)
	if err != nil {
		return fmt.Errorf("halt poll: %w", err)
	}

	switch reason {
	case HaltRunning, HaltError:
		return nil

	case HaltWatchpoint, HaltRequest, HaltStepping, HaltFault, HaltBreakpoint:
		w.log.Warn("core halted unexpectedly", "reason", reason.String(), "addr", fmt.Sprintf("0x%08x", addr))

		if dumper, ok := w.target.(coreDumper); ok {
			path, dumpErr := dumper.DumpCore(ctx, w.coreDir, crashSignalFor(reason), time.Now())
			if dumpErr != nil {
				w.log.Error("core dump failed", "error", dumpErr)
			} else {
				w.log.Info("core dump written", "path", path)
			}
		} else {
			w.log.Warn("target does not support core dumping, skipping")
		}

		if err := w.target.Reset(ctx); err != nil {
			return fmt.Errorf("reset after crash: %w", err)
		}
		if err := w.target.HaltResume(ctx, false); err != nil {
			return fmt.Errorf("resume after reset: %w", err)
		}
		return nil

	default:
		return nil
	}
}

// crashSignalFor maps a halt reason to the Unix signal number recorded in
// the core file's NT_PRSTATUS note, matching the signal a debugger would
// expect for the analogous fault.
func crashSignalFor(reason HaltReason) int32 {
	switch reason {
	case HaltWatchpoint:
		return 5 // SIGTRAP
	case HaltFault:
		return 11 // SIGSEGV
	default:
		return 5 // SIGTRAP
	}
}

// coreDumper is implemented by targets that can produce an ELF core file
// of their own state. CrashWatchdog is built against the DebugTarget
// interface everywhere else so it can be driven by a fake in tests; core
// dumping is the one operation that needs more than DebugTarget exposes
// (direct physical-memory and register-cache access), so it's its own
// narrow interface, satisfied optionally via a type assertion.
type coreDumper interface {
	DumpCore(ctx context.Context, dir string, signal int32, at time.Time) (string, error)
}

// DumpCore implements coreDumper for CortexA9Target.
func (t *CortexA9Target) DumpCore(ctx context.Context, dir string, signal int32, at time.Time) (string, error) {
	return WriteCoreFile(ctx, t, dir, signal, at)
}

// engine.go - Target handle and capability interface for the ARMv7-A
// external debug engine.
//
// Per the redesign notes carried over from the original firmware: no
// process-wide globals and no function-pointer vtable. State lives in an
// explicit target value; dispatch goes through a plain Go interface so a
// future non-Cortex-A9 variant is just another implementation, not a new
// branch threaded through every call site.

package dbgprobe

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RegisterCache mirrors the Cortex-A9 register file as captured at the most
// recent halt. It is only meaningful while the target is halted: it is read
// in on halt and written back just before resume.
type RegisterCache struct {
	R     [16]uint32 // r0-r15; r13=sp, r14=lr, r15=pc (architectural, post-adjustment)
	CPSR  uint32
	FPSCR uint32
	D     [16]uint64 // d0-d15
}

// BreakwatchKind identifies the hardware facility a Breakwatch requests.
type BreakwatchKind int

const (
	BreakSoft   BreakwatchKind = iota // unused: no software breakpoint support
	BreakHard                         // hardware instruction breakpoint
	WatchRead
	WatchWrite
	WatchAccess
)

func (k BreakwatchKind) String() string {
	switch k {
	case BreakSoft:
		return "soft-bp"
	case BreakHard:
		return "hard-bp"
	case WatchRead:
		return "watch-read"
	case WatchWrite:
		return "watch-write"
	case WatchAccess:
		return "watch-access"
	default:
		return "unknown"
	}
}

// Breakwatch is owned by the caller (the monitor/debug host layer) and
// presented to the target at set/clear time. The core only ever writes to
// the slot field; the caller owns the record's lifetime.
type Breakwatch struct {
	Kind BreakwatchKind
	Addr uint32
	Size uint8 // 1, 2, or 4

	slot int // hardware slot index assigned by BreakwatchSet; core-owned
}

// HaltReason tags why the core is (or is not) halted. HaltPoll returns an
// address alongside it; that address is 0 for every reason, HaltWatchpoint
// included.
type HaltReason int

const (
	HaltRunning HaltReason = iota
	HaltRequest
	HaltStepping
	HaltBreakpoint
	HaltWatchpoint
	HaltFault
	HaltError
)

func (r HaltReason) String() string {
	switch r {
	case HaltRunning:
		return "running"
	case HaltRequest:
		return "request"
	case HaltStepping:
		return "stepping"
	case HaltBreakpoint:
		return "breakpoint"
	case HaltWatchpoint:
		return "watchpoint"
	case HaltFault:
		return "fault"
	case HaltError:
		return "error"
	default:
		return "unknown"
	}
}

// DebugTarget is the capability interface the crash watchdog, the monitor
// shell, and the coredump builder drive a slave core through. CortexA9Target
// is the only implementation today; a second ARMv7-A or ARMv8 variant would
// add another without touching callers.
type DebugTarget interface {
	Attach(ctx context.Context) error
	Detach(ctx context.Context) error
	Reset(ctx context.Context) error

	HaltRequest(ctx context.Context) error
	HaltPoll(ctx context.Context) (HaltReason, uint32, error)
	HaltResume(ctx context.Context, step bool) error

	RegsRead(out *RegisterCache)
	RegsWrite(in *RegisterCache)

	ReadMemory(ctx context.Context, dst []byte, va uint32) error
	WriteMemory(ctx context.Context, va uint32, src []byte) error
	CheckError() error

	BreakwatchSet(bw *Breakwatch) error
	BreakwatchClear(bw *Breakwatch) error

	Close() error
}

// CortexA9Target is the ARMv7-A Cortex-A9 external debug engine for one
// attached Zynq-7000 AMP slave core. Created at probe time, destroyed on
// detach, never shared between controlling goroutines.
type CortexA9Target struct {
	dbg  *RegisterWindow
	slcr *RegisterWindow

	cache RegisterCache

	hwBreakpointMax  int
	hwBreakpointMask uint16
	bcr0, bvr0       uint32

	hwWatchpointMax  int
	hwWatchpointMask uint16

	mmuFault bool

	resetStrategy ResetStrategy
	haltTimeout   time.Duration

	log *slog.Logger
}

// NewCortexA9Target probes DBGDIDR for the hardware breakpoint/watchpoint
// counts and returns a target ready for Attach. dbg and slcr must already be
// mapped (see MapPhysicalWindow / newFakeWindow).
func NewCortexA9Target(dbg, slcr *RegisterWindow, strategy ResetStrategy, haltTimeout time.Duration, log *slog.Logger) (*CortexA9Target, error) {
	if log == nil {
		log = slog.Default()
	}
	t := &CortexA9Target{
		dbg:           dbg,
		slcr:          slcr,
		resetStrategy: strategy,
		haltTimeout:   haltTimeout,
		log:           log,
	}

	if err := t.waitClockUngated(context.Background()); err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}

	dbgdidr := t.dbg.Read(regDBGDIDR)
	t.hwBreakpointMax = int((dbgdidr>>24)&0xf) + 1
	t.hwWatchpointMax = int((dbgdidr>>28)&0xf) + 1

	return t, nil
}

var _ DebugTarget = (*CortexA9Target)(nil)

// CheckError returns whether a memory or translation operation has latched
// a sticky MMU fault since the last call, clearing the flag in the same
// operation.
func (t *CortexA9Target) CheckError() error {
	err := t.mmuFault
	t.mmuFault = false
	if err {
		return ErrMMUFault
	}
	return nil
}

func (t *CortexA9Target) Close() error {
	var dbgErr, slcrErr error
	if t.dbg != nil {
		dbgErr = t.dbg.Close()
	}
	if t.slcr != nil {
		slcrErr = t.slcr.Close()
	}
	if dbgErr != nil {
		return dbgErr
	}
	return slcrErr
}

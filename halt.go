// halt.go - Attach/detach lifecycle and the halt/resume/step state
// machine.
//
// Attach claims the debug APB (DBGLAR unlock, HDBGEn+ITREn, vector catch on
// undefined/prefetch-abort/data-abort) and halts the core so the register
// cache starts in a known state. Detach clears the breakpoints, vector
// catch, HDBGEn and ITREn again; it leaves DBGLAR unlocked. HaltResume reprograms slot 0 as an instruction-mismatch breakpoint
// at the current PC for single-step, or restores the caller's own slot-0
// breakpoint otherwise.

package dbgprobe

import (
	"context"
	"fmt"
	"time"
)

const (
	clockWaitDeadline    = 2 * time.Second
	haltRequestDeadline  = 2 * time.Second
	instrComplDeadline   = 200 * time.Millisecond
	restartAckDeadline   = 200 * time.Millisecond
	restartAckInterval   = time.Millisecond
)

// waitClockUngated polls the SLCR A9 reset-control register until the
// slave core's clock is no longer gated. A gated clock means the debug
// APB will never acknowledge a request; callers must wait here first
// rather than let a later operation time out mysteriously.
func (t *CortexA9Target) waitClockUngated(ctx context.Context) error {
	return boundedPoll(ctx, clockWaitDeadline, pollInterval, func() (bool, error) {
		return t.slcr.Read(slcrA9CPURstCtrl)&slcrA9ClkStop1 == 0, nil
	})
}

// Attach unlocks the debug APB, enables halting debug mode and instruction
// injection, catches the undefined-instruction and abort vectors, and
// halts the core.
func (t *CortexA9Target) Attach(ctx context.Context) error {
	t.mmuFault = false

	if err := t.waitClockUngated(ctx); err != nil {
		return fmt.Errorf("attach: %w", err)
	}

	t.dbg.Write(regDBGLAR, dbglarKey)
	t.dbg.Write(regDBGDSCR, dbgdscrHDBGEn|dbgdscrITREn|dbgdscrExtDCCModeStall)

	if err := t.HaltRequest(ctx); err != nil {
		return fmt.Errorf("attach: %w", err)
	}

	if err := boundedPoll(ctx, 10*instrComplDeadline, pollInterval, func() (bool, error) {
		return t.dbg.Read(regDBGDSCR)&dbgdscrHalted != 0, nil
	}); err != nil {
		return fmt.Errorf("attach: waiting for halt: %w", err)
	}

	t.dbg.Write(regDBGVCR, dbgvcrSU|dbgvcrSP|dbgvcrSD)
	for i := 0; i < t.hwBreakpointMax; i++ {
		t.dbg.Write(regDBGBCR(i), 0)
	}

	if err := t.regsReadInternal(ctx); err != nil {
		return fmt.Errorf("attach: %w", err)
	}

	return nil
}

// Detach clears every breakpoint, vector catch, and debug-enable bit this
// engine set and restarts the core. The debug APB is not locked again
// (DBGLAR is not written).
func (t *CortexA9Target) Detach(ctx context.Context) error {
	for i := 0; i < t.hwBreakpointMax; i++ {
		t.dbg.Write(regDBGBCR(i), 0)
	}
	t.dbg.Write(regDBGVCR, 0)

	if err := t.regsWriteInternal(ctx); err != nil {
		return fmt.Errorf("detach: %w", err)
	}

	if err := t.exec(ctx, opMCR|iciallu); err != nil {
		return fmt.Errorf("detach: %w", err)
	}

	if err := boundedPoll(ctx, instrComplDeadline, pollInterval, func() (bool, error) {
		return t.dbg.Read(regDBGDSCR)&dbgdscrInstrCompl != 0, nil
	}); err != nil {
		return fmt.Errorf("detach: %w", err)
	}

	dscr := t.dbg.Read(regDBGDSCR)
	dscr &^= dbgdscrHDBGEn | dbgdscrITREn
	t.dbg.Write(regDBGDSCR, dscr)
	t.dbg.Write(regDBGDRCR, dbgdrcrCSE|dbgdrcrRRQ)

	return nil
}

// HaltRequest asks the core to halt via DBGDRCR.HRQ. It does not wait for
// the halt to take effect; call HaltPoll to observe it.
func (t *CortexA9Target) HaltRequest(ctx context.Context) error {
	_, err := boundedCall(ctx, haltRequestDeadline, func() (struct{}, error) {
		return struct{}{}, safeAPBWrite(t.dbg, regDBGDRCR, dbgdrcrHRQ)
	})
	if err != nil {
		return fmt.Errorf("halt request: %w", err)
	}
	return nil
}

// HaltPoll reads DBGDSCR once and reports whether the core is halted and,
// if so, why. A running core reports HaltRunning with no error: this is
// the expected steady state of a poll loop, not a failure.
func (t *CortexA9Target) HaltPoll(ctx context.Context) (HaltReason, uint32, error) {
	dscr, err := boundedCall(ctx, haltRequestDeadline, func() (uint32, error) {
		return safeAPBRead(t.dbg, regDBGDSCR)
	})
	if err != nil {
		return HaltError, 0, fmt.Errorf("halt poll: %w", err)
	}

	if dscr&dbgdscrHalted == 0 {
		return HaltRunning, 0, nil
	}

	// Re-enable instruction injection: a halt (as opposed to a resume)
	// always clears ITREn, and every subsequent register/memory access
	// depends on it.
	t.dbg.Write(regDBGDSCR, dscr|dbgdscrITREn)

	if err := t.regsReadInternal(ctx); err != nil {
		return HaltError, 0, fmt.Errorf("halt poll: %w", err)
	}

	reason, addr := decodeMOE(dscr)
	return reason, addr, nil
}

// decodeMOE maps the DBGDSCR method-of-entry field to a HaltReason. Both
// watchpoint MOEs map to HaltWatchpoint with address 0, however many
// watchpoints are armed: which watchpoint fired is not identified. Every
// other MOE except a halt request maps to HaltBreakpoint.
func decodeMOE(dscr uint32) (HaltReason, uint32) {
	switch dscr & dbgdscrMOEMask {
	case dbgdscrMOEHaltReq:
		return HaltRequest, 0
	case dbgdscrMOEWatchAsync, dbgdscrMOEWatchSync:
		return HaltWatchpoint, 0
	default:
		return HaltBreakpoint, 0
	}
}

// HaltResume writes the cached registers back, reprograms slot 0 for
// single-step if requested (otherwise restores the caller's own slot-0
// breakpoint), and restarts the core.
func (t *CortexA9Target) HaltResume(ctx context.Context, step bool) error {
	if step {
		pc := t.cache.R[15]
		size := uint8(4)
		if t.cache.CPSR&cpsrThumb != 0 {
			size = 2
		}
		t.dbg.Write(regDBGBVR(0), pc&^3)
		t.dbg.Write(regDBGBCR(0), bpBas(pc, size)|dbgbcrInstMismatch|dbgbcrEn)
	} else {
		t.dbg.Write(regDBGBVR(0), t.bvr0)
		t.dbg.Write(regDBGBCR(0), t.bcr0)
	}

	if err := t.regsWriteInternal(ctx); err != nil {
		return fmt.Errorf("halt resume: %w", err)
	}

	if err := t.exec(ctx, opMCR|iciallu); err != nil {
		return fmt.Errorf("halt resume: %w", err)
	}

	if err := boundedPoll(ctx, instrComplDeadline, pollInterval, func() (bool, error) {
		return t.dbg.Read(regDBGDSCR)&dbgdscrInstrCompl != 0, nil
	}); err != nil {
		return fmt.Errorf("halt resume: %w", err)
	}

	dscr := t.dbg.Read(regDBGDSCR)
	if step {
		dscr |= dbgdscrIntDis
	} else {
		dscr &^= dbgdscrIntDis
	}
	dscr &^= dbgdscrITREn
	t.dbg.Write(regDBGDSCR, dscr)

	err := boundedPoll(ctx, restartAckDeadline, restartAckInterval, func() (bool, error) {
		t.dbg.Write(regDBGDRCR, dbgdrcrCSE|dbgdrcrRRQ)
		return t.dbg.Read(regDBGDSCR)&dbgdscrRestarted != 0, nil
	})
	if err != nil {
		return fmt.Errorf("halt resume: waiting for restart: %w", err)
	}
	return nil
}

// Step halts for exactly one instruction and reports whether it completed
// cleanly (a breakpoint reason) as opposed to being interrupted by some
// other event.
func (t *CortexA9Target) Step(ctx context.Context) (bool, error) {
	if err := t.HaltResume(ctx, true); err != nil {
		return false, err
	}
	reason, _, err := t.HaltPoll(ctx)
	if err != nil {
		return false, err
	}
	return reason == HaltBreakpoint, nil
}

// Reset tears down and reloads the slave core via the configured
// ResetStrategy, then waits for the slave's clock and re-reads its
// registers; it does not run Attach again. It steps over the two-instruction boot
// trampoline the reload leaves the core sitting at before handing control
// back to the caller, and restores the vector-catch configuration the
// caller had in effect (only the reset vector is caught across the reset
// itself, so the engine observes its own reload completing).
func (t *CortexA9Target) Reset(ctx context.Context) error {
	savedVCR := t.dbg.Read(regDBGVCR)
	t.dbg.Write(regDBGVCR, dbgvcrR)

	if err := t.resetStrategy.TeardownAndReload(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	if err := t.waitClockUngated(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	if err := t.regsReadInternal(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	t.dbg.Write(regDBGVCR, 0)

	for i := 0; i < 2; i++ {
		ok, err := t.Step(ctx)
		if err != nil {
			return fmt.Errorf("reset: stepping boot trampoline: %w", err)
		}
		if !ok {
			return fmt.Errorf("reset: stepping boot trampoline: %w", ErrNotHalted)
		}
	}

	t.dbg.Write(regDBGVCR, savedVCR)
	return nil
}

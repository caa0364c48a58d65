// dcc_shuttle.go - Instruction injection and the debug communications
// channel (DCC), the two primitives the register cache and the memory
// engine are built from.
//
// exec() injects one ARM instruction into the halted core via DBGITR and
// waits for it to retire. The general-purpose registers accessor moves a
// value between a core register and the debug host through DBGDTRTX/RX,
// using MCR/MRC to GP-register shuttle instructions executed via exec().

package dbgprobe

import (
	"context"
	"fmt"
)

// exec injects instr into the halted core's pipeline and waits for it to
// complete. The core must already be halted with HDBGEn and ITREn set.
func (t *CortexA9Target) exec(ctx context.Context, instr uint32) error {
	t.dbg.Write(regDBGITR, instr)
	return boundedPoll(ctx, t.haltTimeout, pollInterval, func() (bool, error) {
		return t.dbg.Read(regDBGDSCR)&dbgdscrInstrCompl != 0, nil
	})
}

// readGPReg moves core register n into the debug host via
// "mcr p14, 0, rn, c0, c5, 0" followed by a DBGDTRTX read.
func (t *CortexA9Target) readGPReg(ctx context.Context, n int) (uint32, error) {
	if err := t.exec(ctx, opMCR|cpreg(14, 0, uint32(n), 0, 5, 0)); err != nil {
		return 0, fmt.Errorf("read r%d: %w", n, err)
	}
	return t.dbg.Read(regDBGDTRTX), nil
}

// writeGPReg moves val from the debug host into core register n via a
// DBGDTRRX write followed by "mrc p14, 0, rn, c0, c5, 0".
func (t *CortexA9Target) writeGPReg(ctx context.Context, n int, val uint32) error {
	t.dbg.Write(regDBGDTRRX, val)
	if err := t.exec(ctx, opMRC|cpreg(14, 0, uint32(n), 0, 5, 0)); err != nil {
		return fmt.Errorf("write r%d: %w", n, err)
	}
	return nil
}

// setDCCMode switches the external DCC between STALL (instruction-by-
// instruction, used by register access) and FAST (block transfer, used by
// the memory engine's LDC/STC fast paths).
func (t *CortexA9Target) setDCCMode(mode uint32) {
	dscr := t.dbg.Read(regDBGDSCR)
	dscr = (dscr &^ dbgdscrExtDCCModeMask) | mode
	t.dbg.Write(regDBGDSCR, dscr)
}

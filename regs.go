// regs.go - Register cache read/write and the GDB target-description XML
// advertised to the monitor host.
//
// All sixteen general-purpose registers, CPSR, FPSCR, and the sixteen VFP
// double registers are moved through the DCC one at a time; there is no
// block register transfer on this core. PC requires an adjustment after
// capture: "mov r0, pc" reads the address two instructions ahead of the
// one the core halted on (8 bytes in ARM state, 4 bytes in Thumb state).

package dbgprobe

import "context"

// regsReadInternal captures the full register file from the halted core
// into t.cache. The core must already be halted.
func (t *CortexA9Target) regsReadInternal(ctx context.Context) error {
	for i := 0; i < 15; i++ {
		v, err := t.readGPReg(ctx, i)
		if err != nil {
			return err
		}
		t.cache.R[i] = v
	}

	if err := t.exec(ctx, instrMovR0PC); err != nil {
		return err
	}
	pc, err := t.readGPReg(ctx, 0)
	if err != nil {
		return err
	}
	t.cache.R[15] = pc

	if err := t.exec(ctx, instrMRSCPSR); err != nil {
		return err
	}
	cpsr, err := t.readGPReg(ctx, 0)
	if err != nil {
		return err
	}
	t.cache.CPSR = cpsr

	if err := t.exec(ctx, instrVMRSFPSCR); err != nil {
		return err
	}
	fpscr, err := t.readGPReg(ctx, 0)
	if err != nil {
		return err
	}
	t.cache.FPSCR = fpscr

	for i := 0; i < 16; i++ {
		if err := t.exec(ctx, instrVMovToGP(i)); err != nil {
			return err
		}
		lo, err := t.readGPReg(ctx, 0)
		if err != nil {
			return err
		}
		hi, err := t.readGPReg(ctx, 1)
		if err != nil {
			return err
		}
		t.cache.D[i] = uint64(hi)<<32 | uint64(lo)
	}

	// The core reports PC two instructions ahead of the halted one: 2x2
	// bytes in Thumb state, 2x4 bytes in ARM state.
	if t.cache.CPSR&cpsrThumb != 0 {
		t.cache.R[15] -= 4
	} else {
		t.cache.R[15] -= 8
	}

	return nil
}

// regsWriteInternal pushes t.cache back into the halted core, in the
// reverse order of regsReadInternal: VFP state first, then CPSR, then PC,
// then the general-purpose registers r0-r14 last, because the VFP, CPSR
// and PC writes all pass through r0 and r1 as scratch.
func (t *CortexA9Target) regsWriteInternal(ctx context.Context) error {
	for i := 0; i < 16; i++ {
		lo := uint32(t.cache.D[i])
		hi := uint32(t.cache.D[i] >> 32)
		if err := t.writeGPReg(ctx, 0, lo); err != nil {
			return err
		}
		if err := t.writeGPReg(ctx, 1, hi); err != nil {
			return err
		}
		if err := t.exec(ctx, instrVMovFromGP(i)); err != nil {
			return err
		}
	}

	if err := t.writeGPReg(ctx, 0, t.cache.FPSCR); err != nil {
		return err
	}
	if err := t.exec(ctx, instrVMSRFPSCR); err != nil {
		return err
	}

	if err := t.writeGPReg(ctx, 0, t.cache.CPSR); err != nil {
		return err
	}
	if err := t.exec(ctx, instrMSRCPSR); err != nil {
		return err
	}

	if err := t.writeGPReg(ctx, 0, t.cache.R[15]); err != nil {
		return err
	}
	if err := t.exec(ctx, instrMovPCR0); err != nil {
		return err
	}

	for i := 0; i < 15; i++ {
		if err := t.writeGPReg(ctx, i, t.cache.R[i]); err != nil {
			return err
		}
	}

	return nil
}

// RegsRead copies the cached register file into out. It does not touch the
// core: the cache is only as fresh as the last halt.
func (t *CortexA9Target) RegsRead(out *RegisterCache) {
	*out = t.cache
}

// RegsWrite replaces the cached register file with in. The new values take
// effect on the core at the next HaltResume.
func (t *CortexA9Target) RegsWrite(in *RegisterCache) {
	t.cache = *in
}

// TargetDescriptionXML is the GDB target-description document a host
// transport advertises over qXfer:features:read: the ARM core registers and
// a VFP feature with d0-d15 and fpscr; it includes no NEON feature. The host
// transport itself lives outside this package; this is the data it serves.
const TargetDescriptionXML = `<?xml version="1.0"?>
<!DOCTYPE target SYSTEM "gdb-target.dtd">
<target version="1.0">
  <architecture>arm</architecture>
  <feature name="org.gnu.gdb.arm.core">
    <reg name="r0" bitsize="32"/>
    <reg name="r1" bitsize="32"/>
    <reg name="r2" bitsize="32"/>
    <reg name="r3" bitsize="32"/>
    <reg name="r4" bitsize="32"/>
    <reg name="r5" bitsize="32"/>
    <reg name="r6" bitsize="32"/>
    <reg name="r7" bitsize="32"/>
    <reg name="r8" bitsize="32"/>
    <reg name="r9" bitsize="32"/>
    <reg name="r10" bitsize="32"/>
    <reg name="r11" bitsize="32"/>
    <reg name="r12" bitsize="32"/>
    <reg name="sp" bitsize="32" type="data_ptr"/>
    <reg name="lr" bitsize="32"/>
    <reg name="pc" bitsize="32" type="code_ptr"/>
    <reg name="cpsr" bitsize="32" regnum="25"/>
  </feature>
  <feature name="org.gnu.gdb.arm.vfp">
    <reg name="d0" bitsize="64" type="ieee_double"/>
    <reg name="d1" bitsize="64" type="ieee_double"/>
    <reg name="d2" bitsize="64" type="ieee_double"/>
    <reg name="d3" bitsize="64" type="ieee_double"/>
    <reg name="d4" bitsize="64" type="ieee_double"/>
    <reg name="d5" bitsize="64" type="ieee_double"/>
    <reg name="d6" bitsize="64" type="ieee_double"/>
    <reg name="d7" bitsize="64" type="ieee_double"/>
    <reg name="d8" bitsize="64" type="ieee_double"/>
    <reg name="d9" bitsize="64" type="ieee_double"/>
    <reg name="d10" bitsize="64" type="ieee_double"/>
    <reg name="d11" bitsize="64" type="ieee_double"/>
    <reg name="d12" bitsize="64" type="ieee_double"/>
    <reg name="d13" bitsize="64" type="ieee_double"/>
    <reg name="d14" bitsize="64" type="ieee_double"/>
    <reg name="d15" bitsize="64" type="ieee_double"/>
    <reg name="fpscr" bitsize="32" type="int" group="float"/>
  </feature>
</target>
`

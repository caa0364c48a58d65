// memory.go - Virtual-to-physical translation, cache maintenance (also run
// ahead of core dumps), and the word-at-a-time memory engine used for live
// target memory access.
//
// The debug APB has no direct memory port: every access goes through the
// halted core's own MMU and caches by injecting ATS1CPR (address
// translation) and LDC/STC-via-DCC (data movement) instructions. Reads and
// writes therefore run at a handful of instructions per word and are only
// ever used for small, targeted transfers; bulk core-dump reads instead
// mmap /dev/mem directly once the physical address is known.

package dbgprobe

import (
	"context"
	"fmt"
)

// vaToPA translates a virtual address through the halted core's own MMU
// using ATS1CPR, leaving the page offset untouched. A translation fault
// sets the sticky mmuFault flag (reported by CheckError) and is also
// returned at once as ErrMMUFault.
func (t *CortexA9Target) vaToPA(ctx context.Context, va uint32) (uint32, error) {
	if err := t.writeGPReg(ctx, 0, va); err != nil {
		return 0, err
	}
	if err := t.exec(ctx, opMCR|ats1cpr); err != nil {
		return 0, err
	}
	if err := t.exec(ctx, opMRC|parReg); err != nil {
		return 0, err
	}
	par, err := t.readGPReg(ctx, 0)
	if err != nil {
		return 0, err
	}
	if par&1 != 0 {
		t.mmuFault = true
		return 0, fmt.Errorf("va_to_pa 0x%08x: %w", va, ErrMMUFault)
	}
	return (par &^ 0xfff) | (va & 0xfff), nil
}

// cacheClean writes back length bytes starting at va through the D-cache
// one cache line at a time via DCCMVAC, so that a subsequent /dev/mem
// mmap read observes the core's own writes.
func (t *CortexA9Target) cacheClean(ctx context.Context, va uint32, length int) error {
	start := va &^ (cacheLineLength - 1)
	end := va + uint32(length)
	for line := start; line < end; line += cacheLineLength {
		if err := t.writeGPReg(ctx, 0, line); err != nil {
			return err
		}
		if err := t.exec(ctx, opMCR|dccmvac); err != nil {
			return err
		}
	}
	return nil
}

// slowMemRead reads len(dst) bytes starting at virtual address src into
// dst, using the FAST DCC mode LDC block-transfer path. The first word out
// of DBGDTRTX after switching modes is stale pipeline fill and is
// discarded, matching the handshake the core's LDC instruction requires.
func (t *CortexA9Target) slowMemRead(ctx context.Context, dst []byte, src uint32) error {
	if len(dst) == 0 {
		return nil
	}

	misalign := src & 3
	aligned := src &^ 3
	words := alignedWordCount(src, len(dst))

	if err := t.writeGPReg(ctx, 0, aligned); err != nil {
		return err
	}

	t.setDCCMode(dbgdscrExtDCCModeFast)
	defer t.setDCCMode(dbgdscrExtDCCModeStall)

	if err := t.exec(ctx, instrLDCBlock); err != nil {
		return err
	}

	t.dbg.Read(regDBGDTRTX) // discard: first word is pipeline fill

	buf := make([]byte, words*4)
	for i := 0; i < words; i++ {
		w, err := safeAPBRead(t.dbg, regDBGDTRTX)
		if err != nil {
			return fmt.Errorf("slow_mem_read 0x%08x: %w", src, err)
		}
		putLE32(buf[i*4:], w)
	}

	dscr := t.dbg.Read(regDBGDSCR)
	if dscr&dbgdscrSDAbortL != 0 {
		t.mmuFault = true
		t.dbg.Write(regDBGDRCR, dbgdrcrCSE)
		return fmt.Errorf("slow_mem_read 0x%08x: %w", src, ErrMMUFault)
	}
	t.dbg.Read(regDBGDTRTX) // drain the trailing handshake word

	copy(dst, buf[misalign:])
	return nil
}

// slowMemWrite writes src to virtual address dst. Word-aligned transfers
// of a whole number of words use the STC block-transfer fast path;
// anything else falls back to slowMemWriteBytes.
func (t *CortexA9Target) slowMemWrite(ctx context.Context, dst uint32, src []byte) error {
	if len(src) == 0 {
		return nil
	}
	if dst&3 != 0 || len(src)&3 != 0 {
		return t.slowMemWriteBytes(ctx, dst, src)
	}

	if err := t.writeGPReg(ctx, 0, dst); err != nil {
		return err
	}

	t.setDCCMode(dbgdscrExtDCCModeFast)
	defer t.setDCCMode(dbgdscrExtDCCModeStall)

	for i := 0; i < len(src); i += 4 {
		t.dbg.Write(regDBGDTRRX, getLE32(src[i:]))
		if err := t.exec(ctx, instrSTCBlock); err != nil {
			return err
		}
	}

	dscr := t.dbg.Read(regDBGDSCR)
	if dscr&dbgdscrSDAbortL != 0 {
		t.mmuFault = true
		t.dbg.Write(regDBGDRCR, dbgdrcrCSE)
		return fmt.Errorf("slow_mem_write 0x%08x: %w", dst, ErrMMUFault)
	}
	return nil
}

// slowMemWriteBytes writes src one byte at a time via a stack-relative
// store, for destinations or lengths that don't admit the STC fast path.
func (t *CortexA9Target) slowMemWriteBytes(ctx context.Context, dst uint32, src []byte) error {
	if err := t.writeGPReg(ctx, 13, dst); err != nil {
		return err
	}
	for _, b := range src {
		if err := t.writeGPReg(ctx, 0, uint32(b)); err != nil {
			return err
		}
		if err := t.exec(ctx, instrSTRB); err != nil {
			return err
		}
	}
	if t.dbg.Read(regDBGDSCR)&dbgdscrSDAbortL != 0 {
		t.mmuFault = true
		t.dbg.Write(regDBGDRCR, dbgdrcrCSE)
		return fmt.Errorf("slow_mem_write_bytes 0x%08x: %w", dst, ErrMMUFault)
	}
	return nil
}

// ReadMemory translates va through the core's MMU and reads len(dst) bytes
// of target memory starting there.
func (t *CortexA9Target) ReadMemory(ctx context.Context, dst []byte, va uint32) error {
	pa, err := t.vaToPA(ctx, va)
	if err != nil {
		return err
	}
	return t.slowMemRead(ctx, dst, pa)
}

// WriteMemory translates va through the core's MMU and writes src into
// target memory starting there.
func (t *CortexA9Target) WriteMemory(ctx context.Context, va uint32, src []byte) error {
	pa, err := t.vaToPA(ctx, va)
	if err != nil {
		return err
	}
	return t.slowMemWrite(ctx, pa, src)
}

// alignedWordCount returns how many 32-bit words a word-aligned transfer
// must move to cover length bytes starting at the (possibly misaligned)
// address src.
func alignedWordCount(src uint32, length int) int {
	return (length + int(src&3) + 3) / 4
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getLE32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// breakwatch.go - Hardware breakpoint and watchpoint slot allocation.
//
// The Cortex-A9 has a fixed number of breakpoint and watchpoint
// comparators, reported by DBGDIDR at probe time (hwBreakpointMax,
// hwWatchpointMax). Each caller-owned Breakwatch claims one slot, encoded
// into the matching DBGBVR/DBGBCR or DBGWVR/DBGWCR pair; only instruction
// breakpoints of size 2 or 4 bytes are supported, matching the core's BAS
// field width.

package dbgprobe

import "fmt"

// bpBas derives the byte-address-select field for a hardware instruction
// breakpoint covering size bytes at addr. A 4-byte breakpoint always
// matches the whole word; a 2-byte (Thumb) breakpoint matches whichever
// half-word addr falls in.
func bpBas(addr uint32, size uint8) uint32 {
	if size == 4 {
		return dbgbcrBASAny
	}
	if addr&2 != 0 {
		return dbgbcrBASHighHW
	}
	return dbgbcrBASLowHW
}

// wpBas derives the byte-address-select field for a hardware watchpoint
// covering size bytes at the byte offset addr&3 within its aligned word.
func wpBas(addr uint32, size uint8) uint32 {
	var bas uint32
	switch size {
	case 1:
		bas = dbgwcrBASByte
	case 2:
		bas = dbgwcrBASHalfword
	case 4:
		return dbgwcrBASWord
	default:
		return 0
	}
	return bas << (addr & 3)
}

// BreakwatchSet allocates a free hardware slot for bw and programs the
// corresponding comparator pair. bw.slot is filled in on success.
func (t *CortexA9Target) BreakwatchSet(bw *Breakwatch) error {
	switch bw.Kind {
	case BreakHard:
		return t.breakpointSet(bw)
	case WatchRead, WatchWrite, WatchAccess:
		return t.watchpointSet(bw)
	default:
		return fmt.Errorf("breakwatch set: %s: %w", bw.Kind, ErrUnsupportedSize)
	}
}

func (t *CortexA9Target) breakpointSet(bw *Breakwatch) error {
	if bw.Size != 2 && bw.Size != 4 {
		return fmt.Errorf("breakpoint size %d: %w", bw.Size, ErrUnsupportedSize)
	}
	slot := firstFreeSlot(t.hwBreakpointMask, t.hwBreakpointMax)
	if slot < 0 {
		return fmt.Errorf("breakpoint at 0x%08x: %w", bw.Addr, ErrNoFreeSlot)
	}

	bcr := bpBas(bw.Addr, bw.Size) | dbgbcrEn
	bvr := bw.Addr &^ 3

	t.dbg.Write(regDBGBVR(slot), bvr)
	t.dbg.Write(regDBGBCR(slot), bcr)
	t.hwBreakpointMask |= 1 << slot
	bw.slot = slot

	if slot == 0 {
		t.bcr0, t.bvr0 = bcr, bvr
	}
	return nil
}

func (t *CortexA9Target) watchpointSet(bw *Breakwatch) error {
	slot := firstFreeSlot(t.hwWatchpointMask, t.hwWatchpointMax)
	if slot < 0 {
		return fmt.Errorf("watchpoint at 0x%08x: %w", bw.Addr, ErrNoFreeSlot)
	}

	var lsc uint32
	switch bw.Kind {
	case WatchRead:
		lsc = dbgwcrLSCLoad
	case WatchWrite:
		lsc = dbgwcrLSCStore
	case WatchAccess:
		lsc = dbgwcrLSCAny
	}

	wcr := dbgwcrPACAny | dbgwcrEn | lsc | wpBas(bw.Addr, bw.Size)
	wvr := bw.Addr &^ 3

	t.dbg.Write(regDBGWVR(slot), wvr)
	t.dbg.Write(regDBGWCR(slot), wcr)
	t.hwWatchpointMask |= 1 << slot
	bw.slot = slot
	return nil
}

// BreakwatchClear disables bw's comparator and frees its slot.
func (t *CortexA9Target) BreakwatchClear(bw *Breakwatch) error {
	switch bw.Kind {
	case BreakHard:
		t.dbg.Write(regDBGBCR(bw.slot), 0)
		t.dbg.Write(regDBGBVR(bw.slot), 0)
		t.hwBreakpointMask &^= 1 << bw.slot
		if bw.slot == 0 {
			t.bcr0, t.bvr0 = 0, 0
		}
	case WatchRead, WatchWrite, WatchAccess:
		t.dbg.Write(regDBGWCR(bw.slot), 0)
		t.dbg.Write(regDBGWVR(bw.slot), 0)
		t.hwWatchpointMask &^= 1 << bw.slot
	default:
		return fmt.Errorf("breakwatch clear: %w", ErrUnsupportedSize)
	}
	return nil
}

// firstFreeSlot returns the lowest slot index below max whose bit is clear
// in mask, or -1 if all max slots are taken.
func firstFreeSlot(mask uint16, max int) int {
	for i := 0; i < max; i++ {
		if mask&(1<<i) == 0 {
			return i
		}
	}
	return -1
}

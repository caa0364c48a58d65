package dbgprobe

import "testing"

func TestBpBas(t *testing.T) {
	cases := []struct {
		addr uint32
		size uint8
		want uint32
	}{
		{0x1000, 4, dbgbcrBASAny},
		{0x1000, 2, dbgbcrBASLowHW},
		{0x1002, 2, dbgbcrBASHighHW},
	}
	for _, c := range cases {
		if got := bpBas(c.addr, c.size); got != c.want {
			t.Errorf("bpBas(0x%x, %d) = 0x%x, want 0x%x", c.addr, c.size, got, c.want)
		}
	}
}

func TestWpBas(t *testing.T) {
	cases := []struct {
		addr uint32
		size uint8
		want uint32
	}{
		{0x20000000, 4, dbgwcrBASWord},
		{0x20000002, 2, dbgwcrBASHalfword << 2},
		{0x20000001, 1, dbgwcrBASByte << 1},
	}
	for _, c := range cases {
		if got := wpBas(c.addr, c.size); got != c.want {
			t.Errorf("wpBas(0x%x, %d) = 0x%x, want 0x%x", c.addr, c.size, got, c.want)
		}
	}
}

func newTestTarget(t *testing.T) *CortexA9Target {
	t.Helper()
	dbg := newFakeWindow("dbg", 1100)
	slcr := newFakeWindow("slcr", 200)
	target, err := NewCortexA9Target(dbg, slcr, &fakeResetStrategy{}, 0, nil)
	if err != nil {
		t.Fatalf("NewCortexA9Target: %v", err)
	}
	target.hwBreakpointMax = 6
	target.hwWatchpointMax = 4
	return target
}

func TestBreakpointSetClear(t *testing.T) {
	target := newTestTarget(t)

	bw := &Breakwatch{Kind: BreakHard, Addr: 0x20000002, Size: 2}
	if err := target.BreakwatchSet(bw); err != nil {
		t.Fatalf("BreakwatchSet: %v", err)
	}
	if bw.slot != 0 {
		t.Fatalf("expected first breakpoint to land in slot 0, got %d", bw.slot)
	}

	bcr := target.dbg.Read(regDBGBCR(0))
	if bcr&dbgbcrEn == 0 {
		t.Errorf("BCR0 EN bit not set: 0x%x", bcr)
	}
	if bcr&dbgbcrBASHighHW == 0 {
		t.Errorf("BCR0 BAS field wrong for addr 0x20000002 size 2: 0x%x", bcr)
	}

	if err := target.BreakwatchClear(bw); err != nil {
		t.Fatalf("BreakwatchClear: %v", err)
	}
	if target.dbg.Read(regDBGBCR(0)) != 0 {
		t.Errorf("BCR0 not cleared after BreakwatchClear")
	}
	if target.dbg.Read(regDBGBVR(0)) != 0 {
		t.Errorf("BVR0 not cleared after BreakwatchClear")
	}
}

func TestBreakpointSlotAllocationIsLowestFree(t *testing.T) {
	target := newTestTarget(t)

	var bws []*Breakwatch
	for i := 0; i < 3; i++ {
		bw := &Breakwatch{Kind: BreakHard, Addr: uint32(0x1000 * (i + 1)), Size: 4}
		if err := target.BreakwatchSet(bw); err != nil {
			t.Fatalf("BreakwatchSet #%d: %v", i, err)
		}
		bws = append(bws, bw)
	}
	if bws[0].slot != 0 || bws[1].slot != 1 || bws[2].slot != 2 {
		t.Fatalf("unexpected slot assignment: %d %d %d", bws[0].slot, bws[1].slot, bws[2].slot)
	}

	if err := target.BreakwatchClear(bws[1]); err != nil {
		t.Fatalf("BreakwatchClear: %v", err)
	}

	bw4 := &Breakwatch{Kind: BreakHard, Addr: 0x4000, Size: 4}
	if err := target.BreakwatchSet(bw4); err != nil {
		t.Fatalf("BreakwatchSet #4: %v", err)
	}
	if bw4.slot != 1 {
		t.Fatalf("expected freed slot 1 to be reused, got slot %d", bw4.slot)
	}
}

func TestBreakpointNoFreeSlot(t *testing.T) {
	target := newTestTarget(t)
	target.hwBreakpointMax = 1

	first := &Breakwatch{Kind: BreakHard, Addr: 0x1000, Size: 4}
	if err := target.BreakwatchSet(first); err != nil {
		t.Fatalf("BreakwatchSet: %v", err)
	}

	second := &Breakwatch{Kind: BreakHard, Addr: 0x2000, Size: 4}
	if err := target.BreakwatchSet(second); err == nil {
		t.Fatalf("expected ErrNoFreeSlot, got nil")
	}
}

func TestBreakpointUnsupportedSize(t *testing.T) {
	target := newTestTarget(t)
	bw := &Breakwatch{Kind: BreakHard, Addr: 0x1000, Size: 1}
	if err := target.BreakwatchSet(bw); err == nil {
		t.Fatalf("expected ErrUnsupportedSize for a 1-byte hardware breakpoint")
	}
}

func TestWatchpointWriteEncoding(t *testing.T) {
	target := newTestTarget(t)
	bw := &Breakwatch{Kind: WatchWrite, Addr: 0x20000002, Size: 2}
	if err := target.BreakwatchSet(bw); err != nil {
		t.Fatalf("BreakwatchSet: %v", err)
	}

	wcr := target.dbg.Read(regDBGWCR(0))
	wvr := target.dbg.Read(regDBGWVR(0))

	if wvr != 0x20000000 {
		t.Errorf("WVR0 = 0x%x, want 0x20000000", wvr)
	}
	want := dbgwcrPACAny | dbgwcrEn | dbgwcrLSCStore | (dbgwcrBASHalfword << 2)
	if wcr != want {
		t.Errorf("WCR0 = 0x%x, want 0x%x", wcr, want)
	}
}

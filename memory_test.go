package dbgprobe

import (
	"context"
	"testing"
)

func TestAlignedWordCount(t *testing.T) {
	// 5 bytes starting at a source that is 3 bytes into its word: bytes
	// land at offsets 3..7, spanning two words.
	if got := alignedWordCount(0x10000003, 5); got != 2 {
		t.Errorf("alignedWordCount(0x10000003, 5) = %d, want 2", got)
	}
	if got := alignedWordCount(0x10000000, 4); got != 1 {
		t.Errorf("alignedWordCount(0x10000000, 4) = %d, want 1", got)
	}
	if got := alignedWordCount(0x10000002, 4); got != 2 {
		t.Errorf("alignedWordCount(0x10000002, 4) = %d, want 2", got)
	}
}

func TestVaToPAPreservesPageOffset(t *testing.T) {
	target := armedFakeTarget(t)

	// Arrange for the MRC-after-ATS1CPR read to observe a PAR value with a
	// fixed physical page and no fault bit set.
	target.dbg.Write(regDBGDTRTX, 0x7b001000) // PAR: page 0x7b001xxx, fault=0

	pa, err := target.vaToPA(context.Background(), 0x00402abc)
	if err != nil {
		t.Fatalf("vaToPA: %v", err)
	}
	want := uint32(0x7b001000) | (0x00402abc & 0xfff)
	if pa != want {
		t.Errorf("vaToPA = 0x%08x, want 0x%08x", pa, want)
	}
}

func TestVaToPAFault(t *testing.T) {
	target := armedFakeTarget(t)
	target.dbg.Write(regDBGDTRTX, 0x00000001) // PAR.F set

	_, err := target.vaToPA(context.Background(), 0x1000)
	if err == nil {
		t.Fatalf("expected translation fault error")
	}
	if !target.mmuFault {
		t.Errorf("mmuFault not latched after a faulting translation")
	}
	if err2 := target.CheckError(); err2 == nil {
		t.Errorf("CheckError should report the latched fault")
	}
	if err2 := target.CheckError(); err2 != nil {
		t.Errorf("CheckError should clear the fault after reporting it once, got %v", err2)
	}
}

func TestCacheCleanCoversWholeRange(t *testing.T) {
	target := armedFakeTarget(t)
	if err := target.cacheClean(context.Background(), 0x1003, 10); err != nil {
		t.Fatalf("cacheClean: %v", err)
	}
	// No direct observable side effect on a fake window beyond not
	// erroring; this exercises the line-count loop without overrunning.
}

package dbgprobe

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCoreNoteMarshalPadding(t *testing.T) {
	n := coreNote{name: "CORE", typ: ntPrStatus, data: []byte{1, 2, 3}}
	b := n.marshal()

	nameLen := binary.LittleEndian.Uint32(b[0:4])
	dataLen := binary.LittleEndian.Uint32(b[4:8])
	typ := binary.LittleEndian.Uint32(b[8:12])

	if nameLen != 5 { // "CORE\0"
		t.Errorf("nameLen = %d, want 5", nameLen)
	}
	if dataLen != 3 {
		t.Errorf("dataLen = %d, want 3", dataLen)
	}
	if typ != ntPrStatus {
		t.Errorf("type = %d, want %d", typ, ntPrStatus)
	}

	// header(12) + pad4(5)=8 + pad4(3)=4
	wantLen := 12 + 8 + 4
	if len(b) != wantLen {
		t.Errorf("marshaled note length = %d, want %d", len(b), wantLen)
	}
}

func TestBuildCoreFileShape(t *testing.T) {
	target := newTestTarget(t)

	regions := []MemoryRegion{
		{Name: "a", Base: 0x00000000, Size: 0x10000},
		{Name: "b", Base: 0x02000000, Size: 0x01000000},
		{Name: "c", Base: 0x08000000, Size: 0x00010000},
	}

	data, err := BuildCoreFile(context.Background(), target, regions, 5)
	if err != nil {
		t.Fatalf("BuildCoreFile: %v", err)
	}

	if string(data[0:4]) != elfMagic {
		t.Fatalf("missing ELF magic")
	}

	phoff := binary.LittleEndian.Uint32(data[28:32])
	phentsize := binary.LittleEndian.Uint16(data[42:44])
	phnum := binary.LittleEndian.Uint16(data[44:46])

	if phoff != ehdrSize {
		t.Errorf("e_phoff = %d, want %d", phoff, ehdrSize)
	}
	if phentsize != phdrSize {
		t.Errorf("e_phentsize = %d, want %d", phentsize, phdrSize)
	}
	if phnum != uint16(len(regions)+1) {
		t.Errorf("e_phnum = %d, want %d", phnum, len(regions)+1)
	}

	// First program header offset is immediately after all phdrs.
	firstOff := binary.LittleEndian.Uint32(data[int(phoff)+4:])
	wantFirst := uint32(ehdrSize) + uint32(phdrSize)*uint32(phnum)
	if firstOff != wantFirst {
		t.Errorf("first phdr offset = %d, want %d", firstOff, wantFirst)
	}

	// Last program header must be PT_NOTE.
	lastPhdrOff := int(phoff) + int(phdrSize)*(int(phnum)-1)
	lastType := binary.LittleEndian.Uint32(data[lastPhdrOff:])
	if lastType != ptNote {
		t.Errorf("last phdr type = %d, want PT_NOTE (%d)", lastType, ptNote)
	}

	// Running offsets must be strictly increasing and match segment sizes.
	prevOff := wantFirst
	for i := 0; i < int(phnum); i++ {
		base := int(phoff) + i*phdrSize
		off := binary.LittleEndian.Uint32(data[base+4:])
		filesz := binary.LittleEndian.Uint32(data[base+16:])
		if off != prevOff {
			t.Errorf("phdr[%d] offset = %d, want %d", i, off, prevOff)
		}
		prevOff = off + filesz
	}
	if int(prevOff) != len(data) {
		t.Errorf("final cursor %d does not match total file length %d", prevOff, len(data))
	}
}

func TestAuxvNoteReportsVFPAndNEON(t *testing.T) {
	note := auxvNote()
	if note.typ != ntAUXV || note.name != "CORE" {
		t.Fatalf("auxv note = {name:%q typ:%d}, want {CORE %d}", note.name, note.typ, ntAUXV)
	}
	if len(note.data) != 8 {
		t.Fatalf("auxv note payload length = %d, want 8", len(note.data))
	}
	if got := binary.LittleEndian.Uint32(note.data[0:4]); got != atHWCAP {
		t.Errorf("auxv type word = %d, want AT_HWCAP (%d)", got, atHWCAP)
	}
	if got := binary.LittleEndian.Uint32(note.data[4:8]); got != hwcapVFP|hwcapNEON {
		t.Errorf("auxv value word = 0x%x, want 0x%x", got, hwcapVFP|hwcapNEON)
	}
}

func TestBuildCoreFileIncludesAuxvBetweenPrstatusAndVFP(t *testing.T) {
	target := newTestTarget(t)
	regions := []MemoryRegion{{Name: "a", Base: 0, Size: 0x10}}

	data, err := BuildCoreFile(context.Background(), target, regions, 5)
	if err != nil {
		t.Fatalf("BuildCoreFile: %v", err)
	}

	notes := prStatusNote(&target.cache, 5).marshal()
	notes = append(notes, auxvNote().marshal()...)
	notes = append(notes, armVFPNote(&target.cache).marshal()...)

	if len(data) < len(notes) {
		t.Fatalf("core file shorter than expected note block")
	}
	gotNotes := data[len(data)-len(notes):]
	for i := range notes {
		if gotNotes[i] != notes[i] {
			t.Fatalf("note block mismatch at byte %d", i)
		}
	}
}

func TestWriteCoreFileNaming(t *testing.T) {
	target := newTestTarget(t)
	dir := t.TempDir()

	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	path, err := WriteCoreFile(context.Background(), target, dir, 11, at)
	if err != nil {
		t.Fatalf("WriteCoreFile: %v", err)
	}

	want := filepath.Join(dir, "zynq_amp_core-20260304-050607")
	if path != want {
		t.Errorf("core path = %q, want %q", path, want)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("core file not written: %v", err)
	}
}

func TestPrStatusNoteDoesNotOverrun(t *testing.T) {
	target := newTestTarget(t)
	target.cache.FPSCR = 0xdeadbeef
	target.cache.D[0] = 0x1122334455667788

	note := prStatusNote(&target.cache, 5)
	if len(note.data) != 4+18*4 {
		t.Fatalf("prstatus note payload length = %d, want %d", len(note.data), 4+18*4)
	}

	vfp := armVFPNote(&target.cache)
	if len(vfp.data) != 32*8+4 {
		t.Fatalf("vfp note payload length = %d, want %d", len(vfp.data), 32*8+4)
	}
	gotFPSCR := binary.LittleEndian.Uint32(vfp.data[32*8:])
	if gotFPSCR != 0xdeadbeef {
		t.Errorf("fpscr in vfp note = 0x%x, want 0xdeadbeef", gotFPSCR)
	}
}

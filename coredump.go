// coredump.go - ELF32 core file assembly for a crashed slave core.
//
// A core file is built from the memory regions the AMP deployment cares
// about (boot ROM/OCM, DDR application regions) plus three notes:
// NT_PRSTATUS for the general-purpose registers and CPSR, NT_AUXV for the
// HWCAP bits, and NT_ARM_VFP for the VFP register file. Unlike the firmware this
// replaces, the VFP note is built directly from the register cache rather
// than by reading past the end of a fixed-size buffer: see the Open
// Questions note in the accompanying design notes for why that shortcut
// is not reproduced here.

package dbgprobe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MemoryRegion is one physical address range copied into a core file's
// PT_LOAD segments.
type MemoryRegion struct {
	Name string
	Base uint32
	Size uint32
}

// defaultCoreRegions are the Zynq-7000 AMP memory ranges a post-mortem
// analysis needs: the OCM/boot area and the DDR regions the application
// and its heap occupy.
var defaultCoreRegions = []MemoryRegion{
	{Name: "ocm", Base: 0x00000000, Size: 0x10000},
	{Name: "ddr-low", Base: 0x7b000000, Size: 0x02000000},
	{Name: "ddr-app", Base: 0x7d000000, Size: 0x00800000},
	{Name: "ddr-heap", Base: 0x7d800000, Size: 0x02800000},
}

// armPrStatus mirrors Linux's ELF_NGREG=18 ARM general-register note
// layout: r0-r12, sp, lr, pc, cpsr, orig_r0.
type armPrStatus struct {
	Signal int32
	Regs   [18]uint32
}

// coreNote is one ELF note: a typed, named, padded blob.
type coreNote struct {
	name string
	typ  uint32
	data []byte
}

func (n *coreNote) marshal() []byte {
	nameBytes := append([]byte(n.name), 0)
	nameLen := len(nameBytes)
	dataLen := len(n.data)

	out := make([]byte, 0, 12+pad4(nameLen)+pad4(dataLen))
	hdr := make([]byte, 12)
	putLE32(hdr[0:], uint32(nameLen))
	putLE32(hdr[4:], uint32(dataLen))
	putLE32(hdr[8:], n.typ)
	out = append(out, hdr...)

	paddedName := make([]byte, pad4(nameLen))
	copy(paddedName, nameBytes)
	out = append(out, paddedName...)

	paddedData := make([]byte, pad4(dataLen))
	copy(paddedData, n.data)
	out = append(out, paddedData...)

	return out
}

func prStatusNote(cache *RegisterCache, signal int32) coreNote {
	var ps armPrStatus
	ps.Signal = signal
	copy(ps.Regs[0:13], cache.R[0:13])
	ps.Regs[13] = cache.R[13]
	ps.Regs[14] = cache.R[14]
	ps.Regs[15] = cache.R[15]
	ps.Regs[16] = cache.CPSR
	ps.Regs[17] = cache.R[0] // orig_r0

	b := make([]byte, 4+18*4)
	putLE32(b[0:], uint32(ps.Signal))
	for i, r := range ps.Regs {
		putLE32(b[4+i*4:], r)
	}
	return coreNote{name: "CORE", typ: ntPrStatus, data: b}
}

// auxvNote reports the HWCAP bits a post-mortem reader needs to know this
// core has a VFP/NEON unit, the same two-word AT_HWCAP auxiliary vector
// entry the original firmware's core dump embeds.
func auxvNote() coreNote {
	b := make([]byte, 8)
	putLE32(b[0:], atHWCAP)
	putLE32(b[4:], hwcapVFP|hwcapNEON)
	return coreNote{name: "CORE", typ: ntAUXV, data: b}
}

// armVFPNote packs the VFP register file in the kernel's NT_ARM_VFP layout:
// 32 double registers as raw 64-bit words followed by a 32-bit fpscr. Only
// d0-d15 are captured from the core; d16-d31 are written as zero.
func armVFPNote(cache *RegisterCache) coreNote {
	b := make([]byte, 32*8+4)
	for i, d := range cache.D {
		putLE32(b[i*8:], uint32(d))
		putLE32(b[i*8+4:], uint32(d>>32))
	}
	putLE32(b[32*8:], cache.FPSCR)
	return coreNote{name: "LINUX", typ: ntARMVFP, data: b}
}

// segment is a PT_LOAD source: bytes already read from the target, paired
// with the physical address they came from.
type segment struct {
	base uint32
	data []byte
}

// BuildCoreFile assembles an in-memory ELF32 core image from regions read
// out of the crashed core's physical memory plus its register cache.
// Reading goes through the halted core's cache-clean path so the mmap'd
// view of /dev/mem reflects the core's last writes.
func BuildCoreFile(ctx context.Context, t *CortexA9Target, regions []MemoryRegion, signal int32) ([]byte, error) {
	segments := make([]segment, 0, len(regions))
	for _, r := range regions {
		if err := t.cacheClean(ctx, r.Base, int(r.Size)); err != nil {
			return nil, fmt.Errorf("core dump: clean %s: %w", r.Name, err)
		}
		data, err := readPhysical(r.Base, int(r.Size))
		if err != nil {
			return nil, fmt.Errorf("core dump: read %s: %w", r.Name, err)
		}
		segments = append(segments, segment{base: r.Base, data: data})
	}

	notes := append([]byte{}, prStatusNote(&t.cache, signal).marshal()...)
	notes = append(notes, auxvNote().marshal()...)
	notes = append(notes, armVFPNote(&t.cache).marshal()...)

	phnum := len(segments) + 1
	ehdr := newCoreEhdr()
	ehdr.PhNum = uint16(phnum)

	phdrs := make([]elf32Phdr, 0, phnum)
	for _, s := range segments {
		phdrs = append(phdrs, elf32Phdr{
			Type:   ptLoad,
			VAddr:  s.base,
			PAddr:  s.base,
			FileSz: uint32(len(s.data)),
			MemSz:  uint32(len(s.data)),
			Flags:  pfR | pfW | pfX,
			Align:  4,
		})
	}
	phdrs = append(phdrs, elf32Phdr{
		Type:   ptNote,
		FileSz: uint32(len(notes)),
		MemSz:  uint32(len(notes)),
	})

	cursor := uint32(ehdrSize + phdrSize*phnum)
	for i := range phdrs {
		phdrs[i].Offset = cursor
		cursor += phdrs[i].FileSz
	}

	out := make([]byte, 0, cursor)
	out = append(out, ehdr.marshal()...)
	for _, p := range phdrs {
		out = append(out, p.marshal()...)
	}
	for _, s := range segments {
		out = append(out, s.data...)
	}
	out = append(out, notes...)

	return out, nil
}

// readPhysical mmaps size bytes at phys from /dev/mem and copies them out.
func readPhysical(phys uint32, size int) ([]byte, error) {
	w, err := MapPhysicalWindow("coredump", int64(phys), size)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	out := make([]byte, size)
	for i := 0; i+4 <= size; i += 4 {
		putLE32(out[i:], w.Read(uint16(i/4)))
	}
	return out, nil
}

// corePath returns the timestamped destination path for a new core file,
// rooted at dir.
func corePath(dir string, at time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("zynq_amp_core-%s", at.UTC().Format("20060102-150405")))
}

// WriteCoreFile builds and writes a core file for t's current state to dir,
// creating dir if necessary, and returns the path written.
func WriteCoreFile(ctx context.Context, t *CortexA9Target, dir string, signal int32, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("core dump: %w", err)
	}

	data, err := BuildCoreFile(ctx, t, defaultCoreRegions, signal)
	if err != nil {
		return "", err
	}

	path := corePath(dir, at)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("core dump: write %s: %w", path, err)
	}
	return path, nil
}

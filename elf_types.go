// elf_types.go - Minimal ELF32 wire structures for core dump output.
//
// Only the fields the coredump writer actually populates are named;
// everything else is zeroed, matching what a core file reader (gdb, a
// post-mortem analysis tool) requires and nothing more.

package dbgprobe

import "encoding/binary"

const (
	elfMagic = "\x7fELF"

	elfClass32   = 1
	elfDataLSB   = 1
	elfVersion   = 1
	elfOSABINone = 0

	etCore = 4

	emARM = 40

	ptLoad = 1
	ptNote = 4

	pfX = 1
	pfW = 2
	pfR = 4

	ntPrStatus = 1
	ntAUXV     = 6
	ntARMVFP   = 0x400

	atHWCAP    = 16
	hwcapVFP   = 1 << 6
	hwcapNEON  = 1 << 12

	ehdrSize = 52
	phdrSize = 32
)

// elf32Ehdr is the ELF32 file header, laid out exactly as it is written to
// disk (field order matters; there is no struct tag encoding here, writing
// goes through explicit byte-order helpers below).
type elf32Ehdr struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	PhOff     uint32
	ShOff     uint32
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrNdx  uint16
}

func (h *elf32Ehdr) marshal() []byte {
	b := make([]byte, ehdrSize)
	copy(b[0:16], h.Ident[:])
	binary.LittleEndian.PutUint16(b[16:], h.Type)
	binary.LittleEndian.PutUint16(b[18:], h.Machine)
	binary.LittleEndian.PutUint32(b[20:], h.Version)
	binary.LittleEndian.PutUint32(b[24:], h.Entry)
	binary.LittleEndian.PutUint32(b[28:], h.PhOff)
	binary.LittleEndian.PutUint32(b[32:], h.ShOff)
	binary.LittleEndian.PutUint32(b[36:], h.Flags)
	binary.LittleEndian.PutUint16(b[40:], h.EhSize)
	binary.LittleEndian.PutUint16(b[42:], h.PhEntSize)
	binary.LittleEndian.PutUint16(b[44:], h.PhNum)
	binary.LittleEndian.PutUint16(b[46:], h.ShEntSize)
	binary.LittleEndian.PutUint16(b[48:], h.ShNum)
	binary.LittleEndian.PutUint16(b[50:], h.ShStrNdx)
	return b
}

// elf32Phdr is one ELF32 program header entry.
type elf32Phdr struct {
	Type   uint32
	Offset uint32
	VAddr  uint32
	PAddr  uint32
	FileSz uint32
	MemSz  uint32
	Flags  uint32
	Align  uint32
}

func (p *elf32Phdr) marshal() []byte {
	b := make([]byte, phdrSize)
	binary.LittleEndian.PutUint32(b[0:], p.Type)
	binary.LittleEndian.PutUint32(b[4:], p.Offset)
	binary.LittleEndian.PutUint32(b[8:], p.VAddr)
	binary.LittleEndian.PutUint32(b[12:], p.PAddr)
	binary.LittleEndian.PutUint32(b[16:], p.FileSz)
	binary.LittleEndian.PutUint32(b[20:], p.MemSz)
	binary.LittleEndian.PutUint32(b[24:], p.Flags)
	binary.LittleEndian.PutUint32(b[28:], p.Align)
	return b
}

func newCoreEhdr() elf32Ehdr {
	var h elf32Ehdr
	copy(h.Ident[:4], elfMagic)
	h.Ident[4] = elfClass32
	h.Ident[5] = elfDataLSB
	h.Ident[6] = elfVersion
	h.Ident[7] = elfOSABINone
	h.Type = etCore
	h.Machine = emARM
	h.Version = elfVersion
	h.EhSize = ehdrSize
	h.PhEntSize = phdrSize
	h.PhOff = ehdrSize
	return h
}

// pad4 rounds n up to the next multiple of 4, the alignment an ELF note's
// name and descriptor fields each require.
func pad4(n int) int {
	return (n + 3) &^ 3
}

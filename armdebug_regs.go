// armdebug_regs.go - ARMv7-A external debug register map and instruction
// encodings for the Cortex-A9 debug APB window.
//
// Register indices and bit layouts are from ARM DDI0406C ("ARMv7-A
// Architecture Reference Manual"), external debug interface chapter. Offsets
// are word indices into the 4 KiB debug APB window (byte offset = index*4).

package dbgprobe

// Debug APB register indices.
const (
	regDBGDIDR  = 0
	regDBGVCR   = 7
	regDBGDTRRX = 32 // DCC: host -> target
	regDBGITR   = 33
	regDBGDSCR  = 34
	regDBGDTRTX = 35 // DCC: target -> host
	regDBGDRCR  = 36
	regDBGLAR   = 1004
)

func regDBGBVR(i int) uint16 { return uint16(64 + i) }
func regDBGBCR(i int) uint16 { return uint16(80 + i) }
func regDBGWVR(i int) uint16 { return uint16(96 + i) }
func regDBGWCR(i int) uint16 { return uint16(112 + i) }

// DBGVCR vector-catch bits.
const (
	dbgvcrR  uint32 = 1 << 0 // reset
	dbgvcrSU uint32 = 1 << 1 // undefined instruction
	dbgvcrSP uint32 = 1 << 3 // prefetch abort
	dbgvcrSD uint32 = 1 << 4 // data abort
)

// DBGDSCR bits.
const (
	dbgdscrInstrCompl      uint32 = 1 << 24
	dbgdscrExtDCCModeStall uint32 = 1 << 20
	dbgdscrExtDCCModeFast  uint32 = 2 << 20
	dbgdscrExtDCCModeMask  uint32 = 3 << 20
	dbgdscrHDBGEn          uint32 = 1 << 14
	dbgdscrITREn           uint32 = 1 << 13
	dbgdscrIntDis          uint32 = 1 << 11
	dbgdscrSDAbortL        uint32 = 1 << 6
	dbgdscrMOEMask         uint32 = 0xf << 2
	dbgdscrMOEHaltReq      uint32 = 0x0 << 2
	dbgdscrMOEWatchAsync   uint32 = 0x2 << 2
	dbgdscrMOEWatchSync    uint32 = 0xa << 2
	dbgdscrRestarted       uint32 = 1 << 1
	dbgdscrHalted          uint32 = 1 << 0
)

// DBGDRCR bits.
const (
	dbgdrcrCSE uint32 = 1 << 2
	dbgdrcrRRQ uint32 = 1 << 1
	dbgdrcrHRQ uint32 = 1 << 0
)

// DBGBCR bits.
const (
	dbgbcrInstMismatch uint32 = 4 << 20
	dbgbcrBASAny       uint32 = 0xf << 5
	dbgbcrBASLowHW     uint32 = 0x3 << 5
	dbgbcrBASHighHW    uint32 = 0xc << 5
	dbgbcrEn           uint32 = 1 << 0
)

// DBGWCR bits.
const (
	dbgwcrLSCLoad     uint32 = 0b01 << 3
	dbgwcrLSCStore    uint32 = 0b10 << 3
	dbgwcrLSCAny      uint32 = 0b11 << 3
	dbgwcrBASByte     uint32 = 0b0001 << 5
	dbgwcrBASHalfword uint32 = 0b0011 << 5
	dbgwcrBASWord     uint32 = 0b1111 << 5
	dbgwcrPACAny      uint32 = 0b11 << 1
	dbgwcrEn          uint32 = 1 << 0
)

const dbglarKey uint32 = 0xC5ACCE55

// Coprocessor instruction encodings (ARM, little-endian word values as the
// core's instruction stream expects them).
const (
	opMCR = 0xee000010
	opMRC = 0xee100010
)

func cpreg(coproc, opc1, rt, crn, crm, opc2 uint32) uint32 {
	return (opc1 << 21) | (crn << 16) | (rt << 12) | (coproc << 8) | (opc2 << 5) | crm
}

var (
	dbgDTRRXInt = cpreg(14, 0, 0, 0, 5, 0) // CP14 DBGDTRRXint / DBGDTRTXint share an encoding
	parReg      = cpreg(15, 0, 0, 7, 4, 0)
	ats1cpr     = cpreg(15, 0, 0, 7, 8, 0)
	iciallu     = cpreg(15, 0, 0, 7, 5, 0)
	dccmvac     = cpreg(15, 0, 0, 7, 10, 1)
)

const cpsrThumb uint32 = 1 << 5

// Fixed instruction encodings used verbatim by the register cache and
// memory engine (mnemonics noted for maintainers; these are not decoded).
const (
	instrMovR0PC   = 0xe1a0000f // mov r0, pc
	instrMRSCPSR   = 0xE10F0000 // mrs r0, CPSR
	instrVMRSFPSCR = 0xeef10a10 // vmrs r0, fpscr
	instrVMSRFPSCR = 0xeee10a10 // vmsr fpscr, r0
	instrMSRCPSR   = 0xe12ff000 // msr CPSR_fsxc, r0
	instrMovPCR0   = 0xe1a0f000 // mov pc, r0
	instrLDCBlock  = 0xecb05e01 // ldc p14, c5, [r0], #4
	instrSTCBlock  = 0xeca05e01 // stc p14, c5, [r0], #4
	instrSTRB      = 0xe4cd0001 // strb r0, [sp], #1
)

// instrVMovToGP returns the "vmov r0, r1, dN" encoding for register dN.
func instrVMovToGP(n int) uint32 { return 0xEC510B10 | uint32(n) }

// instrVMovFromGP returns the "vmov dN, r0, r1" encoding for register dN.
func instrVMovFromGP(n int) uint32 { return 0xec410b10 | uint32(n) }

// SLCR (Zynq system-level control registers) word indices.
const (
	slcrUnlock        = 2
	slcrUnlockKey     = 0xdf0d
	slcrA9CPURstCtrl  = 145
	slcrA9Rst1        = 1 << 1
	slcrA9ClkStop1    = 1 << 5
	watchdogUnlockReg = 0xF8F00634
)

const cacheLineLength = 8 * 4 // bytes; Cortex-A9 D-cache line length

// errors.go - Sentinel errors shared across the debug engine. Callers match
// these with errors.Is; wrapped context (register, address, slot) is added
// with fmt.Errorf("%w") at the call site.

package dbgprobe

import "errors"

var (
	// ErrTimeout is returned when a bounded wait (halt request, halt poll,
	// clock-gate wait, restart acknowledge) exceeds its deadline.
	ErrTimeout = errors.New("zynqamp: timeout")

	// ErrBusError is returned when a debug APB transaction faults. On real
	// hardware this corresponds to a slave error on the external debug bus;
	// in this implementation it is surfaced as a recovered runtime fault
	// (see safeAPBRead in waitcombinator.go).
	ErrBusError = errors.New("zynqamp: bus error")

	// ErrMMUFault is returned by CheckError after a VA-to-PA translation or
	// a memory access has set the target's sticky MMU fault flag.
	ErrMMUFault = errors.New("zynqamp: mmu fault")

	// ErrNoFreeSlot is returned by BreakwatchSet when every hardware
	// breakpoint or watchpoint comparator is already in use.
	ErrNoFreeSlot = errors.New("zynqamp: no free hardware slot")

	// ErrUnsupportedSize is returned by BreakwatchSet for a hardware
	// breakpoint whose size is not 2 or 4 bytes.
	ErrUnsupportedSize = errors.New("zynqamp: unsupported breakpoint size")

	// ErrNotHalted is returned by Reset when a single step over the boot
	// trampoline does not end in a breakpoint halt. Register and memory
	// access do not check the halt state and do not return it.
	ErrNotHalted = errors.New("zynqamp: target is not halted")
)

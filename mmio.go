// mmio.go - Typed word accessor over the debug APB and SLCR memory-mapped
// register windows.
//
// Accesses are plain, strictly-ordered 32-bit loads/stores: no caching, no
// deferred writes, no compiler or CPU reordering across accesses from the
// same goroutine. Go gives no volatile qualifier, so ordering is obtained
// with atomic loads/stores over a fixed unsafe.Pointer into the mapped
// region, which the compiler may not elide or reorder.

package dbgprobe

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// RegisterWindow is a word-addressed MMIO window: register index r sits at
// byte offset r*4 within the mapped region.
type RegisterWindow struct {
	name  string
	base  unsafe.Pointer
	words int

	// unmap, if set, releases the backing mapping (nil for fake windows
	// used in tests).
	unmap func() error
}

// newRegisterWindow wraps an already-mapped byte slice. The slice must stay
// alive and at a fixed address for the lifetime of the window: callers pass
// either an mmap'd region or a test-owned slice that is never reallocated.
func newRegisterWindow(name string, mem []byte, unmap func() error) *RegisterWindow {
	if len(mem) == 0 {
		panic(fmt.Sprintf("mmio: %s window has zero length", name))
	}
	return &RegisterWindow{
		name:  name,
		base:  unsafe.Pointer(&mem[0]),
		words: len(mem) / 4,
		unmap: unmap,
	}
}

func (w *RegisterWindow) wordPtr(reg uint16) *uint32 {
	if int(reg) >= w.words {
		panic(fmt.Sprintf("mmio: %s register %d out of range (window has %d words)", w.name, reg, w.words))
	}
	return (*uint32)(unsafe.Pointer(uintptr(w.base) + uintptr(reg)*4))
}

// Read performs a single ordered 32-bit load.
func (w *RegisterWindow) Read(reg uint16) uint32 {
	return atomic.LoadUint32(w.wordPtr(reg))
}

// Write performs a single ordered 32-bit store.
func (w *RegisterWindow) Write(reg uint16, val uint32) {
	atomic.StoreUint32(w.wordPtr(reg), val)
}

// Close releases the underlying mapping, if any.
func (w *RegisterWindow) Close() error {
	if w.unmap == nil {
		return nil
	}
	return w.unmap()
}

// MapPhysicalWindow opens /dev/mem and mmaps size bytes at the given
// physical base, returning a RegisterWindow backed by that mapping.
func MapPhysicalWindow(name string, physBase int64, size int) (*RegisterWindow, error) {
	fd, err := unix.Open("/dev/mem", unix.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmio: open /dev/mem for %s: %w", name, err)
	}
	defer unix.Close(fd)

	mem, err := unix.Mmap(fd, physBase, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmio: mmap %s at 0x%x: %w", name, physBase, err)
	}

	return newRegisterWindow(name, mem, func() error { return unix.Munmap(mem) }), nil
}

// newFakeWindow builds a zero-filled in-memory window for tests, sized to
// hold at least maxReg+1 32-bit registers.
func newFakeWindow(name string, maxReg int) *RegisterWindow {
	mem := make([]byte, (maxReg+1)*4)
	return newRegisterWindow(name, mem, nil)
}

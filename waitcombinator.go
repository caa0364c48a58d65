// waitcombinator.go - Bounded-wait primitives standing in for the
// firmware's TRY_CATCH/longjmp exception regions.
//
// The original engine wraps every debug-APB transaction in a timeout- and
// fault-catching region: a halted core whose clock is gated (WFI with the
// PLL stopped) simply never acknowledges a request, and a genuinely bad
// bus transaction aborts. Go has neither construct natively, so both are
// rebuilt from stdlib primitives: a context deadline bounds the
// wait, and runtime/debug.SetPanicOnFault lets a faulting load become a
// recoverable panic instead of a process-ending signal.

package dbgprobe

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

// pollInterval is the spacing between completion checks in the various
// halt/step/instruction-retire spin loops.
const pollInterval = 50 * time.Microsecond

// boundedCall runs fn on its own goroutine and returns its result, or
// ErrTimeout if fn has not completed within deadline. fn must not mutate
// caller-visible state before it can be certain of success: on timeout the
// goroutine keeps running in the background (there is no way to cancel a
// blocked MMIO load), so a late result must never silently clobber state
// the caller has already moved on from.
func boundedCall[T any](ctx context.Context, deadline time.Duration, fn func() (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-cctx.Done():
		var zero T
		return zero, fmt.Errorf("%w", ErrTimeout)
	}
}

// boundedPoll repeats fn until it reports done, or until deadline elapses.
// It is the Go analogue of the firmware's spin-and-recheck halt polling
// loops (halt_request's 10x200ms spin, the RESTARTED wait in halt_resume).
func boundedPoll(ctx context.Context, deadline, interval time.Duration, fn func() (done bool, err error)) error {
	cctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		done, err := fn()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-cctx.Done():
			return fmt.Errorf("%w", ErrTimeout)
		case <-t.C:
		}
	}
}

// safeAPBRead performs a single register read on the caller's goroutine,
// converting a faulting access (the real-hardware equivalent of a slave
// error on the external debug bus) into ErrBusError instead of crashing
// the process. SetPanicOnFault applies only to the calling goroutine, so
// this must run on a dedicated goroutine when composed with boundedCall.
func safeAPBRead(w *RegisterWindow, reg uint16) (val uint32, err error) {
	debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(false)
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrBusError, r)
		}
	}()
	return w.Read(reg), nil
}

// safeAPBWrite is the write-side counterpart of safeAPBRead.
func safeAPBWrite(w *RegisterWindow, reg uint16, val uint32) (err error) {
	debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(false)
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrBusError, r)
		}
	}()
	w.Write(reg, val)
	return nil
}

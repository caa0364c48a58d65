// resetstrategy.go - Pluggable slave-core teardown/reload, replacing the
// original engine's hard-coded shell-out sequence.
//
// Resetting the slave core means unwinding whatever remoteproc/rpmsg
// binding Linux has set up for it, then reloading it from scratch; the
// exact commands are a deployment detail, not engine logic, so they're
// expressed as a ResetStrategy the engine only calls through. The two
// init.d service stops (and the two starts on reload) are independent of
// each other and run concurrently via errgroup, shaving the fixed delay
// the original sequential shell-out pays twice.

package dbgprobe

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"
)

// ResetStrategy tears down and reloads the slave core's remoteproc
// binding. TeardownAndReload must leave the slave core held in reset with
// its clock gated until the reload step releases it, matching what
// waitClockUngated polls for afterward.
type ResetStrategy interface {
	TeardownAndReload(ctx context.Context) error
}

// ExecResetStrategy drives the teardown/reload through shell commands
// against the host's init system and kernel modules, the same mechanism
// the AMP remoteproc binding is managed with everywhere else in the
// deployment.
type ExecResetStrategy struct {
	// StopServices/StartServices name the init.d services fronting the
	// rpmsg channel to the slave core.
	StopServices  []string
	StartServices []string

	// TeardownModules/ReloadModules are kernel modules removed (in order)
	// before the reload and inserted (in order) after it.
	TeardownModules []string
	ReloadModules   []string

	// SettleDelay is paused after each teardown/reload phase to let the
	// kernel finish tearing down or bringing up the remoteproc binding
	// before the next phase touches it.
	SettleDelay time.Duration

	runCommand func(ctx context.Context, name string, args ...string) error
}

// NewExecResetStrategy returns a strategy configured with the Zynq AMP
// deployment's default service and module names.
func NewExecResetStrategy() *ExecResetStrategy {
	return &ExecResetStrategy{
		StopServices:    []string{"rpmsg-piksi-101", "rpmsg-piksi-100"},
		StartServices:   []string{"rpmsg-piksi-100", "rpmsg-piksi-101"},
		TeardownModules: []string{"rpmsg_piksi", "zynq_remoteproc"},
		ReloadModules:   []string{"rpmsg_piksi", "zynq_remoteproc"},
		SettleDelay:     500 * time.Millisecond,
		runCommand:      runShellCommand,
	}
}

func runShellCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, out)
	}
	return nil
}

func (s *ExecResetStrategy) serviceCmd(action, service string) (string, []string) {
	return "service", []string{service, action}
}

func (s *ExecResetStrategy) TeardownAndReload(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range s.StopServices {
		svc := svc
		g.Go(func() error {
			name, args := s.serviceCmd("stop", svc)
			return s.runCommand(gctx, name, args...)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("stop services: %w", err)
	}
	time.Sleep(s.SettleDelay)

	for _, mod := range s.TeardownModules {
		if err := s.runCommand(ctx, "modprobe", "-r", mod); err != nil {
			return fmt.Errorf("teardown modules: %w", err)
		}
	}
	time.Sleep(s.SettleDelay)

	for _, mod := range s.ReloadModules {
		if err := s.runCommand(ctx, "modprobe", mod); err != nil {
			return fmt.Errorf("reload modules: %w", err)
		}
	}

	g, gctx = errgroup.WithContext(ctx)
	for _, svc := range s.StartServices {
		svc := svc
		g.Go(func() error {
			name, args := s.serviceCmd("start", svc)
			return s.runCommand(gctx, name, args...)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("start services: %w", err)
	}
	time.Sleep(2 * s.SettleDelay)

	return nil
}

// fakeResetStrategy records invocations for tests without touching the
// host's service manager or kernel modules.
type fakeResetStrategy struct {
	calls int
	err   error
}

func (f *fakeResetStrategy) TeardownAndReload(ctx context.Context) error {
	f.calls++
	return f.err
}

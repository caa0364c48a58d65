// zynqampd attaches to the slave Cortex-A9 core and runs the crash
// watchdog until interrupted.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/zynqamp/dbgprobe"
)

func main() {
	cfg := dbgprobe.DefaultEngineConfig()

	flag.Int64Var(&cfg.DebugAPBBase, "debug-apb-base", cfg.DebugAPBBase, "physical base address of the Cortex-A9 external debug APB window")
	flag.Int64Var(&cfg.SLCRBase, "slcr-base", cfg.SLCRBase, "physical base address of the Zynq SLCR block")
	flag.StringVar(&cfg.CoreDir, "core-dir", cfg.CoreDir, "directory crash core files are written to")
	flag.StringVar(&cfg.AssertSRST, "assert-srst", cfg.AssertSRST, "never|scan|attach: when SRST is held asserted around a reset")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error")
	flag.DurationVar(&cfg.HaltTimeout, "halt-timeout", cfg.HaltTimeout, "timeout for each injected debug instruction to complete")
	flag.DurationVar(&cfg.WatchdogPollInterval, "poll-interval", cfg.WatchdogPollInterval, "crash watchdog poll interval")
	flag.Parse()

	log := dbgprobe.NewLogger(os.Stderr, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	dbg, err := dbgprobe.MapPhysicalWindow("debug-apb", cfg.DebugAPBBase, cfg.DebugAPBSize)
	if err != nil {
		log.Error("failed to map debug APB window", "error", err)
		os.Exit(1)
	}
	defer dbg.Close()

	slcr, err := dbgprobe.MapPhysicalWindow("slcr", cfg.SLCRBase, cfg.SLCRSize)
	if err != nil {
		log.Error("failed to map SLCR window", "error", err)
		os.Exit(1)
	}
	defer slcr.Close()

	target, err := dbgprobe.NewCortexA9Target(dbg, slcr, dbgprobe.NewExecResetStrategy(), cfg.HaltTimeout, log)
	if err != nil {
		log.Error("failed to probe target", "error", err)
		os.Exit(1)
	}
	defer target.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	watchdog := dbgprobe.NewCrashWatchdog(target, cfg.CoreDir, cfg.WatchdogPollInterval, log)
	log.Info("crash watchdog starting", "core_dir", cfg.CoreDir, "poll_interval", cfg.WatchdogPollInterval)

	if err := watchdog.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("watchdog exited", "error", err)
		os.Exit(1)
	}
	log.Info("crash watchdog stopped")
}

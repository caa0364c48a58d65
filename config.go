// config.go - Engine configuration and its defaults.

package dbgprobe

import (
	"fmt"
	"time"
)

// EngineConfig bundles the tunables the engine, watchdog, and monitor
// shell are constructed from.
type EngineConfig struct {
	// DebugAPBBase/DebugAPBSize locate the Cortex-A9 external debug APB
	// window in physical memory.
	DebugAPBBase int64
	DebugAPBSize int

	// SLCRBase/SLCRSize locate the Zynq system-level control register
	// block.
	SLCRBase int64
	SLCRSize int

	// HaltTimeout bounds the wait for each instruction injected through
	// DBGITR to complete. Halt request, halt poll, attach and resume use
	// their own fixed deadlines and are not affected by it.
	HaltTimeout time.Duration

	// AssertSRST controls when SRST is held asserted around a reset:
	// "never" (default), "scan" (until the next scan), or "attach" (until
	// the next attach).
	AssertSRST string

	// CoreDir is where crash core files are written.
	CoreDir string

	// WatchdogPollInterval is the spacing between crash-watchdog halt
	// polls.
	WatchdogPollInterval time.Duration

	// LogLevel controls the engine-wide slog level: debug, info, warn, or
	// error.
	LogLevel string

	// PlatformExtras gates the tpwr/traceswo/debug_bmp monitor commands,
	// mirroring the original firmware's PLATFORM_HAS_POWER_SWITCH/
	// PLATFORM_HAS_TRACESWO/PLATFORM_HAS_DEBUG build-time switches. The
	// Zynq-7000 AMP platform has none of these, so it defaults to false.
	PlatformExtras bool
}

// DefaultEngineConfig returns the configuration for the standard
// Zynq-7000 memory map: debug APB at the Cortex-A9 core 1 external debug
// window, SLCR at its fixed SoC address.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		DebugAPBBase:         0xF889A000,
		DebugAPBSize:         4096,
		SLCRBase:             0xF8000000,
		SLCRSize:             4096,
		HaltTimeout:          2 * time.Second,
		AssertSRST:           "never",
		CoreDir:              "/tmp/cores",
		WatchdogPollInterval: 100 * time.Millisecond,
		LogLevel:             "info",
	}
}

// Validate checks the config for values the engine cannot operate with.
func (c *EngineConfig) Validate() error {
	if c.DebugAPBSize <= 0 || c.SLCRSize <= 0 {
		return fmt.Errorf("config: register window sizes must be positive")
	}
	if c.HaltTimeout <= 0 {
		return fmt.Errorf("config: halt_timeout must be positive")
	}
	switch c.AssertSRST {
	case "never", "scan", "attach":
	default:
		return fmt.Errorf("config: assert_srst must be 'never', 'scan', or 'attach', got %q", c.AssertSRST)
	}
	if c.CoreDir == "" {
		return fmt.Errorf("config: core_dir must not be empty")
	}
	return nil
}

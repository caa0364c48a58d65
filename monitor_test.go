package dbgprobe

import (
	"context"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	cmd := ParseCommand("  HALT_timeout 500  ")
	if cmd.Name != "halt_timeout" {
		t.Errorf("Name = %q, want halt_timeout", cmd.Name)
	}
	if len(cmd.Args) != 1 || cmd.Args[0] != "500" {
		t.Errorf("Args = %v, want [500]", cmd.Args)
	}
}

func TestParseAddress(t *testing.T) {
	cases := []struct {
		in   string
		want uint32
	}{
		{"#100", 100},
		{"$ff", 0xff},
		{"0x20000000", 0x20000000},
		{"0X1000", 0x1000},
		{"1000", 0x1000},
	}
	for _, c := range cases {
		got, err := ParseAddress(c.in)
		if err != nil {
			t.Errorf("ParseAddress(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseAddress(%q) = 0x%x, want 0x%x", c.in, got, c.want)
		}
	}
}

func newTestMonitor() (*Monitor, *fakeTarget) {
	ft := &fakeTarget{}
	cfg := DefaultEngineConfig()
	return NewMonitor(ft, cfg), ft
}

func TestMonitorPrefixDispatch(t *testing.T) {
	m, _ := newTestMonitor()

	out, err := m.Dispatch(context.Background(), ParseCommand("ver"))
	if err != nil {
		t.Fatalf("Dispatch(ver): %v", err)
	}
	if !strings.Contains(out, "Zynq-7000 AMP debug probe") {
		t.Errorf("unexpected version output: %q", out)
	}
}

func TestMonitorAmbiguousPrefix(t *testing.T) {
	m, _ := newTestMonitor()
	// "h" matches both "help" and "halt_timeout" and "hard_srst".
	_, err := m.Dispatch(context.Background(), ParseCommand("h"))
	if err == nil {
		t.Fatalf("expected ambiguous-prefix error for \"h\"")
	}
}

func TestMonitorUnknownCommand(t *testing.T) {
	m, _ := newTestMonitor()
	_, err := m.Dispatch(context.Background(), ParseCommand("frobnicate"))
	if err == nil {
		t.Fatalf("expected error for unknown command")
	}
}

func TestMonitorHaltTimeoutGetSet(t *testing.T) {
	m, _ := newTestMonitor()

	out, err := m.Dispatch(context.Background(), ParseCommand("halt_timeout 750"))
	if err != nil {
		t.Fatalf("Dispatch(halt_timeout 750): %v", err)
	}
	if !strings.Contains(out, "750") {
		t.Errorf("expected output to echo new timeout, got %q", out)
	}

	out, err = m.Dispatch(context.Background(), ParseCommand("halt_timeout"))
	if err != nil {
		t.Fatalf("Dispatch(halt_timeout): %v", err)
	}
	if !strings.Contains(out, "750") {
		t.Errorf("expected halt_timeout query to report 750ms, got %q", out)
	}
}

func TestMonitorAssertSRSTValidation(t *testing.T) {
	m, _ := newTestMonitor()

	if _, err := m.Dispatch(context.Background(), ParseCommand("assert_srst maybe")); err == nil {
		t.Fatalf("expected error for invalid assert_srst value")
	}

	out, err := m.Dispatch(context.Background(), ParseCommand("assert_srst attach"))
	if err != nil {
		t.Fatalf("Dispatch(assert_srst attach): %v", err)
	}
	if !strings.Contains(out, "attach") {
		t.Errorf("unexpected assert_srst output: %q", out)
	}

	out, err = m.Dispatch(context.Background(), ParseCommand("assert_srst scan"))
	if err != nil {
		t.Fatalf("Dispatch(assert_srst scan): %v", err)
	}
	if !strings.Contains(out, "scan") {
		t.Errorf("unexpected assert_srst output: %q", out)
	}
}

func TestMonitorHardSRSTInvokesReset(t *testing.T) {
	m, ft := newTestMonitor()
	if _, err := m.Dispatch(context.Background(), ParseCommand("hard_srst")); err != nil {
		t.Fatalf("Dispatch(hard_srst): %v", err)
	}
	if ft.resetCalls != 1 {
		t.Errorf("resetCalls = %d, want 1", ft.resetCalls)
	}
}

func TestMonitorGcoreWithoutDumperFails(t *testing.T) {
	m, _ := newTestMonitor()
	if _, err := m.Dispatch(context.Background(), ParseCommand("gcore")); err == nil {
		t.Fatalf("expected error: fakeTarget does not implement coreDumper")
	}
}

func TestMonitorMorseIsSilentWhenUnset(t *testing.T) {
	m, _ := newTestMonitor()
	out, err := m.Dispatch(context.Background(), ParseCommand("morse"))
	if err != nil {
		t.Fatalf("Dispatch(morse): %v", err)
	}
	if out != "" {
		t.Errorf("morse output = %q, want empty with no pending message", out)
	}
}

func TestMonitorOmitsPlatformExtrasByDefault(t *testing.T) {
	m, _ := newTestMonitor()
	if _, err := m.Dispatch(context.Background(), ParseCommand("tpwr")); err == nil {
		t.Fatalf("expected tpwr to be unrecognized without PlatformExtras")
	}
}

func newExtrasTestMonitor() (*Monitor, *fakeTarget) {
	ft := &fakeTarget{}
	cfg := DefaultEngineConfig()
	cfg.PlatformExtras = true
	return NewMonitor(ft, cfg), ft
}

func TestMonitorTPWRGetSet(t *testing.T) {
	m, _ := newExtrasTestMonitor()

	out, err := m.Dispatch(context.Background(), ParseCommand("tpwr enable"))
	if err != nil {
		t.Fatalf("Dispatch(tpwr enable): %v", err)
	}
	if !strings.Contains(out, "enabled") {
		t.Errorf("unexpected tpwr output: %q", out)
	}

	out, err = m.Dispatch(context.Background(), ParseCommand("tpwr"))
	if err != nil {
		t.Fatalf("Dispatch(tpwr): %v", err)
	}
	if !strings.Contains(out, "enabled") {
		t.Errorf("tpwr query should report enabled, got %q", out)
	}
}

func TestMonitorTraceSWOWithBaud(t *testing.T) {
	m, _ := newExtrasTestMonitor()
	out, err := m.Dispatch(context.Background(), ParseCommand("traceswo 115200"))
	if err != nil {
		t.Fatalf("Dispatch(traceswo 115200): %v", err)
	}
	if !strings.Contains(out, "115200") {
		t.Errorf("unexpected traceswo output: %q", out)
	}
}

func TestMonitorDebugBMPGetSet(t *testing.T) {
	m, _ := newExtrasTestMonitor()
	out, err := m.Dispatch(context.Background(), ParseCommand("debug_bmp enable"))
	if err != nil {
		t.Fatalf("Dispatch(debug_bmp enable): %v", err)
	}
	if !strings.Contains(out, "enabled") {
		t.Errorf("unexpected debug_bmp output: %q", out)
	}
}

package bridge

import (
	"os"
	"testing"

	"go.starlark.net/starlark"
)

// These tests read the real /proc filesystem of the host running the test,
// using the test binary's own pid, since the pid is guaranteed to exist and
// its exact resource usage is not.

func TestProcessMemoryBytesIsPositiveForSelf(t *testing.T) {
	if _, err := os.Stat("/proc/self/statm"); err != nil {
		t.Skip("no /proc on this platform")
	}
	mem := processMemoryBytes(os.Getpid())
	if mem <= 0 {
		t.Fatalf("expected a positive resident set size for the running process, got %d", mem)
	}
}

func TestProcessMemoryBytesUnknownPidIsZero(t *testing.T) {
	if _, err := os.Stat("/proc/self/statm"); err != nil {
		t.Skip("no /proc on this platform")
	}
	if mem := processMemoryBytes(1 << 30); mem != 0 {
		t.Fatalf("expected 0 for a pid that doesn't exist, got %d", mem)
	}
}

func TestHostUptimeSecondsIsPositive(t *testing.T) {
	if _, err := os.Stat("/proc/uptime"); err != nil {
		t.Skip("no /proc on this platform")
	}
	up, err := hostUptimeSeconds()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if up <= 0 {
		t.Fatalf("expected a positive host uptime, got %v", up)
	}
}

func TestProcessUptimeSecondsIsNonNegativeForSelf(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("no /proc on this platform")
	}
	up := processUptimeSeconds(os.Getpid())
	if up < 0 {
		t.Fatalf("expected a non-negative uptime for the running process, got %d", up)
	}
}

func TestProcessUptimeSecondsUnknownPidIsZero(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("no /proc on this platform")
	}
	if up := processUptimeSeconds(1 << 30); up != 0 {
		t.Fatalf("expected 0 for a pid that doesn't exist, got %d", up)
	}
}

func TestProcInfoDictHasAllFiveKeys(t *testing.T) {
	d := procInfoDict(os.Getpid())
	for _, key := range []string{"pid", "name", "cpu", "memory", "uptime"} {
		if _, found, _ := d.Get(starlark.String(key)); !found {
			t.Fatalf("expected key %q in proc info dict, got %v", key, d)
		}
	}
}

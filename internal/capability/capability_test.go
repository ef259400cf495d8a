package capability

import (
	"testing"
	"time"
)

func TestGrantAndCheck(t *testing.T) {
	s := New(100)
	if s.Check("fs:read", "/tmp/a.txt") {
		t.Fatal("expected ungranted action to be denied")
	}
	s.Grant("fs:read:*")
	if !s.Check("fs:read", "/tmp/a.txt") {
		t.Fatal("expected granted glob to allow")
	}
}

func TestRevoke(t *testing.T) {
	s := New(100)
	s.Grant("fs:read:*")
	s.Revoke("fs:read:*")
	if s.Check("fs:read", "/tmp/a.txt") {
		t.Fatal("expected revoked pattern to deny")
	}
}

func TestRevokeNarrowsExistingWildcardGrant(t *testing.T) {
	s := New(100)
	s.Grant("fs:read:*")
	s.Revoke("fs:read:/etc/shadow")
	if s.Check("fs:read", "/etc/shadow") {
		t.Fatal("expected specific revoke to override a broader wildcard grant")
	}
	if !s.Check("fs:read", "/tmp/a.txt") {
		t.Fatal("expected the wildcard grant to still cover unrelated paths")
	}
}

func TestMonotonicityWithoutGrant(t *testing.T) {
	s := New(100)
	if s.Check("proc:kill", "1") {
		t.Fatal("expected initial check to deny")
	}
	for i := 0; i < 5; i++ {
		if s.Check("proc:kill", "1") {
			t.Fatal("expected repeated check with no grant to remain denied")
		}
	}
}

func TestSandboxNarrowsAccess(t *testing.T) {
	s := New(100)
	s.Grant("fs:*")
	s.CreateSandbox("readonly", []string{"fs:read:*"})
	if err := s.Enter("readonly"); err != nil {
		t.Fatalf("unexpected error entering sandbox: %v", err)
	}
	if !s.Check("fs:read", "a.txt") {
		t.Fatal("expected read to be allowed inside readonly sandbox")
	}
	if s.Check("fs:write", "a.txt") {
		t.Fatal("expected write to be denied inside readonly sandbox despite process-wide grant")
	}
	s.Exit()
	if !s.Check("fs:write", "a.txt") {
		t.Fatal("expected write to be allowed again after exiting sandbox")
	}
}

func TestEnterUnknownSandboxErrors(t *testing.T) {
	s := New(100)
	if err := s.Enter("nope"); err == nil {
		t.Fatal("expected error entering unregistered sandbox")
	}
}

func TestCapabilityExpiry(t *testing.T) {
	s := New(100)
	past := time.Now().Add(-time.Hour)
	s.AddCapability(Capability{Name: "temp", ExpiresAt: &past})
	if s.HasCapability("temp") {
		t.Fatal("expected expired capability to report false")
	}
	future := time.Now().Add(time.Hour)
	s.AddCapability(Capability{Name: "temp2", ExpiresAt: &future})
	if !s.HasCapability("temp2") {
		t.Fatal("expected unexpired capability to report true")
	}
}

func TestBuiltinPolicies(t *testing.T) {
	s := New(100)
	if err := s.ApplyPolicy("sandbox"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Check("fs:read", "a.txt") {
		t.Fatal("expected sandbox policy to allow reads")
	}
	if s.Check("proc:kill", "1") {
		t.Fatal("expected sandbox policy to deny proc actions")
	}
}

func TestApplyUnknownPolicyErrors(t *testing.T) {
	s := New(100)
	if err := s.ApplyPolicy("nonexistent"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestAuditCompletenessAndRingBuffer(t *testing.T) {
	s := New(3)
	s.Grant("fs:read:*")
	for i := 0; i < 5; i++ {
		s.Check("fs:read", "a.txt")
	}
	log := s.AuditLog()
	if len(log) != 3 {
		t.Fatalf("expected ring buffer capped at 3 entries, got %d", len(log))
	}
	for _, e := range log {
		if !e.Granted {
			t.Fatalf("expected all entries granted, got %+v", e)
		}
	}
}

func TestClearAuditLog(t *testing.T) {
	s := New(10)
	s.Check("fs:read", "a.txt")
	s.ClearAuditLog()
	if len(s.AuditLog()) != 0 {
		t.Fatal("expected empty audit log after clear")
	}
}

func TestDeniedCheckProducesAuditEntry(t *testing.T) {
	s := New(10)
	s.Check("proc:kill", "1")
	log := s.AuditLog()
	if len(log) != 1 {
		t.Fatalf("expected exactly one audit entry, got %d", len(log))
	}
	if log[0].Granted {
		t.Fatal("expected denied entry")
	}
	if log[0].Action != "proc:kill" || log[0].Resource != "1" {
		t.Fatalf("unexpected entry fields: %+v", log[0])
	}
}

package governance

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPolicy_Tiers(t *testing.T) {
	p := NewDefaultPolicy()

	if got := p.TierOf("pc", "screenshot"); got != TierSafe {
		t.Errorf("pc.screenshot: expected safe, got %s", got)
	}
	if got := p.TierOf("pc", "run_command"); got != TierDangerous {
		t.Errorf("pc.run_command: expected dangerous, got %s", got)
	}
	if got := p.TierOf("pc", "shutdown"); got != TierCritical {
		t.Errorf("pc.shutdown: expected critical, got %s", got)
	}
	if got := p.TierOf("file_system", "delete_file"); got != TierDangerous {
		t.Errorf("file_system.delete_file: expected dangerous, got %s", got)
	}
}

func TestDefaultPolicy_UnknownFallsBackToModerate(t *testing.T) {
	p := NewDefaultPolicy()
	if got := p.TierOf("some_new_module", "do_thing"); got != TierModerate {
		t.Errorf("expected moderate fallback, got %s", got)
	}
}

func TestPolicy_Destructive(t *testing.T) {
	p := NewDefaultPolicy()

	if p.Destructive("pc", "screenshot") {
		t.Error("pc.screenshot must not require confirmation")
	}
	if p.Destructive("telegram", "send_message") {
		t.Error("telegram.send_message must not require confirmation")
	}
	if !p.Destructive("pc", "run_command") {
		t.Error("pc.run_command must require confirmation")
	}
	if !p.Destructive("pc", "restart") {
		t.Error("pc.restart must require confirmation")
	}
	if !p.Destructive("scheduler", "delete_schedule") {
		t.Error("scheduler.delete_schedule must require confirmation")
	}
}

func TestPolicy_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `default: safe
tiers:
  pc.screenshot: dangerous
  custom.wipe: critical
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	p := NewDefaultPolicy()
	if err := p.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if got := p.TierOf("pc", "screenshot"); got != TierDangerous {
		t.Errorf("overlay not applied: %s", got)
	}
	if got := p.TierOf("custom", "wipe"); got != TierCritical {
		t.Errorf("new entry not applied: %s", got)
	}
	if got := p.TierOf("never", "seen"); got != TierSafe {
		t.Errorf("default not overridden: %s", got)
	}
	// Entries not named in the file keep their built-in tier.
	if got := p.TierOf("pc", "shutdown"); got != TierCritical {
		t.Errorf("built-in entry lost: %s", got)
	}
}

func TestPolicy_LoadFileRejectsBadTier(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("tiers:\n  pc.screenshot: spicy\n"), 0644); err != nil {
		t.Fatal(err)
	}
	p := NewDefaultPolicy()
	if err := p.LoadFile(path); err == nil {
		t.Error("unknown tier name should fail")
	}
}

func TestTierString(t *testing.T) {
	if TierSafe.String() != "safe" || TierCritical.String() != "critical" {
		t.Errorf("tier names wrong: %s %s", TierSafe, TierCritical)
	}
}

package governance

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Tier is the permission level of a capability function.
type Tier int

const (
	TierSafe      Tier = iota // read-only / status queries
	TierModerate              // writes, sends, automation
	TierDangerous             // destructive or irreversible
	TierCritical              // restart / shutdown class
)

var tierNames = map[Tier]string{
	TierSafe:      "safe",
	TierModerate:  "moderate",
	TierDangerous: "dangerous",
	TierCritical:  "critical",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "unknown"
}

func parseTier(s string) (Tier, error) {
	for t, name := range tierNames {
		if name == strings.ToLower(strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return TierModerate, fmt.Errorf("unknown tier %q", s)
}

// Policy assigns a Tier to every (module, function) pair. Unknown pairs fall
// back to the default tier so a newly registered capability is never silently
// treated as safe.
type Policy struct {
	mu          sync.RWMutex
	tiers       map[string]Tier
	defaultTier Tier
}

// NewDefaultPolicy returns the built-in tier table covering the standard
// capability modules.
func NewDefaultPolicy() *Policy {
	p := &Policy{
		tiers:       make(map[string]Tier, len(defaultTiers)),
		defaultTier: TierModerate,
	}
	for key, tier := range defaultTiers {
		p.tiers[key] = tier
	}
	return p
}

var defaultTiers = map[string]Tier{
	// pc read ops
	"pc.screenshot":   TierSafe,
	"pc.system_stats": TierSafe,
	// pc automation
	"pc.open_app":    TierModerate,
	"pc.close_app":   TierModerate,
	"pc.type_text":   TierModerate,
	"pc.press_key":   TierModerate,
	"pc.mouse_move":  TierModerate,
	"pc.mouse_click": TierModerate,
	"pc.lock":        TierModerate,
	// pc destructive
	"pc.run_command":  TierDangerous,
	"pc.kill_process": TierDangerous,
	"pc.restart":      TierCritical,
	"pc.shutdown":     TierCritical,

	"file_system.list_directory": TierSafe,
	"file_system.read_file":      TierSafe,
	"file_system.find_files":     TierSafe,
	"file_system.write_file":     TierModerate,
	"file_system.move_file":      TierModerate,
	"file_system.zip_files":      TierModerate,
	"file_system.delete_file":    TierDangerous,

	"browser.page_content":  TierSafe,
	"browser.screenshot":    TierSafe,
	"browser.wait_for":      TierSafe,
	"browser.close_browser": TierSafe,
	"browser.open_url":      TierModerate,
	"browser.click":         TierModerate,
	"browser.type_text":     TierModerate,

	"web.search": TierSafe,
	"web.scrape": TierSafe,

	"api_connector.call_api":           TierModerate,
	"api_connector.call_api_with_auth": TierModerate,

	"telegram.send_message": TierSafe,
	"telegram.send_file":    TierSafe,

	"memory.search_notes":    TierSafe,
	"memory.search_history":  TierSafe,
	"memory.recent_activity": TierSafe,
	"memory.save_note":       TierModerate,

	"scheduler.list_schedules":  TierSafe,
	"scheduler.create_schedule": TierModerate,
	"scheduler.delete_schedule": TierDangerous,
}

type policyFile struct {
	Default string            `yaml:"default"`
	Tiers   map[string]string `yaml:"tiers"`
}

// LoadFile overlays tier assignments from a YAML policy file on top of the
// current table. Entries are "module.function: tier".
func (p *Policy) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read policy file: %w", err)
	}
	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("failed to parse policy file: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if pf.Default != "" {
		t, err := parseTier(pf.Default)
		if err != nil {
			return err
		}
		p.defaultTier = t
	}
	for key, name := range pf.Tiers {
		t, err := parseTier(name)
		if err != nil {
			return fmt.Errorf("policy entry %s: %w", key, err)
		}
		p.tiers[key] = t
	}
	return nil
}

// TierOf returns the tier assigned to a (module, function) pair.
func (p *Policy) TierOf(module, function string) Tier {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if t, ok := p.tiers[module+"."+function]; ok {
		return t
	}
	return p.defaultTier
}

// Destructive reports whether an action requires operator confirmation
// before it may be dispatched.
func (p *Policy) Destructive(module, function string) bool {
	return p.TierOf(module, function) >= TierDangerous
}

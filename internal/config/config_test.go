package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dbehnke/clicknode/internal/core"
	"github.com/dbehnke/clicknode/internal/hal"
)

const sampleYAML = `
name: kitchen
actuator_capacity: 4
clickable_capacity: 4
indicator_capacity: 4
framing: text
actuators:
  - id: 1
    pin: 10
    default_state: false
  - id: 2
    pin: 11
    default_state: false
    auto_off_ms: 600000
clickables:
  - id: 1
    pin: 20
    short_ok: true
    long_ok: true
    actuators_short: [0]
    actuators_long: [0, 1]
    long_kind: ON_ONLY
    net_long_ok: true
    long_fallback: LOCAL_FALLBACK
indicators:
  - pin: 30
    controlled: [0, 1]
    mode: ALL
tunables:
  long_ms: 500
`

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "kitchen" || cfg.ActuatorCap != 4 {
		t.Fatalf("unexpected top-level config: %+v", cfg)
	}
	tunables := cfg.ToTunables()
	if tunables.LongMS != 500 {
		t.Fatalf("expected the file's long_ms override to win, got %d", tunables.LongMS)
	}
	if tunables.SuperLongMS != 1000 {
		t.Fatalf("expected the unset super_long_ms to fall back to the documented default, got %d", tunables.SuperLongMS)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error loading a nonexistent config file")
	}
}

func TestApplyConfigBuildsRegistryFromParsedSpec(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	pins := hal.NewFakePinFactory()
	registry := core.NewRegistry(cfg.ActuatorCap, cfg.ClickableCap, cfg.IndicatorCap)

	if err := ApplyConfig(cfg, registry, pins); err != nil {
		t.Fatalf("apply config: %v", err)
	}
	if len(registry.Actuators()) != 2 || len(registry.Clickables()) != 1 || len(registry.Indicators()) != 1 {
		t.Fatalf("unexpected registry shape: %d actuators, %d clickables, %d indicators",
			len(registry.Actuators()), len(registry.Clickables()), len(registry.Indicators()))
	}
	if !registry.Clickables()[0].NetLongOK() {
		t.Fatalf("expected the clickable's net_long_ok to have been parsed")
	}
}

func TestApplyConfigPropagatesFatalError(t *testing.T) {
	body := `
actuator_capacity: 2
clickable_capacity: 1
indicator_capacity: 1
actuators:
  - id: 1
    pin: 10
  - id: 1
    pin: 11
`
	path := writeTempConfig(t, body)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	pins := hal.NewFakePinFactory()
	registry := core.NewRegistry(cfg.ActuatorCap, cfg.ClickableCap, cfg.IndicatorCap)
	if err := ApplyConfig(cfg, registry, pins); err == nil {
		t.Fatalf("expected a duplicate actuator id to surface as a fatal config error")
	}
}

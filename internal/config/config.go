// Package config reads the one-shot boot-time configuration surface of
// spec.md §6 — device name, capacities, pin assignments, actuator and
// clickable and indicator definitions, tunables — following the
// teacher's viper-based backend/config.Load.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/dbehnke/clicknode/internal/core"
	"github.com/dbehnke/clicknode/internal/engine"
)

// ActuatorSpec is one actuator's boot-time definition.
type ActuatorSpec struct {
	ID               uint8  `mapstructure:"id" yaml:"id"`
	Pin              int    `mapstructure:"pin" yaml:"pin"`
	DefaultState     bool   `mapstructure:"default_state" yaml:"default_state"`
	AutoOffMS        uint32 `mapstructure:"auto_off_ms" yaml:"auto_off_ms"`
	Protected        bool   `mapstructure:"protected" yaml:"protected"`
}

// ClickableSpec is one clickable's boot-time definition.
type ClickableSpec struct {
	ID                 uint8    `mapstructure:"id" yaml:"id"`
	Pin                int      `mapstructure:"pin" yaml:"pin"`
	ActuatorsShort     []int    `mapstructure:"actuators_short" yaml:"actuators_short"`
	ActuatorsLong      []int    `mapstructure:"actuators_long" yaml:"actuators_long"`
	ActuatorsSuperLong []int    `mapstructure:"actuators_super_long" yaml:"actuators_super_long"`
	ShortOK            bool     `mapstructure:"short_ok" yaml:"short_ok"`
	LongOK             bool     `mapstructure:"long_ok" yaml:"long_ok"`
	SuperLongOK        bool     `mapstructure:"super_long_ok" yaml:"super_long_ok"`
	NetLongOK          bool     `mapstructure:"net_long_ok" yaml:"net_long_ok"`
	NetSuperLongOK     bool     `mapstructure:"net_super_long_ok" yaml:"net_super_long_ok"`
	LongKind           string   `mapstructure:"long_kind" yaml:"long_kind"`               // NORMAL|ON_ONLY|OFF_ONLY
	SuperLongKind      string   `mapstructure:"super_long_kind" yaml:"super_long_kind"`   // NORMAL|SELECTIVE
	LongFallback       string   `mapstructure:"long_fallback" yaml:"long_fallback"`       // LOCAL_FALLBACK|DO_NOTHING
	SuperLongFallback  string   `mapstructure:"super_long_fallback" yaml:"super_long_fallback"`
}

// IndicatorSpec is one indicator's boot-time definition.
type IndicatorSpec struct {
	Pin        int    `mapstructure:"pin" yaml:"pin"`
	Controlled []int  `mapstructure:"controlled" yaml:"controlled"` // actuator indices
	Mode       string `mapstructure:"mode" yaml:"mode"`             // ANY|ALL|MAJORITY
}

// TunablesSpec mirrors engine.Tunables for YAML override of any subset
// of spec.md §6's defaults.
type TunablesSpec struct {
	ClickableDebounceMS             uint32 `mapstructure:"clickable_debounce_ms"`
	LongMS                          uint32 `mapstructure:"long_ms"`
	SuperLongMS                     uint32 `mapstructure:"super_long_ms"`
	ActuatorSwitchDebounceMS        uint32 `mapstructure:"actuator_switch_debounce_ms"`
	NetworkClickTimeoutMS           uint32 `mapstructure:"network_click_timeout_ms"`
	DelayAfterReceiveMS             uint32 `mapstructure:"delay_after_receive_ms"`
	NetworkClickCheckIntervalMS     uint32 `mapstructure:"network_click_check_interval_ms"`
	ActuatorsAutoOffCheckIntervalMS uint32 `mapstructure:"actuators_auto_off_check_interval_ms"`
	PingIntervalMS                  uint32 `mapstructure:"ping_interval_ms"`
	ConnectionTimeoutMS             uint32 `mapstructure:"connection_timeout_ms"`
}

// NodeConfig is the full boot-time configuration surface.
type NodeConfig struct {
	Name          string          `mapstructure:"name" yaml:"name"`
	ActuatorCap   int             `mapstructure:"actuator_capacity" yaml:"actuator_capacity"`
	ClickableCap  int             `mapstructure:"clickable_capacity" yaml:"clickable_capacity"`
	IndicatorCap  int             `mapstructure:"indicator_capacity" yaml:"indicator_capacity"`
	Framing       string          `mapstructure:"framing" yaml:"framing"` // text|binary
	Actuators     []ActuatorSpec  `mapstructure:"actuators" yaml:"actuators"`
	Clickables    []ClickableSpec `mapstructure:"clickables" yaml:"clickables"`
	Indicators    []IndicatorSpec `mapstructure:"indicators" yaml:"indicators"`
	Tunables      TunablesSpec    `mapstructure:"tunables" yaml:"tunables"`
}

// Load reads NodeConfig from path (YAML), layering spec.md §6's
// documented defaults underneath whatever the file sets, the same way
// the teacher's config.Load calls viper.SetDefault before ReadInConfig.
func Load(path string) (*NodeConfig, error) {
	v := viper.New()
	def := engine.DefaultTunables()
	v.SetDefault("name", "clicknode")
	v.SetDefault("actuator_capacity", 16)
	v.SetDefault("clickable_capacity", 16)
	v.SetDefault("indicator_capacity", 8)
	v.SetDefault("framing", "text")
	v.SetDefault("tunables.clickable_debounce_ms", def.ClickableDebounceMS)
	v.SetDefault("tunables.long_ms", def.LongMS)
	v.SetDefault("tunables.super_long_ms", def.SuperLongMS)
	v.SetDefault("tunables.actuator_switch_debounce_ms", def.ActuatorSwitchDebounceMS)
	v.SetDefault("tunables.network_click_timeout_ms", def.NetworkClickTimeoutMS)
	v.SetDefault("tunables.delay_after_receive_ms", def.DelayAfterReceiveMS)
	v.SetDefault("tunables.network_click_check_interval_ms", def.NetworkClickCheckIntervalMS)
	v.SetDefault("tunables.actuators_auto_off_check_interval_ms", def.ActuatorsAutoOffCheckIntervalMS)
	v.SetDefault("tunables.ping_interval_ms", def.PingIntervalMS)
	v.SetDefault("tunables.connection_timeout_ms", def.ConnectionTimeoutMS)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg NodeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// ToTunables converts the parsed TunablesSpec into engine.Tunables.
func (cfg *NodeConfig) ToTunables() engine.Tunables {
	t := cfg.Tunables
	return engine.Tunables{
		ClickableDebounceMS:             t.ClickableDebounceMS,
		LongMS:                          t.LongMS,
		SuperLongMS:                     t.SuperLongMS,
		ActuatorSwitchDebounceMS:        t.ActuatorSwitchDebounceMS,
		NetworkClickTimeoutMS:           t.NetworkClickTimeoutMS,
		DelayAfterReceiveMS:             t.DelayAfterReceiveMS,
		NetworkClickCheckIntervalMS:     t.NetworkClickCheckIntervalMS,
		ActuatorsAutoOffCheckIntervalMS: t.ActuatorsAutoOffCheckIntervalMS,
		PingIntervalMS:                  t.PingIntervalMS,
		ConnectionTimeoutMS:             t.ConnectionTimeoutMS,
	}
}

func parseLongKind(s string) core.LongKind {
	switch strings.ToUpper(s) {
	case "ON_ONLY":
		return core.LongOnOnly
	case "OFF_ONLY":
		return core.LongOffOnly
	default:
		return core.LongNormal
	}
}

func parseSuperLongKind(s string) core.SuperLongKind {
	if strings.ToUpper(s) == "SELECTIVE" {
		return core.SuperLongSelective
	}
	return core.SuperLongNormal
}

func parseFallback(s string) core.FallbackKind {
	if strings.ToUpper(s) == "DO_NOTHING" {
		return core.DoNothing
	}
	return core.LocalFallback
}

func parseIndicatorMode(s string) core.IndicatorMode {
	switch strings.ToUpper(s) {
	case "ALL":
		return core.IndicatorAll
	case "MAJORITY":
		return core.IndicatorMajority
	default:
		return core.IndicatorAny
	}
}

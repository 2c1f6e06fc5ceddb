package config

import (
	"fmt"

	"github.com/dbehnke/clicknode/internal/core"
)

// PinFactory resolves a config-file pin number to the hardware
// primitive spec.md §1 treats as an external collaborator. cmd/clicknode,
// cmd/simulate and tests all wire it to hal's in-memory FakePinFactory.
type PinFactory interface {
	InputPin(number int) core.PinReader
	OutputPin(number int) core.PinWriter
}

// Builder is the chained-setter configuration surface of spec.md §9
// ("Builder-style configuration"), wrapping a Registry so the whole
// boot-time topology is ingested through one object and finalized once.
type Builder struct {
	registry *core.Registry
	pins     PinFactory
	debounce uint32
	err      error
}

// NewBuilder starts a configuration pass against registry, resolving
// pins through pins, using actuatorSwitchDebounceMS as every actuator's
// switch debounce. Clickable timings are passed to Clickable instead.
func NewBuilder(registry *core.Registry, pins PinFactory, actuatorSwitchDebounceMS uint32) *Builder {
	return &Builder{registry: registry, pins: pins, debounce: actuatorSwitchDebounceMS}
}

// Actuator adds one actuator definition.
func (b *Builder) Actuator(spec ActuatorSpec) *Builder {
	if b.err != nil {
		return b
	}
	pin := b.pins.OutputPin(spec.Pin)
	_, b.err = b.registry.AddActuator(spec.ID, pin, spec.DefaultState, b.debounce, spec.AutoOffMS, spec.Protected)
	return b
}

// Clickable adds one clickable definition.
func (b *Builder) Clickable(spec ClickableSpec, debounceMS, longMS, superLongMS uint32) *Builder {
	if b.err != nil {
		return b
	}
	pin := b.pins.InputPin(spec.Pin)
	_, b.err = b.registry.AddClickable(core.ClickableConfig{
		ID:                 spec.ID,
		Pin:                pin,
		ActuatorsShort:     spec.ActuatorsShort,
		ActuatorsLong:      spec.ActuatorsLong,
		ActuatorsSuperLong: spec.ActuatorsSuperLong,
		ShortOK:            spec.ShortOK,
		LongOK:             spec.LongOK,
		SuperLongOK:        spec.SuperLongOK,
		NetLongOK:          spec.NetLongOK,
		NetSuperLongOK:     spec.NetSuperLongOK,
		LongKind:           parseLongKind(spec.LongKind),
		SuperLongKind:      parseSuperLongKind(spec.SuperLongKind),
		LongFallback:       parseFallback(spec.LongFallback),
		SuperLongFallback:  parseFallback(spec.SuperLongFallback),
		DebounceMS:         debounceMS,
		LongMS:             longMS,
		SuperLongMS:        superLongMS,
	})
	return b
}

// Indicator adds one indicator definition.
func (b *Builder) Indicator(spec IndicatorSpec) *Builder {
	if b.err != nil {
		return b
	}
	pin := b.pins.OutputPin(spec.Pin)
	_, b.err = b.registry.AddIndicator(core.IndicatorConfig{
		Pin:        pin,
		Controlled: spec.Controlled,
		Mode:       parseIndicatorMode(spec.Mode),
	})
	return b
}

// Finalize calls Registry.Finalize, short-circuiting if any prior
// chained call already failed. This is the single boot-time ingestion
// point spec.md §9 describes.
func (b *Builder) Finalize() error {
	if b.err != nil {
		return b.err
	}
	return b.registry.Finalize()
}

// ApplyConfig drives a Builder over every actuator/clickable/indicator
// in cfg, in declaration order, and finalizes the registry. This is the
// entry point cmd/clicknode and cmd/simulate call once at boot.
func ApplyConfig(cfg *NodeConfig, registry *core.Registry, pins PinFactory) error {
	tunables := cfg.ToTunables()
	b := NewBuilder(registry, pins, tunables.ActuatorSwitchDebounceMS)
	for _, a := range cfg.Actuators {
		b.Actuator(a)
	}
	for _, c := range cfg.Clickables {
		b.Clickable(c, tunables.ClickableDebounceMS, tunables.LongMS, tunables.SuperLongMS)
	}
	for _, ind := range cfg.Indicators {
		b.Indicator(ind)
	}
	if err := b.Finalize(); err != nil {
		return fmt.Errorf("config: finalize: %w", err)
	}
	return nil
}

package core

import "testing"

func TestRegistryDuplicateActuatorIDIsFatal(t *testing.T) {
	r := NewRegistry(4, 4, 4)
	if _, err := r.AddActuator(1, &fakePin{}, false, 0, 0, false); err != nil {
		t.Fatalf("unexpected error on first add: %v", err)
	}
	if _, err := r.AddActuator(1, &fakePin{}, false, 0, 0, false); err == nil {
		t.Fatalf("expected a fatal error on duplicate actuator id")
	}
}

func TestRegistryCapacityOverflowIsFatal(t *testing.T) {
	r := NewRegistry(1, 4, 4)
	if _, err := r.AddActuator(1, &fakePin{}, false, 0, 0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.AddActuator(2, &fakePin{}, false, 0, 0, false); err == nil {
		t.Fatalf("expected a fatal error on capacity overflow")
	}
}

func TestRegistryFinalizeRejectsInvalidClickable(t *testing.T) {
	r := NewRegistry(4, 4, 4)
	// No capability bits set at all: invalid per spec.md §3.
	if _, err := r.AddClickable(ClickableConfig{ID: 1, Pin: &fakePin{}}); err != nil {
		t.Fatalf("unexpected error on add: %v", err)
	}
	if err := r.Finalize(); err == nil {
		t.Fatalf("expected Finalize to reject a clickable with no capability/actuators")
	}
}

func TestRegistryFinalizePrecomputesAutoOffSubset(t *testing.T) {
	r := NewRegistry(4, 4, 4)
	r.AddActuator(1, &fakePin{}, false, 0, 0, false)
	r.AddActuator(2, &fakePin{}, false, 0, 5000, false)
	if err := r.Finalize(); err != nil {
		t.Fatalf("unexpected finalize error: %v", err)
	}
	idx := r.AutoOffActuatorIndices()
	if len(idx) != 1 || idx[0] != 1 {
		t.Fatalf("expected exactly actuator index 1 in the auto-off subset, got %v", idx)
	}
}

func TestRegistryTurnOffUnprotectedActuators(t *testing.T) {
	r := NewRegistry(4, 4, 4)
	r.AddActuator(1, &fakePin{}, true, 0, 0, false)
	r.AddActuator(2, &fakePin{}, true, 0, 0, true)
	r.Finalize()
	r.TurnOffUnprotectedActuators(1000)
	if r.Actuators()[0].State() {
		t.Fatalf("unprotected actuator must be turned off")
	}
	if !r.Actuators()[1].State() {
		t.Fatalf("protected actuator must be left on")
	}
}

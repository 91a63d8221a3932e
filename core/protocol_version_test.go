package core

import "testing"

func TestProtocolVersionCompareAndLessThan(t *testing.T) {
	v1 := NewProtocolVersion(1, 0, 0)
	v2 := NewProtocolVersion(1, 1, 0)
	v3 := NewProtocolVersion(2, 0, 0)

	if !v1.LessThan(v2) {
		t.Fatalf("expected 1.0.0 < 1.1.0")
	}
	if !v2.LessThan(v3) {
		t.Fatalf("expected 1.1.0 < 2.0.0")
	}
	if v1.Compare(v1) != 0 {
		t.Fatalf("expected equal versions to compare to 0")
	}
	if v3.LessThan(v1) {
		t.Fatalf("did not expect 2.0.0 < 1.0.0")
	}
}

func TestProtocolVersionString(t *testing.T) {
	v := NewProtocolVersion(3, 2, 1)
	if got := v.String(); got != "3.2.1" {
		t.Fatalf("expected 3.2.1, got %q", got)
	}
}

func TestWasmCostsForFallsBackToDefault(t *testing.T) {
	unregistered := NewProtocolVersion(99, 99, 99)
	costs := WasmCostsFor(unregistered)
	if costs.Opcode != DefaultWasmCosts().Opcode {
		t.Fatalf("expected default schedule for unregistered version")
	}
}

func TestWasmCostsHostCallCostFallsBackToDefaultGasCost(t *testing.T) {
	costs := WasmCosts{Opcode: 1, HostCall: map[HostFunction]uint64{}}
	if got := costs.HostCallCost(HostGetArg); got != DefaultGasCost {
		t.Fatalf("expected DefaultGasCost for unpriced host function, got %d", got)
	}
}

func TestRegisterWasmCostsOverridesLookup(t *testing.T) {
	v := NewProtocolVersion(7, 0, 0)
	custom := WasmCosts{Opcode: 5, HostCall: map[HostFunction]uint64{HostGetArg: 1}}
	RegisterWasmCosts(v, custom)

	got := WasmCostsFor(v)
	if got.Opcode != 5 || got.HostCallCost(HostGetArg) != 1 {
		t.Fatalf("expected registered schedule to be returned, got %+v", got)
	}
}

// Synnergy Network - Core Gas Schedule
//
// The canonical gas-pricing table for every host function exposed to wasm
// guests. Unlike an opcode-level EVM schedule, the execution engine only
// meters the fixed host API surface; WasmCosts.Opcode is carried in the
// schedule but the Executor does not charge it, so the guest's own
// instructions are free.
package core

import "sync"

// DefaultGasCost is charged for any host function that has slipped through
// the cracks of a given protocol version's table.
const DefaultGasCost uint64 = 100_000

// WasmCosts is the gas schedule active for one protocol version: a flat
// per-instruction price (not charged by the Executor) plus a cost for each
// host function.
type WasmCosts struct {
	Opcode   uint64
	HostCall map[HostFunction]uint64
}

// DefaultWasmCosts is the schedule used when genesis does not override it.
func DefaultWasmCosts() WasmCosts {
	return WasmCosts{
		Opcode: 1,
		HostCall: map[HostFunction]uint64{
			HostGetArg:                10_000,
			HostRet:                   10_000,
			HostRevert:                10_000,
			HostCallContract:          2_500_000,
			HostNewURef:               25_000,
			HostRead:                  50_000,
			HostWrite:                 100_000,
			HostAdd:                   100_000,
			HostPutKey:                25_000,
			HostGetKey:                25_000,
			HostRemoveKey:             25_000,
			HostStoreFunctionAtHash:   200_000,
			HostUpgradeContractAtURef: 200_000,
			HostCreatePurse:           2_500_000,
			HostTransferPurseToPurse:  2_500_000,
			HostGetPOS:                10_000,
			HostGetMint:               10_000,
			HostMainPurse:             10_000,
		},
	}
}

// wasmCostsRegistry holds the schedule in effect for each protocol version,
// populated by genesis/upgrade (spec.md §4.7) and read concurrently by every
// executor worker.
var wasmCostsRegistry = struct {
	mu    sync.RWMutex
	byVer map[ProtocolVersion]WasmCosts
}{byVer: map[ProtocolVersion]WasmCosts{}}

// RegisterWasmCosts installs the gas schedule for a protocol version.
func RegisterWasmCosts(v ProtocolVersion, costs WasmCosts) {
	wasmCostsRegistry.mu.Lock()
	defer wasmCostsRegistry.mu.Unlock()
	wasmCostsRegistry.byVer[v] = costs
}

// WasmCostsFor returns the gas schedule registered for v, or the default
// schedule if none was registered (e.g. in tests that skip genesis).
func WasmCostsFor(v ProtocolVersion) WasmCosts {
	wasmCostsRegistry.mu.RLock()
	defer wasmCostsRegistry.mu.RUnlock()
	if c, ok := wasmCostsRegistry.byVer[v]; ok {
		return c
	}
	return DefaultWasmCosts()
}

// HostCallCost returns the gas cost of calling host function h under costs,
// falling back to DefaultGasCost for an unpriced entry.
func (c WasmCosts) HostCallCost(h HostFunction) uint64 {
	if cost, ok := c.HostCall[h]; ok {
		return cost
	}
	return DefaultGasCost
}

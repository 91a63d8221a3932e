// Synnergy Network - Core Executor
//
// Wraps wasmerio/wasmer-go to run a deployed wasm program against a
// TrackingCopy, descended from the teacher's HeavyVM/hostCtx pair in their
// virtual machine. Gas metering reuses the teacher's GasMeter shape,
// extended to charge the protocol-version-indexed WasmCosts schedule
// instead of a flat per-opcode EVM-style table.
package core

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wasmerio/wasmer-go/wasmer"
	"go.uber.org/zap"
)

// GasMeter tracks gas usage against a limit, charged per host function
// call; the Executor does not meter individual wasm instructions.
type GasMeter struct {
	used  uint64
	limit uint64
}

// NewGasMeter constructs a GasMeter with the given gas limit.
func NewGasMeter(limit uint64) *GasMeter { return &GasMeter{limit: limit} }

// Remaining returns the gas left before the limit is hit.
func (g *GasMeter) Remaining() uint64 {
	if g.used >= g.limit {
		return 0
	}
	return g.limit - g.used
}

func (g *GasMeter) Used() uint64 { return g.used }

// Consume charges cost against the meter, returning ErrOutOfGas if it would
// exceed the limit.
func (g *GasMeter) Consume(cost uint64) error {
	if g.used+cost > g.limit {
		g.used = g.limit
		return ErrOutOfGas
	}
	g.used += cost
	return nil
}

// ExecutionStatus enumerates how a deploy's execution terminated.
type ExecutionStatus uint8

const (
	ExecSuccess ExecutionStatus = iota
	ExecRevert
	ExecOutOfGas
	ExecInvalidWasm
)

// ExecutionResult is the outcome of running a deploy through the Executor.
type ExecutionResult struct {
	Status     ExecutionStatus
	ReturnData []byte
	GasUsed    uint64
	Error      string
}

// DeployArgs carries the parameters a wasm guest can retrieve via
// host_get_arg, addressed by index.
type DeployArgs [][]byte

// ExecutionContext is passed to a single Executor.Run invocation: the
// deploy's correlation id, caller/account addressing, arguments, gas meter
// and the TrackingCopy effects accumulate into.
type ExecutionContext struct {
	CorrelationID   string
	Caller          Address
	ContractKey     Key
	Args            DeployArgs
	GasMeter        *GasMeter
	TrackingCopy    *TrackingCopy
	ProtocolVersion ProtocolVersion

	mint *Mint
	pos  *ProofOfStake

	// callContract services the host API's call_contract surface when set
	// through WithCallContract. Nothing in this package sets it, so
	// call_contract returns -1 unless a caller attaches one.
	callContract func(target StateDigest, args []byte) ([]byte, error)

	// grantedURefs is the per-frame capability table: the set of URef
	// addresses actually granted to this frame (the account's main purse,
	// its named_keys, and anything minted with new_uref/create_purse during
	// the frame), each mapped to the access rights it was granted with. A
	// guest-supplied URef whose address is absent here is forged — host
	// calls must refuse it regardless of the rights byte the guest claims.
	grantedURefs map[StateDigest]AccessRights

	returnData []byte
	reverted   bool
}

// WithGrantedURefs seeds the frame's capability table, called by the deploy
// pipeline before running the payment/session programs.
func (ec *ExecutionContext) WithGrantedURefs(grants map[StateDigest]AccessRights) *ExecutionContext {
	ec.grantedURefs = grants
	return ec
}

// grant records that address carries rights for the remainder of this
// frame, merging with any rights already granted for that address.
func (ec *ExecutionContext) grant(address StateDigest, rights AccessRights) {
	if ec.grantedURefs == nil {
		ec.grantedURefs = map[StateDigest]AccessRights{}
	}
	ec.grantedURefs[address] |= rights
}

// WithSystemContracts attaches the Mint and ProofOfStake system contracts an
// ExecutionContext's host calls (create_purse, transfer_from_purse_to_purse)
// delegate to.
func (ec *ExecutionContext) WithSystemContracts(mint *Mint, pos *ProofOfStake) *ExecutionContext {
	ec.mint = mint
	ec.pos = pos
	return ec
}

// WithCallContract attaches the callback used to service the call_contract
// host function.
func (ec *ExecutionContext) WithCallContract(fn func(target StateDigest, args []byte) ([]byte, error)) *ExecutionContext {
	ec.callContract = fn
	return ec
}

// Executor runs a deployed wasm program in a wasmer sandbox, exposing the
// fixed host API surface from host_api.go to the guest under the "env"
// namespace, exactly as the teacher's registerHost does for its own
// narrower host_read/host_write/host_log set.
type Executor struct {
	engine *wasmer.Engine
	trace  *zap.Logger
}

// NewExecutor constructs an Executor. trace may be nil, in which case a
// no-op logger is used.
func NewExecutor(trace *zap.Logger) *Executor {
	if trace == nil {
		trace = zap.NewNop()
	}
	return &Executor{engine: wasmer.NewEngine(), trace: trace}
}

// Run compiles and executes wasm bytecode against ec, charging gas for every
// host function call. Guest instructions themselves are not metered here
// (WasmCosts.Opcode is not charged). A guest trap is reported as
// ExecInvalidWasm.
func (ex *Executor) Run(bytecode []byte, ec *ExecutionContext) (res ExecutionResult, retErr error) {
	corrID := ec.CorrelationID
	if corrID == "" {
		corrID = uuid.NewString()
		ec.CorrelationID = corrID
	}
	logger := logrus.WithFields(logrus.Fields{"correlation_id": corrID, "caller": ec.Caller.Hex()})
	ex.trace.Debug("executor.run", zap.String("correlation_id", corrID), zap.Int("bytecode_len", len(bytecode)))

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("executor: guest panicked")
			res = ExecutionResult{Status: ExecInvalidWasm, GasUsed: ec.GasMeter.Used(), Error: fmt.Sprintf("panic: %v", r)}
			retErr = nil
		}
	}()

	store := wasmer.NewStore(ex.engine)
	module, err := wasmer.NewModule(store, bytecode)
	if err != nil {
		logger.WithError(err).Warn("executor: invalid wasm module")
		return ExecutionResult{Status: ExecInvalidWasm, Error: err.Error()}, nil
	}

	hctx := &hostCtx{ec: ec}
	imports := registerHostImports(store, hctx)

	instance, err := wasmer.NewInstance(module, imports)
	if err != nil {
		return ExecutionResult{Status: ExecInvalidWasm, Error: err.Error()}, nil
	}

	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return ExecutionResult{Status: ExecInvalidWasm, Error: "wasm memory export missing"}, nil
	}
	hctx.mem = mem

	start, err := instance.Exports.GetFunction("_start")
	if err != nil {
		return ExecutionResult{Status: ExecInvalidWasm, Error: "_start function required"}, nil
	}

	_, err = start()
	gasUsed := ec.GasMeter.Used()

	switch {
	case errors.Is(err, ErrOutOfGas) || errors.Is(hctx.hostErr, ErrOutOfGas):
		return ExecutionResult{Status: ExecOutOfGas, GasUsed: gasUsed, Error: ErrOutOfGas.Error()}, nil
	case ec.reverted:
		return ExecutionResult{Status: ExecRevert, GasUsed: gasUsed, ReturnData: ec.returnData, Error: "reverted"}, nil
	case err != nil:
		return ExecutionResult{Status: ExecInvalidWasm, GasUsed: gasUsed, Error: err.Error()}, nil
	default:
		return ExecutionResult{Status: ExecSuccess, GasUsed: gasUsed, ReturnData: ec.returnData}, nil
	}
}

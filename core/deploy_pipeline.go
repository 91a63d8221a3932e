// Deploy processing: preconditions, payment, session, finalization, grounded
// on the teacher's ContractRegistry.Invoke/InvokeWithReceipt gas-clamp-and-
// route pattern (contracts.go), generalized from a single VM call into the
// four-phase payment/session split.
package core

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxPaymentGas bounds the fixed, small gas allowance every payment program
// runs under, regardless of what the session phase later requests.
const maxPaymentGas uint64 = 1_000_000

// DeployOutcome enumerates how a deploy's processing terminated, per the
// engine's error taxonomy (preconditions vs session execution result).
type DeployOutcome uint8

const (
	DeploySuccess DeployOutcome = iota
	DeployRevert
	DeployOutOfGas
	DeployTrap
	DeployPreconditionFailure
)

func (o DeployOutcome) String() string {
	switch o {
	case DeploySuccess:
		return "success"
	case DeployRevert:
		return "revert"
	case DeployOutOfGas:
		return "out_of_gas"
	case DeployTrap:
		return "trap"
	case DeployPreconditionFailure:
		return "precondition_failure"
	default:
		return "unknown"
	}
}

// Deploy is a single user-submitted transaction: a payment program and a
// session program, run against an authorized account.
type Deploy struct {
	Account        Address
	PaymentProgram []byte
	PaymentArgs    DeployArgs
	SessionProgram []byte
	SessionArgs    DeployArgs
	GasPrice       uint64
	RefundPurse    *URef
	CorrelationID  string
}

// DeployResult is the outcome of processing one Deploy: the net effects to
// later commit, the gas cost charged, and the termination reason.
type DeployResult struct {
	Outcome    DeployOutcome
	Effects    []KeyTransform
	GasCost    uint64
	Error      string
	ReturnData []byte
}

// DeployPipeline processes deploys against a StateView, charging gas and
// routing execution through the shared Executor and system contracts.
type DeployPipeline struct {
	executor *Executor
	mint     *Mint
	pos      *ProofOfStake
}

// NewDeployPipeline constructs a DeployPipeline bound to the given Executor
// and system contracts.
func NewDeployPipeline(executor *Executor, mint *Mint, pos *ProofOfStake) *DeployPipeline {
	return &DeployPipeline{executor: executor, mint: mint, pos: pos}
}

// Process runs one Deploy against view, implementing the four phases
// verbatim: preconditions, payment, session, finalization.
func (dp *DeployPipeline) Process(view *StateView, d Deploy, protocolVersion ProtocolVersion) (DeployResult, error) {
	corrID := d.CorrelationID
	if corrID == "" {
		corrID = uuid.NewString()
	}
	log := logrus.WithFields(logrus.Fields{"correlation_id": corrID, "account": d.Account.Hex()})

	// 1. Preconditions.
	tcA := NewTrackingCopy(view)
	acctVal, err := tcA.Read(AccountKey(d.Account))
	if err != nil {
		log.WithError(err).Warn("deploy: precondition failure, unknown account")
		return DeployResult{Outcome: DeployPreconditionFailure, Error: "account not found"}, nil
	}
	if d.GasPrice == 0 {
		return DeployResult{Outcome: DeployPreconditionFailure, Error: "gas price must be positive"}, nil
	}
	dp.pos.EnsureSystemPurses(tcA)
	grants := grantsForAccount(acctVal.Account)

	// 2. Payment phase.
	paymentEC := &ExecutionContext{
		CorrelationID:   corrID,
		Caller:          d.Account,
		ContractKey:     AccountKey(d.Account),
		Args:            d.PaymentArgs,
		GasMeter:        NewGasMeter(maxPaymentGas),
		TrackingCopy:    tcA,
		ProtocolVersion: protocolVersion,
	}
	paymentEC.WithSystemContracts(dp.mint, dp.pos)
	paymentEC.WithGrantedURefs(cloneGrants(grants))

	paymentRes, err := dp.executor.Run(d.PaymentProgram, paymentEC)
	if err != nil {
		return DeployResult{}, fmt.Errorf("deploy: payment phase: %w", err)
	}
	if paymentRes.Status != ExecSuccess {
		log.WithField("payment_status", paymentRes.Status).Warn("deploy: insufficient payment")
		return DeployResult{Outcome: DeployPreconditionFailure, Error: "insufficient payment"}, nil
	}
	reserved, ok := decodeReservedAmount(paymentRes.ReturnData)
	if !ok || reserved.Sign() <= 0 {
		return DeployResult{Outcome: DeployPreconditionFailure, Error: "payment program did not reserve a positive amount"}, nil
	}

	// 3. Session phase, overlaid on A's effects.
	tcB := tcA.Child()
	gasLimit := new(big.Int).Quo(reserved, new(big.Int).SetUint64(d.GasPrice)).Uint64()
	sessionEC := &ExecutionContext{
		CorrelationID:   corrID,
		Caller:          d.Account,
		ContractKey:     AccountKey(d.Account),
		Args:            d.SessionArgs,
		GasMeter:        NewGasMeter(gasLimit),
		TrackingCopy:    tcB,
		ProtocolVersion: protocolVersion,
	}
	sessionEC.WithSystemContracts(dp.mint, dp.pos)
	sessionEC.WithGrantedURefs(cloneGrants(grants))

	sessionRes, err := dp.executor.Run(d.SessionProgram, sessionEC)
	if err != nil {
		return DeployResult{}, fmt.Errorf("deploy: session phase: %w", err)
	}

	var spent *big.Int
	var outcome DeployOutcome
	var sessionEffects []KeyTransform
	switch sessionRes.Status {
	case ExecSuccess:
		outcome = DeploySuccess
		spent = new(big.Int).Mul(new(big.Int).SetUint64(sessionRes.GasUsed), new(big.Int).SetUint64(d.GasPrice))
		sessionEffects, err = tcB.Effects()
		if err != nil {
			return DeployResult{}, fmt.Errorf("deploy: session effects: %w", err)
		}
	default:
		switch sessionRes.Status {
		case ExecOutOfGas:
			outcome = DeployOutOfGas
		case ExecInvalidWasm:
			outcome = DeployTrap
		default:
			outcome = DeployRevert
		}
		spent = new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), new(big.Int).SetUint64(d.GasPrice))
	}

	// 4. Finalization phase, overlaid on A (not B: session effects are
	// discarded on failure regardless of finalization's own outcome).
	tcC := tcA.Child()
	if err := dp.pos.FinalizePayment(tcC, dp.mint, reserved, spent, d.Account, d.RefundPurse); err != nil {
		log.WithError(err).Error("deploy: finalization failed, discarding all effects")
		return DeployResult{Outcome: DeployPreconditionFailure, Error: fmt.Sprintf("finalization failed: %v", err)}, nil
	}

	effectsA, err := tcA.Effects()
	if err != nil {
		return DeployResult{}, fmt.Errorf("deploy: payment effects: %w", err)
	}
	effectsC, err := tcC.Effects()
	if err != nil {
		return DeployResult{}, fmt.Errorf("deploy: finalization effects: %w", err)
	}

	all := make([]KeyTransform, 0, len(effectsA)+len(sessionEffects)+len(effectsC))
	all = append(all, effectsA...)
	all = append(all, sessionEffects...)
	all = append(all, effectsC...)

	log.WithFields(logrus.Fields{"outcome": outcome.String(), "gas_cost": spent.String()}).Info("deploy: processed")

	return DeployResult{
		Outcome:    outcome,
		Effects:    all,
		GasCost:    spent.Uint64(),
		ReturnData: sessionRes.ReturnData,
		Error:      sessionRes.Error,
	}, nil
}

// grantsForAccount builds the capability table a deploy's frames start
// with: full rights over the account's main purse, plus whatever rights
// each URef-typed named key was stored with. Anything else the guest
// presents — any URef address not reachable from the account this way, or
// one minted fresh via new_uref/create_purse during the frame — is forged
// until the host itself grants it.
func grantsForAccount(acct StoredAccount) map[StateDigest]AccessRights {
	grants := map[StateDigest]AccessRights{acct.MainPurse.Address: AccessFull}
	for _, k := range acct.NamedKeys {
		if k.Tag == KeyTagURef {
			grants[k.URef.Address] |= k.URef.Rights
		}
	}
	return grants
}

// cloneGrants copies a grant table so independent frames (payment, session)
// never observe each other's new_uref/create_purse grants.
func cloneGrants(grants map[StateDigest]AccessRights) map[StateDigest]AccessRights {
	out := make(map[StateDigest]AccessRights, len(grants))
	for k, v := range grants {
		out[k] = v
	}
	return out
}

// decodeReservedAmount interprets a payment program's ret() bytes as the
// big-endian uint64 amount reserved into the payment purse.
func decodeReservedAmount(b []byte) (*big.Int, bool) {
	if len(b) != 8 {
		return nil, false
	}
	return new(big.Int).SetUint64(binary.BigEndian.Uint64(b)), true
}

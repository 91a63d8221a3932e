// EngineService is the synchronous, five-operation surface the execution
// engine exposes to its caller: run_genesis, upgrade, execute, commit, and
// query. Grounded on the teacher's Node struct (node.go), which gathers the
// ledger, VM and consensus pieces behind one facade a transport layer calls
// into; EngineService plays the same role for this narrower set of
// operations.
package core

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// EngineService wires together the global state, the wasm executor and the
// mint/PoS system contracts behind the engine's fixed operation set.
type EngineService struct {
	gs              *GlobalState
	executor        *Executor
	mint            *Mint
	pos             *ProofOfStake
	pipeline        *DeployPipeline
	protocolVersion ProtocolVersion
}

// NewEngineService constructs an EngineService bound to gs, running wasm
// through a fresh Executor traced with trace (nil is fine; NewExecutor
// substitutes a no-op logger).
func NewEngineService(gs *GlobalState, trace *zap.Logger, protocolVersion ProtocolVersion) *EngineService {
	executor := NewExecutor(trace)
	mint := NewMint()
	pos := NewProofOfStake()
	return &EngineService{
		gs:              gs,
		executor:        executor,
		mint:            mint,
		pos:             pos,
		pipeline:        NewDeployPipeline(executor, mint, pos),
		protocolVersion: protocolVersion,
	}
}

// GenesisResponse is the outcome of RunGenesis.
type GenesisResponse struct {
	Success        bool
	PostStateDigest StateDigest
	Effect         []KeyTransform
	FailureMessage string
}

// RunGenesis constructs genesis state and, on success, adopts cfg's protocol
// version as the service's active version.
func (e *EngineService) RunGenesis(cfg GenesisConfig) GenesisResponse {
	res := RunGenesis(e.gs, cfg)
	if !res.Success {
		return GenesisResponse{FailureMessage: res.FailureMessage}
	}
	e.protocolVersion = cfg.ProtocolVersion
	return GenesisResponse{Success: true, PostStateDigest: res.PostDigest, Effect: res.Effects}
}

// UpgradeResponse is the outcome of Upgrade.
type UpgradeResponse struct {
	Success        bool
	PostStateDigest StateDigest
	Effect         []KeyTransform
	FailureMessage string
}

// Upgrade applies cfg against the service's currently active protocol
// version, adopting cfg.NewProtocolVersion on success.
func (e *EngineService) Upgrade(cfg UpgradeConfig) UpgradeResponse {
	res := RunUpgrade(e.gs, e.protocolVersion, cfg)
	if !res.Success {
		return UpgradeResponse{FailureMessage: res.FailureMessage}
	}
	e.protocolVersion = cfg.NewProtocolVersion
	return UpgradeResponse{Success: true, PostStateDigest: res.PostDigest, Effect: res.Effects}
}

// ExecuteRequest is the input to Execute: a batch of deploys to run
// sequentially against parent_state_digest's post-state.
type ExecuteRequest struct {
	ParentStateDigest StateDigest
	BlockTime         uint64
	ProtocolVersion   ProtocolVersion
	Deploys           []Deploy
}

// ExecuteResponse is the outcome of Execute: either the parent digest names
// no known snapshot, or a per-deploy result list.
type ExecuteResponse struct {
	MissingParent bool
	DeployResults []DeployResult
}

// Execute runs req.Deploys strictly sequentially, each one's effects visible
// to the next via an in-memory overlay, without touching the durable WAL.
// The combined effects of every deploy are returned for the caller to commit
// atomically via Commit; Execute itself never commits.
func (e *EngineService) Execute(req ExecuteRequest) (ExecuteResponse, error) {
	if _, ok := e.gs.Checkout(req.ParentStateDigest); !ok {
		return ExecuteResponse{MissingParent: true}, nil
	}

	results := make([]DeployResult, 0, len(req.Deploys))
	accumulated := make([]KeyTransform, 0)

	for _, d := range req.Deploys {
		view, err := e.gs.OverlayView(req.ParentStateDigest, accumulated)
		if err != nil {
			return ExecuteResponse{}, fmt.Errorf("engine: execute: build overlay: %w", err)
		}

		res, err := e.pipeline.Process(view, d, req.ProtocolVersion)
		if err != nil {
			return ExecuteResponse{}, fmt.Errorf("engine: execute: deploy %s: %w", d.CorrelationID, err)
		}
		results = append(results, res)
		accumulated = append(accumulated, res.Effects...)
	}

	logrus.WithFields(logrus.Fields{
		"parent_state_digest": req.ParentStateDigest.String(),
		"deploys":             len(req.Deploys),
		"block_time":          req.BlockTime,
	}).Info("engine: execute batch processed")

	return ExecuteResponse{DeployResults: results}, nil
}

// CommitRequest is the input to Commit: the full set of effects (typically
// the combined effects of an Execute batch) to fold into pre_state_digest.
type CommitRequest struct {
	ProtocolVersion ProtocolVersion
	PreStateDigest  StateDigest
	Effects         []KeyTransform
}

// CommitOutcome enumerates the reasons Commit can fail to apply an effect
// set, per the engine's error taxonomy.
type CommitOutcome uint8

const (
	CommitSuccess CommitOutcome = iota
	CommitMissingPrestate
	CommitKeyNotFound
	CommitTypeMismatch
	CommitFailedTransform
)

// CommitResponse is the outcome of Commit.
type CommitResponse struct {
	Outcome          CommitOutcome
	PostStateDigest  StateDigest
	BondedValidators []BondedValidator
	Message          string
}

// Commit applies req.Effects against req.PreStateDigest's snapshot,
// producing a new persistent snapshot and reporting the resulting bonded
// validator set.
func (e *EngineService) Commit(req CommitRequest) (CommitResponse, error) {
	result, err := e.gs.Commit(req.PreStateDigest, req.Effects)
	if err != nil {
		switch {
		case errors.Is(err, ErrDigestNotFound):
			return CommitResponse{Outcome: CommitMissingPrestate, Message: err.Error()}, nil
		case errors.Is(err, ErrKeyNotFound):
			return CommitResponse{Outcome: CommitKeyNotFound, Message: err.Error()}, nil
		case errors.Is(err, ErrTypeMismatch):
			return CommitResponse{Outcome: CommitTypeMismatch, Message: err.Error()}, nil
		default:
			return CommitResponse{Outcome: CommitFailedTransform, Message: err.Error()}, nil
		}
	}

	view, ok := e.gs.Checkout(result.PostDigest)
	if !ok {
		return CommitResponse{}, fmt.Errorf("engine: commit: post-state %s vanished immediately after commit", result.PostDigest)
	}
	tc := NewTrackingCopy(view)
	bonded := e.pos.BondedValidators(tc)

	return CommitResponse{Outcome: CommitSuccess, PostStateDigest: result.PostDigest, BondedValidators: bonded}, nil
}

// QueryRequest is the input to Query.
type QueryRequest struct {
	StateDigest StateDigest
	BaseKey     Key
	Path        []string
}

// QueryResponse is the outcome of Query.
type QueryResponse struct {
	Success        bool
	Value          Value
	FailureMessage string
}

// Query resolves req.Path from req.BaseKey against the snapshot named by
// req.StateDigest.
func (e *EngineService) Query(req QueryRequest) QueryResponse {
	view, ok := e.gs.Checkout(req.StateDigest)
	if !ok {
		return QueryResponse{FailureMessage: fmt.Sprintf("query: state digest %s not found", req.StateDigest)}
	}
	res, err := Query(view, req.BaseKey, req.Path)
	if err != nil {
		return QueryResponse{FailureMessage: err.Error()}
	}
	if !res.Found {
		return QueryResponse{FailureMessage: fmt.Sprintf("query: value not found after %d path segments", res.PrefixConsumed)}
	}
	return QueryResponse{Success: true, Value: res.Value}
}

package core

import (
	"math/big"
	"path/filepath"
	"testing"
)

func newTestEngineService(t *testing.T) *EngineService {
	t.Helper()
	dir := t.TempDir()
	gs, err := NewGlobalState(GlobalStateConfig{
		WALPath:      filepath.Join(dir, "state.wal"),
		SnapshotPath: filepath.Join(dir, "state.snap"),
	})
	if err != nil {
		t.Fatalf("NewGlobalState: %v", err)
	}
	t.Cleanup(func() { gs.Close() })
	return NewEngineService(gs, nil, NewProtocolVersion(1, 0, 0))
}

func TestEngineServiceRunGenesisAdoptsProtocolVersion(t *testing.T) {
	e := newTestEngineService(t)
	acct := Address{1}

	res := e.RunGenesis(GenesisConfig{
		ProtocolVersion: NewProtocolVersion(2, 0, 0),
		Accounts:        []GenesisAccount{{Address: acct, Balance: big.NewInt(100)}},
		WasmCosts:       DefaultWasmCosts(),
	})
	if !res.Success {
		t.Fatalf("genesis failed: %s", res.FailureMessage)
	}
	if e.protocolVersion.Major != 2 {
		t.Fatalf("expected adopted protocol version 2.0.0, got %s", e.protocolVersion)
	}
}

func TestEngineServiceCommitReportsBondedValidators(t *testing.T) {
	e := newTestEngineService(t)
	validator := Address{4, 2}

	gres := e.RunGenesis(GenesisConfig{
		ProtocolVersion: NewProtocolVersion(1, 0, 0),
		WasmCosts:       DefaultWasmCosts(),
		InitialBonds:    []InitialBond{{Validator: validator, Amount: big.NewInt(250)}},
	})
	if !gres.Success {
		t.Fatalf("genesis failed: %s", gres.FailureMessage)
	}

	cres, err := e.Commit(CommitRequest{
		ProtocolVersion: e.protocolVersion,
		PreStateDigest:  gres.PostStateDigest,
		Effects:         nil,
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if cres.Outcome != CommitSuccess {
		t.Fatalf("expected CommitSuccess, got %v: %s", cres.Outcome, cres.Message)
	}
	if len(cres.BondedValidators) != 1 || cres.BondedValidators[0].Validator != validator {
		t.Fatalf("unexpected bonded validators: %+v", cres.BondedValidators)
	}
}

func TestEngineServiceCommitMissingPrestate(t *testing.T) {
	e := newTestEngineService(t)
	cres, err := e.Commit(CommitRequest{PreStateDigest: HashBytes([]byte("missing"))})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if cres.Outcome != CommitMissingPrestate {
		t.Fatalf("expected CommitMissingPrestate, got %v", cres.Outcome)
	}
}

func TestEngineServiceQueryResolvesAccount(t *testing.T) {
	e := newTestEngineService(t)
	acct := Address{3, 3, 3}

	gres := e.RunGenesis(GenesisConfig{
		ProtocolVersion: NewProtocolVersion(1, 0, 0),
		WasmCosts:       DefaultWasmCosts(),
		Accounts:        []GenesisAccount{{Address: acct, Balance: big.NewInt(777)}},
	})
	if !gres.Success {
		t.Fatalf("genesis failed: %s", gres.FailureMessage)
	}

	qres := e.Query(QueryRequest{StateDigest: gres.PostStateDigest, BaseKey: AccountKey(acct)})
	if !qres.Success {
		t.Fatalf("query failed: %s", qres.FailureMessage)
	}
	if qres.Value.Tag != ValueTagAccount {
		t.Fatalf("expected account value, got tag %v", qres.Value.Tag)
	}
}

func TestEngineServiceExecuteMissingParent(t *testing.T) {
	e := newTestEngineService(t)
	res, err := e.Execute(ExecuteRequest{ParentStateDigest: HashBytes([]byte("ghost"))})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.MissingParent {
		t.Fatalf("expected MissingParent for unknown digest")
	}
}

func TestEngineServiceExecuteZeroDigestIsMissingParent(t *testing.T) {
	e := newTestEngineService(t)
	res, err := e.Execute(ExecuteRequest{
		ParentStateDigest: StateDigest{},
		Deploys:           []Deploy{{Account: Address{1}, GasPrice: 1}},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.MissingParent {
		t.Fatalf("expected the all-zero parent digest to report MissingParent without executing")
	}
	if len(res.DeployResults) != 0 {
		t.Fatalf("expected no deploys to run against an unknown parent, got %d results", len(res.DeployResults))
	}
}

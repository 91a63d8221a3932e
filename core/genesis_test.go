package core

import (
	"math/big"
	"path/filepath"
	"testing"
)

func TestRunGenesisAllocatesAccountsAndBonds(t *testing.T) {
	dir := t.TempDir()
	gs, err := NewGlobalState(GlobalStateConfig{
		WALPath:      filepath.Join(dir, "state.wal"),
		SnapshotPath: filepath.Join(dir, "state.snap"),
	})
	if err != nil {
		t.Fatalf("NewGlobalState: %v", err)
	}
	defer gs.Close()

	acct := Address{9, 9, 9}
	validator := Address{7, 7, 7}

	cfg := GenesisConfig{
		ProtocolVersion: NewProtocolVersion(1, 0, 0),
		Accounts:        []GenesisAccount{{Address: acct, Balance: big.NewInt(1000)}},
		WasmCosts:       DefaultWasmCosts(),
		InitialBonds:    []InitialBond{{Validator: validator, Amount: big.NewInt(500)}},
	}

	res := RunGenesis(gs, cfg)
	if !res.Success {
		t.Fatalf("genesis failed: %s", res.FailureMessage)
	}

	view, ok := gs.Checkout(res.PostDigest)
	if !ok {
		t.Fatalf("post-genesis digest not checkout-able")
	}
	tc := NewTrackingCopy(view)

	acctVal, err := tc.Read(AccountKey(acct))
	if err != nil {
		t.Fatalf("read account: %v", err)
	}
	if acctVal.Tag != ValueTagAccount {
		t.Fatalf("expected account value, got tag %v", acctVal.Tag)
	}
	mint := NewMint()
	bal, err := mint.Balance(tc, acctVal.Account.MainPurse)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected balance 1000, got %s", bal)
	}

	pos := NewProofOfStake()
	bonded := pos.BondedValidators(tc)
	if len(bonded) != 1 {
		t.Fatalf("expected 1 bonded validator, got %d", len(bonded))
	}
	if bonded[0].Validator != validator {
		t.Fatalf("unexpected bonded validator: %x", bonded[0].Validator)
	}
	if bonded[0].Amount.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected bonded amount 500, got %s", bonded[0].Amount)
	}
}

func TestRunGenesisWithNoAccountsOrBondsSucceeds(t *testing.T) {
	dir := t.TempDir()
	gs, err := NewGlobalState(GlobalStateConfig{
		WALPath:      filepath.Join(dir, "state.wal"),
		SnapshotPath: filepath.Join(dir, "state.snap"),
	})
	if err != nil {
		t.Fatalf("NewGlobalState: %v", err)
	}
	defer gs.Close()

	res := RunGenesis(gs, GenesisConfig{ProtocolVersion: NewProtocolVersion(1, 0, 0), WasmCosts: DefaultWasmCosts()})
	if !res.Success {
		t.Fatalf("genesis with no accounts/bonds should still succeed: %s", res.FailureMessage)
	}
}

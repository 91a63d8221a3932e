package core

import (
	"math/big"
	"testing"
)

func newTestTrackingCopy(t *testing.T) *TrackingCopy {
	t.Helper()
	gs := newTestGlobalState(t)
	return NewTrackingCopy(gs.CheckoutPreGenesis())
}

func TestMintCreatePurseAndBalance(t *testing.T) {
	tc := newTestTrackingCopy(t)
	mint := NewMint()

	purse := mint.CreatePurse(tc)
	bal, err := mint.Balance(tc, purse)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal.Sign() != 0 {
		t.Fatalf("expected zero balance for a fresh purse, got %s", bal)
	}
}

func TestMintTransferMovesBalance(t *testing.T) {
	tc := newTestTrackingCopy(t)
	mint := NewMint()

	from := mint.CreatePurse(tc)
	to := mint.CreatePurse(tc)
	if err := mint.MintTo(tc, big.NewInt(0), from, big.NewInt(100)); err != nil {
		t.Fatalf("MintTo: %v", err)
	}

	if err := mint.Transfer(tc, from, to, big.NewInt(40)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	fromBal, _ := mint.Balance(tc, from)
	toBal, _ := mint.Balance(tc, to)
	if fromBal.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected source balance 60, got %s", fromBal)
	}
	if toBal.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("expected destination balance 40, got %s", toBal)
	}
}

func TestMintTransferInsufficientBalance(t *testing.T) {
	tc := newTestTrackingCopy(t)
	mint := NewMint()

	from := mint.CreatePurse(tc)
	to := mint.CreatePurse(tc)

	if err := mint.Transfer(tc, from, to, big.NewInt(1)); err == nil {
		t.Fatalf("expected insufficient balance error")
	}
}

func TestMintTransferAccessDenied(t *testing.T) {
	tc := newTestTrackingCopy(t)
	mint := NewMint()

	readOnly := URef{Address: HashBytes([]byte("ro")), Rights: AccessRead}
	tc.Write(URefKey(readOnly), UInt512Value(big.NewInt(10)))
	dest := mint.CreatePurse(tc)

	if err := mint.Transfer(tc, readOnly, dest, big.NewInt(1)); err == nil {
		t.Fatalf("expected access denied error for a read-only source purse")
	}
}

func TestMintMintToEnforcesSupplyCap(t *testing.T) {
	tc := newTestTrackingCopy(t)
	mint := NewMint()
	purse := mint.CreatePurse(tc)

	over := new(big.Int).Add(MaxSupply, big.NewInt(1))
	if err := mint.MintTo(tc, big.NewInt(0), purse, over); err == nil {
		t.Fatalf("expected supply cap error")
	}
}

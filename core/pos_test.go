package core

import (
	"math/big"
	"testing"
)

func TestProofOfStakeBondAndUnbond(t *testing.T) {
	tc := newTestTrackingCopy(t)
	mint := NewMint()
	pos := NewProofOfStake()

	validator := Address{5}
	purse := mint.CreatePurse(tc)
	if err := mint.MintTo(tc, big.NewInt(0), purse, big.NewInt(1000)); err != nil {
		t.Fatalf("MintTo: %v", err)
	}

	if err := pos.Bond(tc, mint, validator, purse, big.NewInt(300)); err != nil {
		t.Fatalf("Bond: %v", err)
	}
	if got := pos.BondedAmount(tc, validator); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("expected bonded amount 300, got %s", got)
	}

	bonded := pos.BondedValidators(tc)
	if len(bonded) != 1 || bonded[0].Validator != validator {
		t.Fatalf("unexpected bonded validators: %+v", bonded)
	}

	if err := pos.Unbond(tc, mint, validator, purse, big.NewInt(100)); err != nil {
		t.Fatalf("Unbond: %v", err)
	}
	if got := pos.BondedAmount(tc, validator); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("expected bonded amount 200 after unbond, got %s", got)
	}

	purseBal, _ := mint.Balance(tc, purse)
	if purseBal.Cmp(big.NewInt(800)) != 0 {
		t.Fatalf("expected purse balance 800 after bond+unbond, got %s", purseBal)
	}
}

func TestProofOfStakeUnbondExceedsBonded(t *testing.T) {
	tc := newTestTrackingCopy(t)
	mint := NewMint()
	pos := NewProofOfStake()

	validator := Address{6}
	purse := mint.CreatePurse(tc)
	mint.MintTo(tc, big.NewInt(0), purse, big.NewInt(100))
	pos.Bond(tc, mint, validator, purse, big.NewInt(50))

	if err := pos.Unbond(tc, mint, validator, purse, big.NewInt(100)); err == nil {
		t.Fatalf("expected error unbonding more than bonded")
	}
}

func TestProofOfStakeFinalizePaymentRefundsMainPurse(t *testing.T) {
	tc := newTestTrackingCopy(t)
	mint := NewMint()
	pos := NewProofOfStake()
	pos.EnsureSystemPurses(tc)

	account := Address{8}
	mainPurse := mint.CreatePurse(tc)
	tc.Write(AccountKey(account), Value{Tag: ValueTagAccount, Account: StoredAccount{MainPurse: mainPurse, NamedKeys: map[string]Key{}}})

	payment := pos.PaymentPurse()
	if err := mint.MintTo(tc, big.NewInt(0), payment, big.NewInt(100)); err != nil {
		t.Fatalf("seed payment purse: %v", err)
	}

	if err := pos.FinalizePayment(tc, mint, big.NewInt(100), big.NewInt(30), account, nil); err != nil {
		t.Fatalf("FinalizePayment: %v", err)
	}

	rewardsBal, _ := mint.Balance(tc, pos.RewardsPurse())
	if rewardsBal.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("expected rewards purse to hold 30, got %s", rewardsBal)
	}
	mainBal, _ := mint.Balance(tc, mainPurse)
	if mainBal.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("expected main purse refund of 70, got %s", mainBal)
	}
}

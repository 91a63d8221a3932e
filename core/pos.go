// ProofOfStake is the system contract tracking validator bonds, grounded on
// the teacher's AuthoritySet/bonding pattern (authority_nodes.go): bonding
// amounts are recorded against an account's purse rather than a
// role-threshold vote table, since bonding here is scoped to what the host
// API's get_pos surface needs: a place deploys can bond and unbond stake.
package core

import (
	"fmt"
	"math/big"
)

// bondedKey builds the Key under which a validator's bonded amount is
// stored: a content-addressed hash of "bond:" plus the validator address,
// so bonding state lives in the same keyspace as everything else global
// state tracks.
func bondedKey(validator Address) Key {
	return HashKey(HashBytes(append([]byte("bond:"), validator[:]...)))
}

// bondedIndexKey names the NamedKeys Value tracking every validator address
// that has ever bonded, so a committed state's full bonded-validator set can
// be enumerated without scanning every possible address.
func bondedIndexKey() Key {
	return HashKey(HashBytes([]byte("system:bonded-index")))
}

// ProofOfStake manages validator bonds inside a TrackingCopy.
type ProofOfStake struct{}

func NewProofOfStake() *ProofOfStake { return &ProofOfStake{} }

// Bond increases a validator's bonded amount, debiting the supplied purse
// through the Mint.
func (p *ProofOfStake) Bond(tc *TrackingCopy, mint *Mint, validator Address, from URef, amount *big.Int) error {
	sink := URef{Address: HashBytes(append([]byte("bond-purse:"), validator[:]...)), Rights: AccessFull}
	if _, err := mint.Balance(tc, sink); err != nil {
		tc.Write(URefKey(sink), UInt512Value(big.NewInt(0)))
	}
	if err := mint.Transfer(tc, from, sink, amount); err != nil {
		return fmt.Errorf("pos: bond transfer: %w", err)
	}
	if err := tc.Add(bondedKey(validator), AddUInt512Transform(amount)); err != nil {
		return err
	}
	return tc.Add(bondedIndexKey(), AddKeysTransform(map[string]Key{validator.Hex(): bondedKey(validator)}))
}

// Unbond decreases a validator's bonded amount, crediting it back to the
// supplied purse.
func (p *ProofOfStake) Unbond(tc *TrackingCopy, mint *Mint, validator Address, to URef, amount *big.Int) error {
	v, err := tc.Read(bondedKey(validator))
	if err != nil {
		return fmt.Errorf("pos: unbond: validator not bonded: %w", err)
	}
	if v.Tag != ValueTagUInt512 || v.UInt512.Cmp(amount) < 0 {
		return fmt.Errorf("%w: insufficient bonded amount", ErrInsufficientBalance)
	}
	tc.Write(bondedKey(validator), UInt512Value(new(big.Int).Sub(v.UInt512, amount)))
	sink := URef{Address: HashBytes(append([]byte("bond-purse:"), validator[:]...)), Rights: AccessFull}
	return mint.Transfer(tc, sink, to, amount)
}

// BondedAmount returns the amount currently bonded by validator, or zero if
// it has never bonded.
func (p *ProofOfStake) BondedAmount(tc *TrackingCopy, validator Address) *big.Int {
	v, err := tc.Read(bondedKey(validator))
	if err != nil || v.Tag != ValueTagUInt512 {
		return big.NewInt(0)
	}
	return v.UInt512
}

// BondedValidator pairs a validator address with its currently bonded
// amount, returned by BondedValidators.
type BondedValidator struct {
	Validator Address
	Amount    *big.Int
}

// BondedValidators enumerates every validator that has ever bonded and its
// current bonded amount, read through tc.
func (p *ProofOfStake) BondedValidators(tc *TrackingCopy) []BondedValidator {
	idx, err := tc.Read(bondedIndexKey())
	if err != nil || idx.Tag != ValueTagNamedKeys {
		return nil
	}
	out := make([]BondedValidator, 0, len(idx.NamedKeys))
	for hexAddr := range idx.NamedKeys {
		addr, err := AddressFromHex(hexAddr)
		if err != nil {
			continue
		}
		out = append(out, BondedValidator{Validator: addr, Amount: p.BondedAmount(tc, addr)})
	}
	return out
}

// PaymentPurse returns the well-known purse every deploy's payment phase
// reserves funds into.
func (p *ProofOfStake) PaymentPurse() URef {
	return URef{Address: HashBytes([]byte("system:payment-purse")), Rights: AccessFull}
}

// RewardsPurse returns the well-known purse block rewards accumulate in.
func (p *ProofOfStake) RewardsPurse() URef {
	return URef{Address: HashBytes([]byte("system:rewards-purse")), Rights: AccessFull}
}

// EnsureSystemPurses seeds the payment and rewards purses with a zero
// balance if they have never been written, so the first deploy against a
// fresh chain doesn't trip ErrKeyNotFound in Mint.Transfer's balance check.
func (p *ProofOfStake) EnsureSystemPurses(tc *TrackingCopy) {
	for _, u := range []URef{p.PaymentPurse(), p.RewardsPurse()} {
		if _, err := tc.Read(URefKey(u)); err != nil {
			tc.Write(URefKey(u), UInt512Value(big.NewInt(0)))
		}
	}
}

// FinalizePayment transfers spent out of the payment purse into the rewards
// purse, then refunds whatever remains of reserved to the explicit refund
// purse if set, otherwise to the account's main purse.
func (p *ProofOfStake) FinalizePayment(tc *TrackingCopy, mint *Mint, reserved, spent *big.Int, account Address, refundPurse *URef) error {
	payment := p.PaymentPurse()
	rewards := p.RewardsPurse()
	if err := mint.Transfer(tc, payment, rewards, spent); err != nil {
		return fmt.Errorf("pos: finalize payment: %w", err)
	}
	refund := new(big.Int).Sub(reserved, spent)
	if refund.Sign() <= 0 {
		return nil
	}
	dst := refundPurse
	if dst == nil {
		acct, err := tc.Read(AccountKey(account))
		if err != nil || acct.Tag != ValueTagAccount {
			return fmt.Errorf("pos: finalize payment: account %s has no main purse", account.Hex())
		}
		mp := acct.Account.MainPurse
		dst = &mp
	}
	if err := mint.Transfer(tc, payment, *dst, refund); err != nil {
		return fmt.Errorf("pos: finalize payment: refund: %w", err)
	}
	return nil
}

// Mint is the system contract responsible for purses: every account's
// main purse and every transient purse created via the create_purse host
// function. Grounded on the teacher's Coin minting-cap manager (coin.go),
// generalized from a single network coin balance into the content-addressed
// purse model the host API surface exposes.
package core

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MaxSupply bounds the total units a Mint will ever hold across all purses,
// mirroring the teacher's coin.go cap.
var MaxSupply = new(big.Int).Mul(big.NewInt(1_000_000_000), big.NewInt(1_000_000_000))

// Mint manages purse balances inside a TrackingCopy. Every purse is a URef
// over a random 32-byte address; its balance is a UInt512 Value stored at
// that URef key.
type Mint struct{}

func NewMint() *Mint { return &Mint{} }

// CreatePurse mints a fresh purse with a zero balance and full access
// rights, returning the URef the caller should retain to spend from it.
func (m *Mint) CreatePurse(tc *TrackingCopy) URef {
	u := URef{Address: HashBytes([]byte(uuid.NewString())), Rights: AccessFull}
	tc.Write(URefKey(u), UInt512Value(big.NewInt(0)))
	return u
}

// Balance returns the current balance of a purse.
func (m *Mint) Balance(tc *TrackingCopy, u URef) (*big.Int, error) {
	v, err := tc.Read(URefKey(u))
	if err != nil {
		return nil, fmt.Errorf("mint: balance: %w", err)
	}
	if v.Tag != ValueTagUInt512 {
		return nil, fmt.Errorf("%w: purse balance is not UInt512", ErrTypeMismatch)
	}
	return v.UInt512, nil
}

// Transfer moves amount from one purse to another. Both URefs must carry
// AccessWrite (debit) and AccessAdd (credit) respectively; the mint itself
// is the only code path permitted to bypass per-key access checks, since it
// runs as a trusted system contract invoked through the host API rather
// than guest wasm.
func (m *Mint) Transfer(tc *TrackingCopy, from, to URef, amount *big.Int) error {
	if !from.Rights.CanWrite() {
		return fmt.Errorf("%w: source purse lacks write rights", ErrAccessDenied)
	}
	if !to.Rights.CanAdd() {
		return fmt.Errorf("%w: destination purse lacks add rights", ErrAccessDenied)
	}
	bal, err := m.Balance(tc, from)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, bal, amount)
	}
	if dst, err := tc.Read(URefKey(to)); err == nil && dst.Tag != ValueTagUInt512 {
		return fmt.Errorf("%w: destination purse balance is not UInt512", ErrTypeMismatch)
	}
	tc.Write(URefKey(from), UInt512Value(new(big.Int).Sub(bal, amount)))
	if err := tc.Add(URefKey(to), AddUInt512Transform(amount)); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"from": from.String(), "to": to.String(), "amount": amount.String()}).
		Debug("mint: transfer")
	return nil
}

// Mint credits amount to a purse without debiting another, used by genesis
// allocation and block-reward issuance. It enforces MaxSupply.
func (m *Mint) MintTo(tc *TrackingCopy, total *big.Int, to URef, amount *big.Int) error {
	if new(big.Int).Add(total, amount).Cmp(MaxSupply) > 0 {
		return fmt.Errorf("mint: minting %s would exceed cap %s", amount, MaxSupply)
	}
	return tc.Add(URefKey(to), AddUInt512Transform(amount))
}

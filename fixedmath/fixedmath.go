// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fixedmath provides checked fixed-point arithmetic over
// github.com/holiman/uint256, used by every pool and ledger balance in
// the AMM core. All token amounts are bounded to u128; intermediate
// products during swap/invariant math live in the full 256-bit range.
//
// There is no floating point anywhere in this package, and there must
// never be: every rounding direction below is load-bearing for the
// no-value-leaks-the-pool invariant the pools rely on.
package fixedmath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// FeeDivisor is the denominator basis-point fees are expressed over.
const FeeDivisor = 10_000

// ErrMathOverflow is raised whenever a checked operation would exceed
// its bound (u128 for balances/reserves, u256 for D/y intermediates).
var ErrMathOverflow = errors.New("fixedmath: overflow")

// ErrDivByZero is raised by mul_div when the denominator is zero.
var ErrDivByZero = errors.New("fixedmath: division by zero")

// MaxU128 is the inclusive upper bound for any token amount, reserve,
// or LP share count tracked by the core.
var MaxU128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

// FitsU128 reports whether x is within [0, 2^128-1].
func FitsU128(x *uint256.Int) bool {
	return x.Cmp(MaxU128) <= 0
}

// CheckU128 returns ErrMathOverflow if x does not fit in u128.
func CheckU128(x *uint256.Int) error {
	if !FitsU128(x) {
		return ErrMathOverflow
	}
	return nil
}

// FitsU128ForEach reports whether every value in xs fits in u128, the
// guard a pool runs over its whole reserve vector after a deposit.
func FitsU128ForEach(xs []*uint256.Int) bool {
	for _, x := range xs {
		if !FitsU128(x) {
			return false
		}
	}
	return true
}

// MulDivFloor computes floor(a*b/denom), checked against u128.
//
// a and b must each already fit u128 (the caller's responsibility —
// reserves, deposits and shares are always checked at their own
// boundary before reaching here), which guarantees the 256-bit
// product a*b never overflows uint256.Int's 256-bit range.
func MulDivFloor(a, b, denom *uint256.Int) (*uint256.Int, error) {
	if denom.IsZero() {
		return nil, ErrDivByZero
	}
	if err := CheckU128(a); err != nil {
		return nil, err
	}
	if err := CheckU128(b); err != nil {
		return nil, err
	}
	prod := new(uint256.Int).Mul(a, b)
	q := new(uint256.Int).Div(prod, denom)
	if err := CheckU128(q); err != nil {
		return nil, err
	}
	return q, nil
}

// MulDivCeil computes ceil(a*b/denom), checked against u128.
func MulDivCeil(a, b, denom *uint256.Int) (*uint256.Int, error) {
	if denom.IsZero() {
		return nil, ErrDivByZero
	}
	if err := CheckU128(a); err != nil {
		return nil, err
	}
	if err := CheckU128(b); err != nil {
		return nil, err
	}
	prod := new(uint256.Int).Mul(a, b)
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(prod, denom, r)
	if !r.IsZero() {
		q.Add(q, uint256.NewInt(1))
	}
	if err := CheckU128(q); err != nil {
		return nil, err
	}
	return q, nil
}

// MulDivFloorWide is MulDivFloor without the u128 bound on the result,
// used for u256 invariant quantities (D, c_amounts) that legitimately
// exceed u128 during stable-swap math.
func MulDivFloorWide(a, b, denom *uint256.Int) (*uint256.Int, error) {
	if denom.IsZero() {
		return nil, ErrDivByZero
	}
	prod := new(uint256.Int).Mul(a, b)
	return new(uint256.Int).Div(prod, denom), nil
}

// MulDivCeilWide is the unbounded counterpart of MulDivCeil.
func MulDivCeilWide(a, b, denom *uint256.Int) (*uint256.Int, error) {
	if denom.IsZero() {
		return nil, ErrDivByZero
	}
	prod := new(uint256.Int).Mul(a, b)
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(prod, denom, r)
	if !r.IsZero() {
		q.Add(q, uint256.NewInt(1))
	}
	return q, nil
}

// MulDivFloorWideChecked computes floor(a*b/denom) for operands whose
// product can exceed uint256's own 256-bit range — the constant-product
// swap formula's amount_in_with_fee*reserve_out term can reach ~270
// bits (amount_in_with_fee up to ~142 bits, reserve_out up to 128)
// even though the final quotient stays within u128. *uint256.Int's Mul truncates mod 2^256 and would silently wrap
// here, so the product is taken at math/big precision instead, via the
// same FromBig/ToBig bridge the teacher already uses to move amounts
// between big.Int and *uint256.Int (see dex/liquid.go, dex/lending.go).
// Returns ErrMathOverflow only if the quotient itself does not fit back
// into 256 bits.
func MulDivFloorWideChecked(a, b, denom *uint256.Int) (*uint256.Int, error) {
	if denom.IsZero() {
		return nil, ErrDivByZero
	}
	prod := new(big.Int).Mul(a.ToBig(), b.ToBig())
	q := new(big.Int).Div(prod, denom.ToBig())
	out, overflow := uint256.FromBig(q)
	if overflow {
		return nil, ErrMathOverflow
	}
	return out, nil
}

// ApplyFeeBp splits amount into (kept, fee) where fee = ceil(amount*bp/FeeDivisor)
// and kept = amount - fee. The rounding policy (spec §4.1) is: the
// user-facing side is floored, the pool/fee side is ceiled, so fee
// rounds up and kept rounds down — the pool never loses a unit to
// rounding.
func ApplyFeeBp(amount *uint256.Int, bp uint32) (kept, fee *uint256.Int, err error) {
	fee, err = MulDivCeilWide(amount, uint256.NewInt(uint64(bp)), uint256.NewInt(FeeDivisor))
	if err != nil {
		return nil, nil, err
	}
	if fee.Cmp(amount) > 0 {
		fee = new(uint256.Int).Set(amount)
	}
	kept = new(uint256.Int).Sub(amount, fee)
	return kept, fee, nil
}

// Min returns the smaller of a, b.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Max returns the larger of a, b.
func Max(a, b *uint256.Int) *uint256.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// AbsDiff returns |a-b|.
func AbsDiff(a, b *uint256.Int) *uint256.Int {
	if a.Cmp(b) >= 0 {
		return new(uint256.Int).Sub(a, b)
	}
	return new(uint256.Int).Sub(b, a)
}

// Sqrt computes floor(sqrt(x)) via Newton's method (Heron's method).
// The loop has no iteration cap: it stops as soon as an iterate no
// longer decreases. No example in the retrieval pack exposes an
// integer sqrt for *uint256.Int (go-ethereum's own uint256 release at
// the teacher's pinned version predates its Sqrt method), so this
// uses the same integer Newton style as the D and y solvers rather
// than reaching for a float approximation.
func Sqrt(x *uint256.Int) *uint256.Int {
	if x.IsZero() {
		return uint256.NewInt(0)
	}
	z := new(uint256.Int).Set(x)
	y := new(uint256.Int).Add(z, uint256.NewInt(1))
	y.Rsh(y, 1)
	for y.Cmp(z) < 0 {
		z.Set(y)
		y.Div(x, z)
		y.Add(y, z)
		y.Rsh(y, 1)
	}
	return z
}

// ScaleUp multiplies amount by 10^places (places >= 0), used to
// normalize a raw token balance to TARGET_DECIMALS precision.
func ScaleUp(amount *uint256.Int, places uint) *uint256.Int {
	if places == 0 {
		return new(uint256.Int).Set(amount)
	}
	factor := PowTen(places)
	return new(uint256.Int).Mul(amount, factor)
}

// ScaleDownFloor divides amount by 10^places, rounding down.
func ScaleDownFloor(amount *uint256.Int, places uint) *uint256.Int {
	if places == 0 {
		return new(uint256.Int).Set(amount)
	}
	factor := PowTen(places)
	return new(uint256.Int).Div(amount, factor)
}

// PowTen returns 10^n as a *uint256.Int.
func PowTen(n uint) *uint256.Int {
	ten := uint256.NewInt(10)
	result := uint256.NewInt(1)
	for i := uint(0); i < n; i++ {
		result.Mul(result, ten)
	}
	return result
}

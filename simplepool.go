// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ammcore

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/precompile/ammcore/fixedmath"
)

// SimplePool is the constant-product x*y=k pool for exactly two
// tokens. Reserves, total fee, and LP shares are all u128-bounded
// integers; no floating point ever touches the reserve math.
type SimplePool struct {
	id         PoolID
	tokens     [2]TokenID
	reserves   [2]*uint256.Int
	totalFeeBp uint32
	admin      AdminFees
	shares     *shareLedger
}

// NewSimplePool creates an empty two-token pool. totalFeeBp is charged
// on every swap's input amount; admin.ExchangeBp of that fee accrues
// to the exchange as minted LP shares (spec.md §4.8).
func NewSimplePool(id PoolID, tokenA, tokenB TokenID, totalFeeBp uint32, admin AdminFees) (*SimplePool, error) {
	if tokenA == tokenB {
		return nil, ErrTokenDupes
	}
	return &SimplePool{
		id:         id,
		tokens:     [2]TokenID{tokenA, tokenB},
		reserves:   [2]*uint256.Int{uint256.NewInt(0), uint256.NewInt(0)},
		totalFeeBp: totalFeeBp,
		admin:      admin,
		shares:     newShareLedger(),
	}, nil
}

func (p *SimplePool) ID() PoolID      { return p.id }
func (p *SimplePool) Kind() PoolKind  { return KindSimple }
func (p *SimplePool) Tokens() []TokenID { return []TokenID{p.tokens[0], p.tokens[1]} }

func (p *SimplePool) SharesOf(account AccountID) *uint256.Int { return p.shares.balanceOf(account) }
func (p *SimplePool) TotalShares() *uint256.Int               { return new(uint256.Int).Set(p.shares.total) }

func (p *SimplePool) TransferShares(from, to AccountID, shares *uint256.Int) error {
	return p.shares.transfer(from, to, shares)
}

func (p *SimplePool) other(idx int) int { return 1 - idx }

// Clone returns a deep copy of the pool safe to mutate independently.
func (p *SimplePool) Clone() Pool {
	return &SimplePool{
		id:         p.id,
		tokens:     p.tokens,
		reserves:   [2]*uint256.Int{new(uint256.Int).Set(p.reserves[0]), new(uint256.Int).Set(p.reserves[1])},
		totalFeeBp: p.totalFeeBp,
		admin:      p.admin,
		shares:     p.shares.clone(),
	}
}

// SwapOutGivenIn implements spec.md §4.2's literal constant-product
// formula in a single pass: amount_in_with_fee = dx*(FEE_DIVISOR-f) is
// left unrounded, and dy = floor(amount_in_with_fee*y / (x*FEE_DIVISOR
// + amount_in_with_fee)) is computed with exactly one division. This is
// deliberately not "round the fee, then divide" — rounding the fee
// first and dividing again is a different, lossier algorithm that
// disagrees with the spec's output on a large fraction of inputs. fee
// is still reported on SwapQuote via the ceil-rounded ApplyFeeBp, but
// only for accounting — it never feeds dy. The pool's own reserve_in
// increases by the *full* amount_in (including fee) so no value ever
// leaves the pool uncounted.
func (p *SimplePool) SwapOutGivenIn(tokenIn, tokenOut TokenID, amountIn *uint256.Int) (*SwapQuote, error) {
	if amountIn.IsZero() {
		return nil, ErrZeroAmount
	}
	if tokenIn == tokenOut {
		return nil, ErrSameToken
	}
	inIdx := indexOfToken(p.tokens[:], tokenIn)
	outIdx := indexOfToken(p.tokens[:], tokenOut)
	if inIdx < 0 || outIdx < 0 {
		return nil, ErrUnknownToken
	}
	reserveIn, reserveOut := p.reserves[inIdx], p.reserves[outIdx]
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrZeroLiquidity
	}
	if err := fixedmath.CheckU128(amountIn); err != nil {
		return nil, err
	}

	kOld := new(uint256.Int).Mul(reserveIn, reserveOut)

	feeFactor := uint256.NewInt(uint64(FeeDivisor - p.totalFeeBp))
	amountInWithFee := new(uint256.Int).Mul(amountIn, feeFactor)
	denom := new(uint256.Int).Add(new(uint256.Int).Mul(reserveIn, uint256.NewInt(FeeDivisor)), amountInWithFee)
	num, err := fixedmath.MulDivFloorWideChecked(amountInWithFee, reserveOut, denom)
	if err != nil {
		return nil, err
	}
	if num.Cmp(reserveOut) >= 0 {
		return nil, ErrInsufficientOutput
	}

	_, fee, err := fixedmath.ApplyFeeBp(amountIn, p.totalFeeBp)
	if err != nil {
		return nil, err
	}
	_, adminFeeAmount, err := fixedmath.ApplyFeeBp(fee, p.admin.ExchangeBp)
	if err != nil {
		return nil, err
	}

	newReserveInFull := new(uint256.Int).Add(reserveIn, amountIn)
	newReserveOut := new(uint256.Int).Sub(reserveOut, num)
	if !fixedmath.FitsU128(newReserveInFull) {
		return nil, ErrMathOverflow
	}

	p.mintAdminFeeShares(kOld, newReserveInFull, newReserveOut)

	p.reserves[inIdx] = newReserveInFull
	p.reserves[outIdx] = newReserveOut

	return &SwapQuote{AmountOut: num, FeeAmount: fee, AdminFeeAmount: adminFeeAmount, AdminFeeToken: tokenIn}, nil
}

// mintAdminFeeShares mints LP shares to the configured exchange
// account proportional to the pool's constant-product growth
// attributable to the retained swap fee, generalizing Uniswap v2's
// protocol-fee mint (sqrt(k) growth since the last liquidity event)
// by the admin's configured slice of the fee rather than a fixed 1/6.
func (p *SimplePool) mintAdminFeeShares(kOld *uint256.Int, newReserveIn, newReserveOut *uint256.Int) {
	if p.admin.ExchangeBp == 0 || p.shares.total.IsZero() {
		return
	}
	kNew := new(uint256.Int).Mul(newReserveIn, newReserveOut)
	if kNew.Cmp(kOld) <= 0 {
		return
	}
	rootOld := fixedmath.Sqrt(kOld)
	rootNew := fixedmath.Sqrt(kNew)
	if rootNew.Cmp(rootOld) <= 0 {
		return
	}
	growth := new(uint256.Int).Sub(rootNew, rootOld)
	num := new(uint256.Int).Mul(p.shares.total, growth)
	num = new(uint256.Int).Mul(num, uint256.NewInt(uint64(p.admin.ExchangeBp)))
	denom := new(uint256.Int).Mul(rootNew, uint256.NewInt(FeeDivisor))
	mintShares, err := fixedmath.MulDivFloorWide(num, uint256.NewInt(1), denom)
	if err != nil || mintShares.IsZero() {
		return
	}
	p.shares.mint(p.admin.ExchangeID, mintShares)
}

// AddLiquidity requires both requested amounts in [tokens[0],
// tokens[1]] order. The first provider sets the initial price and
// receives InitSharesSupply shares, consuming exactly what was
// requested. Every subsequent provider mints r = min(a0*ts/x, a1*ts/y)
// shares (spec.md §4.2) and only consumes the ceil-rounded pair
// (ceil(r*x/ts), ceil(r*y/ts)) that pair is worth at the current
// price — whichever side was oversupplied has its excess reported
// back as unconsumed so the caller can leave it in the provider's
// ledger rather than silently donate it to the pool.
func (p *SimplePool) AddLiquidity(account AccountID, amounts []*uint256.Int, minShares *uint256.Int) (*uint256.Int, []*uint256.Int, error) {
	if len(amounts) != 2 {
		return nil, nil, ErrWrongTokens
	}
	a0, a1 := amounts[0], amounts[1]
	if a0.IsZero() || a1.IsZero() {
		return nil, nil, ErrZeroAmount
	}

	if p.shares.total.IsZero() {
		minted := new(uint256.Int).Set(InitSharesSupply)
		if minted.Cmp(minShares) < 0 {
			return nil, nil, ErrMinSharesNotMet
		}
		p.reserves[0] = new(uint256.Int).Add(p.reserves[0], a0)
		p.reserves[1] = new(uint256.Int).Add(p.reserves[1], a1)
		if !fixedmath.FitsU128(p.reserves[0]) || !fixedmath.FitsU128(p.reserves[1]) {
			return nil, nil, ErrMathOverflow
		}
		p.shares.mint(account, minted)
		return minted, []*uint256.Int{a0, a1}, nil
	}

	s0, err := fixedmath.MulDivFloorWide(p.shares.total, a0, p.reserves[0])
	if err != nil {
		return nil, nil, err
	}
	s1, err := fixedmath.MulDivFloorWide(p.shares.total, a1, p.reserves[1])
	if err != nil {
		return nil, nil, err
	}
	minted := fixedmath.Min(s0, s1)
	if minted.IsZero() || minted.Cmp(minShares) < 0 {
		return nil, nil, ErrMinSharesNotMet
	}

	consumed0, err := fixedmath.MulDivCeilWide(minted, p.reserves[0], p.shares.total)
	if err != nil {
		return nil, nil, err
	}
	consumed1, err := fixedmath.MulDivCeilWide(minted, p.reserves[1], p.shares.total)
	if err != nil {
		return nil, nil, err
	}
	if consumed0.Cmp(a0) > 0 {
		consumed0 = a0
	}
	if consumed1.Cmp(a1) > 0 {
		consumed1 = a1
	}

	p.reserves[0] = new(uint256.Int).Add(p.reserves[0], consumed0)
	p.reserves[1] = new(uint256.Int).Add(p.reserves[1], consumed1)
	if !fixedmath.FitsU128(p.reserves[0]) || !fixedmath.FitsU128(p.reserves[1]) {
		return nil, nil, ErrMathOverflow
	}

	p.shares.mint(account, minted)
	return minted, []*uint256.Int{consumed0, consumed1}, nil
}

// RemoveLiquidity burns shares for a strictly proportional (balanced)
// slice of both reserves, floored per token so the pool never pays
// out more than the share ratio entitles.
func (p *SimplePool) RemoveLiquidity(account AccountID, shares *uint256.Int, minAmountsOut []*uint256.Int) ([]*uint256.Int, error) {
	if len(minAmountsOut) != 2 {
		return nil, ErrWrongTokens
	}
	if shares.IsZero() {
		return nil, ErrZeroAmount
	}
	total := p.shares.total
	if total.IsZero() {
		return nil, ErrZeroLiquidity
	}

	out0, err := fixedmath.MulDivFloorWide(p.reserves[0], shares, total)
	if err != nil {
		return nil, err
	}
	out1, err := fixedmath.MulDivFloorWide(p.reserves[1], shares, total)
	if err != nil {
		return nil, err
	}
	if out0.Cmp(minAmountsOut[0]) < 0 || out1.Cmp(minAmountsOut[1]) < 0 {
		return nil, ErrInsufficientOutput
	}

	if err := p.shares.burn(account, shares); err != nil {
		return nil, err
	}
	p.reserves[0] = new(uint256.Int).Sub(p.reserves[0], out0)
	p.reserves[1] = new(uint256.Int).Sub(p.reserves[1], out1)

	return []*uint256.Int{out0, out1}, nil
}

// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ammcore

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/precompile/ammcore/fixedmath"
)

// StableSwapPool implements the Curve-style invariant
//
//	Ann * S + D = Ann * D + D^(n+1) / (n^n * prod(x_i))
//
// for N tokens (2 <= N <= MaxStableTokens) of possibly differing
// decimals, normalized to TargetDecimals precision internally as
// c_amounts. Both the D and y solvers are bounded Newton iterations
// that raise a sentinel error rather than loop or return a
// non-converged guess.
type StableSwapPool struct {
	id         PoolID
	tokens     []TokenID
	decimals   []uint
	reserves   []*uint256.Int // raw, token-native decimals
	totalFeeBp uint32
	adminFeeBp uint32
	admin      AdminFees
	shares     *shareLedger

	amp       *uint256.Int
	ampInit   *uint256.Int
	ampTarget *uint256.Int
	rampStart int64
	rampStop  int64
}

// NewStableSwapPool creates an empty N-token pool. decimals[i] is the
// native decimal precision of tokens[i]; every c_amount the solver
// sees is scaled up to TargetDecimals first.
func NewStableSwapPool(id PoolID, tokens []TokenID, decimals []uint, amp *uint256.Int, totalFeeBp, adminFeeBp uint32, admin AdminFees) (*StableSwapPool, error) {
	n := len(tokens)
	if n < 2 || n > MaxStableTokens {
		return nil, ErrWrongTokens
	}
	if len(decimals) != n {
		return nil, ErrWrongTokens
	}
	seen := make(map[TokenID]bool, n)
	for _, t := range tokens {
		if seen[t] {
			return nil, ErrTokenDupes
		}
		seen[t] = true
	}
	reserves := make([]*uint256.Int, n)
	for i := range reserves {
		reserves[i] = uint256.NewInt(0)
	}
	return &StableSwapPool{
		id:         id,
		tokens:     append([]TokenID(nil), tokens...),
		decimals:   append([]uint(nil), decimals...),
		reserves:   reserves,
		totalFeeBp: totalFeeBp,
		adminFeeBp: adminFeeBp,
		admin:      admin,
		shares:     newShareLedger(),
		amp:        new(uint256.Int).Set(amp),
	}, nil
}

func (p *StableSwapPool) ID() PoolID        { return p.id }
func (p *StableSwapPool) Kind() PoolKind    { return KindStableSwap }
func (p *StableSwapPool) Tokens() []TokenID { return append([]TokenID(nil), p.tokens...) }

func (p *StableSwapPool) SharesOf(account AccountID) *uint256.Int { return p.shares.balanceOf(account) }
func (p *StableSwapPool) TotalShares() *uint256.Int               { return new(uint256.Int).Set(p.shares.total) }

func (p *StableSwapPool) TransferShares(from, to AccountID, shares *uint256.Int) error {
	return p.shares.transfer(from, to, shares)
}

// Clone returns a deep copy of the pool safe to mutate independently.
func (p *StableSwapPool) Clone() Pool {
	reserves := make([]*uint256.Int, len(p.reserves))
	for i, r := range p.reserves {
		reserves[i] = new(uint256.Int).Set(r)
	}
	out := &StableSwapPool{
		id:         p.id,
		tokens:     append([]TokenID(nil), p.tokens...),
		decimals:   append([]uint(nil), p.decimals...),
		reserves:   reserves,
		totalFeeBp: p.totalFeeBp,
		adminFeeBp: p.adminFeeBp,
		admin:      p.admin,
		shares:     p.shares.clone(),
		amp:        new(uint256.Int).Set(p.amp),
		rampStart:  p.rampStart,
		rampStop:   p.rampStop,
	}
	if p.ampInit != nil {
		out.ampInit = new(uint256.Int).Set(p.ampInit)
	}
	if p.ampTarget != nil {
		out.ampTarget = new(uint256.Int).Set(p.ampTarget)
	}
	return out
}

// RampAmp schedules a linear amplification-factor change between
// tsStart and tsStop (unix seconds), recovered from ref-exchange's
// ramp_amp feature (SPEC_FULL.md §4.6). CurrentAmp interpolates.
func (p *StableSwapPool) RampAmp(target *uint256.Int, tsStart, tsStop int64) {
	p.ampInit = new(uint256.Int).Set(p.CurrentAmp(tsStart))
	p.ampTarget = new(uint256.Int).Set(target)
	p.rampStart = tsStart
	p.rampStop = tsStop
}

// CurrentAmp returns the amplification factor in effect at now,
// linearly interpolating between ampInit and ampTarget while a ramp
// is in progress.
func (p *StableSwapPool) CurrentAmp(now int64) *uint256.Int {
	if p.ampTarget == nil || now >= p.rampStop {
		if p.ampTarget != nil {
			return new(uint256.Int).Set(p.ampTarget)
		}
		return new(uint256.Int).Set(p.amp)
	}
	if now <= p.rampStart {
		return new(uint256.Int).Set(p.ampInit)
	}
	elapsed := uint256.NewInt(uint64(now - p.rampStart))
	span := uint256.NewInt(uint64(p.rampStop - p.rampStart))
	if p.ampTarget.Cmp(p.ampInit) >= 0 {
		delta := new(uint256.Int).Sub(p.ampTarget, p.ampInit)
		step := new(uint256.Int).Mul(delta, elapsed)
		step.Div(step, span)
		return new(uint256.Int).Add(p.ampInit, step)
	}
	delta := new(uint256.Int).Sub(p.ampInit, p.ampTarget)
	step := new(uint256.Int).Mul(delta, elapsed)
	step.Div(step, span)
	return new(uint256.Int).Sub(p.ampInit, step)
}

// ApplyRampTick advances the pool's working amplification factor to
// CurrentAmp(now), and once the ramp window has elapsed, clears the
// ramp state so subsequent swaps read p.amp directly without
// recomputing the interpolation. The core has no wall clock of its
// own (spec.md's host-runtime boundary), so the host is expected to
// call this before a swap whenever a ramp is in progress.
func (p *StableSwapPool) ApplyRampTick(now int64) {
	if p.ampTarget == nil {
		return
	}
	p.amp = p.CurrentAmp(now)
	if now >= p.rampStop {
		p.ampInit = nil
		p.ampTarget = nil
	}
}

func (p *StableSwapPool) toC(i int, raw *uint256.Int) *uint256.Int {
	places := TargetDecimals - int(p.decimals[i])
	if places <= 0 {
		return fixedmath.ScaleDownFloor(raw, uint(-places))
	}
	return fixedmath.ScaleUp(raw, uint(places))
}

func (p *StableSwapPool) fromC(i int, c *uint256.Int) *uint256.Int {
	places := TargetDecimals - int(p.decimals[i])
	if places <= 0 {
		return fixedmath.ScaleUp(c, uint(-places))
	}
	return fixedmath.ScaleDownFloor(c, uint(places))
}

func (p *StableSwapPool) cAmounts() []*uint256.Int {
	out := make([]*uint256.Int, len(p.reserves))
	for i, r := range p.reserves {
		out[i] = p.toC(i, r)
	}
	return out
}

// computeD solves the stable-swap invariant for D given the current
// (normalized) balances, bounded at MaxNewtonIterations.
func computeD(cAmounts []*uint256.Int, amp *uint256.Int) (*uint256.Int, error) {
	n := len(cAmounts)
	nBig := uint256.NewInt(uint64(n))

	s := uint256.NewInt(0)
	for _, x := range cAmounts {
		s = new(uint256.Int).Add(s, x)
	}
	if s.IsZero() {
		return uint256.NewInt(0), nil
	}

	ann := new(uint256.Int).Set(amp)
	for i := 0; i < n; i++ {
		ann = new(uint256.Int).Mul(ann, nBig)
	}

	d := new(uint256.Int).Set(s)
	for iter := 0; iter < MaxNewtonIterations; iter++ {
		dP := new(uint256.Int).Set(d)
		for _, x := range cAmounts {
			denom := new(uint256.Int).Mul(x, nBig)
			if denom.IsZero() {
				return nil, ErrComputeDFailed
			}
			dP = new(uint256.Int).Div(new(uint256.Int).Mul(dP, d), denom)
		}
		dPrev := new(uint256.Int).Set(d)

		numLeft := new(uint256.Int).Add(new(uint256.Int).Mul(ann, s), new(uint256.Int).Mul(dP, nBig))
		numerator := new(uint256.Int).Mul(numLeft, d)

		annMinus1 := new(uint256.Int).Sub(ann, uint256.NewInt(1))
		nPlus1 := new(uint256.Int).Add(nBig, uint256.NewInt(1))
		denominator := new(uint256.Int).Add(new(uint256.Int).Mul(annMinus1, d), new(uint256.Int).Mul(nPlus1, dP))
		if denominator.IsZero() {
			return nil, ErrComputeDFailed
		}
		d = new(uint256.Int).Div(numerator, denominator)

		if fixedmath.AbsDiff(d, dPrev).Cmp(uint256.NewInt(1)) <= 0 {
			return d, nil
		}
	}
	return nil, ErrComputeDFailed
}

// computeY solves for the normalized balance of token index out given
// D, amp, and every other token's current normalized balance,
// bounded at MaxNewtonIterations.
func computeY(cAmounts []*uint256.Int, outIdx int, d, amp *uint256.Int) (*uint256.Int, error) {
	n := len(cAmounts)
	nBig := uint256.NewInt(uint64(n))

	ann := new(uint256.Int).Set(amp)
	for i := 0; i < n; i++ {
		ann = new(uint256.Int).Mul(ann, nBig)
	}

	s := uint256.NewInt(0)
	c := new(uint256.Int).Set(d)
	for i, x := range cAmounts {
		if i == outIdx {
			continue
		}
		s = new(uint256.Int).Add(s, x)
		denom := new(uint256.Int).Mul(x, nBig)
		if denom.IsZero() {
			return nil, ErrComputeYFailed
		}
		c = new(uint256.Int).Div(new(uint256.Int).Mul(c, d), denom)
	}
	if ann.IsZero() {
		return nil, ErrComputeYFailed
	}
	c = new(uint256.Int).Div(new(uint256.Int).Mul(c, d), new(uint256.Int).Mul(ann, nBig))
	b := new(uint256.Int).Add(s, new(uint256.Int).Div(d, ann))

	y := new(uint256.Int).Set(d)
	for iter := 0; iter < MaxNewtonIterations; iter++ {
		yPrev := new(uint256.Int).Set(y)
		num := new(uint256.Int).Add(new(uint256.Int).Mul(y, y), c)
		denomTerms := new(uint256.Int).Add(new(uint256.Int).Mul(y, uint256.NewInt(2)), b)
		if denomTerms.Cmp(d) < 0 {
			return nil, ErrComputeYFailed
		}
		denom := new(uint256.Int).Sub(denomTerms, d)
		if denom.IsZero() {
			return nil, ErrComputeYFailed
		}
		y = new(uint256.Int).Div(num, denom)

		if fixedmath.AbsDiff(y, yPrev).Cmp(uint256.NewInt(1)) <= 0 {
			return y, nil
		}
	}
	return nil, ErrComputeYFailed
}

// SwapOutGivenIn scales amountIn up to the common working precision,
// runs the y solver to find the post-swap balance of tokenOut holding
// D fixed, and scales the result back down, flooring at every
// token-decimal boundary so the user-facing side never rounds in
// their own favor.
func (p *StableSwapPool) SwapOutGivenIn(tokenIn, tokenOut TokenID, amountIn *uint256.Int) (*SwapQuote, error) {
	if amountIn.IsZero() {
		return nil, ErrZeroAmount
	}
	if tokenIn == tokenOut {
		return nil, ErrSameToken
	}
	inIdx := indexOfToken(p.tokens, tokenIn)
	outIdx := indexOfToken(p.tokens, tokenOut)
	if inIdx < 0 || outIdx < 0 {
		return nil, ErrUnknownToken
	}
	for _, r := range p.reserves {
		if r.IsZero() {
			return nil, ErrZeroLiquidity
		}
	}

	cBefore := p.cAmounts()
	amp := p.amp
	d, err := computeD(cBefore, amp)
	if err != nil {
		return nil, err
	}

	cIn := p.toC(inIdx, amountIn)
	cAfterIn := make([]*uint256.Int, len(cBefore))
	copy(cAfterIn, cBefore)
	cAfterIn[inIdx] = new(uint256.Int).Add(cBefore[inIdx], cIn)

	yNew, err := computeY(cAfterIn, outIdx, d, amp)
	if err != nil {
		return nil, err
	}
	if yNew.Cmp(cBefore[outIdx]) >= 0 {
		return nil, ErrInsufficientOutput
	}
	grossC := new(uint256.Int).Sub(cBefore[outIdx], yNew)
	// computeY's Newton solver only guarantees |y_next-y| <= 1 at
	// convergence, so yNew may sit up to one unit below the true root.
	// Subtract that margin (floored at 0) before it is ever paid out,
	// or that slack would overpay the user and break ledger
	// conservation.
	one := uint256.NewInt(1)
	if grossC.Cmp(one) > 0 {
		grossC = new(uint256.Int).Sub(grossC, one)
	} else {
		grossC = uint256.NewInt(0)
	}

	netC, feeC, err := fixedmath.ApplyFeeBp(grossC, p.totalFeeBp)
	if err != nil {
		return nil, err
	}
	netOut := p.fromC(outIdx, netC)
	if netOut.IsZero() {
		return nil, ErrInsufficientOutput
	}
	// Split the collected fee itself between the LP side (left in the
	// pool's reserve) and the exchange's admin cut, both still in
	// common TargetDecimals precision: x[k_out] must only credit back
	// y + lp_fee_c, never the admin's extracted slice.
	lpFeeC, adminFeeC, err := fixedmath.ApplyFeeBp(feeC, p.adminFeeBp)
	if err != nil {
		return nil, err
	}

	p.reserves[inIdx] = new(uint256.Int).Add(p.reserves[inIdx], amountIn)
	if !fixedmath.FitsU128(p.reserves[inIdx]) {
		return nil, ErrMathOverflow
	}
	p.reserves[outIdx] = p.fromC(outIdx, new(uint256.Int).Add(yNew, lpFeeC))

	p.mintAdminFeeShares(adminFeeC)

	return &SwapQuote{
		AmountOut:      netOut,
		FeeAmount:      p.fromC(outIdx, feeC),
		AdminFeeAmount: p.fromC(outIdx, adminFeeC),
		AdminFeeToken:  tokenOut,
	}, nil
}

// mintAdminFeeShares converts an admin fee already isolated in common
// TargetDecimals precision into freshly minted LP shares credited to
// the exchange account, valuing it against the pool's current
// shares-to-D ratio. D is recomputed from p.reserves as they stand
// when this is called — the caller must update reserves to already
// exclude adminCutC (spec.md §4.3's "x[k_out] = y + (fee_c -
// admin_fee_c)") before calling this, or the valuation double-counts
// the admin's own cut. This keeps admin-fee accrual a first-class
// share mint (unlike SimplePool's sqrt(k) growth formula, the
// stable-swap invariant has no simple closed form for marginal share
// value, so the D ratio is used directly).
func (p *StableSwapPool) mintAdminFeeShares(adminCutC *uint256.Int) {
	if p.adminFeeBp == 0 || adminCutC.IsZero() || p.shares.total.IsZero() {
		return
	}
	d, err := computeD(p.cAmounts(), p.amp)
	if err != nil || d.IsZero() {
		return
	}
	mintShares, err := fixedmath.MulDivFloorWide(p.shares.total, adminCutC, d)
	if err != nil || mintShares.IsZero() {
		return
	}
	p.shares.mint(p.admin.ExchangeID, mintShares)
}

// AddLiquidity is the balanced/imbalanced liquidity deposit: shares
// minted are the pre-deposit total shares times (D2-D0)/D0, the
// invariant growth left after charging an imbalance fee on
// each token's deviation from the deposit's ideal balanced ratio
// (Curve's three-invariant-evaluation pattern: D0 before, D1 with raw
// deposits, D2 after per-token imbalance fees are deducted).
func (p *StableSwapPool) AddLiquidity(account AccountID, amounts []*uint256.Int, minShares *uint256.Int) (*uint256.Int, []*uint256.Int, error) {
	n := len(p.tokens)
	if len(amounts) != n {
		return nil, nil, ErrWrongTokens
	}
	anyNonZero := false
	for _, a := range amounts {
		if !a.IsZero() {
			anyNonZero = true
		}
	}
	if !anyNonZero {
		return nil, nil, ErrZeroAmount
	}

	amp := p.amp

	c0 := p.cAmounts()
	d0, err := computeD(c0, amp)
	if err != nil {
		return nil, nil, err
	}

	if p.shares.total.IsZero() {
		for i, a := range amounts {
			p.reserves[i] = new(uint256.Int).Add(p.reserves[i], a)
		}
		if !fixedmath.FitsU128ForEach(p.reserves) {
			return nil, nil, ErrMathOverflow
		}
		minted := new(uint256.Int).Set(InitSharesSupply)
		if minted.Cmp(minShares) < 0 {
			return nil, nil, ErrMinSharesNotMet
		}
		p.shares.mint(account, minted)
		return minted, append([]*uint256.Int(nil), amounts...), nil
	}

	c1 := make([]*uint256.Int, n)
	for i := range c1 {
		c1[i] = new(uint256.Int).Add(c0[i], p.toC(i, amounts[i]))
	}
	d1, err := computeD(c1, amp)
	if err != nil {
		return nil, nil, err
	}
	if d1.Cmp(d0) <= 0 {
		return nil, nil, ErrZeroAmount
	}

	cFeeAdjusted, totalFeeC, err := p.applyImbalanceFee(c0, c1, d0, d1, n)
	if err != nil {
		return nil, nil, err
	}
	d2, err := computeD(cFeeAdjusted, amp)
	if err != nil {
		return nil, nil, err
	}

	minted, err := fixedmath.MulDivFloorWide(p.shares.total, new(uint256.Int).Sub(d2, d0), d0)
	if err != nil {
		return nil, nil, err
	}
	if minted.IsZero() || minted.Cmp(minShares) < 0 {
		return nil, nil, ErrMinSharesNotMet
	}

	for i, a := range amounts {
		p.reserves[i] = new(uint256.Int).Add(p.reserves[i], a)
	}
	if !fixedmath.FitsU128ForEach(p.reserves) {
		return nil, nil, ErrMathOverflow
	}

	p.mintAdminFeeSharesFromC(totalFeeC, d2)
	p.shares.mint(account, minted)
	return minted, append([]*uint256.Int(nil), amounts...), nil
}

// applyImbalanceFee charges each token's deviation from the deposit's
// ideal balanced ratio the per-token fee spec.md §4.3 defines for both
// imbalanced add and imbalanced remove, returning the fee-adjusted
// c_amounts plus the total fee collected (in common TargetDecimals
// precision, summed across tokens) so the caller can mint the
// exchange's admin-fee slice of it.
func (p *StableSwapPool) applyImbalanceFee(c0, c1 []*uint256.Int, d0, d1 *uint256.Int, n int) ([]*uint256.Int, *uint256.Int, error) {
	out := make([]*uint256.Int, n)
	totalFee := uint256.NewInt(0)
	feeNumBp := uint64(p.totalFeeBp) * uint64(n)
	feeDenom := uint256.NewInt(4 * uint64(n-1) * FeeDivisor)
	for i := range c1 {
		idealBalance, err := fixedmath.MulDivFloorWide(d1, c0[i], d0)
		if err != nil {
			return nil, nil, err
		}
		diff := fixedmath.AbsDiff(c1[i], idealBalance)
		feeOnDiff, err := fixedmath.MulDivFloorWide(diff, uint256.NewInt(feeNumBp), feeDenom)
		if err != nil {
			return nil, nil, err
		}
		out[i] = new(uint256.Int).Sub(c1[i], feeOnDiff)
		totalFee = new(uint256.Int).Add(totalFee, feeOnDiff)
	}
	return out, totalFee, nil
}

// mintAdminFeeSharesFromC mints the exchange's adminFeeBp slice of a
// c_amount-denominated fee as LP shares, valued against the post-fee
// invariant d2 — the same D-ratio valuation SwapOutGivenIn's
// mintAdminFeeShares uses, generalized to a fee already expressed in
// common precision instead of one token's native units.
func (p *StableSwapPool) mintAdminFeeSharesFromC(totalFeeC, d2 *uint256.Int) {
	if p.adminFeeBp == 0 || totalFeeC.IsZero() || p.shares.total.IsZero() || d2.IsZero() {
		return
	}
	_, adminCutC, err := fixedmath.ApplyFeeBp(totalFeeC, p.adminFeeBp)
	if err != nil || adminCutC.IsZero() {
		return
	}
	mintShares, err := fixedmath.MulDivFloorWide(p.shares.total, adminCutC, d2)
	if err != nil || mintShares.IsZero() {
		return
	}
	p.shares.mint(p.admin.ExchangeID, mintShares)
}

// RemoveLiquidity burns shares for a strictly proportional slice of
// every token's reserves; balanced withdrawal charges no imbalance
// fee since the pool's relative composition is unchanged.
func (p *StableSwapPool) RemoveLiquidity(account AccountID, shares *uint256.Int, minAmountsOut []*uint256.Int) ([]*uint256.Int, error) {
	n := len(p.tokens)
	if len(minAmountsOut) != n {
		return nil, ErrWrongTokens
	}
	if shares.IsZero() {
		return nil, ErrZeroAmount
	}
	total := p.shares.total
	if total.IsZero() {
		return nil, ErrZeroLiquidity
	}

	outs := make([]*uint256.Int, n)
	for i, r := range p.reserves {
		out, err := fixedmath.MulDivFloorWide(r, shares, total)
		if err != nil {
			return nil, err
		}
		if out.Cmp(minAmountsOut[i]) < 0 {
			return nil, ErrInsufficientOutput
		}
		outs[i] = out
	}

	if err := p.shares.burn(account, shares); err != nil {
		return nil, err
	}
	for i, out := range outs {
		p.reserves[i] = new(uint256.Int).Sub(p.reserves[i], out)
	}
	return outs, nil
}

// RemoveLiquidityByTokens is the dual of imbalanced AddLiquidity: the
// caller names the exact amounts to withdraw and the pool computes
// (and ceils, so the pool is never shorted) the shares required,
// including the same per-token imbalance fee used on deposit.
func (p *StableSwapPool) RemoveLiquidityByTokens(account AccountID, amountsOut []*uint256.Int, maxBurnShares *uint256.Int) (*uint256.Int, error) {
	n := len(p.tokens)
	if len(amountsOut) != n {
		return nil, ErrWrongTokens
	}
	amp := p.amp

	c0 := p.cAmounts()
	d0, err := computeD(c0, amp)
	if err != nil {
		return nil, err
	}

	c1 := make([]*uint256.Int, n)
	for i := range c1 {
		cOut := p.toC(i, amountsOut[i])
		if cOut.Cmp(c0[i]) > 0 {
			return nil, ErrInsufficientBalance
		}
		c1[i] = new(uint256.Int).Sub(c0[i], cOut)
	}

	d1, err := computeD(c1, amp)
	if err != nil {
		return nil, err
	}
	cFeeAdjusted, totalFeeC, err := p.applyImbalanceFee(c0, c1, d0, d1, n)
	if err != nil {
		return nil, err
	}
	d2, err := computeD(cFeeAdjusted, amp)
	if err != nil {
		return nil, err
	}

	burnShares, err := fixedmath.MulDivCeilWide(p.shares.total, new(uint256.Int).Sub(d0, d2), d0)
	if err != nil {
		return nil, err
	}
	if burnShares.Cmp(maxBurnShares) > 0 {
		return nil, ErrMaxBurnExceeded
	}

	if err := p.shares.burn(account, burnShares); err != nil {
		return nil, err
	}
	for i, out := range amountsOut {
		p.reserves[i] = new(uint256.Int).Sub(p.reserves[i], out)
	}
	p.mintAdminFeeSharesFromC(totalFeeC, d2)
	return burnShares, nil
}

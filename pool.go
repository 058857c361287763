// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ammcore

import "github.com/holiman/uint256"

// PoolKind tags which variant of the closed Pool sum type a value
// holds. Pools never gain new kinds through an open interface — the
// Registry only ever constructs SimplePool or StableSwapPool, and the
// Executor calls them through the closed Pool interface rather than
// through a grab-bag plugin registry.
type PoolKind uint8

const (
	KindSimple PoolKind = iota
	KindStableSwap
)

func (k PoolKind) String() string {
	switch k {
	case KindSimple:
		return "simple_pool"
	case KindStableSwap:
		return "stable_swap"
	default:
		return "unknown_pool"
	}
}

// SwapQuote is the result of a single-action swap against one pool:
// the amount of the output token paid to the caller, the
// portion of total_fee_bp taken along the way, and — isolated out of
// that fee — the exchange's own admin_fee_bp cut, denominated in
// AdminFeeToken. Referral payouts are drawn from AdminFeeAmount alone
// (spec.md §4.5: "paid out of the exchange's share of the swap fee,
// not from the LP pool"), never from FeeAmount as a whole.
type SwapQuote struct {
	AmountOut      *uint256.Int
	FeeAmount      *uint256.Int
	AdminFeeAmount *uint256.Int
	AdminFeeToken  TokenID
}

// Pool is the shared operation set both SimplePool and StableSwapPool
// implement. It is intentionally small and closed: every method a
// caller needs is declared here, and the only two implementations
// live in this module (simplepool.go, stableswap.go). There is no
// provision for a third-party Pool implementation.
type Pool interface {
	ID() PoolID
	Kind() PoolKind
	Tokens() []TokenID

	// SwapOutGivenIn returns a SwapQuote whose AmountOut is the output
	// amount of tokenOut, net of total_fee_bp, for amountIn of tokenIn
	// added to the pool, and
	// mutates the pool's internal reserves/c_amounts and any exchange
	// admin-fee share accounting. It does not move ledger balances;
	// callers debit/credit the LedgerBook themselves.
	SwapOutGivenIn(tokenIn, tokenOut TokenID, amountIn *uint256.Int) (*SwapQuote, error)

	// AddLiquidity mints LP shares to account for amounts requested in
	// token order matching Tokens(). minShares enforces slippage
	// protection. consumed reports how much of each requested amount
	// the pool actually took; a caller must return any leftover
	// (requested[i] - consumed[i]) to the provider rather than treat it
	// as spent, per spec.md §4.2's balanced-add rule.
	AddLiquidity(account AccountID, amounts []*uint256.Int, minShares *uint256.Int) (shares *uint256.Int, consumed []*uint256.Int, err error)

	// RemoveLiquidity burns shares and returns the amounts released, in
	// Tokens() order. minAmountsOut enforces slippage protection.
	RemoveLiquidity(account AccountID, shares *uint256.Int, minAmountsOut []*uint256.Int) ([]*uint256.Int, error)

	// SharesOf returns account's LP share balance, zero if unknown.
	SharesOf(account AccountID) *uint256.Int

	// TotalShares returns the pool's total outstanding LP shares,
	// including any exchange-owned admin-fee shares.
	TotalShares() *uint256.Int

	// TransferShares moves LP shares between two accounts within this
	// pool (the mft_transfer view of spec.md §6).
	TransferShares(from, to AccountID, shares *uint256.Int) error

	// Clone returns a deep copy safe to mutate independently, used by
	// Registry.Quote to evaluate a hop without touching live state.
	Clone() Pool
}

var (
	_ Pool = (*SimplePool)(nil)
	_ Pool = (*StableSwapPool)(nil)
)

// shareLedger is the LP-share bookkeeping shared verbatim by both pool
// kinds: a plain balance map plus a running total, with no decimals
// or token semantics of its own (shares are always 18-decimal-style
// integers, spec.md §4.3/§4.6).
type shareLedger struct {
	balances map[AccountID]*uint256.Int
	total    *uint256.Int
}

func newShareLedger() *shareLedger {
	return &shareLedger{
		balances: make(map[AccountID]*uint256.Int),
		total:    uint256.NewInt(0),
	}
}

func (s *shareLedger) balanceOf(account AccountID) *uint256.Int {
	b, ok := s.balances[account]
	if !ok {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(b)
}

func (s *shareLedger) mint(account AccountID, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	b, ok := s.balances[account]
	if !ok {
		b = uint256.NewInt(0)
	}
	s.balances[account] = new(uint256.Int).Add(b, amount)
	s.total = new(uint256.Int).Add(s.total, amount)
}

func (s *shareLedger) burn(account AccountID, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	b, ok := s.balances[account]
	if !ok || b.Cmp(amount) < 0 {
		return ErrInsufficientLPBalance
	}
	s.balances[account] = new(uint256.Int).Sub(b, amount)
	s.total = new(uint256.Int).Sub(s.total, amount)
	return nil
}

func (s *shareLedger) transfer(from, to AccountID, amount *uint256.Int) error {
	if from == to {
		return ErrTransferToSelf
	}
	b, ok := s.balances[from]
	if !ok || b.Cmp(amount) < 0 {
		return ErrInsufficientLPBalance
	}
	s.balances[from] = new(uint256.Int).Sub(b, amount)
	toBal, ok := s.balances[to]
	if !ok {
		toBal = uint256.NewInt(0)
	}
	s.balances[to] = new(uint256.Int).Add(toBal, amount)
	return nil
}

func (s *shareLedger) clone() *shareLedger {
	out := newShareLedger()
	out.total = new(uint256.Int).Set(s.total)
	for k, v := range s.balances {
		out.balances[k] = new(uint256.Int).Set(v)
	}
	return out
}

func indexOfToken(tokens []TokenID, t TokenID) int {
	for i, tok := range tokens {
		if tok == t {
			return i
		}
	}
	return -1
}

// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ammcore

import (
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/precompile/ammcore/fixedmath"
	"github.com/zeebo/blake3"
)

// Registry owns every pool and the ledger book, indexed by a
// monotonic PoolID. A single long-lived Registry guards its pool list
// with a RWMutex against concurrent reads; it is not itself a
// substitute for the host's call serialization, which guarantees at
// most one mutating call executes at a time (spec.md §5).
type Registry struct {
	mu     sync.RWMutex
	state  *State
	pools  map[PoolID]Pool
	nextID PoolID
	ledger *LedgerBook
}

// NewRegistry creates an empty registry owned by owner.
func NewRegistry(owner AccountID) *Registry {
	return &Registry{
		state:  NewState(owner),
		pools:  make(map[PoolID]Pool),
		ledger: NewLedgerBook(),
	}
}

func (r *Registry) State() *State { return r.state }

// PoolKeyHash computes a deterministic composite key for a set of
// tokens, usable as an idempotency/lookup key external to the
// monotonic PoolID (e.g. "does a stable pool for USDC/USDT/DAI already
// exist"). Grounded in the teacher's PoolKey.ID()/blake3 hashing
// pattern rather than string concatenation.
func PoolKeyHash(kind PoolKind, tokens []TokenID) [32]byte {
	h := blake3.New()
	h.Write([]byte{byte(kind)})
	for _, t := range tokens {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// AddSimplePool registers a new constant-product pool and returns its
// assigned PoolID.
func (r *Registry) AddSimplePool(caller AccountID, tokenA, tokenB TokenID, totalFeeBp uint32) (PoolID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.state.RequireRunning(); err != nil {
		return 0, err
	}
	admin := AdminFees{
		ExchangeBp: r.state.ExchangeFeeBp,
		ExchangeID: r.state.Owner,
	}
	id := r.nextID
	pool, err := NewSimplePool(id, tokenA, tokenB, totalFeeBp, admin)
	if err != nil {
		return 0, err
	}
	r.pools[id] = pool
	r.nextID++
	return id, nil
}

// AddStablePool registers a new Curve-style stable-swap pool and
// returns its assigned PoolID.
func (r *Registry) AddStablePool(caller AccountID, tokens []TokenID, decimals []uint, amp *uint256.Int, totalFeeBp, adminFeeBp uint32) (PoolID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.state.RequireRunning(); err != nil {
		return 0, err
	}
	admin := AdminFees{
		ExchangeBp: r.state.ExchangeFeeBp,
		ExchangeID: r.state.Owner,
	}
	id := r.nextID
	pool, err := NewStableSwapPool(id, tokens, decimals, amp, totalFeeBp, adminFeeBp, admin)
	if err != nil {
		return 0, err
	}
	r.pools[id] = pool
	r.nextID++
	return id, nil
}

func (r *Registry) poolLocked(id PoolID) (Pool, error) {
	p, ok := r.pools[id]
	if !ok {
		return nil, ErrUnknownPool
	}
	return p, nil
}

// Pool returns a registered pool by id, or ErrUnknownPool.
func (r *Registry) Pool(id PoolID) (Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.poolLocked(id)
}

// AddLiquidity debits caller's ledger for amounts (in the pool's
// Tokens() order) and mints LP shares to caller.
func (r *Registry) AddLiquidity(caller AccountID, poolID PoolID, amounts []*uint256.Int, minShares *uint256.Int) (*uint256.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.state.RequireRunning(); err != nil {
		return nil, err
	}
	pool, err := r.poolLocked(poolID)
	if err != nil {
		return nil, err
	}
	tokens := pool.Tokens()
	if len(amounts) != len(tokens) {
		return nil, ErrWrongTokens
	}
	acc := r.ledger.GetOrCreate(caller)
	withdrawn := 0
	for i, a := range amounts {
		if err := acc.Withdraw(tokens[i], a); err != nil {
			for j := 0; j < withdrawn; j++ {
				_ = acc.Deposit(tokens[j], amounts[j])
			}
			return nil, err
		}
		withdrawn++
	}
	minted, consumed, err := pool.AddLiquidity(caller, amounts, minShares)
	if err != nil {
		for i, a := range amounts {
			_ = acc.Deposit(tokens[i], a)
		}
		return nil, err
	}
	for i, a := range amounts {
		if leftover := new(uint256.Int).Sub(a, consumed[i]); !leftover.IsZero() {
			_ = acc.Deposit(tokens[i], leftover)
		}
	}
	return minted, nil
}

// RemoveLiquidity burns caller's LP shares for a balanced slice of the
// pool's reserves, credited back to caller's ledger.
func (r *Registry) RemoveLiquidity(caller AccountID, poolID PoolID, shares *uint256.Int, minAmountsOut []*uint256.Int) ([]*uint256.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.state.RequireRunning(); err != nil {
		return nil, err
	}
	pool, err := r.poolLocked(poolID)
	if err != nil {
		return nil, err
	}
	outs, err := pool.RemoveLiquidity(caller, shares, minAmountsOut)
	if err != nil {
		return nil, err
	}
	acc := r.ledger.GetOrCreate(caller)
	for i, t := range pool.Tokens() {
		if err := acc.Deposit(t, outs[i]); err != nil {
			return nil, err
		}
	}
	return outs, nil
}

// RemoveLiquidityByTokens withdraws exact token amounts from a
// stable-swap pool, burning at most maxBurnShares of caller's LP
// shares (spec.md §4.6's remove_liquidity_by_tokens).
func (r *Registry) RemoveLiquidityByTokens(caller AccountID, poolID PoolID, amountsOut []*uint256.Int, maxBurnShares *uint256.Int) (*uint256.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.state.RequireRunning(); err != nil {
		return nil, err
	}
	pool, err := r.poolLocked(poolID)
	if err != nil {
		return nil, err
	}
	stable, ok := pool.(*StableSwapPool)
	if !ok {
		return nil, ErrWrongTokens
	}
	burned, err := stable.RemoveLiquidityByTokens(caller, amountsOut, maxBurnShares)
	if err != nil {
		return nil, err
	}
	acc := r.ledger.GetOrCreate(caller)
	for i, t := range pool.Tokens() {
		if err := acc.Deposit(t, amountsOut[i]); err != nil {
			return nil, err
		}
	}
	return burned, nil
}

// RegisterTokens lazily registers tokens in caller's ledger account.
func (r *Registry) RegisterTokens(caller AccountID, tokens []TokenID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledger.GetOrCreate(caller).RegisterTokens(tokens)
}

// UnregisterTokens removes zero-balance token entries from caller's
// ledger account.
func (r *Registry) UnregisterTokens(caller AccountID, tokens []TokenID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc := r.ledger.Get(caller)
	if acc == nil {
		return nil
	}
	return acc.UnregisterTokens(tokens)
}

// UnregisterAccount removes caller's ledger account entirely, failing
// ErrAccountNotEmpty unless every token balance is zero (spec.md §3's
// account lifecycle: "destroyed only on explicit unregister when all
// per-token balances are zero").
func (r *Registry) UnregisterAccount(caller AccountID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledger.Unregister(caller)
}

// LedgerDeposit credits caller's custody balance for token. The host
// is responsible for having already taken custody of the underlying
// asset; this call only updates internal accounting.
func (r *Registry) LedgerDeposit(caller AccountID, token TokenID, amount *uint256.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.state.RequireRunning(); err != nil {
		return err
	}
	return r.ledger.GetOrCreate(caller).Deposit(token, amount)
}

// LedgerWithdraw debits caller's custody balance for token.
func (r *Registry) LedgerWithdraw(caller AccountID, token TokenID, amount *uint256.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.state.RequireRunning(); err != nil {
		return err
	}
	acc := r.ledger.Get(caller)
	if acc == nil {
		return ErrInsufficientBalance
	}
	return acc.Withdraw(token, amount)
}

// LedgerBalance returns caller's custody balance for token.
func (r *Registry) LedgerBalance(caller AccountID, token TokenID) *uint256.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc := r.ledger.Get(caller)
	if acc == nil {
		return uint256.NewInt(0)
	}
	return acc.Balance(token)
}

// ShareTokenID returns the multi-fungible-token view id spec.md §6
// assigns a pool's LP shares (":{pool_id}"), for hosts that expose LP
// positions through the same token-balance interface as ordinary
// tokens.
func (r *Registry) ShareTokenID(poolID PoolID) string {
	return sharesAccountID(poolID)
}

// SharesOf returns caller's LP share balance in poolID, zero if the
// pool is unknown or caller holds none.
func (r *Registry) SharesOf(poolID PoolID, caller AccountID) *uint256.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pool, err := r.poolLocked(poolID)
	if err != nil {
		return uint256.NewInt(0)
	}
	return pool.SharesOf(caller)
}

// TransferShares moves LP shares between two accounts within poolID
// (the mft_transfer view of spec.md §6's share-balance identifiers).
func (r *Registry) TransferShares(poolID PoolID, from, to AccountID, shares *uint256.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pool, err := r.poolLocked(poolID)
	if err != nil {
		return err
	}
	return pool.TransferShares(from, to, shares)
}

// SwapAction names one hop of a chained swap: swap amountIn (or, for
// every action after the first, the previous action's output) of
// tokenIn for tokenOut through poolID.
type SwapAction struct {
	PoolID       PoolID
	TokenIn      TokenID
	TokenOut     TokenID
	AmountIn     *uint256.Int // only honored on the first action
	MinAmountOut *uint256.Int // only enforced on the last action
}

// ExecuteActions runs a chain of SwapActions against caller's custody
// ledger: the first action's AmountIn is debited from caller, each
// subsequent action consumes the previous action's output directly
// (no intermediate ledger round-trip), and the final output is
// credited back to caller in full. After each hop, routeReferralFee
// credits the referral (if any) its slice of that hop's admin fee
// per the registry's governance State (spec.md §4.5/§6).
func (r *Registry) ExecuteActions(caller AccountID, actions []SwapAction, referral *AccountID) (*uint256.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.state.RequireRunning(); err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, ErrNoAmount
	}
	if actions[0].AmountIn == nil || actions[0].AmountIn.IsZero() {
		return nil, ErrNoAmount
	}

	callerAcc := r.ledger.GetOrCreate(caller)
	if err := callerAcc.Withdraw(actions[0].TokenIn, actions[0].AmountIn); err != nil {
		return nil, err
	}

	running := actions[0].AmountIn
	for i, action := range actions {
		pool, err := r.poolLocked(action.PoolID)
		if err != nil {
			return nil, err
		}
		quote, err := pool.SwapOutGivenIn(action.TokenIn, action.TokenOut, running)
		if err != nil {
			return nil, err
		}
		running = quote.AmountOut
		r.routeReferralFee(quote, referral)
		if i == len(actions)-1 && action.MinAmountOut != nil {
			if running.Cmp(action.MinAmountOut) < 0 {
				return nil, ErrInsufficientOutput
			}
		}
	}

	lastOut := actions[len(actions)-1].TokenOut
	if err := callerAcc.Deposit(lastOut, running); err != nil {
		return nil, err
	}

	return running, nil
}

// routeReferralFee credits referral's ledger account with its
// configured slice of a single hop's admin-only fee cut, as a ledger
// credit rather than minted shares (see SPEC_FULL.md §4.8's AUDIT_02
// resolution: exchange fee mints pool shares, referral fee is paid in
// the swapped token directly). Spec.md §4.5 is explicit that the
// referral is paid "out of the exchange's share of the swap fee, not
// from the LP pool" — quote.AdminFeeAmount is already isolated to that
// exchange cut by the pool, so referral's slice is taken from it
// per-hop rather than from the chain's whole fee total, which would
// reach into LP revenue whenever admin_fee_bp is less than 100%.
func (r *Registry) routeReferralFee(quote *SwapQuote, referral *AccountID) {
	if referral == nil || quote.AdminFeeAmount == nil || quote.AdminFeeAmount.IsZero() || r.state.ReferralFeeBp == 0 {
		return
	}
	_, cut, err := fixedmath.ApplyFeeBp(quote.AdminFeeAmount, r.state.ReferralFeeBp)
	if err != nil || cut.IsZero() {
		return
	}
	r.ledger.GetOrCreate(*referral).Deposit(quote.AdminFeeToken, cut)
}

// QuoteHop describes a single hop a Quote traversal considered.
type QuoteHop struct {
	PoolID   PoolID
	TokenIn  TokenID
	TokenOut TokenID
}

// Quote performs a dry-run evaluation of swapping amountIn of tokenIn
// into tokenOut, trying every registered pool that directly lists
// both tokens and returning the best single-hop result. It never
// mutates registry state: each candidate pool is evaluated against a
// throwaway snapshot. This is a convenience helper, not a full
// multi-hop router — spec.md's Executor already takes explicit
// per-action pool ids (SPEC_FULL.md §4.7).
func (r *Registry) Quote(tokenIn, tokenOut TokenID, amountIn *uint256.Int) (*QuoteHop, *uint256.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bestHop *QuoteHop
	var bestOut *uint256.Int
	for id, pool := range r.pools {
		toks := pool.Tokens()
		if indexOfToken(toks, tokenIn) < 0 || indexOfToken(toks, tokenOut) < 0 {
			continue
		}
		snapshot := pool.Clone()
		quote, err := snapshot.SwapOutGivenIn(tokenIn, tokenOut, amountIn)
		if err != nil {
			continue
		}
		if bestOut == nil || quote.AmountOut.Cmp(bestOut) > 0 {
			bestOut = quote.AmountOut
			hop := QuoteHop{PoolID: id, TokenIn: tokenIn, TokenOut: tokenOut}
			bestHop = &hop
		}
	}
	if bestHop == nil {
		return nil, nil, ErrUnknownPool
	}
	return bestHop, bestOut, nil
}

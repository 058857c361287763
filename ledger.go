// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ammcore

import (
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/precompile/ammcore/fixedmath"
)

// LedgerAccount is the internal custody balance of a single user: a
// mapping token -> available balance, distinct from any on-chain token
// balance. Every pool operation debits and credits it.
type LedgerAccount struct {
	mu           sync.RWMutex
	owner        AccountID
	balances     map[TokenID]*uint256.Int
	autoRegister bool
}

// NewLedgerAccount creates an empty account. autoRegister controls
// whether deposit() lazily registers a previously-unseen token or
// fails ErrUnregisteredToken (spec.md §4.4).
func NewLedgerAccount(owner AccountID, autoRegister bool) *LedgerAccount {
	return &LedgerAccount{
		owner:        owner,
		balances:     make(map[TokenID]*uint256.Int),
		autoRegister: autoRegister,
	}
}

// Owner returns the account's identity.
func (a *LedgerAccount) Owner() AccountID { return a.owner }

// Balance returns the available balance for token, zero if unregistered.
func (a *LedgerAccount) Balance(token TokenID) *uint256.Int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	b, ok := a.balances[token]
	if !ok {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(b)
}

// IsRegistered reports whether token has an entry in this account.
func (a *LedgerAccount) IsRegistered(token TokenID) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.balances[token]
	return ok
}

// RegisterTokens adds zero-balance entries for tokens not already
// present. Re-registering an already-registered token is a no-op.
func (a *LedgerAccount) RegisterTokens(tokens []TokenID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, t := range tokens {
		if _, ok := a.balances[t]; !ok {
			a.balances[t] = uint256.NewInt(0)
		}
	}
}

// UnregisterTokens removes entries for tokens whose balance is zero.
// Fails ErrAccountNotEmpty if any named token has a nonzero balance;
// unknown tokens are silently ignored (nothing to unregister).
func (a *LedgerAccount) UnregisterTokens(tokens []TokenID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, t := range tokens {
		b, ok := a.balances[t]
		if !ok {
			continue
		}
		if !b.IsZero() {
			return ErrAccountNotEmpty
		}
	}
	for _, t := range tokens {
		delete(a.balances, t)
	}
	return nil
}

// Deposit credits amount of token. If the token is not yet registered,
// it is lazily registered when autoRegister is set; otherwise
// ErrUnregisteredToken is raised. Checked against overflow of u128.
func (a *LedgerAccount) Deposit(token TokenID, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.balances[token]
	if !ok {
		if !a.autoRegister {
			return ErrUnregisteredToken
		}
		b = uint256.NewInt(0)
	}
	next := new(uint256.Int).Add(b, amount)
	if !fixedmath.FitsU128(next) {
		return ErrMathOverflow
	}
	a.balances[token] = next
	return nil
}

// Withdraw debits amount of token, failing ErrInsufficientBalance if
// the account does not hold enough (no overdraft, no negative
// balances, ever).
func (a *LedgerAccount) Withdraw(token TokenID, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.balances[token]
	if !ok || b.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	a.balances[token] = new(uint256.Int).Sub(b, amount)
	return nil
}

// IsEmpty reports whether every registered token balance is zero,
// the precondition for unregistering the whole account (spec.md §3).
func (a *LedgerAccount) IsEmpty() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, b := range a.balances {
		if !b.IsZero() {
			return false
		}
	}
	return true
}

// LedgerBook owns every account in the registry, keyed by AccountID.
// Mutation always goes through the book, never through an aliased
// *LedgerAccount escaping to a caller outside this package.
type LedgerBook struct {
	mu       sync.RWMutex
	accounts map[AccountID]*LedgerAccount
}

// NewLedgerBook creates an empty ledger book.
func NewLedgerBook() *LedgerBook {
	return &LedgerBook{accounts: make(map[AccountID]*LedgerAccount)}
}

// GetOrCreate returns the account for id, creating an
// auto-registering account on first deposit (spec.md §3: "LedgerAccount
// is created on first deposit").
func (lb *LedgerBook) GetOrCreate(id AccountID) *LedgerAccount {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	acc, ok := lb.accounts[id]
	if !ok {
		acc = NewLedgerAccount(id, true)
		lb.accounts[id] = acc
	}
	return acc
}

// Get returns the account for id, or nil if it has never deposited.
func (lb *LedgerBook) Get(id AccountID) *LedgerAccount {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.accounts[id]
}

// Unregister removes the account entirely, failing ErrAccountNotEmpty
// unless every balance is zero.
func (lb *LedgerBook) Unregister(id AccountID) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	acc, ok := lb.accounts[id]
	if !ok {
		return nil
	}
	if !acc.IsEmpty() {
		return ErrAccountNotEmpty
	}
	delete(lb.accounts, id)
	return nil
}

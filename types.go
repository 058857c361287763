// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ammcore implements the numerical and accounting core of a
// decentralized AMM exchange: constant-product "simple" pools,
// Curve-style stable-swap pools, a per-account custody ledger, and the
// pool registry/executor that chains swaps together. The transport,
// storage-billing, and governance layers that would sit on top of this
// in a deployed contract are out of scope — the core assumes an
// authenticated caller identity and a pre-validated request.
package ammcore

import (
	"strconv"

	"github.com/holiman/uint256"
)

// TokenID is an opaque token identifier. The core treats tokens as
// opaque ids; the host's token registry and storage-registration
// protocol are out of scope.
type TokenID string

// AccountID is an opaque caller identity. The host's
// predecessor-authentication is out of scope.
type AccountID string

// PoolID is a monotonic integer assigned at pool-creation time and
// never reused.
type PoolID uint64

// FeeDivisor is the denominator every basis-point fee is expressed
// over (fee_bp = 25 means 0.25%).
const FeeDivisor = 10_000

// InitSharesSupply is the number of LP shares minted to the first
// liquidity provider of a simple pool.
var InitSharesSupply = func() *uint256.Int {
	v, _ := new(uint256.Int).SetString("1000000000000000000000000") // 10^24
	return v
}()

// TargetDecimals is the common precision stable-swap pools normalize
// every token's c_amounts to.
const TargetDecimals = 18

// MaxStableTokens bounds the number of tokens a stable-swap pool may
// hold. The spec leaves this to implementer discretion (>=2); four
// matches the common Curve 3pool/4pool shape the retrieval pack's
// stable-swap references (osmosis, ref-exchange) also use.
const MaxStableTokens = 4

// MaxNewtonIterations bounds both the D and y Newton solvers. Neither
// solver may loop or silently return on non-convergence — they must
// raise ErrComputeDFailed / ErrComputeYFailed.
const MaxNewtonIterations = 256

// AdminFees carries the fee-routing configuration a pool is created
// with; the Registry fills ExchangeBp and ExchangeID from its State
// when it creates a pool. No pool reads ReferralBp, ReferralID or
// HasReferral: referral payouts are routed by the Registry from
// State.ReferralFeeBp.
type AdminFees struct {
	ExchangeBp  uint32    // share of total_fee_bp routed to ExchangeID
	ExchangeID  AccountID // the exchange's own ledger/share account
	ReferralBp  uint32    // share of the exchange's admin fee routed to ReferralID
	ReferralID  AccountID // empty AccountID means "no referral"
	HasReferral bool
}

// State is the minimal governance surface the core itself must be
// able to consult and raise errors against (Paused, NotAllowed) even
// though policy *administration* — owner/guardian management, token
// whitelisting — is a host/governance concern out of spec.md §1's
// scope. See SPEC_FULL.md §3.2.
type State struct {
	Owner         AccountID
	Guardians     map[AccountID]bool
	Running       bool
	ExchangeFeeBp uint32
	ReferralFeeBp uint32
}

// NewState returns a State in the Running condition with no
// guardians, matching a freshly deployed exchange.
func NewState(owner AccountID) *State {
	return &State{
		Owner:     owner,
		Guardians: make(map[AccountID]bool),
		Running:   true,
	}
}

// RequireRunning raises ErrPaused if the exchange is paused.
func (s *State) RequireRunning() error {
	if !s.Running {
		return ErrPaused
	}
	return nil
}

// RequireOwner raises ErrNotAllowed unless caller is the owner.
func (s *State) RequireOwner(caller AccountID) error {
	if caller != s.Owner {
		return ErrNotAllowed
	}
	return nil
}

// RequireGuardian raises ErrNotAllowed unless caller is the owner or a
// registered guardian.
func (s *State) RequireGuardian(caller AccountID) error {
	if caller == s.Owner || s.Guardians[caller] {
		return nil
	}
	return ErrNotAllowed
}

// sharesAccountID computes the ":{pool_id}" multi-fungible-token view
// id spec.md §6 names for a pool's LP share balances.
func sharesAccountID(pid PoolID) string {
	return ":" + strconv.FormatUint(uint64(pid), 10)
}

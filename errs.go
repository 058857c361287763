// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ammcore

import (
	"errors"

	"github.com/luxfi/precompile/ammcore/fixedmath"
)

// Errors - Registry / governance
var (
	ErrPaused       = errors.New("ammcore: registry is paused")
	ErrNotAllowed   = errors.New("ammcore: caller lacks required role")
	ErrUnknownPool  = errors.New("ammcore: unknown pool")
	ErrUnknownToken = errors.New("ammcore: unknown token")
	ErrTokenDupes   = errors.New("ammcore: duplicate tokens")
	ErrWrongTokens  = errors.New("ammcore: wrong token count")
)

// Errors - Ledger
var (
	ErrInsufficientBalance = errors.New("ammcore: insufficient ledger balance")
	ErrUnregisteredToken   = errors.New("ammcore: token not registered for this account")
	ErrTokenAlreadyReg     = errors.New("ammcore: token already registered")
	ErrAccountNotEmpty     = errors.New("ammcore: account has nonzero balances")
)

// Errors - Pool operations
var (
	ErrInsufficientLPBalance = errors.New("ammcore: insufficient LP share balance")
	ErrInsufficientOutput    = errors.New("ammcore: output below min_amount_out")
	ErrZeroAmount            = errors.New("ammcore: zero amount")
	ErrZeroLiquidity         = errors.New("ammcore: pool has zero liquidity")
	ErrSameToken             = errors.New("ammcore: token_in equals token_out")
	ErrTransferToSelf        = errors.New("ammcore: LP transfer to self")
	ErrLPAlreadyRegistered   = errors.New("ammcore: LP share account already registered")
	ErrMinSharesNotMet       = errors.New("ammcore: minted shares below min_shares")
	ErrMaxBurnExceeded       = errors.New("ammcore: required burn exceeds max_burn_shares")
)

// Errors - Stable-swap invariant solver
var (
	ErrComputeDFailed = errors.New("ammcore: D did not converge")
	ErrComputeYFailed = errors.New("ammcore: y did not converge")
)

// Errors - Executor
var (
	ErrNoAmount = errors.New("ammcore: first action in a chain must specify amount_in")
)

// ErrMathOverflow re-exports fixedmath's overflow sentinel under the
// core's own error surface so callers never need to import fixedmath
// just to compare errors.
var ErrMathOverflow = fixedmath.ErrMathOverflow

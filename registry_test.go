// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ammcore

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestRegistryAddSimplePoolAndSwap(t *testing.T) {
	r := NewRegistry("owner")
	pid, err := r.AddSimplePool("owner", "usdc", "usdt", 30)
	if err != nil {
		t.Fatalf("AddSimplePool: %v", err)
	}

	if err := r.LedgerDeposit("alice", "usdc", u64(1_000_000)); err != nil {
		t.Fatalf("LedgerDeposit: %v", err)
	}
	if err := r.LedgerDeposit("alice", "usdt", u64(1_000_000)); err != nil {
		t.Fatalf("LedgerDeposit: %v", err)
	}

	if _, err := r.AddLiquidity("alice", pid, []*uint256.Int{u64(1_000_000), u64(1_000_000)}, u64(0)); err != nil {
		t.Fatalf("AddLiquidity: %v", err)
	}
	if bal := r.LedgerBalance("alice", "usdc"); !bal.IsZero() {
		t.Fatalf("alice's usdc ledger balance should be fully consumed by the deposit, got %s", bal)
	}

	if err := r.LedgerDeposit("bob", "usdc", u64(1000)); err != nil {
		t.Fatalf("LedgerDeposit bob: %v", err)
	}
	action := SwapAction{PoolID: pid, TokenIn: "usdc", TokenOut: "usdt", AmountIn: u64(1000)}
	out, err := r.ExecuteActions("bob", []SwapAction{action}, nil)
	if err != nil {
		t.Fatalf("ExecuteActions: %v", err)
	}
	if out.IsZero() {
		t.Fatal("expected a nonzero swap output")
	}
	if bal := r.LedgerBalance("bob", "usdt"); bal.Cmp(out) != 0 {
		t.Fatalf("bob's ledger should be credited exactly the swap output, got %s want %s", bal, out)
	}
	if bal := r.LedgerBalance("bob", "usdc"); !bal.IsZero() {
		t.Fatalf("bob's input token should be fully consumed, got %s", bal)
	}
}

func TestRegistryExecuteActionsChainsHops(t *testing.T) {
	r := NewRegistry("owner")
	p1, err := r.AddSimplePool("owner", "usdc", "weth", 30)
	if err != nil {
		t.Fatalf("AddSimplePool p1: %v", err)
	}
	p2, err := r.AddSimplePool("owner", "weth", "dai", 30)
	if err != nil {
		t.Fatalf("AddSimplePool p2: %v", err)
	}

	seed := func(acc AccountID, token TokenID, amount uint64) {
		t.Helper()
		if err := r.LedgerDeposit(acc, token, u64(amount)); err != nil {
			t.Fatalf("seed deposit: %v", err)
		}
	}
	seed("lp", "usdc", 1_000_000)
	seed("lp", "weth", 1_000_000)
	seed("lp", "dai", 1_000_000)
	if _, err := r.AddLiquidity("lp", p1, []*uint256.Int{u64(1_000_000), u64(1_000_000)}, u64(0)); err != nil {
		t.Fatalf("AddLiquidity p1: %v", err)
	}
	if _, err := r.AddLiquidity("lp", p2, []*uint256.Int{u64(1_000_000), u64(1_000_000)}, u64(0)); err != nil {
		t.Fatalf("AddLiquidity p2: %v", err)
	}

	seed("trader", "usdc", 1000)
	actions := []SwapAction{
		{PoolID: p1, TokenIn: "usdc", TokenOut: "weth", AmountIn: u64(1000)},
		{PoolID: p2, TokenIn: "weth", TokenOut: "dai", MinAmountOut: u64(1)},
	}
	out, err := r.ExecuteActions("trader", actions, nil)
	if err != nil {
		t.Fatalf("ExecuteActions: %v", err)
	}
	if out.IsZero() {
		t.Fatal("expected nonzero final output after chaining two hops")
	}
	if bal := r.LedgerBalance("trader", "dai"); bal.Cmp(out) != 0 {
		t.Fatalf("trader's dai balance should equal the chained output, got %s want %s", bal, out)
	}
	if bal := r.LedgerBalance("trader", "weth"); !bal.IsZero() {
		t.Fatalf("intermediate weth should never land in trader's ledger, got %s", bal)
	}
}

func TestRegistryExecuteActionsRequiresAmountIn(t *testing.T) {
	r := NewRegistry("owner")
	pid, _ := r.AddSimplePool("owner", "a", "b", 30)
	action := SwapAction{PoolID: pid, TokenIn: "a", TokenOut: "b"}
	if _, err := r.ExecuteActions("trader", []SwapAction{action}, nil); err != ErrNoAmount {
		t.Fatalf("want ErrNoAmount, got %v", err)
	}
}

func TestRegistryReferralFeeIsCreditedAsLedgerBalance(t *testing.T) {
	r := NewRegistry("owner")
	r.state.ExchangeFeeBp = 5000 // 50% of the swap fee goes to the exchange
	r.state.ReferralFeeBp = 2000 // 20% of the exchange's cut goes to the referrer
	pid, _ := r.AddSimplePool("owner", "a", "b", 30)
	if err := r.LedgerDeposit("lp", "a", u64(1_000_000)); err != nil {
		t.Fatal(err)
	}
	if err := r.LedgerDeposit("lp", "b", u64(1_000_000)); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddLiquidity("lp", pid, []*uint256.Int{u64(1_000_000), u64(1_000_000)}, u64(0)); err != nil {
		t.Fatal(err)
	}
	if err := r.LedgerDeposit("trader", "a", u64(10_000)); err != nil {
		t.Fatal(err)
	}
	referral := AccountID("referrer")
	action := SwapAction{PoolID: pid, TokenIn: "a", TokenOut: "b", AmountIn: u64(10_000)}
	if _, err := r.ExecuteActions("trader", []SwapAction{action}, &referral); err != nil {
		t.Fatalf("ExecuteActions: %v", err)
	}
	if r.LedgerBalance("referrer", "b").IsZero() {
		t.Fatal("expected the referral account to be credited its share of the fee in the output token")
	}
}

func TestRegistryPausedRejectsMutation(t *testing.T) {
	r := NewRegistry("owner")
	r.state.Running = false
	if _, err := r.AddSimplePool("owner", "a", "b", 30); err != ErrPaused {
		t.Fatalf("want ErrPaused, got %v", err)
	}
	if err := r.LedgerDeposit("alice", "a", u64(1)); err != ErrPaused {
		t.Fatalf("want ErrPaused, got %v", err)
	}
}

func TestRegistryQuotePicksBestPool(t *testing.T) {
	r := NewRegistry("owner")
	highFeePool, _ := r.AddSimplePool("owner", "a", "b", 100)
	lowFeePool, _ := r.AddSimplePool("owner", "a", "b", 30)
	for _, acc := range []AccountID{"lp1", "lp2"} {
		if err := r.LedgerDeposit(acc, "a", u64(1_000_000)); err != nil {
			t.Fatal(err)
		}
		if err := r.LedgerDeposit(acc, "b", u64(1_000_000)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := r.AddLiquidity("lp1", highFeePool, []*uint256.Int{u64(1_000_000), u64(1_000_000)}, u64(0)); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddLiquidity("lp2", lowFeePool, []*uint256.Int{u64(1_000_000), u64(1_000_000)}, u64(0)); err != nil {
		t.Fatal(err)
	}

	hop, out, err := r.Quote("a", "b", u64(1000))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if hop.PoolID != lowFeePool {
		t.Fatalf("want the lower-fee pool %d to win, got %d (out=%s)", lowFeePool, hop.PoolID, out)
	}

	// Quote must not have mutated either pool's real reserves.
	p, _ := r.Pool(lowFeePool)
	simple := p.(*SimplePool)
	if simple.reserves[0].Uint64() != 1_000_000 {
		t.Fatal("Quote must not mutate live pool state")
	}
}

func TestRegistryAddLiquidityCreditsBackUnconsumedAmounts(t *testing.T) {
	r := NewRegistry("owner")
	pid, err := r.AddSimplePool("owner", "a", "b", 30)
	if err != nil {
		t.Fatalf("AddSimplePool: %v", err)
	}
	if err := r.LedgerDeposit("seed", "a", u64(1000)); err != nil {
		t.Fatal(err)
	}
	if err := r.LedgerDeposit("seed", "b", u64(1000)); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddLiquidity("seed", pid, []*uint256.Int{u64(1000), u64(1000)}, u64(0)); err != nil {
		t.Fatalf("seed AddLiquidity: %v", err)
	}

	if err := r.LedgerDeposit("bob", "a", u64(500)); err != nil {
		t.Fatal(err)
	}
	if err := r.LedgerDeposit("bob", "b", u64(2000)); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddLiquidity("bob", pid, []*uint256.Int{u64(500), u64(2000)}, u64(0)); err != nil {
		t.Fatalf("bob AddLiquidity: %v", err)
	}
	if bal := r.LedgerBalance("bob", "b"); bal.Uint64() != 1500 {
		t.Fatalf("bob's unconsumed token-b excess should be credited back to his ledger, got %s", bal)
	}
	if bal := r.LedgerBalance("bob", "a"); !bal.IsZero() {
		t.Fatalf("bob's token-a should be fully consumed, got %s", bal)
	}
}

func TestRegistryAddStablePoolAndRemoveLiquidityByTokens(t *testing.T) {
	r := NewRegistry("owner")
	tokens := []TokenID{"usdc", "usdt"}
	decimals := []uint{18, 18}
	pid, err := r.AddStablePool("owner", tokens, decimals, uint256.NewInt(100), 4, 0)
	if err != nil {
		t.Fatalf("AddStablePool: %v", err)
	}
	if err := r.LedgerDeposit("lp", "usdc", u64(1_000_000)); err != nil {
		t.Fatal(err)
	}
	if err := r.LedgerDeposit("lp", "usdt", u64(1_000_000)); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddLiquidity("lp", pid, []*uint256.Int{u64(1_000_000), u64(1_000_000)}, u64(0)); err != nil {
		t.Fatalf("AddLiquidity: %v", err)
	}
	burned, err := r.RemoveLiquidityByTokens("lp", pid, []*uint256.Int{u64(1000), u64(1000)}, InitSharesSupply)
	if err != nil {
		t.Fatalf("RemoveLiquidityByTokens: %v", err)
	}
	if burned.IsZero() {
		t.Fatal("expected a nonzero share burn")
	}
	if bal := r.LedgerBalance("lp", "usdc"); bal.Uint64() != 1000 {
		t.Fatalf("want usdc credited back 1000, got %s", bal)
	}
}

func TestRegistrySharesOfAndTransferShares(t *testing.T) {
	r := NewRegistry("owner")
	pid, err := r.AddSimplePool("owner", "a", "b", 25)
	if err != nil {
		t.Fatalf("AddSimplePool: %v", err)
	}
	if err := r.LedgerDeposit("alice", "a", u64(1_000_000)); err != nil {
		t.Fatal(err)
	}
	if err := r.LedgerDeposit("alice", "b", u64(1_000_000)); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddLiquidity("alice", pid, []*uint256.Int{u64(1_000_000), u64(1_000_000)}, u64(0)); err != nil {
		t.Fatalf("AddLiquidity: %v", err)
	}
	if r.SharesOf(pid, "alice").Cmp(InitSharesSupply) != 0 {
		t.Fatalf("want alice's shares == InitSharesSupply, got %s", r.SharesOf(pid, "alice"))
	}
	if err := r.TransferShares(pid, "alice", "bob", u64(100)); err != nil {
		t.Fatalf("TransferShares: %v", err)
	}
	if r.SharesOf(pid, "bob").Uint64() != 100 {
		t.Fatalf("want bob's shares == 100, got %s", r.SharesOf(pid, "bob"))
	}
	if err := r.TransferShares(pid, "bob", "bob", u64(1)); err != ErrTransferToSelf {
		t.Fatalf("want ErrTransferToSelf, got %v", err)
	}
	if got := r.ShareTokenID(pid); got != ":0" {
		t.Fatalf("want share token id \":0\", got %q", got)
	}
	if got := r.SharesOf(PoolID(999), "alice"); !got.IsZero() {
		t.Fatalf("unknown pool should report zero shares, got %s", got)
	}
}

func TestRegistryUnregisterAccount(t *testing.T) {
	r := NewRegistry("owner")
	if err := r.LedgerDeposit("carol", "usdc", u64(100)); err != nil {
		t.Fatal(err)
	}
	if err := r.UnregisterAccount("carol"); err != ErrAccountNotEmpty {
		t.Fatalf("want ErrAccountNotEmpty while balance is nonzero, got %v", err)
	}
	if err := r.LedgerWithdraw("carol", "usdc", u64(100)); err != nil {
		t.Fatal(err)
	}
	if err := r.UnregisterAccount("carol"); err != nil {
		t.Fatalf("UnregisterAccount: %v", err)
	}
	if bal := r.LedgerBalance("carol", "usdc"); !bal.IsZero() {
		t.Fatalf("want zero balance after unregister, got %s", bal)
	}
}

// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fixedmath

import (
	"testing"

	"github.com/holiman/uint256"
)

func u64(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestMulDivFloor(t *testing.T) {
	got, err := MulDivFloor(u64(10), u64(3), u64(4))
	if err != nil {
		t.Fatalf("MulDivFloor: %v", err)
	}
	if got.Uint64() != 7 { // 30/4 = 7.5 -> floor 7
		t.Fatalf("want 7, got %s", got)
	}
}

func TestMulDivCeil(t *testing.T) {
	got, err := MulDivCeil(u64(10), u64(3), u64(4))
	if err != nil {
		t.Fatalf("MulDivCeil: %v", err)
	}
	if got.Uint64() != 8 { // 30/4 = 7.5 -> ceil 8
		t.Fatalf("want 8, got %s", got)
	}
}

func TestMulDivExact(t *testing.T) {
	floor, err := MulDivFloor(u64(10), u64(2), u64(4))
	if err != nil {
		t.Fatalf("MulDivFloor: %v", err)
	}
	ceil, err := MulDivCeil(u64(10), u64(2), u64(4))
	if err != nil {
		t.Fatalf("MulDivCeil: %v", err)
	}
	if floor.Uint64() != 5 || ceil.Uint64() != 5 {
		t.Fatalf("exact division should floor == ceil == 5, got floor=%s ceil=%s", floor, ceil)
	}
}

func TestMulDivDenomZero(t *testing.T) {
	if _, err := MulDivFloor(u64(1), u64(1), u64(0)); err != ErrDivByZero {
		t.Fatalf("want ErrDivByZero, got %v", err)
	}
	if _, err := MulDivCeil(u64(1), u64(1), u64(0)); err != ErrDivByZero {
		t.Fatalf("want ErrDivByZero, got %v", err)
	}
}

func TestMulDivOverflowsU128(t *testing.T) {
	tooBig := new(uint256.Int).Add(MaxU128, u64(1))
	if _, err := MulDivFloor(tooBig, u64(1), u64(1)); err != ErrMathOverflow {
		t.Fatalf("want ErrMathOverflow, got %v", err)
	}
}

func TestMulDivFloorWideCheckedBeyond256Bits(t *testing.T) {
	// a*b alone exceeds 256 bits (2^130 * 2^130 = 2^260) even though
	// both operands and the true quotient fit in 256 bits.
	a := new(uint256.Int).Lsh(uint256.NewInt(1), 130)
	b := new(uint256.Int).Lsh(uint256.NewInt(1), 130)
	denom := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	got, err := MulDivFloorWideChecked(a, b, denom)
	if err != nil {
		t.Fatalf("MulDivFloorWideChecked: %v", err)
	}
	want := new(uint256.Int).Lsh(uint256.NewInt(1), 60) // 2^260/2^200 = 2^60
	if got.Cmp(want) != 0 {
		t.Fatalf("want %s, got %s", want, got)
	}
}

func TestMulDivFloorWideCheckedOverflowsResult(t *testing.T) {
	// 2^200 * 2^200 / 1 = 2^400, a quotient that does not fit in 256 bits.
	a := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	b := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	if _, err := MulDivFloorWideChecked(a, b, uint256.NewInt(1)); err != ErrMathOverflow {
		t.Fatalf("want ErrMathOverflow, got %v", err)
	}
}

func TestApplyFeeBpRoundsUserDownPoolUp(t *testing.T) {
	kept, fee, err := ApplyFeeBp(u64(1001), 25) // 0.25%
	if err != nil {
		t.Fatalf("ApplyFeeBp: %v", err)
	}
	// 1001*25/10000 = 2.5025 -> ceil 3 (pool side rounds up)
	if fee.Uint64() != 3 {
		t.Fatalf("want fee=3, got %s", fee)
	}
	if kept.Uint64() != 998 {
		t.Fatalf("want kept=998, got %s", kept)
	}
	if new(uint256.Int).Add(kept, fee).Uint64() != 1001 {
		t.Fatal("kept+fee must equal amount exactly")
	}
}

func TestApplyFeeBpZero(t *testing.T) {
	kept, fee, err := ApplyFeeBp(u64(1000), 0)
	if err != nil {
		t.Fatalf("ApplyFeeBp: %v", err)
	}
	if fee.Uint64() != 0 || kept.Uint64() != 1000 {
		t.Fatalf("zero fee should keep everything, got kept=%s fee=%s", kept, fee)
	}
}

func TestSqrt(t *testing.T) {
	cases := []struct{ in, want uint64 }{
		{0, 0}, {1, 1}, {2, 1}, {3, 1}, {4, 2}, {8, 2}, {9, 3}, {1_000_000, 1000},
	}
	for _, c := range cases {
		got := Sqrt(u64(c.in)).Uint64()
		if got != c.want {
			t.Errorf("Sqrt(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestSqrtLargeIsFloor(t *testing.T) {
	x := u64(1_000_001)
	s := Sqrt(x)
	sSq := new(uint256.Int).Mul(s, s)
	sNextSq := new(uint256.Int).Mul(new(uint256.Int).Add(s, u64(1)), new(uint256.Int).Add(s, u64(1)))
	if sSq.Cmp(x) > 0 || sNextSq.Cmp(x) <= 0 {
		t.Fatalf("Sqrt(%s) = %s is not floor(sqrt(x))", x, s)
	}
}

func TestScaleUpDown(t *testing.T) {
	up := ScaleUp(u64(5), 6)
	if up.Uint64() != 5_000_000 {
		t.Fatalf("ScaleUp mismatch: %s", up)
	}
	down := ScaleDownFloor(u64(5_000_001), 6)
	if down.Uint64() != 5 {
		t.Fatalf("ScaleDownFloor mismatch: %s", down)
	}
}

func TestMinMaxAbsDiff(t *testing.T) {
	a, b := u64(5), u64(9)
	if Min(a, b).Uint64() != 5 || Max(a, b).Uint64() != 9 {
		t.Fatal("Min/Max mismatch")
	}
	if AbsDiff(a, b).Uint64() != 4 || AbsDiff(b, a).Uint64() != 4 {
		t.Fatal("AbsDiff mismatch")
	}
}

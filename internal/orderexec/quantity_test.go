package orderexec

import (
	"math/rand"
	"testing"
)

func TestRoundDown(t *testing.T) {
	cases := []struct {
		qty, step, want, left float64
	}{
		{0.123456, 0.001, 0.123, 0.000456},
		{1.0, 0.1, 1.0, 0},
		{0.3, 0.1, 0.3, 0},
		{5, 0, 5, 0},
		{0.00009, 0.0001, 0, 0.00009},
		{-1, 0.1, 0, 0},
	}
	for _, c := range cases {
		got, left := RoundDown(c.qty, c.step)
		if got != c.want || left != c.left {
			t.Fatalf("RoundDown(%v,%v) = %v,%v want %v,%v", c.qty, c.step, got, left, c.want, c.left)
		}
	}
}

func TestRoundDownNeverExceedsInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	steps := []float64{1, 0.1, 0.01, 0.001, 0.00001, 0.00000001}
	for i := 0; i < 2000; i++ {
		qty := rng.Float64() * 1000
		step := steps[rng.Intn(len(steps))]
		got, left := RoundDown(qty, step)
		if got > qty {
			t.Fatalf("rounded %v above input %v (step %v)", got, qty, step)
		}
		if left < 0 || left >= step+1e-12 {
			t.Fatalf("leftover %v out of range for step %v", left, step)
		}
	}
}

func TestRoundUp(t *testing.T) {
	if got := RoundUp(30010.001, 0.01); got != 30010.01 {
		t.Fatalf("RoundUp got %v", got)
	}
	if got := RoundUp(1511, 0.01); got != 1511 {
		t.Fatalf("exact multiple must not move, got %v", got)
	}
}

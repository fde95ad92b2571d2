package vault

import (
	"math/big"
	"testing"
)

func TestCalculateMultiplierDurationAxis(t *testing.T) {
	params := DefaultParams()
	amount := big.NewInt(100)

	cases := []struct {
		name     string
		duration uint64
		want     uint64
	}{
		{"below first breakpoint floors", 7 * day, 10_000},
		{"first breakpoint", 30 * day, 10_000},
		{"midpoint interpolates", 60 * day, 11_000},
		{"second breakpoint", 90 * day, 12_000},
		{"interior of widest segment", 270 * day, 17_432},
		{"last breakpoint", 365 * day, 20_000},
		{"beyond last breakpoint caps", 1000 * day, 20_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := params.CalculateMultiplier(amount, tc.duration)
			if err != nil {
				t.Fatalf("calculate: %v", err)
			}
			if got != tc.want {
				t.Fatalf("multiplier = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCalculateMultiplierAmountTiers(t *testing.T) {
	params := DefaultParams()

	cases := []struct {
		name   string
		amount int64
		want   uint64
	}{
		{"below first tier", 9_999, 10_000},
		{"first tier boundary", 10_000, 10_500},
		{"second tier", 100_000, 11_000},
		{"third tier", 1_000_000, 12_000},
		{"far above third tier", 50_000_000, 12_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := params.CalculateMultiplier(big.NewInt(tc.amount), 30*day)
			if err != nil {
				t.Fatalf("calculate: %v", err)
			}
			if got != tc.want {
				t.Fatalf("multiplier = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCalculateMultiplierCeiling(t *testing.T) {
	params := DefaultParams()
	params.MaxMultiplierBps = 21_000

	got, err := params.CalculateMultiplier(big.NewInt(1_000_000), 365*day)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if got != 21_000 {
		t.Fatalf("ceiling not applied: %d", got)
	}
}

func TestCalculateMultiplierDegenerateInputs(t *testing.T) {
	params := DefaultParams()

	if got, err := params.CalculateMultiplier(nil, 30*day); err != nil || got != 0 {
		t.Fatalf("nil amount: got %d, %v", got, err)
	}
	if got, err := params.CalculateMultiplier(big.NewInt(0), 30*day); err != nil || got != 0 {
		t.Fatalf("zero amount: got %d, %v", got, err)
	}
	if _, err := params.CalculateMultiplier(big.NewInt(100), maxLockupSeconds+1); err == nil {
		t.Fatalf("expected error for overlong duration")
	}
}

func TestCalculateMultiplierMonotonic(t *testing.T) {
	params := DefaultParams()
	amount := big.NewInt(5_000)

	previous := uint64(0)
	for d := uint64(day); d <= 400*day; d += day {
		got, err := params.CalculateMultiplier(amount, d)
		if err != nil {
			t.Fatalf("calculate at %d: %v", d, err)
		}
		if got < previous {
			t.Fatalf("multiplier decreased at %d: %d < %d", d, got, previous)
		}
		previous = got
	}
}

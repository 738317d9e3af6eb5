package domain

import "testing"

func TestEstimateBandwidth_FloorsAtMinimumRental(t *testing.T) {
	// 195 + 300 is well below the minimum order size.
	if got := EstimateBandwidth(300); got != 1000 {
		t.Fatalf("expected minimum rental of 1000, got %d", got)
	}
}

func TestEstimateBandwidth_UsesTransactionSizeAboveMinimum(t *testing.T) {
	if got := EstimateBandwidth(900); got != 1095 {
		t.Fatalf("expected 195+900=1095, got %d", got)
	}
}

func TestAvailableResource(t *testing.T) {
	cases := []struct {
		name        string
		limit, used int64
		want        int64
	}{
		{"unused pool", 1500, 0, 1500},
		{"partially used", 1500, 600, 900},
		{"fully used", 1500, 1500, 0},
		{"overdrawn never negative", 1500, 2000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AvailableResource(tc.limit, tc.used); got != tc.want {
				t.Fatalf("AvailableResource(%d, %d) = %d, want %d", tc.limit, tc.used, got, tc.want)
			}
		})
	}
}

func TestResourcesSatisfied_EnergyGetsSlack(t *testing.T) {
	// 90% of a 1000 energy target is accepted as delivered.
	if !ResourcesSatisfied(910, 600, 1000, 600) {
		t.Fatal("expected 910 energy to satisfy a 1000 target")
	}
	if ResourcesSatisfied(899, 600, 1000, 600) {
		t.Fatal("expected 899 energy to miss a 1000 target")
	}
}

func TestResourcesSatisfied_BandwidthRequiredInFull(t *testing.T) {
	if ResourcesSatisfied(5000, 599, 0, 600) {
		t.Fatal("expected 599 bandwidth to miss a 600 target")
	}
	if !ResourcesSatisfied(0, 600, 0, 600) {
		t.Fatal("expected zero energy target to pass on bandwidth alone")
	}
}

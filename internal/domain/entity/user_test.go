package entity

import "testing"

func TestUser_CanAfford(t *testing.T) {
	cases := []struct {
		name               string
		used, limit, flexy int
		cost               int
		want               bool
	}{
		{"fresh user", 0, 10, 0, 4, true},
		{"exact boundary", 6, 10, 0, 4, true},
		{"one over", 7, 10, 0, 4, false},
		{"denial scenario", 8, 10, 0, 4, false},
		{"flexy extends allowance", 8, 10, 2, 4, true},
		{"no plan only flexy", 0, 0, 4, 4, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := &User{RequestsUsed: tc.used, RequestsLimit: tc.limit, FlexyRequests: tc.flexy}
			if got := u.CanAfford(tc.cost); got != tc.want {
				t.Fatalf("CanAfford(%d) = %v, want %v", tc.cost, got, tc.want)
			}
		})
	}
}

func TestUser_DebitFlexyFirst(t *testing.T) {
	u := &User{RequestsUsed: 1, RequestsLimit: 10, FlexyRequests: 6}
	u.Debit(4)
	if u.FlexyRequests != 2 || u.RequestsUsed != 1 {
		t.Fatalf("flexy covers cost: got flexy=%d used=%d", u.FlexyRequests, u.RequestsUsed)
	}

	u.Debit(4)
	if u.FlexyRequests != 0 || u.RequestsUsed != 3 {
		t.Fatalf("partial flexy: got flexy=%d used=%d", u.FlexyRequests, u.RequestsUsed)
	}
	if got := u.Remaining(); got != 7 {
		t.Fatalf("Remaining() = %d, want 7", got)
	}
}

func TestUser_RemainingFloorsAtZero(t *testing.T) {
	u := &User{RequestsUsed: 12, RequestsLimit: 10}
	if got := u.Remaining(); got != 0 {
		t.Fatalf("Remaining() = %d, want 0", got)
	}
}

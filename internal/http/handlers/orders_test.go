package handlers

import (
	"testing"
	"time"
)

func TestIsValidOrderTransition(t *testing.T) {
	cases := []struct {
		name    string
		current string
		next    string
		want    bool
	}{
		{name: "pending to preparing", current: "PENDING", next: "PREPARING", want: true},
		{name: "preparing to ready", current: "PREPARING", next: "READY", want: true},
		{name: "ready to served", current: "READY", next: "SERVED", want: true},
		{name: "served to completed", current: "SERVED", next: "COMPLETED", want: true},
		{name: "pending can cancel", current: "PENDING", next: "CANCELLED", want: true},
		{name: "preparing can cancel", current: "PREPARING", next: "CANCELLED", want: true},
		{name: "ready can cancel", current: "READY", next: "CANCELLED", want: true},
		{name: "served cannot cancel", current: "SERVED", next: "CANCELLED", want: false},
		{name: "pending cannot skip to served", current: "PENDING", next: "SERVED", want: false},
		{name: "ready cannot complete without serving", current: "READY", next: "COMPLETED", want: false},
		{name: "completed is terminal", current: "COMPLETED", next: "SERVED", want: false},
		{name: "cancelled is terminal", current: "CANCELLED", next: "PENDING", want: false},
		{name: "no backwards moves", current: "READY", next: "PREPARING", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isValidOrderTransition(tc.current, tc.next); got != tc.want {
				t.Fatalf("expected %v for %s -> %s, got %v", tc.want, tc.current, tc.next, got)
			}
		})
	}
}

func TestDisplayNumberFormats(t *testing.T) {
	day := time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC)

	cases := []struct {
		name string
		got  string
		want string
	}{
		{name: "first order of the day", got: formatOrderNumber(day, 1), want: "ORD-20260830-0001"},
		{name: "order padding", got: formatOrderNumber(day, 42), want: "ORD-20260830-0042"},
		{name: "order beyond padding width", got: formatOrderNumber(day, 12345), want: "ORD-20260830-12345"},
		{name: "first ticket of the day", got: formatTicketNumber(day, 1), want: "KOT-20260830-0001"},
		{name: "ticket padding", got: formatTicketNumber(day, 7), want: "KOT-20260830-0007"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, tc.got)
			}
		})
	}

	// Distinct counter values must never collapse into the same display
	// number; the unique index turns a collision into a failed checkout.
	seen := make(map[string]bool)
	for seq := int64(1); seq <= 200; seq++ {
		number := formatOrderNumber(day, seq)
		if seen[number] {
			t.Fatalf("sequence %d reused number %s", seq, number)
		}
		seen[number] = true
	}
}

func TestValidOrderStatusFilter(t *testing.T) {
	for _, status := range []string{"PENDING", "PREPARING", "READY", "SERVED", "COMPLETED", "CANCELLED"} {
		if !validOrderStatusFilter[status] {
			t.Fatalf("expected %s to be a valid filter", status)
		}
	}
	for _, status := range []string{"", "pending", "UNKNOWN", "ACCEPTED"} {
		if validOrderStatusFilter[status] {
			t.Fatalf("expected %s to be rejected", status)
		}
	}
}

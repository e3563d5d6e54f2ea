package handlers

import (
	"testing"
	"time"
)

func TestDeriveTenantStatus(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	cases := []struct {
		name     string
		isActive bool
		trial    *time.Time
		sub      *time.Time
		want     string
	}{
		{name: "disabled wins over open trial", isActive: false, trial: &future, want: "disabled"},
		{name: "disabled wins over subscription", isActive: false, sub: &future, want: "disabled"},
		{name: "open trial", isActive: true, trial: &future, want: "trial"},
		{name: "trial wins over subscription while open", isActive: true, trial: &future, sub: &future, want: "trial"},
		{name: "expired trial with subscription", isActive: true, trial: &past, sub: &future, want: "active"},
		{name: "subscription only", isActive: true, sub: &future, want: "active"},
		{name: "everything lapsed", isActive: true, trial: &past, sub: &past, want: "expired"},
		{name: "no dates at all", isActive: true, want: "expired"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := deriveTenantStatus(tc.isActive, tc.trial, tc.sub, now); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestRestaurantCodePattern(t *testing.T) {
	valid := []string{"bistro", "cafe-42", "a1b", "the-golden-spoon"}
	for _, code := range valid {
		if !restaurantCodePattern.MatchString(code) {
			t.Fatalf("expected %q to be accepted", code)
		}
	}

	invalid := []string{"ab", "-bistro", "bistro-", "Bistro", "caf e", "a_b_c", ""}
	for _, code := range invalid {
		if restaurantCodePattern.MatchString(code) {
			t.Fatalf("expected %q to be rejected", code)
		}
	}
}

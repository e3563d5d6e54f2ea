package utils

import "testing"

func TestOrderTrackingTokenRoundTrip(t *testing.T) {
	secret := "test-secret"
	token := CreateOrderTrackingToken(secret, "bistro", "ORD-20260830-0001")

	if !VerifyOrderTrackingToken(secret, token, "bistro", "ORD-20260830-0001") {
		t.Fatalf("expected token to verify")
	}
	if VerifyOrderTrackingToken(secret, token, "other-cafe", "ORD-20260830-0001") {
		t.Fatalf("token must be bound to the restaurant code")
	}
	if VerifyOrderTrackingToken(secret, token, "bistro", "ORD-20260830-0002") {
		t.Fatalf("token must be bound to the order number")
	}
	if VerifyOrderTrackingToken("wrong-secret", token, "bistro", "ORD-20260830-0001") {
		t.Fatalf("token must not verify under a different secret")
	}
}

func TestOrderTrackingTokenMalformed(t *testing.T) {
	for _, token := range []string{"", "nodot", "a.b.c", "!!!.???"} {
		if VerifyOrderTrackingToken("test-secret", token, "bistro", "ORD-20260830-0001") {
			t.Fatalf("expected %q to be rejected", token)
		}
	}
}

func TestRoundMoney(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{in: 10.004, want: 10.0},
		{in: 10.006, want: 10.01},
		{in: 0, want: 0},
		{in: 19.999, want: 20.0},
		{in: -3.456, want: -3.46},
	}
	for _, tc := range cases {
		if got := RoundMoney(tc.in); got != tc.want {
			t.Fatalf("RoundMoney(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

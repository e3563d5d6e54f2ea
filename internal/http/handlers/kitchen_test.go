package handlers

import "testing"

func TestCanTransitionTicket(t *testing.T) {
	cases := []struct {
		name     string
		current  string
		next     string
		wantOK   bool
		wantNoop bool
	}{
		{name: "pending to preparing", current: "PENDING", next: "PREPARING", wantOK: true},
		{name: "preparing to ready", current: "PREPARING", next: "READY", wantOK: true},
		{name: "pending straight to ready is rejected", current: "PENDING", next: "READY"},
		{name: "ready back to preparing is rejected", current: "READY", next: "PREPARING"},
		{name: "ready back to pending is rejected", current: "READY", next: "PENDING"},
		{name: "completed cannot move", current: "COMPLETED", next: "PREPARING"},
		{name: "double tap preparing is a no-op", current: "PREPARING", next: "PREPARING", wantOK: true, wantNoop: true},
		{name: "double tap ready is a no-op", current: "READY", next: "READY", wantOK: true, wantNoop: true},
		{name: "unknown status never transitions", current: "BOGUS", next: "PREPARING"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, noop := canTransitionTicket(tc.current, tc.next)
			if ok != tc.wantOK {
				t.Fatalf("expected ok=%v, got %v", tc.wantOK, ok)
			}
			if noop != tc.wantNoop {
				t.Fatalf("expected noop=%v, got %v", tc.wantNoop, noop)
			}
		})
	}
}

func TestTicketCompleteBlocked(t *testing.T) {
	cases := []struct {
		name        string
		status      string
		wantBlocked bool
		wantMessage string
	}{
		{name: "ready can be claimed", status: "READY"},
		{name: "second complete fails", status: "COMPLETED", wantBlocked: true, wantMessage: "Ticket is already completed"},
		{name: "pending cannot complete", status: "PENDING", wantBlocked: true, wantMessage: "Only READY tickets can be completed"},
		{name: "preparing cannot complete", status: "PREPARING", wantBlocked: true, wantMessage: "Only READY tickets can be completed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			message, blocked := ticketCompleteBlocked(tc.status)
			if blocked != tc.wantBlocked {
				t.Fatalf("expected blocked=%v for %s, got %v", tc.wantBlocked, tc.status, blocked)
			}
			if message != tc.wantMessage {
				t.Fatalf("expected message %q, got %q", tc.wantMessage, message)
			}
		})
	}
}

func TestTicketCompletedUnreachableViaStatusMap(t *testing.T) {
	// The kitchen flow must keep COMPLETED reserved for the complete
	// operation; no status update may reach it.
	for _, current := range []string{"PENDING", "PREPARING", "READY", "COMPLETED"} {
		if ok, _ := canTransitionTicket(current, TicketStatusCompleted); ok && current != TicketStatusCompleted {
			t.Fatalf("COMPLETED reachable from %s via status update", current)
		}
	}
}

package handlers

import (
	"net/http/httptest"
	"testing"
)

func TestReadPagination(t *testing.T) {
	cases := []struct {
		name        string
		url         string
		wantPage    int
		wantPerPage int
		wantOffset  int
	}{
		{name: "defaults", url: "/api/admin/orders", wantPage: 1, wantPerPage: 20, wantOffset: 0},
		{name: "explicit page", url: "/api/admin/orders?page=3&perPage=10", wantPage: 3, wantPerPage: 10, wantOffset: 20},
		{name: "perPage capped at 100", url: "/api/admin/orders?perPage=500", wantPage: 1, wantPerPage: 100, wantOffset: 0},
		{name: "zero page falls back", url: "/api/admin/orders?page=0", wantPage: 1, wantPerPage: 20, wantOffset: 0},
		{name: "negative values fall back", url: "/api/admin/orders?page=-2&perPage=-5", wantPage: 1, wantPerPage: 20, wantOffset: 0},
		{name: "garbage values fall back", url: "/api/admin/orders?page=abc&perPage=xyz", wantPage: 1, wantPerPage: 20, wantOffset: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tc.url, nil)
			got := readPagination(r)
			if got.Page != tc.wantPage || got.PerPage != tc.wantPerPage || got.Offset != tc.wantOffset {
				t.Fatalf("expected page=%d perPage=%d offset=%d, got page=%d perPage=%d offset=%d",
					tc.wantPage, tc.wantPerPage, tc.wantOffset, got.Page, got.PerPage, got.Offset)
			}
		})
	}
}

package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		// empty -> default
		{"", 10, 10},
		// valid ints
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		// invalid -> default (no trim)
		{"x", 5, 5},
		{" 42", 7, 7},
		// overflow -> default
		{"999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestNormalizePage(t *testing.T) {
	cases := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 0, 1, DefaultPageSize},
		{-3, -1, 1, DefaultPageSize},
		{2, 50, 2, 50},
		{1, 1000, 1, MaxPageSize},
	}
	for _, tc := range cases {
		p, s := NormalizePage(tc.page, tc.size)
		if p != tc.wantPage || s != tc.wantSize {
			t.Fatalf("NormalizePage(%d, %d) = (%d, %d); want (%d, %d)",
				tc.page, tc.size, p, s, tc.wantPage, tc.wantSize)
		}
	}
}

func TestSearchPaginationNormalize(t *testing.T) {
	got := SearchPagination{}.Normalize()
	want := SearchPagination{Page: 1, Limit: DefaultSearchLimit, OrderBy: "created_at", OrderDirection: "desc"}
	if got != want {
		t.Fatalf("zero value normalized to %+v; want %+v", got, want)
	}

	got = SearchPagination{Page: 3, Limit: 500, OrderBy: "status", OrderDirection: "asc"}.Normalize()
	if got.Limit != MaxPageSize {
		t.Fatalf("limit 500 should clamp to %d, got %d", MaxPageSize, got.Limit)
	}
	if got.Page != 3 || got.OrderBy != "status" || got.OrderDirection != "asc" {
		t.Fatalf("valid fields mutated: %+v", got)
	}

	got = SearchPagination{OrderDirection: "sideways"}.Normalize()
	if got.OrderDirection != "desc" {
		t.Fatalf("unknown direction should default to desc, got %q", got.OrderDirection)
	}
}

func TestSearchPaginationOffset(t *testing.T) {
	p := SearchPagination{Page: 3, Limit: 10}
	if off := p.Offset(); off != 20 {
		t.Fatalf("Offset() = %d; want 20", off)
	}
	if off := (SearchPagination{Page: 1, Limit: 25}).Offset(); off != 0 {
		t.Fatalf("first page offset = %d; want 0", off)
	}
}

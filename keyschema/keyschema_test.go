package keyschema

import (
	"strings"
	"testing"
)

func TestKeyShapes(t *testing.T) {
	s := New("djac")

	cases := []struct {
		name string
		got  string
		want string
	}{
		{"payload", s.Payload("stocks"), "djac.stocks"},
		{"terms", s.Terms("stocks"), "djac.stocks.tm"},
		{"facets", s.Facets("stocks"), "djac.stocks.fm"},
		{"prefix", s.Prefix("stocks", "app"), "djac.stocks.p.app"},
		{"prefixSet", s.PrefixSet("stocks"), "djac.stocks.ps"},
		{"exact", s.Exact("stocks", "apple"), "djac.stocks.e.apple"},
		{"exactSet", s.ExactSet("stocks"), "djac.stocks.es"},
		{"facetSet", s.FacetSet("stocks", "sector", "tech"), "djac.stocks.f.sector.tech"},
		{"cache", s.Cache("finance", "apple", "abc123"), "djac.finance.c.apple.abc123"},
		{"exactCache", s.ExactCache("finance", "apple"), "djac.finance.ce.apple"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
}

func TestEphemeralKeyUnique(t *testing.T) {
	s := New("djac")
	a := s.NewEphemeralKey("stocks")
	b := s.NewEphemeralKey("stocks")
	if a == b {
		t.Fatalf("expected distinct ephemeral keys, got %q twice", a)
	}
	if !strings.HasPrefix(a, "djac.results.") || !strings.HasSuffix(a, ".stocks") {
		t.Errorf("unexpected ephemeral key shape: %q", a)
	}
}

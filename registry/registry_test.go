package registry

import (
	"context"
	"testing"

	"github.com/remiges-tech/autocompleter/provider"
)

type stubProvider struct {
	provider.Base[provider.DictEntry]
	name string
}

func (s stubProvider) Name() string                        { return s.name }
func (s stubProvider) ItemID(provider.Item) (string, error) { return "", nil }
func (s stubProvider) Terms(provider.Item) ([]string, error) {
	return []string{"x"}, nil
}
func (s stubProvider) Iterator(context.Context) (provider.Iterator, error) { return nil, nil }

func TestNewRequiresMaxResults(t *testing.T) {
	if _, err := New(Defaults{}); err != ErrMissingMaxResults {
		t.Fatalf("New(zero Defaults) err = %v, want ErrMissingMaxResults", err)
	}
}

func TestRegisterAndProviders(t *testing.T) {
	r, err := New(Defaults{MaxResults: 10})
	if err != nil {
		t.Fatal(err)
	}
	p := stubProvider{name: "stocks"}
	r.Register("finance", p)
	r.Register("finance", p) // duplicate registration is a no-op

	providers := r.Providers("finance")
	if len(providers) != 1 {
		t.Fatalf("Providers(finance) = %v, want 1 entry", providers)
	}
	if len(r.Providers("missing")) != 0 {
		t.Fatal("Providers(missing) should be empty")
	}
}

func TestResolveThreeTier(t *testing.T) {
	r, err := New(Defaults{MaxResults: 10, MinLetters: 1})
	if err != nil {
		t.Fatal(err)
	}

	resolved := r.Resolve("finance", "stocks")
	if resolved.MaxResults != 10 {
		t.Fatalf("global layer: MaxResults = %d, want 10", resolved.MaxResults)
	}

	providerMax := 5
	r.SetProviderSettings("stocks", Override{MaxResults: &providerMax})
	resolved = r.Resolve("finance", "stocks")
	if resolved.MaxResults != 5 {
		t.Fatalf("provider layer: MaxResults = %d, want 5", resolved.MaxResults)
	}

	acMax := 3
	r.SetAutocompleterProviderSettings("finance", "stocks", Override{MaxResults: &acMax})
	resolved = r.Resolve("finance", "stocks")
	if resolved.MaxResults != 3 {
		t.Fatalf("ac+provider layer: MaxResults = %d, want 3", resolved.MaxResults)
	}

	// A different autocompleter using the same provider still only sees
	// the provider-level override, not the ac+provider one.
	resolved = r.Resolve("other", "stocks")
	if resolved.MaxResults != 5 {
		t.Fatalf("unrelated autocompleter: MaxResults = %d, want 5", resolved.MaxResults)
	}
}

func TestUnregister(t *testing.T) {
	r, err := New(Defaults{MaxResults: 10})
	if err != nil {
		t.Fatal(err)
	}
	r.Register("finance", stubProvider{name: "stocks"})
	r.Unregister("finance", "stocks")
	if len(r.Providers("finance")) != 0 {
		t.Fatal("expected provider to be removed")
	}
}

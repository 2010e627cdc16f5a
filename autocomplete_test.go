package autocompleter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/remiges-tech/autocompleter/provider"
	"github.com/remiges-tech/autocompleter/registry"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := NewConfig(mr.Addr())
	cfg.KeyRoot = "djac.test"
	cfg.Defaults.MaxResults = 10

	eng, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func stockProvider() *provider.DictProvider {
	return provider.NewDictProvider("stocks", []provider.DictEntry{
		{ID: "AAPL", Term: "Apple Inc", Score: 10, Data: map[string]any{"id": "AAPL"}},
		{ID: "MSFT", Term: "Microsoft Corp", Score: 8, Data: map[string]any{"id": "MSFT"}},
	})
}

func ids(t *testing.T, payloads []map[string]any) []string {
	t.Helper()
	out := make([]string, len(payloads))
	for i, p := range payloads {
		s, _ := p["id"].(string)
		out[i] = s
	}
	return out
}

func TestEngineStoreAllAndSuggest(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	p := stockProvider()

	if err := eng.RegisterProvider("finance", p); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if err := eng.StoreAll(ctx, "finance", p, true); err != nil {
		t.Fatalf("StoreAll: %v", err)
	}

	res, err := eng.Suggest(ctx, "finance", "app", nil)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	got := ids(t, res.ByProvider["stocks"])
	if len(got) != 1 || got[0] != "AAPL" {
		t.Fatalf("Suggest(\"app\") = %v, want [AAPL]", got)
	}
}

func TestEngineRegisterProviderValidation(t *testing.T) {
	eng := newTestEngine(t)

	if err := eng.RegisterProvider("", stockProvider()); err != ErrEmptyAutocompleterName {
		t.Errorf("RegisterProvider empty name = %v, want ErrEmptyAutocompleterName", err)
	}
	if err := eng.RegisterProvider("finance", nil); err != ErrNilProvider {
		t.Errorf("RegisterProvider nil provider = %v, want ErrNilProvider", err)
	}
}

func TestEngineRemoveAllClearsIndex(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	p := stockProvider()

	if err := eng.RegisterProvider("finance", p); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if err := eng.StoreAll(ctx, "finance", p, true); err != nil {
		t.Fatalf("StoreAll: %v", err)
	}
	if err := eng.RemoveAll(ctx, "finance", p.Name()); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}

	res, err := eng.Suggest(ctx, "finance", "app", nil)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(res.ByProvider["stocks"]) != 0 {
		t.Fatalf("Suggest after RemoveAll = %v, want empty", res.ByProvider["stocks"])
	}
}

func TestEngineSettingsOverrides(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	p := stockProvider()

	eng.SetAutocompleterProviderSettings("finance", p.Name(), registry.Override{
		MinLetters: intPtr(50),
	})

	if err := eng.RegisterProvider("finance", p); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if err := eng.StoreAll(ctx, "finance", p, true); err != nil {
		t.Fatalf("StoreAll: %v", err)
	}

	res, err := eng.Suggest(ctx, "finance", "app", nil)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(res.ByProvider["stocks"]) != 0 {
		t.Fatalf("expected provider skipped by MinLetters override, got %v", res.ByProvider["stocks"])
	}
}

func TestEngineGetProviderResult(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	p := stockProvider()

	if err := eng.RegisterProvider("finance", p); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if err := eng.StoreAll(ctx, "finance", p, true); err != nil {
		t.Fatalf("StoreAll: %v", err)
	}

	data, err := eng.GetProviderResult(ctx, "finance", "stocks", "AAPL")
	if err != nil {
		t.Fatalf("GetProviderResult: %v", err)
	}
	if data["id"] != "AAPL" {
		t.Fatalf("GetProviderResult = %v, want id=AAPL", data)
	}

	data, err = eng.GetProviderResult(ctx, "finance", "stocks", "NOPE")
	if err != nil {
		t.Fatalf("GetProviderResult unknown id: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("GetProviderResult unknown id = %v, want empty", data)
	}
}

func TestEngineCacheTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := NewConfig(mr.Addr())
	cfg.KeyRoot = "djac.test"
	cfg.Defaults.MaxResults = 10
	cfg.Defaults.CacheTimeout = time.Minute

	eng, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close()

	ctx := context.Background()
	p := stockProvider()
	if err := eng.RegisterProvider("finance", p); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if err := eng.StoreAll(ctx, "finance", p, true); err != nil {
		t.Fatalf("StoreAll: %v", err)
	}

	if _, err := eng.Suggest(ctx, "finance", "app", nil); err != nil {
		t.Fatalf("Suggest (populate cache): %v", err)
	}

	// Remove AAPL without going through StoreAll/RemoveAll's cache purge:
	// the now-stale cache entry should still answer the next Suggest call
	// within its TTL.
	if err := eng.RemoveByID(ctx, "stocks", "AAPL"); err != nil {
		t.Fatalf("RemoveByID: %v", err)
	}

	res, err := eng.Suggest(ctx, "finance", "app", nil)
	if err != nil {
		t.Fatalf("Suggest (cached): %v", err)
	}
	if len(res.ByProvider["stocks"]) != 1 {
		t.Fatalf("expected stale cached result to still contain AAPL, got %v", res.ByProvider["stocks"])
	}
}

func intPtr(n int) *int { return &n }

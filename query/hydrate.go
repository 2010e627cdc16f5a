package query

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/remiges-tech/autocompleter/provider"
)

// hydrate fetches each state's ids against its provider's id->payload
// hash, preserving order and dropping ids whose payload is missing
// (stale postings left behind by a race between concurrent store/remove
// calls; §5 tolerates this).
func (e *Engine) hydrate(ctx context.Context, states []*providerState) (map[string][]map[string]any, error) {
	out := make(map[string][]map[string]any, len(states))
	for _, s := range states {
		if len(s.ids) == 0 {
			out[s.name] = []map[string]any{}
			continue
		}

		raws, err := e.rdb.HMGet(ctx, e.schema.Payload(s.name), s.ids...).Result()
		if err != nil {
			return nil, fmt.Errorf("hydrate provider %q: %w", s.name, err)
		}

		payloads := make([]map[string]any, 0, len(s.ids))
		for _, raw := range raws {
			str, ok := raw.(string)
			if !ok || str == "" {
				continue
			}
			payload, err := decodePayload(str)
			if err != nil {
				return nil, fmt.Errorf("decode payload for provider %q: %w", s.name, err)
			}
			payloads = append(payloads, payload)
		}
		out[s.name] = payloads
	}
	return out, nil
}

func decodePayload(raw string) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// assembleResult wraps per-provider payload lists into a Result,
// flattening to a single list when flatten is set and exactly one
// provider is registered for this autocompleter.
func (e *Engine) assembleResult(byProvider map[string][]map[string]any, providers []provider.Provider, flatten bool) Result {
	if flatten && len(providers) == 1 {
		return Result{Flattened: byProvider[providers[0].Name()]}
	}
	return Result{ByProvider: byProvider}
}

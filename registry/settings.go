package registry

import (
	"regexp"
	"time"

	"github.com/remiges-tech/autocompleter/normalize"
	"github.com/remiges-tech/autocompleter/provider"
)

// Defaults holds the global (lowest-priority) settings layer. Every field
// is required to have a usable value; MaxResults in particular is a
// configuration error if left at zero (spec: "missing MAX_RESULTS...
// fatal at startup").
type Defaults struct {
	MaxResults               int
	MinLetters               int
	MaxExactMatchWords       int
	MoveExactMatchesToTop    bool
	CacheTimeout             time.Duration
	JoinChars                []rune
	CharacterFilter          *regexp.Regexp
	FlattenSingleTypeResults bool
}

// withNormalizeDefaults fills in the normalizer-related fields from
// normalize's own defaults when left unset.
func (d Defaults) withNormalizeDefaults() Defaults {
	if d.JoinChars == nil {
		d.JoinChars = append([]rune(nil), normalize.DefaultJoinChars...)
	}
	if d.CharacterFilter == nil {
		d.CharacterFilter = normalize.DefaultCharacterFilter
	}
	if d.MinLetters <= 0 {
		d.MinLetters = 1
	}
	return d
}

// Override is one settings layer (provider, or autocompleter+provider).
// Every field is a pointer (or, for JoinChars, a nil-means-unset slice)
// so Resolve can tell "not set at this layer" from "set to the zero
// value".
type Override struct {
	MaxResults               *int
	MinLetters               *int
	MaxExactMatchWords       *int
	MoveExactMatchesToTop    *bool
	CacheTimeout             *time.Duration
	JoinChars                []rune
	CharacterFilter          *regexp.Regexp
	FlattenSingleTypeResults *bool
}

// Resolved is a fully-materialized settings snapshot for one
// (autocompleter, provider) pair.
type Resolved struct {
	MaxResults               int
	MinLetters               int
	MaxExactMatchWords       int
	MoveExactMatchesToTop    bool
	CacheTimeout             time.Duration
	JoinChars                []rune
	CharacterFilter          *regexp.Regexp
	FlattenSingleTypeResults bool
}

// NormalizeConfig projects the normalizer-relevant fields of Resolved
// into a normalize.Config.
func (r Resolved) NormalizeConfig() normalize.Config {
	return normalize.Config{
		JoinChars:       r.JoinChars,
		CharacterFilter: r.CharacterFilter,
	}
}

// WithProviderFallback fills MaxExactMatchWords, MinLetters, and
// MaxResults from p's own declared values when the resolved settings
// chain left them at zero. A provider's declared attributes act as its
// own baseline; an explicit override at any settings layer still wins,
// since resolve() already ran before this is called.
func (r Resolved) WithProviderFallback(p provider.Provider) Resolved {
	if r.MaxExactMatchWords == 0 {
		r.MaxExactMatchWords = p.MaxExactMatchWords()
	}
	if r.MinLetters == 0 {
		r.MinLetters = p.MinLetters()
	}
	if r.MaxResults == 0 {
		r.MaxResults = p.MaxResults()
	}
	return r
}

// resolve applies layers in increasing priority order: global, provider,
// autocompleter+provider. Later, non-nil fields win.
func resolve(global Defaults, layers ...Override) Resolved {
	global = global.withNormalizeDefaults()
	out := Resolved{
		MaxResults:               global.MaxResults,
		MinLetters:               global.MinLetters,
		MaxExactMatchWords:       global.MaxExactMatchWords,
		MoveExactMatchesToTop:    global.MoveExactMatchesToTop,
		CacheTimeout:             global.CacheTimeout,
		JoinChars:                global.JoinChars,
		CharacterFilter:          global.CharacterFilter,
		FlattenSingleTypeResults: global.FlattenSingleTypeResults,
	}
	for _, layer := range layers {
		if layer.MaxResults != nil {
			out.MaxResults = *layer.MaxResults
		}
		if layer.MinLetters != nil {
			out.MinLetters = *layer.MinLetters
		}
		if layer.MaxExactMatchWords != nil {
			out.MaxExactMatchWords = *layer.MaxExactMatchWords
		}
		if layer.MoveExactMatchesToTop != nil {
			out.MoveExactMatchesToTop = *layer.MoveExactMatchesToTop
		}
		if layer.CacheTimeout != nil {
			out.CacheTimeout = *layer.CacheTimeout
		}
		if layer.JoinChars != nil {
			out.JoinChars = layer.JoinChars
		}
		if layer.CharacterFilter != nil {
			out.CharacterFilter = layer.CharacterFilter
		}
		if layer.FlattenSingleTypeResults != nil {
			out.FlattenSingleTypeResults = *layer.FlattenSingleTypeResults
		}
	}
	return out
}

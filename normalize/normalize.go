// Package normalize turns raw, user- or provider-supplied text into the
// canonical forms used as index and query keys by the autocompleter core.
//
// The pipeline is deterministic and order-sensitive: decode/lowercase,
// strip diacritics, fold "&" to "and", trim, expand join-character
// variants, drop disallowed characters, then collapse whitespace. See
// Variations for the full algorithm.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultJoinChars are the characters that may be read either as a space
// or as nothing when generating term variations (e.g. "U/S-A").
var DefaultJoinChars = []rune{'-', '/'}

// DefaultCharacterFilter matches every rune that is dropped during
// canonicalization; the default keeps lowercase letters, digits,
// underscore, and space.
var DefaultCharacterFilter = regexp.MustCompile(`[^a-z0-9_ ]`)

// Config parameterizes the normalization pipeline. A provider or
// autocompleter may override JoinChars and CharacterFilter via the
// settings resolver. A nil JoinChars or CharacterFilter falls back to
// DefaultJoinChars or DefaultCharacterFilter, so the zero value behaves
// like NewConfig().
type Config struct {
	JoinChars       []rune
	CharacterFilter *regexp.Regexp
}

// NewConfig returns a Config with the documented defaults.
func NewConfig() Config {
	return Config{
		JoinChars:       append([]rune(nil), DefaultJoinChars...),
		CharacterFilter: DefaultCharacterFilter,
	}
}

var diacriticStripper = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFKC,
)

// stripDiacritics applies compatibility decomposition and discards
// combining marks, the Go equivalent of the spec's
// "NFKD then encode ASCII, ignoring non-ASCII" step. Runes that still
// aren't ASCII after decomposition (CJK, emoji, ...) are dropped outright,
// matching the original "encode('ASCII', 'ignore')" behavior.
func stripDiacritics(s string) string {
	folded, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r <= unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// canonicalBase runs steps 1-4 of the pipeline: decode/lowercase, strip
// diacritics, fold "&", and trim outer whitespace. The result is the
// starting point for join-character variant generation.
func canonicalBase(term string) string {
	term = strings.ToLower(term)
	term = stripDiacritics(term)
	term = strings.ReplaceAll(term, "&", "and")
	return strings.TrimSpace(term)
}

// finish runs steps 5-6: drop characters matching the configured removal
// regex, then collapse whitespace runs to single spaces.
func finish(term string, cfg Config) string {
	filter := cfg.CharacterFilter
	if filter == nil {
		filter = DefaultCharacterFilter
	}
	term = filter.ReplaceAllString(term, "")
	term = whitespaceRun.ReplaceAllString(term, " ")
	return strings.TrimSpace(term)
}

// Variations produces the set of normalized term variations for term: the
// canonical form, plus one variant per combination of join-character
// interpretations (read as a space, or dropped entirely), fully
// canonicalized and de-duplicated, preserving first-occurrence order.
// Blank variants are dropped. Input with no non-blank variant yields nil.
func Variations(term string, cfg Config) []string {
	base := canonicalBase(term)
	if base == "" {
		return nil
	}

	joinChars := cfg.JoinChars
	if joinChars == nil {
		joinChars = DefaultJoinChars
	}

	present := presentJoinChars(base, joinChars)
	rawVariants := expandJoinChars(base, present)

	seen := make(map[string]bool, len(rawVariants))
	out := make([]string, 0, len(rawVariants))
	for _, v := range rawVariants {
		v = finish(v, cfg)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// presentJoinChars returns the subset of joinChars that actually occur in
// base, in the order they were configured (order only matters for
// deterministic bit-assignment below, not for the resulting set).
func presentJoinChars(base string, joinChars []rune) []rune {
	present := make([]rune, 0, len(joinChars))
	for _, jc := range joinChars {
		if strings.ContainsRune(base, jc) {
			present = append(present, jc)
		}
	}
	return present
}

// expandJoinChars enumerates every interpretation of the present join
// characters: each may independently become a space or be dropped. There
// are 2^len(present) combinations; bit i of the combination index selects
// the interpretation of present[i] (0 = space, 1 = dropped).
func expandJoinChars(base string, present []rune) []string {
	if len(present) == 0 {
		return []string{base}
	}

	combos := 1 << uint(len(present))
	variants := make([]string, 0, combos)
	for mask := 0; mask < combos; mask++ {
		replacer := make([]string, 0, len(present)*2)
		for i, jc := range present {
			target := " "
			if mask&(1<<uint(i)) != 0 {
				target = ""
			}
			replacer = append(replacer, string(jc), target)
		}
		variants = append(variants, strings.NewReplacer(replacer...).Replace(base))
	}
	return variants
}

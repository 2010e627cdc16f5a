package normalize

import "strings"

// wordRange is a half-open [start, end) range of word indices within a
// term that has already been produced by alias substitution. Tracking
// these (rather than the alias graph) is what prevents double-aliasing
// chains like California -> CA -> Canada; see ExpandAliases.
type wordRange struct {
	start, end int
}

// overlaps reports whether [i, j) shares any word position with r.
func (r wordRange) overlaps(i, j int) bool {
	return r.start < j && i < r.end
}

// BuildAliasMap normalizes and cross-expands raw phrase-alias dictionaries
// into a single normalized phrase -> replacement-phrases map, ready for
// ExpandAliases.
//
// twoWay entries {x: [y...]} map every normalized variant of x to every
// normalized variant of y and back, and also map every normalized variant
// of y to every *other* normalized variant of y, so that join-character
// variants of the replacement stay reachable from each other.
//
// oneWay entries {x: [y...]} map every normalized variant of x to every
// normalized variant of y, with no reverse edges.
func BuildAliasMap(twoWay, oneWay map[string][]string, cfg Config) map[string][]string {
	out := make(map[string][]string)

	for phrase, replacements := range twoWay {
		vx := Variations(phrase, cfg)
		vy := normalizeAll(replacements, cfg)

		for _, x := range vx {
			for _, y := range vy {
				appendUnique(out, x, y)
				appendUnique(out, y, x)
			}
		}
		for _, y1 := range vy {
			for _, y2 := range vy {
				if y1 != y2 {
					appendUnique(out, y1, y2)
				}
			}
		}
	}

	for phrase, replacements := range oneWay {
		vx := Variations(phrase, cfg)
		vy := normalizeAll(replacements, cfg)

		for _, x := range vx {
			for _, y := range vy {
				appendUnique(out, x, y)
			}
		}
	}

	return out
}

func normalizeAll(phrases []string, cfg Config) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range phrases {
		for _, v := range Variations(p, cfg) {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

func appendUnique(m map[string][]string, key, value string) {
	if key == value {
		return
	}
	for _, v := range m[key] {
		if v == value {
			return
		}
	}
	m[key] = append(m[key], value)
}

// aliasWorkItem is one pending term in ExpandAliases' work stack, tagged
// with the word ranges already consumed by aliasing on the path that
// produced it.
type aliasWorkItem struct {
	term   string
	ranges []wordRange
}

// ExpandAliases returns every term reachable from term by repeatedly
// substituting contiguous sub-phrases found as keys in aliasMap, without
// ever re-aliasing a fragment that was itself produced by a prior
// substitution. The result always includes term itself.
//
// Termination is guaranteed because every derived term carries strictly
// more consumed ranges than its parent, and the number of distinct ranges
// for an n-word term is bounded by O(n^2).
func ExpandAliases(term string, aliasMap map[string][]string) []string {
	if len(aliasMap) == 0 {
		return []string{term}
	}

	seen := map[string]bool{term: true}
	stack := []aliasWorkItem{{term: term}}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		words := strings.Fields(cur.term)
		n := len(words)
		for i := 0; i < n; i++ {
			for j := i + 1; j <= n; j++ {
				sub := strings.Join(words[i:j], " ")
				replacements, ok := aliasMap[sub]
				if !ok {
					continue
				}
				if rangeOverlapsAny(cur.ranges, i, j) {
					continue
				}
				for _, repl := range replacements {
					replWords := strings.Fields(repl)
					next := spliceWords(words, i, j, replWords)
					if seen[next] {
						continue
					}
					seen[next] = true
					stack = append(stack, aliasWorkItem{
						term:   next,
						ranges: shiftRanges(cur.ranges, i, j, len(replWords)),
					})
				}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	return out
}

func rangeOverlapsAny(ranges []wordRange, i, j int) bool {
	for _, r := range ranges {
		if r.overlaps(i, j) {
			return true
		}
	}
	return false
}

func spliceWords(words []string, i, j int, replacement []string) string {
	out := make([]string, 0, len(words)-(j-i)+len(replacement))
	out = append(out, words[:i]...)
	out = append(out, replacement...)
	out = append(out, words[j:]...)
	return strings.Join(out, " ")
}

// shiftRanges translates the ancestor ranges into the coordinate system of
// the newly-spliced term and appends the range just consumed by this
// substitution. Ranges entirely before i are unaffected; ranges entirely
// at or after j shift by the word-count delta introduced by the
// replacement. Ranges can never straddle [i, j) because candidates
// overlapping an existing range are rejected before splicing.
func shiftRanges(ranges []wordRange, i, j, replacementLen int) []wordRange {
	delta := replacementLen - (j - i)
	out := make([]wordRange, 0, len(ranges)+1)
	for _, r := range ranges {
		switch {
		case r.end <= i:
			out = append(out, r)
		case r.start >= j:
			out = append(out, wordRange{r.start + delta, r.end + delta})
		}
	}
	out = append(out, wordRange{i, i + replacementLen})
	return out
}

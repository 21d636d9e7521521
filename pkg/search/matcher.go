// Package search finds keywords in a page's flattened text and turns hits into highlight
// boxes.
//
// Matching tries, in order: the exact keyword, the keyword with Chinese/English punctuation
// swapped either way, and a same-length window scan bounded by edit distance. Keywords of
// two runes or fewer stop after the punctuation step. The scan threshold is zero unless
// fuzzy matching is enabled, in which case it is floor(cbrt(len(keyword))).
package search

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil/metrics"
	"golang.org/x/text/width"
)

// MatchResult is one hit in a page's text. Index and Length are rune offsets.
type MatchResult struct {
	Index           int    `json:"index"`
	Length          int    `json:"length"`
	Origin          string `json:"origin"` // the text actually matched
	MinEditDistance int    `json:"min_edit_distance"`
}

// End returns the rune offset just past the match
func (r MatchResult) End() int { return r.Index + r.Length }

// MinFuzzyLength is the shortest keyword, in runes, that may reach the edit-distance scan
const MinFuzzyLength = 3

// symbolPairs maps ASCII punctuation to its full-width Chinese counterpart
var symbolPairs = [][2]string{
	{"(", "（"},
	{")", "）"},
	{".", "。"},
	{";", "；"},
	{"[", "【"},
	{"]", "】"},
	{",", "，"},
	{":", "："},
}

var (
	toChinese = newReplacer(false)
	toEnglish = newReplacer(true)
)

func newReplacer(reverse bool) *strings.Replacer {
	args := make([]string, 0, len(symbolPairs)*2)
	for _, p := range symbolPairs {
		if reverse {
			args = append(args, p[1], p[0])
		} else {
			args = append(args, p[0], p[1])
		}
	}
	return strings.NewReplacer(args...)
}

// ToChinese swaps ASCII punctuation for full-width Chinese punctuation
func ToChinese(s string) string {
	return toChinese.Replace(s)
}

// ToEnglish swaps Chinese punctuation for ASCII and folds remaining full-width forms
func ToEnglish(s string) string {
	return width.Fold.String(toEnglish.Replace(s))
}

// Variants returns the punctuation-swapped forms of keyword that differ from it: every pair
// swapped at once in either direction first, then each pair on its own in either direction,
// so keywords that mix widths still find text that mixes them differently.
func Variants(keyword string) []string {
	var out []string
	add := func(v string) {
		if v == keyword {
			return
		}
		for _, o := range out {
			if o == v {
				return
			}
		}
		out = append(out, v)
	}
	add(ToChinese(keyword))
	add(ToEnglish(keyword))
	for _, p := range symbolPairs {
		add(strings.ReplaceAll(keyword, p[0], p[1]))
		add(strings.ReplaceAll(keyword, p[1], p[0]))
	}
	return out
}

// Matcher runs single searches. The zero value uses a zero edit-distance threshold.
type Matcher struct {
	Fuzzy bool

	// editScans counts window scans, for tests
	editScans int
}

var levenshtein = func() *metrics.Levenshtein {
	m := metrics.NewLevenshtein()
	m.CaseSensitive = true
	return m
}()

// Search finds keyword in text starting at rune offset start
func Search(text, keyword string, start int) (MatchResult, bool) {
	var m Matcher
	return m.Search([]rune(text), keyword, start)
}

// Search finds keyword in text starting at rune offset start
func (m *Matcher) Search(text []rune, keyword string, start int) (MatchResult, bool) {
	kw := []rune(keyword)
	if len(kw) == 0 || start < 0 || start >= len(text) {
		return MatchResult{}, false
	}

	if i := indexRunes(text, kw, start); i >= 0 {
		return MatchResult{Index: i, Length: len(kw), Origin: keyword}, true
	}
	for _, v := range Variants(keyword) {
		vr := []rune(v)
		if i := indexRunes(text, vr, start); i >= 0 {
			return MatchResult{Index: i, Length: len(vr), Origin: string(text[i : i+len(vr)])}, true
		}
	}
	if len(kw) < MinFuzzyLength {
		return MatchResult{}, false
	}
	return m.scan(text, keyword, len(kw), start)
}

// Threshold is the largest edit distance the window scan accepts for a keyword of n runes
func (m *Matcher) Threshold(n int) int {
	if !m.Fuzzy {
		return 0
	}
	return int(math.Floor(math.Cbrt(float64(n))))
}

// scan slides a window of n runes from start and keeps the closest window within threshold.
// Ties go to the earliest window.
func (m *Matcher) scan(text []rune, keyword string, n, start int) (MatchResult, bool) {
	m.editScans++
	threshold := m.Threshold(n)
	best := MatchResult{MinEditDistance: -1}
	for i := start; i+n <= len(text); i++ {
		window := string(text[i : i+n])
		d := levenshtein.Distance(window, keyword)
		if d > threshold {
			continue
		}
		if best.MinEditDistance < 0 || d < best.MinEditDistance {
			best = MatchResult{Index: i, Length: n, Origin: window, MinEditDistance: d}
			if d == 0 {
				break
			}
		}
	}
	if best.MinEditDistance < 0 {
		return MatchResult{}, false
	}
	return best, true
}

// FindAll returns every non-overlapping hit of keyword in text, in order
func (m *Matcher) FindAll(text []rune, keyword string) []MatchResult {
	var out []MatchResult
	for pos := 0; pos < len(text); {
		r, ok := m.Search(text, keyword, pos)
		if !ok {
			break
		}
		out = append(out, r)
		pos = r.End()
		if r.Length == 0 {
			pos++
		}
	}
	return out
}

func indexRunes(text, kw []rune, start int) int {
	if len(kw) == 0 || len(kw) > len(text)-start {
		return -1
	}
	i := strings.Index(string(text[start:]), string(kw))
	if i < 0 {
		return -1
	}
	return start + utf8.RuneCountInString(string(text[start:])[:i])
}

package resolver

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// keywordPattern matches custom-object names (ending in __c) and
// capitalized words of at least three letters.
var keywordPattern = regexp.MustCompile(`\b([A-Z][a-zA-Z_]*__c|[A-Z][a-zA-Z]{2,})\b`)

// stopwords are capitalized English words that are never entity names.
var stopwords = map[string]bool{
	"As": true, "I": true, "When": true, "The": true, "A": true,
	"If": true, "But": true, "Only": true, "However": true,
}

// KeywordCandidates returns the sorted, deduplicated entity-like tokens of
// text.
func KeywordCandidates(text string) []string {
	if text == "" {
		return []string{}
	}
	seen := make(map[string]bool)
	for _, m := range keywordPattern.FindAllStringSubmatch(text, -1) {
		tok := m[1]
		if stopwords[tok] {
			continue
		}
		seen[tok] = true
	}
	return sortedKeys(seen)
}

// Combine unions candidate lists, drops blanks and duplicates, and sorts.
func Combine(lists ...[]string) []string {
	seen := make(map[string]bool)
	for _, l := range lists {
		for _, s := range l {
			if s != "" {
				seen[s] = true
			}
		}
	}
	return sortedKeys(seen)
}

// MatchEntities returns every name in master that contains some candidate
// as a case-insensitive substring, sorted. Matching is deliberately loose:
// "acc" matches both "Account" and "Account__c".
func MatchEntities(candidates, master []string) []string {
	fold := cases.Fold()

	foldedMaster := make([]string, len(master))
	for i, name := range master {
		foldedMaster[i] = fold.String(name)
	}

	matched := make(map[string]bool)
	for _, c := range candidates {
		fc := fold.String(c)
		if fc == "" {
			continue
		}
		for i, fm := range foldedMaster {
			if strings.Contains(fm, fc) {
				matched[master[i]] = true
			}
		}
	}
	return sortedKeys(matched)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

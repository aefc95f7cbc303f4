package extract

import (
	"regexp"
	"sort"
)

const monthNames = `(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|June?|July?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)`

var (
	numericDateRe = regexp.MustCompile(`\b(?:0?[1-9]|1[0-2])[/-](?:0?[1-9]|[12]\d|3[01])[/-](?:\d{4}|\d{2})\b`)
	longDateRe    = regexp.MustCompile(`\b` + monthNames + `\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b`)
	dayFirstRe    = regexp.MustCompile(`\b\d{1,2}(?:st|nd|rd|th)?\s+(?:day\s+of\s+)?` + monthNames + `,?\s+\d{4}\b`)
	isoDateRe     = regexp.MustCompile(`\b\d{4}-(?:0[1-9]|1[0-2])-(?:0[1-9]|[12]\d|3[01])\b`)

	symbolAmountRe = regexp.MustCompile(`(?:[$€£]|\b(?:USD|EUR|GBP)\s?)\s?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?(?:\s+(?:million|billion|thousand))?\b`)
	wordAmountRe   = regexp.MustCompile(`\b(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?\s+(?i:dollars|usd|euros?|eur|pounds(?:\s+sterling)?|gbp)\b`)
)

// Dates returns date expressions verbatim in order of appearance.
// Overlapping forms keep the earliest, longest match.
func Dates(text string) []string {
	hits := findAll(text, numericDateRe, longDateRe, dayFirstRe, isoDateRe)
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return hits[i].end > hits[j].end
	})

	kept := hits[:0]
	lastEnd := -1
	for _, h := range hits {
		if h.pos < lastEnd {
			continue
		}
		kept = append(kept, h)
		lastEnd = h.end
	}
	return ordered(kept)
}

// Amounts returns monetary amounts verbatim in order of appearance.
// Symbol-prefixed and currency-word forms are reported independently.
func Amounts(text string) []string {
	return ordered(findAll(text, symbolAmountRe, wordAmountRe))
}

// Package extract pulls structural metadata out of legal document text.
package extract

import (
	"regexp"
	"sort"

	"github.com/opensource-finance/covenant/internal/domain"
)

// Extractor derives document type, parties, dates, amounts and jurisdiction.
// The zero value is ready to use and safe for concurrent use.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract never fails: categories with no evidence come back empty,
// "other" or "unknown".
func (e *Extractor) Extract(text string) domain.ExtractedLegalMetadata {
	return domain.ExtractedLegalMetadata{
		DocumentType: Classify(text).Type,
		Parties:      Parties(text),
		Dates:        Dates(text),
		Amounts:      Amounts(text),
		Jurisdiction: Jurisdiction(text),
	}
}

// ExtractLegalMetadata is a convenience wrapper around Extractor.Extract.
func ExtractLegalMetadata(text string) domain.ExtractedLegalMetadata {
	return New().Extract(text)
}

type hit struct {
	pos  int
	end  int
	text string
}

// ordered sorts hits by position and drops exact duplicates, keeping the first.
func ordered(hits []hit) []string {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	seen := make(map[string]bool, len(hits))
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.text == "" || seen[h.text] {
			continue
		}
		seen[h.text] = true
		out = append(out, h.text)
	}
	return out
}

func findAll(text string, res ...*regexp.Regexp) []hit {
	var hits []hit
	for _, re := range res {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			hits = append(hits, hit{pos: loc[0], end: loc[1], text: text[loc[0]:loc[1]]})
		}
	}
	return hits
}

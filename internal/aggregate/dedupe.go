package aggregate

import (
	"strings"
	"unicode"

	"github.com/opensource-finance/covenant/internal/domain"
)

// Similarity controls near-duplicate detection. Two findings in the same
// category are duplicates when they come from the same pattern, share a
// headline, one normalized description contains the other, or their token
// overlap coefficient reaches Threshold with at least MinShared tokens in common.
type Similarity struct {
	Threshold float64
	MinShared int
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true, "to": true,
	"in": true, "on": true, "for": true, "with": true, "by": true, "at": true, "from": true,
	"is": true, "are": true, "be": true, "been": true, "was": true, "were": true, "has": true,
	"have": true, "had": true, "this": true, "that": true, "these": true, "those": true,
	"it": true, "its": true, "all": true, "any": true, "each": true, "may": true, "can": true,
	"shall": true, "will": true, "must": true, "you": true, "your": true, "we": true,
	"our": true, "their": true, "they": true, "as": true, "such": true, "which": true,
	"who": true, "if": true, "so": true, "than": true, "then": true, "upon": true,
	"document": true, "agreement": true, "clause": true, "party": true, "parties": true,
}

var suffixes = []string{"ically", "ation", "ities", "ness", "ment", "ally", "ing", "ies", "ied", "ity", "ed", "al", "es", "ly", "s"}

type signature struct {
	category   domain.Category
	patternID  string
	headline   string
	normalized string
	tokens     map[string]bool
}

func newSignature(r *domain.Risk) signature {
	tokens := normalize(r.Description)
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return signature{
		category:   r.Category,
		patternID:  r.PatternID,
		headline:   strings.Join(normalize(headline(r.Description)), " "),
		normalized: strings.Join(tokens, " "),
		tokens:     set,
	}
}

// normalize lower-cases, strips punctuation, drops stop words and stems.
func normalize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if stopWords[f] {
			continue
		}
		out = append(out, stem(f))
	}
	return out
}

func stem(token string) string {
	for _, suf := range suffixes {
		if len(token) > len(suf)+3 && strings.HasSuffix(token, suf) {
			return strings.TrimSuffix(token, suf)
		}
	}
	return token
}

func (s Similarity) duplicate(a, b *signature) bool {
	if a.category != b.category {
		return false
	}
	if a.patternID != "" && a.patternID == b.patternID {
		return true
	}
	if a.headline != "" && a.headline == b.headline {
		return true
	}

	shorter, longer := a, b
	if len(shorter.tokens) > len(longer.tokens) {
		shorter, longer = longer, shorter
	}
	if len(shorter.tokens) == 0 {
		return false
	}
	if len(shorter.tokens) >= s.MinShared && strings.Contains(longer.normalized, shorter.normalized) {
		return true
	}

	shared := 0
	for t := range shorter.tokens {
		if longer.tokens[t] {
			shared++
		}
	}
	return shared >= s.MinShared && float64(shared)/float64(len(shorter.tokens)) >= s.Threshold
}

// Deduplicate collapses near-duplicate findings. The first finding of each
// concept is kept, raised to the highest severity among its duplicates, and
// inherits a clause reference and recommendation if it had none.
// The input is not modified.
func Deduplicate(risks []domain.Risk, sim Similarity) []domain.Risk {
	out := make([]domain.Risk, 0, len(risks))
	sigs := make([]signature, 0, len(risks))

	for i := range risks {
		r := risks[i]
		sig := newSignature(&r)

		dup := -1
		for j := range sigs {
			if sim.duplicate(&sigs[j], &sig) {
				dup = j
				break
			}
		}
		if dup < 0 {
			out = append(out, r)
			sigs = append(sigs, sig)
			continue
		}

		kept := &out[dup]
		kept.Severity = domain.MaxSeverity(kept.Severity, r.Severity)
		if kept.AffectedClause == "" && r.AffectedClause != "" {
			kept.AffectedClause = r.AffectedClause
			kept.Location = r.Location
		}
		if kept.Recommendation == "" {
			kept.Recommendation = r.Recommendation
		}
	}
	return out
}

package extract

import (
	"regexp"
	"strings"
)

const (
	roleWords = `landlord|tenant|lessor|lessee|borrower|lender|buyer|seller|licensor|licensee|employer|employee|contractor|client|customer|company|party`
	nameToken = `[A-Z][A-Za-z'&\-]*\.?`
	partyName = `(` + nameToken + `(?:[ \t]+` + nameToken + `){0,4})`
)

var (
	roleMarkerRe = regexp.MustCompile(`(?i:\b(?:` + roleWords + `)s?)\s*[:,]?\s+` + partyName)
	betweenRe    = regexp.MustCompile(`(?i:\bbetween\s+(?:the\s+)?(?:(?:` + roleWords + `)\s+)?)` + partyName +
		`(?:\s*,[^,]{0,80},)?\s+(?i:(?:and|&)\s+(?:the\s+)?(?:(?:` + roleWords + `)\s+)?)` + partyName)
	definedRoleRe = regexp.MustCompile(partyName + `\s*\((?i:the\s+|hereinafter\s+(?:referred\s+to\s+as\s+|called\s+)?)?["“](?i:` + roleWords + `)["”]\)`)
)

var corporateSuffixes = map[string]bool{
	"Inc.": true, "Corp.": true, "Ltd.": true, "Co.": true, "L.L.C.": true, "Jr.": true, "Sr.": true,
}

// nonNameTokens are capitalized words that are never part of a party name.
var nonNameTokens = map[string]bool{
	"The": true, "This": true, "That": true, "These": true, "Such": true, "Said": true,
	"Any": true, "Each": true, "All": true, "Shall": true, "Will": true, "May": true,
	"Must": true, "Agrees": true, "Agree": true, "Hereby": true, "Is": true, "Are": true,
	"And": true, "Or": true, "Of": true, "In": true, "On": true, "By": true, "To": true,
	"Agreement": true, "Lease": true, "Contract": true, "Party": true, "Parties": true,
	"Landlord": true, "Tenant": true, "Lessor": true, "Lessee": true, "Borrower": true,
	"Lender": true, "Buyer": true, "Seller": true, "Licensor": true, "Licensee": true,
	"Employer": true, "Employee": true, "Contractor": true, "Client": true, "Customer": true,
	"Company": true, "Premises": true, "Property": true, "Section": true, "Article": true,
	"State": true, "Date": true, "Effective": true, "Term": true, "Rent": true,
	"Loan": true, "Note": true, "Pay": true, "Pays": true, "Notice": true,
}

// Parties returns named parties in order of first appearance.
func Parties(text string) []string {
	var hits []hit
	for _, re := range []*regexp.Regexp{roleMarkerRe, betweenRe, definedRoleRe} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			for g := 1; 2*g+1 < len(m); g++ {
				start, end := m[2*g], m[2*g+1]
				if start < 0 {
					continue
				}
				if name := cleanPartyName(text[start:end]); name != "" {
					hits = append(hits, hit{pos: start, end: end, text: name})
				}
			}
		}
	}
	return ordered(hits)
}

// cleanPartyName cuts a candidate at the first sentence end and strips
// boilerplate tokens from both ends.
func cleanPartyName(s string) string {
	tokens := strings.Fields(s)
	for i, tok := range tokens {
		if strings.HasSuffix(tok, ".") && !corporateSuffixes[tok] && !isInitial(tok) {
			tokens[i] = strings.TrimSuffix(tok, ".")
			tokens = tokens[:i+1]
			break
		}
	}

	for len(tokens) > 0 && nonNameTokens[strings.TrimSuffix(tokens[0], ".")] {
		tokens = tokens[1:]
	}
	for len(tokens) > 0 && nonNameTokens[strings.TrimSuffix(tokens[len(tokens)-1], ".")] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

func isInitial(tok string) bool {
	return len(tok) == 2 && tok[1] == '.'
}

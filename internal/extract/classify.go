package extract

import (
	"regexp"
	"strings"

	"github.com/opensource-finance/covenant/internal/domain"
)

// classifierPriority breaks ties between equally voted types, most specific first.
var classifierPriority = []domain.DocumentType{
	domain.DocLease,
	domain.DocLoanAgreement,
	domain.DocPrivacyPolicy,
	domain.DocTermsOfService,
	domain.DocContract,
}

var classifierKeywords = map[domain.DocumentType][]string{
	domain.DocLease: {
		"lease", "landlord", "tenant", "lessor", "lessee", "rent", "rental",
		"premises", "security deposit", "sublet",
	},
	domain.DocLoanAgreement: {
		"loan", "borrower", "lender", "principal", "interest rate", "repayment",
		"promissory note", "amortization", "collateral", "maturity date",
	},
	domain.DocPrivacyPolicy: {
		"privacy policy", "privacy notice", "personal data", "personal information",
		"data protection", "cookies", "data controller", "gdpr", "opt out", "ccpa",
	},
	domain.DocTermsOfService: {
		"terms of service", "terms of use", "terms and conditions", "user agreement",
		"acceptable use", "your account", "subscription", "users",
	},
	domain.DocContract: {
		"agreement", "contract", "hereinafter", "whereas", "parties",
		"obligations", "consideration", "in witness whereof",
	},
}

var classifierRes = compileKeywords(classifierKeywords)

func compileKeywords(sets map[domain.DocumentType][]string) map[domain.DocumentType][]*regexp.Regexp {
	out := make(map[domain.DocumentType][]*regexp.Regexp, len(sets))
	for dt, words := range sets {
		for _, w := range words {
			expr := strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`)
			out[dt] = append(out[dt], regexp.MustCompile(`(?i)\b`+expr+`\b`))
		}
	}
	return out
}

// Classification is the outcome of keyword voting.
type Classification struct {
	Type  domain.DocumentType
	Votes map[domain.DocumentType]int
}

// Classify votes on the document type by counting distinct matched keywords.
// Ties go to the earlier type in the priority order; no matches yield "other".
func Classify(text string) Classification {
	c := Classification{Type: domain.DocOther, Votes: make(map[domain.DocumentType]int)}

	best := 0
	for _, dt := range classifierPriority {
		votes := 0
		for _, re := range classifierRes[dt] {
			if re.MatchString(text) {
				votes++
			}
		}
		c.Votes[dt] = votes
		if votes > best {
			best = votes
			c.Type = dt
		}
	}
	return c
}

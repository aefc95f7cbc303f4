package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/opensource-finance/covenant/internal/domain"
)

var jurisdictionRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\blaws?\s+of\s+(?:the\s+)?([a-z]+(?:[\s.]+[a-z]+){0,4})`),
	regexp.MustCompile(`(?i)\b(?:state|commonwealth|province)\s+of\s+([a-z]+(?:[\s.]+[a-z]+){0,3})`),
	regexp.MustCompile(`(?i)\bcourts?\s+(?:of|in|located\s+in)\s+(?:the\s+)?([a-z]+(?:[\s.]+[a-z]+){0,3})`),
}

var jurisdictionCodes = map[string]string{
	"alabama": "US-AL", "alaska": "US-AK", "arizona": "US-AZ", "arkansas": "US-AR",
	"california": "US-CA", "colorado": "US-CO", "connecticut": "US-CT", "delaware": "US-DE",
	"florida": "US-FL", "georgia": "US-GA", "hawaii": "US-HI", "idaho": "US-ID",
	"illinois": "US-IL", "indiana": "US-IN", "iowa": "US-IA", "kansas": "US-KS",
	"kentucky": "US-KY", "louisiana": "US-LA", "maine": "US-ME", "maryland": "US-MD",
	"massachusetts": "US-MA", "michigan": "US-MI", "minnesota": "US-MN", "mississippi": "US-MS",
	"missouri": "US-MO", "montana": "US-MT", "nebraska": "US-NE", "nevada": "US-NV",
	"new hampshire": "US-NH", "new jersey": "US-NJ", "new mexico": "US-NM", "new york": "US-NY",
	"north carolina": "US-NC", "north dakota": "US-ND", "ohio": "US-OH", "oklahoma": "US-OK",
	"oregon": "US-OR", "pennsylvania": "US-PA", "rhode island": "US-RI", "south carolina": "US-SC",
	"south dakota": "US-SD", "tennessee": "US-TN", "texas": "US-TX", "utah": "US-UT",
	"vermont": "US-VT", "virginia": "US-VA", "washington": "US-WA", "west virginia": "US-WV",
	"wisconsin": "US-WI", "wyoming": "US-WY",
	"district of columbia": "US-DC", "washington d c": "US-DC", "washington dc": "US-DC",
	"puerto rico": "US-PR",

	"united states": "US", "united states of america": "US", "usa": "US",
	"england and wales": "GB-ENG", "england": "GB-ENG", "wales": "GB-WLS",
	"scotland": "GB-SCT", "northern ireland": "GB-NIR", "united kingdom": "GB",
	"ireland": "IE", "canada": "CA", "ontario": "CA-ON", "quebec": "CA-QC",
	"british columbia": "CA-BC", "alberta": "CA-AB", "australia": "AU",
	"new south wales": "AU-NSW", "victoria": "AU-VIC", "germany": "DE", "france": "FR",
	"netherlands": "NL", "singapore": "SG", "switzerland": "CH", "india": "IN",
}

// leadingQualifiers are skipped before looking a name up.
var leadingQualifiers = []string{"state of ", "commonwealth of ", "province of ", "the "}

// Jurisdiction returns the code of the first governing-law reference,
// or "unknown" when none is found.
func Jurisdiction(text string) string {
	var hits []hit
	for _, re := range jurisdictionRes {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if code := lookupJurisdiction(text[m[2]:m[3]]); code != "" {
				hits = append(hits, hit{pos: m[0], text: code})
			}
		}
	}
	if len(hits) == 0 {
		return domain.JurisdictionUnknown
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	return hits[0].text
}

// lookupJurisdiction matches the longest known name at the start of phrase.
func lookupJurisdiction(phrase string) string {
	p := strings.ToLower(phrase)
	p = strings.Join(strings.FieldsFunc(p, func(r rune) bool { return r == ' ' || r == '.' || r == '\n' || r == '\t' }), " ")
	for changed := true; changed; {
		changed = false
		for _, q := range leadingQualifiers {
			if strings.HasPrefix(p, q) {
				p = strings.TrimPrefix(p, q)
				changed = true
			}
		}
	}

	words := strings.Fields(p)
	for n := len(words); n > 0; n-- {
		if code, ok := jurisdictionCodes[strings.Join(words[:n], " ")]; ok {
			return code
		}
	}
	return ""
}

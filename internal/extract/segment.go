package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/opensource-finance/covenant/internal/domain"
)

const maxTitleLen = 80

var (
	headingRe    = regexp.MustCompile(`(?im)^[ \t]*(?:(?:section|article|clause)\s+\d+(?:\.\d+)*|\d+(?:\.\d+)*[.)])\s+`)
	blankLinesRe = regexp.MustCompile(`\n[ \t]*\n`)
)

// SegmentClauses splits text into clauses at numbered headings, falling back
// to paragraphs and then to the whole document. Offsets refer to text.
func SegmentClauses(text string) []domain.Clause {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var bounds []int
	if locs := headingRe.FindAllStringIndex(text, -1); len(locs) >= 2 {
		for _, loc := range locs {
			bounds = append(bounds, loc[0])
		}
		if bounds[0] != 0 {
			bounds = append([]int{0}, bounds...)
		}
	} else {
		bounds = append(bounds, 0)
		for _, loc := range blankLinesRe.FindAllStringIndex(text, -1) {
			bounds = append(bounds, loc[1])
		}
	}
	bounds = append(bounds, len(text))

	var clauses []domain.Clause
	for i := 0; i+1 < len(bounds); i++ {
		start, end := trimSpan(text, bounds[i], bounds[i+1])
		if start >= end {
			continue
		}
		content := text[start:end]
		clauses = append(clauses, domain.Clause{
			ID:       fmt.Sprintf("clause-%d", len(clauses)+1),
			Title:    clauseTitle(content),
			Content:  content,
			Location: &domain.Location{Start: start, End: end},
		})
	}
	return clauses
}

func trimSpan(text string, start, end int) (int, int) {
	for start < end && isSpace(text[start]) {
		start++
	}
	for end > start && isSpace(text[end-1]) {
		end--
	}
	return start, end
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

func clauseTitle(content string) string {
	line := content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if len(line) > maxTitleLen {
		line = strings.TrimSpace(line[:maxTitleLen]) + "..."
	}
	return line
}

package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/opensource-finance/covenant/internal/domain"
)

// DefaultWindow is the exclusion context, in characters, on each side of a match.
const DefaultWindow = 80

const maxQuoteLen = 80

// clauseBreak separates coordinated clauses inside one sentence. A negation
// on the far side of a break governs a different verb.
var clauseBreak = regexp.MustCompile(`(?i),|\b(?:but|however|whereas|although|except\s+that)\b`)

// Scope values passed to conditions.
const (
	ScopeDocument = "document"
	ScopeClause   = "clause"
)

// Pattern is a compiled risk pattern.
type Pattern struct {
	Config *domain.RiskPattern

	anyOf   []*regexp.Regexp
	allOf   []*regexp.Regexp
	exclude []*regexp.Regexp
	window  int
	program cel.Program
}

// Env carries the evaluation context for conditions.
type Env struct {
	DocumentType domain.DocumentType
	Jurisdiction string
	Scope        string
}

// Match is the first accepted occurrence of a pattern.
type Match struct {
	Text  string
	Start int
	End   int
}

func compilePattern(env *cel.Env, def *domain.RiskPattern) (*Pattern, error) {
	if strings.TrimSpace(def.ID) == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidPattern)
	}
	if _, ok := domain.ParseCategory(string(def.Category)); !ok {
		return nil, fmt.Errorf("%w: pattern %s: unknown category %q", ErrInvalidPattern, def.ID, def.Category)
	}
	if _, ok := domain.ParseSeverity(string(def.Severity)); !ok {
		return nil, fmt.Errorf("%w: pattern %s: unknown severity %q", ErrInvalidPattern, def.ID, def.Severity)
	}
	if strings.TrimSpace(def.Description) == "" {
		return nil, fmt.Errorf("%w: pattern %s: description is required", ErrInvalidPattern, def.ID)
	}
	if len(def.Trigger.Any) == 0 && len(def.Trigger.All) == 0 {
		return nil, fmt.Errorf("%w: pattern %s: trigger needs at least one expression", ErrInvalidPattern, def.ID)
	}
	for _, dt := range def.DocumentTypes {
		if dt != domain.DocAny && domain.ParseDocumentType(string(dt)) != dt {
			return nil, fmt.Errorf("%w: pattern %s: unknown document type %q", ErrInvalidPattern, def.ID, dt)
		}
	}

	p := &Pattern{Config: def, window: def.Trigger.Window}
	if p.window <= 0 {
		p.window = DefaultWindow
	}

	var err error
	if p.anyOf, err = compileAll(def.ID, def.Trigger.Any); err != nil {
		return nil, err
	}
	if p.allOf, err = compileAll(def.ID, def.Trigger.All); err != nil {
		return nil, err
	}
	if p.exclude, err = compileAll(def.ID, def.Trigger.Exclude); err != nil {
		return nil, err
	}

	if strings.TrimSpace(def.Condition) != "" {
		if p.program, err = compileCondition(env, def.ID, def.Condition); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func compileAll(id string, exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %s: %v", ErrInvalidPattern, id, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// ID returns the pattern id.
func (p *Pattern) ID() string {
	return p.Config.ID
}

// Match reports the first accepted occurrence of the pattern in text.
func (p *Pattern) Match(text string, env Env) (Match, bool) {
	m, ok := p.lexical(text)
	if !ok {
		return Match{}, false
	}

	if p.program != nil {
		activation := map[string]any{
			varDocumentType: string(env.DocumentType),
			varJurisdiction: env.Jurisdiction,
			varMatched:      strings.ToLower(m.Text),
			varContext:      strings.ToLower(contextWindow(text, m.Start, m.End, p.window)),
			varScope:        env.Scope,
			varTextLength:   int64(len(text)),
		}
		if !evalCondition(p.program, activation) {
			return Match{}, false
		}
	}

	return m, true
}

func (p *Pattern) lexical(text string) (Match, bool) {
	for _, re := range p.allOf {
		if !re.MatchString(text) {
			return Match{}, false
		}
	}

	if len(p.anyOf) == 0 {
		loc := p.allOf[0].FindStringIndex(text)
		return Match{Text: text[loc[0]:loc[1]], Start: loc[0], End: loc[1]}, true
	}

	for _, re := range p.anyOf {
		if len(p.exclude) == 0 {
			if loc := re.FindStringIndex(text); loc != nil {
				return Match{Text: text[loc[0]:loc[1]], Start: loc[0], End: loc[1]}, true
			}
			continue
		}
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if !p.excluded(text, loc[0], loc[1]) {
				return Match{Text: text[loc[0]:loc[1]], Start: loc[0], End: loc[1]}, true
			}
		}
	}
	return Match{}, false
}

func (p *Pattern) excluded(text string, start, end int) bool {
	ctx := clauseWindow(text, start, end, p.window)
	for _, re := range p.exclude {
		if re.MatchString(ctx) {
			return true
		}
	}
	return false
}

// Describe renders the pattern description for a match.
func (p *Pattern) Describe(m Match) string {
	return strings.ReplaceAll(p.Config.Description, "{{match}}", quote(m.Text))
}

// contextWindow returns the text around [start,end), at most window characters
// each side and never crossing a sentence boundary.
func contextWindow(text string, start, end, window int) string {
	lo, hi := sentenceBounds(text, start, end, window)
	return text[lo:hi]
}

// clauseWindow narrows contextWindow to the clause holding [start,end).
func clauseWindow(text string, start, end, window int) string {
	lo, hi := sentenceBounds(text, start, end, window)
	if locs := clauseBreak.FindAllStringIndex(text[lo:start], -1); len(locs) > 0 {
		lo += locs[len(locs)-1][1]
	}
	if loc := clauseBreak.FindStringIndex(text[end:hi]); loc != nil {
		hi = end + loc[0]
	}
	return text[lo:hi]
}

func sentenceBounds(text string, start, end, window int) (int, int) {
	lo := max(start-window, 0)
	if i := strings.LastIndexAny(text[lo:start], ".;!?\n"); i >= 0 {
		lo += i + 1
	}

	hi := min(end+window, len(text))
	if i := strings.IndexAny(text[end:hi], ".;!?\n"); i >= 0 {
		hi = end + i
	}
	return lo, hi
}

func quote(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxQuoteLen {
		s = s[:maxQuoteLen] + "..."
	}
	return s
}

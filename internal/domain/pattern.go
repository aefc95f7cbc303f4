package domain

import "time"

// RiskPattern is a declarative risk detector.
// Trigger regexes are compiled case-insensitively by the catalog.
type RiskPattern struct {
	ID       string `json:"id" yaml:"id"`
	TenantID string `json:"tenantId,omitempty" yaml:"-"`
	Name     string `json:"name" yaml:"name"`
	Version  string `json:"version,omitempty" yaml:"version,omitempty"`

	Trigger Trigger `json:"trigger" yaml:"trigger"`

	Category Category `json:"category" yaml:"category"`
	Severity Severity `json:"severity" yaml:"severity"`

	// Description may contain {{match}}, replaced by the matched phrase.
	Description    string `json:"description" yaml:"description"`
	Recommendation string `json:"recommendation" yaml:"recommendation"`

	// DocumentTypes restricts applicability. Empty means any type.
	DocumentTypes []DocumentType `json:"documentTypes,omitempty" yaml:"documentTypes,omitempty"`

	// Supplementary patterns only run in the document-type specific pass.
	Supplementary bool `json:"supplementary,omitempty" yaml:"supplementary,omitempty"`

	// Condition is an optional CEL guard evaluated after a lexical match.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	Enabled   bool      `json:"enabled" yaml:"enabled"`
	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"-"`
}

// Trigger holds the lexical conditions of a pattern.
type Trigger struct {
	// Any fires on the first occurrence of any expression whose context is not excluded.
	Any []string `json:"any,omitempty" yaml:"any,omitempty"`

	// All must each match somewhere in the text.
	All []string `json:"all,omitempty" yaml:"all,omitempty"`

	// Exclude suppresses an occurrence when found in its surrounding sentence.
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`

	// Window bounds the exclusion context in characters on each side.
	Window int `json:"window,omitempty" yaml:"window,omitempty"`
}

// AppliesTo reports whether the pattern is scoped to dt.
func (p *RiskPattern) AppliesTo(dt DocumentType) bool {
	if len(p.DocumentTypes) == 0 {
		return true
	}
	for _, t := range p.DocumentTypes {
		if t == DocAny || t == dt {
			return true
		}
	}
	return false
}

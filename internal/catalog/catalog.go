// Package catalog provides the immutable, versioned table of risk patterns.
package catalog

import (
	"errors"
	"fmt"

	"github.com/opensource-finance/covenant/internal/domain"
)

// ErrInvalidPattern is returned when a pattern fails validation or compilation.
var ErrInvalidPattern = errors.New("invalid risk pattern")

// Catalog is a compiled, read-only set of risk patterns.
// A Catalog is safe for concurrent use; reloading builds a new one.
type Catalog struct {
	version  string
	defs     []domain.RiskPattern
	patterns []*Pattern
	byID     map[string]*Pattern

	generic       map[domain.DocumentType][]*Pattern
	supplementary map[domain.DocumentType][]*Pattern
}

// New validates and compiles patterns into a catalog.
// Disabled patterns are kept out of lookups.
func New(version string, patterns []domain.RiskPattern) (*Catalog, error) {
	env, err := newConditionEnv()
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		version:       version,
		defs:          make([]domain.RiskPattern, 0, len(patterns)),
		byID:          make(map[string]*Pattern, len(patterns)),
		generic:       make(map[domain.DocumentType][]*Pattern),
		supplementary: make(map[domain.DocumentType][]*Pattern),
	}

	for i := range patterns {
		def := patterns[i]
		if _, dup := c.byID[def.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate pattern id %q", ErrInvalidPattern, def.ID)
		}
		if !def.Enabled {
			continue
		}
		p, err := compilePattern(env, &def)
		if err != nil {
			return nil, err
		}
		c.defs = append(c.defs, def)
		c.patterns = append(c.patterns, p)
		c.byID[def.ID] = p
	}

	for _, dt := range domain.DocumentTypes {
		for _, p := range c.patterns {
			if !p.Config.AppliesTo(dt) {
				continue
			}
			if p.Config.Supplementary {
				c.supplementary[dt] = append(c.supplementary[dt], p)
			} else {
				c.generic[dt] = append(c.generic[dt], p)
			}
		}
	}

	return c, nil
}

// MustNew is like New but panics on error. Intended for static tables.
func MustNew(version string, patterns []domain.RiskPattern) *Catalog {
	c, err := New(version, patterns)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return MustNew(BuiltinVersion, Builtin())
}

// Validate compiles a single pattern without building a catalog.
func Validate(p *domain.RiskPattern) error {
	if p == nil {
		return fmt.Errorf("%w: pattern is required", ErrInvalidPattern)
	}
	env, err := newConditionEnv()
	if err != nil {
		return err
	}
	_, err = compilePattern(env, p)
	return err
}

// Lookup returns the generic patterns applicable to dt in declaration order.
// Unknown document types resolve to DocOther.
func (c *Catalog) Lookup(dt domain.DocumentType) []*Pattern {
	return c.generic[resolve(dt)]
}

// Supplementary returns the document-type specific checks for dt in declaration order.
func (c *Catalog) Supplementary(dt domain.DocumentType) []*Pattern {
	return c.supplementary[resolve(dt)]
}

// Get returns the compiled pattern with the given id.
func (c *Catalog) Get(id string) (*Pattern, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Patterns returns a copy of the enabled pattern definitions.
func (c *Catalog) Patterns() []domain.RiskPattern {
	out := make([]domain.RiskPattern, len(c.defs))
	copy(out, c.defs)
	return out
}

// Version identifies the catalog contents.
func (c *Catalog) Version() string {
	return c.version
}

// Len returns the number of enabled patterns.
func (c *Catalog) Len() int {
	return len(c.patterns)
}

// Extend returns a new catalog with extra patterns merged over base.
// An extra pattern replaces the base pattern with the same id in place;
// a disabled extra pattern removes it.
func Extend(version string, base, extra []domain.RiskPattern) (*Catalog, error) {
	merged := make([]domain.RiskPattern, 0, len(base)+len(extra))
	index := make(map[string]int, len(base)+len(extra))
	for _, p := range base {
		index[p.ID] = len(merged)
		merged = append(merged, p)
	}
	for _, p := range extra {
		if i, ok := index[p.ID]; ok {
			merged[i] = p
			continue
		}
		index[p.ID] = len(merged)
		merged = append(merged, p)
	}
	return New(version, merged)
}

func resolve(dt domain.DocumentType) domain.DocumentType {
	for _, known := range domain.DocumentTypes {
		if dt == known {
			return dt
		}
	}
	return domain.DocOther
}

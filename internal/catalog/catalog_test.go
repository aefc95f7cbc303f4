package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opensource-finance/covenant/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func firing(c *Catalog, dt domain.DocumentType, text string) []string {
	var ids []string
	env := Env{DocumentType: dt, Jurisdiction: domain.JurisdictionUnknown, Scope: ScopeDocument}
	for _, p := range c.Lookup(dt) {
		if _, ok := p.Match(text, env); ok {
			ids = append(ids, p.ID())
		}
	}
	return ids
}

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	assert.Equal(t, BuiltinVersion, c.Version())
	assert.Equal(t, len(Builtin()), c.Len())

	seen := make(map[string]bool)
	for _, p := range c.Patterns() {
		assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
		assert.NotEmpty(t, p.Recommendation, p.ID)
	}
}

func TestLookup(t *testing.T) {
	c := Default()

	t.Run("declaration order", func(t *testing.T) {
		patterns := c.Lookup(domain.DocContract)
		require.NotEmpty(t, patterns)
		assert.Equal(t, "unlimited-liability", patterns[0].ID())
		assert.Equal(t, "indemnification", patterns[1].ID())
	})

	t.Run("document type scoping", func(t *testing.T) {
		ids := func(ps []*Pattern) map[string]bool {
			m := make(map[string]bool)
			for _, p := range ps {
				m[p.ID()] = true
			}
			return m
		}
		lease := ids(c.Lookup(domain.DocLease))
		tos := ids(c.Lookup(domain.DocTermsOfService))

		assert.True(t, lease["tenant-repair-burden"])
		assert.False(t, tos["tenant-repair-burden"])
		assert.False(t, lease["lease-joint-rent"], "supplementary patterns are not generic")
	})

	t.Run("unknown type resolves to other", func(t *testing.T) {
		assert.Equal(t, c.Lookup(domain.DocOther), c.Lookup(domain.DocumentType("memo")))
	})

	t.Run("supplementary", func(t *testing.T) {
		var ids []string
		for _, p := range c.Supplementary(domain.DocLoanAgreement) {
			ids = append(ids, p.ID())
		}
		assert.Equal(t, []string{"loan-rate-reset", "loan-early-payoff-fee"}, ids)
		assert.Empty(t, c.Supplementary(domain.DocTermsOfService))
	})
}

func TestBuiltinTriggers(t *testing.T) {
	c := Default()

	tests := []struct {
		name string
		dt   domain.DocumentType
		text string
		want string
	}{
		{"unlimited liability", domain.DocContract, "The Contractor accepts unlimited liability for all damages.", "unlimited-liability"},
		{"hold harmless", domain.DocContract, "You shall indemnify and hold harmless the Company.", "indemnification"},
		{"arbitration", domain.DocTermsOfService, "All disputes are resolved by binding arbitration.", "binding-arbitration"},
		{"jury waiver", domain.DocTermsOfService, "You waive your right to a jury trial.", "binding-arbitration"},
		{"auto renewal", domain.DocTermsOfService, "Your plan will automatically renew each year.", "automatic-renewal"},
		{"late fee", domain.DocLease, "A late fee of $50 applies after the fifth day.", "late-fees"},
		{"data sharing", domain.DocPrivacyPolicy, "We may share your personal information with third parties.", "third-party-data-sharing"},
		{"retention", domain.DocPrivacyPolicy, "We retain your data indefinitely.", "indefinite-retention"},
		{"variable rate", domain.DocLoanAgreement, "This loan carries a variable interest rate.", "variable-interest-rate"},
		{"prepayment", domain.DocLoanAgreement, "A prepayment penalty of 2% applies.", "prepayment-penalty"},
		{"joint and several", domain.DocLease, "Tenants are jointly and severally liable.", "joint-several-liability"},
		{"modification", domain.DocTermsOfService, "We reserve the right to modify these terms.", "unilateral-modification"},
		{"balloon", domain.DocLoanAgreement, "A balloon payment is due at maturity.", "balloon-payment"},
		{"as is", domain.DocTermsOfService, "The service is provided as is without warranty of any kind.", "as-is-disclaimer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, firing(c, tt.dt, tt.text), tt.want)
		})
	}
}

func TestNegativeContext(t *testing.T) {
	c := Default()

	tests := []struct {
		name string
		dt   domain.DocumentType
		text string
	}{
		{"unlimited support", domain.DocTermsOfService, "Premium members receive unlimited support."},
		{"renewal benefits", domain.DocTermsOfService, "Loyal members automatically renew your subscription benefits every month."},
		{"no access", domain.DocPrivacyPolicy, "Our staff cannot access your private data."},
		{"non-binding", domain.DocContract, "The parties may attempt non-binding arbitration."},
		{"no prepayment penalty", domain.DocLoanAgreement, "There is no prepayment penalty on this loan."},
		{"no sale", domain.DocPrivacyPolicy, "We do not sell your personal data to third parties."},
		{"mutual termination", domain.DocContract, "Either party may terminate this agreement for any reason."},
		{"deposit returned", domain.DocLease, "Landlord will retain the security deposit and return it within 30 days."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, firing(c, tt.dt, tt.text))
		})
	}
}

func TestMatchSkipsExcludedOccurrence(t *testing.T) {
	c := Default()
	p, ok := c.Get("automatic-renewal")
	require.True(t, ok)

	text := "Points automatically renew. Your membership will automatically renew each year."
	m, ok := p.Match(text, Env{Scope: ScopeDocument})
	require.True(t, ok)
	assert.Greater(t, m.Start, len("Points automatically renew."))
	assert.Contains(t, p.Describe(m), "automatically renew")
}

func TestExclusionStaysInClause(t *testing.T) {
	c := Default()

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			"sharing after sale negation",
			"We do not sell your data, but we share your personal information with third parties for advertising.",
			"third-party-data-sharing",
		},
		{
			"uncapped after capped",
			"Your liability is not unlimited for minor breaches, but liability for data breaches is uncapped.",
			"unlimited-liability",
		},
		{
			"paid plans renew",
			"Subscriptions will not automatically renew for trial users, but paid plans automatically renew annually.",
			"automatic-renewal",
		},
		{
			"however",
			"We never sell customer records; we will not rent them either. We never rent lists however we disclose your information to advertisers.",
			"third-party-data-sharing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, firing(c, domain.DocContract, tt.text), tt.want)
		})
	}

	t.Run("negation in same clause", func(t *testing.T) {
		assert.NotContains(t, firing(c, domain.DocContract, "Your liability shall not be unlimited, and fees are fixed."), "unlimited-liability")
		assert.NotContains(t, firing(c, domain.DocContract, "Subscriptions will not automatically renew."), "automatic-renewal")
	})
}

func TestClauseWindow(t *testing.T) {
	text := "We do not sell data, but we share it with partners. Next"
	start := len("We do not sell data, but we ")
	end := start + len("share")

	assert.Equal(t, " we share it with partners", clauseWindow(text, start, end, 80))
	assert.Equal(t, "We do not sell data, but we share it with partners", contextWindow(text, start, end, 80))
}

func TestContextWindow(t *testing.T) {
	text := "First sentence has benefits. Then automatically renew here; tail"
	start := len("First sentence has benefits. Then ")
	end := start + len("automatically renew")

	assert.Equal(t, " Then automatically renew here", contextWindow(text, start, end, 80))
	assert.Equal(t, "n automatically renew h", contextWindow(text, start, end, 2))
}

func TestConditions(t *testing.T) {
	base := domain.RiskPattern{
		ID:          "us-only",
		Category:    domain.CategoryLegal,
		Severity:    domain.SeverityLow,
		Description: "Jury waiver: {{match}}",
		Trigger:     domain.Trigger{Any: []string{`jury`}},
		Condition:   `jurisdiction.startsWith("US-") && scope == "document"`,
		Enabled:     true,
	}

	c, err := New("test", []domain.RiskPattern{base})
	require.NoError(t, err)
	p, _ := c.Get("us-only")

	_, ok := p.Match("no jury", Env{Jurisdiction: "US-CA", Scope: ScopeDocument})
	assert.True(t, ok)
	_, ok = p.Match("no jury", Env{Jurisdiction: "GB-ENG", Scope: ScopeDocument})
	assert.False(t, ok)
	_, ok = p.Match("no jury", Env{Jurisdiction: "US-CA", Scope: ScopeClause})
	assert.False(t, ok)

	t.Run("non-bool condition rejected", func(t *testing.T) {
		bad := base
		bad.Condition = `text_length + 1`
		_, err := New("test", []domain.RiskPattern{bad})
		assert.ErrorIs(t, err, ErrInvalidPattern)
	})
}

func TestValidate(t *testing.T) {
	valid := domain.RiskPattern{
		ID:          "ok",
		Category:    domain.CategoryFinancial,
		Severity:    domain.SeverityMedium,
		Description: "Fee: {{match}}",
		Trigger:     domain.Trigger{Any: []string{`\bfee\b`}},
	}
	require.NoError(t, Validate(&valid))

	tests := []struct {
		name   string
		mutate func(p *domain.RiskPattern)
	}{
		{"missing id", func(p *domain.RiskPattern) { p.ID = "" }},
		{"bad category", func(p *domain.RiskPattern) { p.Category = "tax" }},
		{"bad severity", func(p *domain.RiskPattern) { p.Severity = "critical" }},
		{"empty trigger", func(p *domain.RiskPattern) { p.Trigger = domain.Trigger{} }},
		{"bad regex", func(p *domain.RiskPattern) { p.Trigger.Any = []string{`(unclosed`} }},
		{"bad document type", func(p *domain.RiskPattern) { p.DocumentTypes = []domain.DocumentType{"memo"} }},
		{"missing description", func(p *domain.RiskPattern) { p.Description = " " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			assert.ErrorIs(t, Validate(&p), ErrInvalidPattern)
		})
	}

	assert.ErrorIs(t, Validate(nil), ErrInvalidPattern)
}

func TestExtend(t *testing.T) {
	base := Builtin()

	override := base[0]
	override.Severity = domain.SeverityMedium
	disabled := base[1]
	disabled.Enabled = false
	extra := domain.RiskPattern{
		ID:          "custom-fee",
		Category:    domain.CategoryFinancial,
		Severity:    domain.SeverityLow,
		Description: "Admin fee: {{match}}",
		Trigger:     domain.Trigger{Any: []string{`administrative\s+fee`}},
		Enabled:     true,
	}

	c, err := Extend("v2", base, []domain.RiskPattern{override, disabled, extra})
	require.NoError(t, err)

	assert.Equal(t, "v2", c.Version())
	assert.Equal(t, len(base), c.Len())

	p, ok := c.Get(override.ID)
	require.True(t, ok)
	assert.Equal(t, domain.SeverityMedium, p.Config.Severity)
	assert.Equal(t, override.ID, c.Lookup(domain.DocContract)[0].ID())

	_, ok = c.Get(disabled.ID)
	assert.False(t, ok)
	_, ok = c.Get("custom-fee")
	assert.True(t, ok)
}

func TestParse(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		data := []byte(`
version: "2"
patterns:
  - id: admin-fee
    category: financial
    severity: low
    description: "Admin fee: {{match}}"
    trigger:
      any: ['administrative\s+fee']
  - id: old
    enabled: false
    category: legal
    severity: low
    description: "Old"
    trigger:
      any: [old]
`)
		patterns, err := Parse(data)
		require.NoError(t, err)
		require.Len(t, patterns, 2)
		assert.True(t, patterns[0].Enabled)
		assert.Equal(t, "2", patterns[0].Version)
		assert.False(t, patterns[1].Enabled)
		assert.Equal(t, []string{`administrative\s+fee`}, patterns[0].Trigger.Any)
	})

	t.Run("single", func(t *testing.T) {
		patterns, err := Parse([]byte("id: one\ncategory: privacy\nseverity: high\ndescription: x\ntrigger:\n  all: [cookies]\n"))
		require.NoError(t, err)
		require.Len(t, patterns, 1)
		assert.Equal(t, domain.CategoryPrivacy, patterns[0].Category)
		assert.True(t, patterns[0].Enabled)
	})

	t.Run("empty", func(t *testing.T) {
		patterns, err := Parse(nil)
		require.NoError(t, err)
		assert.Empty(t, patterns)
	})

	t.Run("round trip through Marshal", func(t *testing.T) {
		data, err := Marshal("x", Builtin()[:2])
		require.NoError(t, err)
		patterns, err := Parse(data)
		require.NoError(t, err)
		assert.Equal(t, Builtin()[:2], patterns)
	})
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("b.yaml", "id: b\ncategory: legal\nseverity: low\ndescription: b\ntrigger:\n  any: [bee]\n")
	write("a.yml", "id: a\ncategory: legal\nseverity: low\ndescription: a\ntrigger:\n  any: [ay]\n")
	write("notes.txt", "ignored")

	patterns, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, patterns, 2)
	assert.Equal(t, "a", patterns[0].ID)
	assert.Equal(t, "b", patterns[1].ID)

	missing, err := LoadDir(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(Builtin())
	require.NoError(t, err)
	assert.Equal(t, BuiltinVersion, r.Current().Version())

	custom := []domain.RiskPattern{{
		ID:          "custom",
		Category:    domain.CategoryLegal,
		Severity:    domain.SeverityLow,
		Description: "Custom: {{match}}",
		Trigger:     domain.Trigger{Any: []string{`custom`}},
		Enabled:     true,
	}}
	c, err := r.Reload(custom)
	require.NoError(t, err)
	assert.Same(t, c, r.Current())
	assert.NotEqual(t, BuiltinVersion, c.Version())

	again, err := r.Reload(custom)
	require.NoError(t, err)
	assert.Equal(t, c.Version(), again.Version())

	custom[0].Trigger.Any = []string{`(`}
	_, err = r.Reload(custom)
	assert.ErrorIs(t, err, ErrInvalidPattern)
	assert.Same(t, again, r.Current())
}

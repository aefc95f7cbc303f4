package catalog

import "github.com/opensource-finance/covenant/internal/domain"

// BuiltinVersion identifies the built-in pattern table.
const BuiltinVersion = "builtin-2025.1"

// Shared exclusion fragments.
const (
	rewardContext = `\bbenefits?\b|\brewards?\b|\bperks?\b|\bpoints\b|\bmiles\b`
	shareNegation = `\b(?:do|does|will|shall)\s+not\s+(?:\w+\s+)?(?:share|sell|disclose|rent|transfer|provide)\b|\bnever\s+(?:\w+\s+)?(?:share|sell|disclose|rent|transfer)\b`
	keepNegation  = `\b(?:do|does|will|shall)\s+not\s+(?:\w+\s+)?(?:retain|store|keep|hold)\b|\bnever\s+(?:retain|store|keep)\b`
)

var (
	financialDocs = []domain.DocumentType{domain.DocLoanAgreement, domain.DocContract, domain.DocOther}
	leaseDocs     = []domain.DocumentType{domain.DocLease, domain.DocContract, domain.DocOther}
)

// builtin is evaluated in declaration order. Patterns sharing a headline
// (the description text before the colon) describe the same concept.
var builtin = []domain.RiskPattern{
	// Legal
	{
		ID:   "unlimited-liability",
		Name: "Unlimited liability",
		Trigger: domain.Trigger{
			Any: []string{
				`\bunlimited\s+(?:personal\s+)?(?:liability|damages|indemnit(?:y|ies))\b`,
				`\bliab(?:ility|le)\s+(?:\w+\s+){0,4}?(?:unlimited|uncapped|without\s+(?:any\s+)?(?:limit|cap))\b`,
				`\bno\s+(?:limit|cap|limitation)\s+(?:on|of|to)\s+(?:the\s+)?(?:\w+\s+)?liability\b`,
			},
			Exclude: []string{`\bnot\s+(?:be\s+)?(?:unlimited|uncapped)\b`},
		},
		Category:       domain.CategoryLegal,
		Severity:       domain.SeverityHigh,
		Description:    "Unlimited liability: exposure for damages is uncapped (\"{{match}}\").",
		Recommendation: "Negotiate a liability cap, typically tied to the fees paid under the agreement.",
	},
	{
		ID:   "indemnification",
		Name: "Broad indemnification",
		Trigger: domain.Trigger{
			Any: []string{
				`\bindemnif(?:y|ies)\b[^.;]{0,60}?\bhold\s+(?:\w+\s+){0,3}harmless\b`,
				`\bhold\s+(?:\w+\s+){0,3}harmless\b`,
				`\bindemnify\b`,
				`\bindemnification\s+obligations?\b`,
			},
			Exclude: []string{`\bnot\s+(?:be\s+)?(?:required|obligated)\s+to\s+indemnify\b`},
		},
		Category:       domain.CategoryLegal,
		Severity:       domain.SeverityHigh,
		Description:    "Broad indemnification: you must cover the other side's losses and claims (\"{{match}}\").",
		Recommendation: "Limit indemnification to claims caused by your own negligence or breach, and make it mutual.",
	},
	{
		ID:   "binding-arbitration",
		Name: "Mandatory arbitration",
		Trigger: domain.Trigger{
			Any: []string{
				`\bbinding\s+arbitration\b`,
				`\b(?:mandatory|compulsory)\s+arbitration\b`,
				`\bwaive\w*\s+(?:\w+\s+){0,3}right\s+to\s+(?:a\s+)?(?:jury\s+trial|trial\s+by\s+jury|class\s+action|participate\s+in\s+a\s+class)`,
				`\bclass[\s-]action\s+waiver\b`,
			},
			Exclude: []string{`\bnon-?binding\b`},
		},
		Category:       domain.CategoryLegal,
		Severity:       domain.SeverityHigh,
		Description:    "Mandatory arbitration: disputes are kept out of court and class actions are waived (\"{{match}}\").",
		Recommendation: "Seek an arbitration opt-out, or preserve small-claims court and class action rights.",
	},
	{
		ID:            "joint-several-liability",
		Name:          "Joint and several liability",
		DocumentTypes: []domain.DocumentType{domain.DocLease, domain.DocContract, domain.DocLoanAgreement, domain.DocOther},
		Trigger: domain.Trigger{
			Any: []string{`\bjoint(?:ly)?\s+and\s+several(?:ly)?\b`},
		},
		Category:       domain.CategoryLegal,
		Severity:       domain.SeverityHigh,
		Description:    "Joint and several liability: each signer can be pursued for the whole obligation (\"{{match}}\").",
		Recommendation: "Ask for liability limited to your proportionate share of the obligation.",
	},
	{
		ID:   "unilateral-modification",
		Name: "Unilateral modification",
		Trigger: domain.Trigger{
			Any: []string{
				`\breserves?\s+the\s+right\s+to\s+(?:modify|change|amend|alter|update|revise)\b`,
				`\b(?:may|can)\s+(?:modify|change|amend|alter|update|revise)\s+(?:these|this|the|its|our)\s+(?:terms|agreement|policy|contract|fees|prices|rates)\b[^.;]{0,40}?\b(?:at\s+any\s+time|without\s+(?:prior\s+)?notice|sole\s+discretion)\b`,
				`\bat\s+(?:our|its)\s+sole\s+discretion\b[^.;]{0,40}?\b(?:modify|change|amend)\b`,
			},
			Exclude: []string{`\bmutual(?:ly)?\b|\bsigned\s+by\s+both\b|\bwritten\s+consent\s+of\s+(?:both|all)\b`},
		},
		Category:       domain.CategoryLegal,
		Severity:       domain.SeverityMedium,
		Description:    "Unilateral changes: terms can be rewritten without your consent (\"{{match}}\").",
		Recommendation: "Require advance written notice of changes and a right to exit without penalty if you reject them.",
	},
	{
		ID:   "termination-for-convenience",
		Name: "One-sided termination",
		Trigger: domain.Trigger{
			Any: []string{
				`\bterminat\w*\s+(?:\w+\s+){0,4}(?:for\s+any\s+reason|without\s+cause|for\s+convenience|at\s+(?:its|our)\s+(?:sole\s+)?discretion)\b`,
			},
			Exclude: []string{`\beither\s+party\b|\bboth\s+parties\b`},
		},
		Category:       domain.CategoryLegal,
		Severity:       domain.SeverityMedium,
		Description:    "One-sided termination: the relationship can be ended without cause (\"{{match}}\").",
		Recommendation: "Negotiate a mutual termination right with a reasonable notice period.",
	},
	{
		ID:            "confession-of-judgment",
		Name:          "Confession of judgment",
		DocumentTypes: financialDocs,
		Trigger: domain.Trigger{
			Any: []string{`\bconfess(?:ion|es)?\s+(?:of\s+)?judgment\b`, `\bcognovit\b`},
		},
		Category:       domain.CategoryLegal,
		Severity:       domain.SeverityHigh,
		Description:    "Confession of judgment: defenses are waived before any lawsuit is filed (\"{{match}}\").",
		Recommendation: "Strike any confession-of-judgment provision; it removes your right to defend yourself in court.",
	},
	{
		ID:            "non-compete",
		Name:          "Restrictive covenant",
		DocumentTypes: []domain.DocumentType{domain.DocContract, domain.DocOther},
		Trigger: domain.Trigger{
			Any: []string{
				`\bnon-?compet(?:e|ition)\b`,
				`\b(?:shall|will|agrees?\s+to)\s+not\s+(?:directly\s+or\s+indirectly\s+)?(?:compete|solicit)\b`,
			},
		},
		Category:       domain.CategoryLegal,
		Severity:       domain.SeverityMedium,
		Description:    "Restrictive covenant: competing or soliciting is barred after the relationship ends (\"{{match}}\").",
		Recommendation: "Narrow the restriction's duration and geography, or remove it.",
	},

	// Financial
	{
		ID:   "automatic-renewal",
		Name: "Automatic renewal",
		Trigger: domain.Trigger{
			Any: []string{
				`\bauto(?:matic(?:ally)?|-)?\s*renew(?:s|ed|al|ing)?\b`,
				`\bshall\s+renew\s+(?:automatically|for\s+successive)\b`,
			},
			Exclude: []string{
				rewardContext,
				`\b(?:will|shall|does)\s+not\s+(?:automatically\s+)?renew\b`,
			},
		},
		Category:       domain.CategoryFinancial,
		Severity:       domain.SeverityMedium,
		Description:    "Automatic renewal: the term rolls over and keeps billing unless cancelled in time (\"{{match}}\").",
		Recommendation: "Calendar the cancellation deadline and ask for a reminder before each renewal.",
	},
	{
		ID:   "late-fees",
		Name: "Late payment penalties",
		Trigger: domain.Trigger{
			Any: []string{
				`\blate\s+(?:payment\s+)?(?:fee|charge|penalt(?:y|ies))s?\b`,
				`\b(?:fee|penalty|charge)\s+(?:of\s+)?[^.;]{0,30}?\bfor\s+(?:each\s+)?(?:late|overdue|missed)\s+payments?\b`,
			},
			Exclude: []string{`\bno\s+late\s+(?:payment\s+)?(?:fee|charge|penalt)|\bwaive[sd]?\s+(?:all\s+)?late\b`},
		},
		Category:       domain.CategoryFinancial,
		Severity:       domain.SeverityMedium,
		Description:    "Late payment penalties: extra charges accrue on overdue amounts (\"{{match}}\").",
		Recommendation: "Confirm the grace period and cap late fees at a reasonable fixed amount.",
	},
	{
		ID:            "variable-interest-rate",
		Name:          "Variable interest rate",
		DocumentTypes: financialDocs,
		Trigger: domain.Trigger{
			Any: []string{
				`\b(?:variable|adjustable|floating)(?:[\s-]+(?:interest|annual\s+percentage))?[\s-]+rate\b`,
				`\binterest\s+rate\s+(?:may|will|can|shall)\s+(?:\w+\s+)?(?:change|increase|adjust|vary|fluctuate)\b`,
			},
			Exclude: []string{`\bnot\s+(?:a\s+)?(?:variable|adjustable|floating)\b|\bfixed\s+for\s+the\s+(?:entire|full|life)\b`},
		},
		Category:       domain.CategoryFinancial,
		Severity:       domain.SeverityHigh,
		Description:    "Variable interest rate: the rate and your payments can rise over time (\"{{match}}\").",
		Recommendation: "Ask for a fixed rate, or a cap on how far and how often the rate can change.",
	},
	{
		ID:            "prepayment-penalty",
		Name:          "Prepayment penalty",
		DocumentTypes: financialDocs,
		Trigger: domain.Trigger{
			Any: []string{
				`\bprepayment\s+(?:penalty|penalties|fee|charge|premium)\b`,
				`\b(?:penalty|fee|charge)\s+for\s+(?:early\s+(?:re)?payment|prepay(?:ing|ment)|paying\s+(?:\w+\s+){0,3}off\s+early)\b`,
			},
			Exclude: []string{`\bno\s+prepayment\b|\bwithout\s+(?:a\s+|any\s+)?(?:prepayment\s+)?(?:penalty|fee)\b`},
		},
		Category:       domain.CategoryFinancial,
		Severity:       domain.SeverityMedium,
		Description:    "Prepayment penalty: paying off the balance early costs extra (\"{{match}}\").",
		Recommendation: "Negotiate removal of the prepayment penalty or a schedule that phases it out.",
	},
	{
		ID:            "balloon-payment",
		Name:          "Balloon payment",
		DocumentTypes: financialDocs,
		Trigger: domain.Trigger{
			Any: []string{`\bballoon\s+payment\b`, `\bfinal\s+lump[\s-]sum\s+payment\b`},
		},
		Category:       domain.CategoryFinancial,
		Severity:       domain.SeverityHigh,
		Description:    "Balloon payment: a large lump sum falls due at maturity (\"{{match}}\").",
		Recommendation: "Plan for refinancing the balloon payment now, or ask for a fully amortizing schedule.",
	},
	{
		ID:            "loan-acceleration",
		Name:          "Acceleration clause",
		DocumentTypes: financialDocs,
		Trigger: domain.Trigger{
			Any: []string{
				`\baccelerat\w*\s+(?:\w+\s+){0,3}(?:loan|balance|debt|indebtedness|obligations?|note)\b`,
				`\b(?:immediately\s+due\s+and\s+payable|due\s+and\s+payable\s+immediately)\b`,
			},
		},
		Category:       domain.CategoryFinancial,
		Severity:       domain.SeverityMedium,
		Description:    "Acceleration clause: the outstanding balance can be called due at once (\"{{match}}\").",
		Recommendation: "Require written notice and a cure period before the balance can be accelerated.",
	},
	{
		ID:            "deposit-forfeiture",
		Name:          "Security deposit forfeiture",
		DocumentTypes: leaseDocs,
		Trigger: domain.Trigger{
			Any: []string{
				`\b(?:forfeit|retain|keep)\w*\s+(?:\w+\s+){0,3}security\s+deposit\b`,
				`\bsecurity\s+deposit\s+(?:is|shall\s+be)\s+(?:non-?refundable|forfeited)\b`,
				`\bnon-?refundable\s+(?:security\s+)?deposit\b`,
			},
			Exclude: []string{`\breturn(?:ed|s)?\b`},
		},
		Category:       domain.CategoryFinancial,
		Severity:       domain.SeverityMedium,
		Description:    "Security deposit forfeiture: the deposit can be withheld in full (\"{{match}}\").",
		Recommendation: "Limit deposit deductions to documented damage beyond normal wear and tear.",
	},

	// Privacy
	{
		ID:   "third-party-data-sharing",
		Name: "Third-party data sharing",
		Trigger: domain.Trigger{
			Any: []string{
				`\b(?:share|sell|disclose|transfer|rent|provide)\w*\s+(?:\w+\s+){0,4}(?:information|data)\s+(?:\w+\s+){0,2}(?:with|to)\s+(?:\w+\s+){0,2}(?:third[\s-]part(?:y|ies)|partners|affiliates|advertisers|marketers|vendors)\b`,
				`\bthird[\s-]part(?:y|ies)\s+(?:may\s+)?(?:access|receive|collect|use)\s+(?:\w+\s+){0,2}(?:information|data)\b`,
			},
			Exclude: []string{shareNegation},
			Window:  60,
		},
		Category:       domain.CategoryPrivacy,
		Severity:       domain.SeverityHigh,
		Description:    "Third-party data sharing: personal information goes to outside companies (\"{{match}}\").",
		Recommendation: "Opt out of data sharing where possible and ask for the list of recipients and purposes.",
	},
	{
		ID:   "indefinite-retention",
		Name: "Indefinite data retention",
		Trigger: domain.Trigger{
			Any: []string{
				`\b(?:retain|store|keep|hold)\w*\s+(?:\w+\s+){0,4}(?:data|information|records)\s+(?:\w+\s+){0,3}(?:indefinitely|permanently|forever|in\s+perpetuity)\b`,
				`\b(?:indefinite|unlimited|permanent|perpetual)\s+(?:data\s+)?(?:retention|storage)\b`,
				`\b(?:retain|store|keep)\w*\s+(?:\w+\s+){0,4}(?:data|information)\s+for\s+as\s+long\s+as\s+(?:we|it|the\s+company)\s+(?:deems?|considers?|sees?\s+fit|wish(?:es)?)\b`,
			},
			Exclude: []string{keepNegation},
		},
		Category:       domain.CategoryPrivacy,
		Severity:       domain.SeverityMedium,
		Description:    "Indefinite data retention: personal records are kept with no deletion deadline (\"{{match}}\").",
		Recommendation: "Ask for a defined retention period and a way to request deletion of your data.",
	},
	{
		ID:   "invasive-tracking",
		Name: "Invasive tracking",
		Trigger: domain.Trigger{
			Any: []string{
				`\bbiometric\s+(?:data|information|identifiers?)\b`,
				`\b(?:track|monitor|collect)\w*\s+(?:\w+\s+){0,2}(?:precise\s+)?(?:geo)?location\b`,
				`\bcross[\s-](?:site|device)\s+tracking\b`,
			},
			Exclude: []string{`\b(?:do|does|will)\s+not\s+(?:\w+\s+)?(?:track|collect|monitor)\b|\bnever\s+(?:track|collect|monitor)\b`},
		},
		Category:       domain.CategoryPrivacy,
		Severity:       domain.SeverityMedium,
		Description:    "Invasive tracking: location or biometric identifiers are collected (\"{{match}}\").",
		Recommendation: "Disable location and tracking permissions, and ask how biometric identifiers are secured and deleted.",
	},

	// Operational
	{
		ID:            "service-suspension",
		Name:          "Service suspension",
		DocumentTypes: []domain.DocumentType{domain.DocTermsOfService, domain.DocContract, domain.DocOther},
		Trigger: domain.Trigger{
			Any: []string{
				`\b(?:suspend|terminate|disable|discontinue)\w*\s+(?:\w+\s+){0,3}(?:access|account|services?)\s+(?:\w+\s+){0,3}(?:at\s+any\s+time|without\s+(?:prior\s+)?notice|for\s+any\s+reason)\b`,
			},
		},
		Category:       domain.CategoryOperational,
		Severity:       domain.SeverityMedium,
		Description:    "Service suspension: access can be cut off without warning (\"{{match}}\").",
		Recommendation: "Ask for advance notice and a chance to export your data before any suspension.",
	},
	{
		ID:   "as-is-disclaimer",
		Name: "As-is disclaimer",
		Trigger: domain.Trigger{
			Any: []string{
				`\bas[\s-]is["']?\s+(?:and\s+["']?as[\s-]available["']?\s+)?(?:basis\s+)?(?:and\s+)?without\s+(?:any\s+)?warrant(?:y|ies)\b`,
				`\bdisclaims?\s+(?:all\s+)?(?:implied\s+)?warrant(?:y|ies)\b`,
				`\bno\s+(?:uptime|availability|service[\s-]level)\s+(?:guarantee|commitment)\b`,
			},
		},
		Category:       domain.CategoryOperational,
		Severity:       domain.SeverityLow,
		Description:    "As-is disclaimer: no warranty of quality or availability is given (\"{{match}}\").",
		Recommendation: "Ask for a service-level commitment with remedies if the service fails.",
	},
	{
		ID:            "tenant-repair-burden",
		Name:          "Tenant repair burden",
		DocumentTypes: []domain.DocumentType{domain.DocLease},
		Trigger: domain.Trigger{
			Any: []string{
				`\btenant\s+(?:shall|will|must|is)\s+(?:be\s+)?(?:solely\s+)?(?:responsible|liable)\s+for\s+(?:all\s+)?(?:repairs?|maintenance)\b`,
			},
		},
		Category:       domain.CategoryOperational,
		Severity:       domain.SeverityMedium,
		Description:    "Repair burden shifted: upkeep of the premises falls on the tenant (\"{{match}}\").",
		Recommendation: "Limit tenant repairs to damage the tenant causes; structural and system repairs belong with the landlord.",
	},

	// Supplementary checks. Headlines match the generic concept they back up.
	{
		ID:            "loan-rate-reset",
		Name:          "Index-linked rate",
		DocumentTypes: []domain.DocumentType{domain.DocLoanAgreement},
		Supplementary: true,
		Trigger: domain.Trigger{
			Any: []string{
				`\brate\s+(?:is\s+)?subject\s+to\s+(?:change|adjustment)\b`,
				`\b(?:prime\s+rate|sofr|libor|index\s+rate)\s+plus\b`,
				`\b(?:prime|sofr|libor)\s*\+\s*\d`,
			},
		},
		Category:       domain.CategoryFinancial,
		Severity:       domain.SeverityHigh,
		Description:    "Variable interest rate: the loan rate follows an index or can be reset (\"{{match}}\").",
		Recommendation: "Ask for a fixed rate, or a cap on how far and how often the rate can change.",
	},
	{
		ID:            "loan-early-payoff-fee",
		Name:          "Early payoff fee",
		DocumentTypes: []domain.DocumentType{domain.DocLoanAgreement},
		Supplementary: true,
		Trigger: domain.Trigger{
			Any: []string{
				`\bpay(?:ing|s)?\s+(?:\w+\s+){0,3}off\s+(?:\w+\s+){0,2}early\b[^.;]{0,60}?\b(?:fee|charge|penalty|premium)\b`,
				`\b(?:yield\s+maintenance|make[\s-]whole)\b`,
			},
			Exclude: []string{`\bno\s+(?:fee|charge|penalty)\b|\bwithout\s+(?:a\s+|any\s+)?(?:fee|charge|penalty)\b`},
		},
		Category:       domain.CategoryFinancial,
		Severity:       domain.SeverityMedium,
		Description:    "Prepayment penalty: early payoff of the loan triggers a fee (\"{{match}}\").",
		Recommendation: "Negotiate removal of the prepayment penalty or a schedule that phases it out.",
	},
	{
		ID:            "privacy-partner-sharing",
		Name:          "Partner data sharing",
		DocumentTypes: []domain.DocumentType{domain.DocPrivacyPolicy},
		Supplementary: true,
		Trigger: domain.Trigger{
			Any: []string{
				`\b(?:share|disclose)\w*\s+[^.;]{0,60}?\bwith\s+(?:our\s+)?(?:marketing\s+|business\s+|advertising\s+)?(?:partners|affiliates|advertisers|sponsors)\b`,
				`\bsale\s+of\s+(?:your\s+)?personal\s+(?:data|information)\b`,
			},
			Exclude: []string{shareNegation},
			Window:  60,
		},
		Category:       domain.CategoryPrivacy,
		Severity:       domain.SeverityHigh,
		Description:    "Third-party data sharing: personal information is passed to partners or sold (\"{{match}}\").",
		Recommendation: "Opt out of data sharing where possible and ask for the list of recipients and purposes.",
	},
	{
		ID:            "privacy-open-retention",
		Name:          "Open-ended retention",
		DocumentTypes: []domain.DocumentType{domain.DocPrivacyPolicy},
		Supplementary: true,
		Trigger: domain.Trigger{
			Any: []string{
				`\bretain\w*\b[^.;]{0,60}?\b(?:as\s+long\s+as\s+(?:necessary|needed|required\s+for\s+our)|for\s+an\s+indefinite\s+period)\b`,
			},
			Exclude: []string{keepNegation},
		},
		Category:       domain.CategoryPrivacy,
		Severity:       domain.SeverityMedium,
		Description:    "Indefinite data retention: no fixed deletion period is stated (\"{{match}}\").",
		Recommendation: "Ask for a defined retention period and a way to request deletion of your data.",
	},
	{
		ID:            "lease-joint-rent",
		Name:          "Shared rent liability",
		DocumentTypes: []domain.DocumentType{domain.DocLease},
		Supplementary: true,
		Trigger: domain.Trigger{
			Any: []string{
				`\beach\s+(?:tenant|resident|occupant)\s+(?:is|shall\s+be)\s+(?:\w+\s+)?(?:responsible|liable)\s+for\s+(?:the\s+)?(?:entire|full|total|whole)\s+(?:amount\s+of\s+(?:the\s+)?)?rent\b`,
			},
		},
		Category:       domain.CategoryLegal,
		Severity:       domain.SeverityHigh,
		Description:    "Joint and several liability: each tenant owes the entire rent (\"{{match}}\").",
		Recommendation: "Ask for liability limited to your proportionate share of the rent.",
	},
	{
		ID:            "lease-rollover",
		Name:          "Lease rollover",
		DocumentTypes: []domain.DocumentType{domain.DocLease},
		Supplementary: true,
		Trigger: domain.Trigger{
			Any: []string{
				`\blease\s+(?:will|shall)\s+(?:automatically\s+)?(?:renew|continue|convert)\s+(?:\w+\s+){0,3}month[\s-]to[\s-]month\b`,
				`\bunless\s+(?:either\s+party\s+|tenant\s+)?(?:gives|provides)\s+(?:written\s+)?notice\b[^.;]{0,60}?\brenew`,
			},
			Exclude: []string{rewardContext},
		},
		Category:       domain.CategoryFinancial,
		Severity:       domain.SeverityMedium,
		Description:    "Automatic renewal: the lease rolls over unless notice is given (\"{{match}}\").",
		Recommendation: "Calendar the notice deadline so the lease does not renew on terms you did not choose.",
	},
}

// Builtin returns a fresh copy of the built-in pattern table.
func Builtin() []domain.RiskPattern {
	out := make([]domain.RiskPattern, len(builtin))
	for i, p := range builtin {
		p.Version = BuiltinVersion
		p.Enabled = true
		p.Trigger.Any = append([]string(nil), p.Trigger.Any...)
		p.Trigger.All = append([]string(nil), p.Trigger.All...)
		p.Trigger.Exclude = append([]string(nil), p.Trigger.Exclude...)
		p.DocumentTypes = append([]domain.DocumentType(nil), p.DocumentTypes...)
		out[i] = p
	}
	return out
}

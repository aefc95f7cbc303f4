package aggregate

import (
	"fmt"

	"github.com/opensource-finance/covenant/internal/domain"
)

// categoryAdvice holds one recommendation per category, phrased for the document type.
var categoryAdvice = map[domain.DocumentType]map[domain.Category]string{
	domain.DocLease: {
		domain.CategoryLegal:       "Review the lease's liability and dispute terms with a tenant rights advisor before signing.",
		domain.CategoryFinancial:   "Check every rent, fee and deposit obligation in the lease, and negotiate caps on increases and penalties.",
		domain.CategoryPrivacy:     "Ask the landlord how tenant screening and personal information are stored and shared.",
		domain.CategoryOperational: "Get repair, maintenance and entry responsibilities under the lease confirmed in writing.",
	},
	domain.DocLoanAgreement: {
		domain.CategoryLegal:       "Have the loan's default, remedies and dispute provisions reviewed before you sign.",
		domain.CategoryFinancial:   "Model your loan payments under the worst-case rate and fee terms before committing.",
		domain.CategoryPrivacy:     "Ask the lender which credit and personal data it shares and with whom.",
		domain.CategoryOperational: "Confirm how loan servicing, statements and payment processing are handled.",
	},
	domain.DocPrivacyPolicy: {
		domain.CategoryLegal:       "Note which law governs the privacy policy and how disputes over your data are handled.",
		domain.CategoryFinancial:   "Check whether any paid features of the service depend on accepting the data practices described.",
		domain.CategoryPrivacy:     "Use the privacy controls and opt-outs the policy offers, and limit the personal data you provide.",
		domain.CategoryOperational: "Find out how the service notifies you of data breaches and policy changes.",
	},
	domain.DocTermsOfService: {
		domain.CategoryLegal:       "Pay particular attention to the dispute resolution and liability terms of the service.",
		domain.CategoryFinancial:   "Review billing, renewal and cancellation terms of the service before subscribing.",
		domain.CategoryPrivacy:     "Check what account and usage data the service collects and whether you can opt out.",
		domain.CategoryOperational: "Keep a backup of your data in case the service suspends or ends your account.",
	},
	domain.DocContract: {
		domain.CategoryLegal:       "Have counsel review the contract's liability, indemnity and dispute provisions.",
		domain.CategoryFinancial:   "Verify payment terms, penalties and renewal obligations in the contract.",
		domain.CategoryPrivacy:     "Add data protection terms to the contract covering confidential and personal data.",
		domain.CategoryOperational: "Clarify service levels, termination assistance and responsibilities in the contract.",
	},
	domain.DocOther: {
		domain.CategoryLegal:       "Have the legal terms reviewed, especially liability and dispute resolution.",
		domain.CategoryFinancial:   "Verify all payment obligations, fees and penalties before agreeing.",
		domain.CategoryPrivacy:     "Check how your personal information will be used and shared.",
		domain.CategoryOperational: "Confirm who is responsible for ongoing obligations and what happens if service stops.",
	},
}

// baselineAdvice is always included.
var baselineAdvice = map[domain.DocumentType]string{
	domain.DocLease:          "Confirm the rent amount, due dates and security deposit terms before signing the lease.",
	domain.DocLoanAgreement:  "Compare the total cost of the loan, including interest and fees, with other lenders.",
	domain.DocPrivacyPolicy:  "Note how to request access to or deletion of your data under this privacy policy.",
	domain.DocTermsOfService: "Keep a copy of these terms and review them when the service announces changes.",
	domain.DocContract:       "Keep a signed copy of the contract and calendar its key dates and deadlines.",
	domain.DocOther:          "Keep a copy of this document and note any deadlines it sets.",
}

// Recommend synthesizes the recommendation list: an attorney referral for
// high overall risk, one line per triggered category, the direct
// recommendations of high-severity findings and a document-type baseline.
func Recommend(dt domain.DocumentType, score domain.Severity, risks []domain.Risk) []string {
	dt = known(dt)
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	if len(risks) == 0 {
		add(fmt.Sprintf("No significant risks were detected in this %s. Automated review is not legal advice, so read it in full before signing.", dt.Noun()))
		add(baselineAdvice[dt])
		return out
	}

	if score == domain.SeverityHigh {
		add(fmt.Sprintf("Consult a qualified attorney before signing this %s.", dt.Noun()))
	}

	triggered := make(map[domain.Category]bool)
	for _, r := range risks {
		triggered[r.Category] = true
	}
	for _, c := range domain.Categories {
		if triggered[c] {
			add(categoryAdvice[dt][c])
		}
	}

	for _, r := range risks {
		if r.Severity == domain.SeverityHigh {
			add(r.Recommendation)
		}
	}

	add(baselineAdvice[dt])
	return out
}

func known(dt domain.DocumentType) domain.DocumentType {
	if _, ok := baselineAdvice[dt]; ok {
		return dt
	}
	return domain.DocOther
}

package qualify

import (
	"fmt"
	"strings"

	"github.com/instalily/leadqual/internal/model"
	"github.com/instalily/leadqual/internal/policy"
)

const systemPromptTemplate = `You are a B2B lead qualification analyst for %s. %s

Research the visitor below using public information about them and their company, then decide whether they are a qualified sales lead.

Qualified visitors work at companies in these industries:
%s

Disqualify outright:
%s
%s
Calibrate your bar so that roughly %d-%d%% of typical website visitors qualify.

Labeled examples:
%s
Respond in exactly this format:
Line 1: "Yes" or "No"
Line 2: "Score: N" where N is an integer from 1 (worst) to 10 (best)
Then bullet lines starting with "-" explaining your reasoning.
Optionally end with:
"Visitor summary: <one sentence about the person>"
"Company summary: <one sentence about the company>"`

const userPromptTemplate = `Website visitor:
%s`

// BuildSystemPrompt renders the classification system prompt from the policy.
func BuildSystemPrompt(p *policy.Policy) string {
	var guidance strings.Builder
	for _, g := range p.Guidance {
		guidance.WriteString("- ")
		guidance.WriteString(g)
		guidance.WriteString("\n")
	}

	var examples strings.Builder
	for _, ex := range p.Examples {
		verdict := "No"
		if ex.Qualified {
			verdict = "Yes"
		}
		fmt.Fprintf(&examples, "- %s, %s at %s (%s) -> %s (%s)\n",
			ex.Name, ex.Title, ex.Company, ex.Industry, verdict, ex.Note)
	}

	return fmt.Sprintf(systemPromptTemplate,
		p.SenderCompany,
		p.CompanyDescription,
		bulletList(p.TargetIndustries),
		bulletList(p.Competitors),
		guidance.String(),
		p.TargetRateLow,
		p.TargetRateHigh,
		examples.String(),
	)
}

// BuildUserPrompt renders the per-visitor prompt. Only fields the row
// actually carries are included, so missing values never leak as "nan"
// noise into the evaluation.
func BuildUserPrompt(v model.Visitor) string {
	var b strings.Builder
	add := func(label, val string) {
		if val != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, val)
		}
	}
	add("Name", v.FullName())
	add("Title", v.Title)
	add("Company", v.CompanyName)
	add("Industry", v.Industry)
	add("Email", v.Email)
	add("Website", v.Website)
	add("Country", v.Country)
	add("LinkedIn", v.LinkedInURL)
	return fmt.Sprintf(userPromptTemplate, b.String())
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return b.String()
}

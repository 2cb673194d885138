// Package policy holds the ideal-customer-profile policy that drives
// visitor qualification and outreach drafting. The policy ships with
// embedded defaults and can be overridden from a YAML file or a Notion
// database.
package policy

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ExampleRow is a labeled visitor example shown to the classifier.
type ExampleRow struct {
	Name      string `yaml:"name"`
	Title     string `yaml:"title"`
	Company   string `yaml:"company"`
	Industry  string `yaml:"industry"`
	Qualified bool   `yaml:"qualified"`
	Note      string `yaml:"note"`
}

// Policy describes who counts as a qualified lead and who is sending the
// outreach.
type Policy struct {
	// Seller identity, used in the email drafting prompt.
	SenderName    string `yaml:"sender_name"`
	SenderRole    string `yaml:"sender_role"`
	SenderCompany string `yaml:"sender_company"`

	// CompanyDescription is the one-paragraph pitch of what the seller does.
	CompanyDescription string `yaml:"company_description"`

	// TargetIndustries are the verticals a visitor's company should be in.
	TargetIndustries []string `yaml:"target_industries"`

	// Competitors are company categories that disqualify a visitor outright.
	Competitors []string `yaml:"competitors"`

	// TargetRateLow/High bound the expected share of qualified visitors, in
	// percent. The classifier is told to calibrate toward this band.
	TargetRateLow  int `yaml:"target_rate_low"`
	TargetRateHigh int `yaml:"target_rate_high"`

	// Guidance is extra free-form evaluation instructions, one per line.
	Guidance []string `yaml:"guidance"`

	// Examples are labeled visitors shown to the classifier.
	Examples []ExampleRow `yaml:"examples"`
}

// Default returns the built-in policy.
func Default() *Policy {
	return &Policy{
		SenderName:    "Sumo",
		SenderRole:    "co-founder",
		SenderCompany: "InstaLILY",
		CompanyDescription: "InstaLILY builds AI agents that automate operational " +
			"workflows for distributors and industrial businesses, cutting manual " +
			"work in sales, sourcing, and service operations.",
		TargetIndustries: []string{
			"Healthcare Distribution",
			"Industrial, Construction and Building Products Distribution",
			"Automotive Parts and Service",
			"Food and Beverage Distribution",
			"Private Equity Operating Roles",
		},
		Competitors: []string{
			"AI sales automation vendors",
			"lead generation platforms",
			"website visitor identification tools",
		},
		TargetRateLow:  25,
		TargetRateHigh: 35,
		Guidance: []string{
			"Senior operators (VP and above, owners, heads of operations or sales) score higher than individual contributors.",
			"Students, academics, job seekers, and investors researching the company are not buyers: disqualify them.",
			"If research surfaces conflicting facts about the person or company, discard the findings and restart the evaluation from the row's own fields.",
		},
		Examples: []ExampleRow{
			{Name: "Maria Velez", Title: "VP Supply Chain", Company: "MedEquip Partners", Industry: "Healthcare Distribution", Qualified: true, Note: "senior operator in a target vertical"},
			{Name: "Dan Okafor", Title: "Owner", Company: "Okafor Building Supply", Industry: "Construction Distribution", Qualified: true, Note: "owner of a distribution business"},
			{Name: "Priya Nair", Title: "Operating Partner", Company: "Granite Ridge Capital", Industry: "Private Equity", Qualified: true, Note: "PE operating role with portfolio influence"},
			{Name: "Tom Reyes", Title: "Student", Company: "State University", Industry: "Education", Qualified: false, Note: "student, not a buyer"},
			{Name: "Anna Kim", Title: "Growth Marketer", Company: "LeadRocket AI", Industry: "Software", Qualified: false, Note: "competitor researching the product"},
			{Name: "Luc Fontaine", Title: "Analyst", Company: "Meridian Ventures", Industry: "Venture Capital", Qualified: false, Note: "investor, not an operator"},
		},
	}
}

// LoadFile reads a policy YAML file and overlays it on the defaults.
// Fields absent from the file keep their default values.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "policy: read file %s", path)
	}

	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, eris.Wrap(err, "policy: parse file")
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Policy) validate() error {
	if len(p.TargetIndustries) == 0 {
		return eris.New("policy: target_industries must not be empty")
	}
	if p.TargetRateLow < 0 || p.TargetRateHigh > 100 || p.TargetRateLow > p.TargetRateHigh {
		return eris.Errorf("policy: bad target rate band %d-%d", p.TargetRateLow, p.TargetRateHigh)
	}
	return nil
}

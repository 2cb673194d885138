package policy

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/instalily/leadqual/pkg/notion"
)

// Notion database entry types. Each row in the policy database carries a
// Type select that says which part of the policy it feeds.
const (
	entryTypeIndustry   = "Industry"
	entryTypeCompetitor = "Competitor"
	entryTypeGuidance   = "Guidance"
	entryTypeExample    = "Example"
)

// FromNotion builds a policy from a Notion database, overlaying its rows
// on the defaults. Industry, competitor, and guidance rows replace the
// default lists when present; example rows replace the default examples.
func FromNotion(ctx context.Context, c notion.Client, dbID string) (*Policy, error) {
	pages, err := notion.QueryAll(ctx, c, dbID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "policy: query notion database")
	}

	p := Default()
	var industries, competitors, guidance []string
	var examples []ExampleRow

	for _, page := range pages {
		name := titleProp(page, "Name")
		switch selectProp(page, "Type") {
		case entryTypeIndustry:
			industries = append(industries, name)
		case entryTypeCompetitor:
			competitors = append(competitors, name)
		case entryTypeGuidance:
			guidance = append(guidance, name)
		case entryTypeExample:
			examples = append(examples, ExampleRow{
				Name:      name,
				Title:     textProp(page, "Title"),
				Company:   textProp(page, "Company"),
				Industry:  textProp(page, "Industry"),
				Qualified: checkboxProp(page, "Qualified"),
				Note:      textProp(page, "Note"),
			})
		default:
			zap.L().Debug("skipping policy row with unknown type",
				zap.String("page_id", string(page.ID)),
			)
		}
	}

	if len(industries) > 0 {
		p.TargetIndustries = industries
	}
	if len(competitors) > 0 {
		p.Competitors = competitors
	}
	if len(guidance) > 0 {
		p.Guidance = guidance
	}
	if len(examples) > 0 {
		p.Examples = examples
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// --- Notion property accessors ---

func titleProp(page notionapi.Page, name string) string {
	prop, ok := page.Properties[name].(*notionapi.TitleProperty)
	if !ok {
		return ""
	}
	return richTextString(prop.Title)
}

func textProp(page notionapi.Page, name string) string {
	prop, ok := page.Properties[name].(*notionapi.RichTextProperty)
	if !ok {
		return ""
	}
	return richTextString(prop.RichText)
}

func selectProp(page notionapi.Page, name string) string {
	prop, ok := page.Properties[name].(*notionapi.SelectProperty)
	if !ok {
		return ""
	}
	return prop.Select.Name
}

func checkboxProp(page notionapi.Page, name string) bool {
	prop, ok := page.Properties[name].(*notionapi.CheckboxProperty)
	if !ok {
		return false
	}
	return prop.Checkbox
}

func richTextString(rt []notionapi.RichText) string {
	var out string
	for _, t := range rt {
		out += t.PlainText
	}
	return out
}

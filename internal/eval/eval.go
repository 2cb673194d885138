package eval

import (
	"strings"

	"github.com/instalily/leadqual/internal/model"
)

// Report compares a run's classifications against hand labels. Qualified is
// the positive class: a true positive is a row both the labeler and the
// classifier marked qualified.
type Report struct {
	Labeled int
	Matched int

	TruePositives  int
	FalsePositives int
	FalseNegatives int
	TrueNegatives  int

	// Missed lists rows labeled qualified that the classifier rejected;
	// OverQualified lists the reverse.
	Missed        []string
	OverQualified []string
	// Unmatched lists labels with no corresponding classified row;
	// Unscored lists labels whose row failed classification.
	Unmatched []string
	Unscored  []string
}

// Precision is TP / (TP + FP). Zero when nothing was predicted qualified.
func (r *Report) Precision() float64 {
	if r.TruePositives+r.FalsePositives == 0 {
		return 0
	}
	return float64(r.TruePositives) / float64(r.TruePositives+r.FalsePositives)
}

// Recall is TP / (TP + FN). Zero when nothing was labeled qualified.
func (r *Report) Recall() float64 {
	if r.TruePositives+r.FalseNegatives == 0 {
		return 0
	}
	return float64(r.TruePositives) / float64(r.TruePositives+r.FalseNegatives)
}

// F1 is the harmonic mean of precision and recall.
func (r *Report) F1() float64 {
	p, rec := r.Precision(), r.Recall()
	if p+rec == 0 {
		return 0
	}
	return 2 * p * rec / (p + rec)
}

// Compare matches each label to a run result and tallies agreement. Labels
// match by email first, then by name plus company, case-insensitively.
func Compare(results []model.QualificationResult, labels []Label) *Report {
	byEmail := make(map[string]*model.QualificationResult)
	byIdentity := make(map[string]*model.QualificationResult)
	for i := range results {
		v := results[i].Visitor
		if v.Email != "" {
			byEmail[strings.ToLower(v.Email)] = &results[i]
		}
		if key := identityKey(v.FirstName, v.LastName, v.CompanyName); key != "" {
			byIdentity[key] = &results[i]
		}
	}

	rep := &Report{Labeled: len(labels)}
	for _, l := range labels {
		res := lookup(byEmail, byIdentity, l)
		if res == nil {
			rep.Unmatched = append(rep.Unmatched, l.Display())
			continue
		}
		if res.Status != model.ResultStatusSucceeded {
			rep.Unscored = append(rep.Unscored, l.Display())
			continue
		}

		rep.Matched++
		switch {
		case l.Qualified && res.Qualified:
			rep.TruePositives++
		case l.Qualified && !res.Qualified:
			rep.FalseNegatives++
			rep.Missed = append(rep.Missed, l.Display())
		case !l.Qualified && res.Qualified:
			rep.FalsePositives++
			rep.OverQualified = append(rep.OverQualified, l.Display())
		default:
			rep.TrueNegatives++
		}
	}
	return rep
}

func lookup(byEmail, byIdentity map[string]*model.QualificationResult, l Label) *model.QualificationResult {
	if l.Email != "" {
		if res, ok := byEmail[strings.ToLower(l.Email)]; ok {
			return res
		}
	}
	if key := identityKey(l.FirstName, l.LastName, l.Company); key != "" {
		if res, ok := byIdentity[key]; ok {
			return res
		}
	}
	return nil
}

func identityKey(first, last, company string) string {
	name := strings.TrimSpace(first + " " + last)
	if name == "" && company == "" {
		return ""
	}
	return strings.ToLower(name + "|" + company)
}

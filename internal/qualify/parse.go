package qualify

import (
	"regexp"
	"strconv"
	"strings"
)

// Reply is the structured content extracted from a classifier response.
type Reply struct {
	Qualified      bool
	Score          int
	Rationale      []string
	VisitorSummary string
	CompanySummary string
}

var (
	scoreRe    = regexp.MustCompile(`(?i)score:\s*(\d+)`)
	trailingRe = regexp.MustCompile(`(\d+)\s*(?:/\s*10)?\s*$`)
)

// ParseReply extracts the verdict, score, and rationale from a raw model
// reply. The verdict must lead the reply and the score must appear as
// "Score: N" (a bare trailing number is accepted as fallback); anything
// else is a *ParseError.
func ParseReply(text string) (*Reply, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &ParseError{Output: text, Reason: "empty reply"}
	}

	lines := strings.Split(trimmed, "\n")

	r := &Reply{}
	verdict, ok := parseVerdict(lines[0])
	if !ok {
		return nil, &ParseError{Output: text, Reason: "reply does not start with Yes or No"}
	}
	r.Qualified = verdict

	score, ok := parseScore(trimmed)
	if !ok {
		return nil, &ParseError{Output: text, Reason: "no score found"}
	}
	r.Score = clampScore(score)

	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "-"), strings.HasPrefix(line, "*"), strings.HasPrefix(line, "•"):
			r.Rationale = append(r.Rationale, strings.TrimSpace(strings.TrimLeft(line, "-*• ")))
		case hasFoldPrefix(line, "visitor summary:"):
			r.VisitorSummary = strings.TrimSpace(line[len("visitor summary:"):])
		case hasFoldPrefix(line, "company summary:"):
			r.CompanySummary = strings.TrimSpace(line[len("company summary:"):])
		}
	}

	return r, nil
}

func parseVerdict(line string) (qualified, ok bool) {
	word := strings.ToLower(strings.TrimSpace(line))
	word = strings.TrimLeft(word, "*#_ ")
	for _, cut := range []string{".", ",", ":", ";", "!", " "} {
		if i := strings.Index(word, cut); i >= 0 {
			word = word[:i]
		}
	}
	switch word {
	case "yes":
		return true, true
	case "no":
		return false, true
	default:
		return false, false
	}
}

func parseScore(text string) (int, bool) {
	if m := scoreRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n, true
		}
	}
	// Fallback: a bare number (optionally "/10") at the end of the reply.
	if m := trailingRe.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

func clampScore(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

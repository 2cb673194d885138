package qualify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReply(t *testing.T) {
	text := `Yes
Score: 8
- VP-level operator at a healthcare distributor
- Company squarely in a target vertical
Visitor summary: Jane Doe runs supply chain at MedEquip.
Company summary: MedEquip distributes medical equipment across the Midwest.`

	r, err := ParseReply(text)
	require.NoError(t, err)

	assert.True(t, r.Qualified)
	assert.Equal(t, 8, r.Score)
	require.Len(t, r.Rationale, 2)
	assert.Equal(t, "VP-level operator at a healthcare distributor", r.Rationale[0])
	assert.Equal(t, "Jane Doe runs supply chain at MedEquip.", r.VisitorSummary)
	assert.Equal(t, "MedEquip distributes medical equipment across the Midwest.", r.CompanySummary)
}

func TestParseReply_Verdicts(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		qualified bool
	}{
		{"plain yes", "Yes\nScore: 7", true},
		{"plain no", "No\nScore: 2", false},
		{"yes with punctuation", "Yes. Strong fit.\nScore: 9", true},
		{"lowercase", "no\nScore: 3", false},
		{"markdown bold", "**Yes**\nScore: 6", true},
		{"yes comma", "Yes, this visitor qualifies.\nScore: 8", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseReply(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.qualified, r.Qualified)
		})
	}
}

func TestParseReply_ScoreFormats(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"score line", "Yes\nScore: 7", 7},
		{"lowercase score", "Yes\nscore: 4", 4},
		{"inline score", "No. Score: 2 because student.", 2},
		{"trailing number", "Yes\nMy rating is 6", 6},
		{"trailing over ten", "Yes\nGreat fit: 9/10", 9},
		{"clamped high", "Yes\nScore: 15", 10},
		{"clamped low", "No\nScore: 0", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseReply(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Score)
		})
	}
}

func TestParseReply_Errors(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{"empty", "", "empty reply"},
		{"whitespace", "   \n  ", "empty reply"},
		{"no verdict", "The visitor seems interesting.\nScore: 5", "does not start with Yes or No"},
		{"maybe", "Maybe\nScore: 5", "does not start with Yes or No"},
		{"no score", "Yes\n- good fit but nothing numeric here", "no score found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReply(tt.text)
			require.Error(t, err)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Contains(t, pe.Reason, tt.reason)
			assert.Equal(t, tt.text, pe.Output)
		})
	}
}

func TestParseReply_BulletStyles(t *testing.T) {
	r, err := ParseReply("Yes\nScore: 7\n- dash bullet\n* star bullet\n• dot bullet")
	require.NoError(t, err)
	assert.Equal(t, []string{"dash bullet", "star bullet", "dot bullet"}, r.Rationale)
}

package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(index int, fields map[string]string) RawRow {
	return RawRow{Index: index, Fields: fields}
}

func TestNormalize(t *testing.T) {
	v, err := Normalize(row(3, map[string]string{
		"first_name":   "Jane",
		"last_name":    "Doe",
		"title":        "VP Operations",
		"company_name": "Acme Distribution",
		"industry":     "Industrial Distribution",
		"email":        "jane@acme.com",
		"website":      "acme.com",
		"country":      "United States",
		"linkedin_url": "linkedin.com/in/janedoe",
	}))
	require.NoError(t, err)

	assert.Equal(t, "3", v.RowID)
	assert.Equal(t, 3, v.RowIndex)
	assert.Equal(t, "Jane", v.FirstName)
	assert.Equal(t, "Doe", v.LastName)
	assert.Equal(t, "Acme Distribution", v.CompanyName)
	assert.Equal(t, "jane@acme.com", v.Email)
}

func TestNormalize_SentinelValues(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"nan", "nan"},
		{"uppercase NaN", "NaN"},
		{"n/a", "N/A"},
		{"none", "None"},
		{"null", "null"},
		{"dash", "-"},
		{"whitespace", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Normalize(row(1, map[string]string{
				"first_name": "Jane",
				"industry":   tt.value,
			}))
			require.NoError(t, err)
			assert.Empty(t, v.Industry)
		})
	}
}

func TestNormalize_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"all empty", map[string]string{}},
		{"only title", map[string]string{"title": "CEO"}},
		{"only sentinels", map[string]string{"first_name": "nan", "company_name": "N/A", "email": "none"}},
		{"only country", map[string]string{"country": "Germany", "industry": "Automotive"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(row(7, tt.fields))
			require.Error(t, err)

			var mre *MalformedRowError
			require.ErrorAs(t, err, &mre)
			assert.Equal(t, "7", mre.RowID)
		})
	}
}

func TestNormalize_AnyIdentitySuffices(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"name only", map[string]string{"first_name": "Jane"}},
		{"last name only", map[string]string{"last_name": "Doe"}},
		{"company only", map[string]string{"company_name": "Acme"}},
		{"email only", map[string]string{"email": "jane@acme.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(row(1, tt.fields))
			assert.NoError(t, err)
		})
	}
}

func TestNormalizeAll(t *testing.T) {
	rows := []RawRow{
		row(1, map[string]string{"first_name": "Jane", "company_name": "Acme"}),
		row(2, map[string]string{"title": "CEO"}), // malformed
		row(3, map[string]string{"email": "x@y.com"}),
	}

	visitors, malformed := NormalizeAll(rows)
	require.Len(t, visitors, 2)
	require.Len(t, malformed, 1)
	assert.Equal(t, "1", visitors[0].RowID)
	assert.Equal(t, "3", visitors[1].RowID)
	assert.Equal(t, "2", malformed[0].RowID)
}

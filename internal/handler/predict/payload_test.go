package predict

import (
	"testing"

	perrors "github.com/Meesho/BharatMLStack/predict-server/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		columns []string
		records [][]string
	}{
		{
			name:    "scalars become one row",
			body:    `{"age": 30, "income": 50000}`,
			columns: []string{"age", "income"},
			records: [][]string{{"30", "50000"}},
		},
		{
			name:    "arrays become rows",
			body:    `{"a": [1, 2, 3], "b": ["x", "y", "z"]}`,
			columns: []string{"a", "b"},
			records: [][]string{{"1", "x"}, {"2", "y"}, {"3", "z"}},
		},
		{
			name:    "field order is column order",
			body:    `{"zeta": 1, "alpha": 2, "mid": 3}`,
			columns: []string{"zeta", "alpha", "mid"},
			records: [][]string{{"1", "2", "3"}},
		},
		{
			name:    "number text is preserved",
			body:    `{"a": [1.50, 1e3, -0, 12345678901234567890]}`,
			columns: []string{"a"},
			records: [][]string{{"1.50"}, {"1e3"}, {"-0"}, {"12345678901234567890"}},
		},
		{
			name:    "null and booleans",
			body:    `{"a": [null, true], "b": ["", false]}`,
			columns: []string{"a", "b"},
			records: [][]string{{"", ""}, {"True", "False"}},
		},
		{
			name:    "scalar null is a single empty cell",
			body:    `{"a": null}`,
			columns: []string{"a"},
			records: [][]string{{""}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := Normalize([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.columns, rs.Columns())
			assert.Equal(t, tt.records, rs.Records())
			assert.Equal(t, len(tt.records), rs.Len())
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	pairs := [][2]string{
		{`{"age": 30, "income": 50000}`, `{"age": [30], "income": [50000]}`},
		{`{"a": "x", "b": null}`, `{"a": ["x"], "b": [null]}`},
		{`{"a": [1, 2], "b": [3, 4]}`, `{"a": [1, 2], "b": [3, 4]}`},
	}
	for _, p := range pairs {
		raw, err := Normalize([]byte(p[0]))
		require.NoError(t, err)
		normalized, err := Normalize([]byte(p[1]))
		require.NoError(t, err)
		assert.Equal(t, raw, normalized, p[0])
	}
}

func TestNormalizeMalformed(t *testing.T) {
	tests := map[string]string{
		"row length mismatch": `{"a": [1, 2], "b": [1]}`,
		"scalar vs list":      `{"a": [1, 2], "b": 1}`,
		"empty body":          ``,
		"invalid json":        `{"a": `,
		"array payload":       `[{"a": 1}]`,
		"scalar payload":      `42`,
		"null payload":        `null`,
		"empty object":        `{}`,
		"nested object":       `{"a": {"b": 1}}`,
		"nested array":        `{"a": [[1], [2]]}`,
		"object in array":     `{"a": [{"b": 1}]}`,
		"empty array":         `{"a": []}`,
		"duplicate field":     `{"a": 1, "a": 2}`,
		"trailing data":       `{"a": 1} {"b": 2}`,
		"trailing garbage":    `{"a": 1} x`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rs, err := Normalize([]byte(body))
			assert.Nil(t, rs)
			assert.Equal(t, perrors.KindMalformedPayload, perrors.KindOf(err), "%v", err)
		})
	}
}

func TestNormalizeMismatchNamesFields(t *testing.T) {
	_, err := Normalize([]byte(`{"a": [1, 2], "b": [1]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"b" has 1 values`)
	assert.Contains(t, err.Error(), `"a" has 2`)
}

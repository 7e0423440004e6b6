package schema_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mow-search/mow/schema"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		field schema.Field
		in    any
		want  any
	}{
		{"text passthrough", schema.NewField("text", schema.Text), "abc", "abc"},
		{"integer from int", schema.NewField("n", schema.Integer), 2653, int64(2653)},
		{"integer from string", schema.NewField("n", schema.Integer), "25", int64(25)},
		{"float", schema.NewField("f", schema.Float), 25.5, 25.5},
		{"decimal keeps string form", schema.NewField("price", schema.Decimal), "24.99", "24.99"},
		{"bool", schema.NewField("b", schema.Boolean), true, true},
		{"bool from string", schema.NewField("b", schema.Boolean), "true", true},
		{"multi value from ints", schema.NewField("sites", schema.MultiValue), []int{3, 5, 1}, []string{"3", "5", "1"}},
		{"multi value empty", schema.NewField("tags", schema.MultiValue), []string{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := schema.FormatValue(tt.field, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatValueDates(t *testing.T) {
	created := time.Date(2009, 11, 21, 21, 31, 0, 0, time.UTC)

	got, err := schema.FormatValue(schema.NewField("created", schema.DateTime), created)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	got, err = schema.FormatValue(schema.NewField("pub_date", schema.Date), created)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2009, 11, 21, 0, 0, 0, 0, time.UTC), got, "date kind truncates to midnight")
}

func TestFormatValueDefault(t *testing.T) {
	f := schema.NewField("is_active", schema.Boolean, schema.WithDefault(true))
	got, err := schema.FormatValue(f, nil)
	require.NoError(t, err)
	assert.Equal(t, true, got)

	plain := schema.NewField("name", schema.Keyword)
	got, err = schema.FormatValue(plain, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFormatValueErrors(t *testing.T) {
	_, err := schema.FormatValue(schema.NewField("n", schema.Integer), "not-a-number")
	require.Error(t, err)

	_, err = schema.FormatValue(schema.NewField("b", schema.Boolean), 3.14)
	require.Error(t, err)

	_, err = schema.FormatValue(schema.NewField("d", schema.DateTime), "yesterday")
	require.Error(t, err)
}

func TestParseValueRoundTrip(t *testing.T) {
	created := time.Date(2009, 11, 21, 21, 31, 0, 0, time.UTC)

	tests := []struct {
		name   string
		field  schema.Field
		stored any
		want   any
	}{
		{"text", schema.NewField("text", schema.Text), "abc", "abc"},
		{"integer from engine float", schema.NewField("n", schema.Integer), float64(25), int64(25)},
		{"float", schema.NewField("f", schema.Float), 3.6, 3.6},
		{"decimal", schema.NewField("price", schema.Decimal), "24.99", "24.99"},
		{"bool", schema.NewField("b", schema.Boolean), true, true},
		{"datetime from string", schema.NewField("created", schema.DateTime), "2009-11-21T21:31:00Z", created},
		{"multi value single element", schema.NewField("tags", schema.MultiValue), "staff", []string{"staff"}},
		{"multi value list", schema.NewField("sites", schema.MultiValue), []any{"3", "5", "1"}, []string{"3", "5", "1"}},
		{"nil stays nil", schema.NewField("x", schema.Keyword), nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := schema.ParseValue(tt.field, tt.stored)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoundTripAllKinds(t *testing.T) {
	created := time.Date(2009, 11, 21, 21, 31, 0, 0, time.UTC)

	cases := []struct {
		field schema.Field
		value any
	}{
		{schema.NewField("text", schema.Text), "This is some example text."},
		{schema.NewField("name", schema.Keyword), "Mister Pants"},
		{schema.NewField("is_active", schema.Boolean), true},
		{schema.NewField("post_count", schema.Integer), int64(25)},
		{schema.NewField("average_rating", schema.Float), 3.6},
		{schema.NewField("price", schema.Decimal), "24.99"},
		{schema.NewField("created", schema.DateTime), created},
		{schema.NewField("tags", schema.MultiValue), []string{"staff", "outdoor", "activist", "scientist"}},
		{schema.NewField("empty_list", schema.MultiValue), []string{}},
	}

	for _, tc := range cases {
		formatted, err := schema.FormatValue(tc.field, tc.value)
		require.NoError(t, err, tc.field.Name)

		parsed, err := schema.ParseValue(tc.field, formatted)
		require.NoError(t, err, tc.field.Name)
		assert.Equal(t, tc.value, parsed, tc.field.Name)
	}
}

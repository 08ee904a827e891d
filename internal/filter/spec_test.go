package filter

import (
	"errors"
	"net/url"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postSpec(t *testing.T) *Spec {
	t.Helper()
	spec, err := NewSpec("post", posts,
		Compare("title", "title", OpIContains),
		Compare("score_gte", "score", OpGte),
		Compare("published_at_lte", "published_at", OpLte),
		Compare("draft", "draft", OpExact),
		Compare("ids", "id", OpIn),
		Compare("author_name", "author.name", OpIContains),
		Custom("min_id", TypeInteger, func(q Query, value any) (Query, error) {
			if value.(int64) == 0 {
				return q, nil
			}
			return q.Where(sq.GtOrEq{posts.Qualified("id"): value}), nil
		}),
	)
	require.NoError(t, err)
	return spec
}

func TestNewSpecRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name  string
		field Field
	}{
		{"unknown column", Compare("x", "nope", OpExact)},
		{"unknown relation", Compare("x", "editor.name", OpExact)},
		{"unknown related column", Compare("x", "author.age", OpExact)},
		{"two hops", Compare("x", "author.name.first", OpExact)},
		{"operator type mismatch", Compare("x", "score", OpIContains)},
		{"unknown operator", Compare("x", "title", Operator("regex"))},
		{"custom without func", Custom("x", TypeText, nil)},
		{"custom without type", Custom("x", 0, func(q Query, _ any) (Query, error) { return q, nil })},
		{"zero field", Field{Name: "x"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSpec("post", posts, tc.field)
			var pathErr *InvalidFieldPathError
			require.ErrorAs(t, err, &pathErr)
			assert.Equal(t, "x", pathErr.Filter)
		})
	}
}

func TestNewSpecRejectsDuplicateNames(t *testing.T) {
	_, err := NewSpec("post", posts,
		Compare("title", "title", OpIContains),
		Compare("title", "title", OpExact),
	)
	var pathErr *InvalidFieldPathError
	require.ErrorAs(t, err, &pathErr)
	assert.Contains(t, pathErr.Error(), "duplicate")
}

func TestMustSpecPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustSpec("post", posts, Compare("x", "nope", OpExact))
	})
}

func TestSpecBindCoercesValues(t *testing.T) {
	spec := postSpec(t)

	bindings, err := spec.Bind(Request{
		"title":            "  Hello ",
		"score_gte":        "10.50",
		"published_at_lte": "2024-03-01T00:00:00Z",
		"draft":            "True",
		"ids":              "1, 2,,3",
		"min_id":           float64(4),
		"unknown":          "ignored",
	})
	require.NoError(t, err)
	require.Len(t, bindings, 6)

	values := map[string]any{}
	for _, b := range bindings {
		values[b.Field.Name] = b.Value
	}
	assert.Equal(t, "Hello", values["title"])
	assert.True(t, decimal.RequireFromString("10.5").Equal(values["score_gte"].(decimal.Decimal)))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), values["published_at_lte"].(time.Time).UTC())
	assert.Equal(t, true, values["draft"])
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, values["ids"])
	assert.Equal(t, int64(4), values["min_id"])
}

func TestSpecBindSkipsEmptyValues(t *testing.T) {
	spec := postSpec(t)

	bindings, err := spec.Bind(Request{
		"title":     "   ",
		"score_gte": nil,
		"ids":       " , ",
		"draft":     []string{},
	})
	require.NoError(t, err)
	assert.Empty(t, bindings)
}

func TestSpecBindTakesLastRepeatedValue(t *testing.T) {
	spec := postSpec(t)

	bindings, err := spec.Bind(Request{"title": []string{"first", "second", " "}})
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, "second", bindings[0].Value)
}

func TestSpecBindReportsEveryInvalidValue(t *testing.T) {
	spec := postSpec(t)

	_, err := spec.Bind(Request{
		"score_gte":        "cheap",
		"published_at_lte": "yesterday-ish",
		"min_id":           "2.5",
		"ids":              "1,x",
		"title":            "fine",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFilterValue))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "post", verr.Entity)
	assert.Equal(t, []string{"score_gte", "published_at_lte", "ids", "min_id"}, verr.Filters())
	assert.Equal(t, "decimal", verr.Errors[0].Expected)
	assert.Equal(t, "list of integer", verr.Errors[2].Expected)
}

func TestSpecUnknown(t *testing.T) {
	spec := postSpec(t)
	assert.Equal(t, []string{"colour", "zzz"}, spec.Unknown(Request{"zzz": 1, "title": "a", "colour": "red"}))
	assert.Empty(t, spec.Unknown(Request{"title": "a"}))
}

func TestSpecFieldsAreCopied(t *testing.T) {
	spec := postSpec(t)
	fields := spec.Fields()
	fields[0].Name = "changed"

	f, ok := spec.Field("title")
	require.True(t, ok)
	assert.Equal(t, TypeText, f.Type)
	assert.Equal(t, "title", spec.Fields()[0].Name)
}

func TestFromValues(t *testing.T) {
	req := FromValues(url.Values{
		"title":  {"go"},
		"tags":   {"a", "b"},
		"limit":  {"5"},
		"empty":  {},
		"offset": {"10"},
	}, "limit", "offset")

	assert.Equal(t, Request{"title": "go", "tags": []string{"a", "b"}}, req)
}

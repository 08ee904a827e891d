package filter

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	authors = &Table{
		Name:       "authors",
		PrimaryKey: "id",
		Columns: []Column{
			{Name: "id", Type: TypeInteger},
			{Name: "name", Type: TypeText},
		},
	}
	tags = &Table{
		Name:       "tags",
		PrimaryKey: "id",
		Columns: []Column{
			{Name: "id", Type: TypeInteger},
			{Name: "label", Type: TypeText},
		},
	}
	posts = &Table{
		Name:       "posts",
		PrimaryKey: "id",
		Columns: []Column{
			{Name: "id", Type: TypeInteger},
			{Name: "title", Type: TypeText},
			{Name: "score", Type: TypeDecimal},
			{Name: "published_at", Type: TypeTimestamp},
			{Name: "draft", Type: TypeBoolean},
		},
		Relations: []Relation{
			{Name: "author", Kind: BelongsTo, Target: authors, LocalKey: "author_id"},
			{Name: "tags", Kind: ManyToMany, Target: tags, Through: "post_tags", ThroughLocal: "post_id", ThroughRemote: "tag_id"},
		},
	}
)

func TestQueryFilterLocalColumn(t *testing.T) {
	q, err := NewQuery(posts).Filter("title", OpIContains, "Go_Lang")
	require.NoError(t, err)

	sql, args, err := q.Select("posts.id").ToSql()
	require.NoError(t, err)
	assert.Equal(t, `SELECT posts.id FROM posts WHERE LOWER(posts.title) LIKE ? ESCAPE '\'`, sql)
	assert.Equal(t, []any{`%go\_lang%`}, args)
}

func TestQueryFilterOperators(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		op    Operator
		value any
		want  string
		args  []any
	}{
		{"exact", "id", OpExact, int64(3), "posts.id = ?", []any{int64(3)}},
		{"eq nil", "title", OpEq, nil, "posts.title IS NULL", nil},
		{"gte", "score", OpGte, 10, "posts.score >= ?", []any{10}},
		{"lte", "score", OpLte, 20, "posts.score <= ?", []any{20}},
		{"lt", "id", OpLt, 5, "posts.id < ?", []any{5}},
		{"in", "id", OpIn, []any{int64(1), int64(2)}, "posts.id IN (?,?)", []any{int64(1), int64(2)}},
		{"startswith", "title", OpStartsWith, "50%", `posts.title LIKE ? ESCAPE '\'`, []any{`50\%%`}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, err := NewQuery(posts).Filter(tc.path, tc.op, tc.value)
			require.NoError(t, err)
			sql, args, err := q.Select("posts.id").ToSql()
			require.NoError(t, err)
			assert.Equal(t, "SELECT posts.id FROM posts WHERE "+tc.want, sql)
			assert.Equal(t, tc.args, args)
		})
	}
}

func TestQueryBelongsToJoinIsReused(t *testing.T) {
	q, err := NewQuery(posts).Filter("author.name", OpIContains, "ann")
	require.NoError(t, err)
	q, err = q.Filter("author.id", OpExact, int64(7))
	require.NoError(t, err)

	sql, _, err := q.Select("posts.id").ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT posts.id FROM posts JOIN authors AS author ON author.id = posts.author_id"+
			` WHERE LOWER(author.name) LIKE ? ESCAPE '\' AND author.id = ?`,
		sql)
	assert.False(t, q.IsDistinct())
}

func TestQueryManyToManyJoinPerPredicate(t *testing.T) {
	q, err := NewQuery(posts).Filter("tags.label", OpIContains, "go")
	require.NoError(t, err)
	q, err = q.Filter("tags.id", OpExact, int64(2))
	require.NoError(t, err)
	require.True(t, q.IsDistinct())

	sql, _, err := q.Select("posts.id").ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT DISTINCT posts.id FROM posts"+
			" JOIN post_tags AS tags_1_link ON tags_1_link.post_id = posts.id"+
			" JOIN tags AS tags_1 ON tags_1.id = tags_1_link.tag_id"+
			" JOIN post_tags AS tags_2_link ON tags_2_link.post_id = posts.id"+
			" JOIN tags AS tags_2 ON tags_2.id = tags_2_link.tag_id"+
			` WHERE LOWER(tags_1.label) LIKE ? ESCAPE '\' AND tags_2.id = ?`,
		sql)

	count, _, err := q.Count().ToSql()
	require.NoError(t, err)
	assert.Contains(t, count, "SELECT COUNT(DISTINCT posts.id) FROM posts JOIN")
}

func TestQueryIsImmutable(t *testing.T) {
	base, err := NewQuery(posts).Filter("title", OpIContains, "a")
	require.NoError(t, err)

	left, err := base.Filter("score", OpGte, 1)
	require.NoError(t, err)
	right, err := base.Filter("tags.label", OpExact, "x")
	require.NoError(t, err)

	assert.Equal(t, 1, base.Conditions())
	assert.Equal(t, 2, left.Conditions())
	assert.Equal(t, 2, right.Conditions())
	assert.False(t, base.IsDistinct())
	assert.False(t, left.IsDistinct())

	leftSQL, _, err := left.Select("posts.id").ToSql()
	require.NoError(t, err)
	assert.NotContains(t, leftSQL, "tags")
}

func TestQueryFilterRejectsBadPaths(t *testing.T) {
	_, err := NewQuery(posts).Filter("missing", OpEq, 1)
	assert.Error(t, err)

	_, err = NewQuery(posts).Filter("author.missing", OpEq, 1)
	assert.Error(t, err)

	_, err = NewQuery(posts).Filter("author.name.first", OpEq, 1)
	assert.Error(t, err)

	_, err = NewQuery(posts).Filter("draft", OpIContains, "x")
	assert.Error(t, err)
}

func TestQueryWhereAndOrder(t *testing.T) {
	q := NewQuery(posts).
		Where(sq.Expr("posts.score > posts.id")).
		OrderBy("posts.title ASC", "posts.id ASC")

	sql, _, err := q.Select("posts.id").PlaceholderFormat(sq.Dollar).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT posts.id FROM posts WHERE posts.score > posts.id ORDER BY posts.title ASC, posts.id ASC", sql)

	count, _, err := q.Count().ToSql()
	require.NoError(t, err)
	assert.NotContains(t, count, "ORDER BY")
}

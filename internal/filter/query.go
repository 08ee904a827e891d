package filter

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/spf13/cast"
)

// Predicate is a single comparison between a field path and a value.
type Predicate struct {
	Path  string
	Op    Operator
	Value any
}

type joinClause struct {
	// key identifies reusable to-one joins; empty for to-many joins.
	key   string
	alias string
	sql   []string
}

// Query is an immutable, composable selection over one table. Every narrowing
// method returns a new Query and leaves the receiver untouched, so a Query can
// be shared between goroutines and reused as a base for several requests.
type Query struct {
	table    *Table
	joins    []joinClause
	where    []sq.Sqlizer
	orderBy  []string
	distinct bool
	aliasSeq int
}

// NewQuery returns an unfiltered query over t.
func NewQuery(t *Table) Query {
	return Query{table: t}
}

// Table returns the table the query selects from.
func (q Query) Table() *Table {
	return q.table
}

// IsDistinct reports whether rows are de-duplicated.
func (q Query) IsDistinct() bool {
	return q.distinct
}

// Conditions returns the number of predicates applied so far.
func (q Query) Conditions() int {
	return len(q.where)
}

// Distinct marks the query as de-duplicating rows of the base table.
func (q Query) Distinct() Query {
	q.distinct = true
	return q
}

// Where narrows the query with a raw condition.
func (q Query) Where(cond sq.Sqlizer) Query {
	q.where = append(slices.Clip(q.where), cond)
	return q
}

// OrderBy appends ordering expressions.
func (q Query) OrderBy(exprs ...string) Query {
	q.orderBy = append(slices.Clip(q.orderBy), exprs...)
	return q
}

// Apply narrows the query with p.
func (q Query) Apply(p Predicate) (Query, error) {
	return q.Filter(p.Path, p.Op, p.Value)
}

// Filter narrows the query with a comparison on path. Paths of the form
// "relation.column" join the related table: to-one joins are shared between
// predicates, while every predicate over a to-many relation gets its own join
// and turns the query distinct.
func (q Query) Filter(path string, op Operator, value any) (Query, error) {
	if q.table == nil {
		return Query{}, errors.New("filter on a query without a table")
	}
	if !op.Valid() {
		return Query{}, fmt.Errorf("unknown operator %q", op)
	}

	fp, err := q.table.resolve(path)
	if err != nil {
		return Query{}, err
	}
	if !op.Accepts(fp.column.Type) {
		return Query{}, fmt.Errorf("operator %s cannot compare %s column %q", op, fp.column.Type, path)
	}

	next := q
	alias := q.table.Name
	if fp.relation != nil {
		next, alias = q.join(*fp.relation)
	}

	cond, err := comparison(alias+"."+fp.column.Name, op, value)
	if err != nil {
		return Query{}, fmt.Errorf("filter %s: %w", path, err)
	}
	return next.Where(cond), nil
}

func (q Query) join(rel Relation) (Query, string) {
	base := q.table.Name
	target := rel.Target

	if rel.Kind == BelongsTo {
		for _, j := range q.joins {
			if j.key == rel.Name {
				return q, j.alias
			}
		}
		alias := rel.Name
		q.joins = append(slices.Clip(q.joins), joinClause{
			key:   rel.Name,
			alias: alias,
			sql: []string{fmt.Sprintf("%s AS %s ON %s.%s = %s.%s",
				target.Name, alias, alias, target.PrimaryKey, base, rel.LocalKey)},
		})
		return q, alias
	}

	q.aliasSeq++
	alias := fmt.Sprintf("%s_%d", rel.Name, q.aliasSeq)
	link := alias + "_link"
	q.joins = append(slices.Clip(q.joins), joinClause{
		alias: alias,
		sql: []string{
			fmt.Sprintf("%s AS %s ON %s.%s = %s.%s",
				rel.Through, link, link, rel.ThroughLocal, base, q.table.PrimaryKey),
			fmt.Sprintf("%s AS %s ON %s.%s = %s.%s",
				target.Name, alias, alias, target.PrimaryKey, link, rel.ThroughRemote),
		},
	})
	q.distinct = true
	return q, alias
}

func comparison(col string, op Operator, value any) (sq.Sqlizer, error) {
	switch op {
	case OpEq, OpExact:
		return sq.Eq{col: value}, nil
	case OpIn:
		switch v := value.(type) {
		case []any, []string, []int64, []int:
			return sq.Eq{col: v}, nil
		case nil:
			return nil, errors.New("in expects a list")
		default:
			return sq.Eq{col: []any{v}}, nil
		}
	case OpIContains:
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, err
		}
		return sq.Expr("LOWER("+col+") LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(s))+"%"), nil
	case OpStartsWith:
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, err
		}
		return sq.Expr(col+" LIKE ? ESCAPE '\\'", escapeLike(s)+"%"), nil
	case OpGte:
		return sq.GtOrEq{col: value}, nil
	case OpLte:
		return sq.LtOrEq{col: value}, nil
	case OpLt:
		return sq.Lt{col: value}, nil
	}
	return nil, fmt.Errorf("unknown operator %q", op)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Select renders the query with the given columns. Unqualified columns should
// be avoided once the query joins other tables.
func (q Query) Select(columns ...string) sq.SelectBuilder {
	b := sq.Select(columns...).From(q.table.Name)
	if q.distinct {
		b = b.Distinct()
	}
	b = q.decorate(b)
	if len(q.orderBy) > 0 {
		b = b.OrderBy(q.orderBy...)
	}
	return b
}

// Count renders a query counting the matching rows of the base table.
func (q Query) Count() sq.SelectBuilder {
	expr := "COUNT(*)"
	if q.distinct {
		expr = fmt.Sprintf("COUNT(DISTINCT %s)", q.table.Qualified(q.table.PrimaryKey))
	}
	return q.decorate(sq.Select(expr).From(q.table.Name))
}

func (q Query) decorate(b sq.SelectBuilder) sq.SelectBuilder {
	for _, j := range q.joins {
		for _, clause := range j.sql {
			b = b.Join(clause)
		}
	}
	for _, cond := range q.where {
		b = b.Where(cond)
	}
	return b
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/crmql/internal/db"
	"github.com/rpattn/crmql/internal/domain"
	"github.com/rpattn/crmql/internal/filter"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const uniqueViolation = "23505"

// ErrConflict is returned when an insert violates a unique constraint.
var ErrConflict = errors.New("conflicts with an existing row")

func qualify(t *filter.Table, columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = t.Qualified(c)
	}
	return out
}

// buildFind renders the page and count statements for a filtered listing.
func buildFind(q filter.Query, columns, orderBy []string, page Page) (sq.SelectBuilder, sq.SelectBuilder) {
	list := q.OrderBy(orderBy...).Select(qualify(q.Table(), columns)...).PlaceholderFormat(sq.Dollar)
	if page.Limit > 0 {
		list = list.Limit(uint64(page.Limit))
	}
	if page.Offset > 0 {
		list = list.Offset(uint64(page.Offset))
	}
	return list, q.Count().PlaceholderFormat(sq.Dollar)
}

func find[T any](ctx context.Context, exec db.DBTX, q filter.Query, columns, orderBy []string, page Page, scan func(pgx.Row) (T, error)) ([]T, int, error) {
	listQ, countQ := buildFind(q, columns, orderBy, page)

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int
	if err := exec.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", q.Table().Name, err)
	}

	items, err := selectAll(ctx, exec, listQ, scan)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func selectAll[T any](ctx context.Context, exec db.DBTX, b sq.SelectBuilder, scan func(pgx.Row) (T, error)) ([]T, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) {
		return scan(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan rows: %w", err)
	}
	return items, nil
}

func selectOne[T any](ctx context.Context, exec db.DBTX, b sq.SelectBuilder, scan func(pgx.Row) (T, error)) (T, error) {
	var zero T
	query, args, err := b.ToSql()
	if err != nil {
		return zero, fmt.Errorf("failed to build query: %w", err)
	}
	item, err := scan(exec.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return zero, domain.ErrNotFound
	}
	return item, err
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

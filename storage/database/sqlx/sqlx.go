// Package sqlxrepos implements the repositories over PostgreSQL with sqlx & squirrel.
package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/swanstudios/studio/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type base struct {
	db *sqlx.DB
}

// getExec returns the caller's transaction if any, the DB otherwise.
func (b base) getExec(exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return b.db
}

func (b base) get(ctx context.Context, exec []core.DBExecutor, dest interface{}, query sq.Sqlizer) error {
	q, args, err := query.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, b.getExec(exec), dest, q, args...)
}

func (b base) selectRows(ctx context.Context, exec []core.DBExecutor, dest interface{}, query sq.Sqlizer) error {
	q, args, err := query.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, b.getExec(exec), dest, q, args...)
}

// exec runs the statement & returns the number of affected rows.
func (b base) exec(ctx context.Context, exec []core.DBExecutor, stmt sq.Sqlizer) (int64, error) {
	q, args, err := stmt.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building statement")
	}
	res, err := b.getExec(exec).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// trapNoRowsErr replaces sql.ErrNoRows by notFoundErr.
func trapNoRowsErr(err, notFoundErr error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFoundErr
	}
	return err
}

func paginate(query sq.SelectBuilder, p core.Pagination) sq.SelectBuilder {
	if p.Limit > 0 {
		query = query.Limit(uint64(p.Limit)).Offset(uint64(p.Offset()))
	}
	return query
}

func newID() string {
	return uuid.New().String()
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func nullTime(t time.Time) null.Time {
	return null.NewTime(t.UTC(), !t.IsZero())
}

func timeOrZero(t null.Time) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

// qualified returns the columns prefixed by table, aliased as "prefix.column" for nested struct scanning.
func qualified(table, prefix string, cols []string) []string {
	res := make([]string, 0, len(cols))
	for _, c := range cols {
		if prefix == "" {
			res = append(res, table+"."+c)
		} else {
			res = append(res, table+"."+c+` AS "`+prefix+"."+c+`"`)
		}
	}
	return res
}

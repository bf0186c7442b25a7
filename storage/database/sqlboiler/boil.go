package boiledrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/teachhub/backend/core"
)

// Postgres error codes
const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

type repository struct {
	exec core.DBExecutor
}

// getExec prefers the executor (transaction) passed by a service.
func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// bindQuery expands the slices of IN (?) clauses and rebinds ? to $n.
func bindQuery(query string, args ...interface{}) (string, []interface{}, error) {
	q, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "expanding query")
	}
	return sqlx.Rebind(sqlx.DOLLAR, q), args, nil
}

// bind runs a raw query and binds its rows into obj (a struct or a slice of structs).
func (repo repository) bind(ctx context.Context, exec []core.DBExecutor, obj interface{}, query string, args ...interface{}) error {
	q, args, err := bindQuery(query, args...)
	if err != nil {
		return err
	}
	return queries.Raw(q, args...).Bind(ctx, repo.getExec(exec), obj)
}

func (repo repository) execute(ctx context.Context, exec []core.DBExecutor, query string, args ...interface{}) (sql.Result, error) {
	q, args, err := bindQuery(query, args...)
	if err != nil {
		return nil, err
	}
	return queries.Raw(q, args...).ExecContext(ctx, repo.getExec(exec))
}

func pqCode(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return string(pqErr.Code)
	}
	return ""
}

// trapErr maps "no rows" to notFound & foreign key violations to core.ErrReferenced.
func trapErr(err error, notFound error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Cause(err) == sql.ErrNoRows && notFound != nil {
		return notFound
	}
	if pqCode(err) == pqForeignKeyViolation {
		return core.ErrReferenced
	}
	return errors.Wrap(err, msg)
}

// checkAffected returns notFound when res touched no rows.
func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// where accumulates AND-ed conditions.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func orderClause(ordering []core.DBOrdering, fallback string) string {
	parts := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		parts = append(parts, ord.String())
	}
	parts = append(parts, fallback)
	return " ORDER BY " + strings.Join(parts, ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// uuids drops the ids that are not UUIDs; they cannot match a row.
func uuids(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

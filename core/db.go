package core

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	DB interface {
		DBExecutor

		Begin() (*sql.Tx, error)
		BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// CheckOrdering returns a ValidationError when any ordering field is not one of allowed.
func CheckOrdering(ordering []DBOrdering, allowed ...string) error {
	for _, ord := range ordering {
		var ok bool
		for _, fld := range allowed {
			if ord.Field == fld {
				ok = true
				break
			}
		}
		if !ok {
			return NewValidationError(nil, FieldError{Field: "ordering", Error: "cannot order by " + ord.Field})
		}
	}
	return nil
}

// serializableAttempts bounds retries of a serializable transaction.
const serializableAttempts = 3

// RunInTx runs fn inside a transaction when db is set, committing on success.
// fn receives a nil executor when db is nil (in-memory repositories).
func RunInTx(ctx context.Context, db DB, fn func(exec DBExecutor) error) error {
	return runInTx(ctx, db, nil, fn)
}

// RunInSerializableTx is RunInTx at the serializable isolation level, for check-then-write
// sequences. fn is retried when the database reports a serialization failure.
func RunInSerializableTx(ctx context.Context, db DB, fn func(exec DBExecutor) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}
	var err error
	for attempt := 0; attempt < serializableAttempts; attempt++ {
		err = runInTx(ctx, db, opts, fn)
		if !isSerializationFailure(err) {
			return err
		}
	}
	return err
}

func runInTx(ctx context.Context, db DB, opts *sql.TxOptions, fn func(exec DBExecutor) error) error {
	if db == nil {
		return fn(nil)
	}
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// isSerializationFailure reports SQLSTATE 40001, as returned by drivers such as lib/pq.
func isSerializationFailure(err error) bool {
	var stateErr interface{ SQLState() string }
	return errors.As(err, &stateErr) && stateErr.SQLState() == "40001"
}

package core

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// txRecorder is a database/sql driver that only records transactions.
type txRecorder struct {
	mu        sync.Mutex
	levels    []sql.IsolationLevel
	commits   int
	rollbacks int
}

func (r *txRecorder) Open(string) (driver.Conn, error) { return &txConn{r}, nil }

type txConn struct{ r *txRecorder }

func (c *txConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (c *txConn) Close() error                        { return nil }
func (c *txConn) Begin() (driver.Tx, error)           { return c.BeginTx(context.Background(), driver.TxOptions{}) }

func (c *txConn) BeginTx(_ context.Context, opts driver.TxOptions) (driver.Tx, error) {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	c.r.levels = append(c.r.levels, sql.IsolationLevel(opts.Isolation))
	return &recordedTx{c.r}, nil
}

type recordedTx struct{ r *txRecorder }

func (tx *recordedTx) Commit() error {
	tx.r.mu.Lock()
	defer tx.r.mu.Unlock()
	tx.r.commits++
	return nil
}

func (tx *recordedTx) Rollback() error {
	tx.r.mu.Lock()
	defer tx.r.mu.Unlock()
	tx.r.rollbacks++
	return nil
}

func openRecorder(t *testing.T) (*sql.DB, *txRecorder) {
	rec := new(txRecorder)
	db := sql.OpenDB(connector{rec})
	t.Cleanup(func() { _ = db.Close() })
	return db, rec
}

type connector struct{ r *txRecorder }

func (c connector) Connect(context.Context) (driver.Conn, error) { return &txConn{c.r}, nil }
func (c connector) Driver() driver.Driver                        { return c.r }

func TestRunInTx(t *testing.T) {
	db, rec := openRecorder(t)
	ctx := context.Background()

	require.NoError(t, RunInTx(ctx, db, func(exec DBExecutor) error {
		assert.NotNil(t, exec)
		return nil
	}))
	errBoom := errors.New("boom")
	assert.Equal(t, errBoom, RunInTx(ctx, db, func(DBExecutor) error { return errBoom }))

	assert.Equal(t, []sql.IsolationLevel{sql.LevelDefault, sql.LevelDefault}, rec.levels)
	assert.Equal(t, 1, rec.commits)
	assert.Equal(t, 1, rec.rollbacks)

	t.Run("no database", func(t *testing.T) {
		var called bool
		require.NoError(t, RunInTx(ctx, nil, func(exec DBExecutor) error {
			called = true
			assert.Nil(t, exec)
			return nil
		}))
		assert.True(t, called)
	})
}

func TestRunInSerializableTx(t *testing.T) {
	ctx := context.Background()
	serializationFailure := func() error {
		return errors.Wrap(&pq.Error{Code: "40001", Message: "could not serialize access"}, "creating session")
	}

	tests := []struct {
		name          string
		failures      int
		otherErr      error
		wantCalls     int
		wantCommits   int
		wantErr       bool
		wantRetryable bool
	}{
		{name: "commits", wantCalls: 1, wantCommits: 1},
		{name: "retries a serialization failure", failures: 1, wantCalls: 2, wantCommits: 1},
		{name: "gives up", failures: serializableAttempts, wantCalls: serializableAttempts, wantErr: true, wantRetryable: true},
		{name: "other errors are not retried", otherErr: errors.New("clash"), wantCalls: 1, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, rec := openRecorder(t)
			var calls int
			err := RunInSerializableTx(ctx, db, func(exec DBExecutor) error {
				calls++
				if tc.otherErr != nil {
					return tc.otherErr
				}
				if calls <= tc.failures {
					return serializationFailure()
				}
				return nil
			})

			assert.Equal(t, tc.wantCalls, calls)
			assert.Equal(t, tc.wantCommits, rec.commits)
			assert.Equal(t, tc.wantCalls-tc.wantCommits, rec.rollbacks)
			for _, lvl := range rec.levels {
				assert.Equal(t, sql.LevelSerializable, lvl)
			}
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.wantRetryable, isSerializationFailure(err))
		})
	}
}

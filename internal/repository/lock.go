package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/convoflow-ai/convoflow/internal/domain"
)

// Advisory lock keyspace for document indexing, kept clear of other users of
// pg advisory locks on the same database.
const indexLockClass int64 = 0x636f6e766f << 16

// IndexLocker serializes indexing runs per document using Postgres advisory
// locks. The lock is session-scoped, so the acquiring connection is pinned
// until release.
type IndexLocker struct {
	pool *pgxpool.Pool
}

func NewIndexLocker(pool *pgxpool.Pool) *IndexLocker {
	return &IndexLocker{pool: pool}
}

// IndexLock is a held per-document lock.
type IndexLock struct {
	conn       *pgxpool.Conn
	documentID int64
}

// Acquire takes the per-document lock, or returns ErrIndexingInProgress when
// another indexing run already holds it.
func (l *IndexLocker) Acquire(ctx context.Context, documentID int64) (*IndexLock, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, indexLockClass+documentID).Scan(&locked); err != nil {
		conn.Release()
		return nil, err
	}
	if !locked {
		conn.Release()
		return nil, domain.ErrIndexingInProgress
	}

	return &IndexLock{conn: conn, documentID: documentID}, nil
}

// WithLock runs fn while holding the per-document lock.
func (l *IndexLocker) WithLock(ctx context.Context, documentID int64, fn func(ctx context.Context) error) error {
	lock, err := l.Acquire(ctx, documentID)
	if err != nil {
		return err
	}
	defer lock.Release(ctx)
	return fn(ctx)
}

// Release drops the advisory lock and returns the connection to the pool.
func (lk *IndexLock) Release(ctx context.Context) {
	if lk.conn == nil {
		return
	}
	_, _ = lk.conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, indexLockClass+lk.documentID)
	lk.conn.Release()
	lk.conn = nil
}

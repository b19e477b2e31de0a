// Package liststore persists user list entries in PostgreSQL.
package liststore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kailas-cloud/animedex/internal/domain"
	"github.com/kailas-cloud/animedex/internal/domain/list"
	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// Compile-time check: Store implements list.Store.
var _ list.Store = (*Store)(nil)

const entryColumns = `user_id, title_id, kind, status, rating, is_favorite, title_name, added_at, updated_at`

// Store is a pgx-backed list store.
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// New creates a list store. txTimeout bounds every transaction; zero disables it.
func New(pool *pgxpool.Pool, txTimeout time.Duration) *Store {
	return &Store{pool: pool, timeout: txTimeout}
}

// InTx runs fn in one transaction and commits when fn returns nil. Begin,
// statement and commit failures are wrapped with domain.ErrStoreCommit;
// deadlines additionally carry domain.ErrTimeout.
func (s *Store) InTx(ctx context.Context, fn func(tx list.Tx) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return commitErr("begin", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		if errors.Is(err, domain.ErrStoreCommit) {
			return err
		}
		return commitErr("tx", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return commitErr("commit", err)
	}
	return nil
}

func commitErr(stage string, err error) error {
	return fmt.Errorf("%s: %w: %w", stage, domain.ErrStoreCommit, domain.WrapTimeout(err))
}

// ListByUser returns a user's entries, best rated first.
func (s *Store) ListByUser(ctx context.Context, userID string, kind title.Kind) ([]list.Entry, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	query := `SELECT ` + entryColumns + ` FROM list_entries
		WHERE user_id = $1 AND ($2 = '' OR kind = $2)
		ORDER BY rating DESC NULLS LAST, updated_at DESC`

	rows, err := s.pool.Query(ctx, query, userID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", domain.WrapTimeout(err))
	}
	defer rows.Close()

	var out []list.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", domain.WrapTimeout(err))
	}
	return out, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Get(ctx context.Context, key list.Key) (list.Entry, bool, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM list_entries
		WHERE user_id = $1 AND title_id = $2 AND kind = $3`,
		key.UserID, key.TitleID, string(key.Kind))

	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return list.Entry{}, false, nil
	}
	if err != nil {
		return list.Entry{}, false, fmt.Errorf("get entry: %w", err)
	}
	return e, true, nil
}

// Upsert relies on the unique key; concurrent writers resolve last-write-wins.
func (t *pgTx) Upsert(ctx context.Context, e list.Entry) (list.Entry, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO list_entries (user_id, title_id, kind, status, rating, is_favorite, title_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, title_id, kind) DO UPDATE SET
			status      = EXCLUDED.status,
			rating      = EXCLUDED.rating,
			is_favorite = EXCLUDED.is_favorite,
			title_name  = EXCLUDED.title_name,
			updated_at  = now()
		RETURNING `+entryColumns,
		e.UserID, e.TitleID, string(e.Kind), string(e.Status), e.Rating, e.IsFavorite, e.TitleName)

	out, err := scanEntry(row)
	if err != nil {
		return list.Entry{}, fmt.Errorf("upsert entry: %w", err)
	}
	return out, nil
}

func (t *pgTx) Delete(ctx context.Context, key list.Key) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		`DELETE FROM list_entries WHERE user_id = $1 AND title_id = $2 AND kind = $3`,
		key.UserID, key.TitleID, string(key.Kind))
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanEntry(row pgx.Row) (list.Entry, error) {
	var (
		e      list.Entry
		kind   string
		status string
	)
	err := row.Scan(
		&e.UserID, &e.TitleID, &kind, &status, &e.Rating,
		&e.IsFavorite, &e.TitleName, &e.AddedAt, &e.UpdatedAt,
	)
	if err != nil {
		return list.Entry{}, err //nolint:wrapcheck // callers wrap with context
	}
	e.Kind = title.Kind(kind)
	e.Status = list.Status(status)
	return e, nil
}

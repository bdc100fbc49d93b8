// Package sql implements leasestore.LeaseStore on MySQL via sqlx.
//
// Claims are per-row conditional UPDATEs: a worker wins a replica only if its
// UPDATE matches the eligibility predicate at execution time, so two
// concurrent claimants can never both win the same row. Refresh is a single
// bulk UPDATE restricted to rows still in BEING_DELETED, which makes it a
// no-op on rows that were removed or reassigned in the meantime.
package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/cull-io/cull/internal/leasestore"
	"github.com/cull-io/cull/internal/replica"
)

// Config configures the MySQL lease store.
type Config struct {
	// DSN is the go-sql-driver/mysql data source name.
	// parseTime=true is required so updated_at scans as time.Time.
	DSN string

	// Table is the replica table name. Default: "replicas".
	Table string

	// MaxOpenConns bounds the connection pool. Default: 8.
	MaxOpenConns int

	// MaxIdleConns bounds idle connections. Default: 2.
	MaxIdleConns int
}

// Store implements leasestore.LeaseStore backed by MySQL.
type Store struct {
	db    *sqlx.DB
	table string
	now   func() time.Time
}

// Open connects to MySQL and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("leasestore/sql: DSN is required")
	}
	if cfg.Table == "" {
		cfg.Table = "replicas"
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 8
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 2
	}

	db, err := sqlx.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("leasestore/sql: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("leasestore/sql: ping: %w", err)
	}

	return &Store{db: db, table: cfg.Table, now: time.Now}, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sqlx.DB, table string) *Store {
	if table == "" {
		table = "replicas"
	}
	return &Store{db: db, table: table, now: time.Now}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type replicaRow struct {
	Scope     string    `db:"scope"`
	Name      string    `db:"name"`
	RSEID     string    `db:"rse_id"`
	State     string    `db:"state"`
	UpdatedAt time.Time `db:"updated_at"`
	Bytes     int64     `db:"bytes"`
	Path      string    `db:"path"`
}

func (r replicaRow) toReplica() replica.Replica {
	return replica.Replica{
		Ref:       replica.Ref{Scope: r.Scope, Name: r.Name, RSE: r.RSEID},
		State:     replica.State(r.State),
		UpdatedAt: r.UpdatedAt,
		Bytes:     r.Bytes,
		Path:      r.Path,
	}
}

// ClaimBatch selects up to limit eligible candidates and claims each with a
// conditional UPDATE. Candidates lost to a concurrent claimant between the
// SELECT and the UPDATE are simply skipped, so the returned batch may be
// smaller than the candidate set.
func (s *Store) ClaimBatch(ctx context.Context, rseID string, limit int, delay time.Duration) (replica.Batch, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("leasestore/sql: claim limit must be positive, got %d", limit)
	}

	now := s.now().UTC().Truncate(time.Second)
	cutoff := now.Add(-delay)

	selectQ := fmt.Sprintf(`
		SELECT scope, name, rse_id, state, updated_at, bytes, path
		FROM %s
		WHERE rse_id = ?
		  AND (state = ? OR (state = ? AND updated_at < ?))
		ORDER BY updated_at
		LIMIT ?`, s.table)

	var candidates []replicaRow
	err := s.db.SelectContext(ctx, &candidates, selectQ,
		rseID, string(replica.StateAvailable), string(replica.StateBeingDeleted), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("leasestore/sql: select candidates: %w", err)
	}

	claimQ := fmt.Sprintf(`
		UPDATE %s
		SET state = ?, updated_at = ?
		WHERE scope = ? AND name = ? AND rse_id = ?
		  AND (state = ? OR (state = ? AND updated_at < ?))`, s.table)

	batch := make(replica.Batch, 0, len(candidates))
	for _, cand := range candidates {
		res, err := s.db.ExecContext(ctx, claimQ,
			string(replica.StateBeingDeleted), now,
			cand.Scope, cand.Name, cand.RSEID,
			string(replica.StateAvailable), string(replica.StateBeingDeleted), cutoff)
		if err != nil {
			return nil, fmt.Errorf("leasestore/sql: claim %s:%s: %w", cand.Scope, cand.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("leasestore/sql: claim rows affected: %w", err)
		}
		if n == 0 {
			// Lost the race to another worker.
			continue
		}
		cand.State = string(replica.StateBeingDeleted)
		cand.UpdatedAt = now
		batch = append(batch, cand.toReplica())
	}
	return batch, nil
}

// Refresh restamps updated_at on rows still held in BEING_DELETED.
func (s *Store) Refresh(ctx context.Context, rseID string, refs []replica.Ref) (int, error) {
	if len(refs) == 0 {
		return 0, nil
	}

	now := s.now().UTC().Truncate(time.Second)

	where, args := refPredicate(refs)
	args = append([]any{now, rseID, string(replica.StateBeingDeleted)}, args...)

	q := fmt.Sprintf(`
		UPDATE %s
		SET updated_at = ?
		WHERE rse_id = ? AND state = ? AND (%s)`, s.table, where)

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("leasestore/sql: refresh: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("leasestore/sql: refresh rows affected: %w", err)
	}
	return int(n), nil
}

// RemoveRows deletes rows by composite key.
func (s *Store) RemoveRows(ctx context.Context, refs []replica.Ref) error {
	if len(refs) == 0 {
		return nil
	}

	where, args := refPredicate(refs)
	q := fmt.Sprintf(`DELETE FROM %s WHERE %s`, s.table, where)

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("leasestore/sql: remove rows: %w", err)
	}
	return nil
}

// UpdatedAt reads the lease timestamp of one row.
func (s *Store) UpdatedAt(ctx context.Context, ref replica.Ref) (time.Time, error) {
	q := fmt.Sprintf(`SELECT updated_at FROM %s WHERE scope = ? AND name = ? AND rse_id = ?`, s.table)

	var ts time.Time
	err := s.db.GetContext(ctx, &ts, q, ref.Scope, ref.Name, ref.RSE)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, leasestore.ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("leasestore/sql: updated_at: %w", err)
	}
	return ts, nil
}

// refPredicate builds an OR-of-composite-keys predicate for the given refs.
func refPredicate(refs []replica.Ref) (string, []any) {
	clauses := make([]string, 0, len(refs))
	args := make([]any, 0, len(refs)*3)
	for _, ref := range refs {
		clauses = append(clauses, "(scope = ? AND name = ? AND rse_id = ?)")
		args = append(args, ref.Scope, ref.Name, ref.RSE)
	}
	return strings.Join(clauses, " OR "), args
}

var _ leasestore.LeaseStore = (*Store)(nil)

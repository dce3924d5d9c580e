package snapshotstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"shortwatch-backend/lib/snapshot"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// Store is the append-only historical record of every observed change.
// Rows are never updated or deleted; the current truth for a key is always
// the row with the maximum observed_at.
type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

// AppendChanges durably writes one cycle's change set in a single
// transaction. The (dataset, key, observed_at) primary key replaces on
// conflict, so retrying a cycle after a crash cannot duplicate rows.
func (s Store) AppendChanges(ctx context.Context, dataset string, changes []snapshot.Change) error {
	if len(changes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (dataset, key_id, kind, field_values, observed_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range changes {
		encoded, err := json.Marshal(c.Values)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			dataset, c.Key.ID(), string(c.Kind), string(encoded), c.ObservedAt.Unix())
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Latest returns the most recent record for a key, or false when the key
// has never been observed.
func (s Store) Latest(ctx context.Context, dataset string, key snapshot.Key) (snapshot.Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT field_values, observed_at FROM observations
		WHERE dataset = ? AND key_id = ?
		ORDER BY observed_at DESC LIMIT 1
	`, dataset, key.ID())

	var encoded string
	var observedAt int64
	err := row.Scan(&encoded, &observedAt)
	if err == sql.ErrNoRows {
		return snapshot.Record{}, false, nil
	}
	if err != nil {
		return snapshot.Record{}, false, err
	}

	rec, err := decodeRecord(key.ID(), encoded, observedAt)
	if err != nil {
		return snapshot.Record{}, false, err
	}
	return rec, true, nil
}

// LatestAll returns the most recent record per key across all history,
// keyed by Key.ID. This is the diff baseline: correct even when previous
// cycles were skipped or failed.
func (s Store) LatestAll(ctx context.Context, dataset string) (map[string]snapshot.Record, error) {
	// sqlite resolves bare columns in a MAX() group to the row holding
	// the maximum.
	rows, err := s.db.QueryContext(ctx, `
		SELECT key_id, field_values, MAX(observed_at) FROM observations
		WHERE dataset = ?
		GROUP BY key_id
	`, dataset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]snapshot.Record{}
	for rows.Next() {
		var keyID, encoded string
		var observedAt int64
		if err := rows.Scan(&keyID, &encoded, &observedAt); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(keyID, encoded, observedAt)
		if err != nil {
			return nil, err
		}
		out[keyID] = rec
	}
	return out, rows.Err()
}

// History returns a key's records ordered by observed_at ascending. A zero
// `until` means unbounded.
func (s Store) History(ctx context.Context, dataset string, key snapshot.Key, since, until time.Time) ([]snapshot.Record, error) {
	untilUnix := int64(1<<62 - 1)
	if !until.IsZero() {
		untilUnix = until.Unix()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT field_values, observed_at FROM observations
		WHERE dataset = ? AND key_id = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC
	`, dataset, key.ID(), since.Unix(), untilUnix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []snapshot.Record
	for rows.Next() {
		var encoded string
		var observedAt int64
		if err := rows.Scan(&encoded, &observedAt); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(key.ID(), encoded, observedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Keys lists every key ever observed in a dataset.
func (s Store) Keys(ctx context.Context, dataset string) ([]snapshot.Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT key_id FROM observations
		WHERE dataset = ?
		ORDER BY key_id
	`, dataset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []snapshot.Key
	for rows.Next() {
		var keyID string
		if err := rows.Scan(&keyID); err != nil {
			return nil, err
		}
		out = append(out, snapshot.ParseKeyID(keyID))
	}
	return out, rows.Err()
}

func decodeRecord(keyID, encoded string, observedAt int64) (snapshot.Record, error) {
	var values map[string]any
	if err := json.Unmarshal([]byte(encoded), &values); err != nil {
		return snapshot.Record{}, err
	}
	return snapshot.Record{
		Key:        snapshot.ParseKeyID(keyID),
		Values:     values,
		ObservedAt: time.Unix(observedAt, 0),
	}, nil
}

// SPDX-License-Identifier: MIT

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/careshift/careshift/internal/clinical"
	"github.com/careshift/careshift/internal/store"
)

// Store is the SQLite-backed shift context store. Change notifications are
// in-process: every write to the context goes through this instance.
type Store struct {
	db *sql.DB
	ch chan struct{}
}

// New opens (or creates) the database at path, migrates the schema and
// refuses to start on a structurally corrupt file.
func New(path string, cfg Config) (*Store, error) {
	db, err := Open(path, cfg)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	problems, err := VerifyIntegrity(path, "quick")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if len(problems) > 0 {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: database %q failed integrity check: %s", path, strings.Join(problems, "; "))
	}
	return &Store{db: db, ch: make(chan struct{}, 1)}, nil
}

func (s *Store) Changes() <-chan struct{} { return s.ch }

func (s *Store) notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Snapshot(ctx context.Context) (store.Snapshot, error) {
	var snap store.Snapshot

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return snap, fmt.Errorf("sqlite: begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var startAt, endAt string
	err = tx.QueryRowContext(ctx, `SELECT start_at, end_at FROM shift WHERE id = 1`).Scan(&startAt, &endAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// no shift configured yet
	case err != nil:
		return snap, fmt.Errorf("sqlite: read shift: %w", err)
	default:
		shift := clinical.Shift{}
		if shift.StartAt, err = parseTime(startAt); err != nil {
			return snap, err
		}
		if shift.EndAt, err = parseTime(endAt); err != nil {
			return snap, err
		}
		snap.Shift = &shift
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, display_name, acuity FROM patients ORDER BY id`)
	if err != nil {
		return snap, fmt.Errorf("sqlite: read patients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p clinical.Patient
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.Acuity); err != nil {
			return snap, fmt.Errorf("sqlite: scan patient: %w", err)
		}
		snap.Patients = append(snap.Patients, p)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("sqlite: patients rows: %w", err)
	}

	orderRows, err := tx.QueryContext(ctx,
		`SELECT id, patient_id, type, description, due_at, duration_minutes, is_prn, is_stat FROM orders ORDER BY id`)
	if err != nil {
		return snap, fmt.Errorf("sqlite: read orders: %w", err)
	}
	defer orderRows.Close()
	for orderRows.Next() {
		var (
			o             clinical.Order
			dueAt         string
			isPRN, isSTAT int
		)
		if err := orderRows.Scan(&o.ID, &o.PatientID, &o.Type, &o.Description, &dueAt, &o.DurationMinutes, &isPRN, &isSTAT); err != nil {
			return snap, fmt.Errorf("sqlite: scan order: %w", err)
		}
		if o.DueAt, err = parseTime(dueAt); err != nil {
			return snap, err
		}
		o.IsPRN = isPRN != 0
		o.IsSTAT = isSTAT != 0
		snap.Orders = append(snap.Orders, o)
	}
	if err := orderRows.Err(); err != nil {
		return snap, fmt.Errorf("sqlite: orders rows: %w", err)
	}

	ovRows, err := tx.QueryContext(ctx, `SELECT order_id, starts_at FROM overrides ORDER BY order_id`)
	if err != nil {
		return snap, fmt.Errorf("sqlite: read overrides: %w", err)
	}
	defer ovRows.Close()
	for ovRows.Next() {
		var (
			ov       clinical.Override
			startsAt string
		)
		if err := ovRows.Scan(&ov.OrderID, &startsAt); err != nil {
			return snap, fmt.Errorf("sqlite: scan override: %w", err)
		}
		if ov.StartsAt, err = parseTime(startsAt); err != nil {
			return snap, err
		}
		snap.Overrides = append(snap.Overrides, ov)
	}
	if err := ovRows.Err(); err != nil {
		return snap, fmt.Errorf("sqlite: overrides rows: %w", err)
	}

	snap.Revision, snap.UpdatedAt, err = readMeta(ctx, tx)
	if err != nil {
		return snap, err
	}
	return snap, nil
}

func (s *Store) Reset(ctx context.Context) error {
	err := s.mutate(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"overrides", "orders", "patients", "shift"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("sqlite: reset %s: %w", table, err)
			}
		}
		return nil
	})
	return err
}

func (s *Store) SetShift(ctx context.Context, shift clinical.Shift) error {
	return s.mutate(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO shift (id, start_at, end_at) VALUES (1, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET start_at = excluded.start_at, end_at = excluded.end_at`,
			formatTime(shift.StartAt), formatTime(shift.EndAt))
		if err != nil {
			return fmt.Errorf("sqlite: set shift: %w", err)
		}
		return nil
	})
}

func (s *Store) ReplacePatients(ctx context.Context, patients []clinical.Patient) (int, error) {
	pruned := 0
	err := s.mutate(ctx, func(tx *sql.Tx) error {
		var before int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&before); err != nil {
			return fmt.Errorf("sqlite: count orders: %w", err)
		}

		// Delete only patients absent from the new list so the cascade
		// prunes exactly their orders; retained patients keep theirs.
		if len(patients) == 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM patients`); err != nil {
				return fmt.Errorf("sqlite: clear patients: %w", err)
			}
		} else {
			placeholders := make([]byte, 0, 2*len(patients))
			args := make([]any, 0, len(patients))
			for _, p := range patients {
				if len(placeholders) > 0 {
					placeholders = append(placeholders, ',')
				}
				placeholders = append(placeholders, '?')
				args = append(args, p.ID)
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM patients WHERE id NOT IN (`+string(placeholders)+`)`, args...); err != nil {
				return fmt.Errorf("sqlite: prune patients: %w", err)
			}
		}
		for _, p := range patients {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO patients (id, display_name, acuity) VALUES (?, ?, ?)
				 ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name, acuity = excluded.acuity`,
				p.ID, p.DisplayName, string(p.Acuity)); err != nil {
				return fmt.Errorf("sqlite: upsert patient %q: %w", p.ID, err)
			}
		}

		var after int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&after); err != nil {
			return fmt.Errorf("sqlite: count orders: %w", err)
		}
		pruned = before - after
		return nil
	})
	return pruned, err
}

func (s *Store) AddOrder(ctx context.Context, order clinical.Order) error {
	return s.mutate(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM patients WHERE id = ?`, order.PatientID).Scan(&exists); err != nil {
			return fmt.Errorf("sqlite: check patient: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: %q", store.ErrUnknownPatient, order.PatientID)
		}
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE id = ?`, order.ID).Scan(&exists); err != nil {
			return fmt.Errorf("sqlite: check order: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("%w: %q", store.ErrOrderExists, order.ID)
		}
		return insertOrder(ctx, tx, order)
	})
}

func (s *Store) DeleteOrder(ctx context.Context, orderID string) error {
	return s.mutate(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, orderID)
		if err != nil {
			return fmt.Errorf("sqlite: delete order: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %q", store.ErrOrderNotFound, orderID)
		}
		return nil
	})
}

func (s *Store) SetOverride(ctx context.Context, ov clinical.Override) error {
	return s.mutate(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE id = ?`, ov.OrderID).Scan(&exists); err != nil {
			return fmt.Errorf("sqlite: check order: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: %q", store.ErrOrderNotFound, ov.OrderID)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO overrides (order_id, starts_at) VALUES (?, ?)
			 ON CONFLICT(order_id) DO UPDATE SET starts_at = excluded.starts_at`,
			ov.OrderID, formatTime(ov.StartsAt))
		if err != nil {
			return fmt.Errorf("sqlite: set override: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteOverride(ctx context.Context, orderID string) error {
	return s.mutate(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM overrides WHERE order_id = ?`, orderID)
		if err != nil {
			return fmt.Errorf("sqlite: delete override: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %q", store.ErrOverrideNotFound, orderID)
		}
		return nil
	})
}

func (s *Store) LoadBundle(ctx context.Context, bundle clinical.ScheduleRequest) error {
	return s.mutate(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"overrides", "orders", "patients", "shift"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("sqlite: clear %s: %w", table, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO shift (id, start_at, end_at) VALUES (1, ?, ?)`,
			formatTime(bundle.Shift.StartAt), formatTime(bundle.Shift.EndAt)); err != nil {
			return fmt.Errorf("sqlite: insert shift: %w", err)
		}
		for _, p := range bundle.Patients {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO patients (id, display_name, acuity) VALUES (?, ?, ?)`,
				p.ID, p.DisplayName, string(p.Acuity)); err != nil {
				return fmt.Errorf("sqlite: insert patient %q: %w", p.ID, err)
			}
		}
		for _, o := range bundle.Orders {
			if err := insertOrder(ctx, tx, o); err != nil {
				return err
			}
		}
		for _, ov := range bundle.Overrides {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO overrides (order_id, starts_at) VALUES (?, ?)`,
				ov.OrderID, formatTime(ov.StartsAt)); err != nil {
				return fmt.Errorf("sqlite: insert override %q: %w", ov.OrderID, err)
			}
		}
		return nil
	})
}

// mutate runs fn in a transaction, bumps the revision and notifies watchers
// on commit.
func (s *Store) mutate(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := bumpMeta(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}

	s.notify()
	return nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, o clinical.Order) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO orders (id, patient_id, type, description, due_at, duration_minutes, is_prn, is_stat)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.PatientID, string(o.Type), o.Description, formatTime(o.DueAt), o.DurationMinutes,
		boolToInt(o.IsPRN), boolToInt(o.IsSTAT))
	if err != nil {
		return fmt.Errorf("sqlite: insert order %q: %w", o.ID, err)
	}
	return nil
}

func readMeta(ctx context.Context, tx *sql.Tx) (uint64, time.Time, error) {
	var revStr, updStr string

	err := tx.QueryRowContext(ctx, `SELECT v FROM meta WHERE k = 'revision'`).Scan(&revStr)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, nil
	}
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("sqlite: read revision: %w", err)
	}
	rev, err := strconv.ParseUint(revStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("sqlite: parse revision: %w", err)
	}

	var updated time.Time
	err = tx.QueryRowContext(ctx, `SELECT v FROM meta WHERE k = 'updated_at'`).Scan(&updStr)
	if err == nil {
		updated, err = parseTime(updStr)
		if err != nil {
			return 0, time.Time{}, err
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, fmt.Errorf("sqlite: read updated_at: %w", err)
	}

	return rev, updated, nil
}

func bumpMeta(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO meta (k, v) VALUES ('revision', '1')
		 ON CONFLICT(k) DO UPDATE SET v = CAST(CAST(meta.v AS INTEGER) + 1 AS TEXT)`)
	if err != nil {
		return fmt.Errorf("sqlite: bump revision: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO meta (k, v) VALUES ('updated_at', ?)
		 ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
		formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("sqlite: bump updated_at: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

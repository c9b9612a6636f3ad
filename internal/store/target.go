package store

import (
	"database/sql"
	"time"

	"github.com/sova-tungnv/web-ai/internal/gesture"
)

// TargetRepository persists registered drag targets so the toolbox and the
// canvas survive restarts.
type TargetRepository struct {
	db *sql.DB
}

// Targets returns the target repository for this store.
func (s *Store) Targets() *TargetRepository {
	return &TargetRepository{db: s.db}
}

// Save inserts or updates t. New targets are appended after the existing
// ones so List preserves registration order.
func (r *TargetRepository) Save(t gesture.Target) error {
	_, err := r.db.Exec(
		`INSERT INTO targets (id, pool, label, x, y, w, h, template_id, seq, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM targets), ?)
		 ON CONFLICT(id) DO UPDATE SET
			pool = excluded.pool,
			label = excluded.label,
			x = excluded.x,
			y = excluded.y,
			w = excluded.w,
			h = excluded.h,
			template_id = excluded.template_id,
			updated_at = excluded.updated_at`,
		t.ID, string(t.Pool), t.Label,
		t.Bounds.X, t.Bounds.Y, t.Bounds.W, t.Bounds.H,
		t.TemplateID, time.Now().UTC(),
	)
	return err
}

// Delete removes the target with the given id.
func (r *TargetRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM targets WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every target, templates first, each pool in registration order.
func (r *TargetRepository) List() ([]gesture.Target, error) {
	rows, err := r.db.Query(
		`SELECT id, pool, label, x, y, w, h, template_id FROM targets
		 ORDER BY CASE pool WHEN 'template' THEN 0 ELSE 1 END, seq`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []gesture.Target
	for rows.Next() {
		var t gesture.Target
		var pool string
		if err := rows.Scan(&t.ID, &pool, &t.Label, &t.Bounds.X, &t.Bounds.Y, &t.Bounds.W, &t.Bounds.H, &t.TemplateID); err != nil {
			return nil, err
		}
		t.Pool = gesture.Pool(pool)
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// LoadInto registers every stored target in reg.
func (r *TargetRepository) LoadInto(reg *gesture.Registry) (int, error) {
	targets, err := r.List()
	if err != nil {
		return 0, err
	}
	for i, t := range targets {
		if _, err := reg.Register(t); err != nil {
			return i, err
		}
	}
	return len(targets), nil
}

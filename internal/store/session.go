package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/sova-tungnv/web-ai/internal/gesture"
)

// SessionRepository stores finished drag sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the drag session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a finished drag session.
func (r *SessionRepository) Create(d gesture.DragSession) error {
	if d.ID == "" {
		return errors.New("drag session has no id")
	}
	if d.EndReason == "" {
		return fmt.Errorf("drag session %s has not ended", d.ID)
	}

	_, err := r.db.Exec(
		`INSERT INTO drag_sessions (id, target_id, from_template, instance_id, start_x, start_y, end_x, end_y, started_at, ended_at, end_reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.TargetID, d.FromTemplate, d.InstanceID,
		d.Start.X, d.Start.Y, d.Current.X, d.Current.Y,
		d.StartedAt.UTC(), d.EndedAt.UTC(), string(d.EndReason),
	)
	return err
}

// GetByID retrieves a drag session by its ID.
func (r *SessionRepository) GetByID(id string) (*gesture.DragSession, error) {
	row := r.db.QueryRow(
		`SELECT id, target_id, from_template, instance_id, start_x, start_y, end_x, end_y, started_at, ended_at, end_reason
		 FROM drag_sessions WHERE id = ?`,
		id,
	)
	d, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// List returns the most recent sessions first. A limit <= 0 returns all.
func (r *SessionRepository) List(limit int) ([]*gesture.DragSession, error) {
	query := `SELECT id, target_id, from_template, instance_id, start_x, start_y, end_x, end_y, started_at, ended_at, end_reason
		 FROM drag_sessions ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.query(query, args...)
}

// ListByTarget returns the sessions that dragged targetID, most recent first.
func (r *SessionRepository) ListByTarget(targetID string) ([]*gesture.DragSession, error) {
	return r.query(
		`SELECT id, target_id, from_template, instance_id, start_x, start_y, end_x, end_y, started_at, ended_at, end_reason
		 FROM drag_sessions WHERE target_id = ? ORDER BY started_at DESC, id`,
		targetID,
	)
}

// Count returns the number of stored sessions.
func (r *SessionRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM drag_sessions`).Scan(&n)
	return n, err
}

// Clear deletes every stored session.
func (r *SessionRepository) Clear() error {
	_, err := r.db.Exec(`DELETE FROM drag_sessions`)
	return err
}

func (r *SessionRepository) query(query string, args ...any) ([]*gesture.DragSession, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*gesture.DragSession
	for rows.Next() {
		d, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, d)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(s scanner) (*gesture.DragSession, error) {
	d := &gesture.DragSession{}
	var reason string
	err := s.Scan(
		&d.ID, &d.TargetID, &d.FromTemplate, &d.InstanceID,
		&d.Start.X, &d.Start.Y, &d.Current.X, &d.Current.Y,
		&d.StartedAt, &d.EndedAt, &reason,
	)
	if err != nil {
		return nil, err
	}
	d.EndReason = gesture.EndReason(reason)
	return d, nil
}

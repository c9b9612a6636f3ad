package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Drag sessions journal - one row per finished pinch drag
		`CREATE TABLE IF NOT EXISTS drag_sessions (
			id TEXT PRIMARY KEY,
			target_id TEXT NOT NULL,
			from_template INTEGER NOT NULL DEFAULT 0,
			instance_id TEXT NOT NULL DEFAULT '',
			start_x REAL NOT NULL,
			start_y REAL NOT NULL,
			end_x REAL NOT NULL,
			end_y REAL NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME NOT NULL,
			end_reason TEXT NOT NULL CHECK(end_reason IN ('released', 'lost', 'closed'))
		)`,

		// Targets table - draggable templates and canvas instances
		`CREATE TABLE IF NOT EXISTS targets (
			id TEXT PRIMARY KEY,
			pool TEXT NOT NULL CHECK(pool IN ('template', 'instance')),
			label TEXT NOT NULL DEFAULT '',
			x REAL NOT NULL,
			y REAL NOT NULL,
			w REAL NOT NULL,
			h REAL NOT NULL,
			template_id TEXT NOT NULL DEFAULT '',
			seq INTEGER NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_drag_sessions_target_id ON drag_sessions(target_id)`,
		`CREATE INDEX IF NOT EXISTS idx_drag_sessions_started_at ON drag_sessions(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_targets_pool_seq ON targets(pool, seq)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}

package engine

import "database/sql"

// migration is one ordered, immutable schema step. Once published a
// migration's body must never change; further schema changes are added as
// new entries at the end of the list.
type migration struct {
	version int
	apply   func(tx *sql.Tx) error
}

var migrations = []migration{
	{version: 0, apply: migrate0},
	{version: 1, apply: migrate1},
}

func migrate0(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS objects (
			bucket TEXT NOT NULL,
			key TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			etag TEXT NOT NULL DEFAULT '',
			last_modified TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL DEFAULT '',
			data BLOB NOT NULL DEFAULT '',
			PRIMARY KEY (bucket, key, chunk_index)
		)`,
		`CREATE TABLE IF NOT EXISTS multipart_uploads (
			upload_id TEXT PRIMARY KEY,
			bucket TEXT NOT NULL,
			key TEXT NOT NULL,
			created_at TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS multipart_parts (
			upload_id TEXT NOT NULL,
			part_number INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			etag TEXT NOT NULL DEFAULT '',
			data BLOB NOT NULL DEFAULT '',
			PRIMARY KEY (upload_id, part_number, chunk_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_objects_listing ON objects (bucket, key) WHERE chunk_index = 0`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migrate1(tx *sql.Tx) error {
	stmts := []string{
		`ALTER TABLE objects ADD COLUMN depth INTEGER`,
		`ALTER TABLE objects ADD COLUMN parent TEXT`,
		`CREATE INDEX IF NOT EXISTS idx_objects_parent ON objects (bucket, parent) WHERE chunk_index = 0`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	rows, err := tx.Query(`SELECT bucket, key FROM objects WHERE chunk_index = 0`)
	if err != nil {
		return err
	}
	type row struct{ bucket, key string }
	var backfill []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.bucket, &r.key); err != nil {
			rows.Close()
			return err
		}
		backfill = append(backfill, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	stmt, err := tx.Prepare(`UPDATE objects SET depth = ?, parent = ? WHERE bucket = ? AND key = ? AND chunk_index = 0`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range backfill {
		if _, err := stmt.Exec(depth(r.key), parent(r.key), r.bucket, r.key); err != nil {
			return err
		}
	}
	return nil
}

// runMigrations ensures _migrations exists and applies every migration
// whose version is greater than the highest applied one, recording each
// application so a restart never re-applies a migration.
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}

	maxApplied := -1
	row := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM _migrations`)
	if err := row.Scan(&maxApplied); err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= maxApplied {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if err := m.apply(tx); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec(`INSERT INTO _migrations (version) VALUES (?)`, m.version); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

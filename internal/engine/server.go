// Package engine implements the S3-compatible object storage core: a
// path-style HTTP request router and state machine (objects, multipart
// uploads, copy, listing) backed by a single embedded SQLite store per
// tenant, with a WebSocket channel broadcasting per-request activity to
// subscribed observers.
package engine

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"depot/internal/auth"
)

// chunkSize is the maximum number of bytes stored in a single chunk row.
const chunkSize = 1 << 20 // 1 MiB

// Server is one tenant's object storage engine: a SQLite-backed store, an
// authenticator, and an activity broadcaster, all serialized behind a
// single mutex so that concurrent requests against this tenant never
// observe interleaved mutations.
type Server struct {
	cfg  Config
	db   *sql.DB
	auth *auth.Engine
	bc   *broadcaster

	mu sync.Mutex
}

// NewServer opens (creating if necessary) the tenant's SQLite store,
// applies any outstanding migrations, and returns a ready-to-serve Server.
func NewServer(cfg Config) (*Server, error) {
	db, err := sql.Open("sqlite3", cfg.DataPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // single-writer serialized executor

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Server{
		cfg:  cfg,
		db:   db,
		auth: auth.NewEngine(cfg.AuthSecrets, cfg.AllowDevBypass),
		bc:   newBroadcaster(),
	}, nil
}

// Close releases the underlying database handle.
func (s *Server) Close() error {
	return s.db.Close()
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

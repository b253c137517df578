package artifact

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/monobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/monobuild/internal/project"
	"git.home.luguber.info/inful/monobuild/internal/stage"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps outputs in a single SQLite database, keyed by project
// name and stage.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// NewSQLiteStore opens (and creates, if needed) the database at dbPath.
// Use ":memory:" for a throwaway store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS outputs (
		project TEXT NOT NULL,
		stage TEXT NOT NULL,
		success INTEGER NOT NULL,
		message TEXT,
		artifact TEXT,
		recorded_at INTEGER NOT NULL,
		PRIMARY KEY (project, stage)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// LastOutput implements Lookup.
func (s *SQLiteStore) LastOutput(ctx context.Context, p *project.Project, st stage.Stage) (Output, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		success    bool
		message    sql.NullString
		artifact   sql.NullString
		recordedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT success, message, artifact, recorded_at FROM outputs WHERE project = ? AND stage = ?",
		p.Name, st.String(),
	).Scan(&success, &message, &artifact, &recordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound{}, nil
	}
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryArtifact, "query output").
			WithContext("project", p.Name).WithContext("stage", st.String()).Build()
	}

	rec := record{Success: success, Message: message.String, RecordedAt: time.Unix(recordedAt, 0).UTC()}
	if artifact.Valid && artifact.String != "" {
		var a Artifact
		if err := json.Unmarshal([]byte(artifact.String), &a); err == nil {
			rec.ProducedArtifact = &a
		}
	}
	return rec.output(), nil
}

// Record implements Store.
func (s *SQLiteStore) Record(ctx context.Context, p *project.Project, st stage.Stage, out Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := toRecord(out, s.now())
	if !ok {
		_, err := s.db.ExecContext(ctx, "DELETE FROM outputs WHERE project = ? AND stage = ?", p.Name, st.String())
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryArtifact, "clear output").Build()
		}
		return nil
	}

	var artifactJSON any
	if rec.ProducedArtifact != nil {
		data, err := json.Marshal(rec.ProducedArtifact)
		if err != nil {
			return fmt.Errorf("marshal artifact: %w", err)
		}
		artifactJSON = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outputs (project, stage, success, message, artifact, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (project, stage) DO UPDATE SET
			success = excluded.success,
			message = excluded.message,
			artifact = excluded.artifact,
			recorded_at = excluded.recorded_at`,
		p.Name, st.String(), rec.Success, rec.Message, artifactJSON, rec.RecordedAt.Unix(),
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryArtifact, "insert output").
			WithContext("project", p.Name).WithContext("stage", st.String()).Build()
	}
	return nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists generation jobs and finished documents in a
// SQLite database. It implements the pipeline's JobStore and
// DocumentStore collaborators.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/coursegen/pkg/types"
)

const dbFile = "coursegen.db"

// Store manages the SQLite database holding jobs and documents.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at dataDir/coursegen.db, creating
// the schema if it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			target_id TEXT NOT NULL,
			topic TEXT NOT NULL,
			tags TEXT,
			status TEXT NOT NULL,
			progress REAL NOT NULL DEFAULT 0,
			progress_message TEXT,
			attempts INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			target_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			blocks TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// CreateJob inserts a new job record.
func (s *Store) CreateJob(ctx context.Context, job *types.GenerationJob) error {
	tags, err := json.Marshal(job.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, target_id, topic, tags, status, progress, progress_message, attempts, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.TargetID, job.Topic, string(tags), string(job.Status),
		job.Progress, job.ProgressMessage, job.Attempts, job.Error,
		job.CreatedAt.UTC().Format(time.RFC3339), job.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob loads one job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*types.GenerationJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, target_id, topic, tags, status, progress, progress_message, attempts, error, created_at, updated_at
		 FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// ListJobs returns all jobs, newest first.
func (s *Store) ListJobs(ctx context.Context) ([]types.GenerationJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target_id, topic, tags, status, progress, progress_message, attempts, error, created_at, updated_at
		 FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []types.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*types.GenerationJob, error) {
	var job types.GenerationJob
	var tags, status, createdAt, updatedAt string
	var message, errMsg sql.NullString

	err := row.Scan(&job.ID, &job.TargetID, &job.Topic, &tags, &status,
		&job.Progress, &message, &job.Attempts, &errMsg, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	job.Status = types.JobStatus(status)
	job.ProgressMessage = message.String
	job.Error = errMsg.String
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &job.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		job.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		job.UpdatedAt = t
	}
	return &job, nil
}

// UpdateProgress records a progress checkpoint. Progress writes are
// fire-and-forget from the pipeline's point of view; the caller logs
// failures instead of aborting the job.
func (s *Store) UpdateProgress(ctx context.Context, jobID string, fraction float64, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET progress = ?, progress_message = ?, updated_at = ? WHERE id = ?`,
		fraction, message, time.Now().UTC().Format(time.RFC3339), jobID)
	if err != nil {
		return fmt.Errorf("updating progress for job %s: %w", jobID, err)
	}
	return nil
}

// SetStatus moves a job to a new state, recording the error message for
// failed jobs.
func (s *Store) SetStatus(ctx context.Context, jobID string, status types.JobStatus, errorMessage string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), errorMessage, time.Now().UTC().Format(time.RFC3339), jobID)
	if err != nil {
		return fmt.Errorf("setting status for job %s: %w", jobID, err)
	}
	return nil
}

// RecordAttempt persists the synthesize-and-validate cycle counter.
func (s *Store) RecordAttempt(ctx context.Context, jobID string, attempts int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET attempts = ?, updated_at = ? WHERE id = ?`,
		attempts, time.Now().UTC().Format(time.RFC3339), jobID)
	if err != nil {
		return fmt.Errorf("recording attempt for job %s: %w", jobID, err)
	}
	return nil
}

// SaveDocument writes the finished document for a target, replacing any
// prior document wholesale. The write runs in a transaction so a failed
// job can never leave a partially written document behind.
func (s *Store) SaveDocument(ctx context.Context, targetID string, doc *types.StructuredDocument) error {
	blocks, err := json.Marshal(doc.Blocks)
	if err != nil {
		return fmt.Errorf("encoding blocks: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (target_id, title, blocks, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(target_id) DO UPDATE SET title = excluded.title, blocks = excluded.blocks, updated_at = excluded.updated_at`,
		targetID, doc.Title, string(blocks), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving document for %s: %w", targetID, err)
	}
	return tx.Commit()
}

// GetDocument loads the document for a target. Returns sql.ErrNoRows
// wrapped when no document exists.
func (s *Store) GetDocument(ctx context.Context, targetID string) (*types.StructuredDocument, error) {
	var title, blocks string
	err := s.db.QueryRowContext(ctx,
		`SELECT title, blocks FROM documents WHERE target_id = ?`, targetID).Scan(&title, &blocks)
	if err != nil {
		return nil, fmt.Errorf("loading document for %s: %w", targetID, err)
	}

	doc := &types.StructuredDocument{Title: title}
	if err := json.Unmarshal([]byte(blocks), &doc.Blocks); err != nil {
		return nil, fmt.Errorf("decoding blocks for %s: %w", targetID, err)
	}
	return doc, nil
}

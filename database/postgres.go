package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cmdf/pdfnote-be/config"
	_ "github.com/lib/pq"
)

// NewPostgres opens the relational store and verifies the connection.
func NewPostgres(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// WithTx runs fn inside a transaction. The transaction is rolled back when
// fn returns an error or panics and committed otherwise.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username VARCHAR(30) NOT NULL,
		email VARCHAR(254),
		field TEXT,
		password_hash TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		date_joined TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_username_lower_idx ON users (LOWER(username))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_idx ON users (LOWER(email)) WHERE email IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS revoked_tokens (
		jti TEXT PRIMARY KEY,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pdfs (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title VARCHAR(255) NOT NULL,
		s3_key TEXT NOT NULL DEFAULT '',
		s3_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS pdfs_user_id_idx ON pdfs (user_id)`,
	`CREATE TABLE IF NOT EXISTS pdf_pages (
		id BIGSERIAL PRIMARY KEY,
		pdf_id BIGINT NOT NULL REFERENCES pdfs(id) ON DELETE CASCADE,
		page_num INTEGER NOT NULL,
		text TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS pdf_pages_pdf_id_idx ON pdf_pages (pdf_id, page_num)`,
	`CREATE TABLE IF NOT EXISTS pdf_figures (
		id BIGSERIAL PRIMARY KEY,
		page_id BIGINT NOT NULL REFERENCES pdf_pages(id) ON DELETE CASCADE,
		figure_type TEXT NOT NULL DEFAULT '',
		figure_box JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS pdf_figures_page_id_idx ON pdf_figures (page_id)`,
	`CREATE TABLE IF NOT EXISTS matched_texts (
		id BIGSERIAL PRIMARY KEY,
		page_id BIGINT NOT NULL REFERENCES pdf_pages(id) ON DELETE CASCADE,
		figure_id BIGINT NOT NULL REFERENCES pdf_figures(id) ON DELETE CASCADE,
		raw_text TEXT NOT NULL DEFAULT '',
		matched_text TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS matched_texts_page_id_idx ON matched_texts (page_id)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id BIGSERIAL PRIMARY KEY,
		pdf_id BIGINT NOT NULL REFERENCES pdfs(id) ON DELETE CASCADE,
		color VARCHAR(20) NOT NULL DEFAULT '',
		tag_detail TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS highlights (
		id BIGSERIAL PRIMARY KEY,
		page_id BIGINT NOT NULL REFERENCES pdf_pages(id) ON DELETE CASCADE,
		tag_id BIGINT REFERENCES tags(id) ON DELETE SET NULL,
		text TEXT NOT NULL DEFAULT '',
		color VARCHAR(20) NOT NULL DEFAULT '',
		rects JSONB NOT NULL DEFAULT '[]'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS highlights_page_id_idx ON highlights (page_id)`,
}

// Migrate creates the relational schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	return WithTx(ctx, db, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply migration: %w", err)
			}
		}
		return nil
	})
}

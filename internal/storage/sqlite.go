package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"reina/internal/log"
	"reina/internal/session"
)

// SQLiteSessionRepository keeps the single local session in a SQLite file.
type SQLiteSessionRepository struct {
	db     *sql.DB
	sealer *Sealer
	logger *log.Logger
}

var _ session.Persister = (*SQLiteSessionRepository)(nil)

// NewSQLiteSessionRepository opens (creating if needed) the database at
// dbPath and migrates it.
func NewSQLiteSessionRepository(dbPath string, sealer *Sealer, logger *log.Logger) (*SQLiteSessionRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteSessionRepository{
		db:     db,
		sealer: sealer,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteSessionRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load returns the stored session, or an empty one when none is stored.
func (r *SQLiteSessionRepository) Load(ctx context.Context) (session.Session, error) {
	var (
		s      session.Session
		sealed bool
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, token_kind, display_name, sealed FROM session WHERE id = 1`,
	).Scan(&s.AccessToken, &s.RefreshToken, &s.TokenKind, &s.DisplayName, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, nil
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("query session: %w", err)
	}

	if sealed != r.sealer.Enabled() {
		// Key added or removed since the session was written; it cannot be used.
		r.logger.Warn("Stored session sealed with a different key setting, ignoring it")
		return session.Session{}, nil
	}
	s, err = r.sealer.openSession(s)
	if err != nil {
		r.logger.Warn("Stored session cannot be decrypted, ignoring it", log.FieldError, err)
		return session.Session{}, nil
	}
	return s, nil
}

// Save replaces the stored session. A zero session deletes it.
func (r *SQLiteSessionRepository) Save(ctx context.Context, s session.Session) error {
	if s.IsZero() {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM session WHERE id = 1`); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		r.logger.Debug("Session removed", log.FieldOperation, log.OpDelete)
		return nil
	}

	stored, err := r.sealer.sealSession(s)
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO session (id, access_token, refresh_token, token_kind, display_name, sealed, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_kind = excluded.token_kind,
			display_name = excluded.display_name,
			sealed = excluded.sealed,
			updated_at = excluded.updated_at`,
		stored.AccessToken, stored.RefreshToken, stored.TokenKind, stored.DisplayName, r.sealer.Enabled())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	r.logger.Debug("Session saved", log.FieldOperation, log.OpPersist)
	return nil
}

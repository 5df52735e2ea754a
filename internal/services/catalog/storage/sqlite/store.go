// Package sqlite provides SQLite-backed catalog storage.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/soundleaf/soundleaf/internal/platform/storage/sqlitemigrate"
	"github.com/soundleaf/soundleaf/internal/services/catalog/storage"
	"github.com/soundleaf/soundleaf/internal/services/catalog/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for catalog state.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a catalog SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) runMigrations() error {
	return sqlitemigrate.ApplyMigrations(s.sqlDB, migrations.FS, "")
}

// GetLibraryItem returns the item with the given id or storage.ErrNotFound.
func (s *Store) GetLibraryItem(ctx context.Context, itemID string) (storage.LibraryItemRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.LibraryItemRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.LibraryItemRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, library_id, media_type, title, author, cover_path, duration_sec
FROM library_items WHERE id = ?`, itemID)

	var record storage.LibraryItemRecord
	var duration sql.NullFloat64
	err := row.Scan(&record.ID, &record.LibraryID, &record.MediaType, &record.Title, &record.Author, &record.CoverPath, &duration)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.LibraryItemRecord{}, storage.ErrNotFound
		}
		return storage.LibraryItemRecord{}, fmt.Errorf("scan library item: %w", err)
	}
	if duration.Valid {
		record.Duration = &duration.Float64
	}
	return record, nil
}

// GetEpisode returns one episode of an item or storage.ErrNotFound.
func (s *Store) GetEpisode(ctx context.Context, itemID, episodeID string) (storage.EpisodeRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.EpisodeRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.EpisodeRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, library_item_id, title, duration_sec
FROM episodes WHERE library_item_id = ? AND id = ?`, itemID, episodeID)

	var record storage.EpisodeRecord
	var duration sql.NullFloat64
	err := row.Scan(&record.ID, &record.LibraryItemID, &record.Title, &duration)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.EpisodeRecord{}, storage.ErrNotFound
		}
		return storage.EpisodeRecord{}, fmt.Errorf("scan episode: %w", err)
	}
	if duration.Valid {
		record.Duration = &duration.Float64
	}
	return record, nil
}

// GetUser returns the user with the given id or storage.ErrNotFound.
func (s *Store) GetUser(ctx context.Context, userID string) (storage.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.UserRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, username, is_active, all_libraries FROM users WHERE id = ?`, userID)

	record, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.UserRecord{}, storage.ErrNotFound
		}
		return storage.UserRecord{}, err
	}
	if err := s.loadUserLibraries(ctx, &record); err != nil {
		return storage.UserRecord{}, err
	}
	return record, nil
}

// ListActiveUsers returns every active user ordered by username.
func (s *Store) ListActiveUsers(ctx context.Context) ([]storage.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, username, is_active, all_libraries FROM users
WHERE is_active = 1 ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("query active users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return s.collectUsers(ctx, rows)
}

// ListUsersByIDs returns the users matching the given ids.
func (s *Store) ListUsersByIDs(ctx context.Context, userIDs []string) ([]storage.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(userIDs)), ",")
	args := make([]any, len(userIDs))
	for i, userID := range userIDs {
		args[i] = userID
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, username, is_active, all_libraries FROM users
WHERE id IN (`+placeholders+`) ORDER BY username`, args...)
	if err != nil {
		return nil, fmt.Errorf("query users by ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return s.collectUsers(ctx, rows)
}

// PutLibraryItem inserts or replaces one library item row.
func (s *Store) PutLibraryItem(ctx context.Context, record storage.LibraryItemRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("library item id is required")
	}

	var duration sql.NullFloat64
	if record.Duration != nil {
		duration = sql.NullFloat64{Float64: *record.Duration, Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT OR REPLACE INTO library_items (id, library_id, media_type, title, author, cover_path, duration_sec)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.LibraryID, record.MediaType, record.Title, record.Author, record.CoverPath, duration)
	if err != nil {
		return fmt.Errorf("put library item: %w", err)
	}
	return nil
}

// PutEpisode inserts or replaces one episode row.
func (s *Store) PutEpisode(ctx context.Context, record storage.EpisodeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" || strings.TrimSpace(record.LibraryItemID) == "" {
		return fmt.Errorf("episode id and library item id are required")
	}

	var duration sql.NullFloat64
	if record.Duration != nil {
		duration = sql.NullFloat64{Float64: *record.Duration, Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT OR REPLACE INTO episodes (id, library_item_id, title, duration_sec)
VALUES (?, ?, ?, ?)`,
		record.ID, record.LibraryItemID, record.Title, duration)
	if err != nil {
		return fmt.Errorf("put episode: %w", err)
	}
	return nil
}

// PutUser inserts or replaces one user row and its library grants.
func (s *Store) PutUser(ctx context.Context, record storage.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("user id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put user: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT OR REPLACE INTO users (id, username, is_active, all_libraries)
VALUES (?, ?, ?, ?)`,
		record.ID, record.Username, boolToInt(record.IsActive), boolToInt(record.AllLibraries)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("put user: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_libraries WHERE user_id = ?`, record.ID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear user libraries: %w", err)
	}
	for _, libraryID := range record.LibraryIDs {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO user_libraries (user_id, library_id) VALUES (?, ?)`, record.ID, libraryID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("put user library: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put user: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (storage.UserRecord, error) {
	var record storage.UserRecord
	var isActive, allLibraries int
	if err := row.Scan(&record.ID, &record.Username, &isActive, &allLibraries); err != nil {
		return storage.UserRecord{}, err
	}
	record.IsActive = isActive != 0
	record.AllLibraries = allLibraries != 0
	return record, nil
}

func (s *Store) collectUsers(ctx context.Context, rows *sql.Rows) ([]storage.UserRecord, error) {
	var users []storage.UserRecord
	for rows.Next() {
		record, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	for i := range users {
		if err := s.loadUserLibraries(ctx, &users[i]); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (s *Store) loadUserLibraries(ctx context.Context, record *storage.UserRecord) error {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT library_id FROM user_libraries WHERE user_id = ? ORDER BY library_id`, record.ID)
	if err != nil {
		return fmt.Errorf("query user libraries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var libraryID string
		if err := rows.Scan(&libraryID); err != nil {
			return fmt.Errorf("scan user library: %w", err)
		}
		record.LibraryIDs = append(record.LibraryIDs, libraryID)
	}
	return rows.Err()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

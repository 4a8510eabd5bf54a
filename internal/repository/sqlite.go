package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mmeshcher/shawty/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS links (
	id         TEXT PRIMARY KEY,
	slug       TEXT NOT NULL UNIQUE,
	url        TEXT NOT NULL,
	clicks     INTEGER NOT NULL DEFAULT 0 CHECK (clicks >= 0),
	active     INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	expires_at INTEGER
);
CREATE INDEX IF NOT EXISTS links_created_at_idx ON links (created_at DESC, slug);
`

// SQLiteRepository stores links in a local SQLite file (or :memory:) or in
// a remote libSQL database. Timestamps are unix milliseconds.
type SQLiteRepository struct {
	db     *sql.DB
	sb     squirrel.StatementBuilderType
	logger *zap.Logger
}

func NewSQLiteRepository(ctx context.Context, dbURL string, logger *zap.Logger) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if strings.HasPrefix(dbURL, "libsql://") || strings.HasPrefix(dbURL, "wss://") {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driverName == "sqlite" {
		// SQLite has a single writer; one connection also keeps a
		// :memory: database alive for the lifetime of the pool.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	if err := pingWithBackoff(ctx, db.PingContext, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if driverName == "sqlite" {
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logger.Info("SQLite repository initialized successfully", zap.String("driver", driverName))

	return &SQLiteRepository{
		db:     db,
		sb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		logger: logger,
	}, nil
}

func (s *SQLiteRepository) Exists(ctx context.Context, slug string) (bool, error) {
	query, args, err := s.sb.
		Select("1").
		From("links").
		Where(squirrel.Eq{"slug": slug}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query row: %w", err)
	}

	return true, nil
}

func (s *SQLiteRepository) Insert(ctx context.Context, link *models.Link) error {
	query, args, err := s.sb.
		Insert("links").
		Columns(linkColumns...).
		Values(
			link.ID,
			link.Slug,
			link.URL,
			link.Clicks,
			link.Active,
			link.CreatedAt.UnixMilli(),
			unixMilliOrNil(link.ExpiresAt),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("execute query: %w", err)
	}

	return nil
}

func (s *SQLiteRepository) FindAndIncrementClicks(ctx context.Context, slug string, now time.Time) (*models.Link, error) {
	query, args, err := s.sb.
		Update("links").
		Set("clicks", squirrel.Expr("clicks + 1")).
		Where(squirrel.Eq{"slug": slug, "active": true}).
		Where(squirrel.Or{
			squirrel.Eq{"expires_at": nil},
			squirrel.Gt{"expires_at": now.UnixMilli()},
		}).
		Suffix("RETURNING id, slug, url, clicks, active, created_at, expires_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	link, err := scanSQLiteLink(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("increment clicks: %w", err)
	}

	return link, nil
}

func (s *SQLiteRepository) Get(ctx context.Context, slug string) (*models.Link, error) {
	query, args, err := s.sb.
		Select(linkColumns...).
		From("links").
		Where(squirrel.Eq{"slug": slug}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	link, err := scanSQLiteLink(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query row: %w", err)
	}

	return link, nil
}

func (s *SQLiteRepository) List(ctx context.Context, offset, limit int) ([]models.Link, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM links").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count links: %w", err)
	}

	query, args, err := s.sb.
		Select(linkColumns...).
		From("links").
		OrderBy("created_at DESC", "slug ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	links := make([]models.Link, 0, limit)
	for rows.Next() {
		link, err := scanSQLiteLink(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan row: %w", err)
		}
		links = append(links, *link)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return links, total, nil
}

func (s *SQLiteRepository) SetActive(ctx context.Context, slug string, active bool) error {
	query, args, err := s.sb.
		Update("links").
		Set("active", active).
		Where(squirrel.Eq{"slug": slug}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *SQLiteRepository) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteRepository) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteLink(row rowScanner) (*models.Link, error) {
	var (
		link      models.Link
		createdAt int64
		expiresAt sql.NullInt64
	)

	err := row.Scan(
		&link.ID,
		&link.Slug,
		&link.URL,
		&link.Clicks,
		&link.Active,
		&createdAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	link.CreatedAt = time.UnixMilli(createdAt).UTC()
	if expiresAt.Valid {
		t := time.UnixMilli(expiresAt.Int64).UTC()
		link.ExpiresAt = &t
	}

	return &link, nil
}

func unixMilliOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	// libsql reports constraint failures as plain text.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

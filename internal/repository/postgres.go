package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/mmeshcher/shawty/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	connectAttempts = 5
	connectBackoff  = 500 * time.Millisecond
)

var linkColumns = []string{"id", "slug", "url", "clicks", "active", "created_at", "expires_at"}

type PostgresRepository struct {
	pool   *pgxpool.Pool
	sb     squirrel.StatementBuilderType
	logger *zap.Logger
}

func NewPostgresRepository(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pingWithBackoff(ctx, pool.Ping, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dsn, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	logger.Info("PostgreSQL repository initialized successfully")

	return &PostgresRepository{
		pool:   pool,
		sb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger: logger,
	}, nil
}

// pingWithBackoff retries the first contact with the backend so the service
// survives a database that is still starting.
func pingWithBackoff(ctx context.Context, ping func(context.Context) error, logger *zap.Logger) error {
	backoff := connectBackoff

	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}

		logger.Warn("Storage not reachable",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", connectAttempts),
			zap.Error(err))

		if attempt == connectAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return err
}

func runMigrations(dsn string, logger *zap.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("Migrations applied successfully", zap.Uint("version", version))
	return nil
}

func (p *PostgresRepository) Exists(ctx context.Context, slug string) (bool, error) {
	query, args, err := p.sb.
		Select("1").
		From("links").
		Where(squirrel.Eq{"slug": slug}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = p.pool.QueryRow(ctx, query, args...).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query row: %w", err)
	}

	return true, nil
}

func (p *PostgresRepository) Insert(ctx context.Context, link *models.Link) error {
	query, args, err := p.sb.
		Insert("links").
		Columns(linkColumns...).
		Values(link.ID, link.Slug, link.URL, link.Clicks, link.Active, link.CreatedAt, link.ExpiresAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("execute query: %w", err)
	}

	return nil
}

func (p *PostgresRepository) FindAndIncrementClicks(ctx context.Context, slug string, now time.Time) (*models.Link, error) {
	query, args, err := p.sb.
		Update("links").
		Set("clicks", squirrel.Expr("clicks + 1")).
		Where(squirrel.Eq{"slug": slug, "active": true}).
		Where(squirrel.Or{
			squirrel.Eq{"expires_at": nil},
			squirrel.Gt{"expires_at": now},
		}).
		Suffix("RETURNING id, slug, url, clicks, active, created_at, expires_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	link, err := scanLink(p.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("increment clicks: %w", err)
	}

	return link, nil
}

func (p *PostgresRepository) Get(ctx context.Context, slug string) (*models.Link, error) {
	query, args, err := p.sb.
		Select(linkColumns...).
		From("links").
		Where(squirrel.Eq{"slug": slug}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	link, err := scanLink(p.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query row: %w", err)
	}

	return link, nil
}

func (p *PostgresRepository) List(ctx context.Context, offset, limit int) ([]models.Link, int64, error) {
	countQuery, countArgs, err := p.sb.
		Select("COUNT(*)").
		From("links").
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	var total int64
	if err := p.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count links: %w", err)
	}

	query, args, err := p.sb.
		Select(linkColumns...).
		From("links").
		OrderBy("created_at DESC", "slug ASC").
		Offset(uint64(offset)).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	links := make([]models.Link, 0, limit)
	for rows.Next() {
		link, err := scanLink(rows)
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

func (p *PostgresRepository) SetActive(ctx context.Context, slug string, active bool) error {
	query, args, err := p.sb.
		Update("links").
		Set("active", active).
		Where(squirrel.Eq{"slug": slug}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	cmdTag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (p *PostgresRepository) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresRepository) Close() error {
	p.pool.Close()
	return nil
}

func scanLink(row pgx.Row) (*models.Link, error) {
	var link models.Link
	err := row.Scan(
		&link.ID,
		&link.Slug,
		&link.URL,
		&link.Clicks,
		&link.Active,
		&link.CreatedAt,
		&link.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	link.CreatedAt = link.CreatedAt.UTC()
	if link.ExpiresAt != nil {
		expires := link.ExpiresAt.UTC()
		link.ExpiresAt = &expires
	}

	return &link, nil
}

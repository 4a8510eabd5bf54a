package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mmeshcher/shawty/internal/models"
)

const (
	redisLinkPrefix = "link:"
	redisIndexKey   = "links:by_recency"
)

// insertScript claims KEYS[1] only if it does not exist and indexes the
// link in the same server-side step. ARGV[7] is the index member.
var insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1],
	'id', ARGV[1], 'slug', ARGV[2], 'url', ARGV[3], 'clicks', 0,
	'active', ARGV[4], 'created_at', ARGV[5], 'expires_at', ARGV[6])
redis.call('ZADD', KEYS[2], 0, ARGV[7])
return 1
`)

// incrementScript returns nil for missing, inactive or expired links and
// otherwise bumps clicks and returns the record as a flat field list.
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
if redis.call('HGET', KEYS[1], 'active') ~= '1' then
	return false
end
local expires = redis.call('HGET', KEYS[1], 'expires_at')
if expires and expires ~= '' and tonumber(expires) <= tonumber(ARGV[1]) then
	return false
end
redis.call('HINCRBY', KEYS[1], 'clicks', 1)
return redis.call('HGETALL', KEYS[1])
`)

var setActiveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'active', ARGV[1])
return 1
`)

// RedisRepository keeps each link in a hash. Listing reads a sorted set
// whose members all score 0 and sort lexically newest first, slug ascending
// within the same millisecond.
type RedisRepository struct {
	client *redis.Client
	logger *zap.Logger
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisRepository(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})

	ping := func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
	if err := pingWithBackoff(ctx, ping, logger); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("Redis repository initialized successfully", zap.String("addr", opts.Addr))

	return NewRedisRepositoryWithClient(client, logger), nil
}

func NewRedisRepositoryWithClient(client *redis.Client, logger *zap.Logger) *RedisRepository {
	return &RedisRepository{client: client, logger: logger}
}

func linkKey(slug string) string {
	return redisLinkPrefix + slug
}

// indexMember encodes the creation time inverted and zero-padded so that
// ascending lexical order is newest first.
func indexMember(link *models.Link) string {
	return fmt.Sprintf("%019d:%s", math.MaxInt64-link.CreatedAt.UnixMilli(), link.Slug)
}

func slugFromMember(member string) string {
	_, slug, _ := strings.Cut(member, ":")
	return slug
}

func (r *RedisRepository) Exists(ctx context.Context, slug string) (bool, error) {
	n, err := r.client.Exists(ctx, linkKey(slug)).Result()
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return n > 0, nil
}

func (r *RedisRepository) Insert(ctx context.Context, link *models.Link) error {
	expires := ""
	if link.ExpiresAt != nil {
		expires = strconv.FormatInt(link.ExpiresAt.UnixMilli(), 10)
	}

	claimed, err := insertScript.Run(ctx, r.client,
		[]string{linkKey(link.Slug), redisIndexKey},
		link.ID,
		link.Slug,
		link.URL,
		boolFlag(link.Active),
		link.CreatedAt.UnixMilli(),
		expires,
		indexMember(link),
	).Int()
	if err != nil {
		return fmt.Errorf("insert link: %w", err)
	}

	if claimed == 0 {
		return ErrDuplicateSlug
	}

	return nil
}

func (r *RedisRepository) FindAndIncrementClicks(ctx context.Context, slug string, now time.Time) (*models.Link, error) {
	fields, err := incrementScript.Run(ctx, r.client,
		[]string{linkKey(slug)},
		now.UnixMilli(),
	).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("increment clicks: %w", err)
	}

	values := make(map[string]string, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		values[fields[i]] = fields[i+1]
	}

	return decodeRedisLink(values)
}

func (r *RedisRepository) Get(ctx context.Context, slug string) (*models.Link, error) {
	values, err := r.client.HGetAll(ctx, linkKey(slug)).Result()
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}

	if len(values) == 0 {
		return nil, ErrNotFound
	}

	return decodeRedisLink(values)
}

func (r *RedisRepository) List(ctx context.Context, offset, limit int) ([]models.Link, int64, error) {
	total, err := r.client.ZCard(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("count links: %w", err)
	}

	members, err := r.client.ZRange(ctx, redisIndexKey, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("list slugs: %w", err)
	}

	if len(members) == 0 {
		return []models.Link{}, total, nil
	}

	slugs := make([]string, len(members))
	for i, member := range members {
		slugs[i] = slugFromMember(member)
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(slugs))
	for i, slug := range slugs {
		cmds[i] = pipe.HGetAll(ctx, linkKey(slug))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, 0, fmt.Errorf("load links: %w", err)
	}

	links := make([]models.Link, 0, len(slugs))
	for i, cmd := range cmds {
		values := cmd.Val()
		if len(values) == 0 {
			r.logger.Warn("Indexed slug has no record", zap.String("slug", slugs[i]))
			continue
		}

		link, err := decodeRedisLink(values)
		if err != nil {
			return nil, 0, err
		}
		links = append(links, *link)
	}

	return links, total, nil
}

func (r *RedisRepository) SetActive(ctx context.Context, slug string, active bool) error {
	updated, err := setActiveScript.Run(ctx, r.client, []string{linkKey(slug)}, boolFlag(active)).Int()
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}

	if updated == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func decodeRedisLink(values map[string]string) (*models.Link, error) {
	clicks, err := strconv.ParseInt(values["clicks"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode clicks: %w", err)
	}

	createdAt, err := strconv.ParseInt(values["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}

	link := &models.Link{
		ID:        values["id"],
		Slug:      values["slug"],
		URL:       values["url"],
		Clicks:    clicks,
		Active:    values["active"] == "1",
		CreatedAt: time.UnixMilli(createdAt).UTC(),
	}

	if raw := values["expires_at"]; raw != "" {
		expiresAt, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode expires_at: %w", err)
		}
		t := time.UnixMilli(expiresAt).UTC()
		link.ExpiresAt = &t
	}

	return link, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/shawty/internal/models"
	"github.com/mmeshcher/shawty/internal/repository"
	"github.com/mmeshcher/shawty/internal/slug"
	"github.com/mmeshcher/shawty/internal/urlcheck"
)

const (
	MaxSlugAttempts     = 5
	DefaultPageSize     = 10
	MaxPageSize         = 100
	DefaultStoreTimeout = 3 * time.Second
)

var (
	ErrEmptyURL                = errors.New("empty url")
	ErrInvalidURL              = errors.New("invalid url")
	ErrForbiddenTarget         = errors.New("url points to this service")
	ErrInvalidSlug             = errors.New("invalid slug")
	ErrSlugTaken               = errors.New("slug already exists")
	ErrSlugAllocationExhausted = errors.New("failed to allocate a unique slug")
	ErrNotFound                = errors.New("url not found")
	ErrStorageUnavailable      = errors.New("storage unavailable")
)

type Options struct {
	BaseURL      string
	SlugLength   int
	LinkTTL      time.Duration
	StoreTimeout time.Duration
}

type ShortenerService struct {
	store        repository.LinkStore
	codec        *slug.Codec
	validator    *urlcheck.Validator
	baseURL      string
	ttl          time.Duration
	storeTimeout time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

func NewShortenerService(store repository.LinkStore, opts Options, logger *zap.Logger) (*ShortenerService, error) {
	length := opts.SlugLength
	if length == 0 {
		length = slug.DefaultLength
	}

	codec, err := slug.NewCodec(length)
	if err != nil {
		return nil, err
	}

	timeout := opts.StoreTimeout
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}

	if opts.LinkTTL < 0 {
		return nil, fmt.Errorf("negative link ttl: %s", opts.LinkTTL)
	}

	return &ShortenerService{
		store:        store,
		codec:        codec,
		validator:    urlcheck.NewValidator(opts.BaseURL),
		baseURL:      opts.BaseURL,
		ttl:          opts.LinkTTL,
		storeTimeout: timeout,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}, nil
}

// Shorten validates the destination, claims a slug and stores the new link.
// A client slug is used as given after normalization; otherwise slugs are
// generated until one is free or MaxSlugAttempts is reached.
func (s *ShortenerService) Shorten(ctx context.Context, req models.ShortenRequest) (*models.Link, error) {
	target, err := s.validator.Validate(req.URL)
	if err != nil {
		s.logger.Warn("Rejected url", zap.String("url", req.URL), zap.Error(err))
		return nil, mapURLError(err)
	}

	if req.Slug != nil && strings.TrimSpace(*req.Slug) != "" {
		return s.shortenWithSlug(ctx, target, *req.Slug)
	}

	for attempt := 1; attempt <= MaxSlugAttempts; attempt++ {
		candidate, err := s.codec.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate slug: %w", err)
		}

		link, err := s.insert(ctx, candidate, target)
		if err == nil {
			return link, nil
		}

		if !errors.Is(err, repository.ErrDuplicateSlug) {
			return nil, err
		}

		s.logger.Debug("Generated slug collided",
			zap.String("slug", candidate),
			zap.Int("attempt", attempt))
	}

	s.logger.Error("Failed to allocate slug", zap.Int("attempts", MaxSlugAttempts))
	return nil, ErrSlugAllocationExhausted
}

func (s *ShortenerService) shortenWithSlug(ctx context.Context, target, candidate string) (*models.Link, error) {
	normalized, err := s.codec.Prepare(candidate)
	if err != nil {
		s.logger.Warn("Rejected slug", zap.String("slug", candidate), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidSlug, err)
	}

	exists, err := s.exists(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrSlugTaken
	}

	link, err := s.insert(ctx, normalized, target)
	if errors.Is(err, repository.ErrDuplicateSlug) {
		return nil, ErrSlugTaken
	}
	return link, err
}

func (s *ShortenerService) exists(ctx context.Context, slug string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	exists, err := s.store.Exists(ctx, slug)
	if err != nil {
		return false, s.storageError("exists", slug, err)
	}
	return exists, nil
}

// insert returns repository.ErrDuplicateSlug unwrapped so callers can retry.
func (s *ShortenerService) insert(ctx context.Context, slug, target string) (*models.Link, error) {
	now := s.now()

	link := &models.Link{
		ID:        uuid.NewString(),
		Slug:      slug,
		URL:       target,
		Clicks:    0,
		Active:    true,
		CreatedAt: now,
	}
	if s.ttl > 0 {
		expires := now.Add(s.ttl)
		link.ExpiresAt = &expires
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.store.Insert(ctx, link); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			return nil, err
		}
		return nil, s.storageError("insert", slug, err)
	}

	s.logger.Info("Link created",
		zap.String("slug", link.Slug),
		zap.String("url", link.URL))

	return link, nil
}

// Resolve counts a visit and returns the destination. Missing, inactive and
// expired links are all ErrNotFound.
func (s *ShortenerService) Resolve(ctx context.Context, candidate string) (*models.Link, error) {
	normalized := slug.Normalize(candidate)
	if err := slug.Validate(normalized); err != nil {
		return nil, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	link, err := s.store.FindAndIncrementClicks(ctx, normalized, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.storageError("resolve", normalized, err)
	}

	return link, nil
}

// Stats reads a link without counting a visit.
func (s *ShortenerService) Stats(ctx context.Context, candidate string) (*models.Link, error) {
	normalized := slug.Normalize(candidate)
	if err := slug.Validate(normalized); err != nil {
		return nil, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	link, err := s.store.Get(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.storageError("stats", normalized, err)
	}

	return link, nil
}

// SetActive toggles whether a link resolves. It is not exposed over HTTP.
func (s *ShortenerService) SetActive(ctx context.Context, candidate string, active bool) error {
	normalized := slug.Normalize(candidate)
	if err := slug.Validate(normalized); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSlug, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.store.SetActive(ctx, normalized, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return s.storageError("set active", normalized, err)
	}

	s.logger.Info("Link state changed",
		zap.String("slug", normalized),
		zap.Bool("active", active))

	return nil
}

// List returns one page of links, newest first. Out-of-range page and size
// values are clamped rather than rejected.
func (s *ShortenerService) List(ctx context.Context, page, pageSize int) (*models.LinkPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	// Pages whose offset does not fit in an int are past any real data;
	// only the total is read for them.
	beyondRange := page > math.MaxInt/pageSize

	offset, limit := (page-1)*pageSize, pageSize
	if beyondRange {
		offset, limit = 0, 1
	}

	links, total, err := s.store.List(ctx, offset, limit)
	if err != nil {
		return nil, s.storageError("list", "", err)
	}
	if beyondRange {
		links = []models.Link{}
	}

	size := int64(pageSize)
	totalPages := int((total + size - 1) / size)

	return &models.LinkPage{
		Links: links,
		Pagination: models.Pagination{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalCount:  total,
			HasMore:     page < totalPages,
		},
	}, nil
}

// ShortURL joins the public base URL and the slug.
func (s *ShortenerService) ShortURL(slug string) string {
	full, err := url.JoinPath(s.baseURL, slug)
	if err != nil {
		return strings.TrimRight(s.baseURL, "/") + "/" + slug
	}
	return full
}

func (s *ShortenerService) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		return s.storageError("ping", "", err)
	}
	return nil
}

func (s *ShortenerService) storageError(op, slug string, err error) error {
	s.logger.Error("Storage operation failed",
		zap.String("op", op),
		zap.String("slug", slug),
		zap.Error(err))
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}

func mapURLError(err error) error {
	switch {
	case errors.Is(err, urlcheck.ErrEmptyURL):
		return ErrEmptyURL
	case errors.Is(err, urlcheck.ErrForbiddenTarget):
		return fmt.Errorf("%w: %v", ErrForbiddenTarget, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
}

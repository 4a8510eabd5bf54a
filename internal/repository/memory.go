package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/mmeshcher/shawty/internal/models"
	"go.uber.org/zap"
)

// MemoryRepository keeps links in a map guarded by one mutex. When a
// storage path is set, the full set is written to a JSON file after every
// mutation and read back on start.
type MemoryRepository struct {
	mu          sync.RWMutex
	saveMu      sync.Mutex
	data        map[string]*models.Link
	storagePath string
	logger      *zap.Logger
}

func NewMemoryRepository(storagePath string, logger *zap.Logger) (*MemoryRepository, error) {
	r := &MemoryRepository{
		data:        make(map[string]*models.Link),
		storagePath: storagePath,
		logger:      logger,
	}

	if storagePath != "" {
		if err := r.loadFromFile(); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *MemoryRepository) Exists(ctx context.Context, slug string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.data[slug]
	return ok, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, link *models.Link) error {
	r.mu.Lock()
	if _, exists := r.data[link.Slug]; exists {
		r.mu.Unlock()
		return ErrDuplicateSlug
	}

	stored := *link
	r.data[link.Slug] = &stored
	r.mu.Unlock()

	r.persist("insert", link.Slug)
	return nil
}

func (r *MemoryRepository) FindAndIncrementClicks(ctx context.Context, slug string, now time.Time) (*models.Link, error) {
	r.mu.Lock()
	link, ok := r.data[slug]
	if !ok || !link.Resolvable(now) {
		r.mu.Unlock()
		return nil, ErrNotFound
	}

	link.Clicks++
	result := *link
	r.mu.Unlock()

	r.persist("click", slug)
	return &result, nil
}

func (r *MemoryRepository) Get(ctx context.Context, slug string) (*models.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.data[slug]
	if !ok {
		return nil, ErrNotFound
	}

	result := *link
	return &result, nil
}

func (r *MemoryRepository) List(ctx context.Context, offset, limit int) ([]models.Link, int64, error) {
	r.mu.RLock()
	links := make([]models.Link, 0, len(r.data))
	for _, link := range r.data {
		links = append(links, *link)
	}
	r.mu.RUnlock()

	sortNewestFirst(links)

	total := int64(len(links))
	if offset >= len(links) {
		return []models.Link{}, total, nil
	}

	end := offset + limit
	if end > len(links) {
		end = len(links)
	}

	return links[offset:end], total, nil
}

func (r *MemoryRepository) SetActive(ctx context.Context, slug string, active bool) error {
	r.mu.Lock()
	link, ok := r.data[slug]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	link.Active = active
	r.mu.Unlock()

	r.persist("set active", slug)
	return nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

func (r *MemoryRepository) Close() error {
	return r.saveToFile()
}

// persist writes the snapshot. The map stays authoritative, so a failed
// write is logged and the next mutation retries it.
func (r *MemoryRepository) persist(op, slug string) {
	if err := r.saveToFile(); err != nil {
		r.logger.Warn("Failed to persist links",
			zap.String("op", op),
			zap.String("slug", slug),
			zap.Error(err))
	}
}

// fileRecord exposes the storage ID that the API encoding hides.
type fileRecord struct {
	ID string `json:"id"`
	models.Link
}

func sortNewestFirst(links []models.Link) {
	sort.Slice(links, func(i, j int) bool {
		if !links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].CreatedAt.After(links[j].CreatedAt)
		}
		return links[i].Slug < links[j].Slug
	})
}

func (r *MemoryRepository) saveToFile() error {
	if r.storagePath == "" {
		return nil
	}

	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.RLock()
	records := make([]models.Link, 0, len(r.data))
	for _, link := range r.data {
		records = append(records, *link)
	}
	r.mu.RUnlock()

	sortNewestFirst(records)

	out := make([]fileRecord, len(records))
	for i, link := range records {
		out[i] = fileRecord{ID: link.ID, Link: link}
	}

	jsonData, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal links: %w", err)
	}

	tmp := r.storagePath + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0o644); err != nil {
		return fmt.Errorf("write storage file: %w", err)
	}

	if err := os.Rename(tmp, r.storagePath); err != nil {
		return fmt.Errorf("replace storage file: %w", err)
	}

	return nil
}

func (r *MemoryRepository) loadFromFile() error {
	data, err := os.ReadFile(r.storagePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read storage file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var records []fileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse storage file: %w", err)
	}

	r.mu.Lock()
	for _, record := range records {
		link := record.Link
		link.ID = record.ID
		r.data[link.Slug] = &link
	}
	r.mu.Unlock()

	r.logger.Info("Links loaded from file",
		zap.String("path", r.storagePath),
		zap.Int("count", len(records)))

	return nil
}

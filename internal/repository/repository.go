// Package repository holds the Link Store: the only shared mutable state in
// the service. Every backend enforces slug uniqueness and the atomic
// find-and-increment at the storage layer.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mmeshcher/shawty/internal/models"
)

var (
	ErrNotFound      = errors.New("link not found")
	ErrDuplicateSlug = errors.New("duplicate slug")
)

type LinkStore interface {
	Exists(ctx context.Context, slug string) (bool, error)
	// Insert fails with ErrDuplicateSlug when the slug is already stored,
	// including when a concurrent insert claimed it first.
	Insert(ctx context.Context, link *models.Link) error
	// FindAndIncrementClicks increments the counter of the active,
	// unexpired link in one indivisible step and returns the updated
	// record, or ErrNotFound.
	FindAndIncrementClicks(ctx context.Context, slug string, now time.Time) (*models.Link, error)
	Get(ctx context.Context, slug string) (*models.Link, error)
	// List returns links newest first and the total number of links.
	List(ctx context.Context, offset, limit int) ([]models.Link, int64, error)
	SetActive(ctx context.Context, slug string, active bool) error
	Ping(ctx context.Context) error
	Close() error
}

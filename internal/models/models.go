package models

import "time"

// Link is the only persisted entity. Everything except Clicks and Active is
// fixed at creation.
type Link struct {
	ID        string     `json:"-" db:"id"`
	Slug      string     `json:"slug" db:"slug"`
	URL       string     `json:"url" db:"url"`
	Clicks    int64      `json:"clicks" db:"clicks"`
	Active    bool       `json:"active" db:"active"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" db:"expires_at"`
}

// Expired reports whether the link has passed its retention deadline.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// Resolvable reports whether a redirect may be served for the link.
func (l *Link) Resolvable(now time.Time) bool {
	return l.Active && !l.Expired(now)
}

// ShortenRequest is the body of POST /api/shorten. Slug is nil when the
// client did not send one.
type ShortenRequest struct {
	URL  string  `json:"url"`
	Slug *string `json:"slug,omitempty"`
}

type ShortenResponse struct {
	Slug      string     `json:"slug"`
	URL       string     `json:"url"`
	ShortURL  string     `json:"shortUrl"`
	Clicks    int64      `json:"clicks"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type StatsResponse struct {
	URL       string    `json:"url"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"createdAt"`
	Active    bool      `json:"active"`
}

type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int64 `json:"totalUrls"`
	HasMore     bool  `json:"hasMore"`
}

// LinkPage is one page of the time-descending listing.
type LinkPage struct {
	Links      []Link
	Pagination Pagination
}

type ListResponse struct {
	URLs       []ShortenResponse `json:"urls"`
	Pagination Pagination        `json:"pagination"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

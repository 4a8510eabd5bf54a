package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/shawty/internal/models"
	"github.com/mmeshcher/shawty/internal/repository"
	"github.com/mmeshcher/shawty/internal/service"
)

const testBaseURL = "http://localhost:8080"

func newTestService(t *testing.T) *service.ShortenerService {
	t.Helper()

	store, err := repository.NewMemoryRepository("", zap.NewNop())
	require.NoError(t, err)

	svc, err := service.NewShortenerService(store, service.Options{BaseURL: testBaseURL}, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func newTestRouter(t *testing.T) (*service.ShortenerService, http.Handler) {
	t.Helper()

	svc := newTestService(t)
	return svc, NewHandler(svc, zap.NewNop()).SetupRouter()
}

func mustShorten(t *testing.T, svc *service.ShortenerService, url, slug string) *models.Link {
	t.Helper()

	req := models.ShortenRequest{URL: url}
	if slug != "" {
		req.Slug = &slug
	}

	link, err := svc.Shorten(context.Background(), req)
	require.NoError(t, err)
	return link
}

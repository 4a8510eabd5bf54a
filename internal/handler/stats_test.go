package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/shawty/internal/models"
)

func TestStatsHandler(t *testing.T) {
	svc, router := newTestRouter(t)
	created := mustShorten(t, svc, "https://example.com/stats", "counted")

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/counted", nil))
		require.Equal(t, http.StatusMovedPermanently, w.Code)
	}

	tests := []struct {
		name       string
		path       string
		statusCode int
		clicks     int64
	}{
		{name: "positive", path: "/api/stats/counted", statusCode: http.StatusOK, clicks: 3},
		{name: "positive: reading stats does not count", path: "/api/stats/COUNTED", statusCode: http.StatusOK, clicks: 3},
		{name: "negative: unknown slug", path: "/api/stats/unknown", statusCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.statusCode, w.Code)
			if tt.statusCode != http.StatusOK {
				assert.JSONEq(t, `{"error":"URL not found"}`, w.Body.String())
				return
			}

			var stats models.StatsResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
			assert.Equal(t, "https://example.com/stats", stats.URL)
			assert.Equal(t, tt.clicks, stats.Clicks)
			assert.True(t, stats.Active)
			assert.True(t, created.CreatedAt.Equal(stats.CreatedAt))
		})
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantSize   int
		wantLevel  zapcore.Level
	}{
		{
			name: "explicit status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte("created"))
			},
			wantStatus: http.StatusCreated,
			wantSize:   len("created"),
			wantLevel:  zapcore.InfoLevel,
		},
		{
			name: "implicit ok",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("ok"))
			},
			wantStatus: http.StatusOK,
			wantSize:   len("ok"),
			wantLevel:  zapcore.InfoLevel,
		},
		{
			name:       "no body",
			handler:    func(w http.ResponseWriter, r *http.Request) {},
			wantStatus: http.StatusOK,
			wantLevel:  zapcore.InfoLevel,
		},
		{
			name: "not found stays info",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantStatus: http.StatusNotFound,
			wantLevel:  zapcore.InfoLevel,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("down"))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantSize:   len("down"),
			wantLevel:  zapcore.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.InfoLevel)
			handler := Logger(zap.New(core))(tt.handler)

			req := httptest.NewRequest(http.MethodGet, "/abc", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			entries := logs.FilterMessage("HTTP request served").All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantLevel, entries[0].Level)

			fields := entries[0].ContextMap()
			assert.Equal(t, int64(tt.wantStatus), fields["status"])
			assert.Equal(t, int64(tt.wantSize), fields["size"])
			assert.Equal(t, "/abc", fields["uri"])
			assert.Equal(t, http.MethodGet, fields["method"])
			assert.Equal(t, req.RemoteAddr, fields["remote_addr"])
		})
	}
}

func TestLoggerRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := chimiddleware.RequestID(Logger(zap.New(core))(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {},
	)))

	req := httptest.NewRequest(http.MethodGet, "/abc", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("HTTP request served").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
}

package middleware

import (
	"compress/gzip"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mmeshcher/shawty/internal/models"
)

var compressibleTypes = []string{"application/json", "text/html", "text/plain"}

// GzipMiddleware unpacks gzip request bodies and compresses JSON and text
// responses for clients that accept gzip. The decision is made when the
// handler writes its header, so bodiless responses such as redirects pass
// through untouched.
func GzipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			gzReader, err := gzip.NewReader(r.Body)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "Invalid gzip body")
				return
			}
			defer gzReader.Close()
			r.Body = gzReader
			r.Header.Del("Content-Encoding")
			r.ContentLength = -1
		}

		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		grw := &gzipResponseWriter{ResponseWriter: w}
		defer grw.Close()

		next.ServeHTTP(grw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	writer      *gzip.Writer
	wroteHeader bool
}

func (grw *gzipResponseWriter) WriteHeader(statusCode int) {
	if grw.wroteHeader {
		return
	}
	grw.wroteHeader = true

	if statusCode != http.StatusNoContent && statusCode != http.StatusNotModified && shouldCompress(grw.Header().Get("Content-Type")) {
		grw.Header().Set("Content-Encoding", "gzip")
		grw.Header().Del("Content-Length")
		grw.Header().Add("Vary", "Accept-Encoding")
		grw.writer = gzip.NewWriter(grw.ResponseWriter)
	}

	grw.ResponseWriter.WriteHeader(statusCode)
}

func (grw *gzipResponseWriter) Write(b []byte) (int, error) {
	if !grw.wroteHeader {
		if grw.Header().Get("Content-Type") == "" {
			grw.Header().Set("Content-Type", http.DetectContentType(b))
		}
		grw.WriteHeader(http.StatusOK)
	}

	if grw.writer == nil {
		return grw.ResponseWriter.Write(b)
	}
	return grw.writer.Write(b)
}

func (grw *gzipResponseWriter) Close() error {
	if grw.writer == nil {
		return nil
	}
	return grw.writer.Close()
}

func shouldCompress(contentType string) bool {
	for _, t := range compressibleTypes {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: message})
}

package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/zstd"
)

// compressionLevel applies to both gzip and brotli responses.
const compressionLevel = 5

// newCompressor compresses JSON responses, preferring brotli over gzip when the
// client accepts both.
func newCompressor() *middleware.Compressor {
	c := middleware.NewCompressor(compressionLevel, "application/json", "text/plain")
	c.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})
	return c
}

// decompressMiddleware handles decompression of request bodies based on Content-Encoding header
// Supports: zstd
// Requests without Content-Encoding pass through unchanged
func decompressMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encoding := r.Header.Get("Content-Encoding")

			if encoding == "" || strings.EqualFold(encoding, "identity") {
				next.ServeHTTP(w, r)
				return
			}

			if !strings.EqualFold(encoding, "zstd") {
				respondError(w, http.StatusUnsupportedMediaType,
					"Unsupported Content-Encoding: "+encoding)
				return
			}

			decoder, err := zstd.NewReader(r.Body)
			if err != nil {
				respondError(w, http.StatusBadRequest, "Failed to create zstd decoder")
				return
			}
			defer decoder.Close()

			r.Body = io.NopCloser(decoder)
			r.Header.Del("Content-Encoding")
			r.Header.Del("Content-Length")
			r.ContentLength = -1

			next.ServeHTTP(w, r)
		})
	}
}

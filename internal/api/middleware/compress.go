package middleware

import (
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Supported content codings, in order of preference.
const (
	EncodingZstd = "zstd"
	EncodingGzip = "gzip"
)

// compressWriter sends the response body through an encoder.
type compressWriter struct {
	gin.ResponseWriter
	encoder io.Writer
}

func (w *compressWriter) Write(b []byte) (int, error) {
	return w.encoder.Write(b)
}

func (w *compressWriter) WriteString(s string) (int, error) {
	return w.encoder.Write([]byte(s))
}

func (w *compressWriter) WriteHeader(code int) {
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(code)
}

// Compress encodes response bodies with zstd or gzip when the client
// accepts them. gzipLevel is a gzip compression level.
func Compress(gzipLevel int) gin.HandlerFunc {
	return func(c *gin.Context) {
		encoding := negotiateEncoding(c.GetHeader("Accept-Encoding"))
		if encoding == "" {
			c.Next()
			return
		}

		var encoder io.WriteCloser
		switch encoding {
		case EncodingZstd:
			enc, err := zstd.NewWriter(c.Writer)
			if err != nil {
				c.Next()
				return
			}
			encoder = enc
		case EncodingGzip:
			enc, err := gzip.NewWriterLevel(c.Writer, gzipLevel)
			if err != nil {
				enc = gzip.NewWriter(c.Writer)
			}
			encoder = enc
		}

		c.Header("Content-Encoding", encoding)
		c.Header("Vary", "Accept-Encoding")
		original := c.Writer
		c.Writer = &compressWriter{ResponseWriter: original, encoder: encoder}
		defer func() {
			encoder.Close()
			c.Writer = original
		}()

		c.Next()
	}
}

// negotiateEncoding picks the preferred coding the Accept-Encoding header
// allows. Codings with q=0 are refused.
func negotiateEncoding(header string) string {
	accepted := make(map[string]bool)
	for _, part := range strings.Split(header, ",") {
		fields := strings.Split(part, ";")
		name := strings.ToLower(strings.TrimSpace(fields[0]))
		refused := false
		for _, param := range fields[1:] {
			key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || strings.TrimSpace(key) != "q" {
				continue
			}
			if q, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && q == 0 {
				refused = true
			}
		}
		if name != "" && !refused {
			accepted[name] = true
		}
	}

	for _, enc := range []string{EncodingZstd, EncodingGzip} {
		if accepted[enc] {
			return enc
		}
	}
	return ""
}

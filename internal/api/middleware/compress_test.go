package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var page = "<!DOCTYPE html>" + strings.Repeat("<div class=\"container\"></div>", 64)

func compressRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/v1/document", Compress(gzip.BestSpeed), func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
	})
	return router
}

func fetch(router *gin.Engine, acceptEncoding string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/document", nil)
	if acceptEncoding != "" {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCompressGzip(t *testing.T) {
	w := fetch(compressRouter(), "gzip, deflate")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Equal(t, "Accept-Encoding", w.Header().Get("Vary"))
	assert.Less(t, w.Body.Len(), len(page))

	r, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, page, string(body))
}

func TestCompressZstd(t *testing.T) {
	w := fetch(compressRouter(), "gzip, zstd")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "zstd", w.Header().Get("Content-Encoding"))

	r, err := zstd.NewReader(w.Body)
	require.NoError(t, err)
	defer r.Close()
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, page, string(body))
}

func TestCompressIdentity(t *testing.T) {
	for _, header := range []string{"", "br", "gzip;q=0"} {
		w := fetch(compressRouter(), header)
		assert.Empty(t, w.Header().Get("Content-Encoding"), header)
		assert.Equal(t, page, w.Body.String(), header)
	}
}

func TestNegotiateEncoding(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"gzip", EncodingGzip},
		{"GZIP", EncodingGzip},
		{"deflate, gzip;q=0.8", EncodingGzip},
		{"gzip, zstd", EncodingZstd},
		{"zstd;q=0, gzip", EncodingGzip},
		{"gzip;q=0.0", ""},
		{"br, identity", ""},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, negotiateEncoding(tt.header))
		})
	}
}

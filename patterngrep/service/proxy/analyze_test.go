package proxy

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeRequest(t *testing.T) {
	t.Parallel()

	t.Run("origin_form", func(t *testing.T) {
		raw := []byte("POST /login?next=%2F HTTP/1.1\r\nHost: example.com:8080\r\nContent-Length: 4\r\n\r\nuser")
		info, err := AnalyzeRequest(raw)
		require.NoError(t, err)
		assert.Equal(t, "POST", info.Method)
		assert.Equal(t, "http://example.com:8080/login?next=%2F", info.URL)
		assert.Equal(t, []string{"POST /login?next=%2F HTTP/1.1", "Host: example.com:8080", "Content-Length: 4"}, info.Headers)
		assert.Equal(t, len(raw)-4, info.BodyOffset)
		assert.Equal(t, "user", string(info.Body))
	})

	t.Run("absolute_form", func(t *testing.T) {
		info, err := AnalyzeRequest([]byte("GET http://a.test/x HTTP/1.1\r\nHost: other\r\n\r\n"))
		require.NoError(t, err)
		assert.Equal(t, "http://a.test/x", info.URL)
		assert.Empty(t, info.Body)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := AnalyzeRequest([]byte("nonsense\r\n\r\n"))
		assert.Error(t, err)
	})
}

func TestAnalyzeResponse(t *testing.T) {
	t.Parallel()

	raw := []byte("HTTP/1.1 404 Not Found\nContent-Type: text/plain\n\nmissing")
	info, err := AnalyzeResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, 404, info.StatusCode)
	assert.Equal(t, []string{"HTTP/1.1 404 Not Found", "Content-Type: text/plain"}, info.Headers)
	assert.Equal(t, "missing", string(info.Body))
	assert.Equal(t, "text/plain", info.Parsed.Get("Content-Type"))
}

func TestBuildObservation(t *testing.T) {
	t.Parallel()

	rawReq := []byte("GET /a HTTP/1.1\r\nHost: example.com\r\n\r\n")

	t.Run("request_only", func(t *testing.T) {
		obs, err := buildObservation(rawReq, nil, true, 0)
		require.NoError(t, err)
		assert.True(t, obs.RequestOnly)
		assert.Nil(t, obs.Response)
		assert.Equal(t, "http://example.com/a", obs.Request.URL)
		assert.Equal(t, len(rawReq), obs.Request.Length)
	})

	t.Run("decoded_and_truncated", func(t *testing.T) {
		body := gzipBytes(t, []byte("0123456789 token"))
		rawResp := append([]byte("HTTP/1.1 200 OK\r\nContent-Encoding: gzip\r\n\r\n"), body...)

		obs, err := buildObservation(rawReq, rawResp, true, 10)
		require.NoError(t, err)
		require.NotNil(t, obs.Response)
		assert.False(t, obs.RequestOnly)
		assert.Equal(t, "0123456789", string(obs.Response.Body))
		assert.Equal(t, len(rawResp), obs.Response.Length)
		assert.Equal(t, 200, obs.Response.StatusCode)
		assert.Equal(t, "HTTP/1.1 200 OK", obs.Response.Headers[0])
	})

	t.Run("large_compressed_body_bounded", func(t *testing.T) {
		body := gzipBytes(t, bytes.Repeat([]byte{'z'}, 8<<20))
		rawResp := append([]byte("HTTP/1.1 200 OK\r\nContent-Encoding: gzip\r\nContent-Type: text/plain\r\n\r\n"), body...)

		obs, err := buildObservation(rawReq, rawResp, true, 1024)
		require.NoError(t, err)
		assert.Len(t, obs.Response.Body, 1024)
		assert.Equal(t, len(rawResp), obs.Response.Length)
	})

	t.Run("decode_disabled", func(t *testing.T) {
		body := gzipBytes(t, []byte("hidden"))
		rawResp := append([]byte("HTTP/1.1 200 OK\r\nContent-Encoding: gzip\r\n\r\n"), body...)

		obs, err := buildObservation(rawReq, rawResp, false, 0)
		require.NoError(t, err)
		assert.Equal(t, body, obs.Response.Body)
	})
}

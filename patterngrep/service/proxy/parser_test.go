package proxy

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestParseRequest(t *testing.T) {
	t.Parallel()

	t.Run("proxy_form", func(t *testing.T) {
		req, err := parseRequest(reader("GET http://example.com/a/b?x=1&y=2 HTTP/1.1\r\nHost: example.com\r\n\r\n"))
		require.NoError(t, err)
		assert.Equal(t, "GET", req.Method)
		assert.Equal(t, "http://example.com/a/b", req.Target)
		assert.Equal(t, "x=1&y=2", req.Query)
		assert.Equal(t, "HTTP/1.1", req.Version)
		assert.Equal(t, "example.com", req.Headers.Get("host"))
		assert.False(t, req.BareLF)
	})

	t.Run("content_length_body", func(t *testing.T) {
		req, err := parseRequest(reader("POST /p HTTP/1.1\r\nContent-Length: 5\r\n\r\nhelloEXTRA"))
		require.NoError(t, err)
		assert.Equal(t, "hello", string(req.Body))
	})

	t.Run("chunked_body", func(t *testing.T) {
		req, err := parseRequest(reader("POST /p HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n6;ext=1\r\n world\r\n0\r\nX-Trailer: t\r\n\r\n"))
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(req.Body))
	})

	t.Run("bare_lf", func(t *testing.T) {
		req, err := parseRequest(reader("GET / HTTP/1.1\nHost: a\n\n"))
		require.NoError(t, err)
		assert.True(t, req.BareLF)
		assert.Equal(t, "a", req.Headers.Get("Host"))
	})

	t.Run("missing_version", func(t *testing.T) {
		req, err := parseRequest(reader("GET /\r\n\r\n"))
		require.NoError(t, err)
		assert.Equal(t, "HTTP/1.1", req.Version)
	})

	t.Run("obs_fold", func(t *testing.T) {
		req, err := parseRequest(reader("GET / HTTP/1.1\r\nX-Long: one\r\n  two\r\n\r\n"))
		require.NoError(t, err)
		require.Len(t, req.Headers, 1)
		assert.Equal(t, "one two", req.Headers[0].Value)
		assert.Equal(t, "X-Long: one\r\n  two", string(req.Headers[0].RawLine))
	})

	t.Run("keep_alive_sequence", func(t *testing.T) {
		br := reader("GET /1 HTTP/1.1\r\nHost: a\r\n\r\nGET /2 HTTP/1.1\r\nHost: a\r\n\r\n")
		first, err := parseRequest(br)
		require.NoError(t, err)
		second, err := parseRequest(br)
		require.NoError(t, err)
		assert.Equal(t, "/1", first.Target)
		assert.Equal(t, "/2", second.Target)

		_, err = parseRequest(br)
		assert.ErrorIs(t, err, ErrEmptyRequest)
	})

	t.Run("invalid_line", func(t *testing.T) {
		_, err := parseRequest(reader("GARBAGE\r\n\r\n"))
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	t.Run("content_length", func(t *testing.T) {
		resp, err := parseResponse(reader("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi"), "GET")
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, "OK", resp.StatusText)
		assert.Equal(t, "hi", string(resp.Body))
	})

	t.Run("read_to_eof", func(t *testing.T) {
		resp, err := parseResponse(reader("HTTP/1.0 200 OK\r\n\r\nuntil close"), "GET")
		require.NoError(t, err)
		assert.Equal(t, "until close", string(resp.Body))
	})

	t.Run("head_has_no_body", func(t *testing.T) {
		resp, err := parseResponse(reader("HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\n"), "HEAD")
		require.NoError(t, err)
		assert.Empty(t, resp.Body)
	})

	t.Run("no_content", func(t *testing.T) {
		resp, err := parseResponse(reader("HTTP/1.1 204 No Content\r\n\r\n"), "GET")
		require.NoError(t, err)
		assert.Equal(t, 204, resp.StatusCode)
		assert.Empty(t, resp.Body)
	})

	t.Run("multi_word_reason", func(t *testing.T) {
		resp, err := parseResponse(reader("HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n"), "GET")
		require.NoError(t, err)
		assert.Equal(t, "Not Found", resp.StatusText)
	})

	t.Run("invalid_status", func(t *testing.T) {
		_, err := parseResponse(reader("HTTP/1.1 abc OK\r\n\r\n"), "GET")
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := parseResponse(reader(""), "GET")
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
}

func TestSerializeRaw(t *testing.T) {
	t.Parallel()

	t.Run("request_round_trip", func(t *testing.T) {
		raw := "POST /p?q=1 HTTP/1.1\r\nHost: a\r\nContent-Length: 3\r\n\r\nabc"
		req, err := parseRequest(reader(raw))
		require.NoError(t, err)
		assert.Equal(t, raw, string(req.SerializeRaw(&bytes.Buffer{})))
	})

	t.Run("chunked_becomes_content_length", func(t *testing.T) {
		resp, err := parseResponse(reader("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n3\r\nabc\r\n0\r\n\r\n"), "GET")
		require.NoError(t, err)
		out := string(resp.SerializeRaw(&bytes.Buffer{}))
		assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 3\r\n\r\nabc", out)
	})

	t.Run("bare_lf_preserved", func(t *testing.T) {
		resp, err := parseResponse(reader("HTTP/1.1 200 OK\nContent-Length: 1\n\nx"), "GET")
		require.NoError(t, err)
		assert.Equal(t, "HTTP/1.1 200 OK\nContent-Length: 1\n\nx", string(resp.SerializeRaw(&bytes.Buffer{})))
	})

	t.Run("adds_missing_content_length", func(t *testing.T) {
		resp := &RawHTTP1Response{Version: "HTTP/1.1", StatusCode: 200, StatusText: "OK", Body: []byte("xy")}
		assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nxy", string(resp.SerializeRaw(&bytes.Buffer{})))
	})
}

func TestHeaders(t *testing.T) {
	t.Parallel()

	h := Headers{{Name: "Content-Type", Value: "text/html"}, {Name: "X-A", Value: "1"}, {Name: "x-a", Value: "2"}}
	assert.Equal(t, "text/html", h.Get("content-type"))
	assert.Equal(t, "1", h.Get("X-A"))

	h.Set("CONTENT-TYPE", "text/plain")
	assert.Equal(t, "text/plain", h.Get("Content-Type"))
	assert.Nil(t, h[0].RawLine)

	h.Remove("X-A")
	assert.Len(t, h, 1)

	h.Set("New", "v")
	assert.Equal(t, []string{"Content-Type: text/plain", "New: v"}, h.Lines())
}

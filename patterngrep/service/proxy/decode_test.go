package proxy

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestNormalizeEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in        string
		want      string
		supported bool
	}{
		{in: "gzip", want: "gzip", supported: true},
		{in: " GZIP ", want: "gzip", supported: true},
		{in: "x-gzip", want: "gzip", supported: true},
		{in: "Deflate", want: "deflate", supported: true},
		{in: "zstd", want: "zstd", supported: true},
		{in: "br", want: "br", supported: false},
		{in: "gzip, br", want: "", supported: false},
	}
	for _, tc := range tests {
		got, ok := NormalizeEncoding(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.supported, ok, tc.in)
	}
}

func TestDecompress(t *testing.T) {
	t.Parallel()

	plain := []byte("the quick brown fox jumps over the lazy dog")

	t.Run("gzip", func(t *testing.T) {
		out, ok := Decompress(gzipBytes(t, plain), "gzip", 0)
		assert.True(t, ok)
		assert.Equal(t, plain, out)
	})

	t.Run("raw_deflate", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		require.NoError(t, err)
		_, err = w.Write(plain)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		out, ok := Decompress(buf.Bytes(), "deflate", 0)
		assert.True(t, ok)
		assert.Equal(t, plain, out)
	})

	t.Run("zlib_deflate", func(t *testing.T) {
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		_, err := w.Write(plain)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		out, ok := Decompress(buf.Bytes(), "deflate", 0)
		assert.True(t, ok)
		assert.Equal(t, plain, out)
	})

	t.Run("zstd", func(t *testing.T) {
		enc, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		compressed := enc.EncodeAll(plain, nil)
		require.NoError(t, enc.Close())

		out, ok := Decompress(compressed, "zstd", 0)
		assert.True(t, ok)
		assert.Equal(t, plain, out)
	})

	t.Run("corrupt", func(t *testing.T) {
		out, ok := Decompress([]byte("not gzip"), "gzip", 0)
		assert.True(t, ok)
		assert.Nil(t, out)
	})

	t.Run("limit_stops_expansion", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
		require.NoError(t, err)
		zeros := make([]byte, 1<<20)
		for i := 0; i < 64; i++ {
			_, err = w.Write(zeros)
			require.NoError(t, err)
		}
		require.NoError(t, w.Close())

		out, ok := Decompress(buf.Bytes(), "gzip", 1024)
		assert.True(t, ok)
		assert.Len(t, out, 1024)
	})

	t.Run("limit_zstd", func(t *testing.T) {
		enc, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		compressed := enc.EncodeAll(bytes.Repeat([]byte("a"), 1<<20), nil)
		require.NoError(t, enc.Close())

		out, ok := Decompress(compressed, "zstd", 10)
		assert.True(t, ok)
		assert.Equal(t, "aaaaaaaaaa", string(out))
	})

	t.Run("limit_above_size", func(t *testing.T) {
		out, ok := Decompress(gzipBytes(t, plain), "gzip", 4096)
		assert.True(t, ok)
		assert.Equal(t, plain, out)
	})

	t.Run("unsupported_passthrough", func(t *testing.T) {
		out, ok := Decompress(plain, "br", 0)
		assert.False(t, ok)
		assert.Equal(t, plain, out)
	})
}

func TestDecodeBody(t *testing.T) {
	t.Parallel()

	t.Run("gzip_text", func(t *testing.T) {
		h := Headers{{Name: "Content-Encoding", Value: "gzip"}, {Name: "Content-Type", Value: "text/plain"}}
		assert.Equal(t, "secret token", string(DecodeBody(gzipBytes(t, []byte("secret token")), h, 0)))
	})

	t.Run("latin1_charset", func(t *testing.T) {
		h := Headers{{Name: "Content-Type", Value: "text/html; charset=ISO-8859-1"}}
		assert.Equal(t, "café", string(DecodeBody([]byte{'c', 'a', 'f', 0xe9}, h, 0)))
	})

	t.Run("utf8_unchanged", func(t *testing.T) {
		h := Headers{{Name: "Content-Type", Value: "application/json; charset=utf-8"}}
		body := []byte(`{"name":"café"}`)
		assert.Equal(t, body, DecodeBody(body, h, 0))
	})

	t.Run("binary_untouched", func(t *testing.T) {
		h := Headers{{Name: "Content-Type", Value: "image/png"}}
		body := []byte{0x89, 'P', 'N', 'G', 0xff}
		assert.Equal(t, body, DecodeBody(body, h, 0))
	})

	t.Run("untyped_binary_untouched", func(t *testing.T) {
		body := []byte{0x00, 0x9f, 0x92, 0x96, 0xe9, 0xff}
		assert.Equal(t, body, DecodeBody(body, Headers{}, 0))
	})

	t.Run("untyped_utf8_unchanged", func(t *testing.T) {
		body := []byte("token=café")
		assert.Equal(t, body, DecodeBody(body, Headers{}, 0))
	})

	t.Run("gzip_bounded_by_limit", func(t *testing.T) {
		h := Headers{{Name: "Content-Encoding", Value: "gzip"}, {Name: "Content-Type", Value: "text/plain"}}
		body := gzipBytes(t, bytes.Repeat([]byte("x"), 1<<20))
		assert.Len(t, DecodeBody(body, h, 16), 16)
	})

	t.Run("corrupt_encoding_keeps_raw", func(t *testing.T) {
		h := Headers{{Name: "Content-Encoding", Value: "gzip"}}
		body := []byte("plain after all")
		assert.Equal(t, body, DecodeBody(body, h, 0))
	})
}

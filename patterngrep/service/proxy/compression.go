package proxy

import (
	"bytes"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

const (
	encodingGzip    = "gzip"
	encodingDeflate = "deflate"
	encodingZstd    = "zstd"
)

// NormalizeEncoding canonicalizes a Content-Encoding value and reports
// whether it names one supported encoding. Stacked encodings such as
// "gzip, br" are unsupported.
func NormalizeEncoding(encoding string) (string, bool) {
	encoding = strings.TrimSpace(strings.ToLower(encoding))
	if strings.Contains(encoding, ",") {
		return "", false
	}
	switch encoding {
	case encodingGzip, "x-gzip":
		return encodingGzip, true
	case encodingDeflate:
		return encodingDeflate, true
	case encodingZstd:
		return encodingZstd, true
	default:
		return encoding, false
	}
}

// Decompress decodes data according to a Content-Encoding value.
// It returns (decoded, true) on success, (nil, true) when the body claimed a
// supported encoding but failed to decode, and (data, false) otherwise.
// deflate accepts both raw DEFLATE and zlib-wrapped streams. When limit is
// positive, decoding stops after limit output bytes.
func Decompress(data []byte, encoding string, limit int) ([]byte, bool) {
	normalized, supported := NormalizeEncoding(encoding)
	if !supported {
		return data, false
	}

	var out []byte
	var err error
	switch normalized {
	case encodingGzip:
		out, err = decompressGzip(data, limit)
	case encodingDeflate:
		if out, err = decompressZlib(data, limit); err != nil {
			out, err = readLimitedClose(flate.NewReader(bytes.NewReader(data)), limit)
		}
	case encodingZstd:
		out, err = decompressZstd(data, limit)
	}
	if err != nil {
		return nil, true
	}
	return out, true
}

func decompressGzip(data []byte, limit int) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return readLimitedClose(gr, limit)
}

func decompressZlib(data []byte, limit int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return readLimitedClose(zr, limit)
}

func decompressZstd(data []byte, limit int) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return readLimitedClose(dec.IOReadCloser(), limit)
}

// readLimitedClose reads rc to EOF, or to limit bytes when limit is positive.
func readLimitedClose(rc io.ReadCloser, limit int) ([]byte, error) {
	defer func() { _ = rc.Close() }()
	if limit > 0 {
		return io.ReadAll(io.LimitReader(rc, int64(limit)))
	}
	return io.ReadAll(rc)
}

package proxy

import (
	"log"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// DecodeBody returns the body as UTF-8 text for matching and display.
// Content-Encoding is undone first; textual bodies declared or sniffed in a
// non-UTF-8 charset are then transcoded. Any failure yields the input bytes.
// A positive limit bounds the decompressed size.
func DecodeBody(body []byte, headers Headers, limit int) []byte {
	if len(body) == 0 {
		return body
	}

	if ce := headers.Get("Content-Encoding"); ce != "" {
		decoded, compressed := Decompress(body, ce, limit)
		if compressed && decoded == nil {
			log.Printf("proxy: failed to decode %q body, keeping raw bytes", ce)
			return body
		} else if compressed {
			body = decoded
		}
	}

	contentType := headers.Get("Content-Type")
	if !isTextual(contentType, body) {
		return body
	}
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		return body
	}
	text, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return text
}

// isTextual reports whether a Content-Type carries text. Without a type the
// body counts as text only when it is already valid UTF-8.
func isTextual(contentType string, body []byte) bool {
	if contentType == "" {
		return utf8.Valid(body)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"),
		strings.HasSuffix(mediaType, "+json"),
		strings.HasSuffix(mediaType, "+xml"):
		return true
	}
	switch mediaType {
	case "application/json", "application/xml", "application/javascript",
		"application/x-javascript", "application/x-www-form-urlencoded":
		return true
	}
	return false
}

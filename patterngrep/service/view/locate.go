package view

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span is a half-open byte range [Start, End) into a text.
type Span struct {
	Start int
	End   int
}

// Len returns the span length in bytes.
func (s Span) Len() int { return s.End - s.Start }

// Find returns the leftmost case-insensitive occurrence of needle in
// haystack. Matching is literal. An empty needle is found at 0.
func Find(haystack, needle string) (Span, bool) {
	if needle == "" {
		return Span{}, true
	}
	for i := 0; i < len(haystack); {
		if n, ok := foldPrefix(haystack[i:], needle); ok {
			return Span{Start: i, End: i + n}, true
		}
		_, size := utf8.DecodeRuneInString(haystack[i:])
		i += size
	}
	return Span{}, false
}

// lineAround returns the line of text containing span, extended to the end
// of the match when it crosses a newline.
func lineAround(text string, span Span) string {
	start := strings.LastIndexByte(text[:span.Start], '\n') + 1
	end := len(text)
	if i := strings.IndexByte(text[span.End:], '\n'); i >= 0 {
		end = span.End + i
	}
	if span.End > end {
		end = span.End
	}
	return text[start:end]
}

// foldPrefix reports whether s starts with prefix under simple case folding
// and returns the number of bytes of s consumed.
func foldPrefix(s, prefix string) (int, bool) {
	var n int
	for _, pr := range prefix {
		if n >= len(s) {
			return 0, false
		}
		sr, size := utf8.DecodeRuneInString(s[n:])
		if !equalFoldRune(sr, pr) {
			return 0, false
		}
		n += size
	}
	return n, true
}

func equalFoldRune(a, b rune) bool {
	if a == b {
		return true
	}
	for f := unicode.SimpleFold(a); f != a; f = unicode.SimpleFold(f) {
		if f == b {
			return true
		}
	}
	return false
}

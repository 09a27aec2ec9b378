package proxy

import (
	"errors"
	"fmt"
	"strings"
)

// validateRequest rejects requests that cannot be forwarded faithfully:
// a non-token method, an empty target, an unknown version, or header names
// and values carrying NUL or bare CR bytes.
func validateRequest(req *RawHTTP1Request) error {
	if req == nil {
		return errors.New("nil request")
	}

	if !isValidToken(req.Method) {
		return fmt.Errorf("invalid method %q", req.Method)
	} else if req.Target == "" {
		return errors.New("empty request target")
	} else if req.Version != "HTTP/1.0" && req.Version != "HTTP/1.1" {
		return fmt.Errorf("unsupported HTTP version %q", req.Version)
	}

	for _, h := range req.Headers {
		if !isValidToken(h.Name) {
			return fmt.Errorf("invalid header name %q", h.Name)
		} else if strings.ContainsAny(h.Value, "\x00\r") {
			return fmt.Errorf("control byte in value of header %q", h.Name)
		}
	}
	return nil
}

// isValidToken reports whether s is a non-empty RFC 9110 token.
func isValidToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTokenChar(s[i]) {
			return false
		}
	}
	return true
}

func isTokenChar(c byte) bool {
	if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

package proxy

import (
	"strings"
	"time"

	"github.com/go-analyze/bulk"

	"github.com/go-appsec/patterngrep/patterngrep/service/monitor"
)

// Header is a single HTTP header as it appeared on the wire.
type Header struct {
	// Name keeps the original casing and any whitespace anomalies.
	Name  string
	Value string
	// RawLine is the original header line without its line ending, obs-fold
	// continuations included. nil for headers set programmatically.
	RawLine []byte
}

// Line returns the header as a single display line.
func (h Header) Line() string {
	if len(h.RawLine) > 0 {
		return string(h.RawLine)
	}
	return h.Name + ": " + h.Value
}

// Headers is an ordered header list with case-insensitive lookup.
type Headers []Header

// Get returns the first value for name, or "".
func (h *Headers) Get(name string) string {
	for _, hdr := range *h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value
		}
	}
	return ""
}

// Set replaces the first header named name, or appends it.
func (h *Headers) Set(name, value string) {
	for i, hdr := range *h {
		if strings.EqualFold(hdr.Name, name) {
			(*h)[i].Value = value
			(*h)[i].RawLine = nil
			return
		}
	}
	*h = append(*h, Header{Name: name, Value: value})
}

// Remove drops every header named name.
func (h *Headers) Remove(name string) {
	*h = bulk.SliceFilterInPlace(func(hdr Header) bool {
		return !strings.EqualFold(hdr.Name, name)
	}, *h)
}

// Lines returns the display line of every header, in order.
func (h Headers) Lines() []string {
	lines := make([]string, len(h))
	for i, hdr := range h {
		lines[i] = hdr.Line()
	}
	return lines
}

// RawHTTP1Request is a parsed HTTP/1.x request.
type RawHTTP1Request struct {
	Method string
	// Target is the request-target without the query: an absolute URL for
	// proxy-form requests, a path for origin-form.
	Target  string
	Query   string
	Version string
	Headers Headers
	// Body is de-chunked when the request used chunked transfer encoding.
	Body []byte
	// BareLF is set when the request used LF line endings.
	BareLF bool
}

// RawHTTP1Response is a parsed HTTP/1.x response.
type RawHTTP1Response struct {
	Version    string
	StatusCode int
	StatusText string
	Headers    Headers
	Body       []byte
	BareLF     bool
}

// Target is an upstream endpoint.
type Target struct {
	Hostname string
	Port     int
}

// TimeoutConfig bounds upstream network operations. Zero disables a limit.
type TimeoutConfig struct {
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Observer receives every proxied exchange in completion order.
// *monitor.Controller implements it.
type Observer interface {
	Observe(obs monitor.Observation) bool
}

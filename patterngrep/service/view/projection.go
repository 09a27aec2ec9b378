// Package view derives display data from captured exchanges: table rows,
// full request/response text, and in-text search.
package view

import (
	"fmt"
	"strings"

	"github.com/go-appsec/patterngrep/patterngrep/service/store"
)

// Columns lists the capture table columns in display order.
var Columns = []string{"Method", "URL", "Status", "Length"}

// Row is the table summary of one exchange.
type Row struct {
	Method string
	URL    string
	Status int
	// Length is the full raw response length, header block included.
	Length int
}

// Values returns the row cells in Columns order.
func (r Row) Values() []any {
	return []any{r.Method, r.URL, r.Status, r.Length}
}

// RowSummary derives the table row for ex.
func RowSummary(ex *store.Exchange) Row {
	return Row{
		Method: ex.Request.Method,
		URL:    ex.Request.URL,
		Status: ex.Response.StatusCode,
		Length: ex.Response.Length,
	}
}

// Side selects the request or response half of an exchange.
type Side int

const (
	SideRequest Side = iota
	SideResponse
)

func (s Side) String() string {
	if s == SideResponse {
		return "response"
	}
	return "request"
}

// ParseSide accepts "request"/"req" and "response"/"resp".
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "request", "req":
		return SideRequest, nil
	case "response", "resp":
		return SideResponse, nil
	default:
		return SideRequest, fmt.Errorf("invalid side %q: expected request or response", s)
	}
}

// FullText renders one side of ex: the header lines joined by newlines,
// a blank line, then the body.
func FullText(ex *store.Exchange, side Side) string {
	msg := ex.Request.Message
	if side == SideResponse {
		msg = ex.Response.Message
	}

	var sb strings.Builder
	sb.Grow(len(msg.Body) + 64*len(msg.Headers))
	for i, h := range msg.Headers {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(h)
	}
	sb.WriteString("\n\n")
	sb.Write(msg.Body)
	return sb.String()
}

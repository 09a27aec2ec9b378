// Package cliutil holds terminal output helpers shared by the CLI commands.
package cliutil

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"
)

// ColorEnabled reports whether w is a terminal that should receive ANSI
// colors. NO_COLOR disables color everywhere.
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewTable returns a table writer rendering to w.
func NewTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if ColorEnabled(w) {
		t.SetStyle(table.StyleLight)
		t.Style().Color.Header = text.Colors{text.Bold}
	} else {
		t.SetStyle(table.StyleDefault)
		t.Style().Color = table.ColorOptions{}
	}
	return t
}

// StatusRowPainter colors a row by the HTTP status in column statusCol.
func StatusRowPainter(statusCol int) table.RowPainter {
	return func(row table.Row) text.Colors {
		if statusCol >= len(row) {
			return nil
		}
		status, ok := row[statusCol].(int)
		if !ok {
			return nil
		}
		return StatusColors(status)
	}
}

// StatusColors returns the colors for one HTTP status code.
func StatusColors(status int) text.Colors {
	switch {
	case status >= 500:
		return text.Colors{text.FgRed}
	case status >= 400:
		return text.Colors{text.FgYellow}
	case status >= 300:
		return text.Colors{text.FgCyan}
	case status >= 200:
		return text.Colors{text.FgGreen}
	default:
		return nil
	}
}

// NoResults prints msg for an empty listing.
func NoResults(w io.Writer, msg string) {
	_, _ = fmt.Fprintln(w, paint(w, text.Colors{text.Faint}, msg))
}

// Summary prints a count line below a table.
func Summary(w io.Writer, n int, singular, plural string) {
	noun := plural
	if n == 1 {
		noun = singular
	}
	_, _ = fmt.Fprintf(w, "\n%d %s\n", n, noun)
}

// HintCommand suggests a follow-up command.
func HintCommand(w io.Writer, what, command string) {
	_, _ = fmt.Fprintf(w, "%s: %s\n", what, paint(w, text.Colors{text.FgCyan}, command))
}

// Highlight returns s with [start, end) emphasized when w takes colors, or
// bracketed with >>> <<< markers otherwise.
func Highlight(w io.Writer, s string, start, end int) string {
	if start < 0 || end > len(s) || start > end {
		return s
	}

	var sb strings.Builder
	sb.WriteString(s[:start])
	if ColorEnabled(w) {
		sb.WriteString(text.Colors{text.BgYellow, text.FgBlack}.Sprint(s[start:end]))
	} else {
		sb.WriteString(">>>")
		sb.WriteString(s[start:end])
		sb.WriteString("<<<")
	}
	sb.WriteString(s[end:])
	return sb.String()
}

func paint(w io.Writer, colors text.Colors, s string) string {
	if !ColorEnabled(w) {
		return s
	}
	return colors.Sprint(s)
}

package view

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-appsec/patterngrep/patterngrep/service/store"
)

func sampleExchange(body string) *store.Exchange {
	return &store.Exchange{
		Seq: 1,
		Request: store.Request{
			Message: store.Message{
				Headers: []string{"POST /login HTTP/1.1", "Host: example.com", "Content-Type: application/json"},
				Body:    []byte(`{"user":"alice"}`),
				Length:  97,
			},
			Method: "POST",
			URL:    "http://example.com/login",
		},
		Response: store.Response{
			Message: store.Message{
				Headers: []string{"HTTP/1.1 403 Forbidden", "Content-Type: text/plain"},
				Body:    []byte(body),
				Length:  50 + len(body),
			},
			StatusCode: 403,
		},
	}
}

func TestRowSummary(t *testing.T) {
	t.Parallel()

	row := RowSummary(sampleExchange("denied"))
	assert.Equal(t, Row{Method: "POST", URL: "http://example.com/login", Status: 403, Length: 56}, row)
	assert.Equal(t, []any{"POST", "http://example.com/login", 403, 56}, row.Values())
	assert.Equal(t, []string{"Method", "URL", "Status", "Length"}, Columns)
}

func TestFullText(t *testing.T) {
	t.Parallel()

	t.Run("request", func(t *testing.T) {
		ex := sampleExchange("denied")
		want := "POST /login HTTP/1.1\nHost: example.com\nContent-Type: application/json\n\n{\"user\":\"alice\"}"
		assert.Equal(t, want, FullText(ex, SideRequest))
	})

	t.Run("response", func(t *testing.T) {
		ex := sampleExchange("denied")
		assert.Equal(t, "HTTP/1.1 403 Forbidden\nContent-Type: text/plain\n\ndenied", FullText(ex, SideResponse))
	})

	t.Run("empty_body", func(t *testing.T) {
		ex := sampleExchange("")
		assert.Equal(t, "HTTP/1.1 403 Forbidden\nContent-Type: text/plain\n\n", FullText(ex, SideResponse))
	})

	t.Run("does_not_mutate", func(t *testing.T) {
		ex := sampleExchange("denied")
		before := *ex
		_ = FullText(ex, SideRequest)
		_ = FullText(ex, SideResponse)
		assert.Equal(t, before, *ex)
	})

	t.Run("contains_body_verbatim", func(t *testing.T) {
		bodies := []string{"plain", "Mixed CASE Body", "line1\nline2", "ünïcödé ✓", "<html><b>x</b></html>"}
		for _, body := range bodies {
			ex := sampleExchange(body)
			text := FullText(ex, SideResponse)
			span, ok := Find(text, body)
			require.True(t, ok, body)
			assert.Equal(t, body, text[span.Start:span.End])
		}
	})
}

func TestParseSide(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Side{"request": SideRequest, "REQ": SideRequest, "response": SideResponse, " resp ": SideResponse} {
		got, err := ParseSide(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseSide("body")
	assert.Error(t, err)
	assert.Equal(t, "response", SideResponse.String())
}

func TestFind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		haystack  string
		needle    string
		wantSpan  Span
		wantFound bool
	}{
		{name: "case_insensitive", haystack: "Hello World", needle: "world", wantSpan: Span{6, 11}, wantFound: true},
		{name: "not_found", haystack: "Hello", needle: "xyz", wantFound: false},
		{name: "empty_needle", haystack: "Hello", needle: "", wantSpan: Span{0, 0}, wantFound: true},
		{name: "empty_both", haystack: "", needle: "", wantSpan: Span{0, 0}, wantFound: true},
		{name: "empty_haystack", haystack: "", needle: "a", wantFound: false},
		{name: "leftmost", haystack: "abcABCabc", needle: "ABC", wantSpan: Span{0, 3}, wantFound: true},
		{name: "upper_needle", haystack: "content-type: json", needle: "CONTENT-TYPE", wantSpan: Span{0, 12}, wantFound: true},
		{name: "literal_not_regex", haystack: "a.c abc", needle: "a.c", wantSpan: Span{0, 3}, wantFound: true},
		{name: "regex_chars_literal", haystack: "abc", needle: "a.c", wantFound: false},
		{name: "needle_longer", haystack: "ab", needle: "abc", wantFound: false},
		{name: "multibyte_prefix", haystack: "ÄÖÜ token", needle: "TOKEN", wantSpan: Span{7, 12}, wantFound: true},
		{name: "multibyte_fold", haystack: "xÄy", needle: "ä", wantSpan: Span{1, 3}, wantFound: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			span, found := Find(tc.haystack, tc.needle)
			assert.Equal(t, tc.wantFound, found)
			if tc.wantFound {
				assert.Equal(t, tc.wantSpan, span)
			}
		})
	}
}

func TestPane(t *testing.T) {
	t.Parallel()

	var p Pane
	p.Display("Hello World")
	assert.Equal(t, 0, p.Cursor())
	_, selected := p.Selection()
	assert.False(t, selected)

	span, ok := p.Search("WORLD")
	require.True(t, ok)
	assert.Equal(t, Span{6, 11}, span)
	assert.Equal(t, 11, p.Cursor())
	sel, selected := p.Selection()
	assert.True(t, selected)
	assert.Equal(t, span, sel)

	_, ok = p.Search("missing")
	assert.False(t, ok)
	sel, _ = p.Selection()
	assert.Equal(t, Span{6, 11}, sel, "failed search keeps previous selection")

	p.Display("new text")
	assert.Equal(t, 0, p.Cursor())
	_, selected = p.Selection()
	assert.False(t, selected)
	assert.Equal(t, "new text", p.Text())
}

func TestInspector(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T, bodies ...string) (*store.CaptureStore, *Inspector) {
		t.Helper()

		s := store.NewCaptureStore()
		for _, b := range bodies {
			_, err := s.Append(sampleExchange(b))
			require.NoError(t, err)
		}
		return s, NewInspector(s)
	}

	t.Run("select_renders_both_sides", func(t *testing.T) {
		s, in := setup(t, "first", "second")

		sel, err := in.Select(s.Generation(), 1)
		require.NoError(t, err)
		assert.Equal(t, 1, sel.Index)
		assert.Equal(t, 403, sel.Row.Status)
		assert.Contains(t, sel.ResponseText, "\n\nsecond")
		assert.Contains(t, sel.RequestText, "POST /login HTTP/1.1")
		assert.Equal(t, 0, in.Pane(SideResponse).Cursor())
		assert.Equal(t, 0, in.Pane(SideRequest).Cursor())
	})

	t.Run("select_out_of_range", func(t *testing.T) {
		s, in := setup(t, "only")
		_, err := in.Select(s.Generation(), 1)
		require.ErrorIs(t, err, store.ErrIndexOutOfRange)

		_, ok := in.Current()
		assert.False(t, ok)
	})

	t.Run("find_without_selection", func(t *testing.T) {
		_, in := setup(t, "x")
		_, err := in.Find(SideResponse, "x")
		assert.ErrorIs(t, err, ErrNoSelection)
	})

	t.Run("find_in_selected_pane", func(t *testing.T) {
		s, in := setup(t, "The Secret Value")
		_, err := in.Select(s.Generation(), 0)
		require.NoError(t, err)

		res, err := in.Find(SideResponse, "secret")
		require.NoError(t, err)
		require.True(t, res.Found)
		assert.Equal(t, 0, res.Index)
		assert.Equal(t, SideResponse, res.Side)
		assert.Equal(t, "Secret", res.Match)
		assert.Equal(t, "The Secret Value", res.Context)
		text := in.Pane(SideResponse).Text()
		assert.Equal(t, "Secret", text[res.Span.Start:res.Span.End])
		assert.Equal(t, res.Span.End, in.Pane(SideResponse).Cursor())

		res, err = in.Find(SideRequest, "secret")
		require.NoError(t, err)
		assert.False(t, res.Found)
		assert.Empty(t, res.Match)
	})

	t.Run("reselect_resets_cursor", func(t *testing.T) {
		s, in := setup(t, "abc", "def")
		_, err := in.Select(s.Generation(), 0)
		require.NoError(t, err)
		res, err := in.Find(SideResponse, "abc")
		require.NoError(t, err)
		require.True(t, res.Found)

		_, err = in.Select(s.Generation(), 1)
		require.NoError(t, err)
		assert.Equal(t, 0, in.Pane(SideResponse).Cursor())
		_, selected := in.Pane(SideResponse).Selection()
		assert.False(t, selected)
	})

	t.Run("clear_drops_selection", func(t *testing.T) {
		s, in := setup(t, "abc")
		gen := s.Generation()
		_, err := in.Select(gen, 0)
		require.NoError(t, err)

		s.Clear()
		_, err = s.Append(sampleExchange("replacement"))
		require.NoError(t, err)

		_, ok := in.Current()
		assert.False(t, ok)
		_, err = in.Find(SideResponse, "abc")
		require.ErrorIs(t, err, ErrNoSelection)

		_, err = in.Select(gen, 0)
		assert.ErrorIs(t, err, store.ErrIndexOutOfRange)
	})

	t.Run("find_result_survives_clear", func(t *testing.T) {
		s, in := setup(t, "token=abc123")
		_, err := in.Select(s.Generation(), 0)
		require.NoError(t, err)

		res, err := in.Find(SideResponse, "ABC")
		require.NoError(t, err)
		require.True(t, res.Found)

		s.Clear()
		in.Invalidate(s.Generation())

		assert.Equal(t, "abc", res.Match)
		assert.Equal(t, "token=abc123", res.Context)
		assert.Empty(t, in.Pane(SideResponse).Text())
		_, err = in.Find(SideResponse, "ABC")
		assert.ErrorIs(t, err, ErrNoSelection)
	})

	t.Run("find_concurrent_with_clear", func(t *testing.T) {
		s, in := setup(t, "token=abc123")
		_, err := in.Select(s.Generation(), 0)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Clear()
			in.Invalidate(s.Generation())
		}()
		for i := 0; i < 100; i++ {
			res, err := in.Find(SideResponse, "abc")
			if errors.Is(err, ErrNoSelection) {
				break
			}
			require.NoError(t, err)
			require.True(t, res.Found)
			assert.Equal(t, "abc", res.Match)
			assert.Equal(t, "token=abc123", res.Context)
		}
		wg.Wait()
	})

	t.Run("invalidate", func(t *testing.T) {
		s, in := setup(t, "abc")
		gen := s.Generation()
		_, err := in.Select(gen, 0)
		require.NoError(t, err)

		in.Invalidate(gen)
		_, ok := in.Current()
		assert.True(t, ok, "same generation keeps selection")
		if gen > 0 {
			in.Invalidate(gen - 1)
			_, ok = in.Current()
			assert.True(t, ok, "older generation keeps selection")
		}

		in.Invalidate(gen + 1)
		in.mu.Lock()
		selected := in.selected
		in.mu.Unlock()
		assert.False(t, selected)
		assert.Empty(t, in.Pane(SideResponse).Text())
	})
}

func TestLineAround(t *testing.T) {
	t.Parallel()

	text := "first\nsecond line\nthird"
	tests := []struct {
		name string
		span Span
		want string
	}{
		{name: "middle_line", span: Span{Start: 13, End: 17}, want: "second line"},
		{name: "first_line", span: Span{Start: 0, End: 5}, want: "first"},
		{name: "last_line", span: Span{Start: 18, End: 23}, want: "third"},
		{name: "spans_lines", span: Span{Start: 3, End: 9}, want: "first\nsecond line"},
		{name: "empty_span", span: Span{Start: 0, End: 0}, want: "first"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, lineAround(text, tc.span))
		})
	}
}

package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/go-appsec/patterngrep/patterngrep/cliutil"
	"github.com/go-appsec/patterngrep/patterngrep/mcpclient"
	"github.com/go-appsec/patterngrep/patterngrep/protocol"
	"github.com/go-appsec/patterngrep/patterngrep/service/view"
)

// statusColumn is the index of Status in the rendered table.
const statusColumn = 3

func list(cf *clientFlags, offset, limit int) error {
	ctx, cancel := context.WithTimeout(context.Background(), cf.timeout)
	defer cancel()

	client, err := mcpclient.Connect(ctx, cf.url)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	resp, err := client.CaptureList(ctx, offset, limit)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	if len(resp.Rows) == 0 {
		cliutil.NoResults(os.Stdout, "No captured exchanges.")
		return nil
	}
	printCaptureTable(os.Stdout, resp)
	cliutil.HintCommand(os.Stdout, "To open a row", "patterngrep show <index> --generation "+strconv.FormatUint(resp.Generation, 10))
	return nil
}

func printCaptureTable(w io.Writer, resp *protocol.CaptureListResponse) {
	t := cliutil.NewTable(w)
	header := table.Row{"#"}
	for _, c := range resp.Columns {
		header = append(header, c)
	}
	t.AppendHeader(header)
	if cliutil.ColorEnabled(w) {
		t.SetRowPainter(cliutil.StatusRowPainter(statusColumn))
	}

	for _, r := range resp.Rows {
		t.AppendRow(table.Row{r.Index, r.Method, r.URL, r.Status, r.Length})
	}
	t.Render()

	if len(resp.Rows) < resp.Total {
		_, _ = fmt.Fprintf(w, "\nshowing %d of %d captures\n", len(resp.Rows), resp.Total)
	} else {
		cliutil.Summary(w, resp.Total, "capture", "captures")
	}
}

func show(cf *clientFlags, opts mcpclient.CaptureGetOpts, only *view.Side) error {
	ctx, cancel := context.WithTimeout(context.Background(), cf.timeout)
	defer cancel()

	client, err := mcpclient.Connect(ctx, cf.url)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	resp, err := client.CaptureGet(ctx, opts)
	if err != nil {
		return fmt.Errorf("show failed: %w", err)
	}
	printExchange(os.Stdout, resp, only)
	return nil
}

func printExchange(w io.Writer, resp *protocol.CaptureGetResponse, only *view.Side) {
	_, _ = fmt.Fprintf(w, "#%d %s %s -> %d (%d bytes, captured %s)\n",
		resp.Row.Index, resp.Row.Method, resp.Row.URL, resp.Row.Status, resp.Row.Length, resp.CapturedAt)

	if only == nil || *only == view.SideRequest {
		_, _ = fmt.Fprintln(w, "\n==== request ====")
		_, _ = fmt.Fprintln(w, resp.RequestText)
	}
	if only == nil || *only == view.SideResponse {
		_, _ = fmt.Fprintln(w, "\n==== response ====")
		_, _ = fmt.Fprintln(w, resp.ResponseText)
	}
}

func find(cf *clientFlags, index int, side, text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cf.timeout)
	defer cancel()

	client, err := mcpclient.Connect(ctx, cf.url)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if index >= 0 {
		if _, err := client.CaptureGet(ctx, mcpclient.CaptureGetOpts{Index: index}); err != nil {
			return fmt.Errorf("show failed: %w", err)
		}
	}

	resp, err := client.CaptureFind(ctx, side, text)
	if err != nil {
		return fmt.Errorf("find failed: %w", err)
	}
	printFind(os.Stdout, resp, text)
	return nil
}

func printFind(w io.Writer, resp *protocol.CaptureFindResponse, text string) {
	if !resp.Found {
		cliutil.NoResults(w, fmt.Sprintf("%q not found in %s of #%d.", text, resp.Side, resp.Index))
		return
	}

	_, _ = fmt.Fprintf(w, "#%d %s [%d:%d]\n", resp.Index, resp.Side, resp.Start, resp.End)
	if resp.Context != "" {
		if i := strings.Index(resp.Context, resp.Match); i >= 0 {
			_, _ = fmt.Fprintln(w, cliutil.Highlight(w, resp.Context, i, i+len(resp.Match)))
		} else {
			_, _ = fmt.Fprintln(w, resp.Context)
		}
	}
}

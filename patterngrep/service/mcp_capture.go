package service

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/go-appsec/patterngrep/patterngrep/protocol"
	"github.com/go-appsec/patterngrep/patterngrep/service/store"
	"github.com/go-appsec/patterngrep/patterngrep/service/view"
)

const defaultListLimit = 50

func (m *mcpServer) addCaptureTools() {
	m.server.AddTool(m.captureListTool(), m.handleCaptureList)
	m.server.AddTool(m.captureGetTool(), m.handleCaptureGet)
	m.server.AddTool(m.captureFindTool(), m.handleCaptureFind)
}

func (m *mcpServer) captureListTool() mcp.Tool {
	return mcp.NewTool("capture_list",
		mcp.WithDescription(`List retained exchanges in capture order (Method, URL, Status, Length).

Length is the full raw response size. Pass the returned generation to capture_get so a row from a cleared list is rejected instead of opening a different exchange.`),
		mcp.WithNumber("offset", mcp.Description("First row index (default 0)")),
		mcp.WithNumber("limit", mcp.Description("Maximum rows (default 50, 0 for all)")),
	)
}

func (m *mcpServer) captureGetTool() mcp.Tool {
	return mcp.NewTool("capture_get",
		mcp.WithDescription(`Open one retained exchange and return its full request and response text.

The text is the header lines (request or status line first), a blank line, then the body. The opened exchange becomes the target of capture_find.`),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Row index from capture_list")),
		mcp.WithNumber("generation", mcp.Description("Generation returned by capture_list; rejects the index if captures were cleared since")),
	)
}

func (m *mcpServer) captureFindTool() mcp.Tool {
	return mcp.NewTool("capture_find",
		mcp.WithDescription(`Find the first case-insensitive occurrence of literal text in the opened exchange.

Requires a prior capture_get. Offsets are byte offsets into the request_text or response_text returned by capture_get.`),
		mcp.WithString("side", mcp.Required(), mcp.Description("request or response")),
		mcp.WithString("text", mcp.Description("Literal text to find; empty matches at offset 0")),
	)
}

func (m *mcpServer) handleCaptureList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	offset := req.GetInt("offset", 0)
	limit := req.GetInt("limit", defaultListLimit)
	if offset < 0 {
		return errorResult("offset must be >= 0"), nil
	} else if limit < 0 {
		return errorResult("limit must be >= 0"), nil
	}

	snap, err := m.service.controller.Store().Slice(offset, limit)
	if err != nil {
		return errorResult("failed to list captures: " + err.Error()), nil
	}

	resp := protocol.CaptureListResponse{
		Generation: snap.Generation,
		Total:      snap.Total,
		Columns:    view.Columns,
		Rows:       make([]protocol.CaptureRow, 0, len(snap.Exchanges)),
	}
	for i, ex := range snap.Exchanges {
		resp.Rows = append(resp.Rows, captureRow(snap.Offset+i, view.RowSummary(ex)))
	}
	return jsonResult(resp)
}

func (m *mcpServer) handleCaptureGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	if _, ok := args["index"]; !ok {
		return errorResult("index is required"), nil
	}
	index := req.GetInt("index", -1)

	st := m.service.controller.Store()
	generation := st.Generation()
	if g := req.GetInt("generation", -1); g >= 0 {
		generation = uint64(g)
	}

	sel, err := m.service.inspector.Select(generation, index)
	if errors.Is(err, store.ErrIndexOutOfRange) {
		return errorResult(err.Error() + "; refresh with capture_list"), nil
	} else if err != nil {
		return errorResult("failed to open capture: " + err.Error()), nil
	}

	ex, err := st.GetAt(sel.Generation, sel.Index)
	if err != nil {
		return errorResult(err.Error() + "; refresh with capture_list"), nil
	}
	return jsonResult(protocol.CaptureGetResponse{
		Generation:   sel.Generation,
		Row:          captureRow(sel.Index, sel.Row),
		Seq:          ex.Seq,
		CapturedAt:   ex.CapturedAt.Format(time.RFC3339Nano),
		RequestText:  sel.RequestText,
		ResponseText: sel.ResponseText,
	})
}

func (m *mcpServer) handleCaptureFind(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	side, err := view.ParseSide(req.GetString("side", ""))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	text := req.GetString("text", "")

	res, err := m.service.inspector.Find(side, text)
	if errors.Is(err, view.ErrNoSelection) {
		return errorResult("no exchange open; call capture_get first"), nil
	} else if err != nil {
		return errorResult(err.Error()), nil
	}

	return jsonResult(protocol.CaptureFindResponse{
		Side:    res.Side.String(),
		Found:   res.Found,
		Start:   res.Span.Start,
		End:     res.Span.End,
		Match:   res.Match,
		Context: res.Context,
		Index:   res.Index,
	})
}

func captureRow(index int, row view.Row) protocol.CaptureRow {
	return protocol.CaptureRow{
		Index:  index,
		Method: row.Method,
		URL:    row.URL,
		Status: row.Status,
		Length: row.Length,
	}
}

package mcpclient

import (
	"context"

	"github.com/go-appsec/patterngrep/patterngrep/protocol"
)

// MonitorArm calls monitor_arm with pattern.
func (c *Client) MonitorArm(ctx context.Context, pattern string) (*protocol.MonitorStatusResponse, error) {
	return c.monitorCall(ctx, "monitor_arm", map[string]interface{}{"pattern": pattern})
}

// MonitorDisarm calls monitor_disarm.
func (c *Client) MonitorDisarm(ctx context.Context) (*protocol.MonitorStatusResponse, error) {
	return c.monitorCall(ctx, "monitor_disarm", nil)
}

// MonitorStatus calls monitor_status.
func (c *Client) MonitorStatus(ctx context.Context) (*protocol.MonitorStatusResponse, error) {
	return c.monitorCall(ctx, "monitor_status", nil)
}

func (c *Client) monitorCall(ctx context.Context, tool string, args map[string]interface{}) (*protocol.MonitorStatusResponse, error) {
	var resp protocol.MonitorStatusResponse
	if err := c.CallToolJSON(ctx, tool, args, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CaptureList calls capture_list. A limit of 0 lists every row.
func (c *Client) CaptureList(ctx context.Context, offset, limit int) (*protocol.CaptureListResponse, error) {
	args := map[string]interface{}{"limit": limit}
	if offset > 0 {
		args["offset"] = offset
	}

	var resp protocol.CaptureListResponse
	if err := c.CallToolJSON(ctx, "capture_list", args, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CaptureGetOpts are the options for CaptureGet.
type CaptureGetOpts struct {
	Index int
	// Generation pins the index to a listing; nil uses the live store.
	Generation *uint64
}

// CaptureGet calls capture_get, which also makes the row the target of
// CaptureFind.
func (c *Client) CaptureGet(ctx context.Context, opts CaptureGetOpts) (*protocol.CaptureGetResponse, error) {
	args := map[string]interface{}{"index": opts.Index}
	if opts.Generation != nil {
		args["generation"] = *opts.Generation
	}

	var resp protocol.CaptureGetResponse
	if err := c.CallToolJSON(ctx, "capture_get", args, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CaptureFind calls capture_find on the row last opened with CaptureGet.
func (c *Client) CaptureFind(ctx context.Context, side, text string) (*protocol.CaptureFindResponse, error) {
	args := map[string]interface{}{"side": side, "text": text}

	var resp protocol.CaptureFindResponse
	if err := c.CallToolJSON(ctx, "capture_find", args, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

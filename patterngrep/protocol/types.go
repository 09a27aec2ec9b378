// Package protocol holds the JSON payloads returned by the MCP tools and
// decoded by the CLI client.
package protocol

// =============================================================================
// Monitor Types
// =============================================================================

// MonitorStatusResponse is returned by monitor_arm, monitor_disarm and
// monitor_status.
type MonitorStatusResponse struct {
	State      string `json:"state"`
	Pattern    string `json:"pattern,omitempty"`
	Syntax     string `json:"syntax,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	ArmedAt    string `json:"armed_at,omitempty"`
	Captured   int    `json:"captured"`
	Generation uint64 `json:"generation"`
	ProxyAddr  string `json:"proxy_addr,omitempty"`
}

// =============================================================================
// Capture Types
// =============================================================================

// CaptureRow is one line of the capture table.
type CaptureRow struct {
	Index  int    `json:"index"`
	Method string `json:"method"`
	URL    string `json:"url"`
	Status int    `json:"status"`
	Length int    `json:"length"`
}

// CaptureListResponse is the response for capture_list.
type CaptureListResponse struct {
	Generation uint64       `json:"generation"`
	Total      int          `json:"total"`
	Columns    []string     `json:"columns"`
	Rows       []CaptureRow `json:"rows"`
}

// CaptureGetResponse is the response for capture_get.
type CaptureGetResponse struct {
	Generation   uint64     `json:"generation"`
	Row          CaptureRow `json:"row"`
	Seq          uint64     `json:"seq"`
	CapturedAt   string     `json:"captured_at"`
	RequestText  string     `json:"request_text"`
	ResponseText string     `json:"response_text"`
}

// CaptureFindResponse is the response for capture_find.
type CaptureFindResponse struct {
	Side  string `json:"side"`
	Found bool   `json:"found"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Match string `json:"match,omitempty"`
	// Context is the matched line, for display.
	Context string `json:"context,omitempty"`
	Index   int    `json:"index"`
}

package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/go-appsec/patterngrep/patterngrep/protocol"
	"github.com/go-appsec/patterngrep/patterngrep/service/match"
	"github.com/go-appsec/patterngrep/patterngrep/service/monitor"
)

func (m *mcpServer) addMonitorTools() {
	m.server.AddTool(m.monitorArmTool(), m.handleMonitorArm)
	m.server.AddTool(m.monitorDisarmTool(), m.handleMonitorDisarm)
	m.server.AddTool(m.monitorStatusTool(), m.handleMonitorStatus)
}

func (m *mcpServer) monitorArmTool() mcp.Tool {
	return mcp.NewTool("monitor_arm",
		mcp.WithDescription(`Start retaining proxied exchanges whose response body matches a regular expression.

Arming discards all previous captures, including when already armed. The match is an unanchored, case-sensitive search of the decoded response body; headers and requests are not searched.
An empty pattern leaves the monitor unchanged.`),
		mcp.WithString("pattern", mcp.Required(), mcp.Description("Regular expression to search response bodies for")),
	)
}

func (m *mcpServer) monitorDisarmTool() mcp.Tool {
	return mcp.NewTool("monitor_disarm",
		mcp.WithDescription("Stop retaining exchanges and discard all captures."),
	)
}

func (m *mcpServer) monitorStatusTool() mcp.Tool {
	return mcp.NewTool("monitor_status",
		mcp.WithDescription("Show whether the monitor is armed, the active pattern, the capture count and the proxy address."),
	)
}

func (m *mcpServer) handleMonitorArm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pattern := req.GetString("pattern", "")

	if err := m.service.controller.Arm(pattern); err != nil {
		var pe *match.PatternError
		if errors.As(err, &pe) {
			log.Printf("mcp/monitor_arm: rejected pattern %q: %v", pattern, pe.Err)
			return errorResult("invalid pattern: " + pe.Err.Error()), nil
		}
		return errorResult("failed to arm: " + err.Error()), nil
	}
	return jsonResult(m.statusResponse())
}

func (m *mcpServer) handleMonitorDisarm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m.service.controller.Disarm()
	return jsonResult(m.statusResponse())
}

func (m *mcpServer) handleMonitorStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(m.statusResponse())
}

func (m *mcpServer) statusResponse() protocol.MonitorStatusResponse {
	st := m.service.controller.Status()
	resp := protocol.MonitorStatusResponse{
		State:      st.State.String(),
		Pattern:    st.Pattern,
		Syntax:     st.Syntax,
		SessionID:  st.SessionID,
		Captured:   st.Count,
		Generation: st.Generation,
		ProxyAddr:  m.service.ProxyAddr(),
	}
	if st.State == monitor.StateArmed {
		resp.ArmedAt = st.ArmedAt.Format(time.RFC3339)
	}
	return resp
}

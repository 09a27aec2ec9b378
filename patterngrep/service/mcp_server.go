package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/go-appsec/patterngrep/patterngrep/config"
)

const serverInstructions = `patterngrep retains only the proxied HTTP exchanges whose response body matches one armed regular expression.

1. monitor_arm with a pattern (this clears earlier captures)
2. have the user browse through the proxy shown by monitor_status
3. capture_list to see matching exchanges, capture_get to open one
4. capture_find to locate text in the opened request or response`

// mcpServer wraps the MCP server and its dependencies.
type mcpServer struct {
	server           *server.MCPServer
	sseServer        *server.SSEServer
	streamableServer *server.StreamableHTTPServer
	httpServer       *http.Server
	listener         net.Listener
	service          *Server
}

func newMCPServer(svc *Server) *mcpServer {
	mcpSrv := server.NewMCPServer("patterngrep", config.Version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
		server.WithInstructions(serverInstructions),
	)

	m := &mcpServer{
		server:  mcpSrv,
		service: svc,
	}
	m.addMonitorTools()
	m.addCaptureTools()
	return m
}

func (m *mcpServer) Start(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	m.listener = listener

	m.sseServer = server.NewSSEServer(m.server,
		server.WithBaseURL("http://"+listener.Addr().String()),
	)
	m.streamableServer = server.NewStreamableHTTPServer(m.server,
		server.WithStateLess(true),
	)

	mux := http.NewServeMux()
	mux.Handle("/mcp", m.streamableServer)
	mux.Handle("/sse", m.sseServer)
	mux.Handle("/sse/", m.sseServer)
	m.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := m.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("MCP server error: %v", err)
		}
	}()
	return nil
}

func (m *mcpServer) Addr() string {
	if m.listener != nil {
		return m.listener.Addr().String()
	}
	return ""
}

// Close stops the MCP server.
func (m *mcpServer) Close(ctx context.Context) error {
	var errs []error

	// streaming connections never go idle, so give Shutdown a short window
	if m.httpServer != nil {
		shortCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		err := m.httpServer.Shutdown(shortCtx)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			if closeErr := m.httpServer.Close(); closeErr != nil {
				errs = append(errs, closeErr)
			}
		} else if err != nil {
			errs = append(errs, err)
		}
	}
	if m.sseServer != nil {
		if err := m.sseServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if m.streamableServer != nil {
		if err := m.streamableServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func jsonResult(data interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errorResult("failed to marshal response: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func errorResult(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

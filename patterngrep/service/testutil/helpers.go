package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

// CallMCPTool calls an MCP tool and returns the result.
func CallMCPTool(t *testing.T, client *mcpclient.Client, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	result, err := client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	require.NoError(t, err)
	return result
}

// ExtractMCPText extracts text content from an MCP tool result.
func ExtractMCPText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, result.Content, "result should have content")
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content found in result")
	return ""
}

// CallMCPToolJSON calls a tool that must succeed and decodes its JSON result.
func CallMCPToolJSON[T any](t *testing.T, client *mcpclient.Client, name string, args map[string]interface{}) T {
	t.Helper()

	result := CallMCPTool(t, client, name, args)
	text := ExtractMCPText(t, result)
	require.False(t, result.IsError, "%s failed: %s", name, text)

	var v T
	require.NoError(t, json.Unmarshal([]byte(text), &v))
	return v
}

// ProxyHTTPClient returns an HTTP client that sends every request through
// the proxy at addr without reusing connections.
func ProxyHTTPClient(t *testing.T, addr string) *http.Client {
	t.Helper()

	proxyURL, err := url.Parse("http://" + addr)
	require.NoError(t, err)

	transport := &http.Transport{
		Proxy:              http.ProxyURL(proxyURL),
		DisableKeepAlives:  true,
		DisableCompression: true,
	}
	t.Cleanup(transport.CloseIdleConnections)
	return &http.Client{Transport: transport, Timeout: 10 * time.Second}
}

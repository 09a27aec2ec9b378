package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
)

// connectHandler relays CONNECT tunnels without inspecting them.
type connectHandler struct {
	timeouts TimeoutConfig
}

// Handle answers a CONNECT request and copies bytes in both directions until
// either side closes. Tunnelled traffic is never observed.
func (h *connectHandler) Handle(ctx context.Context, clientConn net.Conn, clientReader *bufio.Reader) {
	target, err := parseConnectRequest(clientReader)
	if err != nil {
		log.Printf("proxy: failed to parse CONNECT request: %v", err)
		sendConnectError(clientConn, 400, "Bad Request")
		return
	}

	addr := net.JoinHostPort(target.Hostname, strconv.Itoa(target.Port))
	dialer := net.Dialer{Timeout: h.timeouts.DialTimeout}
	upstreamConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		log.Printf("proxy: CONNECT to %s failed: %v", addr, err)
		if isTimeoutError(err) {
			sendConnectError(clientConn, 504, "Gateway Timeout")
		} else {
			sendConnectError(clientConn, 502, "Bad Gateway")
		}
		return
	}
	defer func() { _ = upstreamConn.Close() }()

	if _, err := clientConn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		log.Printf("proxy: failed to send CONNECT response: %v", err)
		return
	}

	stop := context.AfterFunc(ctx, func() {
		_ = clientConn.Close()
		_ = upstreamConn.Close()
	})
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		// clientReader may hold bytes the client sent right after CONNECT
		_, _ = io.Copy(upstreamConn, clientReader)
		closeWrite(upstreamConn)
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(clientConn, upstreamConn)
		closeWrite(clientConn)
	}()
	wg.Wait()
}

// parseConnectRequest reads "CONNECT host:port HTTP/1.1" and discards the
// remaining headers. The port defaults to 443.
func parseConnectRequest(br *bufio.Reader) (*Target, error) {
	line, _, err := readLine(br)
	if err != nil {
		return nil, fmt.Errorf("read request line: %w", err)
	}
	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) < 2 || parts[0] != "CONNECT" {
		return nil, errors.New("invalid CONNECT request line")
	}

	target, err := parseHostPort(parts[1], 443)
	if err != nil {
		return nil, err
	}

	for {
		header, _, err := readLine(br)
		if len(header) == 0 {
			break
		} else if err != nil {
			return nil, fmt.Errorf("read headers: %w", err)
		}
	}
	return target, nil
}

func closeWrite(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	} else {
		_ = conn.Close()
	}
}

func sendConnectError(conn net.Conn, code int, message string) {
	resp := fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Type: text/plain\r\nConnection: close\r\n\r\n%s\n",
		code, message, message)
	_, _ = conn.Write([]byte(resp))
}

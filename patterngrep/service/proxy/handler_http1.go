package proxy

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type http1Handler struct {
	observer     Observer
	maxBodyBytes int
	decodeBodies bool
	timeouts     TimeoutConfig
}

// Handle serves plain HTTP/1.x proxy requests on clientConn until the client
// or an upstream closes the connection. Each request may name a different
// upstream.
func (h *http1Handler) Handle(ctx context.Context, clientConn net.Conn, clientReader *bufio.Reader) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		// unblock pending reads on shutdown
		select {
		case <-ctx.Done():
			_ = clientConn.Close()
		case <-done:
		}
	}()

	for ctx.Err() == nil {
		if !h.handleOne(ctx, clientConn, clientReader) {
			return
		}
	}
}

// handleOne proxies a single exchange and reports whether the connection
// should be kept open.
func (h *http1Handler) handleOne(ctx context.Context, clientConn net.Conn, clientReader *bufio.Reader) bool {
	req, err := parseRequest(clientReader)
	if err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, ErrEmptyRequest) {
			log.Printf("proxy: failed to parse request: %v", err)
			h.sendError(clientConn, 400, "Bad Request")
		}
		return false
	}

	if err := validateRequest(req); err != nil {
		log.Printf("proxy: rejected request: %v", err)
		h.sendError(clientConn, 400, "Bad Request: "+err.Error())
		return false
	}

	target, err := extractTarget(req)
	if err != nil {
		log.Printf("proxy: failed to extract target: %v", err)
		h.sendError(clientConn, 400, "Bad Request: "+err.Error())
		return false
	}
	rewriteToOriginForm(req, target)

	var reqBuf, respBuf bytes.Buffer
	rawReq := req.SerializeRaw(&reqBuf)

	upstreamAddr := net.JoinHostPort(target.Hostname, strconv.Itoa(target.Port))
	dialer := net.Dialer{Timeout: h.timeouts.DialTimeout}
	upstreamConn, err := dialer.DialContext(ctx, "tcp", upstreamAddr)
	if err != nil {
		log.Printf("proxy: failed to connect to %s: %v", upstreamAddr, err)
		h.upstreamFailed(clientConn, err, "connection refused", rawReq)
		return false
	}
	defer func() { _ = upstreamConn.Close() }()

	if h.timeouts.WriteTimeout > 0 {
		_ = upstreamConn.SetWriteDeadline(time.Now().Add(h.timeouts.WriteTimeout))
	}
	if _, err := upstreamConn.Write(rawReq); err != nil {
		log.Printf("proxy: failed to send request to %s: %v", upstreamAddr, err)
		h.upstreamFailed(clientConn, err, "failed to send request", rawReq)
		return false
	}

	if h.timeouts.ReadTimeout > 0 {
		_ = upstreamConn.SetReadDeadline(time.Now().Add(h.timeouts.ReadTimeout))
	}
	resp, err := parseResponse(bufio.NewReader(upstreamConn), req.Method)
	if err != nil {
		log.Printf("proxy: failed to parse response from %s: %v", upstreamAddr, err)
		h.upstreamFailed(clientConn, err, "malformed response", rawReq)
		return false
	}

	rawResp := resp.SerializeRaw(&respBuf)
	if h.timeouts.WriteTimeout > 0 {
		_ = clientConn.SetWriteDeadline(time.Now().Add(h.timeouts.WriteTimeout))
	}
	if _, err := clientConn.Write(rawResp); err != nil {
		log.Printf("proxy: failed to send response to client: %v", err)
		h.deliver(rawReq, nil)
		return false
	}
	_ = clientConn.SetWriteDeadline(time.Time{})

	h.deliver(rawReq, rawResp)

	return !strings.EqualFold(resp.Headers.Get("Connection"), "close") &&
		!strings.EqualFold(req.Headers.Get("Connection"), "close")
}

// deliver reports the exchange to the observer. rawResp is nil when the
// exchange did not complete.
func (h *http1Handler) deliver(rawReq, rawResp []byte) {
	if h.observer == nil {
		return
	}
	obs, err := buildObservation(rawReq, rawResp, h.decodeBodies, h.maxBodyBytes)
	if err != nil {
		log.Printf("proxy: failed to analyze exchange: %v", err)
		return
	}
	h.observer.Observe(obs)
}

func (h *http1Handler) upstreamFailed(clientConn net.Conn, err error, reason string, rawReq []byte) {
	if isTimeoutError(err) {
		h.sendError(clientConn, 504, "Gateway Timeout")
	} else {
		h.sendError(clientConn, 502, "Bad Gateway: "+reason)
	}
	h.deliver(rawReq, nil)
}

// extractTarget finds the upstream from a proxy-form URL or the Host header.
func extractTarget(req *RawHTTP1Request) (*Target, error) {
	if strings.HasPrefix(req.Target, "https://") {
		return nil, errors.New("https URLs must be tunnelled with CONNECT")
	} else if strings.HasPrefix(req.Target, "http://") {
		u, err := url.Parse(req.Target)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy-form URL: %w", err)
		}
		return parseHostPort(u.Host, 80)
	}

	host := req.Headers.Get("Host")
	if host == "" {
		return nil, errors.New("no Host header and not a proxy-form request")
	}
	return parseHostPort(host, 80)
}

// parseHostPort splits host[:port], accepting bracketed IPv6 literals.
func parseHostPort(hostPort string, defaultPort int) (*Target, error) {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		host = strings.TrimSuffix(strings.TrimPrefix(hostPort, "["), "]")
		portStr = strconv.Itoa(defaultPort)
	}
	if host == "" {
		return nil, errors.New("empty host")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port: %s", portStr)
	}
	return &Target{Hostname: host, Port: port}, nil
}

// rewriteToOriginForm turns a proxy-form request into what the upstream
// expects: a path target, a matching Host header, and no proxy headers.
func rewriteToOriginForm(req *RawHTTP1Request, target *Target) {
	if strings.HasPrefix(req.Target, "http://") {
		if u, err := url.Parse(req.Target); err == nil {
			req.Target = u.EscapedPath()
			if req.Target == "" {
				req.Target = "/"
			}
		}
	}

	hostHeader := target.Hostname
	if strings.Contains(hostHeader, ":") {
		hostHeader = "[" + hostHeader + "]"
	}
	if target.Port != 80 {
		hostHeader += ":" + strconv.Itoa(target.Port)
	}
	if req.Headers.Get("Host") != hostHeader {
		req.Headers.Set("Host", hostHeader)
	}
	req.Headers.Remove("Proxy-Connection")
	req.Headers.Remove("Proxy-Authorization")
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (h *http1Handler) sendError(conn net.Conn, code int, message string) {
	resp := &RawHTTP1Response{
		Version:    "HTTP/1.1",
		StatusCode: code,
		StatusText: message,
		Headers: Headers{
			{Name: "Content-Type", Value: "text/plain"},
			{Name: "Connection", Value: "close"},
		},
		Body: []byte(message + "\n"),
	}
	_, _ = conn.Write(resp.SerializeRaw(&bytes.Buffer{}))
}

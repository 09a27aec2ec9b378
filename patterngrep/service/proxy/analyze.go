package proxy

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/go-appsec/patterngrep/patterngrep/service/monitor"
	"github.com/go-appsec/patterngrep/patterngrep/service/store"
)

// RequestInfo describes a raw request message.
type RequestInfo struct {
	Method string
	URL    string
	// Headers holds the request line followed by each header line.
	Headers    []string
	Body       []byte
	BodyOffset int
}

// ResponseInfo describes a raw response message.
type ResponseInfo struct {
	StatusCode int
	// Headers holds the status line followed by each header line.
	Headers    []string
	Body       []byte
	BodyOffset int
	// Parsed keeps the header list for body decoding.
	Parsed Headers
}

// AnalyzeRequest parses a complete serialized request. Origin-form targets
// are resolved to an http URL through the Host header.
func AnalyzeRequest(raw []byte) (RequestInfo, error) {
	req, err := parseRequest(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return RequestInfo{}, err
	}

	headers, offset := splitHeaderBlock(raw)
	return RequestInfo{
		Method:     req.Method,
		URL:        requestURL(req),
		Headers:    headers,
		Body:       raw[offset:],
		BodyOffset: offset,
	}, nil
}

// AnalyzeResponse parses a complete serialized response.
func AnalyzeResponse(raw []byte) (ResponseInfo, error) {
	resp, err := parseResponse(bufio.NewReader(bytes.NewReader(raw)), "")
	if err != nil {
		return ResponseInfo{}, err
	}

	headers, offset := splitHeaderBlock(raw)
	return ResponseInfo{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       raw[offset:],
		BodyOffset: offset,
		Parsed:     resp.Headers,
	}, nil
}

func requestURL(req *RawHTTP1Request) string {
	u := req.Target
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "http://" + req.Headers.Get("Host") + u
	}
	if req.Query != "" {
		u += "?" + req.Query
	}
	return u
}

// splitHeaderBlock returns the start line plus header lines of raw and the
// offset of the first body byte.
func splitHeaderBlock(raw []byte) ([]string, int) {
	var lines []string
	pos := 0
	for pos < len(raw) {
		end := bytes.IndexByte(raw[pos:], '\n')
		if end < 0 {
			if line := strings.TrimSuffix(string(raw[pos:]), "\r"); line != "" {
				lines = append(lines, line)
			}
			return lines, len(raw)
		}
		line := strings.TrimSuffix(string(raw[pos:pos+end]), "\r")
		pos += end + 1
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	return lines, pos
}

// buildObservation converts the wire bytes of one exchange into a delivery.
// rawResp is nil when no response was received. Bodies are decoded when
// decode is set, then cut to maxBodyBytes. Length fields keep the full raw
// size.
func buildObservation(rawReq, rawResp []byte, decode bool, maxBodyBytes int) (monitor.Observation, error) {
	reqInfo, err := AnalyzeRequest(rawReq)
	if err != nil {
		return monitor.Observation{}, err
	}
	obs := monitor.Observation{
		Request: store.Request{
			Message: store.Message{
				Headers: reqInfo.Headers,
				Body:    truncate(reqInfo.Body, maxBodyBytes),
				Length:  len(rawReq),
			},
			Method: reqInfo.Method,
			URL:    reqInfo.URL,
		},
	}
	if rawResp == nil {
		obs.RequestOnly = true
		return obs, nil
	}

	respInfo, err := AnalyzeResponse(rawResp)
	if err != nil {
		return monitor.Observation{}, err
	}
	body := respInfo.Body
	if decode {
		body = DecodeBody(body, respInfo.Parsed, maxBodyBytes)
	}
	obs.Response = &store.Response{
		Message: store.Message{
			Headers: respInfo.Headers,
			Body:    truncate(body, maxBodyBytes),
			Length:  len(rawResp),
		},
		StatusCode: respInfo.StatusCode,
	}
	return obs, nil
}

func truncate(b []byte, limit int) []byte {
	if limit > 0 && len(b) > limit {
		return b[:limit]
	}
	return b
}

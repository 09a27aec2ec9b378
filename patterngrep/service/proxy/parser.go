package proxy

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
)

var (
	ErrEmptyRequest    = errors.New("empty request")
	ErrEmptyResponse   = errors.New("empty response")
	ErrInvalidRequest  = errors.New("invalid request line")
	ErrInvalidResponse = errors.New("invalid status line")
)

// parseRequest reads one request from br. It is tolerant of malformed input
// and only fails when no request line can be extracted.
func parseRequest(br *bufio.Reader) (*RawHTTP1Request, error) {
	line, bareLF, err := readLine(br)
	if err != nil && len(line) == 0 {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyRequest
		}
		return nil, err
	}

	method, target, query, version, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}
	req := &RawHTTP1Request{
		Method:  method,
		Target:  target,
		Query:   query,
		Version: version,
	}

	var headersBareLF bool
	req.Headers, headersBareLF, err = readHeaders(br)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	req.BareLF = bareLF || headersBareLF

	if isChunked(req.Headers) {
		req.Body, err = readChunkedBody(br)
	} else if cl, ok := contentLength(req.Headers); ok && cl > 0 {
		req.Body = make([]byte, cl)
		_, err = io.ReadFull(br, req.Body)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return req, nil
}

// parseResponse reads one response from br. requestMethod decides whether
// a body follows (HEAD responses have none).
func parseResponse(br *bufio.Reader, requestMethod string) (*RawHTTP1Response, error) {
	line, bareLF, err := readLine(br)
	if err != nil && len(line) == 0 {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyResponse
		}
		return nil, err
	}

	version, code, text, err := parseStatusLine(line)
	if err != nil {
		return nil, err
	}
	resp := &RawHTTP1Response{
		Version:    version,
		StatusCode: code,
		StatusText: text,
	}

	var headersBareLF bool
	resp.Headers, headersBareLF, err = readHeaders(br)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	resp.BareLF = bareLF || headersBareLF

	if requestMethod == "HEAD" || code < 200 || code == 204 || code == 304 {
		return resp, nil
	}

	if isChunked(resp.Headers) {
		resp.Body, err = readChunkedBody(br)
	} else if cl, ok := contentLength(resp.Headers); ok {
		if cl > 0 {
			resp.Body = make([]byte, cl)
			_, err = io.ReadFull(br, resp.Body)
		}
	} else {
		// no framing, the body runs until the upstream closes
		resp.Body, err = io.ReadAll(br)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return resp, nil
}

// readLine reads one line accepting CRLF or bare LF. The returned line
// excludes the ending; bareLF reports a LF without CR.
func readLine(br *bufio.Reader) (line []byte, bareLF bool, err error) {
	line, err = br.ReadBytes('\n')
	if err != nil {
		return bytes.TrimSuffix(line, []byte("\r")), false, err
	}
	line = line[:len(line)-1]
	if bytes.HasSuffix(line, []byte("\r")) {
		return line[:len(line)-1], false, nil
	}
	return line, true, nil
}

// parseRequestLine splits "METHOD target VERSION". A missing version
// defaults to HTTP/1.1.
func parseRequestLine(line []byte) (method, target, query, version string, err error) {
	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) < 2 || parts[0] == "" {
		return "", "", "", "", ErrInvalidRequest
	}

	method = parts[0]
	version = "HTTP/1.1"
	if len(parts) == 3 {
		version = strings.TrimSpace(parts[2])
	}
	target, query, _ = strings.Cut(parts[1], "?")
	return method, target, query, version, nil
}

func parseStatusLine(line []byte) (version string, code int, text string, err error) {
	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) < 2 {
		return "", 0, "", ErrInvalidResponse
	}
	code, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, "", ErrInvalidResponse
	}
	if len(parts) == 3 {
		text = parts[2]
	}
	return parts[0], code, text, nil
}

// readHeaders reads header lines up to the blank line. obs-fold continuation
// lines are joined into the previous header's value and kept in its RawLine.
func readHeaders(br *bufio.Reader) (Headers, bool, error) {
	var headers Headers
	var sawBareLF bool
	for {
		line, bareLF, err := readLine(br)
		sawBareLF = sawBareLF || bareLF
		if err != nil && !errors.Is(err, io.EOF) {
			return headers, sawBareLF, err
		} else if len(line) == 0 {
			return headers, sawBareLF, err
		}

		if (line[0] == ' ' || line[0] == '\t') && len(headers) > 0 {
			last := &headers[len(headers)-1]
			ending := "\r\n"
			if bareLF {
				ending = "\n"
			}
			last.RawLine = append(append(last.RawLine, ending...), line...)
			last.Value += " " + strings.TrimLeft(string(line), " \t")
		} else {
			hdr := parseHeaderLine(line)
			hdr.RawLine = bytes.Clone(line)
			headers = append(headers, hdr)
		}

		if err != nil {
			return headers, sawBareLF, err
		}
	}
}

// parseHeaderLine splits "Name: Value". A line without a colon becomes a
// header with an empty value.
func parseHeaderLine(line []byte) Header {
	name, value, found := bytes.Cut(line, []byte(":"))
	if !found {
		return Header{Name: string(line)}
	}
	return Header{Name: string(name), Value: strings.TrimSpace(string(value))}
}

func isChunked(h Headers) bool {
	return strings.Contains(strings.ToLower(h.Get("Transfer-Encoding")), "chunked")
}

func contentLength(h Headers) (int64, bool) {
	v := h.Get("Content-Length")
	if v == "" {
		return 0, false
	}
	cl, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || cl < 0 {
		return 0, false
	}
	return cl, true
}

// readChunkedBody reassembles a chunked body. Trailers are consumed and
// discarded. An unparseable chunk size ends the body with what was read.
func readChunkedBody(br *bufio.Reader) ([]byte, error) {
	var body bytes.Buffer
	for {
		sizeLine, _, err := readLine(br)
		if err != nil && !errors.Is(err, io.EOF) {
			return body.Bytes(), err
		}
		sizeStr, _, _ := strings.Cut(string(sizeLine), ";")
		size, parseErr := strconv.ParseInt(strings.TrimSpace(sizeStr), 16, 64)
		if parseErr != nil || size < 0 {
			return body.Bytes(), nil
		} else if size == 0 {
			for {
				trailer, _, err := readLine(br)
				if len(trailer) == 0 || err != nil {
					return body.Bytes(), nil
				}
			}
		}

		if _, err := io.CopyN(&body, br, size); err != nil {
			return body.Bytes(), err
		}
		_, _, _ = readLine(br) // CRLF after chunk data
	}
}

// SerializeRaw renders the request for the wire. Chunked bodies are sent
// with a Content-Length instead.
func (r *RawHTTP1Request) SerializeRaw(buf *bytes.Buffer) []byte {
	startLine := r.Method + " " + r.Target
	if r.Query != "" {
		startLine += "?" + r.Query
	}
	startLine += " " + r.Version
	return serializeMessage(buf, startLine, r.Headers, r.Body, r.BareLF)
}

// SerializeRaw renders the response for the wire. Chunked bodies are sent
// with a Content-Length instead.
func (r *RawHTTP1Response) SerializeRaw(buf *bytes.Buffer) []byte {
	startLine := r.Version + " " + strconv.Itoa(r.StatusCode)
	if r.StatusText != "" {
		startLine += " " + r.StatusText
	}
	return serializeMessage(buf, startLine, r.Headers, r.Body, r.BareLF)
}

func serializeMessage(buf *bytes.Buffer, startLine string, headers Headers, body []byte, bareLF bool) []byte {
	buf.Reset()
	lineEnd := "\r\n"
	if bareLF {
		lineEnd = "\n"
	}

	buf.WriteString(startLine)
	buf.WriteString(lineEnd)

	chunked := isChunked(headers)
	for _, h := range headers {
		if chunked && (strings.EqualFold(h.Name, "Transfer-Encoding") || strings.EqualFold(h.Name, "Content-Length")) {
			continue // replaced below
		}
		if len(h.RawLine) > 0 {
			buf.Write(h.RawLine)
		} else {
			buf.WriteString(h.Name)
			buf.WriteString(": ")
			buf.WriteString(h.Value)
		}
		buf.WriteString(lineEnd)
	}
	if chunked || (len(body) > 0 && headers.Get("Content-Length") == "") {
		buf.WriteString("Content-Length: ")
		buf.WriteString(strconv.Itoa(len(body)))
		buf.WriteString(lineEnd)
	}
	buf.WriteString(lineEnd)
	buf.Write(body)
	return buf.Bytes()
}

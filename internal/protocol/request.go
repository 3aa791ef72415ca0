// Package protocol implements the minimal text request/response exchange the
// server speaks over a raw connection: one request line with exactly three
// tokens, colon-delimited headers, and a Content-Length bounded body.
package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	herrors "hybridserver/internal/errors"
)

// Method is a supported request verb.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodDelete Method = "DELETE"
)

// FormContentType marks a body carrying key=value pairs.
const FormContentType = "application/x-www-form-urlencoded"

var methods = map[string]Method{
	"GET":    MethodGet,
	"POST":   MethodPost,
	"DELETE": MethodDelete,
}

// ParseMethod matches s case-insensitively against the supported verbs.
func ParseMethod(s string) (Method, bool) {
	m, ok := methods[strings.ToUpper(s)]
	return m, ok
}

// Request is a parsed request. It is not modified after ReadRequest returns.
type Request struct {
	Method  Method
	Target  string // raw request target, e.g. "/html?uuid=1"
	Path    string // target path without its leading slash
	Version string
	Query   map[string]string // URL query merged with form body pairs
	Header  Header
	Body    *string // nil when the request carried no body

	contentLength int
}

// Param returns a query or form parameter.
func (r *Request) Param(name string) (string, bool) {
	v, ok := r.Query[name]
	return v, ok
}

// ContentLength returns the declared body length (0 when absent or invalid).
func (r *Request) ContentLength() int {
	return r.contentLength
}

// ReadRequest parses a single request from rd. Every grammar violation is
// reported as a ParseFailure; the caller decides how to answer it.
func ReadRequest(rd io.Reader) (*Request, error) {
	br, ok := rd.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(rd)
	}
	tp := textproto.NewReader(br)

	req := &Request{Query: make(map[string]string)}

	line, err := tp.ReadLine()
	if err != nil {
		return nil, herrors.Parse("reading request line", err)
	}
	if strings.TrimSpace(line) == "" {
		return nil, herrors.Parse("empty request line", nil)
	}
	if err := req.parseRequestLine(line); err != nil {
		return nil, err
	}

	if err := req.parseHeaders(tp); err != nil {
		return nil, err
	}

	if req.contentLength > 0 {
		if err := req.readBody(br); err != nil {
			return nil, err
		}
	}

	return req, nil
}

// parseRequestLine handles "METHOD target VERSION".
func (r *Request) parseRequestLine(line string) error {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return herrors.Parse(fmt.Sprintf("request line needs 3 tokens, got %d: %q", len(parts), line), nil)
	}

	m, ok := ParseMethod(parts[0])
	if !ok {
		return herrors.Parse("unsupported method "+parts[0], nil)
	}
	r.Method = m
	r.Target = parts[1]
	r.Version = parts[2]

	path, rawQuery, hasQuery := strings.Cut(r.Target, "?")
	r.Path = strings.TrimPrefix(path, "/")
	if hasQuery {
		parseParams(rawQuery, r.Query)
	}
	return nil
}

// parseHeaders reads header lines up to the blank separator line. Reaching
// the end of the stream ends the header block.
func (r *Request) parseHeaders(tp *textproto.Reader) error {
	for {
		line, err := tp.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return herrors.Parse("reading headers", err)
		}
		if strings.TrimSpace(line) == "" {
			return nil
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return herrors.Parse(fmt.Sprintf("malformed header line, missing colon: %q", line), nil)
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		r.Header.Set(name, value)

		if strings.EqualFold(name, "Content-Length") {
			n, convErr := strconv.Atoi(value)
			if convErr != nil || n < 0 {
				n = 0
			}
			r.contentLength = n
		}
	}
}

// readBody reads up to contentLength bytes; a short read at end of stream
// keeps whatever arrived. The buffer grows with the bytes actually read,
// never with the declared length.
func (r *Request) readBody(br *bufio.Reader) error {
	buf, err := io.ReadAll(io.LimitReader(br, int64(r.contentLength)))
	if err != nil {
		return herrors.Parse("reading body", err)
	}
	body := string(buf)
	r.Body = &body

	if r.Method == MethodPost && r.isForm(body) {
		parseParams(body, r.Query)
	}
	return nil
}

// isForm reports whether a POST body carries key=value pairs: either the
// Content-Type says so, or no Content-Type was sent and the body has a '='.
func (r *Request) isForm(body string) bool {
	ct, ok := r.Header.Get("Content-Type")
	if ok {
		return strings.Contains(strings.ToLower(ct), FormContentType)
	}
	return strings.Contains(body, "=")
}

// parseParams decodes '&'-separated key=value pairs into dst. Pairs without
// '=' and pairs that fail to decode are skipped; later keys overwrite earlier ones.
func parseParams(raw string, dst map[string]string) {
	if raw == "" {
		return
	}
	for _, pair := range strings.Split(raw, "&") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			continue
		}
		dst[key] = value
	}
}

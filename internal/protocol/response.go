package protocol

import (
	"bytes"
	"io"
	"strconv"
	"strings"
)

// DefaultVersion is written on every status line unless overridden.
const DefaultVersion = "HTTP/1.1"

// Status is a response status code.
type Status int

const (
	StatusOK                  Status = 200
	StatusCreated             Status = 201
	StatusNoContent           Status = 204
	StatusBadRequest          Status = 400
	StatusNotFound            Status = 404
	StatusMethodNotAllowed    Status = 405
	StatusInternalServerError Status = 500
)

var reasons = map[Status]string{
	StatusOK:                  "OK",
	StatusCreated:             "Created",
	StatusNoContent:           "No Content",
	StatusBadRequest:          "Bad Request",
	StatusNotFound:            "Not Found",
	StatusMethodNotAllowed:    "Method Not Allowed",
	StatusInternalServerError: "Internal Server Error",
}

// Code returns the numeric status code.
func (s Status) Code() int { return int(s) }

// Reason returns the reason phrase for s.
func (s Status) Reason() string {
	if r, ok := reasons[s]; ok {
		return r
	}
	return "Unknown"
}

func (s Status) String() string {
	return strconv.Itoa(int(s)) + " " + s.Reason()
}

// Response is a response under construction. Content-Length is owned by
// SetBody and always matches the UTF-8 byte length of the body.
type Response struct {
	Status  Status
	Version string

	header Header
	body   string
}

// NewResponse creates a response with the given status and an empty body.
func NewResponse(status Status) *Response {
	r := &Response{Status: status, Version: DefaultVersion}
	r.SetBody("")
	return r
}

// SetHeader sets a header. Content-Length cannot be set directly.
func (r *Response) SetHeader(name, value string) *Response {
	if isContentLength(name) {
		return r
	}
	r.header.Set(name, value)
	return r
}

// Header returns the value of a header.
func (r *Response) Header(name string) (string, bool) {
	return r.header.Get(name)
}

// Headers returns the headers in the order they will be written.
func (r *Response) Headers() []Field {
	return r.header.Fields()
}

// SetBody replaces the body and recomputes Content-Length.
func (r *Response) SetBody(body string) *Response {
	r.body = body
	r.header.Set("Content-Length", strconv.Itoa(len(body)))
	return r
}

// Body returns the body.
func (r *Response) Body() string {
	return r.body
}

// WriteTo serializes the response: status line, headers, blank line, body.
// Nothing is appended after the body.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer

	version := r.Version
	if version == "" {
		version = DefaultVersion
	}
	buf.WriteString(version)
	buf.WriteByte(' ')
	buf.WriteString(strconv.Itoa(r.Status.Code()))
	buf.WriteByte(' ')
	buf.WriteString(r.Status.Reason())
	buf.WriteString("\r\n")

	for _, f := range r.header.fields {
		buf.WriteString(f.Name)
		buf.WriteString(": ")
		buf.WriteString(f.Value)
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	buf.WriteString(r.body)

	return buf.WriteTo(w)
}

// String returns the wire form of the response.
func (r *Response) String() string {
	var buf bytes.Buffer
	_, _ = r.WriteTo(&buf)
	return buf.String()
}

func isContentLength(name string) bool {
	return strings.EqualFold(name, "Content-Length")
}

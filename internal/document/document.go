// Package document describes the four kinds of structured-text documents the
// server stores and how each maps onto routes, content types and tables.
package document

import "strings"

// Type identifies a document kind. Its string value is the route name and
// the form parameter that carries the document content on create.
type Type string

const (
	HTML Type = "html"
	XML  Type = "xml"
	XSD  Type = "xsd"
	XSLT Type = "xslt"
)

// SchemaParam names the form parameter that links a transform to its schema.
const SchemaParam = "xsd"

// IDParam names the query parameter that addresses a single document.
const IDParam = "uuid"

// All lists the document types in display order.
var All = []Type{HTML, XML, XSD, XSLT}

type typeInfo struct {
	contentType string
	table       string
	title       string
}

var info = map[Type]typeInfo{
	HTML: {contentType: "text/html", table: "HTML", title: "HTML pages"},
	XML:  {contentType: "application/xml", table: "XML", title: "XML documents"},
	XSD:  {contentType: "application/xml", table: "XSD", title: "XSD schemas"},
	XSLT: {contentType: "application/xslt+xml", table: "XSLT", title: "XSLT transforms"},
}

// Parse maps a route name to its Type. A single leading slash is accepted.
func Parse(path string) (Type, bool) {
	t := Type(strings.TrimPrefix(path, "/"))
	_, ok := info[t]
	return t, ok
}

// ContentType returns the MIME type served for documents of this type.
func (t Type) ContentType() string { return info[t].contentType }

// Table returns the relational table holding documents of this type.
func (t Type) Table() string { return info[t].table }

// Title returns a human-readable plural name.
func (t Type) Title() string { return info[t].title }

// Param returns the form parameter carrying new content.
func (t Type) Param() string { return string(t) }

// HasSchemaRef reports whether documents of this type reference a schema.
func (t Type) HasSchemaRef() bool { return t == XSLT }

func (t Type) String() string { return string(t) }

// Document is a stored text artifact.
type Document struct {
	ID        string
	Type      Type
	Content   string
	SchemaRef string // set for XSLT only
}

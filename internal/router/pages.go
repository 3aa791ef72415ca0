package router

import (
	"bytes"
	"html/template"

	"hybridserver/internal/document"
	"hybridserver/internal/protocol"
)

// Every page is an HTML document with a link back to the welcome page.
var pages = template.Must(template.New("pages").Parse(`
{{- define "head" -}}
<html><head><title>{{.}}</title></head><body>
{{- end -}}

{{- define "foot" -}}
<p><a href='/'>Back to the welcome page</a></p></body></html>
{{- end -}}

{{- define "welcome" -}}
{{template "head" "Hybrid Server"}}<h1>Hybrid Server</h1><p>Structured document server</p><ul>
{{- range .}}<li><a href='/{{.}}'>{{.Title}}</a></li>{{end -}}
</ul></body></html>
{{- end -}}

{{- define "list" -}}
{{template "head" .Type.Title}}<h1>{{.Type.Title}}</h1><ul>
{{- range .Entries}}<li><a href='/{{$.Type}}?uuid={{.ID}}'>{{.ID}}</a>
{{- if .SchemaRef}} (schema <a href='/xsd?uuid={{.SchemaRef}}'>{{.SchemaRef}}</a>){{end}}</li>
{{- else}}<li>No documents available</li>{{end -}}
</ul>{{template "foot"}}
{{- end -}}

{{- define "created" -}}
{{template "head" "Document created"}}<h1>Document created</h1>
<p>New {{.Type}} id: <a href='{{.Type}}?uuid={{.ID}}'>{{.ID}}</a></p>
{{- if .SchemaRef}}<p>Associated schema: <a href='xsd?uuid={{.SchemaRef}}'>{{.SchemaRef}}</a></p>{{end -}}
<p><a href='/{{.Type}}'>All {{.Type.Title}}</a></p>{{template "foot"}}
{{- end -}}

{{- define "deleted" -}}
{{template "head" "Document deleted"}}<h1>Document deleted</h1>
<p>The {{.Type}} document {{.ID}} has been deleted.</p>
<p><a href='/{{.Type}}'>All {{.Type.Title}}</a></p>{{template "foot"}}
{{- end -}}

{{- define "error" -}}
{{template "head" .Status.String}}<h1>{{.Status.String}}</h1>
{{- if .Detail}}<p>{{.Detail}}</p>{{end -}}
{{template "foot"}}
{{- end -}}
`))

type listEntry struct {
	ID        string
	SchemaRef string
}

type listData struct {
	Type    document.Type
	Entries []listEntry
}

type docData struct {
	Type      document.Type
	ID        string
	SchemaRef string
}

type errorData struct {
	Status protocol.Status
	Detail string
}

// render executes a named page. Templates are fixed at build time, so an
// execution error is a programming error.
func render(name string, data any) string {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		panic("router: rendering " + name + ": " + err.Error())
	}
	return buf.String()
}

func htmlResponse(status protocol.Status, body string) *protocol.Response {
	return protocol.NewResponse(status).
		SetHeader("Content-Type", document.HTML.ContentType()).
		SetBody(body)
}

func welcomePage() *protocol.Response {
	return htmlResponse(protocol.StatusOK, render("welcome", document.All))
}

func listPage(t document.Type, entries []listEntry) *protocol.Response {
	return htmlResponse(protocol.StatusOK, render("list", listData{Type: t, Entries: entries}))
}

func createdPage(t document.Type, id, schemaRef string) *protocol.Response {
	return htmlResponse(protocol.StatusOK, render("created", docData{Type: t, ID: id, SchemaRef: schemaRef}))
}

func deletedPage(t document.Type, id string) *protocol.Response {
	return htmlResponse(protocol.StatusOK, render("deleted", docData{Type: t, ID: id}))
}

// ErrorPage builds the HTML error response for status. detail is optional.
func ErrorPage(status protocol.Status, detail string) *protocol.Response {
	return htmlResponse(status, render("error", errorData{Status: status, Detail: detail}))
}

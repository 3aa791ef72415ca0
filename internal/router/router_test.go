package router

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"hybridserver/internal/document"
	herrors "hybridserver/internal/errors"
	"hybridserver/internal/protocol"
	"hybridserver/internal/slogutil"
	"hybridserver/internal/storage"
)

func newTestRouter(t *testing.T) (*Router, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	return New(store, slogutil.NewDiscardLogger()), store
}

func request(t *testing.T, raw string) *protocol.Request {
	t.Helper()
	req, err := protocol.ReadRequest(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadRequest(%q) error = %v", raw, err)
	}
	return req
}

func dispatch(t *testing.T, r *Router, raw string) *protocol.Response {
	t.Helper()
	resp, err := r.Dispatch(context.Background(), request(t, raw))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	return resp
}

func post(path, body string) string {
	return "POST " + path + " HTTP/1.1\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
}

var linkRe = regexp.MustCompile(`href='(html|xml|xsd|xslt)\?uuid=([0-9a-f-]{36})'`)

func createdID(t *testing.T, resp *protocol.Response) string {
	t.Helper()
	m := linkRe.FindStringSubmatch(resp.Body())
	if m == nil {
		t.Fatalf("no document link in body: %s", resp.Body())
	}
	return m[2]
}

func TestWelcomePage(t *testing.T) {
	r, _ := newTestRouter(t)
	resp := dispatch(t, r, "GET / HTTP/1.1\r\n\r\n")

	if resp.Status != protocol.StatusOK {
		t.Fatalf("status = %v, want 200", resp.Status)
	}
	if ct, _ := resp.Header("Content-Type"); ct != "text/html" {
		t.Errorf("Content-Type = %q", ct)
	}
	for _, link := range []string{"href='/html'", "href='/xml'", "href='/xsd'", "href='/xslt'"} {
		if !strings.Contains(resp.Body(), link) {
			t.Errorf("welcome page missing %s", link)
		}
	}
}

func TestCreateAndFetchHTML(t *testing.T) {
	r, _ := newTestRouter(t)

	resp := dispatch(t, r, post("/html", "html=%3Cp%3Ehi%3C%2Fp%3E"))
	if resp.Status != protocol.StatusOK {
		t.Fatalf("create status = %v, body = %s", resp.Status, resp.Body())
	}
	id := createdID(t, resp)
	if len(id) != 36 {
		t.Errorf("id %q should be 36 characters", id)
	}

	got := dispatch(t, r, "GET /html?uuid="+id+" HTTP/1.1\r\n\r\n")
	if got.Status != protocol.StatusOK || got.Body() != "<p>hi</p>" {
		t.Errorf("GET = %v %q", got.Status, got.Body())
	}
	if ct, _ := got.Header("Content-Type"); ct != "text/html" {
		t.Errorf("Content-Type = %q", ct)
	}

	list := dispatch(t, r, "GET /html HTTP/1.1\r\n\r\n")
	if !strings.Contains(list.Body(), "href='/html?uuid="+id+"'") {
		t.Errorf("listing does not link %s: %s", id, list.Body())
	}
}

func TestContentTypes(t *testing.T) {
	tests := []struct {
		typ  document.Type
		want string
	}{
		{document.HTML, "text/html"},
		{document.XML, "application/xml"},
		{document.XSD, "application/xml"},
		{document.XSLT, "application/xslt+xml"},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			r, store := newTestRouter(t)
			if err := store.Gateway(tt.typ).Create(context.Background(), "doc-1", "<x/>", "s"); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			resp := dispatch(t, r, "GET /"+string(tt.typ)+"?uuid=doc-1 HTTP/1.1\r\n\r\n")
			if ct, _ := resp.Header("Content-Type"); ct != tt.want {
				t.Errorf("Content-Type = %q, want %q", ct, tt.want)
			}
		})
	}
}

func TestEmptyListing(t *testing.T) {
	r, _ := newTestRouter(t)
	resp := dispatch(t, r, "GET /xml HTTP/1.1\r\n\r\n")
	if resp.Status != protocol.StatusOK {
		t.Fatalf("status = %v", resp.Status)
	}
	if !strings.Contains(resp.Body(), "<li>No documents available</li>") {
		t.Errorf("empty listing body = %s", resp.Body())
	}
}

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want protocol.Status
	}{
		{"get unknown uuid", "GET /html?uuid=00000000-0000-0000-0000-000000000000 HTTP/1.1\r\n\r\n", protocol.StatusNotFound},
		{"get empty uuid", "GET /xml?uuid= HTTP/1.1\r\n\r\n", protocol.StatusNotFound},
		{"get unknown path", "GET /pdf HTTP/1.1\r\n\r\n", protocol.StatusBadRequest},
		{"post unknown path", post("/pdf", "pdf=x"), protocol.StatusMethodNotAllowed},
		{"delete unknown path", "DELETE /pdf?uuid=1 HTTP/1.1\r\n\r\n", protocol.StatusNotFound},
		{"post root", post("/", "html=x"), protocol.StatusMethodNotAllowed},
		{"post without content", post("/html", "other=x"), protocol.StatusBadRequest},
		{"post with empty content", post("/xml", "xml="), protocol.StatusBadRequest},
		{"xslt without xsd", post("/xslt", "xslt=%3Cxsl%2F%3E"), protocol.StatusBadRequest},
		{"xslt with empty xsd", post("/xslt", "xslt=%3Cxsl%2F%3E&xsd="), protocol.StatusBadRequest},
		{"xslt with unknown xsd", post("/xslt", "xslt=%3Cxsl%2F%3E&xsd=nope"), protocol.StatusNotFound},
		{"delete without uuid", "DELETE /html HTTP/1.1\r\n\r\n", protocol.StatusBadRequest},
		{"delete with empty uuid", "DELETE /html?uuid= HTTP/1.1\r\n\r\n", protocol.StatusBadRequest},
		{"delete unknown uuid", "DELETE /xsd?uuid=missing HTTP/1.1\r\n\r\n", protocol.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t)
			resp := dispatch(t, r, tt.raw)
			if resp.Status != tt.want {
				t.Fatalf("status = %v, want %v", resp.Status, tt.want)
			}

			body := resp.Body()
			if !strings.Contains(body, tt.want.String()) {
				t.Errorf("error body should name %q: %s", tt.want.String(), body)
			}
			if !strings.Contains(body, "href='/'") {
				t.Errorf("error body should link back to /: %s", body)
			}
			if ct, _ := resp.Header("Content-Type"); ct != "text/html" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestCreateTransform(t *testing.T) {
	r, store := newTestRouter(t)
	ctx := context.Background()

	xsdResp := dispatch(t, r, post("/xsd", "xsd=%3Cxs%3Aschema%2F%3E"))
	schemaID := createdID(t, xsdResp)

	resp := dispatch(t, r, post("/xslt", "xslt=%3Cxsl%3Astylesheet%2F%3E&xsd="+schemaID))
	if resp.Status != protocol.StatusOK {
		t.Fatalf("status = %v, body = %s", resp.Status, resp.Body())
	}
	id := createdID(t, resp)

	ref, err := store.Gateway(document.XSLT).(storage.SchemaResolver).SchemaRef(ctx, id)
	if err != nil || ref != schemaID {
		t.Errorf("SchemaRef() = %q, %v; want %q", ref, err, schemaID)
	}
	if !strings.Contains(resp.Body(), "xsd?uuid="+schemaID) {
		t.Errorf("created page should link the schema: %s", resp.Body())
	}

	list := dispatch(t, r, "GET /xslt HTTP/1.1\r\n\r\n")
	if !strings.Contains(list.Body(), "href='/xsd?uuid="+schemaID+"'") {
		t.Errorf("xslt listing should link the schema: %s", list.Body())
	}
}

func TestTransformWithMissingSchemaPersistsNothing(t *testing.T) {
	r, store := newTestRouter(t)

	resp := dispatch(t, r, post("/xslt", "xslt=%3Cxsl%2F%3E&xsd=unknown"))
	if resp.Status != protocol.StatusNotFound {
		t.Fatalf("status = %v, want 404", resp.Status)
	}

	docs, err := store.Gateway(document.XSLT).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("nothing should be stored, got %v", docs)
	}
}

func TestDeleteReferencedSchema(t *testing.T) {
	r, _ := newTestRouter(t)

	schemaID := createdID(t, dispatch(t, r, post("/xsd", "xsd=%3Cxs%3Aschema%2F%3E")))
	transformID := createdID(t, dispatch(t, r, post("/xslt", "xslt=%3Cxsl%2F%3E&xsd="+schemaID)))

	resp := dispatch(t, r, "DELETE /xsd?uuid="+schemaID+" HTTP/1.1\r\n\r\n")
	if resp.Status != protocol.StatusOK {
		t.Fatalf("delete status = %v", resp.Status)
	}

	gone := dispatch(t, r, "GET /xsd?uuid="+schemaID+" HTTP/1.1\r\n\r\n")
	if gone.Status != protocol.StatusNotFound {
		t.Errorf("GET deleted schema = %v, want 404", gone.Status)
	}

	still := dispatch(t, r, "GET /xslt?uuid="+transformID+" HTTP/1.1\r\n\r\n")
	if still.Status != protocol.StatusOK {
		t.Errorf("transform should survive its schema, got %v", still.Status)
	}
}

func TestDeleteThenGet(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createdID(t, dispatch(t, r, post("/xml", "xml=%3Croot%2F%3E")))

	resp := dispatch(t, r, "DELETE /xml?uuid="+id+" HTTP/1.1\r\n\r\n")
	if resp.Status != protocol.StatusOK {
		t.Fatalf("delete status = %v", resp.Status)
	}
	if !strings.Contains(resp.Body(), id) {
		t.Errorf("delete page should name the id: %s", resp.Body())
	}

	if got := dispatch(t, r, "GET /xml?uuid="+id+" HTTP/1.1\r\n\r\n"); got.Status != protocol.StatusNotFound {
		t.Errorf("GET after delete = %v, want 404", got.Status)
	}
}

func TestContentLengthMatchesBody(t *testing.T) {
	r, _ := newTestRouter(t)
	resp := dispatch(t, r, post("/html", "html=caf%C3%A9"))
	id := createdID(t, resp)

	got := dispatch(t, r, "GET /html?uuid="+id+" HTTP/1.1\r\n\r\n")
	if cl, _ := got.Header("Content-Length"); cl != "5" {
		t.Errorf("Content-Length = %s, want 5 bytes for café", cl)
	}
}

func TestErrorPageEscapesDetail(t *testing.T) {
	resp := ErrorPage(protocol.StatusNotFound, "<script>x</script>")
	if strings.Contains(resp.Body(), "<script>") {
		t.Errorf("detail must be escaped: %s", resp.Body())
	}
	if !strings.Contains(resp.Body(), "<title>404 Not Found</title>") {
		t.Errorf("title = %s", resp.Body())
	}
}

type failingStore struct{ err error }

func (s failingStore) Gateway(document.Type) storage.Gateway { return failingGateway(s) }
func (s failingStore) Close() error                          { return nil }

type failingGateway struct{ err error }

func (g failingGateway) List(context.Context) (map[string]string, error) { return nil, g.err }
func (g failingGateway) Get(context.Context, string) (string, error)     { return "", g.err }
func (g failingGateway) Create(context.Context, string, string, string) error {
	return g.err
}
func (g failingGateway) Delete(context.Context, string) (bool, error) { return false, g.err }
func (g failingGateway) Exists(context.Context, string) (bool, error) { return false, g.err }

func TestStorageFailuresAreReturned(t *testing.T) {
	storeErr := herrors.Storage("list html", errors.New("connection refused"))
	r := New(failingStore{err: storeErr}, slogutil.NewDiscardLogger())

	for _, raw := range []string{
		"GET /html HTTP/1.1\r\n\r\n",
		"GET /html?uuid=1 HTTP/1.1\r\n\r\n",
		post("/html", "html=x"),
		post("/xslt", "xslt=x&xsd=s"),
		"DELETE /html?uuid=1 HTTP/1.1\r\n\r\n",
	} {
		resp, err := r.Dispatch(context.Background(), request(t, raw))
		if err == nil {
			t.Errorf("%q: expected error, got %v", raw, resp.Status)
			continue
		}
		if !herrors.Is(err, herrors.StorageFailure) {
			t.Errorf("%q: error code = %v", raw, herrors.CodeOf(err))
		}
	}

	// the welcome page never touches storage
	if resp := dispatch(t, r, "GET / HTTP/1.1\r\n\r\n"); resp.Status != protocol.StatusOK {
		t.Errorf("welcome page status = %v", resp.Status)
	}
}

func TestGeneratedIDsAreUnique(t *testing.T) {
	r, _ := newTestRouter(t)
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id := createdID(t, dispatch(t, r, post("/html", "html=x")))
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

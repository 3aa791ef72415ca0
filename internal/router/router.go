// Package router maps parsed requests onto document operations and renders
// the HTML pages the server answers with.
package router

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"hybridserver/internal/document"
	herrors "hybridserver/internal/errors"
	"hybridserver/internal/protocol"
	"hybridserver/internal/storage"
)

// Router dispatches requests against a document store. It keeps no state
// of its own and is safe for concurrent use.
type Router struct {
	store  storage.Store
	logger *slog.Logger
	newID  func() string
}

// New creates a router over store.
func New(store storage.Store, logger *slog.Logger) *Router {
	return &Router{
		store:  store,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Dispatch answers req. Client mistakes (bad parameters, unknown ids or
// paths) become HTML error responses; storage and internal failures are
// returned as errors for the caller to turn into a 500.
func (r *Router) Dispatch(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	resp, err := r.route(ctx, req)
	if err == nil {
		return resp, nil
	}

	var he *herrors.HybridError
	if errors.As(err, &he) {
		status := protocol.Status(herrors.StatusFor(he.Code))
		if status != protocol.StatusInternalServerError {
			return ErrorPage(status, he.Message), nil
		}
	}
	return nil, err
}

func (r *Router) route(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if req.Path == "" && req.Method == protocol.MethodGet {
		return welcomePage(), nil
	}

	t, known := document.Parse(req.Path)
	if !known {
		return nil, unknownPath(req)
	}

	switch req.Method {
	case protocol.MethodGet:
		if id, ok := req.Param(document.IDParam); ok {
			return r.get(ctx, t, id)
		}
		return r.list(ctx, t)
	case protocol.MethodPost:
		return r.create(ctx, t, req)
	case protocol.MethodDelete:
		return r.delete(ctx, t, req)
	default:
		return nil, herrors.Newf(herrors.MethodNotAllowed, "%s is not supported on /%s", req.Method, t)
	}
}

// unknownPath answers paths outside the document types. The status depends
// on the verb: GET is a bad request, POST is not allowed, DELETE is not found.
func unknownPath(req *protocol.Request) error {
	switch req.Method {
	case protocol.MethodPost:
		return herrors.Newf(herrors.MethodNotAllowed, "cannot create documents at /%s", req.Path)
	case protocol.MethodDelete:
		return herrors.Newf(herrors.NotFound, "no resource at /%s", req.Path)
	default:
		return herrors.Newf(herrors.UnknownResource, "unknown resource /%s", req.Path)
	}
}

func (r *Router) gateway(t document.Type) (storage.Gateway, error) {
	gw := r.store.Gateway(t)
	if gw == nil {
		return nil, herrors.Newf(herrors.InternalError, "no storage for %s documents", t)
	}
	return gw, nil
}

func (r *Router) list(ctx context.Context, t document.Type) (*protocol.Response, error) {
	gw, err := r.gateway(t)
	if err != nil {
		return nil, err
	}

	docs, err := gw.List(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	resolver, _ := gw.(storage.SchemaResolver)
	entries := make([]listEntry, 0, len(ids))
	for _, id := range ids {
		entry := listEntry{ID: id}
		if t.HasSchemaRef() && resolver != nil {
			ref, err := resolver.SchemaRef(ctx, id)
			switch {
			case err == nil:
				entry.SchemaRef = ref
			case errors.Is(err, storage.ErrNotFound):
				// deleted since List ran
				continue
			default:
				return nil, err
			}
		}
		entries = append(entries, entry)
	}

	return listPage(t, entries), nil
}

func (r *Router) get(ctx context.Context, t document.Type, id string) (*protocol.Response, error) {
	gw, err := r.gateway(t)
	if err != nil {
		return nil, err
	}

	content, err := gw.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, herrors.Newf(herrors.NotFound, "%s document %s not found", t, id)
	}
	if err != nil {
		return nil, err
	}

	return protocol.NewResponse(protocol.StatusOK).
		SetHeader("Content-Type", t.ContentType()).
		SetBody(content), nil
}

func (r *Router) create(ctx context.Context, t document.Type, req *protocol.Request) (*protocol.Response, error) {
	content, ok := req.Param(t.Param())
	if !ok || content == "" {
		return nil, herrors.Newf(herrors.ValidationFailure, "missing %s parameter", t.Param())
	}

	var schemaRef string
	if t.HasSchemaRef() {
		ref, err := r.requireSchema(ctx, req)
		if err != nil {
			return nil, err
		}
		schemaRef = ref
	}

	gw, err := r.gateway(t)
	if err != nil {
		return nil, err
	}

	id := r.newID()
	if err := gw.Create(ctx, id, content, schemaRef); err != nil {
		return nil, err
	}

	r.logger.Debug("Document created", "type", t.String(), "uuid", id)
	return createdPage(t, id, schemaRef), nil
}

// requireSchema checks the xsd parameter of a transform and that the schema
// it names is stored.
func (r *Router) requireSchema(ctx context.Context, req *protocol.Request) (string, error) {
	ref, ok := req.Param(document.SchemaParam)
	if !ok || ref == "" {
		return "", herrors.Newf(herrors.ValidationFailure, "missing %s parameter", document.SchemaParam)
	}

	schemas, err := r.gateway(document.XSD)
	if err != nil {
		return "", err
	}
	exists, err := schemas.Exists(ctx, ref)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", herrors.Newf(herrors.SchemaMissing, "schema %s not found", ref)
	}
	return ref, nil
}

func (r *Router) delete(ctx context.Context, t document.Type, req *protocol.Request) (*protocol.Response, error) {
	id, ok := req.Param(document.IDParam)
	if !ok || id == "" {
		return nil, herrors.Newf(herrors.ValidationFailure, "missing %s parameter", document.IDParam)
	}

	gw, err := r.gateway(t)
	if err != nil {
		return nil, err
	}

	removed, err := gw.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, herrors.Newf(herrors.NotFound, "%s document %s not found", t, id)
	}

	r.logger.Debug("Document deleted", "type", t.String(), "uuid", id)
	return deletedPage(t, id), nil
}

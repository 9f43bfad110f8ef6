package main

import (
	"context"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ===== request context binder =====

// requestAuth is the immutable per-request credential material captured from
// HTTP headers before the protocol layer runs. It travels inside the request
// context, never on the server object, so interleaved requests can never
// observe each other's credentials.
type requestAuth struct {
	cred      tenantCredential
	requestID string
}

type requestAuthKey struct{}

// httpContextFunc returns the hook that stamps every inbound HTTP request
// with its extracted credential and a correlation ID.
func httpContextFunc(defaultEndpoint string) server.HTTPContextFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		auth := requestAuth{
			cred:      extractCredential(r, defaultEndpoint),
			requestID: uuid.NewString(),
		}
		return context.WithValue(ctx, requestAuthKey{}, auth)
	}
}

func requestAuthFrom(ctx context.Context) (requestAuth, bool) {
	auth, ok := ctx.Value(requestAuthKey{}).(requestAuth)
	return auth, ok
}

// execContext is the request-scoped handle a handler uses to reach its
// session's GitLab client. One instance exists per in-flight request and is
// released unconditionally when the request finishes.
type execContext struct {
	session   *sessionRecord
	requestID string

	binder   *requestBinder
	released atomic.Bool
}

func (ec *execContext) release() {
	if ec.released.CompareAndSwap(false, true) {
		ec.binder.inflight.Add(-1)
	}
}

// requestBinder resolves an execContext per request by consulting the session
// store, and adapts session-requiring handlers onto mcp-go handler shapes.
// Handlers receive the context as an explicit argument; it is never parked in
// shared mutable server state.
type requestBinder struct {
	store    *sessionStore
	inflight atomic.Int64
}

func newRequestBinder(store *sessionStore) *requestBinder {
	return &requestBinder{store: store}
}

func (b *requestBinder) Inflight() int64 {
	return b.inflight.Load()
}

// bind resolves the session for the calling request or rejects it. Endpoint
// and credential failures short-circuit before any session lookup.
func (b *requestBinder) bind(ctx context.Context) (*execContext, error) {
	auth, ok := requestAuthFrom(ctx)
	if !ok || auth.cred.Token == "" {
		return nil, apiErrorf(kindAuthenticationMissing, "missing GitLab credential: supply a bearer token or the %s header", gitlabTokenHeader)
	}
	endpoint, err := normalizeEndpoint(auth.cred.Endpoint)
	if err != nil {
		return nil, err
	}
	record, err := b.store.getOrCreate(ctx, tenantCredential{Token: auth.cred.Token, Endpoint: endpoint})
	if err != nil {
		return nil, err
	}
	b.inflight.Add(1)
	return &execContext{session: record, requestID: auth.requestID, binder: b}, nil
}

// sessionToolHandler is a stateless translator from validated tool arguments
// to backend calls made through the bound context's client.
type sessionToolHandler func(ctx context.Context, req mcp.CallToolRequest, ec *execContext) (*mcp.CallToolResult, error)

// withSession adapts a sessionToolHandler onto mcp-go's handler shape:
// bind-or-reject, invoke, translate domain failures into the uniform error
// envelope, release on every path.
func (b *requestBinder) withSession(h sessionToolHandler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ec, err := b.bind(ctx)
		if err != nil {
			return toolError(req.Params.Name, "", err), nil
		}
		defer ec.release()
		result, err := h(ctx, req, ec)
		if err != nil {
			return toolError(req.Params.Name, ec.requestID, err), nil
		}
		return result, nil
	}
}

// withSessionResource is the resource-read analogue of withSession.
func (b *requestBinder) withSessionResource(h func(ctx context.Context, req mcp.ReadResourceRequest, ec *execContext) ([]mcp.ResourceContents, error)) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ec, err := b.bind(ctx)
		if err != nil {
			return nil, err
		}
		defer ec.release()
		return h(ctx, req, ec)
	}
}

func toolError(tool, requestID string, err error) *mcp.CallToolResult {
	log.Printf("<tools> %s failed request=%s kind=%s: %v", tool, requestID, errorKind(err), err)
	return mcp.NewToolResultError(errorEnvelope(err))
}

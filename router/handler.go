package router

import (
	"context"

	"github.com/searchktools/corehttp/httpcore"
)

// Handler is the single-method capability every route dispatches to, per
// §9's "polymorphism over {handleRequest}" note.
type Handler interface {
	HandleRequest(ctx context.Context, req *httpcore.Request) (*httpcore.Response, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, req *httpcore.Request) (*httpcore.Response, error)

// HandleRequest calls f.
func (f HandlerFunc) HandleRequest(ctx context.Context, req *httpcore.Request) (*httpcore.Response, error) {
	return f(ctx, req)
}

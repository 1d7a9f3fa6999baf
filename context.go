package rivet

import (
	"context"
	"net/http"
)

type contextKey struct {
	name string
}

var (
	writerKey    = &contextKey{"writer"}
	operationKey = &contextKey{"operation"}
)

// SetHeader sets a response header from inside a handler or hook. It requires
// that the handler was dispatched through the HTTP pipeline.
func SetHeader(ctx context.Context, key, value string) {
	if w, ok := ctx.Value(writerKey).(http.ResponseWriter); ok {
		w.Header().Set(key, value)
	}
}

// OperationFromContext returns the operation being dispatched, for decorators
// and middleware that need its name or model.
func OperationFromContext(ctx context.Context) (*Operation, bool) {
	op, ok := ctx.Value(operationKey).(*Operation)
	return op, ok
}

func newDispatchContext(ctx context.Context, w http.ResponseWriter, op *Operation) context.Context {
	ctx = context.WithValue(ctx, writerKey, w)
	ctx = context.WithValue(ctx, operationKey, op)
	return ctx
}

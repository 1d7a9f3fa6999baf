package rivet

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ServeOptions configures the HTTP dispatch pipeline shared by the router
// implementations.
type ServeOptions struct {
	// Logger receives dispatch failures. Defaults to slog.Default().
	Logger *slog.Logger

	// ErrorTransformer maps application errors to transport errors before
	// DefaultErrorTransformer is consulted.
	ErrorTransformer ErrorTransformer

	// MaskInternalErrors replaces internal error messages with a generic
	// one, keeping details out of responses.
	MaskInternalErrors bool
}

func (o *ServeOptions) logger() *slog.Logger {
	if o != nil && o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// PathValueFunc extracts one raw path-parameter value from a routed request.
// Router adapters supply their framework's accessor (chi.URLParam, mux.Vars).
type PathValueFunc func(r *http.Request, name string) string

// NewHTTPHandler builds the http.HandlerFunc for one operation: decode path,
// query and body, dispatch the standalone handler, serialize per the declared
// responses. Router adapters register the result under the operation's path
// and methods.
func NewHTTPHandler(op *Operation, pathValue PathValueFunc, opts *ServeOptions) http.HandlerFunc {
	placeholders := PathPlaceholders(op.Path)

	return func(w http.ResponseWriter, r *http.Request) {
		req := &Request{HTTP: r}

		if op.PathParams != nil {
			raw := make(map[string]string, len(placeholders))
			for _, name := range placeholders {
				raw[name] = pathValue(r, name)
			}
			payload, err := decodePathParams(op.PathParams, raw)
			if err != nil {
				writeError(w, err, opts)
				return
			}
			req.PathParams = payload
		}

		if op.Query != nil {
			payload, err := DecodeValues(op.Query, r.URL.Query())
			if err != nil {
				writeError(w, err, opts)
				return
			}
			req.Query = payload
		}

		if op.Body != nil {
			payload, err := ParseBody(op.Body, r.Body)
			if err != nil {
				writeError(w, err, opts)
				return
			}
			if err := validate.Struct(payload.Value()); err != nil {
				writeError(w, err, opts)
				return
			}
			req.Body = payload
		}

		ctx := newDispatchContext(r.Context(), w, op)
		result, err := op.Handler(ctx, req)
		if err != nil {
			writeError(w, err, opts)
			return
		}
		result, err = ResolveResult(ctx, result)
		if err != nil {
			writeError(w, err, opts)
			return
		}

		writeResult(w, op, result, opts)
	}
}

func writeResult(w http.ResponseWriter, op *Operation, result any, opts *ServeOptions) {
	status := op.Status
	if status == 0 {
		status = http.StatusOK
	}

	// No declared responses: the view left serialization to the router;
	// encode the result as-is.
	if op.Responses == nil {
		writeJSON(w, status, result, opts)
		return
	}

	schema, ok := op.Responses[status]
	if !ok || schema == nil {
		w.WriteHeader(status)
		return
	}

	body, err := MarshalResponse(result, schema)
	if err != nil {
		writeError(w, err, opts)
		return
	}
	writeJSON(w, status, body, opts)
}

func writeJSON(w http.ResponseWriter, status int, body any, opts *ServeOptions) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Response may be partially written; nothing left to do but log.
		opts.logger().Error("failed to encode response", slog.Any("error", err))
	}
}

type errorResponse struct {
	Error *Error `json:"error"`
}

func writeError(w http.ResponseWriter, err error, opts *ServeOptions) {
	var transportErr *Error
	if opts != nil && opts.ErrorTransformer != nil {
		transportErr = opts.ErrorTransformer(err)
	}
	if transportErr == nil {
		transportErr = DefaultErrorTransformer(err)
	}
	if opts != nil && opts.MaskInternalErrors && transportErr.Code == CodeInternal {
		transportErr = NewError(CodeInternal, "internal server error")
	}

	status := transportErr.Code.HTTPStatus()
	if status >= 500 {
		opts.logger().Error("request failed",
			slog.String("code", string(transportErr.Code)),
			slog.Any("error", err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(errorResponse{Error: transportErr}); encodeErr != nil {
		opts.logger().Error("failed to encode error response", slog.Any("error", encodeErr))
	}
}

// MarshalResponse converts a handler result to the declared response schema.
// Model instances and slices are converted by JSON round-trip; a Page keeps
// its envelope with the items converted to the schema's element type.
func MarshalResponse(result any, schema any) (any, error) {
	if result == nil {
		return nil, nil
	}
	if page, ok := result.(*Page); ok {
		items, err := convertTo(page.Items, SchemaType(schema))
		if err != nil {
			return nil, err
		}
		return pageEnvelope{Items: items, Count: page.Count}, nil
	}
	return convertTo(result, SchemaType(schema))
}

func convertTo(value any, typ reflect.Type) (any, error) {
	if typ == nil {
		return value, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	ptr := reflect.New(typ)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

package rivet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// staticPathValues stands in for a router's path extractor.
func staticPathValues(values map[string]string) PathValueFunc {
	return func(r *http.Request, name string) string {
		return values[name]
	}
}

func TestHTTPHandler_ReadDispatch(t *testing.T) {
	store := newTestStore()
	seedTags(t, store, "fiction")

	v := Read().Model(ModelOf[Tag]()).Store(store).Response(Tag{})
	op, err := v.AsOperation()
	if err != nil {
		t.Fatalf("AsOperation: %v", err)
	}

	handler := NewHTTPHandler(op, staticPathValues(map[string]string{"id": "1"}), nil)
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/1", nil))

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out Tag
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if out.ID != 1 || out.Name != "fiction" {
		t.Errorf("unexpected body: %+v", out)
	}
}

func TestHTTPHandler_NotFound(t *testing.T) {
	store := newTestStore()
	v := Read().Model(ModelOf[Tag]()).Store(store).Response(Tag{})
	op, _ := v.AsOperation()

	handler := NewHTTPHandler(op, staticPathValues(map[string]string{"id": "5"}), nil)
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/5", nil))

	if w.Code != 404 {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if resp.Error.Code != CodeNotFound {
		t.Errorf("expected not_found code, got %s", resp.Error.Code)
	}
}

func TestHTTPHandler_BodyValidation(t *testing.T) {
	store := newTestStore()
	v := Create().Model(ModelOf[Tag]()).Store(store).Body(struct {
		Name string `json:"name" validate:"required"`
	}{})
	op, err := v.AsOperation()
	if err != nil {
		t.Fatalf("AsOperation: %v", err)
	}

	handler := NewHTTPHandler(op, staticPathValues(nil), nil)
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("POST", "/", strings.NewReader(`{}`)))

	if w.Code != 400 {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var resp errorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != CodeInvalidArgument {
		t.Errorf("expected invalid_argument, got %s", resp.Error.Code)
	}
	if len(store.calls) != 0 {
		t.Errorf("expected no store calls on invalid body, got %v", store.calls)
	}
}

func TestHTTPHandler_MalformedJSON(t *testing.T) {
	store := newTestStore()
	v := Create().Model(ModelOf[Tag]()).Store(store).Body(struct {
		Name string `json:"name"`
	}{})
	op, _ := v.AsOperation()

	handler := NewHTTPHandler(op, staticPathValues(nil), nil)
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("POST", "/", strings.NewReader(`{"name":`)))

	if w.Code != 400 {
		t.Errorf("expected 400 for malformed JSON, got %d", w.Code)
	}
}

func TestHTTPHandler_EmptyResponse(t *testing.T) {
	store := newTestStore()
	seedTags(t, store, "a")

	v := Delete().Model(ModelOf[Tag]()).Store(store)
	op, err := v.AsOperation()
	if err != nil {
		t.Fatalf("AsOperation: %v", err)
	}

	handler := NewHTTPHandler(op, staticPathValues(map[string]string{"id": "1"}), nil)
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("DELETE", "/1", nil))

	if w.Code != 204 {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}
}

func TestHTTPHandler_SchemaProjection(t *testing.T) {
	type publicTag struct {
		Name string `json:"name"`
	}
	store := newTestStore()
	seedTags(t, store, "secretless")

	v := Read().Model(ModelOf[Tag]()).Store(store).Response(publicTag{})
	op, _ := v.AsOperation()

	handler := NewHTTPHandler(op, staticPathValues(map[string]string{"id": "1"}), nil)
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/1", nil))

	var raw map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	// The response schema drops fields the model carries.
	if _, ok := raw["id"]; ok {
		t.Errorf("expected id projected away, got %v", raw)
	}
	if raw["name"] != "secretless" {
		t.Errorf("expected name in projection, got %v", raw)
	}
}

func TestHTTPHandler_MaskInternalErrors(t *testing.T) {
	v := NewView("/boom", "GET").Handle(func(r *Request) (any, error) {
		return nil, errors.New("sensitive detail")
	})
	op, err := v.AsOperation()
	if err != nil {
		t.Fatalf("AsOperation: %v", err)
	}

	handler := NewHTTPHandler(op, staticPathValues(nil), &ServeOptions{MaskInternalErrors: true})
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/boom", nil))

	if w.Code != 500 {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "sensitive detail") {
		t.Errorf("expected masked message, got %s", w.Body.String())
	}
}

func TestHTTPHandler_CustomErrorTransformer(t *testing.T) {
	custom := errors.New("teapot mood")
	v := NewView("/tea", "GET").Handle(func(r *Request) (any, error) {
		return nil, custom
	})
	op, _ := v.AsOperation()

	opts := &ServeOptions{
		ErrorTransformer: func(err error) *Error {
			if errors.Is(err, custom) {
				return NewError(CodeConflict, "try later")
			}
			return nil
		},
	}
	handler := NewHTTPHandler(op, staticPathValues(nil), opts)
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/tea", nil))

	if w.Code != 409 {
		t.Errorf("expected transformed 409, got %d", w.Code)
	}
}

func TestHTTPHandler_SetHeader(t *testing.T) {
	v := NewView("/h", "GET").HandleCtx(func(ctx context.Context, r *Request) (any, error) {
		SetHeader(ctx, "X-Total", "3")
		return map[string]int{"n": 3}, nil
	})
	op, _ := v.AsOperation()

	handler := NewHTTPHandler(op, staticPathValues(nil), nil)
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/h", nil))

	if got := w.Header().Get("X-Total"); got != "3" {
		t.Errorf("expected header set from handler, got %q", got)
	}
}

func TestMarshalResponse_Page(t *testing.T) {
	type out struct {
		Name string `json:"name"`
	}
	page := &Page{Items: []any{&Tag{ID: 1, Name: "a"}, &Tag{ID: 2, Name: "b"}}, Count: 5}

	body, err := MarshalResponse(page, []out{})
	if err != nil {
		t.Fatalf("MarshalResponse: %v", err)
	}
	envelope, ok := body.(pageEnvelope)
	if !ok {
		t.Fatalf("expected page envelope, got %T", body)
	}
	if envelope.Count != 5 {
		t.Errorf("expected count 5, got %d", envelope.Count)
	}
	items, ok := envelope.Items.([]out)
	if !ok || len(items) != 2 || items[0].Name != "a" {
		t.Errorf("unexpected items: %v", envelope.Items)
	}
}

func TestOperationFromContext(t *testing.T) {
	v := NewView("/op", "GET").Name("named").HandleCtx(func(ctx context.Context, r *Request) (any, error) {
		op, ok := OperationFromContext(ctx)
		if !ok || op.Name != "named" {
			t.Error("expected operation in dispatch context")
		}
		return nil, nil
	})
	op, _ := v.AsOperation()

	handler := NewHTTPHandler(op, staticPathValues(nil), nil)
	handler(httptest.NewRecorder(), httptest.NewRequest("GET", "/op", nil))
}

package chirouter_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/rivetapi/rivet"
	"github.com/rivetapi/rivet/routers/chirouter"
	"github.com/rivetapi/rivet/stores/memstore"
)

type Article struct {
	ID    int64  `json:"id" rivet:"auto"`
	Title string `json:"title" validate:"required"`
	Draft bool   `json:"draft"`
}

type ArticleIn struct {
	Title string `json:"title" validate:"required"`
	Draft bool   `json:"draft"`
}

type ArticleOut struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Draft bool   `json:"draft"`
}

func newArticleRouter(t *testing.T) *chirouter.Router {
	t.Helper()
	router := chirouter.New(nil)

	vs := rivet.NewViewSet(rivet.ModelOf[Article]()).
		Store(memstore.New()).
		DefaultRequest(ArticleIn{}).
		DefaultResponse(ArticleOut{})
	vs.Add("list_articles", rivet.List())
	vs.Add("create_article", rivet.Create())
	vs.Add("read_article", rivet.Read())
	vs.Add("update_article", rivet.Update())
	vs.Add("delete_article", rivet.Delete())
	if err := vs.AddViewsTo(router); err != nil {
		t.Fatalf("registering views: %v", err)
	}
	return router
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func TestRouter_CRUD(t *testing.T) {
	router := newArticleRouter(t)

	w := do(t, router, "POST", "/", `{"title":"hello","draft":true}`)
	if w.Code != 201 {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created ArticleOut
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding create response: %v", err)
	}
	if created.ID != 1 || created.Title != "hello" || !created.Draft {
		t.Errorf("unexpected create body: %+v", created)
	}

	w = do(t, router, "GET", "/1", "")
	if w.Code != 200 {
		t.Fatalf("read: expected 200, got %d", w.Code)
	}

	w = do(t, router, "PUT", "/1", `{"title":"hello","draft":false}`)
	if w.Code != 200 {
		t.Fatalf("update: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated ArticleOut
	json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.Draft {
		t.Errorf("expected draft cleared, got %+v", updated)
	}

	w = do(t, router, "GET", "/", "")
	if w.Code != 200 {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	var page struct {
		Items []ArticleOut `json:"items"`
		Count int          `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decoding list response: %v", err)
	}
	if page.Count != 1 || len(page.Items) != 1 {
		t.Fatalf("expected one article, got %+v", page)
	}

	w = do(t, router, "DELETE", "/1", "")
	if w.Code != 204 {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("delete: expected empty body, got %q", w.Body.String())
	}

	w = do(t, router, "GET", "/1", "")
	if w.Code != 404 {
		t.Errorf("read after delete: expected 404, got %d", w.Code)
	}
}

func TestRouter_ErrorEnvelope(t *testing.T) {
	router := newArticleRouter(t)

	w := do(t, router, "GET", "/42", "")
	if w.Code != 404 {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if resp.Error.Code != "not_found" {
		t.Errorf("expected not_found, got %q", resp.Error.Code)
	}
}

func TestRouter_Wrap(t *testing.T) {
	mux := chi.NewRouter()
	mux.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
	router := chirouter.Wrap(mux, nil)

	v := rivet.NewView("/version", "GET").Handle(func(r *rivet.Request) (any, error) {
		return map[string]string{"version": "1"}, nil
	})
	if err := v.AddTo(router); err != nil {
		t.Fatalf("registering view: %v", err)
	}

	w := do(t, router, "GET", "/ping", "")
	if w.Body.String() != "pong" {
		t.Errorf("expected direct route preserved, got %q", w.Body.String())
	}
	w = do(t, router, "GET", "/version", "")
	if w.Code != 200 || !strings.Contains(w.Body.String(), `"version":"1"`) {
		t.Errorf("unexpected version response: %d %s", w.Code, w.Body.String())
	}
}

func TestRouter_Use(t *testing.T) {
	router := chirouter.New(nil)
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Marker", "yes")
			next.ServeHTTP(w, r)
		})
	})

	v := rivet.NewView("/x", "GET").Handle(func(r *rivet.Request) (any, error) {
		return nil, nil
	})
	if err := v.AddTo(router); err != nil {
		t.Fatalf("registering view: %v", err)
	}

	w := do(t, router, "GET", "/x", "")
	if w.Header().Get("X-Marker") != "yes" {
		t.Error("expected middleware applied to registered operation")
	}
}

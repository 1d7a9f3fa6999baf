package rivet

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type bookIn struct {
	Title    string  `json:"title" validate:"required"`
	AuthorID int64   `json:"author_id"`
	TagIDs   []int64 `json:"tag_ids"`
}

func createOperation(t *testing.T, v *CreateView) *Operation {
	t.Helper()
	op, err := v.AsOperation()
	if err != nil {
		t.Fatalf("AsOperation: %v", err)
	}
	return op
}

func bodyPayload(t *testing.T, prototype any, body string) *Payload {
	t.Helper()
	p, err := ParseBody(prototype, strings.NewReader(body))
	if err != nil {
		t.Fatalf("ParseBody: %v", err)
	}
	return p
}

func TestCreate_PersistsInstance(t *testing.T) {
	store := newTestStore()
	v := Create().Model(ModelOf[Tag]()).Store(store).Body(struct {
		Name string `json:"name"`
	}{})
	op := createOperation(t, v)

	req := &Request{Body: bodyPayload(t, struct {
		Name string `json:"name"`
	}{}, `{"name":"fiction"}`)}
	result, err := op.Handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	tag, ok := result.(*Tag)
	if !ok {
		t.Fatalf("expected *Tag, got %T", result)
	}
	if tag.ID == 0 {
		t.Error("expected auto primary key assigned")
	}
	if tag.Name != "fiction" {
		t.Errorf("expected body applied, got %q", tag.Name)
	}
	if len(store.rows["tag"]) != 1 {
		t.Errorf("expected one persisted row, got %d", len(store.rows["tag"]))
	}
}

func TestCreate_RelationsAfterInsert(t *testing.T) {
	ModelOf[Author]()
	ModelOf[Tag]()
	store := newTestStore()

	v := Create().Model(ModelOf[Book]()).Store(store).Body(bookIn{}).
		PreSave(func(ctx context.Context, r *Request, instance any) error { return nil })
	op := createOperation(t, v)

	req := &Request{Body: bodyPayload(t, bookIn{}, `{"title":"Go","tag_ids":[1,2]}`)}
	if _, err := op.Handler(context.Background(), req); err != nil {
		t.Fatalf("handler: %v", err)
	}

	// Relation rows need the primary key, so the insert must come first.
	want := []string{"insert", "set_relation:tag_ids"}
	if len(store.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, store.calls)
	}
	for i := range want {
		if store.calls[i] != want[i] {
			t.Fatalf("expected calls %v, got %v", want, store.calls)
		}
	}
}

func TestCreate_DefaultValidation(t *testing.T) {
	ModelOf[Author]()
	ModelOf[Tag]()
	store := newTestStore()

	v := Create().Model(ModelOf[Book]()).Store(store).Body(bookIn{})
	op := createOperation(t, v)

	// Book.Title carries validate:"required"; the default PreSave rejects it.
	req := &Request{Body: bodyPayload(t, bookIn{}, `{}`)}
	_, err := op.Handler(context.Background(), req)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(store.calls) != 0 {
		t.Errorf("expected no store calls after failed validation, got %v", store.calls)
	}
}

func TestCreate_InsertFailureSkipsRelations(t *testing.T) {
	ModelOf[Author]()
	ModelOf[Tag]()
	store := newTestStore()
	store.insertErr = errors.New("disk full")

	v := Create().Model(ModelOf[Book]()).Store(store).Body(bookIn{}).
		PreSave(func(ctx context.Context, r *Request, instance any) error { return nil })
	op := createOperation(t, v)

	req := &Request{Body: bodyPayload(t, bookIn{}, `{"title":"Go","tag_ids":[1]}`)}
	if _, err := op.Handler(context.Background(), req); err == nil {
		t.Fatal("expected insert error")
	}
	for _, call := range store.calls {
		if strings.HasPrefix(call, "set_relation") {
			t.Errorf("expected no relation calls after failed insert, got %v", store.calls)
		}
	}
}

func TestCreate_Hooks(t *testing.T) {
	store := newTestStore()
	var order []string

	v := Create().Model(ModelOf[Tag]()).Store(store).
		Body(struct {
			Name string `json:"name"`
		}{}).
		InitModel(func(ctx context.Context, r *Request) (any, error) {
			order = append(order, "init")
			return &Tag{Name: "seeded"}, nil
		}).
		PreSave(func(ctx context.Context, r *Request, instance any) error {
			order = append(order, "pre")
			return nil
		}).
		PostSave(func(ctx context.Context, r *Request, instance any) error {
			order = append(order, "post")
			return nil
		})
	op := createOperation(t, v)

	req := &Request{Body: bodyPayload(t, struct {
		Name string `json:"name"`
	}{}, `{"name":"x"}`)}
	if _, err := op.Handler(context.Background(), req); err != nil {
		t.Fatalf("handler: %v", err)
	}

	if len(order) != 3 || order[0] != "init" || order[1] != "pre" || order[2] != "post" {
		t.Errorf("expected init, pre, post; got %v", order)
	}
}

func TestCreate_RequiresRequestSchema(t *testing.T) {
	_, err := Create().Model(ModelOf[Tag]()).Store(newTestStore()).AsOperation()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError without request schema, got %v", err)
	}
}

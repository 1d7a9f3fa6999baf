package rivet

import "reflect"

// ViewSet groups the views of one resource under shared defaults: the model,
// the store, and the request and response schemas CRUD views inherit when
// they declare none of their own.
//
// Views are registered in declaration order, whether added programmatically
// with Add or collected from a struct with FromStruct.
type ViewSet struct {
	model           *ModelMeta
	store           Store
	defaultRequest  any
	defaultResponse any

	names []string
	views map[string]Endpoint

	target     any
	registered bool
}

// NewViewSet creates a ViewSet for the given model.
func NewViewSet(meta *ModelMeta) *ViewSet {
	return &ViewSet{
		model: meta,
		views: make(map[string]Endpoint),
	}
}

// Store sets the store inherited by views without one of their own.
func (vs *ViewSet) Store(s Store) *ViewSet { vs.store = s; return vs }

// DefaultRequest sets the request-body schema inherited by Create and Update
// views that declare none.
func (vs *ViewSet) DefaultRequest(schema any) *ViewSet { vs.defaultRequest = schema; return vs }

// DefaultResponse sets the response schema inherited by views that declare
// none. List views wrap it into a slice.
func (vs *ViewSet) DefaultResponse(schema any) *ViewSet { vs.defaultResponse = schema; return vs }

// Router sets a registration target so that FromStruct finalizes the viewset
// automatically. Accepts a Router or an API.
func (vs *ViewSet) Router(target any) *ViewSet { vs.target = target; return vs }

// Add registers a named view with the set. Insertion order is the
// registration order. Adding under an existing name replaces the view but
// keeps the original position.
func (vs *ViewSet) Add(name string, view Endpoint) *ViewSet {
	if _, ok := vs.views[name]; !ok {
		vs.names = append(vs.names, name)
	}
	vs.views[name] = view
	return vs
}

// FromStruct collects the exported view-typed fields of a struct, in field
// declaration order, and adds them under the snake_case form of the field
// name. When a Router target is configured the viewset is finalized
// immediately; the returned error then covers registration as well.
//
//	vs.FromStruct(&struct {
//	    ListDepartments   *rivet.ListView
//	    CreateDepartment  *rivet.CreateView
//	}{
//	    ListDepartments:  rivet.List(),
//	    CreateDepartment: rivet.Create(),
//	})
func (vs *ViewSet) FromStruct(views any) error {
	rv := reflect.ValueOf(views)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return configErrorf("", nil, "FromStruct: nil struct")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return configErrorf("", nil, "FromStruct: want a struct, got %s", rv.Kind())
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		ep, ok := rv.Field(i).Interface().(Endpoint)
		if !ok {
			continue
		}
		if rv.Field(i).Kind() == reflect.Pointer && rv.Field(i).IsNil() {
			return configErrorf(field.Name, nil, "FromStruct: view field is nil")
		}
		vs.Add(snakeCase(field.Name), ep)
	}

	if vs.target != nil {
		return vs.AddViewsTo(vs.target)
	}
	return nil
}

// AddViewsTo binds and registers every view with the target, in declaration
// order. Unset view names default to the name the view was added under. The
// viewset can be registered once; a second call fails.
func (vs *ViewSet) AddViewsTo(target any) error {
	if vs.registered {
		return configErrorf("", nil, "viewset already registered")
	}
	for _, name := range vs.names {
		view := vs.views[name]
		b := view.base()
		if b.name == "" {
			b.name = name
		}
		if err := b.bindOwner(vs); err != nil {
			return err
		}
		if err := view.AddTo(target); err != nil {
			return err
		}
	}
	vs.registered = true
	return nil
}

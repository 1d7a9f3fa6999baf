package rivet

import "context"

// Store is the persistence collaborator. Implementations live in
// stores/memstore and stores/sqlstore; anything satisfying these interfaces
// works. Instances are pointers to the model's struct type.
//
// Lookup misses are reported with ErrNotFound and ErrMultipleFound so the
// view pipeline and the transport error mapping can recognize them.
type Store interface {
	// Queryset returns the unfiltered collection of the model.
	Queryset(meta *ModelMeta) Queryset

	// Get returns exactly one instance matching every filter as an
	// equality condition. ErrNotFound when none match, ErrMultipleFound
	// when more than one does.
	Get(ctx context.Context, meta *ModelMeta, filters map[string]any) (any, error)

	// Insert persists a new instance, assigning auto-generated primary
	// keys on the instance.
	Insert(ctx context.Context, meta *ModelMeta, instance any) error

	// Update persists changes to an existing instance, addressed by its
	// primary key. ErrNotFound when the row no longer exists.
	Update(ctx context.Context, meta *ModelMeta, instance any) error

	// Delete removes an instance by primary key. The instance is a stale
	// reference afterwards.
	Delete(ctx context.Context, meta *ModelMeta, instance any) error

	// SetRelation replaces the many-to-many relation named by column with
	// the given related primary keys. The instance must already be
	// persisted.
	SetRelation(ctx context.Context, meta *ModelMeta, instance any, column string, values []any) error
}

// Queryset is a lazily evaluated, immutable view over a model collection.
// Filter and Slice return derived querysets; the receiver is never mutated,
// so a queryset may be shared across requests.
type Queryset interface {
	// Filter returns a queryset additionally constrained by column = value.
	Filter(column string, value any) Queryset

	// Slice returns a queryset restricted to the half-open row range
	// [offset, offset+limit). A negative limit means no upper bound.
	Slice(offset, limit int) Queryset

	// All evaluates the queryset.
	All(ctx context.Context) ([]any, error)

	// Count returns the number of rows the queryset matches, ignoring
	// any Slice restriction.
	Count(ctx context.Context) (int, error)
}

// Filterer marks a query-parameter schema as self-filtering: instead of the
// default equality filtering over explicitly-set fields, the schema applies
// itself to the queryset.
type Filterer interface {
	Filter(ctx context.Context, qs Queryset) (Queryset, error)
}

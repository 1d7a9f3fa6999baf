package rivet

import (
	"context"
	"net/http"
	"reflect"
	"strconv"
)

// Page is the paginated result envelope: the window of items plus the total
// count before slicing.
type Page struct {
	Items []any
	Count int
}

type pageEnvelope struct {
	Items any `json:"items"`
	Count int `json:"count"`
}

// DefaultPageLimit is the window size used when the client sends no limit.
const DefaultPageLimit = 100

// PaginateLimitOffset returns the decorator ListView appends by default. It
// reads "limit" and "offset" query values, slices the handler's queryset and
// wraps the window in a Page carrying the unsliced count.
//
// A non-queryset slice result is paginated in memory, so custom GetQueryset
// hooks returning materialized collections still page correctly.
func PaginateLimitOffset(defaultLimit, maxLimit int) Decorator {
	if defaultLimit <= 0 {
		defaultLimit = DefaultPageLimit
	}
	return func(next OperationFunc) OperationFunc {
		return func(ctx context.Context, r *Request) (any, error) {
			result, err := next(ctx, r)
			if err != nil {
				return nil, err
			}

			limit, offset := pageWindow(r.HTTP, defaultLimit, maxLimit)

			if qs, ok := result.(Queryset); ok {
				count, err := qs.Count(ctx)
				if err != nil {
					return nil, err
				}
				items, err := qs.Slice(offset, limit).All(ctx)
				if err != nil {
					return nil, err
				}
				return &Page{Items: items, Count: count}, nil
			}

			items := anySlice(result)
			if items == nil && result != nil && reflect.TypeOf(result).Kind() != reflect.Slice {
				// Not a collection; pass through untouched.
				return result, nil
			}
			count := len(items)
			if offset > count {
				offset = count
			}
			end := offset + limit
			if end > count {
				end = count
			}
			return &Page{Items: items[offset:end], Count: count}, nil
		}
	}
}

func pageWindow(r *http.Request, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit
	if r != nil {
		query := r.URL.Query()
		if v, err := strconv.Atoi(query.Get("limit")); err == nil && v > 0 {
			limit = v
		}
		if v, err := strconv.Atoi(query.Get("offset")); err == nil && v > 0 {
			offset = v
		}
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return limit, offset
}

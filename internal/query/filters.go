// Package query turns read filters into id-set filters the relation store
// understands.
package query

import (
	"context"

	"product-attribute-service/internal/domain"
	"product-attribute-service/internal/store"
)

// Reader is the slice of the relation store needed to resolve filters.
type Reader interface {
	ListAttributeIDs(ctx context.Context) ([]string, error)
	ListCategoryLinks(ctx context.Context, filter store.CategoryLinkFilter) ([]domain.CategoryLink, error)
	ListProductValueLinks(ctx context.Context, filter store.ProductValueLinkFilter) ([]domain.ProductValueLink, error)
}

// AttributeQuery is a high-level attribute listing request.
type AttributeQuery struct {
	IDs            []string
	Handles        []string
	CategoryIDs    []string
	IncludeGlobals bool
	Search         *string
	Limit          int
	Offset         int
}

// ApplyCategoryFilter adds the category-linked attribute ids to the ids the
// caller asked for. Explicit ids are never dropped. With no linked ids the
// filter comes back unchanged.
func ApplyCategoryFilter(ids, linkedIDs []string) []string {
	if len(linkedIDs) == 0 {
		return ids
	}
	return union(ids, linkedIDs)
}

// GlobalAttributeIDs returns the ids in all that have no category link.
func GlobalAttributeIDs(all, linked []string) []string {
	exclude := make(map[string]struct{}, len(linked))
	for _, id := range linked {
		exclude[id] = struct{}{}
	}
	out := make([]string, 0, len(all))
	for _, id := range all {
		if _, ok := exclude[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Resolver resolves queries against a Reader.
type Resolver struct {
	reader Reader
}

func NewResolver(reader Reader) *Resolver {
	return &Resolver{reader: reader}
}

// ResolveAttributeFilter resolves category and global flags into ids.
func (r *Resolver) ResolveAttributeFilter(ctx context.Context, q AttributeQuery) (store.AttributeFilter, error) {
	filter := store.AttributeFilter{
		IDs:     q.IDs,
		Handles: q.Handles,
		Search:  q.Search,
		Limit:   q.Limit,
		Offset:  q.Offset,
	}
	if len(q.CategoryIDs) == 0 && !q.IncludeGlobals {
		return filter, nil
	}

	ids := q.IDs
	if len(q.CategoryIDs) > 0 {
		linkFilter := store.CategoryLinkFilter{CategoryIDs: q.CategoryIDs}
		if len(q.IDs) > 0 {
			linkFilter.AttributeIDs = q.IDs
		}
		links, err := r.reader.ListCategoryLinks(ctx, linkFilter)
		if err != nil {
			return filter, err
		}
		linked := make([]string, 0, len(links))
		for _, l := range links {
			linked = append(linked, l.AttributeID)
		}
		ids = ApplyCategoryFilter(ids, linked)
	}

	if q.IncludeGlobals {
		all, err := r.reader.ListAttributeIDs(ctx)
		if err != nil {
			return filter, err
		}
		if len(all) > 0 {
			allLinks, err := r.reader.ListCategoryLinks(ctx, store.CategoryLinkFilter{AttributeIDs: all})
			if err != nil {
				return filter, err
			}
			scoped := make([]string, 0, len(allLinks))
			for _, l := range allLinks {
				scoped = append(scoped, l.AttributeID)
			}
			ids = union(ids, GlobalAttributeIDs(all, scoped))
		}
	}

	filter.IDs = ids
	return filter, nil
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

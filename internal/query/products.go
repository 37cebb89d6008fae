package query

import (
	"context"

	"product-attribute-service/internal/domain"
	"product-attribute-service/internal/store"
)

// ProductQuery is a store-front product listing request.
type ProductQuery struct {
	IDs               []string
	AttributeValueIDs []string
	SalesChannelIDs   []string
	CategoryIDs       []string
	Status            []string
	Limit             int
	Offset            int
}

// ProductFilterMutator adjusts the product filter before the attribute value
// filter is applied. Mutators run in the order given.
type ProductFilterMutator func(ctx context.Context, q ProductQuery, filter *store.ProductFilter) error

// DefaultStatus sets the status filter when the query did not ask for one.
func DefaultStatus(status string) ProductFilterMutator {
	return func(_ context.Context, q ProductQuery, filter *store.ProductFilter) error {
		if len(filter.Status) == 0 {
			filter.Status = []string{status}
		}
		return nil
	}
}

// SalesChannels narrows the listing to the requested sales channels. When
// allowed is non-empty, requested channels outside it are dropped, and
// with none requested the listing falls back to allowed.
func SalesChannels(allowed []string) ProductFilterMutator {
	return func(_ context.Context, q ProductQuery, filter *store.ProductFilter) error {
		requested := q.SalesChannelIDs
		if len(allowed) == 0 {
			filter.SalesChannelIDs = requested
			return nil
		}
		if len(requested) == 0 {
			filter.SalesChannelIDs = allowed
			return nil
		}
		filter.SalesChannelIDs = intersect(requested, allowed)
		if len(filter.SalesChannelIDs) == 0 {
			return domain.InvalidDataf("requested sales channels are not available")
		}
		return nil
	}
}

// Categories copies the requested category ids into the filter.
func Categories() ProductFilterMutator {
	return func(_ context.Context, q ProductQuery, filter *store.ProductFilter) error {
		if len(q.CategoryIDs) > 0 {
			filter.CategoryIDs = q.CategoryIDs
		}
		return nil
	}
}

// ResolveProductFilter applies mutators, then follows the attribute
// value-product links for q.AttributeValueIDs. matchNone is true when the
// value filter rules out every product.
func (r *Resolver) ResolveProductFilter(ctx context.Context, q ProductQuery, mutators ...ProductFilterMutator) (filter store.ProductFilter, matchNone bool, err error) {
	filter = store.ProductFilter{
		IDs:    q.IDs,
		Status: q.Status,
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	for _, m := range mutators {
		if err := m(ctx, q, &filter); err != nil {
			return filter, false, err
		}
	}

	if len(q.AttributeValueIDs) == 0 {
		return filter, false, nil
	}
	links, err := r.reader.ListProductValueLinks(ctx, store.ProductValueLinkFilter{AttributeValueIDs: q.AttributeValueIDs})
	if err != nil {
		return filter, false, err
	}
	productIDs := make([]string, 0, len(links))
	for _, l := range links {
		productIDs = append(productIDs, l.ProductID)
	}
	productIDs = union(nil, productIDs)
	if len(filter.IDs) > 0 {
		productIDs = intersect(filter.IDs, productIDs)
	}
	if len(productIDs) == 0 {
		return filter, true, nil
	}
	filter.IDs = productIDs
	return filter, false, nil
}

func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	out := make([]string, 0)
	for _, v := range a {
		if _, ok := set[v]; ok {
			out = append(out, v)
			delete(set, v)
		}
	}
	return out
}

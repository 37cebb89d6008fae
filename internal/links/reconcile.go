// Package links computes link-table deltas. Nothing here touches a store.
package links

import (
	"product-attribute-service/internal/domain"
)

// Delta holds the two disjoint batches that move current onto desired.
type Delta[L comparable] struct {
	ToCreate  []L
	ToDismiss []L
}

// Empty reports whether applying the delta would change nothing.
func (d Delta[L]) Empty() bool {
	return len(d.ToCreate) == 0 && len(d.ToDismiss) == 0
}

// Reconcile returns desired minus current as ToCreate and current minus
// desired as ToDismiss. Both batches are deduplicated and keep the order in
// which links first appear in their source slice, so equal inputs always give
// equal output.
func Reconcile[L comparable](desired, current []L) Delta[L] {
	want := make(map[L]struct{}, len(desired))
	for _, l := range desired {
		want[l] = struct{}{}
	}
	have := make(map[L]struct{}, len(current))
	for _, l := range current {
		have[l] = struct{}{}
	}

	d := Delta[L]{ToCreate: []L{}, ToDismiss: []L{}}
	seen := make(map[L]struct{}, len(desired)+len(current))
	for _, l := range desired {
		if _, ok := have[l]; ok {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		d.ToCreate = append(d.ToCreate, l)
	}
	for _, l := range current {
		if _, ok := want[l]; ok {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		d.ToDismiss = append(d.ToDismiss, l)
	}
	return d
}

// CategoryLinks expands one attribute's category ids into link rows.
func CategoryLinks(attributeID string, categoryIDs []string) []domain.CategoryLink {
	out := make([]domain.CategoryLink, 0, len(categoryIDs))
	for _, c := range categoryIDs {
		out = append(out, domain.CategoryLink{AttributeID: attributeID, CategoryID: c})
	}
	return out
}

// SetCategoryLinks expands one attribute set's category ids into link rows.
func SetCategoryLinks(setID string, categoryIDs []string) []domain.SetCategoryLink {
	out := make([]domain.SetCategoryLink, 0, len(categoryIDs))
	for _, c := range categoryIDs {
		out = append(out, domain.SetCategoryLink{AttributeSetID: setID, CategoryID: c})
	}
	return out
}

// ProductValueLinks links every value id to one product.
func ProductValueLinks(productID string, valueIDs []string) []domain.ProductValueLink {
	out := make([]domain.ProductValueLink, 0, len(valueIDs))
	for _, v := range valueIDs {
		out = append(out, domain.ProductValueLink{AttributeValueID: v, ProductID: productID})
	}
	return out
}

// Subjects returns the distinct attribute ids of the links, in order.
func Subjects(links []domain.CategoryLink) []string {
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		if _, ok := seen[l.AttributeID]; ok {
			continue
		}
		seen[l.AttributeID] = struct{}{}
		out = append(out, l.AttributeID)
	}
	return out
}

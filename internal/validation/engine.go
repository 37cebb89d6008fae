// Package validation enforces the business rules for assigning attribute
// values to products. It only reads from the store.
package validation

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"product-attribute-service/internal/domain"
	"product-attribute-service/internal/logger"
	"product-attribute-service/internal/store"
)

// Reader is the slice of the relation store the engine reads.
type Reader interface {
	ListAttributes(ctx context.Context, filter store.AttributeFilter) ([]domain.Attribute, error)
	ListAttributeValues(ctx context.Context, filter store.AttributeValueFilter) ([]domain.AttributeValue, error)
	ListCategoryLinks(ctx context.Context, filter store.CategoryLinkFilter) ([]domain.CategoryLink, error)
	ListProductValueLinks(ctx context.Context, filter store.ProductValueLinkFilter) ([]domain.ProductValueLink, error)
	GetProductCategories(ctx context.Context, productID string) ([]string, error)
}

// Engine runs assignment checks against a Reader.
type Engine struct {
	reader Reader
}

func NewEngine(reader Reader) *Engine {
	return &Engine{reader: reader}
}

// ValidateAssignment checks that value may be assigned for attributeID to
// productID. Checks run in order and stop at the first failure:
// existence, possible-value membership, category scope, duplicate.
func (e *Engine) ValidateAssignment(ctx context.Context, attributeID, value, productID string) error {
	if value == "" {
		return domain.InvalidDataf("attribute value must not be empty")
	}

	attrs, err := e.reader.ListAttributes(ctx, store.AttributeFilter{IDs: []string{attributeID}})
	if err != nil {
		return err
	}
	if len(attrs) == 0 {
		return domain.NotFoundf("attribute with id %s not found", attributeID)
	}
	attr := attrs[0]

	if len(attr.PossibleValues) > 0 {
		allowed := make([]string, 0, len(attr.PossibleValues))
		found := false
		for _, pv := range attr.PossibleValues {
			allowed = append(allowed, pv.Value)
			if pv.Value == value {
				found = true
			}
		}
		if !found {
			return domain.InvalidDataf("value %q is not allowed for attribute %s, allowed values: %s",
				value, attr.Name, strings.Join(allowed, ", "))
		}
	}

	if !attr.IsGlobal() {
		productCategories, err := e.reader.GetProductCategories(ctx, productID)
		if err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				return domain.NotFoundf("product with id %s not found", productID)
			}
			return err
		}
		if !intersects(attr.CategoryIDs, productCategories) {
			return domain.InvalidDataf("attribute %s is not available for the categories of product %s", attr.Name, productID)
		}
	}

	held, err := e.reader.ListProductValueLinks(ctx, store.ProductValueLinkFilter{ProductIDs: []string{productID}})
	if err != nil {
		return err
	}
	if len(held) > 0 {
		valueIDs := make([]string, 0, len(held))
		for _, l := range held {
			valueIDs = append(valueIDs, l.AttributeValueID)
		}
		existing, err := e.reader.ListAttributeValues(ctx, store.AttributeValueFilter{
			IDs:          valueIDs,
			AttributeIDs: []string{attributeID},
			Values:       []string{value},
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return domain.Duplicatef("product %s already has value %q for attribute %s", productID, value, attr.Name)
		}
	}

	logger.FromContext(ctx).Debug("attribute assignment validated",
		zap.String("attribute_id", attributeID),
		zap.String("product_id", productID),
	)
	return nil
}

// ValidateValuesForProducts checks pre-existing attribute values that a
// product create or update carries: every value must exist, and every
// category-scoped value must fit at least one category of the products.
func (e *Engine) ValidateValuesForProducts(ctx context.Context, valueIDs, productIDs []string) error {
	if len(valueIDs) == 0 {
		return nil
	}

	values, err := e.reader.ListAttributeValues(ctx, store.AttributeValueFilter{IDs: valueIDs})
	if err != nil {
		return err
	}
	byID := make(map[string]domain.AttributeValue, len(values))
	for _, v := range values {
		byID[v.ID] = v
	}
	var missing []string
	for _, id := range valueIDs {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return domain.NotFoundf("attribute values not found: %s", strings.Join(missing, ", "))
	}

	attributeIDs := make([]string, 0, len(values))
	for _, v := range values {
		attributeIDs = append(attributeIDs, v.AttributeID)
	}
	catLinks, err := e.reader.ListCategoryLinks(ctx, store.CategoryLinkFilter{AttributeIDs: attributeIDs})
	if err != nil {
		return err
	}
	if len(catLinks) == 0 {
		return nil
	}
	scope := make(map[string][]string)
	for _, l := range catLinks {
		scope[l.AttributeID] = append(scope[l.AttributeID], l.CategoryID)
	}

	var productCategories []string
	for _, pid := range productIDs {
		cats, err := e.reader.GetProductCategories(ctx, pid)
		if err != nil {
			return err
		}
		productCategories = append(productCategories, cats...)
	}

	var offending []string
	for _, id := range valueIDs {
		cats, scoped := scope[byID[id].AttributeID]
		if scoped && !intersects(cats, productCategories) {
			offending = append(offending, id)
		}
	}
	if len(offending) > 0 {
		sort.Strings(offending)
		return domain.InvalidDataf("attribute values not allowed for the product categories: %s", strings.Join(offending, ", "))
	}
	return nil
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

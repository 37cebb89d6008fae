package workflow

import (
	"context"

	"product-attribute-service/internal/domain"
	"product-attribute-service/internal/links"
	"product-attribute-service/internal/saga"
	"product-attribute-service/internal/store"
)

// CreateAttributeValue validates and assigns a value of an attribute to a
// product.
func (s *Service) CreateAttributeValue(ctx context.Context, in domain.CreateAttributeValueInput) (*domain.AttributeValue, error) {
	if in.AttributeID == "" || in.ProductID == "" {
		return nil, domain.InvalidDataf("attribute_id and product_id are required")
	}

	var created *domain.AttributeValue

	err := s.runner.Run(ctx, SagaCreateAttributeValue,
		saga.Step{
			Name: "validate-assignment",
			Forward: func(ctx context.Context) error {
				return s.validator.ValidateAssignment(ctx, in.AttributeID, in.Value, in.ProductID)
			},
		},
		saga.Step{
			Name: "create-attribute-value",
			Forward: func(ctx context.Context) error {
				var err error
				created, err = s.store.CreateAttributeValue(ctx, domain.AttributeValue{
					AttributeID: in.AttributeID,
					Value:       in.Value,
					Metadata:    in.Metadata,
				})
				return err
			},
			Compensate: func(ctx context.Context) error {
				_, err := s.store.DeleteAttributeValues(ctx, []string{created.ID})
				return err
			},
		},
		saga.Step{
			Name: "link-product",
			Forward: func(ctx context.Context) error {
				return s.store.CreateProductValueLinks(ctx, links.ProductValueLinks(in.ProductID, []string{created.ID}))
			},
			Compensate: func(ctx context.Context) error {
				return s.store.DismissProductValueLinks(ctx, links.ProductValueLinks(in.ProductID, []string{created.ID}))
			},
		},
	)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DeleteAttributeValues deletes the values and dismisses every product link
// that pointed at them. It returns how many values were deleted.
func (s *Service) DeleteAttributeValues(ctx context.Context, ids []string) (int, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	var productLinks []domain.ProductValueLink
	var snapshot []domain.AttributeValue
	var deleted int

	err := s.runner.Run(ctx, SagaDeleteAttributeValues,
		saga.Step{
			Name: "lookup-product-links",
			Forward: func(ctx context.Context) error {
				var err error
				productLinks, err = s.store.ListProductValueLinks(ctx, store.ProductValueLinkFilter{AttributeValueIDs: ids})
				if err != nil {
					return err
				}
				snapshot, err = s.store.ListAttributeValues(ctx, store.AttributeValueFilter{IDs: ids})
				return err
			},
		},
		saga.Step{
			Name: "delete-attribute-values",
			Forward: func(ctx context.Context) error {
				var err error
				deleted, err = s.store.DeleteAttributeValues(ctx, ids)
				return err
			},
			Compensate: func(ctx context.Context) error {
				for _, v := range snapshot {
					if _, err := s.store.CreateAttributeValue(ctx, v); err != nil {
						return err
					}
				}
				return nil
			},
		},
		saga.Step{
			Name: "dismiss-product-links",
			Forward: func(ctx context.Context) error {
				return s.store.DismissProductValueLinks(ctx, productLinks)
			},
			Compensate: func(ctx context.Context) error {
				return s.store.CreateProductValueLinks(ctx, productLinks)
			},
		},
	)
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// ProductAttributes returns the values assigned to a product with their
// attributes.
func (s *Service) ProductAttributes(ctx context.Context, productID string) ([]domain.ProductAttribute, error) {
	productLinks, err := s.store.ListProductValueLinks(ctx, store.ProductValueLinkFilter{ProductIDs: []string{productID}})
	if err != nil {
		return nil, err
	}
	return s.productAttributes(ctx, productLinks)
}

// ProductAttribute returns one value assigned to a product, or NOT_FOUND.
func (s *Service) ProductAttribute(ctx context.Context, productID, valueID string) (*domain.ProductAttribute, error) {
	productLinks, err := s.store.ListProductValueLinks(ctx, store.ProductValueLinkFilter{
		ProductIDs:        []string{productID},
		AttributeValueIDs: []string{valueID},
	})
	if err != nil {
		return nil, err
	}
	result, err := s.productAttributes(ctx, productLinks)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, domain.NotFoundf("attribute value %s not found for product %s", valueID, productID)
	}
	return &result[0], nil
}

func (s *Service) productAttributes(ctx context.Context, productLinks []domain.ProductValueLink) ([]domain.ProductAttribute, error) {
	result := make([]domain.ProductAttribute, 0, len(productLinks))
	if len(productLinks) == 0 {
		return result, nil
	}
	valueIDs := make([]string, len(productLinks))
	for i, l := range productLinks {
		valueIDs[i] = l.AttributeValueID
	}
	values, err := s.store.ListAttributeValues(ctx, store.AttributeValueFilter{IDs: valueIDs})
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return result, nil
	}

	attrIDs := make([]string, 0, len(values))
	for _, v := range values {
		attrIDs = append(attrIDs, v.AttributeID)
	}
	attrs, err := s.store.ListAttributes(ctx, store.AttributeFilter{IDs: dedupe(attrIDs)})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Attribute, len(attrs))
	for _, a := range attrs {
		byID[a.ID] = a
	}
	for _, v := range values {
		attr, ok := byID[v.AttributeID]
		if !ok {
			continue
		}
		result = append(result, domain.ProductAttribute{ID: v.ID, Value: v.Value, Attribute: attr})
	}
	return result, nil
}

// RemoveProductAttributeValue deletes a value assigned to the product. The
// value must be linked to that product.
func (s *Service) RemoveProductAttributeValue(ctx context.Context, productID, valueID string) error {
	linked, err := s.store.ListProductValueLinks(ctx, store.ProductValueLinkFilter{
		ProductIDs:        []string{productID},
		AttributeValueIDs: []string{valueID},
	})
	if err != nil {
		return err
	}
	if len(linked) == 0 {
		return domain.NotFoundf("attribute value %s not found for product %s", valueID, productID)
	}
	_, err = s.DeleteAttributeValues(ctx, []string{valueID})
	return err
}

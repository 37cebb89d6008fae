package workflow

import (
	"context"

	"product-attribute-service/internal/domain"
	"product-attribute-service/internal/links"
	"product-attribute-service/internal/query"
	"product-attribute-service/internal/saga"
	"product-attribute-service/internal/store"
)

func productValuePairs(productIDs, valueIDs []string) []domain.ProductValueLink {
	out := make([]domain.ProductValueLink, 0, len(productIDs)*len(valueIDs))
	for _, v := range valueIDs {
		for _, p := range productIDs {
			out = append(out, domain.ProductValueLink{AttributeValueID: v, ProductID: p})
		}
	}
	return out
}

// LinkProductValues links existing attribute values to newly created
// products after checking the values fit the products' categories.
func (s *Service) LinkProductValues(ctx context.Context, productIDs, valueIDs []string) ([]domain.ProductValueLink, error) {
	valueIDs, productIDs = dedupe(valueIDs), dedupe(productIDs)
	if len(valueIDs) == 0 || len(productIDs) == 0 {
		return []domain.ProductValueLink{}, nil
	}
	desired := productValuePairs(productIDs, valueIDs)

	err := s.runner.Run(ctx, SagaLinkProductValues,
		saga.Step{
			Name: "validate-values",
			Forward: func(ctx context.Context) error {
				return s.validator.ValidateValuesForProducts(ctx, valueIDs, productIDs)
			},
		},
		saga.Step{
			Name: "create-product-links",
			Forward: func(ctx context.Context) error {
				return s.store.CreateProductValueLinks(ctx, desired)
			},
			Compensate: func(ctx context.Context) error {
				return s.store.DismissProductValueLinks(ctx, desired)
			},
		},
	)
	if err != nil {
		return nil, err
	}
	return desired, nil
}

// ReplaceProductValues makes valueIDs the full set of values linked to the
// updated products. Without value ids nothing changes.
func (s *Service) ReplaceProductValues(ctx context.Context, productIDs, valueIDs []string) ([]domain.ProductValueLink, error) {
	valueIDs, productIDs = dedupe(valueIDs), dedupe(productIDs)
	if len(valueIDs) == 0 || len(productIDs) == 0 {
		return []domain.ProductValueLink{}, nil
	}
	desired := productValuePairs(productIDs, valueIDs)
	var delta links.Delta[domain.ProductValueLink]

	err := s.runner.Run(ctx, SagaReplaceProductValues,
		saga.Step{
			Name: "validate-values",
			Forward: func(ctx context.Context) error {
				if err := s.validator.ValidateValuesForProducts(ctx, valueIDs, productIDs); err != nil {
					return err
				}
				current, err := s.store.ListProductValueLinks(ctx, store.ProductValueLinkFilter{ProductIDs: productIDs})
				if err != nil {
					return err
				}
				delta = links.Reconcile(desired, current)
				return nil
			},
		},
		saga.Step{
			Name: "dismiss-stale-links",
			Forward: func(ctx context.Context) error {
				return s.store.DismissProductValueLinks(ctx, delta.ToDismiss)
			},
			Compensate: func(ctx context.Context) error {
				return s.store.CreateProductValueLinks(ctx, delta.ToDismiss)
			},
		},
		saga.Step{
			Name: "create-product-links",
			Forward: func(ctx context.Context) error {
				return s.store.CreateProductValueLinks(ctx, desired)
			},
			Compensate: func(ctx context.Context) error {
				return s.store.DismissProductValueLinks(ctx, delta.ToCreate)
			},
		},
	)
	if err != nil {
		return nil, err
	}
	return desired, nil
}

// ListProducts lists products through the standard listing mutators and the
// attribute value filter.
func (s *Service) ListProducts(ctx context.Context, q query.ProductQuery, mutators ...query.ProductFilterMutator) ([]domain.Product, int, error) {
	filter, matchNone, err := s.resolver.ResolveProductFilter(ctx, q, mutators...)
	if err != nil {
		return nil, 0, err
	}
	if matchNone {
		return []domain.Product{}, 0, nil
	}
	return s.store.ListProducts(ctx, filter)
}

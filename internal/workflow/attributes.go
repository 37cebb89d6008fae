package workflow

import (
	"context"
	"strings"

	"product-attribute-service/internal/domain"
	"product-attribute-service/internal/events"
	"product-attribute-service/internal/links"
	"product-attribute-service/internal/query"
	"product-attribute-service/internal/saga"
	"product-attribute-service/internal/store"
)

func toPossibleValues(attributeID string, inputs []domain.PossibleValueInput) []domain.PossibleValue {
	values := make([]domain.PossibleValue, 0, len(inputs))
	for _, in := range inputs {
		pv := domain.PossibleValue{
			AttributeID: attributeID,
			Value:       in.Value,
			Rank:        in.Rank,
			Metadata:    in.Metadata,
		}
		if in.ID != nil {
			pv.ID = *in.ID
		}
		values = append(values, pv)
	}
	return values
}

func attributeIDs(attrs []domain.Attribute) []string {
	ids := make([]string, len(attrs))
	for i, a := range attrs {
		ids[i] = a.ID
	}
	return ids
}

// CreateAttributes persists attributes with their possible values and links
// them to the requested categories. Handles default to the kebab-cased name.
func (s *Service) CreateAttributes(ctx context.Context, inputs []domain.CreateAttributeInput) ([]domain.Attribute, error) {
	if len(inputs) == 0 {
		return []domain.Attribute{}, nil
	}

	rows := make([]domain.Attribute, 0, len(inputs))
	for _, in := range inputs {
		if strings.TrimSpace(in.Name) == "" {
			return nil, domain.InvalidDataf("attribute name is required")
		}
		handle := domain.KebabCase(in.Name)
		if in.Handle != nil && *in.Handle != "" {
			handle = *in.Handle
		}
		if handle == "" {
			return nil, domain.InvalidDataf("cannot derive a handle from attribute name %q", in.Name)
		}
		isFilterable := true
		if in.IsFilterable != nil {
			isFilterable = *in.IsFilterable
		}
		rows = append(rows, domain.Attribute{
			Name:           in.Name,
			Description:    in.Description,
			Handle:         handle,
			IsFilterable:   isFilterable,
			Metadata:       in.Metadata,
			PossibleValues: toPossibleValues("", in.PossibleValues),
		})
	}

	var created []domain.Attribute
	var desired []domain.CategoryLink

	err := s.runner.Run(ctx, SagaCreateAttributes,
		saga.Step{
			Name: "create-attribute-rows",
			Forward: func(ctx context.Context) error {
				var err error
				created, err = s.store.CreateAttributes(ctx, rows)
				if err != nil {
					return err
				}
				for i, a := range created {
					desired = append(desired, links.CategoryLinks(a.ID, inputs[i].ProductCategoryIDs)...)
				}
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.store.HardDeleteAttributes(ctx, attributeIDs(created))
			},
		},
		saga.Parallel("link-and-notify",
			saga.Step{
				Name: "create-category-links",
				Forward: func(ctx context.Context) error {
					if len(desired) == 0 {
						return nil
					}
					return s.store.CreateCategoryLinks(ctx, desired)
				},
				Compensate: func(ctx context.Context) error {
					return s.store.DismissCategoryLinks(ctx, desired)
				},
			},
			s.emitStep(events.AttributeCreated, func() []string { return attributeIDs(created) }),
		),
	)
	if err != nil {
		return nil, err
	}

	for i := range created {
		if ids := inputs[i].ProductCategoryIDs; len(ids) > 0 {
			created[i].CategoryIDs = dedupe(ids)
		}
	}
	return created, nil
}

func mergeUpdate(current domain.Attribute, in domain.UpdateAttributeInput) domain.Attribute {
	next := current
	if in.Name != nil {
		next.Name = *in.Name
	}
	if in.Description != nil {
		next.Description = in.Description
	}
	if in.Handle != nil {
		next.Handle = *in.Handle
	}
	if in.IsFilterable != nil {
		next.IsFilterable = *in.IsFilterable
	}
	if in.Metadata != nil {
		next.Metadata = in.Metadata
	}
	return next
}

// loadAttributes returns the attributes for ids keyed by id, failing with
// NOT_FOUND when any id is unknown.
func (s *Service) loadAttributes(ctx context.Context, ids []string) (map[string]domain.Attribute, error) {
	attrs, err := s.store.ListAttributes(ctx, store.AttributeFilter{IDs: ids})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Attribute, len(attrs))
	for _, a := range attrs {
		byID[a.ID] = a
	}
	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, domain.NotFoundf("attributes not found: %s", strings.Join(missing, ", "))
	}
	return byID, nil
}

// checkPossibleValueOwnership rejects possible value ids that do not belong to
// the attribute being updated.
func checkPossibleValueOwnership(snapshot map[string]domain.Attribute, inputs []domain.UpdateAttributeInput) error {
	for _, in := range inputs {
		owned := make(map[string]struct{}, len(snapshot[in.ID].PossibleValues))
		for _, pv := range snapshot[in.ID].PossibleValues {
			owned[pv.ID] = struct{}{}
		}
		for _, pv := range in.PossibleValues {
			if pv.ID == nil {
				continue
			}
			if _, ok := owned[*pv.ID]; !ok {
				return domain.NotFoundf("possible value with id %s not found for attribute %s", *pv.ID, in.ID)
			}
		}
	}
	return nil
}

// UpdateAttributes applies field updates, replaces possible values listed in
// the payload and, where product_category_ids is present, replaces the
// category scope. An empty category list clears the scope.
func (s *Service) UpdateAttributes(ctx context.Context, inputs []domain.UpdateAttributeInput) ([]domain.Attribute, error) {
	if len(inputs) == 0 {
		return []domain.Attribute{}, nil
	}
	ids := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if in.ID == "" {
			return nil, domain.InvalidDataf("attribute id is required")
		}
		ids = append(ids, in.ID)
	}
	ids = dedupe(ids)

	var (
		snapshot       map[string]domain.Attribute
		replacedValues []string
		updatedRows    []string
		scopedIDs      []string
		currentLinks   []domain.CategoryLink
		delta          links.Delta[domain.CategoryLink]
	)
	for _, in := range inputs {
		if in.ProductCategoryIDs != nil {
			scopedIDs = append(scopedIDs, in.ID)
		}
	}

	steps := []saga.Step{
		{
			Name: "snapshot-attributes",
			Forward: func(ctx context.Context) error {
				var err error
				if snapshot, err = s.loadAttributes(ctx, ids); err != nil {
					return err
				}
				return checkPossibleValueOwnership(snapshot, inputs)
			},
		},
		{
			Name:    "replace-possible-values",
			Partial: true,
			Forward: func(ctx context.Context) error {
				for _, in := range inputs {
					if len(in.PossibleValues) == 0 {
						continue
					}
					replacedValues = append(replacedValues, in.ID)
					upserted, err := s.store.UpsertPossibleValues(ctx, toPossibleValues(in.ID, in.PossibleValues))
					if err != nil {
						return err
					}
					keep := make(map[string]struct{}, len(upserted))
					for _, pv := range upserted {
						keep[pv.ID] = struct{}{}
					}
					var stale []string
					for _, pv := range snapshot[in.ID].PossibleValues {
						if _, ok := keep[pv.ID]; !ok {
							stale = append(stale, pv.ID)
						}
					}
					if err := s.store.DeletePossibleValues(ctx, stale); err != nil {
						return err
					}
				}
				return nil
			},
			Compensate: func(ctx context.Context) error {
				for _, id := range replacedValues {
					current, err := s.store.ListPossibleValues(ctx, []string{id})
					if err != nil {
						return err
					}
					currentIDs := make([]string, len(current))
					for i, pv := range current {
						currentIDs[i] = pv.ID
					}
					if err := s.store.DeletePossibleValues(ctx, currentIDs); err != nil {
						return err
					}
					if before := snapshot[id].PossibleValues; len(before) > 0 {
						if _, err := s.store.UpsertPossibleValues(ctx, before); err != nil {
							return err
						}
					}
				}
				return nil
			},
		},
		{
			Name:    "update-attribute-rows",
			Partial: true,
			Forward: func(ctx context.Context) error {
				for _, in := range inputs {
					if _, err := s.store.UpdateAttribute(ctx, mergeUpdate(snapshot[in.ID], in)); err != nil {
						return err
					}
					updatedRows = append(updatedRows, in.ID)
				}
				return nil
			},
			Compensate: func(ctx context.Context) error {
				for i := len(updatedRows) - 1; i >= 0; i-- {
					if _, err := s.store.UpdateAttribute(ctx, snapshot[updatedRows[i]]); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}

	if len(scopedIDs) > 0 {
		steps = append(steps, saga.Step{
			Name:    "replace-category-links",
			Partial: true,
			Forward: func(ctx context.Context) error {
				var err error
				currentLinks, err = s.store.ListCategoryLinks(ctx, store.CategoryLinkFilter{AttributeIDs: scopedIDs})
				if err != nil {
					return err
				}
				var desired []domain.CategoryLink
				for _, in := range inputs {
					if in.ProductCategoryIDs != nil {
						desired = append(desired, links.CategoryLinks(in.ID, *in.ProductCategoryIDs)...)
					}
				}
				delta = links.Reconcile(desired, currentLinks)

				// Dismiss everything then recreate so no stale link survives.
				if len(currentLinks) > 0 {
					if err := s.store.DismissCategoryLinks(ctx, currentLinks); err != nil {
						return err
					}
				}
				if len(desired) > 0 {
					return s.store.CreateCategoryLinks(ctx, desired)
				}
				return nil
			},
			Compensate: func(ctx context.Context) error {
				if len(delta.ToCreate) > 0 {
					if err := s.store.DismissCategoryLinks(ctx, delta.ToCreate); err != nil {
						return err
					}
				}
				if len(currentLinks) > 0 {
					return s.store.CreateCategoryLinks(ctx, currentLinks)
				}
				return nil
			},
		})
	}

	steps = append(steps, s.emitStep(events.AttributeUpdated, func() []string { return ids }))

	if err := s.runner.Run(ctx, SagaUpdateAttributes, steps...); err != nil {
		return nil, err
	}

	updated, err := s.store.ListAttributes(ctx, store.AttributeFilter{IDs: ids})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Attribute, len(updated))
	for _, a := range updated {
		byID[a.ID] = a
	}
	result := make([]domain.Attribute, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			result = append(result, a)
		}
	}
	return result, nil
}

// DeleteAttributes dismisses every link of the attributes and of their
// values, then soft-deletes the rows together with their possible values and
// attribute values.
func (s *Service) DeleteAttributes(ctx context.Context, ids []string) (domain.DeleteResult, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return domain.DeleteResult{DeletedIDs: []string{}, Count: 0}, nil
	}

	var categoryLinks links.Delta[domain.CategoryLink]
	var productLinks []domain.ProductValueLink

	err := s.runner.Run(ctx, SagaDeleteAttributes,
		saga.Step{
			Name: "snapshot-attributes",
			Forward: func(ctx context.Context) error {
				if _, err := s.loadAttributes(ctx, ids); err != nil {
					return err
				}
				current, err := s.store.ListCategoryLinks(ctx, store.CategoryLinkFilter{AttributeIDs: ids})
				if err != nil {
					return err
				}
				categoryLinks = links.Reconcile(nil, current)

				values, err := s.store.ListAttributeValues(ctx, store.AttributeValueFilter{AttributeIDs: ids})
				if err != nil {
					return err
				}
				if len(values) == 0 {
					return nil
				}
				valueIDs := make([]string, len(values))
				for i, v := range values {
					valueIDs[i] = v.ID
				}
				productLinks, err = s.store.ListProductValueLinks(ctx, store.ProductValueLinkFilter{AttributeValueIDs: valueIDs})
				return err
			},
		},
		saga.Step{
			Name:    "dismiss-links",
			Partial: true,
			Forward: func(ctx context.Context) error {
				if err := s.store.DismissCategoryLinks(ctx, categoryLinks.ToDismiss); err != nil {
					return err
				}
				return s.store.DismissProductValueLinks(ctx, productLinks)
			},
			Compensate: func(ctx context.Context) error {
				if err := s.store.CreateCategoryLinks(ctx, categoryLinks.ToDismiss); err != nil {
					return err
				}
				return s.store.CreateProductValueLinks(ctx, productLinks)
			},
		},
		saga.Step{
			Name: "soft-delete-attributes",
			Forward: func(ctx context.Context) error {
				return s.store.SoftDeleteAttributes(ctx, ids)
			},
			Compensate: func(ctx context.Context) error {
				return s.store.RestoreAttributes(ctx, ids)
			},
		},
		s.emitStep(events.AttributeDeleted, func() []string { return ids }),
	)
	if err != nil {
		return domain.DeleteResult{}, err
	}
	return domain.DeleteResult{DeletedIDs: ids, Count: len(ids)}, nil
}

// ListAttributes lists one page of attributes after resolving category and
// global filters into ids, along with the total match count.
func (s *Service) ListAttributes(ctx context.Context, q query.AttributeQuery) ([]domain.Attribute, int, error) {
	filter, err := s.resolver.ResolveAttributeFilter(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	attrs, err := s.store.ListAttributes(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountAttributes(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return attrs, total, nil
}

// GetAttribute returns one non-deleted attribute.
func (s *Service) GetAttribute(ctx context.Context, id string) (*domain.Attribute, error) {
	byID, err := s.loadAttributes(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	a := byID[id]
	return &a, nil
}

package workflow

import (
	"context"
	"strings"

	"product-attribute-service/internal/domain"
	"product-attribute-service/internal/events"
	"product-attribute-service/internal/saga"
	"product-attribute-service/internal/store"
)

// ListPossibleValues returns one page of an attribute's possible values in
// rank order, with the total count.
func (s *Service) ListPossibleValues(ctx context.Context, attributeID string, limit, offset int) ([]domain.PossibleValue, int, error) {
	byID, err := s.loadAttributes(ctx, []string{attributeID})
	if err != nil {
		return nil, 0, err
	}
	all := byID[attributeID].PossibleValues
	total := len(all)
	if offset >= total {
		return []domain.PossibleValue{}, total, nil
	}
	page := all[offset:]
	if limit > 0 && limit < len(page) {
		page = page[:limit]
	}
	return page, total, nil
}

// GetPossibleValue returns one possible value of the attribute.
func (s *Service) GetPossibleValue(ctx context.Context, attributeID, valueID string) (*domain.PossibleValue, error) {
	byID, err := s.loadAttributes(ctx, []string{attributeID})
	if err != nil {
		return nil, err
	}
	for _, pv := range byID[attributeID].PossibleValues {
		if pv.ID == valueID {
			return &pv, nil
		}
	}
	return nil, domain.NotFoundf("attribute possible value with id '%s' was not found", valueID)
}

// CreatePossibleValues adds possible values to existing attributes. A value
// the attribute already holds is a duplicate.
func (s *Service) CreatePossibleValues(ctx context.Context, inputs []domain.CreatePossibleValueInput) ([]domain.PossibleValue, error) {
	if len(inputs) == 0 {
		return []domain.PossibleValue{}, nil
	}
	rows := make([]domain.PossibleValue, 0, len(inputs))
	attrIDs := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if in.AttributeID == "" {
			return nil, domain.InvalidDataf("attribute id is required")
		}
		if strings.TrimSpace(in.Value) == "" {
			return nil, domain.InvalidDataf("possible value is required")
		}
		// Ids are assigned up front so a partial insert can be undone.
		rows = append(rows, domain.PossibleValue{
			ID:          domain.NewID(domain.PrefixPossibleValue),
			AttributeID: in.AttributeID,
			Value:       in.Value,
			Rank:        in.Rank,
			Metadata:    in.Metadata,
		})
		attrIDs = append(attrIDs, in.AttributeID)
	}
	attrIDs = dedupe(attrIDs)

	var created []domain.PossibleValue
	err := s.runner.Run(ctx, SagaCreatePossibleValues,
		saga.Step{
			Name: "check-attributes",
			Forward: func(ctx context.Context) error {
				byID, err := s.loadAttributes(ctx, attrIDs)
				if err != nil {
					return err
				}
				type key struct{ attributeID, value string }
				taken := make(map[key]struct{})
				for _, a := range byID {
					for _, pv := range a.PossibleValues {
						taken[key{a.ID, pv.Value}] = struct{}{}
					}
				}
				for _, row := range rows {
					k := key{row.AttributeID, row.Value}
					if _, ok := taken[k]; ok {
						return store.ErrPossibleValueExists
					}
					taken[k] = struct{}{}
				}
				return nil
			},
		},
		saga.Step{
			Name:    "create-possible-value-rows",
			Partial: true,
			Forward: func(ctx context.Context) error {
				var err error
				created, err = s.store.UpsertPossibleValues(ctx, rows)
				return err
			},
			Compensate: func(ctx context.Context) error {
				ids := make([]string, len(rows))
				for i, row := range rows {
					ids[i] = row.ID
				}
				return s.store.DeletePossibleValues(ctx, ids)
			},
		},
		s.emitStep(events.AttributeUpdated, func() []string { return attrIDs }),
	)
	if err != nil {
		return nil, err
	}
	return created, nil
}

package workflow

import (
	"context"
	"strings"

	"product-attribute-service/internal/domain"
	"product-attribute-service/internal/links"
	"product-attribute-service/internal/saga"
)

// CreateAttributeSets persists attribute sets and links them to their
// categories.
func (s *Service) CreateAttributeSets(ctx context.Context, inputs []domain.CreateAttributeSetInput) ([]domain.AttributeSet, error) {
	if len(inputs) == 0 {
		return []domain.AttributeSet{}, nil
	}

	rows := make([]domain.AttributeSet, 0, len(inputs))
	for _, in := range inputs {
		if strings.TrimSpace(in.Name) == "" {
			return nil, domain.InvalidDataf("attribute set name is required")
		}
		handle := domain.KebabCase(in.Name)
		if in.Handle != nil && *in.Handle != "" {
			handle = *in.Handle
		}
		rows = append(rows, domain.AttributeSet{
			Name:         in.Name,
			Description:  in.Description,
			Handle:       handle,
			Metadata:     in.Metadata,
			AttributeIDs: dedupe(in.AttributeIDs),
		})
	}

	var created []domain.AttributeSet
	var setLinks []domain.SetCategoryLink

	err := s.runner.Run(ctx, SagaCreateAttributeSets,
		saga.Step{
			Name: "create-attribute-set-rows",
			Forward: func(ctx context.Context) error {
				var err error
				created, err = s.store.CreateAttributeSets(ctx, rows)
				if err != nil {
					return err
				}
				for i, set := range created {
					setLinks = append(setLinks, links.SetCategoryLinks(set.ID, inputs[i].CategoryIDs)...)
				}
				return nil
			},
			Compensate: func(ctx context.Context) error {
				ids := make([]string, len(created))
				for i, set := range created {
					ids[i] = set.ID
				}
				return s.store.DeleteAttributeSets(ctx, ids)
			},
		},
		saga.Step{
			Name: "create-set-category-links",
			Forward: func(ctx context.Context) error {
				if len(setLinks) == 0 {
					return nil
				}
				return s.store.CreateSetCategoryLinks(ctx, setLinks)
			},
			Compensate: func(ctx context.Context) error {
				return s.store.DismissSetCategoryLinks(ctx, setLinks)
			},
		},
	)
	if err != nil {
		return nil, err
	}

	for i := range created {
		if ids := inputs[i].CategoryIDs; len(ids) > 0 {
			created[i].CategoryIDs = dedupe(ids)
		}
	}
	return created, nil
}

package store

import (
	"context"

	"product-attribute-service/internal/domain"
)

// AttributeFilter narrows attribute reads. Empty slices mean "no constraint",
// so callers holding an empty id set must short-circuit instead of querying.
type AttributeFilter struct {
	IDs            []string
	Handles        []string
	Names          []string
	Search         *string // case-insensitive match on name
	IncludeDeleted bool
	Limit          int // 0 means unlimited
	Offset         int
}

// AttributeValueFilter narrows attribute value reads.
type AttributeValueFilter struct {
	IDs          []string
	AttributeIDs []string
	Values       []string
}

// CategoryLinkFilter narrows attribute-category link reads. At least one of
// the fields should be set; an empty filter returns every link.
type CategoryLinkFilter struct {
	AttributeIDs []string
	CategoryIDs  []string
}

// ProductValueLinkFilter narrows attribute value-product link reads.
type ProductValueLinkFilter struct {
	AttributeValueIDs []string
	ProductIDs        []string
	// ExcludeValueIDs drops links whose value id is listed.
	ExcludeValueIDs []string
}

// ProductFilter holds the standard product listing filters.
type ProductFilter struct {
	IDs             []string
	Status          []string
	SalesChannelIDs []string
	CategoryIDs     []string
	Limit           int
	Offset          int
}

// AttributeStorer persists attributes and their possible values.
type AttributeStorer interface {
	CreateAttributes(ctx context.Context, attributes []domain.Attribute) ([]domain.Attribute, error)
	ListAttributes(ctx context.Context, filter AttributeFilter) ([]domain.Attribute, error)
	CountAttributes(ctx context.Context, filter AttributeFilter) (int, error)
	ListAttributeIDs(ctx context.Context) ([]string, error)
	UpdateAttribute(ctx context.Context, attribute domain.Attribute) (*domain.Attribute, error)
	HardDeleteAttributes(ctx context.Context, ids []string) error
	SoftDeleteAttributes(ctx context.Context, ids []string) error
	RestoreAttributes(ctx context.Context, ids []string) error
	UpsertPossibleValues(ctx context.Context, values []domain.PossibleValue) ([]domain.PossibleValue, error)
	ListPossibleValues(ctx context.Context, attributeIDs []string) ([]domain.PossibleValue, error)
	DeletePossibleValues(ctx context.Context, ids []string) error
}

// AttributeValueStorer persists product attribute values.
type AttributeValueStorer interface {
	CreateAttributeValue(ctx context.Context, value domain.AttributeValue) (*domain.AttributeValue, error)
	ListAttributeValues(ctx context.Context, filter AttributeValueFilter) ([]domain.AttributeValue, error)
	DeleteAttributeValues(ctx context.Context, ids []string) (int, error)
}

// AttributeSetStorer persists attribute sets.
type AttributeSetStorer interface {
	CreateAttributeSets(ctx context.Context, sets []domain.AttributeSet) ([]domain.AttributeSet, error)
	DeleteAttributeSets(ctx context.Context, ids []string) error
}

// LinkStorer maintains the three link tables. Creating an existing link and
// dismissing a missing one are both no-ops.
type LinkStorer interface {
	CreateCategoryLinks(ctx context.Context, links []domain.CategoryLink) error
	DismissCategoryLinks(ctx context.Context, links []domain.CategoryLink) error
	ListCategoryLinks(ctx context.Context, filter CategoryLinkFilter) ([]domain.CategoryLink, error)

	CreateProductValueLinks(ctx context.Context, links []domain.ProductValueLink) error
	DismissProductValueLinks(ctx context.Context, links []domain.ProductValueLink) error
	ListProductValueLinks(ctx context.Context, filter ProductValueLinkFilter) ([]domain.ProductValueLink, error)

	CreateSetCategoryLinks(ctx context.Context, links []domain.SetCategoryLink) error
	DismissSetCategoryLinks(ctx context.Context, links []domain.SetCategoryLink) error
}

// ProductReader is the read side of the external products module.
type ProductReader interface {
	// GetProductCategories returns ErrProductNotFound for unknown products.
	GetProductCategories(ctx context.Context, productID string) ([]string, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)
}

// RelationStore is everything the orchestration layer needs.
type RelationStore interface {
	AttributeStorer
	AttributeValueStorer
	AttributeSetStorer
	LinkStorer
	ProductReader
}

package domain

import (
	"time"
)

// Metadata is the opaque key-value bag carried by most entities.
type Metadata map[string]interface{}

// Attribute is a named, filterable characteristic definition (e.g. "Color").
type Attribute struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    *string         `json:"description,omitempty"`
	Handle         string          `json:"handle"`
	IsFilterable   bool            `json:"is_filterable"`
	Metadata       Metadata        `json:"metadata,omitempty"`
	PossibleValues []PossibleValue `json:"possible_values"`
	// CategoryIDs is populated by reads that join the attribute-category link
	// table. It is never persisted on the attribute row itself.
	CategoryIDs []string   `json:"product_category_ids,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// IsGlobal reports whether the attribute has no category scope. Only
// meaningful when CategoryIDs was loaded.
func (a *Attribute) IsGlobal() bool {
	return len(a.CategoryIDs) == 0
}

// PossibleValue is an admin-defined allowed value for an attribute.
type PossibleValue struct {
	ID          string     `json:"id"`
	AttributeID string     `json:"attribute_id"`
	Value       string     `json:"value"`
	Rank        int        `json:"rank"`
	Metadata    Metadata   `json:"metadata,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// AttributeValue is a concrete value assigned to a product for one attribute.
type AttributeValue struct {
	ID          string     `json:"id"`
	AttributeID string     `json:"attribute_id"`
	Value       string     `json:"value"`
	Metadata    Metadata   `json:"metadata,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// AttributeSet is a named, reusable bundle of attributes.
type AttributeSet struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  *string    `json:"description,omitempty"`
	Handle       string     `json:"handle"`
	Metadata     Metadata   `json:"metadata,omitempty"`
	AttributeIDs []string   `json:"attribute_ids"`
	CategoryIDs  []string   `json:"product_category_ids,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// CategoryLink ties an attribute to a product category.
type CategoryLink struct {
	AttributeID string `json:"attribute_id"`
	CategoryID  string `json:"product_category_id"`
}

// ProductValueLink ties an attribute value to a product.
type ProductValueLink struct {
	AttributeValueID string `json:"attribute_value_id"`
	ProductID        string `json:"product_id"`
}

// SetCategoryLink ties an attribute set to a product category.
type SetCategoryLink struct {
	AttributeSetID string `json:"attribute_set_id"`
	CategoryID     string `json:"product_category_id"`
}

// ProductAttribute is the read model returned for a product's assigned values.
type ProductAttribute struct {
	ID        string    `json:"id"`
	Value     string    `json:"value"`
	Attribute Attribute `json:"attribute"`
}

// Product is the slice of the external products module this service reads.
type Product struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Handle          string    `json:"handle"`
	Status          string    `json:"status"`
	CategoryIDs     []string  `json:"category_ids,omitempty"`
	SalesChannelIDs []string  `json:"sales_channel_ids,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Product statuses understood by the listing filters.
const (
	ProductStatusDraft     = "draft"
	ProductStatusPublished = "published"
)

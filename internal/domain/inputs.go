package domain

// PossibleValueInput is one entry of an attribute's possible_values payload.
// On update, ID selects the row to modify; without it the row is matched by
// (attribute_id, value).
type PossibleValueInput struct {
	ID       *string  `json:"id,omitempty" validate:"omitempty,min=1"`
	Value    string   `json:"value" validate:"required"`
	Rank     int      `json:"rank"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// CreatePossibleValueInput adds one possible value to an existing attribute.
type CreatePossibleValueInput struct {
	AttributeID string   `json:"-"`
	Value       string   `json:"value" validate:"required"`
	Rank        int      `json:"rank"`
	Metadata    Metadata `json:"metadata,omitempty"`
}

// CreateAttributeInput is the payload of the create-attributes use case.
type CreateAttributeInput struct {
	Name               string               `json:"name" validate:"required,max=255"`
	Description        *string              `json:"description,omitempty"`
	Handle             *string              `json:"handle,omitempty" validate:"omitempty,max=255"`
	IsFilterable       *bool                `json:"is_filterable,omitempty"`
	Metadata           Metadata             `json:"metadata,omitempty"`
	PossibleValues     []PossibleValueInput `json:"possible_values,omitempty" validate:"omitempty,dive"`
	ProductCategoryIDs []string             `json:"product_category_ids,omitempty" validate:"omitempty,dive,required"`
}

// UpdateAttributeInput is the payload of the update-attributes use case.
//
// ProductCategoryIDs distinguishes absence from emptiness: nil leaves the
// category scope untouched, a non-nil empty slice clears it.
type UpdateAttributeInput struct {
	ID                 string               `json:"id" validate:"required"`
	Name               *string              `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description        *string              `json:"description,omitempty"`
	Handle             *string              `json:"handle,omitempty" validate:"omitempty,min=1,max=255"`
	IsFilterable       *bool                `json:"is_filterable,omitempty"`
	Metadata           Metadata             `json:"metadata,omitempty"`
	PossibleValues     []PossibleValueInput `json:"possible_values,omitempty" validate:"omitempty,dive"`
	ProductCategoryIDs *[]string            `json:"product_category_ids,omitempty"`
}

// CreateAttributeValueInput assigns a value of an attribute to a product.
type CreateAttributeValueInput struct {
	AttributeID string   `json:"attribute_id" validate:"required"`
	Value       string   `json:"value" validate:"required"`
	ProductID   string   `json:"product_id" validate:"required"`
	Metadata    Metadata `json:"metadata,omitempty"`
}

// CreateAttributeSetInput is the payload of the create-attribute-sets use case.
type CreateAttributeSetInput struct {
	Name         string   `json:"name" validate:"required,max=255"`
	Description  *string  `json:"description,omitempty"`
	Handle       *string  `json:"handle,omitempty"`
	Metadata     Metadata `json:"metadata,omitempty"`
	AttributeIDs []string `json:"attributes,omitempty"`
	CategoryIDs  []string `json:"categories,omitempty"`
}

// DeleteResult is returned by the delete-attributes use case.
type DeleteResult struct {
	DeletedIDs []string `json:"deleted_ids"`
	Count      int      `json:"count"`
}

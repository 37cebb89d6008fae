package store

import (
	"product-attribute-service/internal/domain"
)

// Predefined errors for store operations. They carry a domain kind so the
// orchestration layer can surface them without translation.
var (
	ErrAttributeNotFound      = &domain.Error{Kind: domain.KindNotFound, Message: "store: attribute not found"}
	ErrAttributeValueNotFound = &domain.Error{Kind: domain.KindNotFound, Message: "store: attribute value not found"}
	ErrPossibleValueNotFound  = &domain.Error{Kind: domain.KindNotFound, Message: "store: possible value not found for attribute"}
	ErrProductNotFound        = &domain.Error{Kind: domain.KindNotFound, Message: "store: product not found"}
	ErrHandleExists           = &domain.Error{Kind: domain.KindDuplicate, Message: "store: attribute handle already exists"}
	ErrSetHandleExists        = &domain.Error{Kind: domain.KindDuplicate, Message: "store: attribute set handle already exists"}
	ErrPossibleValueExists    = &domain.Error{Kind: domain.KindDuplicate, Message: "store: possible value already exists for attribute"}
)

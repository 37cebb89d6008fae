package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"product-attribute-service/internal/domain"
	"product-attribute-service/internal/logger"
	"product-attribute-service/internal/query"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

// AttributeService is the use-case surface the HTTP handlers drive.
type AttributeService interface {
	CreateAttributes(ctx context.Context, inputs []domain.CreateAttributeInput) ([]domain.Attribute, error)
	UpdateAttributes(ctx context.Context, inputs []domain.UpdateAttributeInput) ([]domain.Attribute, error)
	DeleteAttributes(ctx context.Context, ids []string) (domain.DeleteResult, error)
	GetAttribute(ctx context.Context, id string) (*domain.Attribute, error)
	ListAttributes(ctx context.Context, q query.AttributeQuery) ([]domain.Attribute, int, error)
	ListPossibleValues(ctx context.Context, attributeID string, limit, offset int) ([]domain.PossibleValue, int, error)
	GetPossibleValue(ctx context.Context, attributeID, valueID string) (*domain.PossibleValue, error)
	CreatePossibleValues(ctx context.Context, inputs []domain.CreatePossibleValueInput) ([]domain.PossibleValue, error)
	CreateAttributeSets(ctx context.Context, inputs []domain.CreateAttributeSetInput) ([]domain.AttributeSet, error)
	CreateAttributeValue(ctx context.Context, in domain.CreateAttributeValueInput) (*domain.AttributeValue, error)
	ProductAttributes(ctx context.Context, productID string) ([]domain.ProductAttribute, error)
	ProductAttribute(ctx context.Context, productID, valueID string) (*domain.ProductAttribute, error)
	RemoveProductAttributeValue(ctx context.Context, productID, valueID string) error
	LinkProductValues(ctx context.Context, productIDs, valueIDs []string) ([]domain.ProductValueLink, error)
	ReplaceProductValues(ctx context.Context, productIDs, valueIDs []string) ([]domain.ProductValueLink, error)
	ListProducts(ctx context.Context, q query.ProductQuery, mutators ...query.ProductFilterMutator) ([]domain.Product, int, error)
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	service         AttributeService
	validate        *validator.Validate
	productMutators []query.ProductFilterMutator
}

// NewHTTPHandler creates a new HTTPHandler. productMutators run on every
// store-front product listing, in order.
func NewHTTPHandler(svc AttributeService, productMutators ...query.ProductFilterMutator) *HTTPHandler {
	return &HTTPHandler{
		service:         svc,
		validate:        validator.New(),
		productMutators: productMutators,
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			zap.L().Error("failed to encode JSON response", zap.Error(err))
		}
	}
}

// respondWithServiceError maps error kinds to status codes. Anything without
// a kind is logged and hidden behind fallback.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	kind := domain.KindOf(err)
	var code int
	switch kind {
	case domain.KindNotFound:
		code = http.StatusNotFound
	case domain.KindInvalidData:
		code = http.StatusBadRequest
	case domain.KindDuplicate:
		code = http.StatusConflict
	default:
		logger.FromContext(r.Context()).Error(fallback, zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, fallback)
		return
	}
	logger.FromContext(r.Context()).Debug("request rejected", zap.String("kind", string(kind)), zap.Error(err))
	respondWithJSON(w, code, ErrorResponse{Error: err.Error(), Type: string(kind)})
}

func (h *HTTPHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}

// parsePagination reads limit and offset, falling back to defaults on bad
// input.
func parsePagination(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, err = strconv.Atoi(q.Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// multiValue accepts both repeated parameters and comma-separated lists.
func multiValue(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func parseAttributeQuery(r *http.Request) (query.AttributeQuery, error) {
	limit, offset := parsePagination(r)
	q := query.AttributeQuery{
		IDs:         multiValue(r, "id"),
		Handles:     multiValue(r, "handle"),
		CategoryIDs: multiValue(r, "categories"),
		Limit:       limit,
		Offset:      offset,
	}
	if s := r.URL.Query().Get("q"); s != "" {
		q.Search = &s
	}
	if raw := r.URL.Query().Get("include_globals"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return q, fmt.Errorf("invalid include_globals value: must be true or false")
		}
		q.IncludeGlobals = b
	}
	return q, nil
}

// --- Admin attribute handlers ---

func (h *HTTPHandler) CreateAttribute(w http.ResponseWriter, r *http.Request) {
	var input domain.CreateAttributeInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	created, err := h.service.CreateAttributes(r.Context(), []domain.CreateAttributeInput{input})
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to create attribute")
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{"attribute": created[0]})
}

func (h *HTTPHandler) ListAttributes(w http.ResponseWriter, r *http.Request) {
	q, err := parseAttributeQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	attributes, total, err := h.service.ListAttributes(r.Context(), q)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to retrieve attributes")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"attributes": attributes,
		"count":      total,
		"limit":      q.Limit,
		"offset":     q.Offset,
	})
}

func (h *HTTPHandler) GetAttribute(w http.ResponseWriter, r *http.Request) {
	attribute, err := h.service.GetAttribute(r.Context(), chi.URLParam(r, "attributeId"))
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to retrieve attribute")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"attribute": attribute})
}

func (h *HTTPHandler) UpdateAttribute(w http.ResponseWriter, r *http.Request) {
	var input domain.UpdateAttributeInput
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	input.ID = chi.URLParam(r, "attributeId")
	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	updated, err := h.service.UpdateAttributes(r.Context(), []domain.UpdateAttributeInput{input})
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update attribute")
		return
	}
	if len(updated) == 0 {
		respondWithError(w, http.StatusNotFound, "Attribute not found")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"attribute": updated[0]})
}

func (h *HTTPHandler) DeleteAttribute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "attributeId")
	if _, err := h.service.DeleteAttributes(r.Context(), []string{id}); err != nil {
		respondWithServiceError(w, r, err, "Failed to delete attribute")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Attribute deleted successfully",
		"deleted": true,
		"id":      id,
	})
}

// BulkDeleteInput is the payload of the bulk-delete route.
type BulkDeleteInput struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

func (h *HTTPHandler) BulkDeleteAttributes(w http.ResponseWriter, r *http.Request) {
	var input BulkDeleteInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	result, err := h.service.DeleteAttributes(r.Context(), input.IDs)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to delete attributes")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("%d attributes deleted successfully", result.Count),
		"deleted": true,
		"ids":     result.DeletedIDs,
		"count":   result.Count,
	})
}

// --- Admin possible value handlers ---

func (h *HTTPHandler) ListPossibleValues(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	values, total, err := h.service.ListPossibleValues(r.Context(), chi.URLParam(r, "attributeId"), limit, offset)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to retrieve possible values")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"possible_values": values,
		"count":           total,
		"limit":           limit,
		"offset":          offset,
	})
}

func (h *HTTPHandler) CreatePossibleValue(w http.ResponseWriter, r *http.Request) {
	var input domain.CreatePossibleValueInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	input.AttributeID = chi.URLParam(r, "attributeId")

	created, err := h.service.CreatePossibleValues(r.Context(), []domain.CreatePossibleValueInput{input})
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to create possible value")
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{"possible_value": created[0]})
}

func (h *HTTPHandler) GetPossibleValue(w http.ResponseWriter, r *http.Request) {
	value, err := h.service.GetPossibleValue(r.Context(), chi.URLParam(r, "attributeId"), chi.URLParam(r, "valueId"))
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to retrieve possible value")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"possible_value": value})
}

func (h *HTTPHandler) CreateAttributeSet(w http.ResponseWriter, r *http.Request) {
	var input domain.CreateAttributeSetInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	created, err := h.service.CreateAttributeSets(r.Context(), []domain.CreateAttributeSetInput{input})
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to create attribute set")
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{"attribute_set": created[0]})
}

// --- Admin product attribute handlers ---

// ProductAttributeInput assigns a value to the product in the URL.
type ProductAttributeInput struct {
	AttributeID string          `json:"attribute_id" validate:"required"`
	Value       string          `json:"value" validate:"required"`
	Metadata    domain.Metadata `json:"metadata,omitempty"`
}

func (h *HTTPHandler) CreateProductAttribute(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	var input ProductAttributeInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	value, err := h.service.CreateAttributeValue(r.Context(), domain.CreateAttributeValueInput{
		AttributeID: input.AttributeID,
		Value:       input.Value,
		ProductID:   productID,
		Metadata:    input.Metadata,
	})
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to assign attribute to product")
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"attribute_value": value,
		"message":         "Attribute successfully assigned to product",
	})
}

func (h *HTTPHandler) ListProductAttributes(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	values, err := h.service.ProductAttributes(r.Context(), productID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch product attributes")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"product_id":       productID,
		"attribute_values": values,
		"count":            len(values),
	})
}

func (h *HTTPHandler) GetProductAttribute(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	value, err := h.service.ProductAttribute(r.Context(), productID, chi.URLParam(r, "valueId"))
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch product attribute")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"product_id":      productID,
		"attribute_value": value,
	})
}

func (h *HTTPHandler) DeleteProductAttribute(w http.ResponseWriter, r *http.Request) {
	productID, valueID := chi.URLParam(r, "productId"), chi.URLParam(r, "valueId")
	if err := h.service.RemoveProductAttributeValue(r.Context(), productID, valueID); err != nil {
		respondWithServiceError(w, r, err, "Failed to remove attribute from product")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Attribute value removed from product successfully",
		"deleted":    true,
		"id":         valueID,
		"product_id": productID,
	})
}

// ProductValuesInput carries the attribute value ids sent alongside a product
// create or update.
type ProductValuesInput struct {
	Values []string `json:"values" validate:"dive,required"`
}

// LinkProductValues is the products-created hook: it links existing attribute
// values to the product.
func (h *HTTPHandler) LinkProductValues(w http.ResponseWriter, r *http.Request) {
	h.applyProductValues(w, r, h.service.LinkProductValues, "Failed to link attribute values to product")
}

// ReplaceProductValues is the products-updated hook: the listed values become
// the product's full set. An empty list changes nothing.
func (h *HTTPHandler) ReplaceProductValues(w http.ResponseWriter, r *http.Request) {
	h.applyProductValues(w, r, h.service.ReplaceProductValues, "Failed to replace product attribute values")
}

func (h *HTTPHandler) applyProductValues(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, productIDs, valueIDs []string) ([]domain.ProductValueLink, error),
	fallback string,
) {
	productID := chi.URLParam(r, "productId")
	var input ProductValuesInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	links, err := apply(r.Context(), []string{productID}, input.Values)
	if err != nil {
		respondWithServiceError(w, r, err, fallback)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"product_id": productID,
		"links":      links,
		"count":      len(links),
	})
}

// --- Store front handlers ---

func (h *HTTPHandler) StoreListAttributes(w http.ResponseWriter, r *http.Request) {
	h.ListAttributes(w, r)
}

func (h *HTTPHandler) StoreListProducts(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	q := query.ProductQuery{
		IDs:               multiValue(r, "id"),
		AttributeValueIDs: multiValue(r, "attribute_value_id"),
		SalesChannelIDs:   multiValue(r, "sales_channel_id"),
		CategoryIDs:       multiValue(r, "category_id"),
		Status:            multiValue(r, "status"),
		Limit:             limit,
		Offset:            offset,
	}

	products, count, err := h.service.ListProducts(r.Context(), q, h.productMutators...)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to retrieve products")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"count":    count,
		"limit":    limit,
		"offset":   offset,
	})
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Route("/attributes", func(r chi.Router) {
			r.Post("/", h.CreateAttribute)
			r.Get("/", h.ListAttributes)
			// Registered before {attributeId} so it is not read as an id.
			r.Post("/bulk-delete", h.BulkDeleteAttributes)
			r.Route("/{attributeId}", func(r chi.Router) {
				r.Get("/", h.GetAttribute)
				r.Post("/", h.UpdateAttribute)
				r.Delete("/", h.DeleteAttribute)
				r.Get("/values", h.ListPossibleValues)
				r.Post("/values", h.CreatePossibleValue)
				r.Get("/values/{valueId}", h.GetPossibleValue)
			})
		})
		r.Post("/attribute-sets", h.CreateAttributeSet)
		r.Route("/products/{productId}/attributes", func(r chi.Router) {
			r.Get("/", h.ListProductAttributes)
			r.Post("/", h.CreateProductAttribute)
			r.Post("/link", h.LinkProductValues)
			r.Post("/replace", h.ReplaceProductValues)
			r.Get("/{valueId}", h.GetProductAttribute)
			r.Delete("/{valueId}", h.DeleteProductAttribute)
		})
	})

	r.Route("/store/attributes", func(r chi.Router) {
		r.Get("/", h.StoreListAttributes)
		r.Get("/products", h.StoreListProducts)
	})
}

package transport

import (
	"errors"
	"net/http"

	"souq/internal/domain"
	"souq/internal/middleware"
	"souq/internal/repository"
	"souq/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateProductRequest is the create payload. Price and the discount fields
// stay untyped so the loose values storefront clients send (numeric strings,
// "yes"/"on" flags) reach the coercion layer instead of failing decode.
type CreateProductRequest struct {
	Name               string   `json:"name" validate:"required"`
	Description        string   `json:"description" validate:"required"`
	Price              any      `json:"price"`
	Category           string   `json:"category" validate:"required"`
	Images             []string `json:"images" validate:"required,min=1,max=3"`
	IsDiscounted       any      `json:"isDiscounted"`
	DiscountPercentage any      `json:"discountPercentage"`
}

// UpdateProductRequest is the update payload; nil fields fall back to the
// stored record. existingImages entries may be bare URLs or image objects.
type UpdateProductRequest struct {
	Name               *string                  `json:"name"`
	Description        *string                  `json:"description"`
	Price              any                      `json:"price"`
	Category           *string                  `json:"category"`
	ExistingImages     []domain.ImageInput      `json:"existingImages"`
	NewImages          []string                 `json:"newImages"`
	Cover              *service.CoverPreference `json:"cover"`
	IsDiscounted       any                      `json:"isDiscounted"`
	DiscountPercentage any                      `json:"discountPercentage"`
}

// ProductListResponse wraps list-style endpoints
type ProductListResponse struct {
	Products []*service.ProductPayload `json:"products"`
}

// SearchResponse carries the capped result page and the total match count
type SearchResponse struct {
	Items []*service.ProductPayload `json:"items"`
	Count int                       `json:"count"`
}

// ProductHandler handles HTTP requests for catalog operations
type ProductHandler struct {
	products service.ProductService
	logger   *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(products service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		products: products,
		logger:   logger,
	}
}

// RegisterRoutes registers all product routes. Write endpoints sit behind the
// auth and admin middleware; the search endpoint behind the rate limiter.
func (h *ProductHandler) RegisterRoutes(r chi.Router, auth, adminOnly, searchLimit func(http.Handler) http.Handler) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.GetAll)
		r.Get("/featured", h.GetFeatured)
		r.With(searchLimit).Get("/search", h.Search)
		r.Get("/recommendations", h.GetRecommendations)
		r.Get("/category/{category}", h.GetByCategory)
		r.Get("/{id}", h.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Use(adminOnly)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Patch("/{id}/toggle-feature", h.ToggleFeatured)
		})
	})
}

// GetAll handles GET /products
func (h *ProductHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.respondError(w, err, "Failed to list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{Products: products})
}

// GetFeatured handles GET /products/featured
func (h *ProductHandler) GetFeatured(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.Featured(r.Context())
	if err != nil {
		h.respondError(w, err, "Failed to get featured products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// Search handles GET /products/search
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	category := r.URL.Query().Get("category")

	items, count, err := h.products.Search(r.Context(), q, category)
	if err != nil {
		h.respondError(w, err, "Failed to search products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, SearchResponse{Items: items, Count: count})
}

// GetRecommendations handles GET /products/recommendations
func (h *ProductHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("productId")
	category := r.URL.Query().Get("category")

	products, err := h.products.Recommend(r.Context(), productID, category)
	if err != nil {
		h.respondError(w, err, "Failed to get recommended products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// GetByCategory handles GET /products/category/{category}
func (h *ProductHandler) GetByCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	products, err := h.products.GetByCategory(r.Context(), category)
	if err != nil {
		h.respondError(w, err, "Failed to get products by category")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{Products: products})
}

// GetByID handles GET /products/{id}
func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	product, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "Failed to get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Create handles POST /products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Create product validation failed", zap.Error(err))

		if fieldErr := middleware.FirstValidationError(err); fieldErr != nil {
			middleware.RespondWithMessage(w, http.StatusBadRequest, createValidationMessage(fieldErr))
			return
		}

		middleware.RespondWithMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	product, err := h.products.Create(r.Context(), service.CreateProductInput{
		Name:               req.Name,
		Description:        req.Description,
		Category:           req.Category,
		Price:              req.Price,
		Images:             req.Images,
		IsDiscounted:       req.IsDiscounted,
		DiscountPercentage: req.DiscountPercentage,
	})
	if err != nil {
		h.respondError(w, err, "Failed to create product")
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// Update handles PUT /products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req UpdateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Update product decode failed", zap.Error(err))
		middleware.RespondWithMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	product, err := h.products.Update(r.Context(), id, service.UpdateProductInput{
		Name:               req.Name,
		Description:        req.Description,
		Category:           req.Category,
		Price:              req.Price,
		ExistingImages:     req.ExistingImages,
		NewImages:          req.NewImages,
		Cover:              req.Cover,
		IsDiscounted:       req.IsDiscounted,
		DiscountPercentage: req.DiscountPercentage,
	})
	if err != nil {
		h.respondError(w, err, "Failed to update product")
		return
	}

	h.logger.Info("Product updated", zap.String("product_id", product.ID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete handles DELETE /products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	if err := h.products.Delete(r.Context(), id); err != nil {
		h.respondError(w, err, "Failed to delete product")
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", id.String()))
	middleware.RespondWithMessage(w, http.StatusOK, "Product and images deleted successfully")
}

// ToggleFeatured handles PATCH /products/{id}/toggle-feature
func (h *ProductHandler) ToggleFeatured(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	product, err := h.products.ToggleFeatured(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "Failed to toggle featured product")
		return
	}

	h.logger.Info("Product featured status toggled",
		zap.String("product_id", product.ID.String()),
		zap.Bool("is_featured", product.IsFeatured),
	)
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// productID parses the id path parameter. A malformed id cannot reference any
// record, so it is reported as not found.
func (h *ProductHandler) productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithMessage(w, http.StatusNotFound, "Product not found")
		return uuid.Nil, false
	}
	return id, true
}

func (h *ProductHandler) respondError(w http.ResponseWriter, err error, logMsg string) {
	var validationErr *domain.ValidationError

	switch {
	case errors.As(err, &validationErr):
		middleware.RespondWithMessage(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithMessage(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, service.ErrNoFeaturedProducts):
		middleware.RespondWithMessage(w, http.StatusNotFound, "No featured products found")
	default:
		h.logger.Error(logMsg, zap.Error(err))
		middleware.RespondWithServerError(w, err)
	}
}

func createValidationMessage(e validator.FieldError) string {
	switch e.Field() {
	case "Name":
		return "Product name is required"
	case "Description":
		return "Product description is required"
	case "Category":
		return "Category is required"
	case "Images":
		if e.Tag() == "max" {
			return "You can upload up to 3 images per product"
		}
		return "At least one product image is required"
	}
	return "Invalid request body"
}

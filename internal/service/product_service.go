package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"souq/internal/cache"
	"souq/internal/domain"
	"souq/internal/media"
	"souq/internal/repository"
	"souq/internal/search"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// FeaturedCacheKey is the fixed key holding the denormalized featured
	// products snapshot.
	FeaturedCacheKey = "featured_products"

	searchResultLimit  = 24
	recommendationSize = 4
	maxProductImages   = 3
)

var (
	// ErrNoFeaturedProducts is returned when no product is currently featured.
	ErrNoFeaturedProducts = errors.New("no featured products found")
)

// CreateProductInput is the create payload. Price and the discount fields are
// untyped: the JSON boundary accepts numbers, numeric strings and loose flag
// values, and coercion happens in one place.
type CreateProductInput struct {
	Name               string
	Description        string
	Category           string
	Price              any
	Images             []string
	IsDiscounted       any
	DiscountPercentage any
}

// CoverPreference designates which image should become the cover after an
// update: "new" promotes the first newly-uploaded image.
type CoverPreference struct {
	Source string `json:"source"`
	Index  int    `json:"index"`
}

// UpdateProductInput is the update payload. Nil fields fall back to the
// stored record's values.
type UpdateProductInput struct {
	Name               *string
	Description        *string
	Category           *string
	Price              any
	ExistingImages     []domain.ImageInput
	NewImages          []string
	Cover              *CoverPreference
	IsDiscounted       any
	DiscountPercentage any
}

// ProductService defines the catalog business logic
type ProductService interface {
	List(ctx context.Context) ([]*ProductPayload, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ProductPayload, error)
	GetByCategory(ctx context.Context, category string) ([]*ProductPayload, error)
	Featured(ctx context.Context) ([]*ProductPayload, error)
	Search(ctx context.Context, q, category string) ([]*ProductPayload, int, error)
	Recommend(ctx context.Context, productID, category string) ([]*ProductPayload, error)
	Create(ctx context.Context, input CreateProductInput) (*ProductPayload, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductPayload, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ToggleFeatured(ctx context.Context, id uuid.UUID) (*ProductPayload, error)
}

type catalogService struct {
	repo        repository.ProductRepository
	media       media.Store
	cache       cache.Store
	mediaFolder string
	logger      *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	repo repository.ProductRepository,
	mediaStore media.Store,
	cacheStore cache.Store,
	mediaFolder string,
	logger *zap.Logger,
) ProductService {
	return &catalogService{
		repo:        repo,
		media:       mediaStore,
		cache:       cacheStore,
		mediaFolder: mediaFolder,
		logger:      logger,
	}
}

// List returns every product in response shape
func (s *catalogService) List(ctx context.Context) ([]*ProductPayload, error) {
	products, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return finalizeAll(products), nil
}

// GetByID returns one product or repository.ErrProductNotFound
func (s *catalogService) GetByID(ctx context.Context, id uuid.UUID) (*ProductPayload, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return Finalize(product), nil
}

// GetByCategory returns the products whose category name matches exactly
func (s *catalogService) GetByCategory(ctx context.Context, category string) ([]*ProductPayload, error) {
	products, err := s.repo.FindByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	return finalizeAll(products), nil
}

// Featured serves the featured set from the cache when possible, falling back
// to a direct query on miss. A zero-product result is reported as
// ErrNoFeaturedProducts rather than cached, so a featuring change mid-request
// cannot pin an empty snapshot.
func (s *catalogService) Featured(ctx context.Context) ([]*ProductPayload, error) {
	if cached, err := s.cache.Get(ctx, FeaturedCacheKey); err == nil {
		var payloads []*ProductPayload
		if jsonErr := json.Unmarshal([]byte(cached), &payloads); jsonErr == nil {
			// Cached entries are semi-finalized; re-derive defensively.
			for _, payload := range payloads {
				payload.Refinalize()
			}
			return payloads, nil
		}
		s.logger.Warn("Discarding corrupt featured products cache entry")
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Error("Failed to read featured products cache", zap.Error(err))
	}

	products, err := s.repo.FindFeatured(ctx)
	if err != nil {
		return nil, err
	}

	if len(products) == 0 {
		return nil, ErrNoFeaturedProducts
	}

	payloads := finalizeAll(products)
	s.storeFeatured(ctx, payloads)
	return payloads, nil
}

// refreshFeatured rebuilds the featured snapshot after a write. The cache is
// a performance optimization, not a correctness dependency: failures are
// logged and never fail the triggering request.
func (s *catalogService) refreshFeatured(ctx context.Context) {
	products, err := s.repo.FindFeatured(ctx)
	if err != nil {
		s.logger.Error("Failed to refresh featured products cache", zap.Error(err))
		return
	}
	s.storeFeatured(ctx, finalizeAll(products))
}

func (s *catalogService) storeFeatured(ctx context.Context, payloads []*ProductPayload) {
	data, err := json.Marshal(payloads)
	if err != nil {
		s.logger.Error("Failed to encode featured products for cache", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, FeaturedCacheKey, string(data)); err != nil {
		s.logger.Error("Failed to write featured products cache", zap.Error(err))
	}
}

// Search matches products by folded name substring and optional category,
// returning up to 24 items plus the total match count.
func (s *catalogService) Search(ctx context.Context, q, category string) ([]*ProductPayload, int, error) {
	query := repository.SearchQuery{
		NamePattern: search.NamePattern(q),
		Category:    strings.TrimSpace(category),
		Limit:       searchResultLimit,
	}

	if query.Category != "" {
		if categoryID, err := uuid.Parse(query.Category); err == nil {
			query.CategoryID = uuid.NullUUID{UUID: categoryID, Valid: true}
		}
	}

	products, count, err := s.repo.Search(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	return finalizeAll(products), count, nil
}

// Recommend samples up to 4 random products in the source product's (or the
// explicit) category, excluding the source. A sparse category falls back to a
// whole-catalog sample, so the result is non-empty whenever the catalog has
// at least one other product.
func (s *catalogService) Recommend(ctx context.Context, productID, category string) ([]*ProductPayload, error) {
	targetCategory := strings.TrimSpace(category)
	exclude := uuid.NullUUID{}

	if productID != "" {
		if id, err := uuid.Parse(productID); err == nil {
			exclude = uuid.NullUUID{UUID: id, Valid: true}

			if targetCategory == "" {
				if product, err := s.repo.FindByID(ctx, id); err == nil {
					targetCategory = product.Category
				} else if !errors.Is(err, repository.ErrProductNotFound) {
					return nil, err
				}
			}
		}
	}

	var (
		products []*domain.Product
		err      error
	)

	if targetCategory != "" {
		products, err = s.repo.Sample(ctx, targetCategory, exclude, recommendationSize)
		if err != nil {
			return nil, err
		}
	}

	if len(products) == 0 {
		products, err = s.repo.Sample(ctx, "", exclude, recommendationSize)
		if err != nil {
			return nil, err
		}
	}

	return finalizeAll(products), nil
}

// Create validates the payload, uploads the images and persists the record.
// Validation and pricing run before any external side effect; a failed upload
// rolls back this operation's prior uploads; a failed insert releases the
// uploads so no orphaned media is left behind.
func (s *catalogService) Create(ctx context.Context, input CreateProductInput) (*ProductPayload, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.NewValidationError("Product name is required")
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, domain.NewValidationError("Product description is required")
	}

	if len(input.Images) == 0 {
		return nil, domain.NewValidationError("At least one product image is required")
	}
	if len(input.Images) > maxProductImages {
		return nil, domain.NewValidationError("You can upload up to 3 images per product")
	}

	category := strings.TrimSpace(input.Category)
	if category == "" {
		return nil, domain.NewValidationError("Category is required")
	}

	payloads := sanitizeImagePayloads(input.Images)
	if len(payloads) == 0 {
		return nil, domain.NewValidationError("Provided images are not valid")
	}

	price, err := parsePrice(input.Price)
	if err != nil {
		return nil, err
	}

	discount, err := domain.NormalizeDiscount(input.IsDiscounted, input.DiscountPercentage, domain.DiscountSettings{})
	if err != nil {
		return nil, err
	}

	uploaded, err := s.uploadAll(ctx, payloads)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:                 uuid.New(),
		Name:               name,
		Description:        description,
		Price:              price,
		Category:           category,
		CategorySlug:       category,
		CategoryID:         parseCategoryID(category),
		Image:              uploaded[0].URL,
		Images:             uploaded,
		IsDiscounted:       discount.IsDiscounted,
		DiscountPercentage: discount.DiscountPercentage,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.Create(ctx, product); err != nil {
		// Close the orphaned-media gap: release this operation's uploads
		// when persistence fails after they succeeded.
		s.rollbackUploads(ctx, uploaded)
		return nil, fmt.Errorf("failed to persist product: %w", err)
	}

	return Finalize(product), nil
}

// Update reconciles the stored record against the client's keep list and new
// uploads. All validation happens before any media side effect; removed
// images are released best-effort; a failed upload or a failed persist rolls
// back this operation's own uploads.
func (s *catalogService) Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductPayload, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name := product.Name
	if input.Name != nil {
		name = strings.TrimSpace(*input.Name)
	}
	if name == "" {
		return nil, domain.NewValidationError("Product name is required")
	}

	description := product.Description
	if input.Description != nil {
		description = strings.TrimSpace(*input.Description)
	}
	if description == "" {
		return nil, domain.NewValidationError("Product description is required")
	}

	keepIDs := make([]string, 0, len(input.ExistingImages))
	for _, image := range input.ExistingImages {
		if identifier := image.Identifier(); identifier != "" {
			keepIDs = append(keepIDs, identifier)
		}
	}

	newPayloads := sanitizeImagePayloads(input.NewImages)

	retained, removed := partitionImages(product.Images, keepIDs)

	totalImages := len(retained) + len(newPayloads)
	if totalImages == 0 {
		return nil, domain.NewValidationError("At least one product image is required")
	}
	if totalImages > maxProductImages {
		return nil, domain.NewValidationError("You can upload up to 3 images per product")
	}

	price := product.Price
	if input.Price != nil {
		price, err = parsePrice(input.Price)
		if err != nil {
			return nil, err
		}
	}

	category := product.Category
	if input.Category != nil {
		if trimmed := strings.TrimSpace(*input.Category); trimmed != "" {
			category = trimmed
		}
	}

	discount, err := domain.NormalizeDiscount(input.IsDiscounted, input.DiscountPercentage, domain.DiscountSettings{
		IsDiscounted:       product.IsDiscounted,
		DiscountPercentage: product.DiscountPercentage,
	})
	if err != nil {
		return nil, err
	}

	// Validation is done; external side effects start here.
	s.releaseImages(ctx, removed)

	uploaded, err := s.uploadAll(ctx, newPayloads)
	if err != nil {
		return nil, err
	}

	coverSource := ""
	if input.Cover != nil {
		coverSource = input.Cover.Source
	}
	finalImages := arrangeImages(orderRetained(retained, keepIDs), uploaded, coverSource)

	product.Name = name
	product.Description = description
	product.Price = price
	product.Category = category
	product.CategorySlug = category
	product.CategoryID = parseCategoryID(category)
	product.Images = finalImages
	if len(finalImages) > 0 {
		product.Image = finalImages[0].URL
	}
	product.IsDiscounted = discount.IsDiscounted
	product.DiscountPercentage = discount.DiscountPercentage
	product.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, product); err != nil {
		s.rollbackUploads(ctx, uploaded)
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to persist product: %w", err)
	}

	if product.IsFeatured {
		s.refreshFeatured(ctx)
	}

	return Finalize(product), nil
}

// Delete releases every owned image and removes the record. Media release
// failures are logged, not escalated; the record deletion proceeds regardless.
func (s *catalogService) Delete(ctx context.Context, id uuid.UUID) error {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	s.releaseImages(ctx, product.Images)

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if product.IsFeatured {
		s.refreshFeatured(ctx)
	}

	return nil
}

// ToggleFeatured flips the featured flag and refreshes the cache either way,
// since the featured set changed in both directions.
func (s *catalogService) ToggleFeatured(ctx context.Context, id uuid.UUID) (*ProductPayload, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	product.IsFeatured = !product.IsFeatured
	product.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}

	s.refreshFeatured(ctx)

	return Finalize(product), nil
}

func finalizeAll(products []*domain.Product) []*ProductPayload {
	payloads := make([]*ProductPayload, 0, len(products))
	for _, product := range products {
		payloads = append(payloads, Finalize(product))
	}
	return payloads
}

// sanitizeImagePayloads drops entries that are not usable base64 payloads.
// Callers enforce the image-count limit on the result.
func sanitizeImagePayloads(images []string) []string {
	sanitized := make([]string, 0, len(images))
	for _, image := range images {
		if strings.TrimSpace(image) != "" {
			sanitized = append(sanitized, image)
		}
	}
	return sanitized
}

func parsePrice(raw any) (float64, error) {
	price, ok := domain.ToNumber(raw)
	if !ok {
		return 0, domain.NewValidationError("Price must be a valid number")
	}
	if price < 0 {
		return 0, domain.NewValidationError("Price cannot be negative")
	}
	return price, nil
}

func parseCategoryID(category string) uuid.NullUUID {
	if id, err := uuid.Parse(category); err == nil {
		return uuid.NullUUID{UUID: id, Valid: true}
	}
	return uuid.NullUUID{}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"souq/internal/domain"
	"souq/internal/repository"

	"github.com/google/uuid"
)

func seedProduct(repo *fakeProductRepo, name, category string, featured bool, images ...domain.MediaRecord) *domain.Product {
	product := &domain.Product{
		ID:           uuid.New(),
		Name:         name,
		Description:  "about " + name,
		Price:        100,
		Category:     category,
		CategorySlug: category,
		IsFeatured:   featured,
		Images:       images,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if len(images) > 0 {
		product.Image = images[0].URL
	}
	repo.add(product)
	return product
}

func TestCreate_AppliesDiscountAndCover(t *testing.T) {
	repo := newFakeProductRepo()
	mediaStore := newFakeMediaStore()
	svc := newTestService(repo, mediaStore, newFakeCacheStore())

	payload, err := svc.Create(context.Background(), CreateProductInput{
		Name:               "Dates Box",
		Description:        "A kilogram of dates",
		Category:           "sweets",
		Price:              100,
		Images:             []string{"imgA", "imgB"},
		IsDiscounted:       true,
		DiscountPercentage: 25,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if payload.DiscountedPrice != 75 {
		t.Errorf("expected discounted price 75, got %v", payload.DiscountedPrice)
	}
	if len(payload.Images) != 2 {
		t.Errorf("expected 2 images, got %d", len(payload.Images))
	}
	if payload.Image != payload.Images[0].URL {
		t.Errorf("expected cover %q, got %q", payload.Images[0].URL, payload.Image)
	}

	stored, err := repo.FindByID(context.Background(), payload.ID)
	if err != nil {
		t.Fatalf("expected record persisted: %v", err)
	}
	if !stored.IsDiscounted || stored.DiscountPercentage != 25 {
		t.Errorf("unexpected stored discount: %+v", stored)
	}
}

func TestCreate_ValidationBeforeSideEffects(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateProductInput
		message string
	}{
		{
			name:    "missing name",
			input:   CreateProductInput{Name: "  ", Description: "d", Category: "c", Price: 1, Images: []string{"img"}},
			message: "Product name is required",
		},
		{
			name:    "missing description",
			input:   CreateProductInput{Name: "n", Description: "", Category: "c", Price: 1, Images: []string{"img"}},
			message: "Product description is required",
		},
		{
			name:    "no images",
			input:   CreateProductInput{Name: "n", Description: "d", Category: "c", Price: 1},
			message: "At least one product image is required",
		},
		{
			name:    "too many images",
			input:   CreateProductInput{Name: "n", Description: "d", Category: "c", Price: 1, Images: []string{"a", "b", "c", "d"}},
			message: "You can upload up to 3 images per product",
		},
		{
			name:    "missing category",
			input:   CreateProductInput{Name: "n", Description: "d", Category: " ", Price: 1, Images: []string{"img"}},
			message: "Category is required",
		},
		{
			name:    "blank images",
			input:   CreateProductInput{Name: "n", Description: "d", Category: "c", Price: 1, Images: []string{"  ", ""}},
			message: "Provided images are not valid",
		},
		{
			name:    "missing price",
			input:   CreateProductInput{Name: "n", Description: "d", Category: "c", Images: []string{"img"}},
			message: "Price must be a valid number",
		},
		{
			name:    "invalid discount",
			input:   CreateProductInput{Name: "n", Description: "d", Category: "c", Price: 1, Images: []string{"img"}, IsDiscounted: true, DiscountPercentage: 150},
			message: "Discount percentage must be between 1 and 99",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeProductRepo()
			mediaStore := newFakeMediaStore()
			svc := newTestService(repo, mediaStore, newFakeCacheStore())

			_, err := svc.Create(context.Background(), tt.input)

			var validationErr *domain.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if validationErr.Message != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, validationErr.Message)
			}
			if len(mediaStore.uploads) != 0 || len(mediaStore.deleted) != 0 {
				t.Error("expected no media side effects before validation passed")
			}
			if len(repo.products) != 0 {
				t.Error("expected nothing persisted")
			}
		})
	}
}

func TestCreate_PersistFailureReleasesUploads(t *testing.T) {
	repo := newFakeProductRepo()
	repo.createErr = errors.New("insert failed")
	mediaStore := newFakeMediaStore()
	svc := newTestService(repo, mediaStore, newFakeCacheStore())

	_, err := svc.Create(context.Background(), CreateProductInput{
		Name:        "n",
		Description: "d",
		Category:    "c",
		Price:       10,
		Images:      []string{"imgA", "imgB"},
	})
	if err == nil {
		t.Fatal("expected persistence error")
	}

	if len(mediaStore.deleted) != 2 {
		t.Errorf("expected both uploads released, got %v", mediaStore.deleted)
	}
}

func TestUpdate_RemovesUnkeptImages(t *testing.T) {
	repo := newFakeProductRepo()
	mediaStore := newFakeMediaStore()
	svc := newTestService(repo, mediaStore, newFakeCacheStore())

	product := seedProduct(repo, "n", "c", false,
		domain.MediaRecord{URL: "https://cdn.example.com/a.jpg", FileID: "fa", PublicID: "fa"},
		domain.MediaRecord{URL: "https://cdn.example.com/b.jpg", FileID: "fb", PublicID: "fb"},
	)

	keep := imageInputFromJSON(t, `[{"url":"https://cdn.example.com/a.jpg","fileId":"fa"}]`)

	payload, err := svc.Update(context.Background(), product.ID, UpdateProductInput{ExistingImages: keep})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(payload.Images) != 1 || payload.Images[0].FileID != "fa" {
		t.Errorf("unexpected final images: %+v", payload.Images)
	}
	if len(mediaStore.deleted) != 1 || mediaStore.deleted[0] != "fb" {
		t.Errorf("expected fb released, got %v", mediaStore.deleted)
	}
}

func TestUpdate_RejectsEmptyImageSetBeforeSideEffects(t *testing.T) {
	repo := newFakeProductRepo()
	mediaStore := newFakeMediaStore()
	svc := newTestService(repo, mediaStore, newFakeCacheStore())

	product := seedProduct(repo, "n", "c", false,
		domain.MediaRecord{URL: "https://cdn.example.com/a.jpg", FileID: "fa"},
		domain.MediaRecord{URL: "https://cdn.example.com/b.jpg", FileID: "fb"},
	)

	_, err := svc.Update(context.Background(), product.ID, UpdateProductInput{})

	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if validationErr.Message != "At least one product image is required" {
		t.Errorf("unexpected message: %q", validationErr.Message)
	}
	if len(mediaStore.deleted) != 0 {
		t.Errorf("expected no releases before validation, got %v", mediaStore.deleted)
	}
}

func TestUpdate_RejectsTooManyNewImagesBeforeSideEffects(t *testing.T) {
	repo := newFakeProductRepo()
	mediaStore := newFakeMediaStore()
	svc := newTestService(repo, mediaStore, newFakeCacheStore())

	product := seedProduct(repo, "n", "c", false,
		domain.MediaRecord{URL: "https://cdn.example.com/a.jpg", FileID: "fa"},
	)

	_, err := svc.Update(context.Background(), product.ID, UpdateProductInput{
		NewImages: []string{"p1", "p2", "p3", "p4"},
	})

	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if validationErr.Message != "You can upload up to 3 images per product" {
		t.Errorf("unexpected message: %q", validationErr.Message)
	}
	if len(mediaStore.uploads) != 0 {
		t.Errorf("expected no uploads, got %v", mediaStore.uploads)
	}
	// The stored image was not in the keep list, but it must survive a
	// rejected update untouched.
	if len(mediaStore.deleted) != 0 {
		t.Errorf("expected no releases, got %v", mediaStore.deleted)
	}
}

func TestUpdate_NewCoverOrdering(t *testing.T) {
	repo := newFakeProductRepo()
	mediaStore := newFakeMediaStore()
	svc := newTestService(repo, mediaStore, newFakeCacheStore())

	product := seedProduct(repo, "n", "c", false,
		domain.MediaRecord{URL: "https://cdn.example.com/a.jpg", FileID: "fa"},
		domain.MediaRecord{URL: "https://cdn.example.com/b.jpg", FileID: "fb"},
	)

	keep := imageInputFromJSON(t, `["fa","fb"]`)

	payload, err := svc.Update(context.Background(), product.ID, UpdateProductInput{
		ExistingImages: keep,
		NewImages:      []string{"imgC"},
		Cover:          &CoverPreference{Source: "new"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(payload.Images) != 3 {
		t.Fatalf("expected 3 images, got %d", len(payload.Images))
	}
	if payload.Images[0].FileID != "file-1" {
		t.Errorf("expected new upload as cover, got %+v", payload.Images[0])
	}
	if payload.Images[1].FileID != "fa" || payload.Images[2].FileID != "fb" {
		t.Errorf("expected retained images after cover, got %+v", payload.Images)
	}
	if payload.Image != payload.Images[0].URL {
		t.Errorf("expected cover URL %q, got %q", payload.Images[0].URL, payload.Image)
	}
}

func TestUpdate_RefreshesCacheWhenFeatured(t *testing.T) {
	repo := newFakeProductRepo()
	cacheStore := newFakeCacheStore()
	svc := newTestService(repo, newFakeMediaStore(), cacheStore)

	product := seedProduct(repo, "n", "c", true,
		domain.MediaRecord{URL: "https://cdn.example.com/a.jpg", FileID: "fa"},
	)

	name := "renamed"
	keep := imageInputFromJSON(t, `["fa"]`)
	if _, err := svc.Update(context.Background(), product.ID, UpdateProductInput{Name: &name, ExistingImages: keep}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cached := cacheStore.data[FeaturedCacheKey]
	if cached == "" {
		t.Fatal("expected featured cache refreshed")
	}

	var payloads []*ProductPayload
	if err := json.Unmarshal([]byte(cached), &payloads); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payloads) != 1 || payloads[0].Name != "renamed" {
		t.Errorf("expected refreshed snapshot with new name, got %+v", payloads)
	}
}

func TestDelete_ReleasesImagesAndRefreshesCache(t *testing.T) {
	repo := newFakeProductRepo()
	mediaStore := newFakeMediaStore()
	cacheStore := newFakeCacheStore()
	cacheStore.data[FeaturedCacheKey] = `[{"name":"stale"}]`
	svc := newTestService(repo, mediaStore, cacheStore)

	product := seedProduct(repo, "n", "c", true,
		domain.MediaRecord{URL: "https://cdn.example.com/a.jpg", FileID: "fa"},
		domain.MediaRecord{URL: "https://cdn.example.com/b.jpg"},
	)

	if err := svc.Delete(context.Background(), product.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Only records with a file identifier can be released.
	if len(mediaStore.deleted) != 1 || mediaStore.deleted[0] != "fa" {
		t.Errorf("expected fa released, got %v", mediaStore.deleted)
	}
	if _, err := repo.FindByID(context.Background(), product.ID); !errors.Is(err, repository.ErrProductNotFound) {
		t.Error("expected record deleted")
	}
	if cacheStore.data[FeaturedCacheKey] != "[]" {
		t.Errorf("expected empty featured snapshot, got %q", cacheStore.data[FeaturedCacheKey])
	}
}

func TestDelete_NotFound(t *testing.T) {
	svc := newTestService(newFakeProductRepo(), newFakeMediaStore(), newFakeCacheStore())

	err := svc.Delete(context.Background(), uuid.New())
	if !errors.Is(err, repository.ErrProductNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestToggleFeatured_RefreshesSnapshotBothWays(t *testing.T) {
	repo := newFakeProductRepo()
	cacheStore := newFakeCacheStore()
	svc := newTestService(repo, newFakeMediaStore(), cacheStore)

	product := seedProduct(repo, "n", "c", false,
		domain.MediaRecord{URL: "https://cdn.example.com/a.jpg", FileID: "fa"},
	)

	payload, err := svc.ToggleFeatured(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !payload.IsFeatured {
		t.Error("expected product featured after toggle")
	}

	var snapshot []*ProductPayload
	if err := json.Unmarshal([]byte(cacheStore.data[FeaturedCacheKey]), &snapshot); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshot) != 1 || snapshot[0].ID != product.ID {
		t.Errorf("expected product in snapshot, got %+v", snapshot)
	}

	// Toggling back leaves no stale entry behind.
	if _, err := svc.ToggleFeatured(context.Background(), product.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cacheStore.data[FeaturedCacheKey] != "[]" {
		t.Errorf("expected empty snapshot after untoggle, got %q", cacheStore.data[FeaturedCacheKey])
	}
}

func TestFeatured_MissQueriesStoreAndCaches(t *testing.T) {
	repo := newFakeProductRepo()
	cacheStore := newFakeCacheStore()
	svc := newTestService(repo, newFakeMediaStore(), cacheStore)

	seedProduct(repo, "plain", "c", false)
	featured := seedProduct(repo, "starred", "c", true,
		domain.MediaRecord{URL: "https://cdn.example.com/a.jpg", FileID: "fa"},
	)

	payloads, err := svc.Featured(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payloads) != 1 || payloads[0].ID != featured.ID {
		t.Errorf("expected the featured product, got %+v", payloads)
	}
	if cacheStore.data[FeaturedCacheKey] == "" {
		t.Error("expected snapshot stored for the next read")
	}
}

func TestFeatured_EmptyResultIsNotCached(t *testing.T) {
	repo := newFakeProductRepo()
	cacheStore := newFakeCacheStore()
	svc := newTestService(repo, newFakeMediaStore(), cacheStore)

	seedProduct(repo, "plain", "c", false)

	_, err := svc.Featured(context.Background())
	if !errors.Is(err, ErrNoFeaturedProducts) {
		t.Fatalf("expected ErrNoFeaturedProducts, got %v", err)
	}
	if _, ok := cacheStore.data[FeaturedCacheKey]; ok {
		t.Error("expected empty result not cached")
	}
}

func TestFeatured_HitRefinalizesCachedEntries(t *testing.T) {
	repo := newFakeProductRepo()
	cacheStore := newFakeCacheStore()
	svc := newTestService(repo, newFakeMediaStore(), cacheStore)

	// A semi-finalized cached entry: flag set, derived price absent.
	cacheStore.data[FeaturedCacheKey] = `[{"id":"` + uuid.NewString() + `","name":"cached","price":200,"isDiscounted":true,"discountPercentage":10,"images":[{"url":"https://cdn.example.com/a.jpg"}]}]`

	payloads, err := svc.Featured(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payloads) != 1 {
		t.Fatalf("expected 1 cached product, got %d", len(payloads))
	}
	if payloads[0].DiscountedPrice != 180 {
		t.Errorf("expected re-derived discounted price 180, got %v", payloads[0].DiscountedPrice)
	}
	if payloads[0].Image != "https://cdn.example.com/a.jpg" {
		t.Errorf("expected cover derived from images, got %q", payloads[0].Image)
	}
}

func TestFeatured_CacheFailureFallsBackToStore(t *testing.T) {
	repo := newFakeProductRepo()
	cacheStore := newFakeCacheStore()
	cacheStore.getErr = errors.New("redis down")
	cacheStore.setErr = errors.New("redis down")
	svc := newTestService(repo, newFakeMediaStore(), cacheStore)

	featured := seedProduct(repo, "starred", "c", true)

	payloads, err := svc.Featured(context.Background())
	if err != nil {
		t.Fatalf("expected fallback to the store, got %v", err)
	}
	if len(payloads) != 1 || payloads[0].ID != featured.ID {
		t.Errorf("expected the featured product, got %+v", payloads)
	}
}

func TestRecommend_FallsBackToWholeCatalog(t *testing.T) {
	repo := newFakeProductRepo()
	svc := newTestService(repo, newFakeMediaStore(), newFakeCacheStore())

	// The source product is alone in its category.
	source := seedProduct(repo, "lonely", "empty-category", false)
	seedProduct(repo, "o1", "other", false)
	seedProduct(repo, "o2", "other", false)

	payloads, err := svc.Recommend(context.Background(), source.ID.String(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(payloads) != 2 {
		t.Fatalf("expected 2 fallback products, got %d", len(payloads))
	}
	for _, payload := range payloads {
		if payload.ID == source.ID {
			t.Error("expected source product excluded from recommendations")
		}
	}
}

func TestRecommend_UsesSourceProductCategory(t *testing.T) {
	repo := newFakeProductRepo()
	svc := newTestService(repo, newFakeMediaStore(), newFakeCacheStore())

	source := seedProduct(repo, "source", "spices", false)
	sibling := seedProduct(repo, "sibling", "spices", false)
	seedProduct(repo, "outsider", "other", false)

	payloads, err := svc.Recommend(context.Background(), source.ID.String(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(payloads) != 1 || payloads[0].ID != sibling.ID {
		t.Errorf("expected only the category sibling, got %+v", payloads)
	}
}

func imageInputFromJSON(t *testing.T, raw string) []domain.ImageInput {
	t.Helper()
	var inputs []domain.ImageInput
	if err := json.Unmarshal([]byte(raw), &inputs); err != nil {
		t.Fatalf("failed to decode image inputs: %v", err)
	}
	return inputs
}

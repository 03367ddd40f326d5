package service

import (
	"time"

	"souq/internal/domain"

	"github.com/google/uuid"
)

// ImagePayload is the API-facing shape of one product image. When the
// external-store file identifier is known, the legacy public_id mirrors it.
type ImagePayload struct {
	URL      string `json:"url"`
	FileID   string `json:"fileId,omitempty"`
	PublicID string `json:"public_id,omitempty"`
}

// ProductPayload is the API-facing shape of a product, with the derived
// cover image and discounted price filled in.
type ProductPayload struct {
	ID                 uuid.UUID      `json:"id"`
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	Price              float64        `json:"price"`
	Category           string         `json:"category"`
	CategorySlug       string         `json:"categorySlug,omitempty"`
	CategoryID         *uuid.UUID     `json:"categoryId,omitempty"`
	Image              string         `json:"image"`
	Images             []ImagePayload `json:"images"`
	IsFeatured         bool           `json:"isFeatured"`
	IsDiscounted       bool           `json:"isDiscounted"`
	DiscountPercentage float64        `json:"discountPercentage"`
	DiscountedPrice    float64        `json:"discountedPrice"`
	Popularity         int            `json:"popularity"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// Finalize converts a stored record into its response shape. The discount
// flag is re-derived from the raw percentage rather than trusted, and the
// discounted price is always recomputed from the raw price, so finalizing
// already-finalized data cannot drift. This is the single pricing-presentation
// authority: every response path goes through it.
func Finalize(product *domain.Product) *ProductPayload {
	if product == nil {
		return nil
	}

	images := make([]ImagePayload, 0, len(product.Images))
	for _, rec := range product.Images {
		images = append(images, imagePayload(rec))
	}

	payload := &ProductPayload{
		ID:                 product.ID,
		Name:               product.Name,
		Description:        product.Description,
		Price:              product.Price,
		Category:           product.Category,
		CategorySlug:       product.CategorySlug,
		Image:              product.Image,
		Images:             images,
		IsFeatured:         product.IsFeatured,
		IsDiscounted:       product.IsDiscounted,
		DiscountPercentage: product.DiscountPercentage,
		Popularity:         product.Popularity,
		CreatedAt:          product.CreatedAt,
		UpdatedAt:          product.UpdatedAt,
	}
	if product.CategoryID.Valid {
		id := product.CategoryID.UUID
		payload.CategoryID = &id
	}

	payload.finalizePricing()
	payload.finalizeCover()
	return payload
}

func imagePayload(rec domain.MediaRecord) ImagePayload {
	if rec.FileID != "" {
		return ImagePayload{URL: rec.URL, FileID: rec.FileID, PublicID: rec.FileID}
	}
	return ImagePayload{URL: rec.URL, PublicID: rec.PublicID}
}

// Refinalize re-derives the presentation fields of an already-shaped payload.
// Cached entries are semi-finalized; applying this on read keeps them
// consistent without compounding rounding, since everything is recomputed
// from the raw price and percentage.
func (p *ProductPayload) Refinalize() {
	p.finalizePricing()
	p.finalizeCover()
}

func (p *ProductPayload) finalizePricing() {
	percentage := p.DiscountPercentage
	discounted := p.IsDiscounted && percentage > 0

	if !discounted {
		p.IsDiscounted = false
		p.DiscountPercentage = 0
		p.DiscountedPrice = p.Price
		return
	}

	effective := domain.Round2(percentage)
	p.IsDiscounted = true
	p.DiscountPercentage = effective
	p.DiscountedPrice = domain.Round2(p.Price - p.Price*(effective/100))
}

func (p *ProductPayload) finalizeCover() {
	if p.Image == "" && len(p.Images) > 0 {
		p.Image = p.Images[0].URL
	}
}

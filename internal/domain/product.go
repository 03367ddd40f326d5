package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a product in the catalog
type Product struct {
	ID                 uuid.UUID     `json:"id" db:"id"`
	Name               string        `json:"name" db:"name"`
	Description        string        `json:"description" db:"description"`
	Price              float64       `json:"price" db:"price"`
	Category           string        `json:"category" db:"category"`
	CategorySlug       string        `json:"categorySlug" db:"category_slug"`
	CategoryID         uuid.NullUUID `json:"categoryId" db:"category_id"`
	Image              string        `json:"image" db:"image"`
	Images             []MediaRecord `json:"images" db:"images"`
	IsFeatured         bool          `json:"isFeatured" db:"is_featured"`
	IsDiscounted       bool          `json:"isDiscounted" db:"is_discounted"`
	DiscountPercentage float64       `json:"discountPercentage" db:"discount_percentage"`
	Popularity         int           `json:"popularity" db:"popularity"`
	CreatedAt          time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time     `json:"updatedAt" db:"updated_at"`
}

// DiscountSettings is the validated discount state folded into a product on
// write. It is never persisted on its own.
type DiscountSettings struct {
	IsDiscounted       bool
	DiscountPercentage float64
}

// ValidationError carries a user-facing message for invalid catalog input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a validation error with the given message
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

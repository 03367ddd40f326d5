package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"souq/internal/domain"
	"souq/internal/search"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

// SearchQuery carries the filter parameters built from request input.
type SearchQuery struct {
	// NamePattern is a regex-escaped, whitespace-flexible pattern already
	// folded for matching against the search_name column. Empty means no
	// name filter.
	NamePattern string
	// Category matches category name or slug by equality. Empty means no
	// category filter.
	Category string
	// CategoryID additionally matches the normalized category identifier
	// when the category string parses as one.
	CategoryID uuid.NullUUID
	Limit      int
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindAll(ctx context.Context) ([]*domain.Product, error)
	FindByCategory(ctx context.Context, category string) ([]*domain.Product, error)
	FindFeatured(ctx context.Context) ([]*domain.Product, error)
	Search(ctx context.Context, query SearchQuery) ([]*domain.Product, int, error)
	Sample(ctx context.Context, category string, exclude uuid.NullUUID, size int) ([]*domain.Product, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, name, description, price, category, category_slug, category_id,
	image, images, is_featured, is_discounted, discount_percentage, popularity, created_at, updated_at`

// Create inserts a new product into the database using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, name, search_name, description, price, category, category_slug,
			category_id, image, images, is_featured, is_discounted, discount_percentage, popularity,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	images, err := encodeImages(product.Images)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		search.Fold(product.Name),
		product.Description,
		product.Price,
		product.Category,
		product.CategorySlug,
		product.CategoryID,
		product.Image,
		images,
		product.IsFeatured,
		product.IsDiscounted,
		product.DiscountPercentage,
		product.Popularity,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update updates an existing product in the database using parameterized queries
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, search_name = $3, description = $4, price = $5, category = $6,
		    category_slug = $7, category_id = $8, image = $9, images = $10,
		    is_featured = $11, is_discounted = $12, discount_percentage = $13,
		    popularity = $14, updated_at = $15
		WHERE id = $1
	`

	images, err := encodeImages(product.Images)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		search.Fold(product.Name),
		product.Description,
		product.Price,
		product.Category,
		product.CategorySlug,
		product.CategoryID,
		product.Image,
		images,
		product.IsFeatured,
		product.IsDiscounted,
		product.DiscountPercentage,
		product.Popularity,
		product.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// Delete removes a product from the database using parameterized queries
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM products WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product by ID using parameterized queries
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindAll retrieves every product, newest first
func (r *productRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products ORDER BY created_at DESC`, productColumns)
	return r.queryProducts(ctx, query)
}

// FindByCategory retrieves products whose category name matches exactly
func (r *productRepository) FindByCategory(ctx context.Context, category string) ([]*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE category = $1 ORDER BY created_at DESC`, productColumns)
	return r.queryProducts(ctx, query, category)
}

// FindFeatured retrieves the current featured set
func (r *productRepository) FindFeatured(ctx context.Context) ([]*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE is_featured = TRUE ORDER BY created_at DESC`, productColumns)
	return r.queryProducts(ctx, query)
}

// Search retrieves products matching the query filter, sorted by popularity
// then recency, together with the total match count. The data and count
// queries share the same filter and run concurrently since they are
// independent reads.
func (r *productRepository) Search(ctx context.Context, q SearchQuery) ([]*domain.Product, int, error) {
	where, args := buildSearchFilter(q)

	limit := q.Limit
	if limit <= 0 {
		limit = 24
	}

	dataQuery := fmt.Sprintf(`
		SELECT %s
		FROM products
		%s
		ORDER BY popularity DESC, created_at DESC
		LIMIT $%d
	`, productColumns, where, len(args)+1)
	dataArgs := append(append([]interface{}{}, args...), limit)

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", where)

	var (
		products []*domain.Product
		total    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.db.QueryContext(gctx, dataQuery, dataArgs...)
		if err != nil {
			return fmt.Errorf("failed to search products: %w", err)
		}
		defer rows.Close()

		products, err = collectProducts(rows)
		return err
	})
	g.Go(func() error {
		if err := r.db.QueryRowContext(gctx, countQuery, args...).Scan(&total); err != nil {
			return fmt.Errorf("failed to count search results: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// Sample retrieves a random subset of products, optionally restricted to a
// category and excluding one product.
func (r *productRepository) Sample(ctx context.Context, category string, exclude uuid.NullUUID, size int) ([]*domain.Product, error) {
	conditions := []string{}
	args := []interface{}{}

	if category != "" {
		args = append(args, category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if exclude.Valid {
		args = append(args, exclude.UUID)
		conditions = append(conditions, fmt.Sprintf("id <> $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, size)
	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		%s
		ORDER BY random()
		LIMIT $%d
	`, productColumns, where, len(args))

	return r.queryProducts(ctx, query, args...)
}

func buildSearchFilter(q SearchQuery) (string, []interface{}) {
	conditions := []string{}
	args := []interface{}{}

	if q.NamePattern != "" {
		args = append(args, q.NamePattern)
		conditions = append(conditions, fmt.Sprintf("search_name ~ $%d", len(args)))
	}

	if q.Category != "" {
		args = append(args, q.Category)
		idx := strconv.Itoa(len(args))
		// Category equality folds both sides so "Drinks" and "drinks" (and
		// diacritic variants) match, like the name search does.
		categoryCondition := "lower(unaccent(category)) = lower(unaccent($" + idx + "))" +
			" OR lower(unaccent(category_slug)) = lower(unaccent($" + idx + "))"
		if q.CategoryID.Valid {
			args = append(args, q.CategoryID.UUID)
			categoryCondition += fmt.Sprintf(" OR category_id = $%d", len(args))
		}
		conditions = append(conditions, "("+categoryCondition+")")
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func (r *productRepository) queryProducts(ctx context.Context, query string, args ...interface{}) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var images []byte

	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.Category,
		&product.CategorySlug,
		&product.CategoryID,
		&product.Image,
		&images,
		&product.IsFeatured,
		&product.IsDiscounted,
		&product.DiscountPercentage,
		&product.Popularity,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.Images, err = domain.DecodeStoredImages(images)
	if err != nil {
		return nil, fmt.Errorf("failed to decode product images: %w", err)
	}

	return product, nil
}

func collectProducts(rows *sql.Rows) ([]*domain.Product, error) {
	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

func encodeImages(images []domain.MediaRecord) ([]byte, error) {
	if images == nil {
		images = []domain.MediaRecord{}
	}
	encoded, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("failed to encode product images: %w", err)
	}
	return encoded, nil
}

package service

import (
	"context"
	"fmt"

	"souq/internal/cache"
	"souq/internal/domain"
	"souq/internal/media"
	"souq/internal/repository"

	"github.com/google/uuid"
)

type fakeMediaStore struct {
	uploads    []string
	deleted    []string
	failUpload map[int]error // 1-based upload attempt -> error
	deleteErr  map[string]error
	attempts   int
}

func newFakeMediaStore() *fakeMediaStore {
	return &fakeMediaStore{
		failUpload: map[int]error{},
		deleteErr:  map[string]error{},
	}
}

func (f *fakeMediaStore) Upload(_ context.Context, payload, _ string) (media.Asset, error) {
	f.attempts++
	if err := f.failUpload[f.attempts]; err != nil {
		return media.Asset{}, err
	}

	f.uploads = append(f.uploads, payload)
	fileID := fmt.Sprintf("file-%d", f.attempts)
	return media.Asset{
		URL:    "https://cdn.example.com/" + fileID + ".jpg",
		FileID: fileID,
	}, nil
}

func (f *fakeMediaStore) Delete(_ context.Context, fileID string) error {
	f.deleted = append(f.deleted, fileID)
	return f.deleteErr[fileID]
}

type fakeCacheStore struct {
	data   map[string]string
	getErr error
	setErr error
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{data: map[string]string{}}
}

func (f *fakeCacheStore) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	value, ok := f.data[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return value, nil
}

func (f *fakeCacheStore) Set(_ context.Context, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}

type fakeProductRepo struct {
	products  map[uuid.UUID]*domain.Product
	order     []uuid.UUID
	createErr error
	updateErr error
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: map[uuid.UUID]*domain.Product{}}
}

func (f *fakeProductRepo) add(product *domain.Product) {
	clone := *product
	f.products[product.ID] = &clone
	f.order = append(f.order, product.ID)
}

func (f *fakeProductRepo) Create(_ context.Context, product *domain.Product) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.add(product)
	return nil
}

func (f *fakeProductRepo) Update(_ context.Context, product *domain.Product) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	clone := *product
	f.products[product.ID] = &clone
	return nil
}

func (f *fakeProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(f.products, id)
	for i, existing := range f.order {
		if existing == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeProductRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	clone := *product
	return &clone, nil
}

func (f *fakeProductRepo) FindAll(_ context.Context) ([]*domain.Product, error) {
	return f.collect(func(*domain.Product) bool { return true }), nil
}

func (f *fakeProductRepo) FindByCategory(_ context.Context, category string) ([]*domain.Product, error) {
	return f.collect(func(p *domain.Product) bool { return p.Category == category }), nil
}

func (f *fakeProductRepo) FindFeatured(_ context.Context) ([]*domain.Product, error) {
	return f.collect(func(p *domain.Product) bool { return p.IsFeatured }), nil
}

func (f *fakeProductRepo) Search(_ context.Context, _ repository.SearchQuery) ([]*domain.Product, int, error) {
	all := f.collect(func(*domain.Product) bool { return true })
	return all, len(all), nil
}

func (f *fakeProductRepo) Sample(_ context.Context, category string, exclude uuid.NullUUID, size int) ([]*domain.Product, error) {
	matches := f.collect(func(p *domain.Product) bool {
		if exclude.Valid && p.ID == exclude.UUID {
			return false
		}
		return category == "" || p.Category == category
	})
	if len(matches) > size {
		matches = matches[:size]
	}
	return matches, nil
}

func (f *fakeProductRepo) collect(match func(*domain.Product) bool) []*domain.Product {
	result := []*domain.Product{}
	for _, id := range f.order {
		product, ok := f.products[id]
		if !ok || !match(product) {
			continue
		}
		clone := *product
		result = append(result, &clone)
	}
	return result
}

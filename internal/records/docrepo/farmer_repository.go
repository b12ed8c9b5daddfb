// Package docrepo implements the record repositories on top of the
// document store. All reads are scoped to a family partition; nothing in
// this package touches balances directly.
package docrepo

import (
	"context"
	"errors"
	"time"

	"waterledger/internal/docstore"
	"waterledger/internal/records/domain"
)

// FarmerRepository persists farmers in the farmers collection.
type FarmerRepository struct {
	store docstore.Store
}

// NewFarmerRepository constructs a repository.
func NewFarmerRepository(store docstore.Store) (*FarmerRepository, error) {
	if store == nil {
		return nil, errors.New("farmer repo: nil store")
	}
	return &FarmerRepository{store: store}, nil
}

// Get loads a farmer by id. A missing farmer returns nil, nil.
func (r *FarmerRepository) Get(ctx context.Context, id string) (*domain.Farmer, error) {
	if id == "" {
		return nil, errors.New("farmer repo: empty id")
	}
	doc, err := r.store.Get(ctx, docstore.CollectionFarmers, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	farmer, err := domain.FarmerFromDocument(doc)
	if err != nil {
		return nil, err
	}
	return &farmer, nil
}

// ListByFamily loads the active farmers of a family.
func (r *FarmerRepository) ListByFamily(ctx context.Context, familyID string) ([]domain.Farmer, error) {
	if familyID == "" {
		return nil, errors.New("farmer repo: empty family id")
	}
	docs, err := r.store.Query(ctx, docstore.CollectionFarmers,
		docstore.Where("familyId", familyID),
		docstore.Where("isActive", true))
	if err != nil {
		return nil, err
	}
	result := make([]domain.Farmer, 0, len(docs))
	for _, doc := range docs {
		farmer, err := domain.FarmerFromDocument(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, farmer)
	}
	return result, nil
}

// Save writes the full farmer document. The stored balance field is
// whatever the struct carries; callers must load before saving so ledger
// increments applied in between are not clobbered on unrelated edits.
func (r *FarmerRepository) Save(ctx context.Context, farmer *domain.Farmer) error {
	if farmer == nil {
		return errors.New("farmer repo: nil farmer")
	}
	if err := farmer.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if farmer.CreatedAt.IsZero() {
		farmer.CreatedAt = now
	}
	farmer.UpdatedAt = now

	doc, err := farmer.Document()
	if err != nil {
		return err
	}
	return r.store.Set(ctx, docstore.CollectionFarmers, farmer.ID, doc)
}

// Deactivate soft-deletes a farmer. The document and its balance survive;
// the farmer just drops out of active listings.
func (r *FarmerRepository) Deactivate(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("farmer repo: empty id")
	}
	return r.store.Update(ctx, docstore.CollectionFarmers, id, docstore.Document{
		"isActive":  false,
		"updatedAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

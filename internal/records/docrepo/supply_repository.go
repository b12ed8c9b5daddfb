package docrepo

import (
	"context"
	"errors"
	"time"

	"waterledger/internal/docstore"
	"waterledger/internal/records/domain"
)

// SupplyRepository persists supply entries in the supply_entries
// collection.
type SupplyRepository struct {
	store docstore.Store
}

// NewSupplyRepository constructs a repository.
func NewSupplyRepository(store docstore.Store) (*SupplyRepository, error) {
	if store == nil {
		return nil, errors.New("supply repo: nil store")
	}
	return &SupplyRepository{store: store}, nil
}

// Get loads a supply entry by id. A missing entry returns nil, nil.
func (r *SupplyRepository) Get(ctx context.Context, id string) (*domain.SupplyEntry, error) {
	if id == "" {
		return nil, errors.New("supply repo: empty id")
	}
	doc, err := r.store.Get(ctx, docstore.CollectionSupplies, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	entry, err := domain.SupplyEntryFromDocument(doc)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByFamily loads every supply entry of a family.
func (r *SupplyRepository) ListByFamily(ctx context.Context, familyID string) ([]domain.SupplyEntry, error) {
	return r.list(ctx, familyID, "")
}

// ListByFamilySince loads entries dated on or after the given day. Dates
// are stored as YYYY-MM-DD strings, so lexical comparison is date order.
func (r *SupplyRepository) ListByFamilySince(ctx context.Context, familyID, date string) ([]domain.SupplyEntry, error) {
	return r.list(ctx, familyID, date)
}

func (r *SupplyRepository) list(ctx context.Context, familyID, since string) ([]domain.SupplyEntry, error) {
	if familyID == "" {
		return nil, errors.New("supply repo: empty family id")
	}
	filters := []docstore.Filter{docstore.Where("familyId", familyID)}
	if since != "" {
		filters = append(filters, docstore.WhereAtLeast("date", since))
	}
	docs, err := r.store.Query(ctx, docstore.CollectionSupplies, filters...)
	if err != nil {
		return nil, err
	}
	result := make([]domain.SupplyEntry, 0, len(docs))
	for _, doc := range docs {
		entry, err := domain.SupplyEntryFromDocument(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, nil
}

// Save writes the full entry document.
func (r *SupplyRepository) Save(ctx context.Context, entry *domain.SupplyEntry) error {
	if entry == nil {
		return errors.New("supply repo: nil entry")
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	doc, err := entry.Document()
	if err != nil {
		return err
	}
	return r.store.Set(ctx, docstore.CollectionSupplies, entry.ID, doc)
}

// Delete removes an entry outright.
func (r *SupplyRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("supply repo: empty id")
	}
	return r.store.Delete(ctx, docstore.CollectionSupplies, id)
}

// DeleteAllByFamily removes every entry of a family, one document at a
// time. Balances are left untouched.
func (r *SupplyRepository) DeleteAllByFamily(ctx context.Context, familyID string) (int, error) {
	entries, err := r.ListByFamily(ctx, familyID)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, entry := range entries {
		if err := r.store.Delete(ctx, docstore.CollectionSupplies, entry.ID); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

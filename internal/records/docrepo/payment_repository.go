package docrepo

import (
	"context"
	"errors"
	"time"

	"waterledger/internal/docstore"
	"waterledger/internal/records/domain"
)

// PaymentRepository persists payments in the payments collection.
type PaymentRepository struct {
	store docstore.Store
}

// NewPaymentRepository constructs a repository.
func NewPaymentRepository(store docstore.Store) (*PaymentRepository, error) {
	if store == nil {
		return nil, errors.New("payment repo: nil store")
	}
	return &PaymentRepository{store: store}, nil
}

// Get loads a payment by id. A missing payment returns nil, nil.
func (r *PaymentRepository) Get(ctx context.Context, id string) (*domain.Payment, error) {
	if id == "" {
		return nil, errors.New("payment repo: empty id")
	}
	doc, err := r.store.Get(ctx, docstore.CollectionPayments, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	payment, err := domain.PaymentFromDocument(doc)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByFamily loads every payment of a family.
func (r *PaymentRepository) ListByFamily(ctx context.Context, familyID string) ([]domain.Payment, error) {
	if familyID == "" {
		return nil, errors.New("payment repo: empty family id")
	}
	docs, err := r.store.Query(ctx, docstore.CollectionPayments,
		docstore.Where("familyId", familyID))
	if err != nil {
		return nil, err
	}
	result := make([]domain.Payment, 0, len(docs))
	for _, doc := range docs {
		payment, err := domain.PaymentFromDocument(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, payment)
	}
	return result, nil
}

// Save writes the full payment document.
func (r *PaymentRepository) Save(ctx context.Context, payment *domain.Payment) error {
	if payment == nil {
		return errors.New("payment repo: nil payment")
	}
	if err := payment.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now

	doc, err := payment.Document()
	if err != nil {
		return err
	}
	return r.store.Set(ctx, docstore.CollectionPayments, payment.ID, doc)
}

// Delete removes a payment outright.
func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("payment repo: empty id")
	}
	return r.store.Delete(ctx, docstore.CollectionPayments, id)
}

// DeleteAllByFamily removes every payment of a family, one document at a
// time. Balances are left untouched.
func (r *PaymentRepository) DeleteAllByFamily(ctx context.Context, familyID string) (int, error) {
	payments, err := r.ListByFamily(ctx, familyID)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, payment := range payments {
		if err := r.store.Delete(ctx, docstore.CollectionPayments, payment.ID); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

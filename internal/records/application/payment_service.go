package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"waterledger/internal/docstore"
	"waterledger/internal/ledger"
	"waterledger/internal/records/docrepo"
	"waterledger/internal/records/domain"
	"waterledger/internal/stream"
)

// PaymentService handles payment use cases. A payment always credits the
// farmer by its amount regardless of the current balance.
type PaymentService struct {
	payments *docrepo.PaymentRepository
	farmers  *docrepo.FarmerRepository
	applier  *ledger.Applier
	store    docstore.Store
	logger   *log.Logger

	mu          sync.Mutex
	listStreams map[string]*stream.QueryStream[domain.Payment]
}

// NewPaymentService constructs the service.
func NewPaymentService(
	payments *docrepo.PaymentRepository,
	farmers *docrepo.FarmerRepository,
	applier *ledger.Applier,
	store docstore.Store,
	logger *log.Logger,
) (*PaymentService, error) {
	if payments == nil {
		return nil, errors.New("payment service: nil payment repository")
	}
	if farmers == nil {
		return nil, errors.New("payment service: nil farmer repository")
	}
	if applier == nil {
		return nil, errors.New("payment service: nil ledger applier")
	}
	if store == nil {
		return nil, errors.New("payment service: nil store")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &PaymentService{
		payments:    payments,
		farmers:     farmers,
		applier:     applier,
		store:       store,
		logger:      logger,
		listStreams: make(map[string]*stream.QueryStream[domain.Payment]),
	}, nil
}

// SavePayment records a payment and credits the farmer's balance.
func (s *PaymentService) SavePayment(ctx context.Context, payment *domain.Payment) error {
	if payment == nil {
		return errors.New("payment service: nil payment")
	}
	if payment.ID == "" {
		payment.ID = newID()
	}
	if payment.FarmerName == "" && payment.FarmerID != "" {
		farmer, err := s.farmers.Get(ctx, payment.FarmerID)
		if err == nil && farmer != nil {
			payment.FarmerName = farmer.Name
		}
	}
	if err := s.payments.Save(ctx, payment); err != nil {
		return err
	}
	s.applier.Apply(ctx, "payment", "create",
		ledger.ForPaymentCreate(payment.FarmerID, payment.Amount))
	return nil
}

// UpdatePayment replaces an existing payment and adjusts the balance by the
// amount difference. Moving a payment to another farmer reverses the full
// credit on the old farmer and applies it on the new one.
func (s *PaymentService) UpdatePayment(ctx context.Context, payment *domain.Payment) error {
	if payment == nil {
		return errors.New("payment service: nil payment")
	}
	if payment.ID == "" {
		return errors.New("payment service: empty payment id")
	}
	old, err := s.payments.Get(ctx, payment.ID)
	if err != nil {
		return err
	}
	if old == nil {
		return fmt.Errorf("payment %s: %w", payment.ID, docstore.ErrNotFound)
	}
	payment.CreatedAt = old.CreatedAt
	if err := s.payments.Save(ctx, payment); err != nil {
		return err
	}
	var deltas []ledger.Delta
	if old.FarmerID != payment.FarmerID {
		deltas = append(ledger.ForPaymentDelete(old.FarmerID, old.Amount),
			ledger.ForPaymentCreate(payment.FarmerID, payment.Amount)...)
	} else {
		deltas = ledger.ForPaymentUpdate(payment.FarmerID, old.Amount, payment.Amount)
	}
	s.applier.Apply(ctx, "payment", "update", deltas)
	return nil
}

// DeletePayment removes a payment and reverses its credit.
func (s *PaymentService) DeletePayment(ctx context.Context, id string) error {
	old, err := s.payments.Get(ctx, id)
	if err != nil {
		return err
	}
	if old == nil {
		return fmt.Errorf("payment %s: %w", id, docstore.ErrNotFound)
	}
	if err := s.payments.Delete(ctx, id); err != nil {
		return err
	}
	s.applier.Apply(ctx, "payment", "delete",
		ledger.ForPaymentDelete(old.FarmerID, old.Amount))
	return nil
}

// DeleteAllPayments removes every payment of a family without touching any
// balance.
func (s *PaymentService) DeleteAllPayments(ctx context.Context, familyID string) (int, error) {
	return s.payments.DeleteAllByFamily(ctx, familyID)
}

// GetPayment loads one payment; missing payments return nil, nil.
func (s *PaymentService) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	return s.payments.Get(ctx, id)
}

// ListPayments loads every payment of a family.
func (s *PaymentService) ListPayments(ctx context.Context, familyID string) ([]domain.Payment, error) {
	return s.payments.ListByFamily(ctx, familyID)
}

// ObservePayments returns the shared live view of a family's payments.
func (s *PaymentService) ObservePayments(familyID string) *stream.QueryStream[domain.Payment] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.listStreams[familyID]; ok {
		return st
	}
	st := stream.NewQueryStream(s.store, docstore.CollectionPayments,
		[]docstore.Filter{docstore.Where("familyId", familyID)},
		domain.PaymentFromDocument, s.logger)
	s.listStreams[familyID] = st
	return st
}

package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"waterledger/internal/billing"
	"waterledger/internal/docstore"
	"waterledger/internal/ledger"
	"waterledger/internal/records/docrepo"
	"waterledger/internal/records/domain"
	"waterledger/internal/stream"
)

// SupplyService handles supply entry use cases. Every successful mutation
// derives its balance deltas and hands them to the ledger applier after the
// record write; the applier never fails the mutation.
type SupplyService struct {
	supplies *docrepo.SupplyRepository
	farmers  *docrepo.FarmerRepository
	applier  *ledger.Applier
	store    docstore.Store
	logger   *log.Logger

	mu          sync.Mutex
	listStreams map[string]*stream.QueryStream[domain.SupplyEntry]
}

// NewSupplyService constructs the service.
func NewSupplyService(
	supplies *docrepo.SupplyRepository,
	farmers *docrepo.FarmerRepository,
	applier *ledger.Applier,
	store docstore.Store,
	logger *log.Logger,
) (*SupplyService, error) {
	if supplies == nil {
		return nil, errors.New("supply service: nil supply repository")
	}
	if farmers == nil {
		return nil, errors.New("supply service: nil farmer repository")
	}
	if applier == nil {
		return nil, errors.New("supply service: nil ledger applier")
	}
	if store == nil {
		return nil, errors.New("supply service: nil store")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SupplyService{
		supplies:    supplies,
		farmers:     farmers,
		applier:     applier,
		store:       store,
		logger:      logger,
		listStreams: make(map[string]*stream.QueryStream[domain.SupplyEntry]),
	}, nil
}

// SaveSupplyEntry creates a supply entry. Billable hours and amount are
// recomputed server-side from the raw inputs; a completed entry then posts
// its amount to the farmer's balance.
func (s *SupplyService) SaveSupplyEntry(ctx context.Context, entry *domain.SupplyEntry) error {
	if entry == nil {
		return errors.New("supply service: nil entry")
	}
	if err := s.prepare(ctx, entry); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = newID()
	}
	if err := s.supplies.Save(ctx, entry); err != nil {
		return err
	}
	s.applier.Apply(ctx, "supply", "create",
		ledger.ForSupplyCreate(entry.Status, entry.FarmerID, entry.Amount))
	return nil
}

// UpdateSupplyEntry replaces an existing entry. The previous version is
// loaded first so the balance adjustment can account for status changes and
// farmer reassignment.
func (s *SupplyService) UpdateSupplyEntry(ctx context.Context, entry *domain.SupplyEntry) error {
	if entry == nil {
		return errors.New("supply service: nil entry")
	}
	if entry.ID == "" {
		return errors.New("supply service: empty entry id")
	}
	old, err := s.supplies.Get(ctx, entry.ID)
	if err != nil {
		return err
	}
	if old == nil {
		return fmt.Errorf("supply entry %s: %w", entry.ID, docstore.ErrNotFound)
	}
	if err := s.prepare(ctx, entry); err != nil {
		return err
	}
	entry.CreatedAt = old.CreatedAt
	if err := s.supplies.Save(ctx, entry); err != nil {
		return err
	}
	s.applier.Apply(ctx, "supply", "update",
		ledger.ForSupplyUpdate(old.Status, entry.Status, old.FarmerID, entry.FarmerID, old.Amount, entry.Amount))
	return nil
}

// DeleteSupplyEntry removes an entry and withdraws its contribution from
// the farmer's balance.
func (s *SupplyService) DeleteSupplyEntry(ctx context.Context, id string) error {
	old, err := s.supplies.Get(ctx, id)
	if err != nil {
		return err
	}
	if old == nil {
		return fmt.Errorf("supply entry %s: %w", id, docstore.ErrNotFound)
	}
	if err := s.supplies.Delete(ctx, id); err != nil {
		return err
	}
	s.applier.Apply(ctx, "supply", "delete",
		ledger.ForSupplyDelete(old.Status, old.FarmerID, old.Amount))
	return nil
}

// DeleteAllEntries removes every entry of a family without touching any
// balance. Balances afterwards reflect history that no longer exists;
// tools/reconcile reports the difference.
func (s *SupplyService) DeleteAllEntries(ctx context.Context, familyID string) (int, error) {
	return s.supplies.DeleteAllByFamily(ctx, familyID)
}

// GetSupplyEntry loads one entry; missing entries return nil, nil.
func (s *SupplyService) GetSupplyEntry(ctx context.Context, id string) (*domain.SupplyEntry, error) {
	return s.supplies.Get(ctx, id)
}

// ListEntries loads every entry of a family.
func (s *SupplyService) ListEntries(ctx context.Context, familyID string) ([]domain.SupplyEntry, error) {
	return s.supplies.ListByFamily(ctx, familyID)
}

// ListEntriesSince loads entries dated on or after the given day.
func (s *SupplyService) ListEntriesSince(ctx context.Context, familyID, date string) ([]domain.SupplyEntry, error) {
	return s.supplies.ListByFamilySince(ctx, familyID, date)
}

// ObserveEntries returns the shared live view of a family's entries.
func (s *SupplyService) ObserveEntries(familyID string) *stream.QueryStream[domain.SupplyEntry] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.listStreams[familyID]; ok {
		return st
	}
	st := stream.NewQueryStream(s.store, docstore.CollectionSupplies,
		[]docstore.Filter{docstore.Where("familyId", familyID)},
		domain.SupplyEntryFromDocument, s.logger)
	s.listStreams[familyID] = st
	return st
}

// prepare recomputes the derived billing fields, fills the denormalised
// farmer name and validates the result.
func (s *SupplyService) prepare(ctx context.Context, entry *domain.SupplyEntry) error {
	comp, err := billing.ComputeUsage(billing.UsageInput{
		Method:        entry.BillingMethod,
		Status:        entry.Status,
		StartTime:     entry.StartTime,
		StopTime:      entry.StopTime,
		PauseDuration: entry.PauseDuration,
		MeterStart:    entry.MeterReadingStart,
		MeterEnd:      entry.MeterReadingEnd,
		Rate:          entry.Rate,
	})
	if err != nil {
		return err
	}
	entry.TotalTimeUsed = comp.Hours
	entry.Amount = comp.Amount

	if entry.FarmerName == "" && entry.FarmerID != "" {
		farmer, err := s.farmers.Get(ctx, entry.FarmerID)
		if err == nil && farmer != nil {
			entry.FarmerName = farmer.Name
		}
	}
	return entry.Validate()
}

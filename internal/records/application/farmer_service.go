package application

import (
	"context"
	"errors"
	"log"
	"sync"

	"waterledger/internal/docstore"
	"waterledger/internal/records/docrepo"
	"waterledger/internal/records/domain"
	"waterledger/internal/stream"
)

// FarmerService handles farmer use cases and hands out live views.
type FarmerService struct {
	farmers *docrepo.FarmerRepository
	store   docstore.Store
	logger  *log.Logger

	mu          sync.Mutex
	docStreams  map[string]*stream.DocumentStream[domain.Farmer]
	listStreams map[string]*stream.QueryStream[domain.Farmer]
}

// NewFarmerService constructs the service.
func NewFarmerService(farmers *docrepo.FarmerRepository, store docstore.Store, logger *log.Logger) (*FarmerService, error) {
	if farmers == nil {
		return nil, errors.New("farmer service: nil repository")
	}
	if store == nil {
		return nil, errors.New("farmer service: nil store")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FarmerService{
		farmers:     farmers,
		store:       store,
		logger:      logger,
		docStreams:  make(map[string]*stream.DocumentStream[domain.Farmer]),
		listStreams: make(map[string]*stream.QueryStream[domain.Farmer]),
	}, nil
}

// SaveFarmer creates or replaces a farmer. New farmers start active with a
// zero balance.
func (s *FarmerService) SaveFarmer(ctx context.Context, farmer *domain.Farmer) error {
	if farmer == nil {
		return errors.New("farmer service: nil farmer")
	}
	if farmer.ID == "" {
		farmer.ID = newID()
		farmer.IsActive = true
	}
	return s.farmers.Save(ctx, farmer)
}

// GetFarmer loads one farmer; missing farmers return nil, nil.
func (s *FarmerService) GetFarmer(ctx context.Context, id string) (*domain.Farmer, error) {
	return s.farmers.Get(ctx, id)
}

// ListFarmers loads the active farmers of a family.
func (s *FarmerService) ListFarmers(ctx context.Context, familyID string) ([]domain.Farmer, error) {
	return s.farmers.ListByFamily(ctx, familyID)
}

// DeactivateFarmer soft-deletes a farmer. Records and balance stay.
func (s *FarmerService) DeactivateFarmer(ctx context.Context, id string) error {
	return s.farmers.Deactivate(ctx, id)
}

// ObserveFarmer returns the shared live view of one farmer document. The
// same stream is handed to every caller so the underlying watch is opened
// at most once.
func (s *FarmerService) ObserveFarmer(id string) *stream.DocumentStream[domain.Farmer] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.docStreams[id]; ok {
		return st
	}
	st := stream.NewDocumentStream(s.store, docstore.CollectionFarmers, id, domain.FarmerFromDocument, s.logger)
	s.docStreams[id] = st
	return st
}

// ObserveFarmers returns the shared live view of a family's active farmers.
func (s *FarmerService) ObserveFarmers(familyID string) *stream.QueryStream[domain.Farmer] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.listStreams[familyID]; ok {
		return st
	}
	st := stream.NewQueryStream(s.store, docstore.CollectionFarmers,
		[]docstore.Filter{
			docstore.Where("familyId", familyID),
			docstore.Where("isActive", true),
		},
		domain.FarmerFromDocument, s.logger)
	s.listStreams[familyID] = st
	return st
}

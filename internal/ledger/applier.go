package ledger

import (
	"context"
	"errors"
	"log"

	"waterledger/internal/docstore"
	"waterledger/internal/observability/metrics"
)

const balanceField = "balance"

// Incrementer is the single write path to farmer balances.
type Incrementer interface {
	Increment(ctx context.Context, collection, id, field string, delta float64) error
}

// Applier applies balance deltas against farmer documents.
//
// Application is fire-and-forget relative to the record write that produced
// the deltas: the two writes are not transactionally coupled. When an
// increment fails after the record write already succeeded, the stored
// balance silently drifts from the sum of its records until corrected out
// of band (tools/reconcile); the failure is logged and counted but not
// retried, rolled back, or surfaced to the caller.
type Applier struct {
	store  Incrementer
	logger *log.Logger
}

// NewApplier constructs an applier.
func NewApplier(store Incrementer, logger *log.Logger) (*Applier, error) {
	if store == nil {
		return nil, errors.New("ledger applier: nil store")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Applier{store: store, logger: logger}, nil
}

// Apply issues one atomic increment per delta. record and operation label
// the triggering mutation for diagnostics.
func (a *Applier) Apply(ctx context.Context, record, operation string, deltas []Delta) {
	for _, delta := range deltas {
		err := a.store.Increment(ctx, docstore.CollectionFarmers, delta.FarmerID, balanceField, delta.Amount)
		if err != nil {
			a.logger.Printf("ledger drift: %s %s farmer=%s delta=%+.2f not applied: %v",
				record, operation, delta.FarmerID, delta.Amount, err)
			metrics.LedgerDrift(record)
			continue
		}
		metrics.DeltaApplied(record, operation)
	}
}

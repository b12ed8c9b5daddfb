package views

import (
	"sync"

	"waterledger/internal/records/domain"
	"waterledger/internal/stream"
)

// Summary is one dashboard snapshot, recomputed whenever any of the three
// underlying record streams pushes.
type Summary struct {
	FarmerCount   int     `json:"farmerCount"`
	EntryCount    int     `json:"entryCount"`
	PaymentCount  int     `json:"paymentCount"`
	TotalRevenue  float64 `json:"totalRevenue"`
	TotalPayments float64 `json:"totalPayments"`
	Outstanding   float64 `json:"outstanding"`
}

// Dashboard fuses the farmer, supply and payment streams of one family
// into a single summary stream.
type Dashboard struct {
	farmers  *stream.QueryStream[domain.Farmer]
	supplies *stream.QueryStream[domain.SupplyEntry]
	payments *stream.QueryStream[domain.Payment]
}

// NewDashboard constructs a dashboard over the three family streams.
func NewDashboard(
	farmers *stream.QueryStream[domain.Farmer],
	supplies *stream.QueryStream[domain.SupplyEntry],
	payments *stream.QueryStream[domain.Payment],
) *Dashboard {
	return &Dashboard{farmers: farmers, supplies: supplies, payments: payments}
}

// Attach subscribes to all three streams and pushes a recomputed summary
// on every underlying change. The detach func is idempotent.
func (d *Dashboard) Attach() (<-chan Summary, func()) {
	out := make(chan Summary, 1)
	farmersCh, detachFarmers := d.farmers.Attach()
	suppliesCh, detachSupplies := d.supplies.Attach()
	paymentsCh, detachPayments := d.payments.Attach()
	stop := make(chan struct{})

	go func() {
		var farmers []domain.Farmer
		var entries []domain.SupplyEntry
		var payments []domain.Payment
		for {
			select {
			case f, ok := <-farmersCh:
				if !ok {
					return
				}
				farmers = f
			case e, ok := <-suppliesCh:
				if !ok {
					return
				}
				entries = e
			case p, ok := <-paymentsCh:
				if !ok {
					return
				}
				payments = p
			case <-stop:
				return
			}
			summary := Summary{
				FarmerCount:   len(farmers),
				EntryCount:    len(entries),
				PaymentCount:  len(payments),
				TotalRevenue:  TotalRevenue(entries),
				TotalPayments: TotalPayments(payments),
				Outstanding:   TotalOutstanding(farmers),
			}
			select {
			case out <- summary:
			default:
				select {
				case <-out:
				default:
				}
				select {
				case out <- summary:
				default:
				}
			}
		}
	}()

	var once sync.Once
	detach := func() {
		once.Do(func() {
			close(stop)
			detachFarmers()
			detachSupplies()
			detachPayments()
		})
	}
	return out, detach
}

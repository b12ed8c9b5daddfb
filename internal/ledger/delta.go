// Package ledger keeps each farmer's running balance consistent with the
// supply entries and payments recorded against it. Every mutation of a
// record reduces to one or two signed balance deltas, applied to the farmer
// document through the store's atomic increment. Positive balance means the
// farmer owes money.
package ledger

import "waterledger/internal/billing"

// Delta is the signed adjustment one mutation implies for one farmer's
// stored balance.
type Delta struct {
	FarmerID string
	Amount   float64
}

// ForSupplyCreate derives the delta for a newly created supply entry.
// Drafts contribute nothing.
func ForSupplyCreate(status, farmerID string, amount float64) []Delta {
	if status != billing.StatusCompleted {
		return nil
	}
	return []Delta{{FarmerID: farmerID, Amount: amount}}
}

// ForSupplyUpdate derives the deltas for an edited supply entry.
//
// A draft promoted to completed contributes its full new amount as a fresh
// delta: the draft contributed nothing, so there is no old amount to diff
// against, even when the entry was reassigned in the same edit. A completed
// entry demoted back to draft withdraws its prior contribution. A completed
// entry staying completed diffs the amounts, or moves the full old and new
// amounts when the farmer changed.
func ForSupplyUpdate(oldStatus, newStatus, oldFarmerID, newFarmerID string, oldAmount, newAmount float64) []Delta {
	oldCompleted := oldStatus == billing.StatusCompleted
	newCompleted := newStatus == billing.StatusCompleted

	switch {
	case !oldCompleted && newCompleted:
		return []Delta{{FarmerID: newFarmerID, Amount: newAmount}}
	case oldCompleted && !newCompleted:
		return []Delta{{FarmerID: oldFarmerID, Amount: -oldAmount}}
	case !oldCompleted && !newCompleted:
		return nil
	}

	if oldFarmerID != newFarmerID {
		return []Delta{
			{FarmerID: oldFarmerID, Amount: -oldAmount},
			{FarmerID: newFarmerID, Amount: newAmount},
		}
	}
	diff := newAmount - oldAmount
	if diff == 0 {
		return nil
	}
	return []Delta{{FarmerID: newFarmerID, Amount: diff}}
}

// ForSupplyDelete reverses the contribution of a deleted supply entry.
// Deleting a draft touches no balance.
func ForSupplyDelete(status, farmerID string, amount float64) []Delta {
	if status != billing.StatusCompleted {
		return nil
	}
	return []Delta{{FarmerID: farmerID, Amount: -amount}}
}

// ForPaymentCreate derives the delta for a new payment: it reduces what the
// farmer owes.
func ForPaymentCreate(farmerID string, amount float64) []Delta {
	return []Delta{{FarmerID: farmerID, Amount: -amount}}
}

// ForPaymentUpdate derives the delta for an amount edit on a payment.
func ForPaymentUpdate(farmerID string, oldAmount, newAmount float64) []Delta {
	diff := newAmount - oldAmount
	if diff == 0 {
		return nil
	}
	return []Delta{{FarmerID: farmerID, Amount: -diff}}
}

// ForPaymentDelete reverses the credit of a deleted payment.
func ForPaymentDelete(farmerID string, amount float64) []Delta {
	return []Delta{{FarmerID: farmerID, Amount: amount}}
}

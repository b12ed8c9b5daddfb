package domain

import (
	"time"

	"waterledger/internal/docstore"
)

// Payment is money received from a farmer. It always reduces the balance by
// its amount, regardless of what the farmer currently owes.
type Payment struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	FamilyID      string    `json:"familyId"`
	FarmerID      string    `json:"farmerId" validate:"required"`
	FarmerName    string    `json:"farmerName"`
	Amount        float64   `json:"amount" validate:"gt=0"`
	PaymentDate   string    `json:"paymentDate" validate:"required,datetime=2006-01-02"`
	PaymentMethod string    `json:"paymentMethod" validate:"required"`
	TransactionID string    `json:"transactionId,omitempty"`
	Remarks       string    `json:"remarks,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Document maps the payment into its stored form.
func (p Payment) Document() (docstore.Document, error) {
	return encodeRecord(p)
}

// PaymentFromDocument decodes a stored payment.
func PaymentFromDocument(doc docstore.Document) (Payment, error) {
	return decodeRecord[Payment](doc)
}

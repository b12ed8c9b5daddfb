// Package domain holds the three record kinds owned by the remote store:
// farmers, supply entries and payments. The local process never holds an
// authoritative copy; every value here is a projection that the next
// change notification may overwrite.
package domain

import (
	"time"

	"waterledger/internal/docstore"
)

// Farmer is a billed account. Balance is a signed running total, positive
// meaning the farmer owes money. It is never written directly: the ledger
// engine mutates it through atomic increments only.
type Farmer struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	FamilyID     string    `json:"familyId"`
	Name         string    `json:"name" validate:"required"`
	Mobile       string    `json:"mobile,omitempty"`
	FarmLocation string    `json:"farmLocation,omitempty"`
	DefaultRate  float64   `json:"defaultRate"`
	Balance      float64   `json:"balance"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Document maps the farmer into its stored form.
func (f Farmer) Document() (docstore.Document, error) {
	return encodeRecord(f)
}

// FarmerFromDocument decodes a stored farmer.
func FarmerFromDocument(doc docstore.Document) (Farmer, error) {
	return decodeRecord[Farmer](doc)
}

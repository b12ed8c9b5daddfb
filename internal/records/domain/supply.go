package domain

import (
	"time"

	"waterledger/internal/docstore"
)

// SupplyEntry is one water supply session, billed by time or by meter.
// Drafts may be arbitrarily incomplete; only a completed entry contributes
// to the farmer's balance.
type SupplyEntry struct {
	ID            string  `json:"id"`
	UserID        string  `json:"userId"`
	FamilyID      string  `json:"familyId"`
	FarmerID      string  `json:"farmerId" validate:"required"`
	FarmerName    string  `json:"farmerName"`
	Date          string  `json:"date"`
	BillingMethod string  `json:"billingMethod" validate:"required,oneof=time meter"`
	StartTime     string  `json:"startTime,omitempty"`
	StopTime      string  `json:"stopTime,omitempty"`
	PauseDuration float64 `json:"pauseDuration"`

	// Meter counters tick in hundredths of an hour; nil means not captured.
	MeterReadingStart *float64 `json:"meterReadingStart,omitempty"`
	MeterReadingEnd   *float64 `json:"meterReadingEnd,omitempty"`

	TotalTimeUsed float64   `json:"totalTimeUsed"`
	Rate          float64   `json:"rate"`
	Amount        float64   `json:"amount"`
	Remarks       string    `json:"remarks,omitempty"`
	Status        string    `json:"status" validate:"required,oneof=draft completed"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Document maps the entry into its stored form.
func (e SupplyEntry) Document() (docstore.Document, error) {
	return encodeRecord(e)
}

// SupplyEntryFromDocument decodes a stored supply entry.
func SupplyEntryFromDocument(doc docstore.Document) (SupplyEntry, error) {
	return decodeRecord[SupplyEntry](doc)
}

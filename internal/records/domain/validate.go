package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"waterledger/internal/billing"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks structural fields only. Balance is never validated; the
// ledger owns it.
func (f Farmer) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", billing.ErrValidation, err)
	}
	return nil
}

// Validate enforces the completion contract. A draft needs only a farmer, a
// billing method and a recognised status; a completed entry must carry every
// field its billing method bills from.
func (e SupplyEntry) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: %v", billing.ErrValidation, err)
	}
	if e.Status != billing.StatusCompleted {
		return nil
	}
	if e.Date == "" {
		return fmt.Errorf("%w: date is required", billing.ErrValidation)
	}
	if e.Rate <= 0 {
		return fmt.Errorf("%w: rate must be positive", billing.ErrValidation)
	}
	switch e.BillingMethod {
	case billing.MethodTime:
		if e.StartTime == "" || e.StopTime == "" {
			return fmt.Errorf("%w: start and stop times are required", billing.ErrValidation)
		}
	case billing.MethodMeter:
		if e.MeterReadingStart == nil || e.MeterReadingEnd == nil {
			return fmt.Errorf("%w: meter readings are required", billing.ErrValidation)
		}
		if *e.MeterReadingEnd <= *e.MeterReadingStart {
			return fmt.Errorf("%w: end reading must exceed start reading", billing.ErrValidation)
		}
	}
	return nil
}

// Validate checks a payment before it is written.
func (p Payment) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", billing.ErrValidation, err)
	}
	return nil
}

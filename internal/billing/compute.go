package billing

import (
	"errors"
	"fmt"
)

// ErrValidation marks input errors that must abort a mutation before any
// write is issued. Callers test with errors.Is.
var ErrValidation = errors.New("validation failed")

// UsageInput carries the raw billing form fields for one supply entry.
type UsageInput struct {
	Method        string
	Status        string
	StartTime     string
	StopTime      string
	PauseDuration float64
	MeterStart    *float64
	MeterEnd      *float64
	Rate          float64
}

// Computation is the derived pair stored on the entry.
type Computation struct {
	Hours  float64
	Amount float64
}

// ComputeUsage derives billable hours and amount from raw inputs.
//
// A completed entry enforces required fields, rate positivity and meter
// ordering. A draft skips all of that and computes whatever the partial
// inputs allow, leaving the rest at zero; meter drafts keep an unclamped
// (possibly negative) hour value, matching how the billing form previews
// partial entries.
func ComputeUsage(in UsageInput) (Computation, error) {
	switch in.Method {
	case MethodTime:
		return computeTime(in)
	case MethodMeter:
		return computeMeter(in)
	case "":
		if in.Status == StatusDraft {
			return Computation{}, nil
		}
		return Computation{}, fmt.Errorf("%w: billing method is required", ErrValidation)
	default:
		return Computation{}, fmt.Errorf("%w: unknown billing method %q", ErrValidation, in.Method)
	}
}

func computeTime(in UsageInput) (Computation, error) {
	if in.StartTime == "" || in.StopTime == "" {
		if in.Status == StatusDraft {
			return Computation{}, nil
		}
		return Computation{}, fmt.Errorf("%w: start and stop times are required for time-based billing", ErrValidation)
	}
	hours, err := EffectiveTimeHours(in.StartTime, in.StopTime, in.PauseDuration)
	if err != nil {
		if in.Status == StatusDraft {
			return Computation{}, nil
		}
		return Computation{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if in.Status != StatusDraft && in.Rate <= 0 {
		return Computation{}, fmt.Errorf("%w: rate must be greater than zero", ErrValidation)
	}
	return Computation{Hours: hours, Amount: Amount(hours, in.Rate)}, nil
}

func computeMeter(in UsageInput) (Computation, error) {
	if in.MeterStart == nil || in.MeterEnd == nil {
		if in.Status == StatusDraft {
			return Computation{}, nil
		}
		return Computation{}, fmt.Errorf("%w: meter readings are required for meter-based billing", ErrValidation)
	}
	if in.Status != StatusDraft {
		if *in.MeterEnd <= *in.MeterStart {
			return Computation{}, fmt.Errorf("%w: end meter reading must be greater than start reading", ErrValidation)
		}
		if in.Rate <= 0 {
			return Computation{}, fmt.Errorf("%w: rate must be greater than zero", ErrValidation)
		}
	}
	hours := HoursFromMeter(*in.MeterEnd) - HoursFromMeter(*in.MeterStart)
	return Computation{Hours: hours, Amount: Amount(hours, in.Rate)}, nil
}

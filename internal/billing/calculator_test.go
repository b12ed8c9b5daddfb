package billing

import (
	"errors"
	"math"
	"testing"
)

func TestHoursFromMeter(t *testing.T) {
	if got := HoursFromMeter(1050); got != 10.5 {
		t.Fatalf("expected 10.5, got %v", got)
	}
	if got := HoursFromMeter(0); got != 0.0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestAmount(t *testing.T) {
	if got := Amount(5, 100); got != 500 {
		t.Fatalf("expected 500, got %v", got)
	}
	for _, rate := range []float64{0, 1, 75.5, 1000} {
		if got := Amount(0, rate); got != 0 {
			t.Fatalf("rate %v: expected 0, got %v", rate, got)
		}
	}
}

func TestHoursFromTime(t *testing.T) {
	got, err := HoursFromTime("08:00", "12:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 4.5 {
		t.Fatalf("expected 4.5, got %v", got)
	}

	// No overnight wrap: a stop before the start goes negative.
	got, err = HoursFromTime("10:00", "09:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != -1 {
		t.Fatalf("expected -1, got %v", got)
	}

	if _, err := HoursFromTime("ten", "09:00"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := HoursFromTime("25:00", "09:00"); err == nil {
		t.Fatal("expected range error")
	}
}

func TestEffectiveTimeHoursClampsAtZero(t *testing.T) {
	got, err := EffectiveTimeHours("10:00", "09:00", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected clamp to 0, got %v", got)
	}

	got, err = EffectiveTimeHours("08:00", "10:00", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Fatalf("pause longer than session: expected 0, got %v", got)
	}

	got, err = EffectiveTimeHours("08:00", "12:00", 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-3.5) > 1e-9 {
		t.Fatalf("expected 3.5, got %v", got)
	}
}

func TestComputeUsageTimeCompleted(t *testing.T) {
	comp, err := ComputeUsage(UsageInput{
		Method:    MethodTime,
		Status:    StatusCompleted,
		StartTime: "06:00",
		StopTime:  "11:00",
		Rate:      100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comp.Hours != 5 || comp.Amount != 500 {
		t.Fatalf("expected 5h/500, got %v/%v", comp.Hours, comp.Amount)
	}
}

func TestComputeUsageCompletedRequiresFields(t *testing.T) {
	cases := []UsageInput{
		{Method: MethodTime, Status: StatusCompleted, StartTime: "06:00", Rate: 100},
		{Method: MethodTime, Status: StatusCompleted, StartTime: "06:00", StopTime: "11:00"},
		{Method: MethodMeter, Status: StatusCompleted, Rate: 100},
		{Status: StatusCompleted},
	}
	for i, in := range cases {
		if _, err := ComputeUsage(in); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestComputeUsageMeterOrdering(t *testing.T) {
	start, end := 1200.0, 1050.0
	_, err := ComputeUsage(UsageInput{
		Method:     MethodMeter,
		Status:     StatusCompleted,
		MeterStart: &start,
		MeterEnd:   &end,
		Rate:       50,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for end <= start, got %v", err)
	}

	// Drafts tolerate reversed readings and keep the unclamped value.
	comp, err := ComputeUsage(UsageInput{
		Method:     MethodMeter,
		Status:     StatusDraft,
		MeterStart: &start,
		MeterEnd:   &end,
		Rate:       50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comp.Hours != -1.5 {
		t.Fatalf("expected -1.5 draft hours, got %v", comp.Hours)
	}
}

func TestComputeUsageDraftSkipsValidation(t *testing.T) {
	comp, err := ComputeUsage(UsageInput{Method: MethodTime, Status: StatusDraft})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comp.Hours != 0 || comp.Amount != 0 {
		t.Fatalf("expected zero computation, got %+v", comp)
	}

	comp, err = ComputeUsage(UsageInput{Status: StatusDraft})
	if err != nil {
		t.Fatalf("draft without method: unexpected error: %v", err)
	}
	if comp != (Computation{}) {
		t.Fatalf("expected zero computation, got %+v", comp)
	}
}

func TestComputeUsageMeterCompleted(t *testing.T) {
	start, end := 1050.0, 1250.0
	comp, err := ComputeUsage(UsageInput{
		Method:     MethodMeter,
		Status:     StatusCompleted,
		MeterStart: &start,
		MeterEnd:   &end,
		Rate:       100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comp.Hours != 2 || comp.Amount != 200 {
		t.Fatalf("expected 2h/200, got %v/%v", comp.Hours, comp.Amount)
	}
}

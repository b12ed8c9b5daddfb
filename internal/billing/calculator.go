package billing

import (
	"fmt"
	"strconv"
	"strings"
)

// Billing methods for a supply entry.
const (
	MethodTime  = "time"
	MethodMeter = "meter"
)

// Entry statuses.
const (
	StatusDraft     = "draft"
	StatusCompleted = "completed"
)

// HoursFromTime returns stop minus start as fractional hours. Times are
// HH:MM wall-clock strings. There is no overnight wrap: a stop before the
// start yields a negative value, which the caller must clamp or reject.
func HoursFromTime(start, stop string) (float64, error) {
	startHour, err := parseClock(start)
	if err != nil {
		return 0, fmt.Errorf("start time %q: %w", start, err)
	}
	stopHour, err := parseClock(stop)
	if err != nil {
		return 0, fmt.Errorf("stop time %q: %w", stop, err)
	}
	return stopHour - startHour, nil
}

// HoursFromMeter decodes a fixed-point meter reading into hours. The last
// two digits of the reading are hundredths of an hour: 1050 -> 10.5.
func HoursFromMeter(reading float64) float64 {
	return reading / 100.0
}

// Amount returns hours times rate. No rounding is applied here; display
// formatting is the caller's concern.
func Amount(hours, rate float64) float64 {
	return hours * rate
}

// EffectiveTimeHours returns the billable hours for a time-based entry:
// elapsed wall-clock hours minus the pause duration, clamped at zero so a
// pause longer than the session never produces a negative amount.
func EffectiveTimeHours(start, stop string, pauseHours float64) (float64, error) {
	elapsed, err := HoursFromTime(start, stop)
	if err != nil {
		return 0, err
	}
	effective := elapsed - pauseHours
	if effective < 0 {
		return 0, nil
	}
	return effective, nil
}

func parseClock(value string) (float64, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM")
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM")
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM")
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("clock value out of range")
	}
	return float64(hour) + float64(minute)/60.0, nil
}

package billing

import "errors"

var (
	// ErrNegativeRate is returned when a tariff rate is negative.
	ErrNegativeRate = errors.New("billing: negative rate")
	// ErrNegativeUsage is returned when a usage figure is negative.
	ErrNegativeUsage = errors.New("billing: negative usage")
	// ErrEmptyMeterRef is returned when usage has no meter reference.
	ErrEmptyMeterRef = errors.New("billing: empty meter ref")
)

package telemetry

import "fmt"

// FetchError reports a failed query for one device. Other devices of the same
// batch are unaffected.
type FetchError struct {
	DeviceID string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("telemetry: fetch device %s: %v", e.DeviceID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

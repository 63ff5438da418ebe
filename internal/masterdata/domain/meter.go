package masterdata

import (
	"context"
	"errors"
	"strings"
)

// MeterDirectoryEntry binds a stable logical meter reference to the physical
// device (slave) id currently installed for it.
type MeterDirectoryEntry struct {
	Ref          string
	DeviceID     string
	Name         string
	LocationPath []string
	GroupID      string
}

// Validate checks entry invariants.
func (e MeterDirectoryEntry) Validate() error {
	if e.Ref == "" {
		return errors.New("meter entry: empty ref")
	}
	if e.DeviceID == "" {
		return errors.New("meter entry: empty device id")
	}
	return nil
}

// DisplayName returns the name, falling back to the reference.
func (e MeterDirectoryEntry) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Ref
}

// Location joins the location path as "Site / Building / Floor".
func (e MeterDirectoryEntry) Location() string {
	return strings.Join(e.LocationPath, " / ")
}

// MeterDirectory lists the meters of the asset tree.
type MeterDirectory interface {
	ListMeters(ctx context.Context) ([]MeterDirectoryEntry, error)
}

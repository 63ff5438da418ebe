package application

import (
	"context"
	"errors"
	"fmt"

	masterdata "metering-dashboard/internal/masterdata/domain"
)

// MeterResolver loads directory snapshots.
type MeterResolver struct {
	directory masterdata.MeterDirectory
}

// NewMeterResolver constructs a resolver.
func NewMeterResolver(directory masterdata.MeterDirectory) (*MeterResolver, error) {
	if directory == nil {
		return nil, errors.New("meter resolver: nil directory")
	}
	return &MeterResolver{directory: directory}, nil
}

// Snapshot reads the directory once. A run takes one snapshot at its start and
// resolves every reference against it.
func (r *MeterResolver) Snapshot(ctx context.Context) (*Snapshot, error) {
	entries, err := r.directory.ListMeters(ctx)
	if err != nil {
		return nil, fmt.Errorf("meter resolver: list meters: %w", err)
	}
	return NewSnapshot(entries), nil
}

// Snapshot is an immutable view of the meter directory.
type Snapshot struct {
	byRef   map[string]masterdata.MeterDirectoryEntry
	byGroup map[string][]masterdata.MeterDirectoryEntry
}

// NewSnapshot indexes entries. Invalid entries are skipped; the first entry
// wins for duplicate refs.
func NewSnapshot(entries []masterdata.MeterDirectoryEntry) *Snapshot {
	s := &Snapshot{
		byRef:   make(map[string]masterdata.MeterDirectoryEntry, len(entries)),
		byGroup: make(map[string][]masterdata.MeterDirectoryEntry),
	}
	for _, entry := range entries {
		if entry.Validate() != nil {
			continue
		}
		if _, exists := s.byRef[entry.Ref]; exists {
			continue
		}
		s.byRef[entry.Ref] = entry
		if entry.GroupID != "" {
			s.byGroup[entry.GroupID] = append(s.byGroup[entry.GroupID], entry)
		}
	}
	return s
}

// Lookup returns the entry for an exact reference.
func (s *Snapshot) Lookup(ref string) (masterdata.MeterDirectoryEntry, bool) {
	if s == nil {
		return masterdata.MeterDirectoryEntry{}, false
	}
	entry, ok := s.byRef[ref]
	return entry, ok
}

// Group lists the entries of a meter group in directory order.
func (s *Snapshot) Group(groupID string) []masterdata.MeterDirectoryEntry {
	if s == nil {
		return nil
	}
	entries := s.byGroup[groupID]
	out := make([]masterdata.MeterDirectoryEntry, len(entries))
	copy(out, entries)
	return out
}

// Resolve maps each reference to its entry, keeping request order. Unknown
// references are returned individually as resolution errors.
func (s *Snapshot) Resolve(refs []string) ([]masterdata.MeterDirectoryEntry, []*masterdata.ResolutionError) {
	resolved := make([]masterdata.MeterDirectoryEntry, 0, len(refs))
	var misses []*masterdata.ResolutionError
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		entry, ok := s.Lookup(ref)
		if !ok {
			misses = append(misses, &masterdata.ResolutionError{Kind: masterdata.RefKindMeter, Ref: ref})
			continue
		}
		resolved = append(resolved, entry)
	}
	return resolved, misses
}

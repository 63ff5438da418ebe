package memory

import (
	"context"
	"sync"

	masterdata "metering-dashboard/internal/masterdata/domain"
)

// Directory is an in-memory meter and recipient directory.
type Directory struct {
	mu         sync.RWMutex
	meters     []masterdata.MeterDirectoryEntry
	recipients map[string]masterdata.Recipient
	groups     map[string][]string
}

// NewDirectory constructs an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		recipients: make(map[string]masterdata.Recipient),
		groups:     make(map[string][]string),
	}
}

// PutMeter adds or replaces a meter entry.
func (d *Directory) PutMeter(entry masterdata.MeterDirectoryEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.meters {
		if d.meters[i].Ref == entry.Ref {
			d.meters[i] = entry
			return
		}
	}
	d.meters = append(d.meters, entry)
}

// RemoveMeter deletes a meter entry.
func (d *Directory) RemoveMeter(ref string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.meters {
		if d.meters[i].Ref == ref {
			d.meters = append(d.meters[:i], d.meters[i+1:]...)
			return
		}
	}
}

// PutRecipient adds or replaces a recipient.
func (d *Directory) PutRecipient(recipient masterdata.Recipient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recipients[recipient.ID] = recipient
}

// SetGroup replaces the members of a group.
func (d *Directory) SetGroup(groupID string, memberIDs ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups[groupID] = append([]string(nil), memberIDs...)
}

// ListMeters implements masterdata.MeterDirectory.
func (d *Directory) ListMeters(ctx context.Context) ([]masterdata.MeterDirectoryEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]masterdata.MeterDirectoryEntry, len(d.meters))
	copy(out, d.meters)
	return out, nil
}

// GetRecipient implements masterdata.RecipientDirectory.
func (d *Directory) GetRecipient(ctx context.Context, id string) (*masterdata.Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	recipient, ok := d.recipients[id]
	if !ok {
		return nil, nil
	}
	return &recipient, nil
}

// ListGroupMembers implements masterdata.RecipientDirectory. Unknown member ids
// are skipped.
func (d *Directory) ListGroupMembers(ctx context.Context, groupID string) ([]masterdata.Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := d.groups[groupID]
	out := make([]masterdata.Recipient, 0, len(ids))
	for _, id := range ids {
		if recipient, ok := d.recipients[id]; ok {
			out = append(out, recipient)
		}
	}
	return out, nil
}

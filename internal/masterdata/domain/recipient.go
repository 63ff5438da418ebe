package masterdata

import (
	"context"
	"strings"
)

// Recipient is an individual that can receive reports.
type Recipient struct {
	ID          string
	Name        string
	Email       string
	MessagingID string
}

// HasEmail reports whether the recipient has a usable email address.
func (r Recipient) HasEmail() bool {
	email := strings.TrimSpace(r.Email)
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}

// HasMessagingID reports whether the recipient has a messaging id.
func (r Recipient) HasMessagingID() bool {
	return strings.TrimSpace(r.MessagingID) != ""
}

// RecipientDirectory resolves recipients and expands groups.
type RecipientDirectory interface {
	// GetRecipient returns nil, nil when no recipient has the id.
	GetRecipient(ctx context.Context, id string) (*Recipient, error)
	ListGroupMembers(ctx context.Context, groupID string) ([]Recipient, error)
}

// RecipientSet is explicit recipient ids, a group id, or both.
type RecipientSet struct {
	IDs     []string `json:"ids,omitempty"`
	GroupID string   `json:"group_id,omitempty"`
}

// Empty reports whether the set names nobody.
func (s RecipientSet) Empty() bool {
	return len(s.IDs) == 0 && s.GroupID == ""
}

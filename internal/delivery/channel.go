package delivery

import (
	"context"

	masterdata "metering-dashboard/internal/masterdata/domain"
	reports "metering-dashboard/internal/reports/domain"
)

// Kind names a delivery channel.
type Kind string

const (
	KindEmail     Kind = "email"
	KindMessaging Kind = "messaging"
)

// Message is the rendered notification content. Link, when set, points at the
// archived artifact.
type Message struct {
	Subject string
	Body    string
	Link    string
}

// Channel sends an artifact to one address.
type Channel interface {
	Kind() Kind
	// Address returns the recipient's address on this channel, false if none.
	Address(recipient masterdata.Recipient) (string, bool)
	Send(ctx context.Context, address string, artifact reports.Artifact, msg Message) error
}

package delivery

import (
	"errors"
	"fmt"
)

var (
	// ErrNoValidRecipients is returned when a recipient set yields nobody with
	// an address for the channel.
	ErrNoValidRecipients = errors.New("delivery: no valid recipients")
	// ErrNilChannel is returned when dispatching without a channel.
	ErrNilChannel = errors.New("delivery: nil channel")
)

// DeliveryError reports one recipient's failed send.
type DeliveryError struct {
	Channel     Kind
	RecipientID string
	Address     string
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery: %s to %s failed: %v", e.Channel, e.RecipientID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

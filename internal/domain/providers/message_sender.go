package providers

import "context"

// MessageSender defines the interface to the outbound SMS transport. The
// transport is opaque: the delivery layer only sees an external message ID on
// success and a classifiable error on failure.
type MessageSender interface {
	// Deliver sends one message and returns the transport's message ID
	Deliver(ctx context.Context, phone, message string) (string, error)

	// MessageStatus fetches the transport-side delivery status for a
	// previously accepted message ID ("sent", "delivered", "failed")
	MessageStatus(ctx context.Context, messageID string) (string, error)
}

// internal/domain/delivery/client.go
package delivery

import "context"

// Client sends an approved message to a student's messaging handle.
// The handle is an opaque identifier interpreted by the concrete surface
// (for the Telegram adapter it is a chat ID).
type Client interface {
	Send(ctx context.Context, handle string, text string) error
}

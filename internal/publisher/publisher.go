// Package publisher defines the ingest completion event contract.
package publisher

import "context"

// Publisher pushes ingest completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// IngestEvent is published after a payload resolves to a stored asset.
type IngestEvent struct {
	ImageKey    string `json:"image_key"`
	Brand       string `json:"brand,omitempty"`
	PayloadHost string `json:"payload_host,omitempty"`
}

// NoOp discards events; used when publishing is disabled.
type NoOp struct{}

// Publish does nothing and always succeeds.
func (NoOp) Publish(context.Context, string, any) (string, error) {
	return "", nil
}

package bus

import (
	"context"
	"encoding/json"
)

// Message carries one serialized progress event between instances.
type Message struct {
	RunID string          `json:"run_id"`
	Event json.RawMessage `json:"event"`
}

type Bus interface {
	Publish(ctx context.Context, msg Message) error
	StartForwarder(ctx context.Context, onMsg func(m Message)) error
	Close() error
}

package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Notification is one outbox event fanned out to a delivery channel.
type Notification struct {
	EventID   string
	ExportID  snowflake.ID
	EventType string
	Data      map[string]any
}

// Provider delivers notifications over one channel. Send must respect the
// context deadline; a failed send is logged and counted, never retried by the
// dispatcher.
type Provider interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

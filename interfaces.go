package zwa

import (
	"context"
	"github.com/shimmeringbee/zwa/descriptor"
	"github.com/shimmeringbee/zwa/poll"
)

// Provider is the Z-Wave controller driver the network runs on. It transmits commands, walks the endpoints and
// interfaces of a node, and produces NodeAddedEvent, NodeUpdatedEvent, NodeRemovedEvent and ReportEvent values
// from ReadEvent.
type Provider interface {
	poll.Executor
	descriptor.Walker
	ReadEvent(ctx context.Context) (any, error)
}

package zwa

import "github.com/shimmeringbee/zwa/descriptor"

type NodeAddedEvent struct {
	Node descriptor.NodeDescriptor
}

type NodeUpdatedEvent struct {
	Node descriptor.NodeDescriptor
}

type NodeRemovedEvent struct {
	NodeID descriptor.NodeID
}

// ReportEvent is a report command parsed from a node. InterfaceID is filled in by the network when the report is
// re-published, zero if the interface is not known.
type ReportEvent struct {
	InterfaceID  uint32
	NodeID       descriptor.NodeID
	Endpoint     descriptor.EndpointID
	CommandClass descriptor.CommandClass
	Command      descriptor.Command
	Payload      []byte
}

type internalNodeAdded struct {
	node descriptor.NodeDescriptor
}

type internalNodeUpdated struct {
	node descriptor.NodeDescriptor
}

type internalNodeRemoved struct {
	nodeID descriptor.NodeID
}

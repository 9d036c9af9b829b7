package descriptor

import "fmt"

type NodeID uint8
type EndpointID uint8
type CommandClass uint8
type Command uint8

func (n NodeID) String() string {
	return fmt.Sprintf("%d", uint8(n))
}

func (c CommandClass) String() string {
	return fmt.Sprintf("0x%02x", uint8(c))
}

func (c Command) String() string {
	return fmt.Sprintf("0x%02x", uint8(c))
}

// Type discriminates the kind of container an id refers to.
type Type int

const (
	InvalidType Type = iota
	NodeType
	EndpointType
	InterfaceType
)

var typeNames = map[Type]string{
	InvalidType:   "Invalid",
	NodeType:      "Node",
	EndpointType:  "Endpoint",
	InterfaceType: "Interface",
}

func (t Type) String() string {
	return typeNames[t]
}

// NodeDescriptor is a snapshot of a node on the network. ID is assigned by the Tree and is zero until the node
// has been added.
type NodeDescriptor struct {
	ID     uint32
	NodeID NodeID

	// Listening nodes keep their receiver on, non listening nodes are either sleeping or frequently listening.
	Listening bool
	// Beam is set for frequently listening (FLiRS) nodes that must be woken with a beam before each frame.
	Beam bool

	Basic    uint8
	Generic  uint8
	Specific uint8
}

// EndpointDescriptor is a snapshot of an endpoint of a node, endpoint zero is the root device.
type EndpointDescriptor struct {
	ID       uint32
	NodeID   NodeID
	Endpoint EndpointID

	Generic  uint8
	Specific uint8
}

// InterfaceDescriptor is a snapshot of a command class supported on an endpoint, it carries everything needed
// to address a command to it.
type InterfaceDescriptor struct {
	ID           uint32
	NodeID       NodeID
	Endpoint     EndpointID
	CommandClass CommandClass
	Version      uint8

	Secure bool
	Beam   bool
}

func (i InterfaceDescriptor) String() string {
	return fmt.Sprintf("%d.%d:%s", uint8(i.NodeID), uint8(i.Endpoint), i.CommandClass)
}

// Walker iterates the live network objects of a node, used to rebuild a node's subtree.
type Walker interface {
	Endpoints(NodeID) ([]EndpointDescriptor, error)
	Interfaces(NodeID, EndpointID) ([]InterfaceDescriptor, error)
}

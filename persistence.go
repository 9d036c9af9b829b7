package zwa

import (
	"github.com/shimmeringbee/persistence"
	"github.com/shimmeringbee/zwa/descriptor"
	"strconv"
)

const pollSectionKey = "poll"
const nodeSectionKey = "node"

const NodeListeningKey = "Listening"
const NodeBeamKey = "Beam"
const NodeBasicKey = "Basic"
const NodeGenericKey = "Generic"
const NodeSpecificKey = "Specific"

func (n *Network) sectionForPoller() persistence.Section {
	return n.section.Section(pollSectionKey)
}

func (n *Network) sectionForNode(id descriptor.NodeID) persistence.Section {
	return n.section.Section(nodeSectionKey, strconv.Itoa(int(id)))
}

func (n *Network) sectionRemoveNode(id descriptor.NodeID) bool {
	return n.section.Section(nodeSectionKey).SectionDelete(strconv.Itoa(int(id)))
}

func (n *Network) nodeListFromPersistence() []descriptor.NodeID {
	var nodeList []descriptor.NodeID

	for _, k := range n.section.Section(nodeSectionKey).SectionKeys() {
		if id, err := strconv.ParseUint(k, 10, 8); err == nil {
			nodeList = append(nodeList, descriptor.NodeID(id))
		}
	}

	return nodeList
}

func (n *Network) persistNode(d descriptor.NodeDescriptor) {
	s := n.sectionForNode(d.NodeID)

	s.Set(NodeListeningKey, d.Listening)
	s.Set(NodeBeamKey, d.Beam)
	s.Set(NodeBasicKey, int(d.Basic))
	s.Set(NodeGenericKey, int(d.Generic))
	s.Set(NodeSpecificKey, int(d.Specific))
}

func (n *Network) nodeFromPersistence(id descriptor.NodeID) descriptor.NodeDescriptor {
	s := n.sectionForNode(id)

	d := descriptor.NodeDescriptor{NodeID: id}
	d.Listening, _ = s.Bool(NodeListeningKey)
	d.Beam, _ = s.Bool(NodeBeamKey)

	basic, _ := s.Int(NodeBasicKey)
	generic, _ := s.Int(NodeGenericKey)
	specific, _ := s.Int(NodeSpecificKey)

	d.Basic = uint8(basic)
	d.Generic = uint8(generic)
	d.Specific = uint8(specific)

	return d
}

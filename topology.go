package zwa

import (
	"context"
	"fmt"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/zwa/descriptor"
	"github.com/shimmeringbee/zwa/poll"
	"github.com/shimmeringbee/zwa/rules"
	"sort"
)

// RuleTokenFlag marks the tokens of polls created by rules, the low byte carries the node id.
const RuleTokenFlag uint32 = 0x80000000

func ruleToken(id descriptor.NodeID) uint32 {
	return RuleTokenFlag | uint32(id)
}

func (n *Network) nodeAddedCallback(ctx context.Context, e internalNodeAdded) error {
	return n.rebuildNode(ctx, e.node, func(d descriptor.NodeDescriptor) any { return NodeAddedEvent{Node: d} })
}

func (n *Network) nodeUpdatedCallback(ctx context.Context, e internalNodeUpdated) error {
	return n.rebuildNode(ctx, e.node, func(d descriptor.NodeDescriptor) any { return NodeUpdatedEvent{Node: d} })
}

// rebuildNode replaces the node's subtree, persists the node and replaces any polls rules create for it.
func (n *Network) rebuildNode(pctx context.Context, nd descriptor.NodeDescriptor, event func(descriptor.NodeDescriptor) any) error {
	ctx, end := n.logger.Segment(pctx, "Rebuilding node descriptors.", logwrap.Datum("NodeID", uint8(nd.NodeID)))
	defer end()

	id, err := n.tree.AddOrReplace(nd, n.provider)
	if err != nil {
		return fmt.Errorf("descriptor tree: %w", err)
	}

	node, err := n.tree.Node(id)
	if err != nil {
		return err
	}

	n.persistNode(node)

	n.poller.RemoveByToken(ruleToken(node.NodeID))
	added := n.applyRules(ctx, node)

	n.logger.LogInfo(ctx, "Node descriptors rebuilt.", logwrap.Datum("ID", id), logwrap.Datum("RulePolls", added))

	n.sendEvent(event(node))

	return nil
}

// applyRules evaluates the rule engine against every interface of node, adding the polls it asks for.
func (n *Network) applyRules(ctx context.Context, node descriptor.NodeDescriptor) int {
	endpoints, err := n.tree.Endpoints(node.ID)
	if err != nil {
		return 0
	}

	added := 0

	for _, ep := range endpoints {
		ifaces, err := n.tree.Interfaces(ep.ID)
		if err != nil {
			continue
		}

		for _, iface := range ifaces {
			out, err := n.rules.Execute(rules.InputFor(node, ep, iface))
			if err != nil {
				n.logger.LogWarn(ctx, "Failed to evaluate rules for interface.", logwrap.Datum("Interface", iface.String()), logwrap.Err(err))
				continue
			}

			names := make([]string, 0, len(out.Polls))
			for name := range out.Polls {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				p := out.Polls[name]

				if _, err := n.poller.Add(poll.Request{
					Interface: iface,
					Command:   p.Command,
					Interval:  p.Interval,
					Count:     p.Count,
					Token:     ruleToken(node.NodeID),
				}); err != nil {
					n.logger.LogWarn(ctx, "Failed to add rule poll.", logwrap.Datum("Interface", iface.String()), logwrap.Datum("Poll", name), logwrap.Err(err))
				} else {
					added++
				}
			}
		}
	}

	return added
}

func (n *Network) nodeRemovedCallback(ctx context.Context, e internalNodeRemoved) error {
	n.tree.RemoveNode(e.nodeID)
	n.sectionRemoveNode(e.nodeID)

	if removed, err := n.poller.RemoveNode(e.nodeID); err == nil {
		n.logger.LogDebug(ctx, "Removed polls of departed node.", logwrap.Datum("NodeID", uint8(e.nodeID)), logwrap.Datum("Polls", removed))
	}

	n.sendEvent(NodeRemovedEvent{NodeID: e.nodeID})

	return nil
}

// providerLoad rebuilds the descriptor tree for every persisted node, then restores the persisted polls onto the
// rebuilt interfaces.
func (n *Network) providerLoad() {
	ctx, end := n.logger.Segment(n.ctx, "Loading persistence.")
	defer end()

	for _, id := range n.nodeListFromPersistence() {
		nd := n.nodeFromPersistence(id)

		if _, err := n.tree.AddOrReplace(nd, n.provider); err != nil {
			n.logger.LogWarn(ctx, "Failed to rebuild persisted node.", logwrap.Datum("NodeID", uint8(id)), logwrap.Err(err))
		}
	}

	loaded := n.poller.Load(ctx, func(i descriptor.InterfaceDescriptor) (descriptor.InterfaceDescriptor, bool) {
		return n.tree.FindInterface(i.NodeID, i.Endpoint, i.CommandClass)
	})
	n.logger.LogInfo(ctx, "Persistence loaded.", logwrap.Datum("Nodes", len(n.tree.Nodes())), logwrap.Datum("Polls", loaded))
}

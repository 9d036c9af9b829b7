package zwa

import (
	"context"
	"errors"
	"github.com/shimmeringbee/logwrap"
)

func (n *Network) providerLoop(ctx context.Context) {
	for {
		event, err := n.provider.ReadEvent(ctx)

		if err != nil {
			if errors.Is(err, context.Canceled) {
				n.logger.LogInfo(ctx, "Provider loop terminating due to cancelled context.")
			} else {
				n.logger.LogError(ctx, "Failed to read event from Z-Wave provider.", logwrap.Err(err))
			}
			return
		}

		switch e := event.(type) {
		case NodeAddedEvent:
			n.receiveNodeAddedEvent(ctx, e)
		case NodeUpdatedEvent:
			n.receiveNodeUpdatedEvent(ctx, e)
		case NodeRemovedEvent:
			n.receiveNodeRemovedEvent(ctx, e)
		case ReportEvent:
			n.receiveReportEvent(ctx, e)
		case nil:
		default:
			n.logger.LogDebug(ctx, "Ignoring unknown event from provider.", logwrap.Datum("Event", e))
		}
	}
}

func (n *Network) receiveNodeAddedEvent(ctx context.Context, e NodeAddedEvent) {
	n.logger.LogInfo(ctx, "Node has joined Z-Wave network.", logwrap.Datum("NodeID", uint8(e.Node.NodeID)))

	if err := n.callbacks.Call(ctx, internalNodeAdded{node: e.Node}); err != nil {
		n.logger.LogError(ctx, "Failed to add node.", logwrap.Datum("NodeID", uint8(e.Node.NodeID)), logwrap.Err(err))
	}
}

func (n *Network) receiveNodeUpdatedEvent(ctx context.Context, e NodeUpdatedEvent) {
	n.logger.LogInfo(ctx, "Node has been re-interviewed.", logwrap.Datum("NodeID", uint8(e.Node.NodeID)))

	if err := n.callbacks.Call(ctx, internalNodeUpdated{node: e.Node}); err != nil {
		n.logger.LogError(ctx, "Failed to update node.", logwrap.Datum("NodeID", uint8(e.Node.NodeID)), logwrap.Err(err))
	}
}

func (n *Network) receiveNodeRemovedEvent(ctx context.Context, e NodeRemovedEvent) {
	n.logger.LogInfo(ctx, "Node has left Z-Wave network.", logwrap.Datum("NodeID", uint8(e.NodeID)))

	if err := n.callbacks.Call(ctx, internalNodeRemoved{nodeID: e.NodeID}); err != nil {
		n.logger.LogError(ctx, "Failed to remove node.", logwrap.Datum("NodeID", uint8(e.NodeID)), logwrap.Err(err))
	}
}

// receiveReportEvent offers a report to the poller, to any synchronous request waiting on it, and publishes it.
func (n *Network) receiveReportEvent(ctx context.Context, e ReportEvent) {
	if iface, found := n.tree.FindInterface(e.NodeID, e.Endpoint, e.CommandClass); found {
		e.InterfaceID = iface.ID
	}

	if n.poller.ReportReceived(ctx, e.NodeID, e.CommandClass, e.Command) {
		n.logger.LogTrace(ctx, "Report answered poll.", logwrap.Datum("NodeID", uint8(e.NodeID)), logwrap.Datum("CommandClass", e.CommandClass.String()))
	}

	n.deliverPending(e)
	n.sendEvent(e)
}

package zwa

import (
	"context"
	"fmt"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/retry"
	"github.com/shimmeringbee/zwa/descriptor"
	"github.com/shimmeringbee/zwa/poll"
	"slices"
)

type pendingKey struct {
	nodeID       descriptor.NodeID
	commandClass descriptor.CommandClass
	report       descriptor.Command
}

func (n *Network) addPending(k pendingKey) chan ReportEvent {
	n.pendingLock.Lock()
	defer n.pendingLock.Unlock()

	ch := make(chan ReportEvent, 1)
	n.pending[k] = append(n.pending[k], ch)

	return ch
}

func (n *Network) removePending(k pendingKey, ch chan ReportEvent) {
	n.pendingLock.Lock()
	defer n.pendingLock.Unlock()

	n.pending[k] = slices.DeleteFunc(n.pending[k], func(c chan ReportEvent) bool { return c == ch })

	if len(n.pending[k]) == 0 {
		delete(n.pending, k)
	}
}

func (n *Network) deliverPending(e ReportEvent) {
	n.pendingLock.Lock()
	defer n.pendingLock.Unlock()

	for _, ch := range n.pending[pendingKey{nodeID: e.NodeID, commandClass: e.CommandClass, report: e.Command}] {
		select {
		case ch <- e:
		default:
		}
	}
}

// Request sends a get command to an interface and waits for the report it predicts, retrying on timeout or
// transmit failure. It is independent of the poll queue.
func (n *Network) Request(pctx context.Context, interfaceID uint32, cmd []byte) (ReportEvent, error) {
	n.runLock.Lock()
	started := n.group != nil
	n.runLock.Unlock()

	if !started {
		return ReportEvent{}, ErrNotStarted
	}

	iface, err := n.tree.Interface(interfaceID)
	if err != nil {
		return ReportEvent{}, fmt.Errorf("interface %d: %w", interfaceID, err)
	}

	cc, rpt, err := n.predictor.Predict(cmd)
	if err != nil {
		return ReportEvent{}, err
	}

	k := pendingKey{nodeID: iface.NodeID, commandClass: cc, report: rpt}
	ch := n.addPending(k)
	defer n.removePending(k, ch)

	var received ReportEvent

	err = retry.Retry(pctx, n.cfg.RequestTimeout(), n.cfg.RequestRetries(), func(ctx context.Context) error {
		txResult := make(chan poll.TxStatus, 1)

		if err := n.provider.Execute(ctx, iface, cmd, poll.SendOptions{Beam: iface.Beam}, func(s poll.TxStatus) {
			txResult <- s
		}); err != nil {
			return err
		}

		for {
			select {
			case <-ctx.Done():
				return ErrTimeout
			case s := <-txResult:
				if !s.Success() {
					return ErrTxFailed
				}
			case received = <-ch:
				return nil
			}
		}
	})

	if err != nil {
		n.logger.LogWarn(pctx, "Request failed.", logwrap.Datum("Interface", iface.String()), logwrap.Err(err))
		return ReportEvent{}, err
	}

	return received, nil
}

package poll

import (
	"context"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/zwa/descriptor"
	"github.com/shimmeringbee/zwa/tick"
)

// ReportReceived informs the poller of a report parsed from node. It returns true if the report answered the poll
// in flight. Reports received while the poller is not running are ignored.
func (p *Poller) ReportReceived(ctx context.Context, node descriptor.NodeID, cc descriptor.CommandClass, rpt descriptor.Command) bool {
	stopped, running := p.runState()
	if !running {
		return false
	}

	ev := reportEvent{nodeID: node, commandClass: cc, report: rpt, matched: make(chan bool, 1)}

	select {
	case p.events <- ev:
	case <-stopped:
		return false
	case <-ctx.Done():
		return false
	}

	select {
	case matched := <-ev.matched:
		return matched
	case <-stopped:
		return false
	case <-ctx.Done():
		return false
	}
}

// handleReport correlates a report with the cursor. On a match the next poll is allowed after the time the
// device took to answer plus the minimum poll time, and any further due entry of the same node is fired at once.
func (p *Poller) handleReport(ctx context.Context, r reportEvent) bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	c := &p.cursor

	if !c.awaiting || r.nodeID != c.nodeID || r.commandClass != c.commandClass || r.report != c.report {
		return false
	}

	now := p.clock.Now()

	p.nextPollTm = tick.Add(now, c.cmdTm+p.minPoll)

	c.awaiting = false
	c.commandClass = 0
	c.report = 0

	p.logger.LogDebug(ctx, "Report answered poll.", logwrap.Datum("Handle", c.handle), logwrap.Datum("NodeID", uint8(r.nodeID)), logwrap.Datum("CommandTicks", c.cmdTm))

	if e := p._nextDueOnNode(now, c.nodeID, c.seq); e != nil {
		p._fire(ctx, now, e)
	} else {
		c.nodeLast = true
	}

	return true
}

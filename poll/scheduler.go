package poll

import (
	"context"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/zwa/descriptor"
	"github.com/shimmeringbee/zwa/tick"
)

type reportEvent struct {
	nodeID       descriptor.NodeID
	commandClass descriptor.CommandClass
	report       descriptor.Command
	matched      chan bool
}

type txEvent struct {
	firing uint64
	status TxStatus
}

// schedule is the scheduler goroutine. Every transmission the poller makes is issued from here, either on a tick
// or on a correlated report, so only one poll is ever in flight.
func (p *Poller) schedule(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.clock.C():
			p.step(ctx)
		case ev := <-p.events:
			switch e := ev.(type) {
			case reportEvent:
				matched := p.handleReport(ctx, e)
				if e.matched != nil {
					e.matched <- matched
				}
			case txEvent:
				p.handleTx(e)
			}
		}
	}
}

// step services one wake-up of the tick source.
func (p *Poller) step(ctx context.Context) {
	p.lock.Lock()
	defer p.lock.Unlock()

	now := p.clock.Now()

	if !tick.Expired(now, p.nextPollTm) {
		return
	}

	if p.queue.len() == 0 {
		p.nextPollTm = tick.Add(now, p.minPoll)
		return
	}

	if e := p._nextDue(now); e != nil {
		p._fire(ctx, now, e)
		return
	}

	p.nextPollTm = tick.Add(now, p.checkExpiry)
}

// _nextDue scans the whole queue once for an expired entry, starting after the last serviced entry so that a node
// with a short interval can not starve the others. If the last node has nothing more due its remaining entries are
// skipped.
func (p *Poller) _nextDue(now tick.Tick) *Entry {
	n := p.queue.len()
	start := 0

	if p.cursor.positioned {
		if p.cursor.nodeLast {
			start = p.queue.afterNode(p.cursor.nodeID)
		} else {
			start = p.queue.after(p.cursor.nodeID, p.cursor.seq)
		}
	}

	for i := 0; i < n; i++ {
		e := p.queue.entries[(start+i)%n]

		if tick.Expired(now, e.Next) {
			return e
		}
	}

	return nil
}

// _nextDueOnNode returns the next expired entry of node after the position seq, without wrapping.
func (p *Poller) _nextDueOnNode(now tick.Tick, node descriptor.NodeID, seq uint64) *Entry {
	for i := p.queue.after(node, seq); i < p.queue.len(); i++ {
		e := p.queue.entries[i]

		if e.nodeID() != node {
			break
		}

		if tick.Expired(now, e.Next) {
			return e
		}
	}

	return nil
}

// _fire transmits e, reschedules it and moves the cursor onto it. An entry on its final count is removed as it
// fires. Transmit errors are not retried, the entry waits for its next interval.
func (p *Poller) _fire(ctx context.Context, now tick.Tick, e *Entry) {
	p.firingGen++

	p.cursor = cursor{
		positioned:   true,
		nodeID:       e.nodeID(),
		handle:       e.Handle,
		seq:          e.seq,
		firing:       p.firingGen,
		awaiting:     true,
		commandClass: e.CommandClass,
		report:       e.Report,
		startTm:      now,
	}

	e.Next = tick.Add(now, max(e.Interval, p.minPoll))
	p.nextPollTm = tick.Add(now, p.minPoll)

	iface := e.Interface
	cmd := e.Command

	switch {
	case e.Count == 1:
		p._removeFunc(byPointer(e), false)
	case e.Count > 1:
		e.Count--
		p._persistCount(e)
	}

	p.logger.LogTrace(ctx, "Firing poll.", logwrap.Datum("Handle", e.Handle), logwrap.Datum("Interface", iface.String()), logwrap.Datum("Tick", uint32(now)), logwrap.Datum("Remaining", e.Count))

	done := p.txDone(p.cursor.firing)
	if iface.Beam && p.beamObserver != nil {
		done = chainTx(p.beamObserver, done)
	}

	if err := p.executor.Execute(ctx, iface, cmd, SendOptions{Poll: true, Beam: iface.Beam}, done); err != nil {
		p.logger.LogWarn(ctx, "Failed to send poll command.", logwrap.Datum("Handle", e.Handle), logwrap.Datum("Interface", iface.String()), logwrap.Err(err))
	}
}

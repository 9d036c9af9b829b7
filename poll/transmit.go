package poll

import (
	"context"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/zwa/tick"
)

// txDone returns the completion callback of one firing.
func (p *Poller) txDone(firing uint64) func(TxStatus) {
	return func(status TxStatus) {
		select {
		case p.events <- txEvent{firing: firing, status: status}:
		default:
			p.logger.LogWarn(context.Background(), "Dropped poll transmit completion, event backlog full.", logwrap.Datum("Status", int(status)))
		}
	}
}

// handleTx applies a transmit completion to the schedule. A successful send records how long the command took and
// allows the next poll after that plus the minimum poll time, a failed send allows it after the minimum alone.
// Completions of any firing but the most recent are ignored, even when the same entry has fired again since.
func (p *Poller) handleTx(e txEvent) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.cursor.firing == 0 || p.cursor.firing != e.firing {
		return
	}

	now := p.clock.Now()

	if e.status.Success() {
		p.cursor.cmdTm = max(1, tick.Since(now, p.cursor.startTm))
		p.nextPollTm = tick.Add(now, p.cursor.cmdTm+p.minPoll)
	} else {
		p.logger.LogWarn(context.Background(), "Poll transmission failed.", logwrap.Datum("Handle", p.cursor.handle), logwrap.Datum("Status", int(e.status)))
		p.nextPollTm = tick.Add(now, p.minPoll)
	}
}

// chainTx returns a completion callback calling each of fns in order.
func chainTx(fns ...func(TxStatus)) func(TxStatus) {
	return func(status TxStatus) {
		for _, fn := range fns {
			fn(status)
		}
	}
}

package zwa

import (
	"errors"
	"fmt"
	"github.com/shimmeringbee/zwa/poll"
	"time"
)

var ErrReservedToken = errors.New("token reserved for rule polls")

// PollRequest asks for a get command to be re-sent to an interface, addressed by its descriptor id.
type PollRequest struct {
	InterfaceID uint32
	Command     []byte
	Interval    time.Duration
	// Count is the number of polls to send, zero polls until removed.
	Count uint32
	Token uint32
}

func (n *Network) AddPoll(r PollRequest) (uint32, error) {
	if r.Token&RuleTokenFlag != 0 {
		return 0, ErrReservedToken
	}

	iface, err := n.tree.Interface(r.InterfaceID)
	if err != nil {
		return 0, fmt.Errorf("interface %d: %w", r.InterfaceID, err)
	}

	return n.poller.Add(poll.Request{
		Interface: iface,
		Command:   r.Command,
		Interval:  r.Interval,
		Count:     r.Count,
		Token:     r.Token,
	})
}

func (n *Network) RemovePoll(handle uint32) error {
	return n.poller.Remove(handle)
}

func (n *Network) RemovePollsByToken(token uint32) int {
	return n.poller.RemoveByToken(token)
}

// Polls returns every queued poll, rule created or not, in service order.
func (n *Network) Polls() []poll.Entry {
	return n.poller.Entries()
}

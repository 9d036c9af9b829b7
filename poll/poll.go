// Package poll periodically re-sends get commands to devices that do not reliably send unsolicited reports, and
// correlates the reports they answer with against the poll in flight.
package poll

import (
	"context"
	"errors"
	"github.com/shimmeringbee/zwa/descriptor"
	"github.com/shimmeringbee/zwa/report"
	"github.com/shimmeringbee/zwa/tick"
	"slices"
	"time"
)

var (
	ErrReportNotFound = report.ErrReportNotFound
	ErrQueueFull      = errors.New("poll queue full")
	ErrNotFound       = errors.New("poll not found")
	ErrUnsupported    = errors.New("polling not enabled")
	ErrIntervalRange  = errors.New("poll interval out of range")
)

type TxStatus int

const (
	TxOK TxStatus = iota
	TxNoAck
	TxFail
)

func (s TxStatus) Success() bool {
	return s == TxOK
}

// SendOptions qualify a command handed to the Executor.
type SendOptions struct {
	// Poll marks the command as originating from the poller rather than a user request.
	Poll bool
	// Beam requires the destination to be woken with a beam before the frame is sent.
	Beam bool
}

// Executor transmits a command to an interface. It must not block on the transmission, done is called once the
// frame has been sent or has failed, from any goroutine.
type Executor interface {
	Execute(ctx context.Context, iface descriptor.InterfaceDescriptor, cmd []byte, opts SendOptions, done func(TxStatus)) error
}

// Request describes a poll to add.
type Request struct {
	Interface descriptor.InterfaceDescriptor
	Command   []byte
	Interval  time.Duration
	// Count is the number of times to poll, zero polls forever.
	Count uint32
	// Token is a caller defined grouping tag, it need not be unique.
	Token uint32
}

// Entry is a snapshot of a queued poll.
type Entry struct {
	Handle    uint32
	Token     uint32
	Interface descriptor.InterfaceDescriptor
	Command   []byte

	CommandClass descriptor.CommandClass
	Report       descriptor.Command

	// Interval is the period in ticks, never less than the minimum poll time.
	Interval uint32
	Count    uint32
	Next     tick.Tick

	requested time.Duration
	seq       uint64
}

func (e *Entry) nodeID() descriptor.NodeID {
	return e.Interface.NodeID
}

func (e *Entry) snapshot() Entry {
	c := *e
	c.Command = slices.Clone(e.Command)
	return c
}

type Config struct {
	Enabled bool

	TickInterval    time.Duration
	MinPollTime     time.Duration
	CheckExpiryTime time.Duration

	// MaxEntries bounds the queue, zero is unbounded.
	MaxEntries int
	StartTick  tick.Tick
}

const DefaultTickInterval = 100 * time.Millisecond
const DefaultMinPollTime = 10 * time.Second
const DefaultCheckExpiryTime = 1 * time.Second
const DefaultMaxEntries = 512

func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		TickInterval:    DefaultTickInterval,
		MinPollTime:     DefaultMinPollTime,
		CheckExpiryTime: DefaultCheckExpiryTime,
		MaxEntries:      DefaultMaxEntries,
	}
}

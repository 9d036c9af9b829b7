package poll

import (
	"context"
	"fmt"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/persistence"
	"github.com/shimmeringbee/zwa/descriptor"
	"github.com/shimmeringbee/zwa/report"
	"github.com/shimmeringbee/zwa/tick"
	"golang.org/x/sync/errgroup"
	"slices"
	"sync"
)

const eventBacklog = 16

// cursor tracks the most recently fired poll. Its position fields drive the round-robin scan, its expected
// report fields are the key incoming reports are correlated against.
type cursor struct {
	positioned bool
	nodeID     descriptor.NodeID
	handle     uint32
	seq        uint64
	// firing identifies one transmission, an entry that fires again gets a new one.
	firing uint64
	// nodeLast is set once no more entries of nodeID are due, the next scan starts at the following node.
	nodeLast bool

	awaiting     bool
	commandClass descriptor.CommandClass
	report       descriptor.Command

	startTm tick.Tick
	cmdTm   uint32
}

// Poller owns the poll queue of one network and the goroutine servicing it.
type Poller struct {
	cfg       Config
	executor  Executor
	predictor report.Predictor
	logger    logwrap.Logger
	section   persistence.Section
	clock     *tick.Source

	beamObserver func(TxStatus)

	minPoll     uint32
	checkExpiry uint32

	lock       *sync.Mutex
	queue      queue
	handleGen  uint32
	seqGen     uint64
	firingGen  uint64
	cursor     cursor
	nextPollTm tick.Tick

	events chan any

	runLock *sync.Mutex
	running bool
	stopped chan struct{}
	cancel  context.CancelFunc
	group   *errgroup.Group
}

func New(cfg Config, e Executor, p report.Predictor) *Poller {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}

	if p == nil {
		p = report.NewTable()
	}

	clock := tick.NewSource(cfg.TickInterval, cfg.StartTick)

	poller := &Poller{
		cfg:       cfg,
		executor:  e,
		predictor: p,
		logger:    logwrap.New(discard.Discard()),
		clock:     clock,
		lock:      &sync.Mutex{},
		events:    make(chan any, eventBacklog),
		runLock:   &sync.Mutex{},
	}

	poller._applyClock()

	return poller
}

func (p *Poller) _applyClock() {
	p.minPoll = max(1, tick.DurationToTicks(p.cfg.MinPollTime, p.clock.Period()))
	p.checkExpiry = max(1, tick.DurationToTicks(p.cfg.CheckExpiryTime, p.clock.Period()))
	p.nextPollTm = p.clock.Now()
}

func (p *Poller) WithLogWrapLogger(lw logwrap.Logger) {
	p.logger = lw
}

// WithPersistence mirrors every queued poll into s, so they can be restored by Load.
func (p *Poller) WithPersistence(s persistence.Section) {
	p.section = s
}

// WithBeamObserver registers a function that is told of the completion of every poll sent with a beam, before
// the completion is applied to the schedule.
func (p *Poller) WithBeamObserver(fn func(TxStatus)) {
	p.beamObserver = fn
}

// WithClock replaces the tick source, it must be called before Start.
func (p *Poller) WithClock(s *tick.Source) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.clock = s
	p._applyClock()
}

func (p *Poller) Clock() *tick.Source {
	return p.clock
}

// Start launches the tick source and the scheduler. It does nothing if polling is not enabled, and fails if ctx is
// already done.
func (p *Poller) Start(ctx context.Context) error {
	if !p.cfg.Enabled {
		p.logger.LogInfo(ctx, "Polling disabled, not starting poller.")
		return nil
	}

	p.runLock.Lock()
	defer p.runLock.Unlock()

	if p.running {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}

	rctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(rctx)

	group.Go(func() error {
		return p.clock.Run(gctx)
	})

	stopped := make(chan struct{})

	group.Go(func() error {
		defer close(stopped)
		return p.schedule(gctx)
	})

	p.stopped = stopped
	p.cancel = cancel
	p.group = group
	p.running = true

	p.logger.LogInfo(ctx, "Poller started.", logwrap.Datum("TickIntervalMs", p.clock.Period().Milliseconds()), logwrap.Datum("MinPollTicks", p.minPoll))

	return nil
}

// Shutdown stops the scheduler and waits for its goroutines to exit. Queued polls are kept.
func (p *Poller) Shutdown() {
	p.runLock.Lock()
	defer p.runLock.Unlock()

	if !p.running {
		return
	}

	p.cancel()
	_ = p.group.Wait()

	p.running = false
	p.logger.LogInfo(context.Background(), "Poller stopped.")
}

// Exit shuts the scheduler down if required and discards every queued poll. Persisted polls are left in place to
// be restored by Load.
func (p *Poller) Exit() {
	p.Shutdown()

	p.lock.Lock()
	defer p.lock.Unlock()

	p.queue.removeFunc(everything, true)
	p.cursor = cursor{}
}

func (p *Poller) Running() bool {
	_, running := p.runState()
	return running
}

func (p *Poller) runState() (<-chan struct{}, bool) {
	p.runLock.Lock()
	defer p.runLock.Unlock()

	return p.stopped, p.running
}

// Add validates and queues a poll, returning its handle. The command must have a predictable report.
func (p *Poller) Add(r Request) (uint32, error) {
	if !p.cfg.Enabled {
		return 0, ErrUnsupported
	}

	cc, rpt, err := p.predictor.Predict(r.Command)
	if err != nil {
		return 0, fmt.Errorf("poll %s: %w", r.Interface, err)
	}

	interval := max(p.clock.Ticks(r.Interval), p.minPoll)
	if interval > tick.MaxInterval {
		return 0, fmt.Errorf("poll %s: %s: %w", r.Interface, r.Interval, ErrIntervalRange)
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	if p.cfg.MaxEntries > 0 && p.queue.len() >= p.cfg.MaxEntries {
		return 0, ErrQueueFull
	}

	now := p.clock.Now()

	p.seqGen++

	e := &Entry{
		Handle:       p._nextHandle(),
		Token:        r.Token,
		Interface:    r.Interface,
		Command:      slices.Clone(r.Command),
		CommandClass: cc,
		Report:       rpt,
		Interval:     interval,
		Count:        r.Count,
		requested:    r.Interval,
		seq:          p.seqGen,
	}

	e.Next = tick.Add(now, e.Interval)

	p.queue.insert(e)

	if p.queue.len() == 1 {
		p.cursor.positioned = false
		p.cursor.nodeLast = false
		p.nextPollTm = e.Next
	}

	p._persist(e)

	p.logger.LogDebug(context.Background(), "Poll added.", logwrap.Datum("Handle", e.Handle), logwrap.Datum("Interface", e.Interface.String()), logwrap.Datum("IntervalTicks", e.Interval), logwrap.Datum("Count", e.Count))

	return e.Handle, nil
}

// _nextHandle returns the next free handle, skipping zero and handles still held by a live entry.
func (p *Poller) _nextHandle() uint32 {
	for {
		p.handleGen++

		if p.handleGen == 0 {
			continue
		}

		if p.queue.find(byHandle(p.handleGen)) == nil {
			return p.handleGen
		}
	}
}

// Remove deletes the poll with handle.
func (p *Poller) Remove(handle uint32) error {
	if n := p.removeFunc(byHandle(handle), false); n == 0 {
		return ErrNotFound
	}

	return nil
}

// RemoveByToken deletes every poll carrying token, returning the number removed.
func (p *Poller) RemoveByToken(token uint32) int {
	return p.removeFunc(byToken(token), true)
}

// RemoveNode deletes every poll addressed to a node, used when the node leaves the network.
func (p *Poller) RemoveNode(n descriptor.NodeID) (int, error) {
	if !p.cfg.Enabled {
		return 0, ErrUnsupported
	}

	return p.removeFunc(byNode(n), true), nil
}

// Flush deletes every poll.
func (p *Poller) Flush() int {
	return p.removeFunc(everything, true)
}

func (p *Poller) removeFunc(pred func(*Entry) bool, all bool) int {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p._removeFunc(pred, all)
}

func (p *Poller) _removeFunc(pred func(*Entry) bool, all bool) int {
	removed := p.queue.removeFunc(pred, all)

	for _, e := range removed {
		p._unpersist(e)
	}

	return len(removed)
}

// Entries returns a snapshot of the queue in service order.
func (p *Poller) Entries() []Entry {
	p.lock.Lock()
	defer p.lock.Unlock()

	entries := make([]Entry, 0, p.queue.len())

	for _, e := range p.queue.entries {
		entries = append(entries, e.snapshot())
	}

	return entries
}

// Entry returns a snapshot of the poll with handle.
func (p *Poller) Entry(handle uint32) (Entry, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if e := p.queue.find(byHandle(handle)); e != nil {
		return e.snapshot(), true
	}

	return Entry{}, false
}

func (p *Poller) Len() int {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.queue.len()
}

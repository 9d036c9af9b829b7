// Package zwa maintains the descriptor tree of a Z-Wave network, polls the interfaces that need it and correlates
// the reports received with the polls and requests in flight.
package zwa

import (
	"context"
	"errors"
	"fmt"
	"github.com/shimmeringbee/callbacks"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/persistence"
	"github.com/shimmeringbee/persistence/impl/memory"
	"github.com/shimmeringbee/zwa/config"
	"github.com/shimmeringbee/zwa/descriptor"
	"github.com/shimmeringbee/zwa/poll"
	"github.com/shimmeringbee/zwa/report"
	"github.com/shimmeringbee/zwa/rules"
	"golang.org/x/sync/errgroup"
	"sync"
)

const EventBacklog = 100

var (
	ErrNoProvider = errors.New("no provider")
	ErrTimeout    = errors.New("timed out waiting for report")
	ErrTxFailed   = errors.New("transmission failed")
	ErrNotStarted = errors.New("network not started")
	ErrStopped    = errors.New("network stopped")
)

type Network struct {
	provider Provider
	logger   logwrap.Logger
	section  persistence.Section
	cfg      *config.Config

	tree      *descriptor.Tree
	predictor *report.Table
	poller    *poll.Poller
	rules     *rules.Engine
	callbacks callbacks.AdderCaller

	pendingLock *sync.Mutex
	pending     map[pendingKey][]chan ReportEvent

	events chan any

	runLock   *sync.Mutex
	ctx       context.Context
	ctxCancel context.CancelFunc
	group     *errgroup.Group
	stopped   bool
}

// New builds a network on provider. A nil section keeps state in memory only, a nil cfg uses the defaults.
func New(ctx context.Context, p Provider, s persistence.Section, cfg *config.Config) (*Network, error) {
	if p == nil {
		return nil, ErrNoProvider
	}

	if s == nil {
		s = memory.New()
	}

	if cfg == nil {
		cfg = config.Default()
	}

	engine, err := cfg.RuleEngine()
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}

	predictor := report.NewTable()

	n := &Network{
		provider:    p,
		logger:      logwrap.New(discard.Discard()),
		section:     s,
		cfg:         cfg,
		tree:        descriptor.NewTree(),
		predictor:   predictor,
		poller:      poll.New(cfg.PollConfig(), p, predictor),
		rules:       engine,
		callbacks:   callbacks.Create(),
		pendingLock: &sync.Mutex{},
		pending:     map[pendingKey][]chan ReportEvent{},
		events:      make(chan any, EventBacklog),
		runLock:     &sync.Mutex{},
	}

	n.ctx, n.ctxCancel = context.WithCancel(ctx)
	n.poller.WithPersistence(n.sectionForPoller())

	n.callbacks.Add(n.nodeAddedCallback)
	n.callbacks.Add(n.nodeUpdatedCallback)
	n.callbacks.Add(n.nodeRemovedCallback)

	return n, nil
}

// Start restores persisted state, then starts the poller and the provider loop. A network can not be started again
// once stopped.
func (n *Network) Start() error {
	n.runLock.Lock()
	defer n.runLock.Unlock()

	if n.stopped {
		return ErrStopped
	}

	if n.group != nil {
		return nil
	}

	n.providerLoad()

	if err := n.poller.Start(n.ctx); err != nil {
		return err
	}

	group, gctx := errgroup.WithContext(n.ctx)

	group.Go(func() error {
		n.providerLoop(gctx)
		return nil
	})

	n.group = group

	return nil
}

// Stop cancels the provider loop and the poller, waiting for both to exit. Queued polls stay persisted.
func (n *Network) Stop() error {
	n.runLock.Lock()
	defer n.runLock.Unlock()

	n.stopped = true
	n.ctxCancel()
	n.poller.Shutdown()

	if n.group == nil {
		return nil
	}

	err := n.group.Wait()
	n.group = nil

	return err
}

// ReadEvent returns the next topology or report event published by the network.
func (n *Network) ReadEvent(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case e := <-n.events:
		return e, nil
	}
}

func (n *Network) sendEvent(e any) {
	select {
	case n.events <- e:
	default:
		n.logger.LogWarn(n.ctx, "Dropped network event, consumer is not reading events.", logwrap.Datum("Event", fmt.Sprintf("%T", e)))
	}
}

func (n *Network) Nodes() []descriptor.NodeDescriptor {
	return n.tree.Nodes()
}

func (n *Network) Endpoints(nodeID uint32) ([]descriptor.EndpointDescriptor, error) {
	return n.tree.Endpoints(nodeID)
}

func (n *Network) Interfaces(endpointID uint32) ([]descriptor.InterfaceDescriptor, error) {
	return n.tree.Interfaces(endpointID)
}

// Lookup resolves any descriptor id issued by the network.
func (n *Network) Lookup(id uint32) (descriptor.Type, any, error) {
	return n.tree.Lookup(id)
}

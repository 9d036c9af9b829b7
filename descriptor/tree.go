package descriptor

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
)

var (
	ErrNotFound    = errors.New("descriptor not found")
	ErrWrongType   = errors.New("descriptor is of the wrong type")
	ErrIDExhausted = errors.New("descriptor id space exhausted")
)

type container struct {
	typ      Type
	id       uint32
	parent   uint32
	children []uint32
	payload  any
}

// Tree indexes the topology of a network as node, endpoint and interface containers. Every container is tagged
// with an id that is unique within the tree and never reused, so an id held from before a rebuild fails lookup.
type Tree struct {
	lock *sync.RWMutex

	nextID    uint32
	exhausted bool

	containers map[uint32]*container
	roots      []uint32
}

func NewTree() *Tree {
	return &Tree{
		lock:       &sync.RWMutex{},
		nextID:     1,
		containers: make(map[uint32]*container),
	}
}

type endpointWalk struct {
	endpoint   EndpointDescriptor
	interfaces []InterfaceDescriptor
}

// AddOrReplace adds a node to the tree, or if a node with the same network node id is present deletes its whole
// subtree and rebuilds it from the walker. The id of the new node container is returned.
func (t *Tree) AddOrReplace(n NodeDescriptor, w Walker) (uint32, error) {
	endpoints, err := w.Endpoints(n.NodeID)
	if err != nil {
		return 0, fmt.Errorf("walking endpoints of node %d: %w", n.NodeID, err)
	}

	walks := make([]endpointWalk, 0, len(endpoints))
	needed := uint64(1)

	for _, ep := range endpoints {
		ifaces, err := w.Interfaces(n.NodeID, ep.Endpoint)
		if err != nil {
			return 0, fmt.Errorf("walking interfaces of node %d endpoint %d: %w", n.NodeID, ep.Endpoint, err)
		}

		walks = append(walks, endpointWalk{endpoint: ep, interfaces: ifaces})
		needed += 1 + uint64(len(ifaces))
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if !t._hasCapacity(needed) {
		return 0, ErrIDExhausted
	}

	position := len(t.roots)

	if existing, found := t._findNode(n.NodeID); found {
		position = slices.Index(t.roots, existing.id)
		t._remove(existing.id)
	}

	n.ID = t._allocate()
	nc := &container{typ: NodeType, id: n.ID, payload: n}
	t.containers[n.ID] = nc
	t.roots = slices.Insert(t.roots, position, n.ID)

	for _, walk := range walks {
		ep := walk.endpoint
		ep.ID = t._allocate()
		ep.NodeID = n.NodeID

		ec := &container{typ: EndpointType, id: ep.ID, parent: n.ID, payload: ep}
		t.containers[ep.ID] = ec
		nc.children = append(nc.children, ep.ID)

		for _, iface := range walk.interfaces {
			iface.ID = t._allocate()
			iface.NodeID = n.NodeID
			iface.Endpoint = ep.Endpoint
			iface.Beam = n.Beam

			t.containers[iface.ID] = &container{typ: InterfaceType, id: iface.ID, parent: ep.ID, payload: iface}
			ec.children = append(ec.children, iface.ID)
		}
	}

	return n.ID, nil
}

func (t *Tree) _hasCapacity(needed uint64) bool {
	if t.exhausted {
		return false
	}

	return uint64(math.MaxUint32)-uint64(t.nextID)+1 >= needed
}

func (t *Tree) _allocate() uint32 {
	id := t.nextID

	if id == math.MaxUint32 {
		t.exhausted = true
	} else {
		t.nextID++
	}

	return id
}

func (t *Tree) _findNode(nodeID NodeID) (*container, bool) {
	for _, id := range t.roots {
		c := t.containers[id]
		if c.payload.(NodeDescriptor).NodeID == nodeID {
			return c, true
		}
	}

	return nil, false
}

// Lookup returns the type and a copy of the descriptor held by the container with id.
func (t *Tree) Lookup(id uint32) (Type, any, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	c, found := t.containers[id]
	if !found {
		return InvalidType, nil, ErrNotFound
	}

	return c.typ, c.payload, nil
}

func (t *Tree) Node(id uint32) (NodeDescriptor, error) {
	typ, payload, err := t.Lookup(id)
	if err != nil {
		return NodeDescriptor{}, err
	}

	if typ != NodeType {
		return NodeDescriptor{}, fmt.Errorf("%w: id %d is %s", ErrWrongType, id, typ)
	}

	return payload.(NodeDescriptor), nil
}

func (t *Tree) Endpoint(id uint32) (EndpointDescriptor, error) {
	typ, payload, err := t.Lookup(id)
	if err != nil {
		return EndpointDescriptor{}, err
	}

	if typ != EndpointType {
		return EndpointDescriptor{}, fmt.Errorf("%w: id %d is %s", ErrWrongType, id, typ)
	}

	return payload.(EndpointDescriptor), nil
}

func (t *Tree) Interface(id uint32) (InterfaceDescriptor, error) {
	typ, payload, err := t.Lookup(id)
	if err != nil {
		return InterfaceDescriptor{}, err
	}

	if typ != InterfaceType {
		return InterfaceDescriptor{}, fmt.Errorf("%w: id %d is %s", ErrWrongType, id, typ)
	}

	return payload.(InterfaceDescriptor), nil
}

// FindNode returns the node container for a network node id.
func (t *Tree) FindNode(nodeID NodeID) (NodeDescriptor, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if c, found := t._findNode(nodeID); found {
		return c.payload.(NodeDescriptor), true
	}

	return NodeDescriptor{}, false
}

// FindInterface returns the interface for a command class on an endpoint of a node.
func (t *Tree) FindInterface(nodeID NodeID, ep EndpointID, cc CommandClass) (InterfaceDescriptor, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	nc, found := t._findNode(nodeID)
	if !found {
		return InterfaceDescriptor{}, false
	}

	for _, eid := range nc.children {
		ec := t.containers[eid]
		if ec.payload.(EndpointDescriptor).Endpoint != ep {
			continue
		}

		for _, iid := range ec.children {
			iface := t.containers[iid].payload.(InterfaceDescriptor)
			if iface.CommandClass == cc {
				return iface, true
			}
		}
	}

	return InterfaceDescriptor{}, false
}

func (t *Tree) Nodes() []NodeDescriptor {
	t.lock.RLock()
	defer t.lock.RUnlock()

	var nodes []NodeDescriptor

	for _, id := range t.roots {
		nodes = append(nodes, t.containers[id].payload.(NodeDescriptor))
	}

	return nodes
}

// Endpoints returns the endpoints below the node container id.
func (t *Tree) Endpoints(nodeID uint32) ([]EndpointDescriptor, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	c, err := t._typed(nodeID, NodeType)
	if err != nil {
		return nil, err
	}

	var endpoints []EndpointDescriptor

	for _, id := range c.children {
		endpoints = append(endpoints, t.containers[id].payload.(EndpointDescriptor))
	}

	return endpoints, nil
}

// Interfaces returns the interfaces below the endpoint container id.
func (t *Tree) Interfaces(endpointID uint32) ([]InterfaceDescriptor, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	c, err := t._typed(endpointID, EndpointType)
	if err != nil {
		return nil, err
	}

	var ifaces []InterfaceDescriptor

	for _, id := range c.children {
		ifaces = append(ifaces, t.containers[id].payload.(InterfaceDescriptor))
	}

	return ifaces, nil
}

func (t *Tree) _typed(id uint32, typ Type) (*container, error) {
	c, found := t.containers[id]
	if !found {
		return nil, ErrNotFound
	}

	if c.typ != typ {
		return nil, fmt.Errorf("%w: id %d is %s", ErrWrongType, id, c.typ)
	}

	return c, nil
}

// Remove deletes the subtree rooted at id and unlinks it from its siblings.
func (t *Tree) Remove(id uint32) bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	if _, found := t.containers[id]; !found {
		return false
	}

	t._remove(id)
	return true
}

// RemoveNode deletes the subtree of the node with the network node id.
func (t *Tree) RemoveNode(nodeID NodeID) bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	c, found := t._findNode(nodeID)
	if !found {
		return false
	}

	t._remove(c.id)
	return true
}

func (t *Tree) _remove(id uint32) {
	c := t.containers[id]

	for _, child := range slices.Clone(c.children) {
		t._remove(child)
	}

	if c.typ == NodeType {
		t.roots = slices.DeleteFunc(t.roots, func(r uint32) bool { return r == id })
	} else if parent, found := t.containers[c.parent]; found {
		parent.children = slices.DeleteFunc(parent.children, func(r uint32) bool { return r == id })
	}

	delete(t.containers, id)
}

// RemoveAll deletes every node, repeatedly removing the head.
func (t *Tree) RemoveAll() {
	t.lock.Lock()
	defer t.lock.Unlock()

	for len(t.roots) > 0 {
		t._remove(t.roots[0])
	}
}

// Len returns the number of containers of every type in the tree.
func (t *Tree) Len() int {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return len(t.containers)
}

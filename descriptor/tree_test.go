package descriptor

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"math"
	"testing"
)

type mockWalker struct {
	mock.Mock
}

func (m *mockWalker) Endpoints(n NodeID) ([]EndpointDescriptor, error) {
	args := m.Called(n)
	return args.Get(0).([]EndpointDescriptor), args.Error(1)
}

func (m *mockWalker) Interfaces(n NodeID, e EndpointID) ([]InterfaceDescriptor, error) {
	args := m.Called(n, e)
	return args.Get(0).([]InterfaceDescriptor), args.Error(1)
}

func walkerForNode(n NodeID, ccs ...CommandClass) *mockWalker {
	w := &mockWalker{}
	w.On("Endpoints", n).Return([]EndpointDescriptor{{Endpoint: 0}}, nil)

	var ifaces []InterfaceDescriptor
	for _, cc := range ccs {
		ifaces = append(ifaces, InterfaceDescriptor{CommandClass: cc, Version: 1})
	}

	w.On("Interfaces", n, EndpointID(0)).Return(ifaces, nil)

	return w
}

func TestTree_AddOrReplace(t *testing.T) {
	t.Run("builds a node, endpoint and interface subtree from the walker", func(t *testing.T) {
		tr := NewTree()
		w := walkerForNode(3, 0x25, 0x31)
		defer w.AssertExpectations(t)

		id, err := tr.AddOrReplace(NodeDescriptor{NodeID: 3, Beam: true}, w)
		require.NoError(t, err)
		assert.NotZero(t, id)

		n, err := tr.Node(id)
		require.NoError(t, err)
		assert.Equal(t, NodeID(3), n.NodeID)
		assert.Equal(t, id, n.ID)

		eps, err := tr.Endpoints(id)
		require.NoError(t, err)
		require.Len(t, eps, 1)
		assert.Equal(t, NodeID(3), eps[0].NodeID)

		ifaces, err := tr.Interfaces(eps[0].ID)
		require.NoError(t, err)
		require.Len(t, ifaces, 2)
		assert.Equal(t, CommandClass(0x25), ifaces[0].CommandClass)
		assert.Equal(t, CommandClass(0x31), ifaces[1].CommandClass)
		assert.Equal(t, NodeID(3), ifaces[1].NodeID)
		assert.True(t, ifaces[1].Beam)

		assert.Equal(t, 4, tr.Len())
	})

	t.Run("replacing a node results in exactly one node with rebuilt children", func(t *testing.T) {
		tr := NewTree()

		firstID, err := tr.AddOrReplace(NodeDescriptor{NodeID: 3}, walkerForNode(3, 0x25))
		require.NoError(t, err)

		firstEps, _ := tr.Endpoints(firstID)
		firstIfaces, _ := tr.Interfaces(firstEps[0].ID)

		secondID, err := tr.AddOrReplace(NodeDescriptor{NodeID: 3}, walkerForNode(3, 0x26, 0x32))
		require.NoError(t, err)
		assert.NotEqual(t, firstID, secondID)

		nodes := tr.Nodes()
		require.Len(t, nodes, 1)
		assert.Equal(t, secondID, nodes[0].ID)

		eps, _ := tr.Endpoints(secondID)
		ifaces, err := tr.Interfaces(eps[0].ID)
		require.NoError(t, err)
		require.Len(t, ifaces, 2)
		assert.Equal(t, CommandClass(0x26), ifaces[0].CommandClass)
		assert.Equal(t, CommandClass(0x32), ifaces[1].CommandClass)

		_, err = tr.Interface(firstIfaces[0].ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = tr.Node(firstID)
		assert.ErrorIs(t, err, ErrNotFound)

		assert.Equal(t, 4, tr.Len())
	})

	t.Run("replacing a node keeps its position among siblings", func(t *testing.T) {
		tr := NewTree()

		_, _ = tr.AddOrReplace(NodeDescriptor{NodeID: 1}, walkerForNode(1))
		_, _ = tr.AddOrReplace(NodeDescriptor{NodeID: 2}, walkerForNode(2))
		_, _ = tr.AddOrReplace(NodeDescriptor{NodeID: 3}, walkerForNode(3))
		_, _ = tr.AddOrReplace(NodeDescriptor{NodeID: 2, Listening: true}, walkerForNode(2))

		nodes := tr.Nodes()
		require.Len(t, nodes, 3)
		assert.Equal(t, NodeID(1), nodes[0].NodeID)
		assert.Equal(t, NodeID(2), nodes[1].NodeID)
		assert.True(t, nodes[1].Listening)
		assert.Equal(t, NodeID(3), nodes[2].NodeID)
	})

	t.Run("a walker failure leaves the existing subtree untouched", func(t *testing.T) {
		tr := NewTree()

		id, err := tr.AddOrReplace(NodeDescriptor{NodeID: 3}, walkerForNode(3, 0x25))
		require.NoError(t, err)

		w := &mockWalker{}
		w.On("Endpoints", NodeID(3)).Return([]EndpointDescriptor{}, errors.New("serial failure"))

		_, err = tr.AddOrReplace(NodeDescriptor{NodeID: 3}, w)
		assert.Error(t, err)

		_, err = tr.Node(id)
		assert.NoError(t, err)
	})

	t.Run("ids are unique, increase and never zero", func(t *testing.T) {
		tr := NewTree()

		seen := map[uint32]bool{}

		for n := NodeID(1); n < 10; n++ {
			id, err := tr.AddOrReplace(NodeDescriptor{NodeID: n}, walkerForNode(n, 0x20, 0x25))
			require.NoError(t, err)

			eps, _ := tr.Endpoints(id)
			ifaces, _ := tr.Interfaces(eps[0].ID)

			for _, i := range []uint32{id, eps[0].ID, ifaces[0].ID, ifaces[1].ID} {
				assert.NotZero(t, i)
				assert.False(t, seen[i])
				seen[i] = true
			}
		}
	})

	t.Run("returns an error when the id space is exhausted", func(t *testing.T) {
		tr := NewTree()
		tr.nextID = math.MaxUint32 - 1

		_, err := tr.AddOrReplace(NodeDescriptor{NodeID: 1}, walkerForNode(1, 0x25))
		assert.ErrorIs(t, err, ErrIDExhausted)
		assert.Equal(t, 0, tr.Len())

		tr.nextID = math.MaxUint32
		id, err := tr.AddOrReplace(NodeDescriptor{NodeID: 1}, emptyWalker{})
		require.NoError(t, err)
		assert.Equal(t, uint32(math.MaxUint32), id)

		_, err = tr.AddOrReplace(NodeDescriptor{NodeID: 2}, emptyWalker{})
		assert.ErrorIs(t, err, ErrIDExhausted)
	})
}

type emptyWalker struct{}

func (emptyWalker) Endpoints(NodeID) ([]EndpointDescriptor, error) {
	return nil, nil
}

func (emptyWalker) Interfaces(NodeID, EndpointID) ([]InterfaceDescriptor, error) {
	return nil, nil
}

func TestTree_Lookup(t *testing.T) {
	t.Run("returns the type so wrongly typed ids can be rejected", func(t *testing.T) {
		tr := NewTree()

		id, _ := tr.AddOrReplace(NodeDescriptor{NodeID: 5}, walkerForNode(5, 0x31))
		eps, _ := tr.Endpoints(id)

		typ, payload, err := tr.Lookup(eps[0].ID)
		require.NoError(t, err)
		assert.Equal(t, EndpointType, typ)
		assert.IsType(t, EndpointDescriptor{}, payload)

		_, err = tr.Interface(eps[0].ID)
		assert.ErrorIs(t, err, ErrWrongType)

		_, err = tr.Interfaces(id)
		assert.ErrorIs(t, err, ErrWrongType)
	})

	t.Run("returns not found for unknown and zero ids", func(t *testing.T) {
		tr := NewTree()

		typ, _, err := tr.Lookup(0)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, InvalidType, typ)

		_, err = tr.Node(1234)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("finds interfaces by network address", func(t *testing.T) {
		tr := NewTree()

		_, _ = tr.AddOrReplace(NodeDescriptor{NodeID: 5}, walkerForNode(5, 0x25, 0x31))

		iface, found := tr.FindInterface(5, 0, 0x31)
		assert.True(t, found)
		assert.Equal(t, CommandClass(0x31), iface.CommandClass)

		_, found = tr.FindInterface(5, 1, 0x31)
		assert.False(t, found)

		_, found = tr.FindInterface(6, 0, 0x31)
		assert.False(t, found)
	})
}

func TestTree_Remove(t *testing.T) {
	t.Run("removing an endpoint deletes its interfaces and unlinks it", func(t *testing.T) {
		tr := NewTree()

		id, _ := tr.AddOrReplace(NodeDescriptor{NodeID: 5}, walkerForNode(5, 0x25, 0x31))
		eps, _ := tr.Endpoints(id)

		assert.True(t, tr.Remove(eps[0].ID))
		assert.False(t, tr.Remove(eps[0].ID))

		eps, err := tr.Endpoints(id)
		assert.NoError(t, err)
		assert.Empty(t, eps)
		assert.Equal(t, 1, tr.Len())
	})

	t.Run("removing a node by network id deletes its subtree", func(t *testing.T) {
		tr := NewTree()

		_, _ = tr.AddOrReplace(NodeDescriptor{NodeID: 5}, walkerForNode(5, 0x25, 0x31))
		_, _ = tr.AddOrReplace(NodeDescriptor{NodeID: 6}, walkerForNode(6, 0x25))

		assert.True(t, tr.RemoveNode(5))
		assert.False(t, tr.RemoveNode(5))

		_, found := tr.FindNode(5)
		assert.False(t, found)
		_, found = tr.FindNode(6)
		assert.True(t, found)
		assert.Equal(t, 3, tr.Len())
	})

	t.Run("remove all empties the tree", func(t *testing.T) {
		tr := NewTree()

		_, _ = tr.AddOrReplace(NodeDescriptor{NodeID: 5}, walkerForNode(5, 0x25, 0x31))
		_, _ = tr.AddOrReplace(NodeDescriptor{NodeID: 6}, walkerForNode(6, 0x25))

		tr.RemoveAll()

		assert.Empty(t, tr.Nodes())
		assert.Equal(t, 0, tr.Len())
	})
}

package mocks

import (
	"context"
	"github.com/shimmeringbee/zwa/descriptor"
	"github.com/shimmeringbee/zwa/poll"
	"github.com/stretchr/testify/mock"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Execute(ctx context.Context, iface descriptor.InterfaceDescriptor, cmd []byte, opts poll.SendOptions, done func(poll.TxStatus)) error {
	return m.Called(ctx, iface, cmd, opts, done).Error(0)
}

func (m *MockProvider) Endpoints(n descriptor.NodeID) ([]descriptor.EndpointDescriptor, error) {
	args := m.Called(n)
	return args.Get(0).([]descriptor.EndpointDescriptor), args.Error(1)
}

func (m *MockProvider) Interfaces(n descriptor.NodeID, e descriptor.EndpointID) ([]descriptor.InterfaceDescriptor, error) {
	args := m.Called(n, e)
	return args.Get(0).([]descriptor.InterfaceDescriptor), args.Error(1)
}

func (m *MockProvider) ReadEvent(ctx context.Context) (any, error) {
	args := m.Called(ctx)
	return args.Get(0), args.Error(1)
}

package poll

import (
	"context"
	"github.com/shimmeringbee/persistence/converter"
	"github.com/shimmeringbee/persistence/impl/memory"
	"github.com/shimmeringbee/zwa/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strconv"
	"testing"
	"time"
)

func TestPoller_Persistence(t *testing.T) {
	t.Run("added polls are written to the section", func(t *testing.T) {
		s := memory.New()
		p := newTestPoller(testConfig(), newRecordingExecutor(true))
		p.WithPersistence(s)

		r := sensorGet(7, 30*time.Second, 4)
		r.Interface.Endpoint = 2
		r.Interface.Beam = true
		r.Token = 9

		h, err := p.Add(r)
		require.NoError(t, err)

		es := s.Section(entrySectionKey, strconv.Itoa(int(h)))

		node, _ := es.Int(NodeIDKey)
		assert.Equal(t, 7, int(node))

		endpoint, _ := es.Int(EndpointKey)
		assert.Equal(t, 2, int(endpoint))

		beam, _ := es.Bool(BeamKey)
		assert.True(t, beam)

		cmd, _ := es.String(CommandKey)
		assert.Equal(t, "3104", cmd)

		interval, _ := converter.Retrieve(es, IntervalKey, converter.DurationDecoder, time.Duration(0))
		assert.Equal(t, 30*time.Second, interval)

		count, _ := es.Int(CountKey)
		assert.Equal(t, 4, int(count))

		token, _ := es.Int(TokenKey)
		assert.Equal(t, 9, int(token))
	})

	t.Run("removed polls are deleted from the section", func(t *testing.T) {
		s := memory.New()
		p := newTestPoller(testConfig(), newRecordingExecutor(true))
		p.WithPersistence(s)

		h1, _ := p.Add(sensorGet(7, 30*time.Second, 0))
		h2, _ := p.Add(sensorGet(8, 30*time.Second, 0))

		assert.NoError(t, p.Remove(h1))

		assert.Equal(t, []string{strconv.Itoa(int(h2))}, s.Section(entrySectionKey).SectionKeys())
	})

	t.Run("the remaining count is kept up to date as a poll fires", func(t *testing.T) {
		s := memory.New()
		e := newRecordingExecutor(true)
		p := newTestPoller(testConfig(), e)
		p.WithPersistence(s)

		h, _ := p.Add(sensorGet(7, 2*time.Second, 3))
		advance(p, 2)
		require.Equal(t, 1, e.count())

		count, _ := s.Section(entrySectionKey, strconv.Itoa(int(h))).Int(CountKey)
		assert.Equal(t, 2, int(count))
	})

	t.Run("load restores persisted polls into a new poller", func(t *testing.T) {
		s := memory.New()

		first := newTestPoller(testConfig(), newRecordingExecutor(true))
		first.WithPersistence(s)

		r := switchGet(4, 20*time.Second, 2)
		r.Interface.Secure = true
		r.Token = 3
		_, _ = first.Add(r)
		_, _ = first.Add(sensorGet(9, 40*time.Second, 0))

		first.Exit()
		assert.Len(t, s.Section(entrySectionKey).SectionKeys(), 2)

		second := newTestPoller(testConfig(), newRecordingExecutor(true))
		second.WithPersistence(s)

		assert.Equal(t, 2, second.Load(context.Background(), nil))

		entries := second.Entries()
		require.Len(t, entries, 2)

		assert.Equal(t, descriptor.NodeID(4), entries[0].Interface.NodeID)
		assert.True(t, entries[0].Interface.Secure)
		assert.Equal(t, []byte{0x25, 0x02}, entries[0].Command)
		assert.Equal(t, descriptor.Command(0x03), entries[0].Report)
		assert.Equal(t, uint32(20), entries[0].Interval)
		assert.Equal(t, uint32(2), entries[0].Count)
		assert.Equal(t, uint32(3), entries[0].Token)

		assert.Equal(t, descriptor.NodeID(9), entries[1].Interface.NodeID)
		assert.Len(t, s.Section(entrySectionKey).SectionKeys(), 2)
	})

	t.Run("load addresses restored polls to the interface the resolver returns", func(t *testing.T) {
		s := memory.New()

		first := newTestPoller(testConfig(), newRecordingExecutor(true))
		first.WithPersistence(s)

		_, _ = first.Add(switchGet(4, 20*time.Second, 0))
		_, _ = first.Add(sensorGet(9, 40*time.Second, 0))
		first.Exit()

		second := newTestPoller(testConfig(), newRecordingExecutor(true))
		second.WithPersistence(s)

		loaded := second.Load(context.Background(), func(i descriptor.InterfaceDescriptor) (descriptor.InterfaceDescriptor, bool) {
			if i.NodeID != 4 {
				return descriptor.InterfaceDescriptor{}, false
			}

			i.ID = 42
			i.Beam = true
			return i, true
		})
		assert.Equal(t, 1, loaded)

		entries := second.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, uint32(42), entries[0].Interface.ID)
		assert.True(t, entries[0].Interface.Beam)
		assert.Equal(t, descriptor.NodeID(4), entries[0].Interface.NodeID)

		assert.Len(t, s.Section(entrySectionKey).SectionKeys(), 1)
	})

	t.Run("load discards entries that can not be decoded", func(t *testing.T) {
		s := memory.New()
		s.Section(entrySectionKey, "1").Set(NodeIDKey, 3)
		s.Section(entrySectionKey, "1").Set(CommandClassKey, 0x31)
		s.Section(entrySectionKey, "1").Set(CommandKey, "not hex")

		p := newTestPoller(testConfig(), newRecordingExecutor(true))
		p.WithPersistence(s)

		assert.Equal(t, 0, p.Load(context.Background(), nil))
		assert.Equal(t, 0, p.Len())
		assert.Empty(t, s.Section(entrySectionKey).SectionKeys())
	})
}

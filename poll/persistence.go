package poll

import (
	"context"
	"encoding/hex"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/persistence"
	"github.com/shimmeringbee/persistence/converter"
	"github.com/shimmeringbee/zwa/descriptor"
	"strconv"
	"time"
)

const entrySectionKey = "entry"

const NodeIDKey = "NodeID"
const EndpointKey = "Endpoint"
const CommandClassKey = "CommandClass"
const VersionKey = "Version"
const SecureKey = "Secure"
const BeamKey = "Beam"
const CommandKey = "Command"
const IntervalKey = "Interval"
const CountKey = "Count"
const TokenKey = "Token"

func (p *Poller) _entrySection(handle uint32) persistence.Section {
	return p.section.Section(entrySectionKey, strconv.FormatUint(uint64(handle), 10))
}

func (p *Poller) _persist(e *Entry) {
	if p.section == nil {
		return
	}

	s := p._entrySection(e.Handle)

	s.Set(NodeIDKey, int(e.Interface.NodeID))
	s.Set(EndpointKey, int(e.Interface.Endpoint))
	s.Set(CommandClassKey, int(e.Interface.CommandClass))
	s.Set(VersionKey, int(e.Interface.Version))
	s.Set(SecureKey, e.Interface.Secure)
	s.Set(BeamKey, e.Interface.Beam)
	s.Set(CommandKey, hex.EncodeToString(e.Command))
	converter.Store(s, IntervalKey, e.requested, converter.DurationEncoder)
	s.Set(CountKey, int(e.Count))
	s.Set(TokenKey, int(e.Token))
}

func (p *Poller) _persistCount(e *Entry) {
	if p.section == nil {
		return
	}

	p._entrySection(e.Handle).Set(CountKey, int(e.Count))
}

func (p *Poller) _unpersist(e *Entry) {
	if p.section == nil {
		return
	}

	p.section.Section(entrySectionKey).SectionDelete(strconv.FormatUint(uint64(e.Handle), 10))
}

// Resolver maps a persisted interface onto the interface currently known for it, reporting false if it is gone.
type Resolver func(descriptor.InterfaceDescriptor) (descriptor.InterfaceDescriptor, bool)

// Load restores the polls persisted by a previous run. Restored polls are given new handles, entries that can not
// be decoded or re-added are discarded. If resolve is given each poll is addressed to the interface it returns, and
// polls of interfaces it does not know are discarded.
func (p *Poller) Load(pctx context.Context, resolve Resolver) int {
	if p.section == nil || !p.cfg.Enabled {
		return 0
	}

	ctx, end := p.logger.Segment(pctx, "Loading persisted polls.")
	defer end()

	entries := p.section.Section(entrySectionKey)

	var requests []Request

	for _, k := range entries.SectionKeys() {
		if r, ok := requestFromSection(entries.Section(k)); ok {
			requests = append(requests, r)
		} else {
			p.logger.LogWarn(ctx, "Discarding undecodable persisted poll.", logwrap.Datum("Key", k))
		}

		entries.SectionDelete(k)
	}

	loaded := 0

	for _, r := range requests {
		if resolve != nil {
			iface, found := resolve(r.Interface)
			if !found {
				p.logger.LogWarn(ctx, "Discarding persisted poll of unknown interface.", logwrap.Datum("Interface", r.Interface.String()))
				continue
			}

			r.Interface = iface
		}

		if handle, err := p.Add(r); err != nil {
			p.logger.LogWarn(ctx, "Failed to restore persisted poll.", logwrap.Datum("Interface", r.Interface.String()), logwrap.Err(err))
		} else {
			p.logger.LogDebug(ctx, "Restored persisted poll.", logwrap.Datum("Handle", handle), logwrap.Datum("Interface", r.Interface.String()))
			loaded++
		}
	}

	return loaded
}

func requestFromSection(s persistence.Section) (Request, bool) {
	var r Request

	node, ok := s.Int(NodeIDKey)
	if !ok {
		return r, false
	}

	cc, ok := s.Int(CommandClassKey)
	if !ok {
		return r, false
	}

	cmdHex, ok := s.String(CommandKey)
	if !ok {
		return r, false
	}

	cmd, err := hex.DecodeString(cmdHex)
	if err != nil {
		return r, false
	}

	endpoint, _ := s.Int(EndpointKey)
	version, _ := s.Int(VersionKey)
	secure, _ := s.Bool(SecureKey)
	beam, _ := s.Bool(BeamKey)
	count, _ := s.Int(CountKey)
	token, _ := s.Int(TokenKey)
	interval, _ := converter.Retrieve(s, IntervalKey, converter.DurationDecoder, time.Duration(0))

	r.Interface = descriptor.InterfaceDescriptor{
		NodeID:       descriptor.NodeID(node),
		Endpoint:     descriptor.EndpointID(endpoint),
		CommandClass: descriptor.CommandClass(cc),
		Version:      uint8(version),
		Secure:       secure,
		Beam:         beam,
	}
	r.Command = cmd
	r.Interval = interval
	r.Count = uint32(count)
	r.Token = uint32(token)

	return r, true
}

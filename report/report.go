// Package report predicts the report a correctly functioning device answers a command with.
package report

import (
	"errors"
	"github.com/shimmeringbee/zwa/descriptor"
	"sync"
)

var ErrReportNotFound = errors.New("no report expected for command")

// Predictor returns the command class and report command a device should answer an encoded command with.
type Predictor interface {
	Predict(cmd []byte) (descriptor.CommandClass, descriptor.Command, error)
}

const (
	CommandClassBasic                descriptor.CommandClass = 0x20
	CommandClassSwitchBinary         descriptor.CommandClass = 0x25
	CommandClassSwitchMultilevel     descriptor.CommandClass = 0x26
	CommandClassSensorBinary         descriptor.CommandClass = 0x30
	CommandClassSensorMultilevel     descriptor.CommandClass = 0x31
	CommandClassMeter                descriptor.CommandClass = 0x32
	CommandClassThermostatMode       descriptor.CommandClass = 0x40
	CommandClassThermostatSetpoint   descriptor.CommandClass = 0x43
	CommandClassDoorLock             descriptor.CommandClass = 0x62
	CommandClassConfiguration        descriptor.CommandClass = 0x70
	CommandClassAlarm                descriptor.CommandClass = 0x71
	CommandClassManufacturerSpecific descriptor.CommandClass = 0x72
	CommandClassNodeNaming           descriptor.CommandClass = 0x77
	CommandClassBattery              descriptor.CommandClass = 0x80
	CommandClassClock                descriptor.CommandClass = 0x81
	CommandClassWakeUp               descriptor.CommandClass = 0x84
	CommandClassAssociation          descriptor.CommandClass = 0x85
	CommandClassVersion              descriptor.CommandClass = 0x86
)

type key struct {
	commandClass descriptor.CommandClass
	command      descriptor.Command
}

// Table is a Predictor backed by a get to report lookup.
type Table struct {
	lock    *sync.RWMutex
	reports map[key]descriptor.Command
}

// NewTable returns a Table populated with the get and report pairs of the common command classes.
func NewTable() *Table {
	t := &Table{
		lock:    &sync.RWMutex{},
		reports: make(map[key]descriptor.Command),
	}

	for _, p := range []struct {
		cc     descriptor.CommandClass
		get    descriptor.Command
		report descriptor.Command
	}{
		{CommandClassBasic, 0x02, 0x03},
		{CommandClassSwitchBinary, 0x02, 0x03},
		{CommandClassSwitchMultilevel, 0x02, 0x03},
		{CommandClassSensorBinary, 0x02, 0x03},
		{CommandClassSensorMultilevel, 0x01, 0x02},
		{CommandClassSensorMultilevel, 0x03, 0x06},
		{CommandClassSensorMultilevel, 0x04, 0x05},
		{CommandClassMeter, 0x01, 0x02},
		{CommandClassMeter, 0x03, 0x04},
		{CommandClassThermostatMode, 0x02, 0x03},
		{CommandClassThermostatSetpoint, 0x02, 0x03},
		{CommandClassDoorLock, 0x02, 0x03},
		{CommandClassConfiguration, 0x05, 0x06},
		{CommandClassAlarm, 0x04, 0x05},
		{CommandClassManufacturerSpecific, 0x04, 0x05},
		{CommandClassNodeNaming, 0x02, 0x03},
		{CommandClassNodeNaming, 0x05, 0x06},
		{CommandClassBattery, 0x02, 0x03},
		{CommandClassClock, 0x05, 0x06},
		{CommandClassWakeUp, 0x05, 0x06},
		{CommandClassAssociation, 0x02, 0x03},
		{CommandClassAssociation, 0x05, 0x06},
		{CommandClassVersion, 0x11, 0x12},
		{CommandClassVersion, 0x13, 0x14},
	} {
		t.reports[key{p.cc, p.get}] = p.report
	}

	return t
}

// Register adds or replaces the report expected for a get command.
func (t *Table) Register(cc descriptor.CommandClass, get descriptor.Command, report descriptor.Command) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.reports[key{cc, get}] = report
}

func (t *Table) Predict(cmd []byte) (descriptor.CommandClass, descriptor.Command, error) {
	if len(cmd) < 2 {
		return 0, 0, ErrReportNotFound
	}

	k := key{descriptor.CommandClass(cmd[0]), descriptor.Command(cmd[1])}

	t.lock.RLock()
	defer t.lock.RUnlock()

	if r, found := t.reports[k]; found {
		return k.commandClass, r, nil
	}

	return 0, 0, ErrReportNotFound
}

var _ Predictor = (*Table)(nil)

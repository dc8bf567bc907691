package process

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jalv-go/jalv/internal/lv2"
	"github.com/jalv-go/jalv/internal/lv2/testplugin"
	"github.com/jalv-go/jalv/internal/ports"
	"github.com/jalv-go/jalv/internal/ringproto"
	"github.com/jalv-go/jalv/pkg/ring"
)

// connectControlPorts mirrors what internal/host does at Activate: every
// Control port is connected directly to its slot in the buffers array.
func connectControlPorts(plugin *testplugin.Plugin, table *ports.Table) {
	for i := range table.Ports {
		p := &table.Ports[i]
		if p.Type == lv2.PortControl {
			plugin.ConnectPort(p.Index, unsafe.Pointer(&table.Buffers[p.Index]))
		}
	}
}

type recordingForwarder struct {
	controlChanges []ringproto.ControlPortChange
	latencyChanges []uint32
}

func (f *recordingForwarder) WriteControlPortChange(port uint32, value float32) error {
	f.controlChanges = append(f.controlChanges, ringproto.ControlPortChange{Port: port, Value: value})
	return nil
}
func (f *recordingForwarder) WriteEventTransfer(port, atomType uint32, body []byte) error { return nil }
func (f *recordingForwarder) WriteLatencyChange(frames uint32) error {
	f.latencyChanges = append(f.latencyChanges, frames)
	return nil
}

func newTestCycle(t *testing.T, meta []lv2.PortMetadata) (*Cycle, *testplugin.Plugin, *ports.Table, *ring.Ring, *recordingForwarder) {
	t.Helper()
	plugin := testplugin.New(meta, nil)
	table, err := ports.Setup(plugin, 4096)
	require.NoError(t, err)

	uiToPlugin := ring.New(4096)
	fwd := &recordingForwarder{}
	c := New(plugin, table, uiToPlugin, fwd, nil, nil, 1<<30, nil, 2, 4096)
	return c, plugin, table, uiToPlugin, fwd
}

func Test_controlPortChangeAppliedBeforeRun(t *testing.T) {
	// Port indices are dense (0..N-1), so the Control input at port 5
	// sits after five other ports.
	meta := []lv2.PortMetadata{
		{Index: 0, Type: lv2.PortAudio, Flow: lv2.FlowInput, Symbol: "in_l"},
		{Index: 1, Type: lv2.PortAudio, Flow: lv2.FlowInput, Symbol: "in_r"},
		{Index: 2, Type: lv2.PortAudio, Flow: lv2.FlowOutput, Symbol: "out_l"},
		{Index: 3, Type: lv2.PortAudio, Flow: lv2.FlowOutput, Symbol: "out_r"},
		{Index: 4, Type: lv2.PortEvent, Flow: lv2.FlowInput, Symbol: "control"},
		{Index: 5, Type: lv2.PortControl, Flow: lv2.FlowInput, Symbol: "gain", Default: 0},
	}
	c, plugin, table, r, _ := newTestCycle(t, meta)
	connectControlPorts(plugin, table)

	tx := r.BeginWrite()
	require.NoError(t, ringproto.WriteControlPortChange(r, &tx, 5, 0.75))
	require.NoError(t, r.CommitWrite(tx))

	c.Run(64, nil, nil)

	assert.Equal(t, float32(0.75), table.Buffers[5])
	assert.Equal(t, float32(0.75), plugin.LastRun[5])
}

func Test_pausedCycleAppliesQueuedControlChangesButSilencesEvents(t *testing.T) {
	meta := []lv2.PortMetadata{
		{Index: 0, Type: lv2.PortControl, Flow: lv2.FlowInput, Symbol: "gain"},
		{Index: 1, Type: lv2.PortEvent, Flow: lv2.FlowOutput, Symbol: "notify"},
	}
	c, _, table, r, _ := newTestCycle(t, meta)
	c.runState.Store(int32(Paused))

	tx := r.BeginWrite()
	require.NoError(t, ringproto.WriteControlPortChange(r, &tx, 0, 0.5))
	require.NoError(t, r.CommitWrite(tx))

	c.Run(128, nil, nil)

	assert.Equal(t, float32(0.5), table.Buffers[0])
	assert.Equal(t, 0, table.Ports[1].Evbuf.Len())
}

func Test_updateThrottlingEmitsEveryFourthCycle(t *testing.T) {
	meta := []lv2.PortMetadata{
		{Index: 0, Type: lv2.PortControl, Flow: lv2.FlowOutput, Symbol: "meter"},
	}
	plugin := testplugin.New(meta, nil)
	table, err := ports.Setup(plugin, 4096)
	require.NoError(t, err)
	uiToPlugin := ring.New(4096)
	fwd := &recordingForwarder{}
	c := New(plugin, table, uiToPlugin, fwd, nil, nil, 1024, nil, 2, 4096)

	for i := 0; i < 4; i++ {
		c.Run(256, nil, nil)
	}

	assert.Len(t, fwd.controlChanges, 1)
}

func Test_latencyChangeEmittedOnceOnTransition(t *testing.T) {
	meta := []lv2.PortMetadata{
		{Index: 0, Type: lv2.PortControl, Flow: lv2.FlowOutput, Symbol: "latency", Designation: lv2.DesignationLatency},
	}
	plugin := testplugin.New(meta, nil)
	table, err := ports.Setup(plugin, 4096)
	require.NoError(t, err)
	uiToPlugin := ring.New(4096)
	fwd := &recordingForwarder{}
	c := New(plugin, table, uiToPlugin, fwd, nil, nil, 1<<30, nil, 2, 4096)

	c.Run(64, nil, nil) // latency 0 -> 0, no change emitted (same cached value)
	table.Buffers[0] = 512
	c.Run(64, nil, nil) // 0 -> 512, one change
	c.Run(64, nil, nil) // unchanged, no further change

	require.Len(t, fwd.latencyChanges, 1)
	assert.Equal(t, uint32(512), fwd.latencyChanges[0])
}

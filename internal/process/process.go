// Package process implements the realtime entry point: the per-cycle
// drain/execute/respond/emit sequence of a single realtime block. Cycle
// never allocates once Activate has returned, never blocks on a mutex,
// and never touches the RDF world or a non-realtime-safe log sink.
package process

import (
	"encoding/binary"
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/jalv-go/jalv/internal/applog"
	"github.com/jalv-go/jalv/internal/atom"
	"github.com/jalv-go/jalv/internal/lv2"
	"github.com/jalv-go/jalv/internal/ports"
	"github.com/jalv-go/jalv/internal/ringproto"
	"github.com/jalv-go/jalv/internal/transport"
	"github.com/jalv-go/jalv/internal/worker"
	"github.com/jalv-go/jalv/pkg/ring"
)

// RunState mirrors the value carried on RUN_STATE_CHANGE messages.
type RunState int

const (
	Running RunState = iota
	Paused
)

const maxLatencyFrames = 1 << 24

// UIForwarder receives events the RT thread wants to forward to an
// attached UI (console or remote); Process calls it with exactly the
// ring-write side of the ui ring. nil means no UI is attached.
type UIForwarder interface {
	WriteControlPortChange(port uint32, value float32) error
	WriteEventTransfer(port, atomType uint32, body []byte) error
	WriteLatencyChange(frames uint32) error
}

// Cycle is the preallocated realtime state a process callback needs: the
// plugin handle, both rings, the worker handles, the port table, the
// transport position, the run state, the pending-frames counter and the
// update period.
type Cycle struct {
	plugin lv2.Plugin
	table  *ports.Table

	uiToPlugin *ring.Ring
	pluginToUI UIForwarder

	normalWorker *worker.Worker
	stateWorker  *worker.Worker

	position      transport.Position
	posChanged    bool
	runState      atomic.Int32
	pausedSem     chan struct{}
	pendingFrames uint32
	updatePeriod  uint32
	cachedLatency map[uint32]uint32
	primaryInput  int
	patchGetAtom  struct {
		typeURID uint32
		body     []byte
	}
	positionAtomURID uint32

	// rxHeader/rxBody are the preallocated receive scratch the RT thread
	// decodes ui->plugin ring messages into, sized once at construction
	// to the largest admissible message (the biggest input Event port's
	// capacity plus the EVENT_TRANSFER prefix). Never grown afterward.
	rxHeader [ringproto.HeaderSize]byte
	rxBody   []byte

	// posBody is the scratch positionAtomBody encodes into, so emitting
	// a transport-position atom never allocates.
	posBody [17]byte

	// channels is the backend's interleaved stream channel count, used
	// to de/re-interleave audioScratch against the flat buffer the
	// backend hands Run. audioScratch holds one preallocated per-sample
	// buffer per Audio/CV port, indexed by port index; nil for every
	// other port. Sized once at construction to maxBlockFrames, never
	// grown per cycle.
	channels     int
	audioScratch [][]float32

	sink *applog.RTSink
}

// New constructs a Cycle. updatePeriodFrames is the pending-frames
// threshold computed from config.UpdatePeriodFrames. channels is the
// backend's interleaved stream channel count and maxBlockFrames is the
// largest nframes Run will ever be called with; both size the
// preallocated Audio/CV scratch.
func New(plugin lv2.Plugin, table *ports.Table, uiToPlugin *ring.Ring, pluginToUI UIForwarder,
	normalWorker, stateWorker *worker.Worker, updatePeriodFrames uint32, sink *applog.RTSink,
	channels int, maxBlockFrames uint32) *Cycle {
	rxBodyCap := table.MaxInputEvbuf + 12
	if rxBodyCap < 16 {
		rxBodyCap = 16
	}

	c := &Cycle{
		plugin:        plugin,
		table:         table,
		uiToPlugin:    uiToPlugin,
		pluginToUI:    pluginToUI,
		normalWorker:  normalWorker,
		stateWorker:   stateWorker,
		pausedSem:     make(chan struct{}, 1),
		updatePeriod:  updatePeriodFrames,
		cachedLatency: make(map[uint32]uint32),
		primaryInput:  table.PrimaryInput,
		rxBody:        make([]byte, rxBodyCap),
		channels:      channels,
		audioScratch:  make([][]float32, len(table.Ports)),
		sink:          sink,
	}
	for i := range table.Ports {
		p := &table.Ports[i]
		if p.Type == lv2.PortAudio || p.Type == lv2.PortCV {
			c.audioScratch[i] = make([]float32, maxBlockFrames)
		}
	}
	c.runState.Store(int32(Running))
	return c
}

// SetPositionAtomURID installs the URID forged transport-position atoms
// carry, so prepareInputs can build one without depending on the RDF
// world directly.
func (c *Cycle) SetPositionAtomURID(urid uint32) { c.positionAtomURID = urid }

// SetPosition updates the RT thread's view of the backend's transport
// position; if it changed, the next Run forges a position event. The
// PortAudio driver reports no transport and never calls it.
func (c *Cycle) SetPosition(next transport.Position) {
	if c.position.Changed(next) {
		c.posChanged = true
	}
	c.position = next
}

// SetPatchGetAtom installs the precomputed patch:Get atom STATE_REQUEST
// injects into the primary control-input evbuf.
func (c *Cycle) SetPatchGetAtom(typeURID uint32, body []byte) {
	c.patchGetAtom.typeURID = typeURID
	c.patchGetAtom.body = body
}

// RunState reports the current run state. Safe to call from any thread.
func (c *Cycle) RunState() RunState { return RunState(c.runState.Load()) }

// PausedChan is posted to once by the RT thread on transitioning to
// Paused; the UI thread's Apply() waits on it.
func (c *Cycle) PausedChan() <-chan struct{} { return c.pausedSem }

// Run executes one cycle of nframes. in/out are the backend's flat
// interleaved duplex buffers for this cycle (nil if the backend holds
// no raw sample access); Run never allocates.
func (c *Cycle) Run(nframes uint32, in, out []float32) {
	c.prepareInputs()
	c.connectAudioPorts(nframes, in)
	c.drainUIRing()

	if c.RunState() == Paused {
		c.silenceOutputs(out)
	} else {
		c.plugin.Run(nframes)
		c.emitAudioOutputs(nframes, out)
	}

	c.drainWorkerResponses()

	c.pendingFrames += nframes
	sendUpdates := false
	if c.pendingFrames >= c.updatePeriod {
		sendUpdates = true
		c.pendingFrames = 0
	}

	c.emitOutputs(sendUpdates)
}

// prepareInputs resets every event buffer for the cycle and connects
// transport/BPM state, run once per port before plugin.Run.
func (c *Cycle) prepareInputs() {
	for i := range c.table.Ports {
		p := &c.table.Ports[i]

		if p.Type == lv2.PortControl && p.Flow == lv2.FlowInput && p.IsBPM {
			c.table.Buffers[p.Index] = float32(c.position.BPM)
			if c.pluginToUI != nil {
				_ = c.pluginToUI.WriteControlPortChange(p.Index, float32(c.position.BPM))
			}
			continue
		}

		if p.Type != lv2.PortEvent {
			continue
		}
		if p.Flow == lv2.FlowInput {
			p.Evbuf.Reset(atom.Input)
			if c.posChanged && p.SupportsPosition {
				c.appendToInputEvbuf(p.Index, c.positionAtomURID, c.positionAtomBody())
			}
		} else {
			p.Evbuf.Reset(atom.Output)
		}
	}
	c.posChanged = false
}

// positionAtomBody encodes the current transport position into posBody
// as a flat {frame, bpm, rolling} body. A full time:Position atom
// object is out of scope for this host core; this carries exactly what
// a plugin needs to resynchronize, in the same flat encoding ringproto
// uses elsewhere.
func (c *Cycle) positionAtomBody() []byte {
	putInt64(c.posBody[0:8], c.position.Frame)
	putFloat64(c.posBody[8:16], c.position.BPM)
	if c.position.Rolling {
		c.posBody[16] = 1
	} else {
		c.posBody[16] = 0
	}
	return c.posBody[:]
}

// connectAudioPorts de-interleaves in into each Audio/CV input port's
// scratch buffer and connects it, and connects each Audio/CV output
// port's scratch buffer so plugin.Run writes into it; emitAudioOutputs
// re-interleaves the latter into out afterward. Mirrors the original
// jalv_run's per-cycle lilv_instance_connect_port for Audio/CV ports,
// adapted to this backend's single flat duplex buffer in place of
// discrete per-port system buffers.
func (c *Cycle) connectAudioPorts(nframes uint32, in []float32) {
	n := int(nframes)
	for i := range c.table.Ports {
		p := &c.table.Ports[i]
		if p.Type != lv2.PortAudio && p.Type != lv2.PortCV {
			continue
		}
		scratch := c.audioScratch[i]
		if len(scratch) == 0 {
			continue
		}
		m := n
		if m > len(scratch) {
			m = len(scratch)
		}
		if p.Flow == lv2.FlowInput {
			deinterleave(scratch[:m], in, p.ChannelIndex, c.channels)
		}
		c.plugin.ConnectPort(p.Index, unsafe.Pointer(&scratch[0]))
	}
}

// emitAudioOutputs re-interleaves each Audio/CV output port's scratch
// buffer (just filled by plugin.Run) into the backend's flat out buffer.
func (c *Cycle) emitAudioOutputs(nframes uint32, out []float32) {
	if out == nil {
		return
	}
	n := int(nframes)
	for i := range c.table.Ports {
		p := &c.table.Ports[i]
		if p.Flow != lv2.FlowOutput || (p.Type != lv2.PortAudio && p.Type != lv2.PortCV) {
			continue
		}
		scratch := c.audioScratch[i]
		if len(scratch) == 0 {
			continue
		}
		m := n
		if m > len(scratch) {
			m = len(scratch)
		}
		reinterleave(out, scratch, p.ChannelIndex, c.channels, m)
	}
}

func deinterleave(dst, interleaved []float32, channel, channels int) {
	if channels < 1 {
		channels = 1
	}
	for i := range dst {
		idx := i*channels + channel
		if idx >= 0 && idx < len(interleaved) {
			dst[i] = interleaved[idx]
		} else {
			dst[i] = 0
		}
	}
}

func reinterleave(out, scratch []float32, channel, channels, n int) {
	if channels < 1 {
		channels = 1
	}
	for i := 0; i < n; i++ {
		idx := i*channels + channel
		if idx >= 0 && idx < len(out) {
			out[idx] = scratch[i]
		}
	}
}

// drainUIRing reads ring messages until the ring runs dry, applying
// each by kind. A malformed read stops the drain for this cycle
// without failing the cycle; outputs are still emitted.
func (c *Cycle) drainUIRing() {
	for c.uiToPlugin.ReadSpace() >= ringproto.HeaderSize {
		hdr, err := ringproto.ReadHeaderInto(c.uiToPlugin, c.rxHeader[:])
		if err != nil {
			c.postWarning("malformed ring header")
			return
		}

		body, err := ringproto.ReadBodyInto(c.uiToPlugin, c.rxBody, hdr.Size)
		if err != nil {
			c.postWarning("malformed ring body")
			return
		}

		switch hdr.Kind {
		case ringproto.KindControlPortChange:
			cpc, err := ringproto.ReadControlPortChangeBody(body)
			if err != nil {
				c.postWarning("malformed control port change")
				continue
			}
			if int(cpc.Port) < len(c.table.Buffers) {
				c.table.Buffers[cpc.Port] = cpc.Value
			}

		case ringproto.KindEventTransfer:
			et, err := ringproto.ReadEventTransferBody(body)
			if err != nil {
				c.postWarning("malformed event transfer")
				continue
			}
			c.appendToInputEvbuf(et.Port, et.AtomType, et.AtomBody)

		case ringproto.KindStateRequest:
			if c.primaryInput >= 0 {
				c.appendToInputEvbuf(uint32(c.primaryInput), c.patchGetAtom.typeURID, c.patchGetAtom.body)
			}

		case ringproto.KindRunStateChange:
			rs, err := ringproto.ReadRunStateChangeBody(body)
			if err != nil {
				c.postWarning("malformed run state change")
				continue
			}
			c.setRunState(rs)

		default:
			c.postWarning("unknown ring message kind")
		}
	}
}

func (c *Cycle) setRunState(rs ringproto.RunStateWire) {
	switch rs {
	case ringproto.RunStatePausedWire:
		c.runState.Store(int32(Paused))
		select {
		case c.pausedSem <- struct{}{}:
		default:
		}
	case ringproto.RunStateRunningWire:
		c.runState.Store(int32(Running))
	}
}

func (c *Cycle) appendToInputEvbuf(port, atomType uint32, body []byte) {
	if int(port) >= len(c.table.Ports) {
		return
	}
	p := &c.table.Ports[port]
	if p.Evbuf == nil {
		return
	}
	if err := p.Evbuf.Append(atom.Event{FrameOffset: 0, TypeURID: atomType, Body: body}); err != nil {
		c.postWarning("event buffer full")
	}
}

// silenceOutputs implements the Paused branch of a cycle: zero every
// Audio/CV output buffer and clear every event output buffer.
func (c *Cycle) silenceOutputs(out []float32) {
	if out != nil {
		clear(out)
	}
	for i := range c.table.Ports {
		p := &c.table.Ports[i]
		if p.Flow != lv2.FlowOutput {
			continue
		}
		if p.Type == lv2.PortEvent {
			p.Evbuf.Reset(atom.Output)
		}
	}
}

// drainWorkerResponses drains responses in a fixed order: state worker first,
// then the normal worker. Only a Threaded worker drains anything, ending
// with end_run(); an Inline worker's DrainResponses does nothing.
func (c *Cycle) drainWorkerResponses() {
	if c.stateWorker != nil {
		c.stateWorker.DrainResponses()
	}
	if c.normalWorker != nil {
		c.normalWorker.DrainResponses()
	}
}

// emitOutputs copies control-output port values to the UI ring.
func (c *Cycle) emitOutputs(sendUpdates bool) {
	for i := range c.table.Ports {
		p := &c.table.Ports[i]
		if p.Flow != lv2.FlowOutput {
			continue
		}

		switch p.Type {
		case lv2.PortControl:
			if p.ReportsLatency {
				c.emitLatencyIfChanged(p.Index, c.table.Buffers[p.Index])
				continue
			}
			if sendUpdates && c.pluginToUI != nil {
				_ = c.pluginToUI.WriteControlPortChange(p.Index, c.table.Buffers[p.Index])
			}

		case lv2.PortEvent:
			if p.Evbuf == nil {
				continue
			}
			portIndex := p.Index
			p.Evbuf.Each(func(ev atom.Event) bool {
				if c.pluginToUI != nil {
					_ = c.pluginToUI.WriteEventTransfer(portIndex, ev.TypeURID, ev.Body)
				}
				return true
			})
		}
	}
}

func (c *Cycle) emitLatencyIfChanged(port uint32, value float32) {
	frames := uint32(value)
	if frames > maxLatencyFrames {
		frames = maxLatencyFrames
	}
	cached, ok := c.cachedLatency[port]
	if !ok {
		cached = 0 // undeclared means "was 0" so a genuine 0 -> 0 report stays silent
	}
	if cached == frames {
		return
	}
	c.cachedLatency[port] = frames
	if c.pluginToUI != nil {
		_ = c.pluginToUI.WriteLatencyChange(frames)
	}
}

func (c *Cycle) postWarning(msg string) {
	if c.sink != nil {
		c.sink.Post(applog.LevelWarning, msg)
	}
}

func putInt64(b []byte, v int64)     { binary.NativeEndian.PutUint64(b, uint64(v)) }
func putFloat64(b []byte, v float64) { binary.NativeEndian.PutUint64(b, math.Float64bits(v)) }

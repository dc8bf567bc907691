// Package backend declares the contract the core consumes from any
// audio driver. internal/backend/portaudio is the
// one concrete implementation.
package backend

import (
	"unsafe"

	"github.com/jalv-go/jalv/internal/ports"
)

// Settings are negotiated between the core and the driver at Open:
// the core fills in what it wants, the driver may adjust SampleRate/
// BlockLength/MidiBufSize to what the device actually supports.
type Settings struct {
	SampleRate  float64
	BlockLength uint32
	MidiBufSize uint32
}

// ProcessFunc is the core's per-cycle entry point, invoked by the
// driver's realtime callback with the number of frames for this cycle
// and the driver's flat interleaved duplex buffers. A driver with no
// raw sample access passes nil for in/out.
type ProcessFunc func(nframes uint32, in, out []float32)

// Callbacks are registered at Open.
type Callbacks struct {
	Process  ProcessFunc
	// BufferSizeChanged, when non-nil, is called when the backend must
	// reconfigure for a new block length (e.g. a JACK buffer-size
	// change). internal/host leaves it nil and does not re-activate
	// anything on a block-length change.
	BufferSizeChanged func(newBlockLength uint32)
	// Shutdown is called once, from the driver's own thread, when the
	// backend is closing out from under the core (device unplugged,
	// server quit); it posts the host's done signal.
	Shutdown func()
}

// Backend is the contract internal/host drives a concrete audio driver
// through.
type Backend interface {
	// Allocate performs one-time, non-realtime setup (library init,
	// device enumeration). Free releases it.
	Allocate() error
	Free()

	// Open negotiates settings and registers callbacks. exactNameOnly
	// requests the driver fail rather than rename the client if name is
	// taken. The driver mutates settings in place with the values it
	// actually settled on.
	Open(settings *Settings, callbacks Callbacks, name string, exactNameOnly bool) error
	Close()

	Activate() error
	Deactivate()

	// ActivatePort connects a Control port directly to its Buffers
	// slot, or allocates a system port handle for Audio/CV/MIDI ports
	// and stores it on the table entry.
	ActivatePort(table *ports.Table, portIndex uint32) error

	// RecomputeLatencies is requested by the core when a plugin emits
	// LATENCY_CHANGE.
	RecomputeLatencies()
}

// ControlPointer returns an unsafe.Pointer to the float32 slot backing
// a Control port, for ActivatePort implementations connecting the
// plugin directly to the buffers array (mirrors lv2.Plugin.ConnectPort's
// signature, which drivers call on the core's behalf via Process).
func ControlPointer(buffers ports.Buffers, index uint32) unsafe.Pointer {
	return unsafe.Pointer(&buffers[index])
}

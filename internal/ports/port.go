// Package ports holds the Port table, the dense ControlBuffers array, and
// the Activate-time classification/sizing pass (ProcessSetup) described in
// port table.
package ports

import (
	"github.com/jalv-go/jalv/internal/atom"
	"github.com/jalv-go/jalv/internal/jalverr"
	"github.com/jalv-go/jalv/internal/lv2"
)

// Port is one plugin input/output slot, immutable after Activate.
type Port struct {
	Index  uint32
	Type   lv2.PortType
	Flow   lv2.PortFlow
	Symbol string
	Label  string

	BufferSizeHint uint32 // 0 if unset

	ReportsLatency   bool
	SupportsMIDI     bool
	SupportsPosition bool
	IsPrimary        bool // the single designated control-event input
	IsBPM            bool // lv2:designation lv2:BPM — the current-tempo control input

	// Evbuf is non-nil only for Event ports, allocated at Activate.
	Evbuf *atom.Evbuf

	// BackendHandle is an opaque handle the backend driver stores here
	// in ActivatePort: a system port reference for the ports the driver
	// opens, or, for Control ports, the pointer to the port's Buffers
	// slot. nil for ports the driver does not handle.
	BackendHandle any

	// ChannelIndex is the backend stream channel an Audio/CV port reads
	// from or writes to, assigned by ActivatePort; -1 until then and for
	// every non-Audio/CV port.
	ChannelIndex int
}

// Buffers is the dense array of current Control port values, indexed by
// port index. Allocated once at Activate, sized to the
// number of ports, and never reallocated during the RT cycle.
type Buffers []float32

// NewBuffers allocates a Buffers array for numPorts ports, all zeroed.
func NewBuffers(numPorts int) Buffers {
	return make(Buffers, numPorts)
}

// Table is the full port array plus the derived maxima ProcessSetup
// computes for the ring allocator.
type Table struct {
	Ports   []Port
	Buffers Buffers

	// PrimaryInput is the index of the single designated control-event
	// input, or -1 if the plugin declares none.
	PrimaryInput int

	// MaxInputEvbuf / MaxOutputEvbuf are the largest input/output event
	// port buffer sizes, used to size the ui->plugin and plugin->ui
	// rings respectively.
	MaxInputEvbuf  uint32
	MaxOutputEvbuf uint32
}

// Setup classifies every port from world metadata, sizes and allocates
// its Evbuf if it is an Event port, and computes the ring-sizing maxima.
// midiBufSize is the default buffer size used when a port declares no
// rsz:minimumSize hint.
func Setup(world lv2.World, midiBufSize uint32) (*Table, error) {
	meta := world.Ports()
	t := &Table{
		Ports:        make([]Port, len(meta)),
		Buffers:      NewBuffers(len(meta)),
		PrimaryInput: -1,
	}

	for i, pm := range meta {
		p := Port{
			Index:            pm.Index,
			Type:             pm.Type,
			Flow:             pm.Flow,
			Symbol:           pm.Symbol,
			Label:            pm.Label,
			BufferSizeHint:   pm.MinimumSizeHint,
			SupportsMIDI:     pm.SupportsMIDI,
			SupportsPosition: pm.SupportsPosition,
			ReportsLatency:   pm.Designation == lv2.DesignationLatency,
			IsPrimary:        pm.Designation == lv2.DesignationControlInput,
			IsBPM:            pm.Designation == lv2.DesignationBPM,
			ChannelIndex:     -1,
		}

		if p.Flow == lv2.FlowUnknown {
			return nil, &jalverr.PortMetadataError{Index: p.Index, Field: "flow"}
		}
		if p.Type == lv2.PortUnknown {
			return nil, &jalverr.PortMetadataError{Index: p.Index, Field: "type"}
		}

		if p.Type == lv2.PortEvent {
			size := midiBufSize
			if pm.MinimumSizeHint > size {
				size = pm.MinimumSizeHint
			}
			p.Evbuf = atom.NewEvbuf(size)
			if p.Flow == lv2.FlowInput && size > t.MaxInputEvbuf {
				t.MaxInputEvbuf = size
			}
			if p.Flow == lv2.FlowOutput && size > t.MaxOutputEvbuf {
				t.MaxOutputEvbuf = size
			}
		}

		if p.IsPrimary && p.Flow == lv2.FlowInput {
			t.PrimaryInput = int(p.Index)
		}

		t.Ports[i] = p
	}

	return t, nil
}

// Deactivate frees every Evbuf and clears backend handles, undoing what
// Activate/ActivatePort set up.
func (t *Table) Deactivate() {
	for i := range t.Ports {
		t.Ports[i].Evbuf = nil
		t.Ports[i].BackendHandle = nil
		t.Ports[i].ChannelIndex = -1
	}
}

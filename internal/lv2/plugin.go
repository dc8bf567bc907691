// Package lv2 declares the interfaces this host consumes from its external
// collaborators: the RDF world (plugin discovery and port/preset
// metadata), the URID mapper, and the plugin instance itself. None of
// these are implemented here — the RDF world, the URID
// mapper proper, the atom serializer and the plugin binary are all
// out of scope for the host core. lv2/testplugin provides in-memory
// fakes satisfying all three for use by every other package's tests.
package lv2

import "unsafe"

// PortType classifies a port's signal kind.
type PortType int

const (
	PortUnknown PortType = iota
	PortControl
	PortAudio
	PortCV
	PortEvent
)

// PortFlow classifies a port's direction.
type PortFlow int

const (
	FlowUnknown PortFlow = iota
	FlowInput
	FlowOutput
)

// PortDesignation names a well-known role a port can be assigned, as
// queried from the RDF world at setup time.
type PortDesignation int

const (
	DesignationNone PortDesignation = iota
	DesignationControlInput // lv2:control — the primary event input
	DesignationLatency
	DesignationBPM
)

// ScalePoint is a (value, label) pair enumerating a meaningful setting.
type ScalePoint struct {
	Value float32
	Label string
}

// PortMetadata is everything internal/ports needs from the RDF world
// about one port, queried once at Activate.
type PortMetadata struct {
	Index            uint32
	Symbol           string
	Label            string
	Type             PortType
	Flow             PortFlow
	Designation      PortDesignation
	MinimumSizeHint  uint32 // rsz:minimumSize, 0 if absent
	SupportsMIDI     bool
	SupportsPosition bool
	NotOnGUI         bool
	Default, Min, Max float32
	IsToggle         bool
	IsInteger        bool
	IsEnumeration    bool
	IsLogarithmic    bool
	SampleRateScaled bool // port's min/max are expressed relative to sample rate
	ScalePoints      []ScalePoint
	GroupURI         string
}

// ValueType enumerates the LV2 atom types a PropertyControl's value can
// take, per the PropertyControl invariant.
type ValueType int

const (
	ValueUnset ValueType = iota
	ValueInt
	ValueLong
	ValueFloat
	ValueDouble
	ValueBool
	ValueString
	ValuePath
)

// PropertyMetadata describes one patch:writable or patch:readable
// parameter declared by the plugin.
type PropertyMetadata struct {
	URI          string
	URID         uint32
	Label        string
	ValueType    ValueType
	Writable     bool
	Readable     bool
	Default, Min, Max float64
}

// World is the subset of RDF-world queries internal/ports and
// internal/controls need. A real implementation backs this with an LV2
// World and SPARQL-ish port/property queries; out of scope here.
type World interface {
	Ports() []PortMetadata
	Properties() []PropertyMetadata
	// PatchGetAtom returns a pre-serialized patch:Get atom body and its
	// type URID, used by Process to inject state-resync requests.
	PatchGetAtom() (typeURID uint32, body []byte)
}

// URIDMapper interns URIs to stable 32-bit ids and back. internal/host
// holds no URIDMapper; testplugin.URIDMapper implements it for tests.
type URIDMapper interface {
	Map(uri string) uint32
	Unmap(id uint32) string
}

// Plugin is the instantiated plugin binary. Run is called from the
// realtime thread, as is ConnectPort for Audio/CV ports each cycle;
// Activate, Deactivate and the Control/Event ConnectPort calls are made
// by the host outside the cycle, at open and close. Work/WorkResponse
// run on the worker thread and the RT thread respectively.
type Plugin interface {
	ConnectPort(index uint32, ptr unsafe.Pointer)
	Activate()
	Run(sampleCount uint32)
	Deactivate()

	// ThreadSafeRestore reports whether the plugin declared
	// state:threadSafeRestore, which lets State.Apply skip the
	// pause-restore handshake.
	ThreadSafeRestore() bool
}

// Worker is implemented by plugins that offload work via the LV2 worker
// extension. Not all plugins implement it; internal/worker type-asserts.
type Worker interface {
	// Work is called on the worker thread (or inline, on the caller)
	// with one task body; it replies zero or more times via respond.
	Work(respond func(body []byte) error, body []byte) error
	// WorkResponse is called on the RT thread for each reply Work
	// produced, in the cycle the response is drained.
	WorkResponse(body []byte) error
	// EndRun is called once per cycle after all responses for that
	// cycle have been delivered, if the plugin implements it.
	EndRun()
}

// StateHost is implemented by plugins that support LV2 state save/restore.
type StateHost interface {
	// SaveState returns (symbol, value-bytes, value-type-urid) triples
	// for every port/property the plugin wants persisted beyond what
	// the host already captures from ControlBuffers.
	SaveState() (map[string]StateValue, error)
	// RestoreState is called once per saved field during State.Apply.
	RestoreState(symbol string, value StateValue) error
}

// StateValue is a typed, already-encoded value as stored in a preset.
type StateValue struct {
	TypeURID uint32
	Body     []byte
}

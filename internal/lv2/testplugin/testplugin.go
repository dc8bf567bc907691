// Package testplugin is an in-memory fake LV2 plugin/world/URID-mapper
// used by every other package's tests instead of a real .lv2 bundle.
package testplugin

import (
	"sync"
	"unsafe"

	"github.com/jalv-go/jalv/internal/lv2"
)

// Plugin is a minimal, fully in-process Plugin+World+Worker+StateHost
// fake. Run copies the current value of every connected Control port
// (input or output) into LastRun so tests can assert on what the "plugin" observed.
type Plugin struct {
	mu sync.Mutex

	ports []lv2.PortMetadata
	props []lv2.PropertyMetadata

	connected map[uint32]unsafe.Pointer
	LastRun   map[uint32]float32

	threadSafeRestore bool

	WorkFunc         func(respond func([]byte) error, body []byte) error
	WorkResponseFunc func(body []byte) error
	EndRunFunc       func()

	RestoredFields map[string]lv2.StateValue
}

// New creates a fake plugin with the given port metadata.
func New(ports []lv2.PortMetadata, props []lv2.PropertyMetadata) *Plugin {
	return &Plugin{
		ports:          ports,
		props:          props,
		connected:      map[uint32]unsafe.Pointer{},
		LastRun:        map[uint32]float32{},
		RestoredFields: map[string]lv2.StateValue{},
	}
}

// SetThreadSafeRestore configures whether ThreadSafeRestore reports true.
func (p *Plugin) SetThreadSafeRestore(v bool) { p.threadSafeRestore = v }

func (p *Plugin) ConnectPort(index uint32, ptr unsafe.Pointer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected[index] = ptr
}

func (p *Plugin) Activate()   {}
func (p *Plugin) Deactivate() {}

func (p *Plugin) Run(sampleCount uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pm := range p.ports {
		if pm.Type != lv2.PortControl {
			continue
		}
		if ptr, ok := p.connected[pm.Index]; ok && ptr != nil {
			p.LastRun[pm.Index] = *(*float32)(ptr)
		}
	}
}

func (p *Plugin) ThreadSafeRestore() bool { return p.threadSafeRestore }

func (p *Plugin) Work(respond func([]byte) error, body []byte) error {
	if p.WorkFunc != nil {
		return p.WorkFunc(respond, body)
	}
	return nil
}

func (p *Plugin) WorkResponse(body []byte) error {
	if p.WorkResponseFunc != nil {
		return p.WorkResponseFunc(body)
	}
	return nil
}

func (p *Plugin) EndRun() {
	if p.EndRunFunc != nil {
		p.EndRunFunc()
	}
}

func (p *Plugin) SaveState() (map[string]lv2.StateValue, error) {
	return nil, nil
}

func (p *Plugin) RestoreState(symbol string, value lv2.StateValue) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RestoredFields[symbol] = value
	return nil
}

// Ports implements lv2.World.
func (p *Plugin) Ports() []lv2.PortMetadata { return p.ports }

// Properties implements lv2.World.
func (p *Plugin) Properties() []lv2.PropertyMetadata { return p.props }

// PatchGetAtom implements lv2.World with a fixed stand-in atom.
func (p *Plugin) PatchGetAtom() (uint32, []byte) {
	return 1, []byte("patch:Get")
}

// URIDMapper is a trivial in-memory mapper for tests that need one
// independent of internal/symap.
type URIDMapper struct {
	mu   sync.Mutex
	ids  map[string]uint32
	strs []string
}

func NewURIDMapper() *URIDMapper {
	return &URIDMapper{ids: map[string]uint32{}}
}

func (m *URIDMapper) Map(uri string) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.ids[uri]; ok {
		return id
	}
	m.strs = append(m.strs, uri)
	id := uint32(len(m.strs))
	m.ids[uri] = id
	return id
}

func (m *URIDMapper) Unmap(id uint32) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == 0 || int(id) > len(m.strs) {
		return ""
	}
	return m.strs[id-1]
}

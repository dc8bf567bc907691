// Package controls unifies Port and Property controls behind one
// enumeration: construction from world metadata, symbol/URID lookup,
// and SetControl's ring-enqueue behavior.
package controls

import (
	"encoding/binary"
	"math"
	"sort"
	"sync"

	"github.com/jalv-go/jalv/internal/anyvalue"
	"github.com/jalv-go/jalv/internal/lv2"
	"github.com/jalv-go/jalv/internal/ringproto"
	"github.com/jalv-go/jalv/pkg/ring"
)

// Kind discriminates the two Control variants.
type Kind int

const (
	KindPort Kind = iota
	KindProperty
)

// Control is either a PortControl or a PropertyControl, unified so a
// frontend can walk one list regardless of origin.
type Control struct {
	Kind Kind

	// Common fields.
	Symbol  string
	Label   string
	Default float64
	Min     float64
	Max     float64

	// PortControl fields (Kind == KindPort).
	PortIndex     uint32
	IsToggle      bool
	IsInteger     bool
	IsEnumeration bool
	IsLogarithmic bool
	ScalePoints   []lv2.ScalePoint
	GroupURI      string

	// PropertyControl fields (Kind == KindProperty).
	PropertyURI  string
	PropertyURID uint32
	ValueType    lv2.ValueType
	Writable     bool
	Readable     bool
}

// Set is the collection of every Control the plugin exposes, kept in
// construction order: port controls in world port order, then property
// controls in world property order. The list is not sorted by symbol,
// label or any other key.
type Set struct {
	mu          sync.RWMutex
	ordered     []*Control
	bySymbol    map[string]*Control
	byURID      map[uint32]*Control
	primaryPort int // primary control-event input port index, -1 if none

	// patchSetTypeURID/patchPutTypeURID are the patch:Set/patch:Put type
	// URIDs this Set forges outbound property changes with and
	// recognizes inbound ones by. Placeholder values until SetPatchURIDs
	// installs the ones internal/host resolves from the URID mapper.
	patchSetTypeURID uint32
	patchPutTypeURID uint32
}

// Build constructs the Control set from world metadata: one PortControl
// per non-hidden Control port, one PropertyControl per patch:writable/
// readable property with a resolvable value type. showHidden includes
// ports flagged NotOnGUI.
func Build(world lv2.World, sampleRate float64, showHidden bool, primaryPort int) *Set {
	s := &Set{
		bySymbol:         map[string]*Control{},
		byURID:           map[uint32]*Control{},
		primaryPort:      primaryPort,
		patchSetTypeURID: 1,
		patchPutTypeURID: 2,
	}

	for _, pm := range world.Ports() {
		if pm.Type != lv2.PortControl || pm.Flow != lv2.FlowInput {
			continue
		}
		if pm.NotOnGUI && !showHidden {
			continue
		}

		min, max := float64(pm.Min), float64(pm.Max)
		if pm.SampleRateScaled {
			min *= sampleRate
			max *= sampleRate
		}

		pts := make([]lv2.ScalePoint, len(pm.ScalePoints))
		copy(pts, pm.ScalePoints)
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].Value < pts[j].Value })

		c := &Control{
			Kind:          KindPort,
			Symbol:        pm.Symbol,
			Label:         pm.Label,
			Default:       float64(pm.Default),
			Min:           min,
			Max:           max,
			PortIndex:     pm.Index,
			IsToggle:      pm.IsToggle,
			IsInteger:     pm.IsInteger,
			IsEnumeration: pm.IsEnumeration,
			IsLogarithmic: pm.IsLogarithmic,
			ScalePoints:   pts,
			GroupURI:      pm.GroupURI,
		}
		s.add(c)
	}

	for _, prop := range world.Properties() {
		if prop.ValueType == lv2.ValueUnset {
			continue
		}
		if existing, ok := s.byURID[prop.URID]; ok && existing.Kind == KindProperty {
			existing.Readable = existing.Readable || prop.Readable
			existing.Writable = existing.Writable || prop.Writable
			continue
		}
		if !prop.Writable && !prop.Readable {
			continue
		}
		c := &Control{
			Kind:         KindProperty,
			Symbol:       prop.URI,
			Label:        prop.Label,
			Default:      prop.Default,
			Min:          prop.Min,
			Max:          prop.Max,
			PropertyURI:  prop.URI,
			PropertyURID: prop.URID,
			ValueType:    prop.ValueType,
			Writable:     prop.Writable,
			Readable:     prop.Readable,
		}
		s.add(c)
	}

	return s
}

func (s *Set) add(c *Control) {
	s.ordered = append(s.ordered, c)
	s.bySymbol[c.Symbol] = c
	if c.Kind == KindProperty {
		s.byURID[c.PropertyURID] = c
	}
}

// ByIndex returns the Control at position i in construction order.
func (s *Set) ByIndex(i int) *Control {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.ordered) {
		return nil
	}
	return s.ordered[i]
}

// Len reports the number of controls in the set.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ordered)
}

// BySymbol performs the O(n) linear symbol lookup
// for — acceptable since it is only invoked at load/state time.
func (s *Set) BySymbol(symbol string) *Control {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.ordered {
		if c.Symbol == symbol {
			return c
		}
	}
	return nil
}

// ByPropertyURID performs the O(n) property-URID lookup.
func (s *Set) ByPropertyURID(urid uint32) *Control {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.ordered {
		if c.Kind == KindProperty && c.PropertyURID == urid {
			return c
		}
	}
	return nil
}

// Set applies a new value to a control, enqueueing the appropriate ring
// message, covering both control kinds:
//   - a Float PortControl enqueues exactly one CONTROL_PORT_CHANGE
//     addressed to its port index;
//   - a PropertyControl forges a patch:Set body and enqueues exactly one
//     EVENT_TRANSFER addressed to the primary control-input port.
func (s *Set) Set(r *ring.Ring, c *Control, value anyvalue.Value) error {
	switch c.Kind {
	case KindPort:
		tx := r.BeginWrite()
		if err := ringproto.WriteControlPortChange(r, &tx, c.PortIndex, float32FromValue(value)); err != nil {
			return err
		}
		return r.CommitWrite(tx)
	case KindProperty:
		body := forgePatchSet(c.PropertyURID, value)
		tx := r.BeginWrite()
		if err := ringproto.WriteEventTransfer(r, &tx, uint32(s.primaryPort), s.patchSetTypeURID, body); err != nil {
			return err
		}
		return r.CommitWrite(tx)
	}
	return nil
}

// PatchSetTypeURID returns the patch:Set type URID outbound property
// changes are forged with and inbound ones are recognized by.
func (s *Set) PatchSetTypeURID() uint32 { return s.patchSetTypeURID }

// PatchPutTypeURID returns the patch:Put type URID inbound
// plugin-initiated state dumps are recognized by.
func (s *Set) PatchPutTypeURID() uint32 { return s.patchPutTypeURID }

// SetPatchURIDs lets internal/host install the real patch:Set/patch:Put
// URIDs once resolved from the URID mapper.
func (s *Set) SetPatchURIDs(patchSet, patchPut uint32) {
	s.patchSetTypeURID = patchSet
	s.patchPutTypeURID = patchPut
}

// ValueFromFloat encodes a float64 as the anyvalue.Value appropriate
// for c's kind: a bare float32 for a PortControl (all port values are
// LV2 Control ports, i.e. floats), or c.ValueType's native encoding for
// a PropertyControl.
func ValueFromFloat(c *Control, value float64) anyvalue.Value {
	if c.Kind == KindPort {
		body := make([]byte, 4)
		binary.NativeEndian.PutUint32(body, math.Float32bits(float32(value)))
		return anyvalue.New(0, body)
	}

	switch c.ValueType {
	case lv2.ValueInt:
		body := make([]byte, 4)
		binary.NativeEndian.PutUint32(body, uint32(int32(value)))
		return anyvalue.New(uint32(c.ValueType), body)
	case lv2.ValueLong:
		body := make([]byte, 8)
		binary.NativeEndian.PutUint64(body, uint64(int64(value)))
		return anyvalue.New(uint32(c.ValueType), body)
	case lv2.ValueDouble:
		body := make([]byte, 8)
		binary.NativeEndian.PutUint64(body, math.Float64bits(value))
		return anyvalue.New(uint32(c.ValueType), body)
	case lv2.ValueBool:
		body := make([]byte, 4)
		if value != 0 {
			binary.NativeEndian.PutUint32(body, 1)
		}
		return anyvalue.New(uint32(c.ValueType), body)
	default: // ValueFloat and anything else numeric-shaped
		body := make([]byte, 4)
		binary.NativeEndian.PutUint32(body, math.Float32bits(float32(value)))
		return anyvalue.New(uint32(c.ValueType), body)
	}
}

func float32FromValue(v anyvalue.Value) float32 {
	b := v.Bytes()
	if len(b) < 4 {
		return 0
	}
	return math.Float32frombits(binary.NativeEndian.Uint32(b[0:4]))
}

// forgePatchSet builds a minimal patch:Set atom body: the property URID
// followed by the value's encoded bytes. A full atom forge (nested
// Object/Property atoms) is out of scope for this host core; this flat
// encoding carries exactly what Controls.Set and ringproto need.
func forgePatchSet(propertyURID uint32, value anyvalue.Value) []byte {
	body := make([]byte, 4+len(value.Bytes()))
	binary.NativeEndian.PutUint32(body[0:4], propertyURID)
	copy(body[4:], value.Bytes())
	return body
}

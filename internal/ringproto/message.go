// Package ringproto defines the byte-exact wire format carried over the
// ui<->plugin rings: a {u32 kind, u32 size} header, native endian,
// followed by size bytes of a packed body.
package ringproto

import (
	"encoding/binary"
	"math"

	"github.com/jalv-go/jalv/internal/jalverr"
	"github.com/jalv-go/jalv/pkg/ring"
)

// Kind identifies a message's body shape.
type Kind uint32

const (
	KindControlPortChange Kind = iota + 1
	KindEventTransfer
	KindLatencyChange
	KindStateRequest
	KindRunStateChange
)

// HeaderSize is the on-wire size of {u32 kind, u32 size}.
const HeaderSize = 8

// RunStateWire mirrors process.RunState without importing it, keeping
// ringproto free of a dependency on the process package.
type RunStateWire uint32

const (
	RunStateRunningWire RunStateWire = 0
	RunStatePausedWire  RunStateWire = 1
)

var nativeEndian = binary.NativeEndian

// WriteControlPortChange amends {u32 kind=ControlPortChange, u32 size=8}
// {u32 port, f32 value} into tx.
func WriteControlPortChange(r *ring.Ring, tx *ring.WriteTx, port uint32, value float32) error {
	body := make([]byte, 8)
	nativeEndian.PutUint32(body[0:4], port)
	nativeEndian.PutUint32(body[4:8], float32bits(value))
	return writeMessage(r, tx, KindControlPortChange, body)
}

// WriteLatencyChange amends a LATENCY_CHANGE message.
func WriteLatencyChange(r *ring.Ring, tx *ring.WriteTx, frames uint32) error {
	body := make([]byte, 4)
	nativeEndian.PutUint32(body, frames)
	return writeMessage(r, tx, KindLatencyChange, body)
}

// WriteRunStateChange amends a RUN_STATE_CHANGE message.
func WriteRunStateChange(r *ring.Ring, tx *ring.WriteTx, state RunStateWire) error {
	body := make([]byte, 4)
	nativeEndian.PutUint32(body, uint32(state))
	return writeMessage(r, tx, KindRunStateChange, body)
}

// WriteStateRequest amends an empty-body STATE_REQUEST message.
func WriteStateRequest(r *ring.Ring, tx *ring.WriteTx) error {
	return writeMessage(r, tx, KindStateRequest, nil)
}

// WriteEventTransfer amends {u32 port, {u32 size, u32 type}, body}.
func WriteEventTransfer(r *ring.Ring, tx *ring.WriteTx, port, atomType uint32, atomBody []byte) error {
	body := make([]byte, 12+len(atomBody))
	nativeEndian.PutUint32(body[0:4], port)
	nativeEndian.PutUint32(body[4:8], uint32(len(atomBody)))
	nativeEndian.PutUint32(body[8:12], atomType)
	copy(body[12:], atomBody)
	return writeMessage(r, tx, KindEventTransfer, body)
}

func writeMessage(r *ring.Ring, tx *ring.WriteTx, kind Kind, body []byte) error {
	header := make([]byte, HeaderSize)
	nativeEndian.PutUint32(header[0:4], uint32(kind))
	nativeEndian.PutUint32(header[4:8], uint32(len(body)))
	if err := r.AmendWrite(tx, header); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return r.AmendWrite(tx, body)
}

// Header is a decoded {kind, body_size} pair.
type Header struct {
	Kind Kind
	Size uint32
}

// ReadHeader reads and advances past the next message header. Returns
// ErrRingMalformed if the ring does not have a full header available.
func ReadHeader(r *ring.Ring) (Header, error) {
	buf := make([]byte, HeaderSize)
	if err := r.Read(buf); err != nil {
		return Header{}, jalverr.ErrRingMalformed
	}
	return Header{
		Kind: Kind(nativeEndian.Uint32(buf[0:4])),
		Size: nativeEndian.Uint32(buf[4:8]),
	}, nil
}

// WriteControlPortChangeInto writes a CONTROL_PORT_CHANGE message using
// only stack-allocated scratch, for callers on the realtime thread that
// must not allocate.
func WriteControlPortChangeInto(r *ring.Ring, tx *ring.WriteTx, port uint32, value float32) error {
	var header [HeaderSize]byte
	nativeEndian.PutUint32(header[0:4], uint32(KindControlPortChange))
	nativeEndian.PutUint32(header[4:8], 8)
	if err := r.AmendWrite(tx, header[:]); err != nil {
		return err
	}
	var body [8]byte
	nativeEndian.PutUint32(body[0:4], port)
	nativeEndian.PutUint32(body[4:8], float32bits(value))
	return r.AmendWrite(tx, body[:])
}

// WriteLatencyChangeInto writes a LATENCY_CHANGE message using only
// stack-allocated scratch.
func WriteLatencyChangeInto(r *ring.Ring, tx *ring.WriteTx, frames uint32) error {
	var header [HeaderSize]byte
	nativeEndian.PutUint32(header[0:4], uint32(KindLatencyChange))
	nativeEndian.PutUint32(header[4:8], 4)
	if err := r.AmendWrite(tx, header[:]); err != nil {
		return err
	}
	var body [4]byte
	nativeEndian.PutUint32(body[:], frames)
	return r.AmendWrite(tx, body[:])
}

// WriteEventTransferInto writes an EVENT_TRANSFER message without
// concatenating the header and atomBody into a fresh allocation: the
// outer header and the {port, size, type} prefix are built on the
// stack, and atomBody is amended directly.
func WriteEventTransferInto(r *ring.Ring, tx *ring.WriteTx, port, atomType uint32, atomBody []byte) error {
	var header [HeaderSize]byte
	nativeEndian.PutUint32(header[0:4], uint32(KindEventTransfer))
	nativeEndian.PutUint32(header[4:8], uint32(12+len(atomBody)))
	if err := r.AmendWrite(tx, header[:]); err != nil {
		return err
	}
	var prefix [12]byte
	nativeEndian.PutUint32(prefix[0:4], port)
	nativeEndian.PutUint32(prefix[4:8], uint32(len(atomBody)))
	nativeEndian.PutUint32(prefix[8:12], atomType)
	if err := r.AmendWrite(tx, prefix[:]); err != nil {
		return err
	}
	if len(atomBody) == 0 {
		return nil
	}
	return r.AmendWrite(tx, atomBody)
}

// ReadHeaderInto reads the next message header into scratch (which must
// be at least HeaderSize long), avoiding the per-call allocation
// ReadHeader makes. For realtime callers.
func ReadHeaderInto(r *ring.Ring, scratch []byte) (Header, error) {
	if len(scratch) < HeaderSize {
		return Header{}, jalverr.ErrRingMalformed
	}
	if err := r.Read(scratch[:HeaderSize]); err != nil {
		return Header{}, jalverr.ErrRingMalformed
	}
	return Header{
		Kind: Kind(nativeEndian.Uint32(scratch[0:4])),
		Size: nativeEndian.Uint32(scratch[4:8]),
	}, nil
}

// ReadBodyInto reads exactly n bytes into scratch and returns the
// prefix holding them, aliasing scratch rather than allocating a fresh
// body each call. scratch must be at least n bytes long. For realtime
// callers; the returned slice is only valid until the next read into
// the same scratch.
func ReadBodyInto(r *ring.Ring, scratch []byte, n uint32) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if uint32(len(scratch)) < n {
		return nil, jalverr.ErrRingMalformed
	}
	if err := r.Read(scratch[:n]); err != nil {
		return nil, jalverr.ErrRingMalformed
	}
	return scratch[:n], nil
}

// ControlPortChange is the decoded body of a CONTROL_PORT_CHANGE message.
type ControlPortChange struct {
	Port  uint32
	Value float32
}

// ReadControlPortChangeBody reads an already-validated 8-byte body.
func ReadControlPortChangeBody(body []byte) (ControlPortChange, error) {
	if len(body) != 8 {
		return ControlPortChange{}, jalverr.ErrRingMalformed
	}
	return ControlPortChange{
		Port:  nativeEndian.Uint32(body[0:4]),
		Value: float32frombits(nativeEndian.Uint32(body[4:8])),
	}, nil
}

// EventTransfer is the decoded body of an EVENT_TRANSFER message.
type EventTransfer struct {
	Port     uint32
	AtomType uint32
	AtomBody []byte
}

// ReadEventTransferBody reads an already-validated body whose first 12
// bytes are {port, atom_size, atom_type}.
func ReadEventTransferBody(body []byte) (EventTransfer, error) {
	if len(body) < 12 {
		return EventTransfer{}, jalverr.ErrRingMalformed
	}
	port := nativeEndian.Uint32(body[0:4])
	atomSize := nativeEndian.Uint32(body[4:8])
	atomType := nativeEndian.Uint32(body[8:12])
	if uint32(len(body)-12) != atomSize {
		return EventTransfer{}, jalverr.ErrRingMalformed
	}
	return EventTransfer{Port: port, AtomType: atomType, AtomBody: body[12:]}, nil
}

// ReadLatencyChangeBody reads an already-validated 4-byte body.
func ReadLatencyChangeBody(body []byte) (uint32, error) {
	if len(body) != 4 {
		return 0, jalverr.ErrRingMalformed
	}
	return nativeEndian.Uint32(body), nil
}

// ReadRunStateChangeBody reads an already-validated 4-byte body.
func ReadRunStateChangeBody(body []byte) (RunStateWire, error) {
	if len(body) != 4 {
		return 0, jalverr.ErrRingMalformed
	}
	return RunStateWire(nativeEndian.Uint32(body)), nil
}

// ReadBody reads exactly n bytes as a message body.
func ReadBody(r *ring.Ring, n uint32) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	body := make([]byte, n)
	if err := r.Read(body); err != nil {
		return nil, jalverr.ErrRingMalformed
	}
	return body, nil
}

func float32bits(f float32) uint32     { return math.Float32bits(f) }
func float32frombits(b uint32) float32 { return math.Float32frombits(b) }

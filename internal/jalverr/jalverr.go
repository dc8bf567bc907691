// Package jalverr collects the sentinel and typed errors shared across the
// host, so callers can use errors.Is/As instead of string matching.
package jalverr

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions with no associated data.
var (
	// ErrRingOverflow names the condition of a message not fitting in a
	// ring's free space. pkg/ring reports that condition as
	// ring.ErrOverflow and nothing returns this sentinel; the RT cycle
	// ignores the error of a ring write that does not fit.
	ErrRingOverflow = errors.New("jalv: ring overflow")

	// ErrRingMalformed is returned by the RT reader when a message is
	// short, has a mismatched body_size, or carries an unknown kind.
	// This is never raised to the caller — Process.Cycle posts a warning
	// and stops draining the ring for that cycle. Outputs are not
	// silenced: the plugin still runs and its outputs are emitted.
	ErrRingMalformed = errors.New("jalv: malformed ring message")

	// ErrUnsupportedFeature is fatal at Open: the plugin requires a
	// feature the host does not provide.
	ErrUnsupportedFeature = errors.New("jalv: unsupported required feature")

	// ErrInstantiationFailed is fatal at Open.
	ErrInstantiationFailed = errors.New("jalv: plugin instantiation failed")

	// ErrBackendOpenFailed is fatal at Open.
	ErrBackendOpenFailed = errors.New("jalv: backend open failed")

	// ErrNoValueType is a warning: a patch:writable/readable property
	// declared no rdfs:range, so the control was dropped.
	ErrNoValueType = errors.New("jalv: property has no determinable value type")

	// ErrPresetFieldMissing is a warning: a saved preset is missing a
	// symbol or value for one field; that field is skipped.
	ErrPresetFieldMissing = errors.New("jalv: preset missing symbol or value")

	// ErrPatchFieldMissing is returned by internal/patch when a
	// patch:Set/patch:Put body is too short to contain its required
	// field.
	ErrPatchFieldMissing = errors.New("jalv: patch message missing required field")
)

// PortMetadataError is fatal at Open: a port is missing required
// metadata (flow and type are both always required).
type PortMetadataError struct {
	Index uint32
	Field string // "flow" or "type"
}

func (e *PortMetadataError) Error() string {
	return fmt.Sprintf("jalv: port %d missing required metadata %q", e.Index, e.Field)
}

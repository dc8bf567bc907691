// Package patch implements the two pure parsers over LV2 atom-object
// messages, used by the UI-update path to
// recognize plugin-emitted property changes.
package patch

import (
	"encoding/binary"

	"github.com/jalv-go/jalv/internal/anyvalue"
	"github.com/jalv-go/jalv/internal/jalverr"
)

// Set is the decoded result of patch_set_get: a property URID and the
// value assigned to it.
type Set struct {
	PropertyURID uint32
	Value        anyvalue.Value
}

// GetSet extracts {property_urid, value} from a flat patch:Set body
// encoded the way internal/controls.forgePatchSet and
// internal/process's EVENT_TRANSFER path produce it: a u32 property
// URID followed by the value bytes. Returns ErrPatchFieldMissing if the
// body is too short to contain a property URID.
func GetSet(valueTypeURID uint32, body []byte) (Set, error) {
	if len(body) < 4 {
		return Set{}, jalverr.ErrPatchFieldMissing
	}
	propertyURID := binary.NativeEndian.Uint32(body[0:4])
	value := anyvalue.New(valueTypeURID, body[4:])
	return Set{PropertyURID: propertyURID, Value: value}, nil
}

// Put is the decoded result of patch_put_get: the nested body object
// carried by a patch:Put message.
type Put struct {
	Body []byte
}

// GetPut extracts the patch:body payload from a flat patch:Put
// encoding: the body itself, verbatim, with no further structure
// assumed (a full nested-object parse is out of scope per this host core's
// atom-serializer exclusion).
func GetPut(body []byte) (Put, error) {
	if body == nil {
		return Put{}, jalverr.ErrPatchFieldMissing
	}
	return Put{Body: body}, nil
}

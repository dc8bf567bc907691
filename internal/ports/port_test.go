package ports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jalv-go/jalv/internal/jalverr"
	"github.com/jalv-go/jalv/internal/lv2"
)

func worldWithPorts(pm ...lv2.PortMetadata) lv2.World {
	return fakeWorld{ports: pm}
}

type fakeWorld struct {
	ports []lv2.PortMetadata
	props []lv2.PropertyMetadata
}

func (w fakeWorld) Ports() []lv2.PortMetadata           { return w.ports }
func (w fakeWorld) Properties() []lv2.PropertyMetadata  { return w.props }
func (w fakeWorld) PatchGetAtom() (uint32, []byte)      { return 1, nil }

func Test_setupClassifiesPortsAndSizesEvbufs(t *testing.T) {
	world := worldWithPorts(
		lv2.PortMetadata{Index: 0, Type: lv2.PortControl, Flow: lv2.FlowInput, Symbol: "gain"},
		lv2.PortMetadata{Index: 1, Type: lv2.PortAudio, Flow: lv2.FlowInput, Symbol: "in"},
		lv2.PortMetadata{Index: 2, Type: lv2.PortAudio, Flow: lv2.FlowOutput, Symbol: "out"},
		lv2.PortMetadata{Index: 3, Type: lv2.PortEvent, Flow: lv2.FlowInput, Symbol: "control",
			Designation: lv2.DesignationControlInput, MinimumSizeHint: 8192},
		lv2.PortMetadata{Index: 4, Type: lv2.PortEvent, Flow: lv2.FlowOutput, Symbol: "notify"},
	)

	table, err := Setup(world, 4096)
	require.NoError(t, err)
	require.Len(t, table.Ports, 5)

	assert.Equal(t, 3, table.PrimaryInput)
	assert.Equal(t, uint32(8192), table.MaxInputEvbuf)
	assert.Equal(t, uint32(4096), table.MaxOutputEvbuf)

	assert.NotNil(t, table.Ports[3].Evbuf)
	assert.Equal(t, 8192, table.Ports[3].Evbuf.Capacity())
	assert.NotNil(t, table.Ports[4].Evbuf)
	assert.Equal(t, 4096, table.Ports[4].Evbuf.Capacity())
	assert.Nil(t, table.Ports[0].Evbuf)
}

func Test_setupRejectsPortMissingFlow(t *testing.T) {
	world := worldWithPorts(lv2.PortMetadata{Index: 0, Type: lv2.PortControl})
	_, err := Setup(world, 4096)
	require.Error(t, err)
	var metaErr *jalverr.PortMetadataError
	require.ErrorAs(t, err, &metaErr)
	assert.Equal(t, "flow", metaErr.Field)
}

func Test_setupRejectsPortMissingType(t *testing.T) {
	world := worldWithPorts(lv2.PortMetadata{Index: 0, Flow: lv2.FlowInput})
	_, err := Setup(world, 4096)
	require.Error(t, err)
	var metaErr *jalverr.PortMetadataError
	require.ErrorAs(t, err, &metaErr)
	assert.Equal(t, "type", metaErr.Field)
}

func Test_deactivateClearsEvbufsAndHandles(t *testing.T) {
	world := worldWithPorts(
		lv2.PortMetadata{Index: 0, Type: lv2.PortEvent, Flow: lv2.FlowInput, Symbol: "control"},
	)
	table, err := Setup(world, 4096)
	require.NoError(t, err)
	table.Ports[0].BackendHandle = "system:capture_1"

	table.Deactivate()
	assert.Nil(t, table.Ports[0].Evbuf)
	assert.Nil(t, table.Ports[0].BackendHandle)
}

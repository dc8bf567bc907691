package ringproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jalv-go/jalv/pkg/ring"
)

func Test_controlPortChangeRoundTrip(t *testing.T) {
	r := ring.New(256)
	tx := r.BeginWrite()
	require.NoError(t, WriteControlPortChange(r, &tx, 5, 0.75))
	require.NoError(t, r.CommitWrite(tx))

	hdr, err := ReadHeader(r)
	require.NoError(t, err)
	assert.Equal(t, KindControlPortChange, hdr.Kind)

	body, err := ReadBody(r, hdr.Size)
	require.NoError(t, err)

	cpc, err := ReadControlPortChangeBody(body)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), cpc.Port)
	assert.InDelta(t, 0.75, cpc.Value, 1e-9)
}

func Test_eventTransferRoundTrip(t *testing.T) {
	r := ring.New(256)
	tx := r.BeginWrite()
	atomBody := []byte{0x90, 0x40, 0x7f}
	require.NoError(t, WriteEventTransfer(r, &tx, 2, 99, atomBody))
	require.NoError(t, r.CommitWrite(tx))

	hdr, err := ReadHeader(r)
	require.NoError(t, err)
	assert.Equal(t, KindEventTransfer, hdr.Kind)

	body, err := ReadBody(r, hdr.Size)
	require.NoError(t, err)

	ev, err := ReadEventTransferBody(body)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), ev.Port)
	assert.Equal(t, uint32(99), ev.AtomType)
	assert.Equal(t, atomBody, ev.AtomBody)
}

func Test_malformedEventTransferBodyDetected(t *testing.T) {
	_, err := ReadEventTransferBody([]byte{1, 2, 3})
	assert.Error(t, err)
}

func Test_runStateChangeRoundTrip(t *testing.T) {
	r := ring.New(64)
	tx := r.BeginWrite()
	require.NoError(t, WriteRunStateChange(r, &tx, RunStatePausedWire))
	require.NoError(t, r.CommitWrite(tx))

	hdr, err := ReadHeader(r)
	require.NoError(t, err)
	body, err := ReadBody(r, hdr.Size)
	require.NoError(t, err)
	state, err := ReadRunStateChangeBody(body)
	require.NoError(t, err)
	assert.Equal(t, RunStatePausedWire, state)
}

func Test_stateRequestHasEmptyBody(t *testing.T) {
	r := ring.New(64)
	tx := r.BeginWrite()
	require.NoError(t, WriteStateRequest(r, &tx))
	require.NoError(t, r.CommitWrite(tx))

	hdr, err := ReadHeader(r)
	require.NoError(t, err)
	assert.Equal(t, KindStateRequest, hdr.Kind)
	assert.Equal(t, uint32(0), hdr.Size)
}

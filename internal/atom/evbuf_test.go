package atom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_appendAndWalkEvents(t *testing.T) {
	e := NewEvbuf(256)
	e.Reset(Output)

	require.NoError(t, e.Append(Event{FrameOffset: 0, TypeURID: 7, Body: []byte{0x90, 0x40, 0x7f}}))
	require.NoError(t, e.Append(Event{FrameOffset: 32, TypeURID: 7, Body: []byte{0x80, 0x40, 0x00}}))

	events := e.Events()
	require.Len(t, events, 2)
	assert.Equal(t, uint32(0), events[0].FrameOffset)
	assert.Equal(t, []byte{0x90, 0x40, 0x7f}, events[0].Body)
	assert.Equal(t, uint32(32), events[1].FrameOffset)
}

func Test_appendFailsWhenFull(t *testing.T) {
	e := NewEvbuf(16)
	e.Reset(Input)
	err := e.Append(Event{Body: make([]byte, 64)})
	assert.ErrorIs(t, err, ErrEvbufFull)
}

func Test_resetClearsBuffer(t *testing.T) {
	e := NewEvbuf(64)
	e.Reset(Output)
	require.NoError(t, e.Append(Event{TypeURID: 1}))
	assert.NotZero(t, e.Len())

	e.Reset(Input)
	assert.Zero(t, e.Len())
	assert.Equal(t, Input, e.Direction())
}

package patch

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_getSetExtractsPropertyAndValue(t *testing.T) {
	body := make([]byte, 4+4)
	binary.NativeEndian.PutUint32(body[0:4], 42)
	binary.NativeEndian.PutUint32(body[4:8], 0x3f800000) // 1.0f

	s, err := GetSet(7, body)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), s.PropertyURID)
	assert.Equal(t, uint32(7), s.Value.TypeURID())
	assert.Equal(t, body[4:8], s.Value.Bytes())
}

func Test_getSetRejectsShortBody(t *testing.T) {
	_, err := GetSet(7, []byte{1, 2})
	assert.Error(t, err)
}

func Test_getPutReturnsBodyVerbatim(t *testing.T) {
	p, err := GetPut([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, p.Body)
}

func Test_getPutRejectsNilBody(t *testing.T) {
	_, err := GetPut(nil)
	assert.Error(t, err)
}

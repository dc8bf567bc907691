package wavutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_EncodeProducesValidRIFFHeader(t *testing.T) {
	samples := []int16{0, 100, -100, 32767, -32768}
	data := Encode(samples, 16000, 1, 2)

	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "data", string(data[36:40]))
	assert.Len(t, data, 44+len(samples)*2)
}

func Test_IsSilentDetectsZeroBuffer(t *testing.T) {
	silence := make([]int16, 1024)
	assert.True(t, IsSilent(silence, 200, 0.95))

	loud := make([]int16, 1024)
	for i := range loud {
		if i%2 == 0 {
			loud[i] = 30000
		} else {
			loud[i] = -30000
		}
	}
	assert.False(t, IsSilent(loud, 200, 0.95))
}

func Test_ComputeStats(t *testing.T) {
	st := Compute([]int16{10, -20, 30}, 0)
	assert.Equal(t, 3, st.TotalCount)
	assert.Equal(t, int16(30), st.Peak)
}

package symap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func Test_tryMapBeforeMapIsZero(t *testing.T) {
	s := New()
	assert.Equal(t, uint32(0), s.TryMap("http://example.org/foo"))

	id := s.Map("http://example.org/foo")
	assert.NotZero(t, id)
	assert.Equal(t, "http://example.org/foo", s.Unmap(id))
	assert.Equal(t, id, s.TryMap("http://example.org/foo"))
}

func Test_mapIsIdempotentAcrossRandomStrings(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := New()
		strs := rapid.SliceOfN(rapid.StringMatching(`[a-z:/.]{1,20}`), 1, 50).Draw(t, "strs")

		first := make(map[string]uint32, len(strs))
		for _, str := range strs {
			first[str] = s.Map(str)
		}
		for _, str := range strs {
			assert.Equal(t, first[str], s.Map(str))
			assert.Equal(t, str, s.Unmap(first[str]))
		}
	})
}

func Test_unmapUnknownIdIsEmpty(t *testing.T) {
	s := New()
	assert.Equal(t, "", s.Unmap(999))
	assert.Equal(t, "", s.Unmap(0))
}

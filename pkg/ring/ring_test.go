package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func Test_quiescentSpaceInvariant(t *testing.T) {
	rb := New(64)
	assert.Equal(t, rb.Capacity(), rb.ReadSpace()+rb.WriteSpace())

	require.NoError(t, rb.Write([]byte("hello")))
	assert.Equal(t, rb.Capacity(), rb.ReadSpace()+rb.WriteSpace())

	out := make([]byte, 5)
	require.NoError(t, rb.Read(out))
	assert.Equal(t, "hello", string(out))
	assert.Equal(t, rb.Capacity(), rb.ReadSpace()+rb.WriteSpace())
}

func Test_writeReadRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rb := New(256)
		chunkGen := rapid.SliceOfN(rapid.Byte(), 0, 20)
		chunks := rapid.SliceOfN(chunkGen, 0, 30).Draw(t, "chunks")

		var written, read []byte
		for _, c := range chunks {
			if len(c) > rb.WriteSpace() {
				// Drain everything so the next chunk always fits; this
				// models an interleaving of writes with matching reads.
				buf := make([]byte, rb.ReadSpace())
				require.NoError(t, rb.Read(buf))
				read = append(read, buf...)
			}
			require.NoError(t, rb.Write(c))
			written = append(written, c...)

			buf := make([]byte, rb.ReadSpace())
			require.NoError(t, rb.Read(buf))
			read = append(read, buf...)
		}

		assert.Equal(t, written, read)
		assert.Equal(t, rb.Capacity(), rb.ReadSpace()+rb.WriteSpace())
	})
}

func Test_transactionOverflowLeavesNoPartialVisibility(t *testing.T) {
	rb := New(16)
	before := rb.WriteSpace()

	tx := rb.BeginWrite()
	require.NoError(t, rb.AmendWrite(&tx, []byte("0123456789")))
	err := rb.AmendWrite(&tx, []byte("0123456789")) // exceeds remaining space
	assert.ErrorIs(t, err, ErrOverflow)

	// Abandon the transaction without committing.
	assert.Equal(t, 0, rb.ReadSpace())
	assert.Equal(t, before, rb.WriteSpace())
}

func Test_transactionCommitPublishesAtomically(t *testing.T) {
	rb := New(32)

	tx := rb.BeginWrite()
	require.NoError(t, rb.AmendWrite(&tx, []byte{1, 2, 3}))
	assert.Equal(t, 0, rb.ReadSpace(), "reader must not see amended bytes before commit")

	require.NoError(t, rb.AmendWrite(&tx, []byte{4, 5}))
	require.NoError(t, rb.CommitWrite(tx))

	out := make([]byte, 5)
	require.NoError(t, rb.Read(out))
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, out)
}

func Test_peekThenReadMatchSkip(t *testing.T) {
	rb := New(32)
	require.NoError(t, rb.Write([]byte("abcdef")))

	peeked := make([]byte, 6)
	require.NoError(t, rb.Peek(peeked))

	read := make([]byte, 6)
	rb2 := New(32)
	require.NoError(t, rb2.Write([]byte("abcdef")))
	require.NoError(t, rb2.Read(read))

	assert.Equal(t, peeked, read)

	require.NoError(t, rb.Skip(6))
	assert.Equal(t, 0, rb.ReadSpace())
}

func Test_overflowRejected(t *testing.T) {
	rb := New(4)
	err := rb.Write([]byte("too much data"))
	assert.ErrorIs(t, err, ErrOverflow)
}

func Test_underflowRejected(t *testing.T) {
	rb := New(16)
	require.NoError(t, rb.Write([]byte("ab")))
	err := rb.Read(make([]byte, 5))
	assert.ErrorIs(t, err, ErrUnderflow)
}

package remoteui

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_encodeDecodeAtomBodyRoundTrips(t *testing.T) {
	body := []byte{1, 2, 3, 4, 5}
	encoded := EncodeAtomBody(body)
	assert.NotEmpty(t, encoded)

	decoded, err := DecodeAtomBody(encoded)
	require.NoError(t, err)
	assert.Equal(t, body, decoded)
}

func Test_encodeDecodeEmptyAtomBody(t *testing.T) {
	assert.Equal(t, "", EncodeAtomBody(nil))
	decoded, err := DecodeAtomBody("")
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func Test_sendWithoutConnectionIsNoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(ctx, Settings{
		URL:            "ws://127.0.0.1:0/unused",
		ReconnectDelay: time.Hour,
		WriteTimeout:   time.Second,
		ReadTimeout:    time.Second,
		PingInterval:   time.Hour,
	}, nil, nil)

	err := c.Send(Frame{Kind: 1, Port: 2, Value: 0.5})
	assert.NoError(t, err)
}

func Test_stopBeforeStartReturnsImmediately(t *testing.T) {
	ctx := context.Background()
	c := New(ctx, Settings{ReconnectDelay: time.Hour, PingInterval: time.Hour}, nil, nil)

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

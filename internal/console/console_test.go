package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jalv-go/jalv/internal/controls"
)

type fakeHost struct {
	set         *controls.Set
	byIndex     map[int]float64
	bySymbol    map[string]float64
	presetURIs  []string
	loadedURI   string
	monitors    []string
	quit        bool
	failIndex   bool
	failSymbol  bool
}

func (h *fakeHost) Controls() *controls.Set { return h.set }

func (h *fakeHost) SetControlByIndex(index int, value float64) error {
	if h.failIndex {
		return assert.AnError
	}
	if h.byIndex == nil {
		h.byIndex = map[int]float64{}
	}
	h.byIndex[index] = value
	return nil
}

func (h *fakeHost) SetControlBySymbol(symbol string, value float64) error {
	if h.failSymbol {
		return assert.AnError
	}
	if h.bySymbol == nil {
		h.bySymbol = map[string]float64{}
	}
	h.bySymbol[symbol] = value
	return nil
}

func (h *fakeHost) LoadPresetURI(uri string) error {
	h.loadedURI = uri
	return nil
}

func (h *fakeHost) ListPresetURIs() []string { return h.presetURIs }
func (h *fakeHost) Monitors() []string       { return h.monitors }
func (h *fakeHost) Quit()                    { h.quit = true }

func Test_setByIndexDispatchesToHost(t *testing.T) {
	host := &fakeHost{}
	m := New(host, strings.NewReader(""), &bytes.Buffer{})

	stop := m.dispatch("set 2 0.75")

	assert.False(t, stop)
	require.Contains(t, host.byIndex, 2)
	assert.InDelta(t, 0.75, host.byIndex[2], 1e-9)
}

func Test_setBySymbolDispatchesToHost(t *testing.T) {
	host := &fakeHost{}
	m := New(host, strings.NewReader(""), &bytes.Buffer{})

	m.dispatch("set gain 0.5")

	require.Contains(t, host.bySymbol, "gain")
	assert.InDelta(t, 0.5, host.bySymbol["gain"], 1e-9)
}

func Test_assignmentShorthandSetsBySymbol(t *testing.T) {
	host := &fakeHost{}
	m := New(host, strings.NewReader(""), &bytes.Buffer{})

	stop := m.dispatch("mix = 0.25")

	assert.False(t, stop)
	require.Contains(t, host.bySymbol, "mix")
	assert.InDelta(t, 0.25, host.bySymbol["mix"], 1e-9)
}

func Test_presetCommandLoadsURI(t *testing.T) {
	host := &fakeHost{}
	m := New(host, strings.NewReader(""), &bytes.Buffer{})

	m.dispatch("preset urn:example:foo")

	assert.Equal(t, "urn:example:foo", host.loadedURI)
}

func Test_quitCommandStopsAndCallsHost(t *testing.T) {
	host := &fakeHost{}
	m := New(host, strings.NewReader(""), &bytes.Buffer{})

	stop := m.dispatch("quit")

	assert.True(t, stop)
	assert.True(t, host.quit)
}

func Test_unknownCommandReportsError(t *testing.T) {
	host := &fakeHost{}
	var out bytes.Buffer
	m := New(host, strings.NewReader(""), &out)

	stop := m.dispatch("frobnicate")

	assert.False(t, stop)
	assert.Contains(t, out.String(), "unknown command")
}

func Test_runStopsOnQuitLine(t *testing.T) {
	host := &fakeHost{}
	in := strings.NewReader("help\nquit\n")
	var out bytes.Buffer
	m := New(host, in, &out)

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after quit")
	}
	assert.True(t, host.quit)
	assert.Contains(t, out.String(), "commands:")
}

func Test_runStopsOnContextCancel(t *testing.T) {
	host := &fakeHost{}
	r, w := io.Pipe()
	defer w.Close()
	m := New(host, r, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

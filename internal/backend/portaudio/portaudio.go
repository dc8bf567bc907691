// Package portaudio implements internal/backend.Backend on top of
// github.com/gordonklaus/portaudio, generalizing a fixed
// mono 16kHz capture/playback streams into one full-duplex, N-channel
// stream whose callback drives the core's process cycle.
package portaudio

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/jalv-go/jalv/internal/backend"
	"github.com/jalv-go/jalv/internal/jalverr"
	"github.com/jalv-go/jalv/internal/lv2"
	"github.com/jalv-go/jalv/internal/ports"
)

// Driver is a backend.Backend running one portaudio.Stream.
type Driver struct {
	mu sync.RWMutex

	initialized bool
	inDevice    *portaudio.DeviceInfo
	outDevice   *portaudio.DeviceInfo
	channels    int

	nextInChannel  int
	nextOutChannel int

	stream *portaudio.Stream

	callbacks backend.Callbacks
	settings  backend.Settings
}

// New constructs a Driver requesting the given channel count on both
// the input and output side.
func New(channels int) *Driver {
	return &Driver{channels: channels}
}

// Allocate initializes the PortAudio library and selects devices.
func (d *Driver) Allocate() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: portaudio init: %v", jalverr.ErrBackendOpenFailed, err)
	}
	d.initialized = true

	in, out, err := selectDevices(d.channels)
	if err != nil {
		portaudio.Terminate()
		d.initialized = false
		return err
	}
	d.inDevice, d.outDevice = in, out
	return nil
}

// Free terminates the PortAudio library.
func (d *Driver) Free() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return
	}
	portaudio.Terminate()
	d.initialized = false
}

// Open opens the duplex stream and registers the core's callbacks.
// settings.SampleRate is adjusted to the value the stream actually
// opened with; settings.BlockLength is left as requested.
func (d *Driver) Open(settings *backend.Settings, callbacks backend.Callbacks, name string, exactNameOnly bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callbacks = callbacks
	d.settings = *settings

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   d.inDevice,
			Channels: d.channels,
			Latency:  d.inDevice.DefaultLowInputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Device:   d.outDevice,
			Channels: d.channels,
			Latency:  d.outDevice.DefaultLowOutputLatency,
		},
		SampleRate:      settings.SampleRate,
		FramesPerBuffer: int(settings.BlockLength),
	}

	stream, err := portaudio.OpenStream(params, d.callback)
	if err != nil {
		// Retry at the input device's default sample rate, mirroring
		// a device-unavailable fallback.
		if d.inDevice.DefaultSampleRate > 0 && params.SampleRate != d.inDevice.DefaultSampleRate {
			params.SampleRate = d.inDevice.DefaultSampleRate
			stream, err = portaudio.OpenStream(params, d.callback)
		}
	}
	if err != nil {
		return fmt.Errorf("%w: open stream: %v", jalverr.ErrBackendOpenFailed, err)
	}

	d.stream = stream
	settings.SampleRate = params.SampleRate
	return nil
}

// Close stops and closes the stream.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		return
	}
	_ = d.stream.Abort()
	_ = d.stream.Close()
	d.stream = nil
}

// Activate starts the stream.
func (d *Driver) Activate() error {
	d.mu.RLock()
	stream := d.stream
	d.mu.RUnlock()
	if stream == nil {
		return jalverr.ErrBackendOpenFailed
	}
	return stream.Start()
}

// Deactivate stops the stream without closing it.
func (d *Driver) Deactivate() {
	d.mu.RLock()
	stream := d.stream
	d.mu.RUnlock()
	if stream != nil {
		_ = stream.Stop()
	}
}

// ActivatePort connects Control ports to the buffers array directly;
// Audio/CV ports are assigned a channel of this driver's flat
// interleaved stream (wrapping if the plugin declares more audio ports
// than the stream has channels), input and output counted separately,
// and get a string handle naming the port. This driver opens no MIDI
// ports: Event ports, like every other port type, get a nil handle.
func (d *Driver) ActivatePort(table *ports.Table, portIndex uint32) error {
	p := &table.Ports[portIndex]
	switch p.Type {
	case lv2.PortControl:
		p.BackendHandle = backend.ControlPointer(table.Buffers, portIndex)
	case lv2.PortAudio, lv2.PortCV:
		p.BackendHandle = fmt.Sprintf("channel:%d", portIndex)
		switch p.Flow {
		case lv2.FlowInput:
			p.ChannelIndex = d.nextInChannel % max1(d.channels)
			d.nextInChannel++
		case lv2.FlowOutput:
			p.ChannelIndex = d.nextOutChannel % max1(d.channels)
			d.nextOutChannel++
		}
	default:
		p.BackendHandle = nil
	}
	return nil
}

// RecomputeLatencies is a no-op: a desktop PortAudio duplex stream
// reports its own latency via stream.Info(), which Driver does not yet
// surface as a host-controllable value.
func (d *Driver) RecomputeLatencies() {}

// callback is portaudio's realtime entry point. It invokes the core's
// process cycle with the frame count PortAudio handed it and the raw
// interleaved buffers, so Paused can silence out directly and Audio/CV
// ports can connect straight to this cycle's samples.
func (d *Driver) callback(in, out []float32) {
	if d.callbacks.Process != nil {
		d.callbacks.Process(uint32(len(out)/max1(d.channels)), in, out)
	}
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// selectDevices picks input and output devices using the same
// priority-scoring idiom (PulseAudio, then PipeWire, then "default",
// then hw:/plughw devices, then anything else; monitor and loopback
// devices excluded), falling back to the library's default devices
// when none qualifies, generalized from
// "microphone" string matching to a plain channel-count sufficiency
// check against wantChannels.
func selectDevices(wantChannels int) (in, out *portaudio.DeviceInfo, err error) {
	devices, derr := portaudio.Devices()
	if derr != nil {
		return nil, nil, fmt.Errorf("%w: device list: %v", jalverr.ErrBackendOpenFailed, derr)
	}

	in = bestDevice(devices, wantChannels, func(d *portaudio.DeviceInfo) int { return d.MaxInputChannels })
	out = bestDevice(devices, wantChannels, func(d *portaudio.DeviceInfo) int { return d.MaxOutputChannels })

	if in == nil || out == nil {
		defIn, inErr := portaudio.DefaultInputDevice()
		defOut, outErr := portaudio.DefaultOutputDevice()
		if in == nil && inErr == nil {
			in = defIn
		}
		if out == nil && outErr == nil {
			out = defOut
		}
	}
	if in == nil || out == nil {
		return nil, nil, fmt.Errorf("%w: no suitable audio device found", jalverr.ErrBackendOpenFailed)
	}
	return in, out, nil
}

func bestDevice(devices []*portaudio.DeviceInfo, wantChannels int, channelsOf func(*portaudio.DeviceInfo) int) *portaudio.DeviceInfo {
	var best *portaudio.DeviceInfo
	bestPriority := -1

	for _, dev := range devices {
		channels := channelsOf(dev)
		if channels == 0 {
			continue
		}

		nameLower := strings.ToLower(dev.Name)
		priority := 0
		switch {
		case strings.Contains(nameLower, "pulse"):
			priority = 200
		case strings.Contains(nameLower, "pipewire"):
			priority = 190
		case nameLower == "default":
			priority = 150
		case strings.Contains(nameLower, "hw:") || strings.Contains(nameLower, "plughw"):
			priority = 120
		default:
			priority = 10
		}

		if strings.Contains(nameLower, "monitor") || strings.Contains(nameLower, "loopback") {
			continue
		}
		if channels < wantChannels && wantChannels > 1 {
			priority -= 5 // still a candidate, but deprioritized for insufficient channels
		}

		if priority > bestPriority {
			bestPriority = priority
			best = dev
		}
	}
	return best
}

// Package config holds the process-wide options threaded through
// host.Open: sample/block sizes, ring capacities, UI refresh rate and the
// console/remote-UI transport settings.
package config

import "time"

// Options is the full set of host options, grouped the way the CLI flags
// in cmd/jalv assemble them.
type Options struct {
	Audio   AudioOptions
	Ring    RingOptions
	UI      UIOptions
	Remote  RemoteOptions
	Control ControlOptions
}

// AudioOptions describes the sample format the backend is opened with.
// SampleRate and BlockLength are filled in by the backend after Open (the
// driver may only be able to honor an approximation of the request).
type AudioOptions struct {
	SampleRate    float64
	BlockLength   uint32
	MidiBufSize   uint32
	Channels      int
	ClientName    string
	ExactNameOnly bool
}

// RingOptions sizes the SPSC rings. CommBytes mirrors jalv's -b flag: the
// size, in bytes, of both the ui->plugin and plugin->ui rings.
type RingOptions struct {
	CommBytes int
}

// UIOptions controls the non-realtime update loop.
type UIOptions struct {
	UpdateHz    float64 // clamped to [1, 60]
	PrintUpdates bool   // -p: print control-output changes to stdout
	DumpAtoms    bool   // -d: dump plugin<->ui atoms to stdout
	ShowUI       bool   // -s: request the plugin's own UI if available
	ForceUIURI   string // -U
}

// RemoteOptions configures the optional websocket relay (internal/remoteui).
type RemoteOptions struct {
	Enabled bool
	Addr    string
}

// ControlOptions configures the interactive console.
type ControlOptions struct {
	NonInteractive bool // -i
	InitialValues  map[string]float64
	TraceLog       bool // -t
}

// Default returns baseline options matching a typical desktop session:
// 48kHz, a 4096-byte comm ring, a 25Hz UI refresh rate.
func Default() *Options {
	return &Options{
		Audio: AudioOptions{
			SampleRate:  48000,
			BlockLength: 1024,
			MidiBufSize: 4096,
			Channels:    2,
			ClientName:  "jalv",
		},
		Ring: RingOptions{
			CommBytes: 4096,
		},
		UI: UIOptions{
			UpdateHz: 25,
		},
		Control: ControlOptions{
			InitialValues: map[string]float64{},
		},
	}
}

// ClampUIRate clamps hz to the [1, 60] range mandated for the UI update
// loop.
func ClampUIRate(hz float64) float64 {
	switch {
	case hz < 1:
		return 1
	case hz > 60:
		return 60
	default:
		return hz
	}
}

// UpdatePeriodFrames returns the number of audio frames that must elapse
// between "send updates" cycles, given the configured UI rate and the
// backend's actual sample rate.
func UpdatePeriodFrames(sampleRate float64, uiHz float64) uint32 {
	hz := ClampUIRate(uiHz)
	frames := sampleRate / hz
	if frames < 1 {
		frames = 1
	}
	return uint32(frames)
}

// TempDirPattern is a name pattern for the session's scratch directory
// (state:makePath files live there). state.TempDir does not use it: it
// names the directory "jalv" plus the first eight characters of a UUID.
const TempDirPattern = "jalv*"

// DefaultReconnectDelay is used by internal/remoteui when the relay socket
// drops.
const DefaultReconnectDelay = 2 * time.Second

// Package transport holds the RT thread's view of the backend's playback
// position. When it changes, process.Cycle writes it as a flat
// {frame, bpm, rolling} body into every Event input port that supports
// time:Position.
package transport

// Position is {frame, bpm, rolling}, owned by the RT thread.
type Position struct {
	Frame   int64
	BPM     float64
	Rolling bool
}

// Changed reports whether next differs from p in any field the plugin
// would need to resynchronize to.
func (p Position) Changed(next Position) bool {
	return p.Frame != next.Frame || p.BPM != next.BPM || p.Rolling != next.Rolling
}

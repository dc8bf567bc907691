package state

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ExportWAV writes samples, interleaved int16 PCM, to path as a WAV
// file. Nothing in the host calls it, with or without -d.
func ExportWAV(path string, samples []int, sampleRate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("state: create wav %s: %w", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: channels},
		Data:   samples,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("state: encode wav: %w", err)
	}
	return enc.Close()
}

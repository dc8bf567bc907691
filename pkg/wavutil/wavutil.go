// Package wavutil renders captured int16 PCM sample buffers to WAV, and
// computes simple level statistics over them. No other package in this
// module imports it; state.ExportWAV uses go-audio/wav instead.
package wavutil

import (
	"encoding/binary"
	"math"
)

// Header builds a 44-byte canonical PCM WAV header for dataSize bytes of
// audio at the given format.
func Header(dataSize, sampleRate, channels, bitDepth int) []byte {
	header := make([]byte, 44)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(dataSize+36))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))

	byteRate := sampleRate * channels * bitDepth
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))

	blockAlign := channels * bitDepth
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bitDepth*8))

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))

	return header
}

// Encode converts int16 samples to a complete little-endian PCM WAV file.
func Encode(samples []int16, sampleRate, channels, bitDepth int) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	header := Header(len(pcm), sampleRate, channels, bitDepth)

	out := make([]byte, 0, len(header)+len(pcm))
	out = append(out, header...)
	out = append(out, pcm...)
	return out
}

// Stats holds simple level statistics over a sample buffer.
type Stats struct {
	RMS          float64
	Peak         int16
	SilentCount  int
	TotalCount   int
	SilenceRatio float64
}

// Compute returns level statistics for samples, counting any sample whose
// absolute value is <= silenceThreshold as silent.
func Compute(samples []int16, silenceThreshold int16) Stats {
	st := Stats{TotalCount: len(samples)}
	if len(samples) == 0 {
		return st
	}

	var sumSq float64
	var peak, silent int
	for _, s := range samples {
		v := float64(s)
		sumSq += v * v

		abs := s
		if abs < 0 {
			abs = -abs
		}
		if int(abs) > peak {
			peak = int(abs)
		}
		if abs <= silenceThreshold {
			silent++
		}
	}

	st.RMS = math.Sqrt(sumSq / float64(len(samples)))
	st.Peak = int16(peak)
	st.SilentCount = silent
	st.SilenceRatio = float64(silent) / float64(len(samples))
	return st
}

// IsSilent reports whether samples should be treated as silence, using an
// RMS threshold and a fraction-of-samples-below-threshold fallback.
func IsSilent(samples []int16, rmsThreshold, silenceRatioThreshold float64) bool {
	if len(samples) == 0 {
		return true
	}
	if Compute(samples, 0).RMS < rmsThreshold {
		return true
	}
	threshold := int16(rmsThreshold * 0.5)
	return Compute(samples, threshold).SilenceRatio > silenceRatioThreshold
}

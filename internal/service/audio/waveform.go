// Package audio turns uploaded recordings into canonical mono waveforms
// that the aligners and transcribers consume.
package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"time"
)

// DefaultSampleRate is the canonical rate for alignment and recognition.
const DefaultSampleRate = 16000

// Waveform is decoded mono audio at a fixed sample rate.
// Samples are in [-1, 1]. A Waveform is immutable once built.
type Waveform struct {
	sampleRate int
	samples    []float64
}

// NewWaveform copies samples into a new Waveform.
func NewWaveform(sampleRate int, samples []float64) *Waveform {
	cp := make([]float64, len(samples))
	copy(cp, samples)
	return &Waveform{sampleRate: sampleRate, samples: cp}
}

// SampleRate returns the sample rate in Hz.
func (w *Waveform) SampleRate() int { return w.sampleRate }

// Len returns the number of samples.
func (w *Waveform) Len() int { return len(w.samples) }

// Sample returns the i-th sample.
func (w *Waveform) Sample(i int) float64 { return w.samples[i] }

// Seconds returns the duration in seconds.
func (w *Waveform) Seconds() float64 {
	if w.sampleRate <= 0 {
		return 0
	}
	return float64(len(w.samples)) / float64(w.sampleRate)
}

// Duration returns the duration as a time.Duration.
func (w *Waveform) Duration() time.Duration {
	return time.Duration(w.Seconds() * float64(time.Second))
}

// Slice returns a copy of samples [from, to).
func (w *Waveform) Slice(from, to int) []float64 {
	out := make([]float64, to-from)
	copy(out, w.samples[from:to])
	return out
}

// PCM16 returns the samples as little-endian signed 16-bit PCM.
func (w *Waveform) PCM16() []byte {
	out := make([]byte, len(w.samples)*2)
	for i, s := range w.samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(toInt16(s)))
	}
	return out
}

// WAV returns the waveform encoded as a 16-bit mono PCM WAV file.
func (w *Waveform) WAV() []byte {
	pcm := w.PCM16()
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))
	writeWAVHeader(&buf, w.sampleRate, len(pcm))
	buf.Write(pcm)
	return buf.Bytes()
}

// WriteWAV writes the waveform as a WAV file at path.
func (w *Waveform) WriteWAV(path string) error {
	return os.WriteFile(path, w.WAV(), 0o600)
}

func toInt16(s float64) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int16(math.Round(s * math.MaxInt16))
}

const wavHeaderSize = 44

// writeWAVHeader writes a canonical 44-byte header for 16-bit mono PCM.
func writeWAVHeader(buf *bytes.Buffer, sampleRate, dataSize int) {
	le := binary.LittleEndian
	buf.WriteString("RIFF")
	_ = binary.Write(buf, le, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, le, uint32(16))           // sub-chunk size
	_ = binary.Write(buf, le, uint16(1))            // PCM
	_ = binary.Write(buf, le, uint16(1))            // mono
	_ = binary.Write(buf, le, uint32(sampleRate))   // sample rate
	_ = binary.Write(buf, le, uint32(sampleRate*2)) // byte rate
	_ = binary.Write(buf, le, uint16(2))            // block align
	_ = binary.Write(buf, le, uint16(16))           // bits per sample

	buf.WriteString("data")
	_ = binary.Write(buf, le, uint32(dataSize))
}

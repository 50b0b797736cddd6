package audio

import (
	"bytes"
	"fmt"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"pronunciation-practice-service/internal/models"
)

// resampleQuality is passed to beep.Resample; 4 is beep's recommended default.
const resampleQuality = 4

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// DecodeWAV decodes WAV bytes into a mono waveform at sampleRate,
// resampling and downmixing as needed.
func DecodeWAV(data []byte, sampleRate int) (*Waveform, error) {
	s, format, err := wav.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnsupportedFormat, err)
	}
	defer s.Close()

	var streamer beep.Streamer = s
	if int(format.SampleRate) != sampleRate {
		streamer = beep.Resample(resampleQuality, format.SampleRate, beep.SampleRate(sampleRate), s)
	}

	samples := make([]float64, 0, s.Len())
	buf := make([][2]float64, 1024)
	for {
		n, ok := streamer.Stream(buf)
		for _, frame := range buf[:n] {
			// beep duplicates mono input into both channels, so averaging is safe
			samples = append(samples, (frame[0]+frame[1])/2)
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnsupportedFormat, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no audio samples", models.ErrUnsupportedFormat)
	}

	return &Waveform{sampleRate: sampleRate, samples: samples}, nil
}

// Package segment cuts per-word clips out of a waveform.
package segment

import (
	"fmt"
	"math"
	"time"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/service/audio"
)

// DefaultMinDuration is the shortest clip handed to a recognizer.
// Shorter words are padded with trailing silence.
const DefaultMinDuration = 150 * time.Millisecond

// offsetTolerance keeps interval bounds that land on a sample boundary from
// being pushed one sample out by float noise.
const offsetTolerance = 1e-9

// Clip is the sub-waveform of one word interval.
type Clip struct {
	Index    int
	Label    string
	Interval models.WordInterval
	Audio    *audio.Waveform
	// Padded is the number of zero samples appended to reach the minimum duration.
	Padded int
}

// Extractor cuts clips for word intervals, padding short ones.
type Extractor struct {
	minDuration time.Duration
}

// NewExtractor creates an Extractor. A non-positive minDuration uses DefaultMinDuration.
func NewExtractor(minDuration time.Duration) *Extractor {
	if minDuration <= 0 {
		minDuration = DefaultMinDuration
	}
	return &Extractor{minDuration: minDuration}
}

// MinDuration returns the padding floor.
func (e *Extractor) MinDuration() time.Duration { return e.minDuration }

// Extract returns one clip per interval, in interval order.
// Padding only ever appends silence; a clip never borrows samples from a
// neighbouring word.
func (e *Extractor) Extract(wf *audio.Waveform, intervals []models.WordInterval) ([]Clip, error) {
	rate := wf.SampleRate()
	minSamples := samplesFor(e.minDuration, rate)
	duration := wf.Seconds()

	clips := make([]Clip, 0, len(intervals))
	for i, iv := range intervals {
		if iv.Start < 0 || iv.End <= iv.Start || iv.End > duration+1e-6 {
			return nil, fmt.Errorf("%w: interval %d [%.3f, %.3f) outside [0, %.3f]",
				models.ErrInvalidInterval, i, iv.Start, iv.End, duration)
		}

		from := int(math.Floor(iv.Start*float64(rate) + offsetTolerance))
		to := int(math.Ceil(iv.End*float64(rate) - offsetTolerance))
		if to > wf.Len() {
			to = wf.Len()
		}
		if to <= from {
			to = from + 1
		}
		if to > wf.Len() {
			return nil, fmt.Errorf("%w: interval %d starts at the end of the recording",
				models.ErrInvalidInterval, i)
		}

		samples := wf.Slice(from, to)
		padded := 0
		if len(samples) < minSamples {
			padded = minSamples - len(samples)
			samples = append(samples, make([]float64, padded)...)
		}

		clips = append(clips, Clip{
			Index:    i,
			Label:    iv.Label,
			Interval: iv,
			Audio:    audio.NewWaveform(rate, samples),
			Padded:   padded,
		})
	}
	return clips, nil
}

// samplesFor returns ceil(d * rate) computed in integer nanoseconds.
func samplesFor(d time.Duration, rate int) int {
	n := int64(d) * int64(rate)
	return int((n + int64(time.Second) - 1) / int64(time.Second))
}

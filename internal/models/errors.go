package models

import "errors"

// Error kinds surfaced by the transcription pipeline. Callers wrap them with
// fmt.Errorf("%w: ...") and match with errors.Is.
var (
	// ErrUnsupportedFormat: the input audio container or codec cannot be decoded.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrAlignmentUnavailable: the alignment back-end is missing or failed.
	ErrAlignmentUnavailable = errors.New("alignment unavailable")
	// ErrRecognitionUnavailable: the speech-recognition back-end is missing or failed.
	ErrRecognitionUnavailable = errors.New("recognition unavailable")
	// ErrInvalidInterval: an aligner produced intervals violating the interval invariants.
	ErrInvalidInterval = errors.New("invalid word interval")
)

// Kind names used in metrics labels and API error bodies.
const (
	KindUnsupportedFormat      = "UnsupportedFormat"
	KindAlignmentUnavailable   = "AlignmentUnavailable"
	KindRecognitionUnavailable = "RecognitionUnavailable"
	KindInvalidInterval        = "InvalidInterval"
	KindInternal               = "Internal"
)

// ErrorKind classifies err into one of the Kind constants.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrAlignmentUnavailable):
		return KindAlignmentUnavailable
	case errors.Is(err, ErrRecognitionUnavailable):
		return KindRecognitionUnavailable
	case errors.Is(err, ErrInvalidInterval):
		return KindInvalidInterval
	default:
		return KindInternal
	}
}

// HasKind reports whether err already wraps one of the pipeline error kinds.
func HasKind(err error) bool {
	return ErrorKind(err) != KindInternal
}

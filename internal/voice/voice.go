// Package voice adapts speech recognition and synthesis to the assistant.
// Real audio engines live outside this process; the package defines the
// contracts and ships console and websocket transports.
package voice

import (
	"context"
	"errors"
)

// Priority of an utterance. High interrupts whatever is being spoken.
type Priority string

const (
	Normal Priority = "normal"
	High   Priority = "high"
)

// Recognition failure reasons
var (
	ErrNoSpeech          = errors.New("no speech detected")
	ErrCaptureDevice     = errors.New("audio capture device error")
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrNetwork           = errors.New("recognition network error")
	ErrRecognitionActive = errors.New("recognition already active")
)

// Speaker synthesizes text.
type Speaker interface {
	Speak(ctx context.Context, text string, priority Priority) error
	Stop() error
}

// Recognizer yields one transcript per call. Only one recognition may be
// active at a time.
type Recognizer interface {
	RecognizeOnce(ctx context.Context) (string, error)
}

// Settings are synthesis parameters forwarded to speakers that honour them.
type Settings struct {
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
	Voice  string  `json:"voice,omitempty"`
}

// DefaultSettings returns rate 0.9, pitch 1 and full volume.
func DefaultSettings() Settings {
	return Settings{Rate: 0.9, Pitch: 1.0, Volume: 1.0}
}

// Tunable is implemented by speakers that accept Settings.
type Tunable interface {
	ApplySettings(Settings)
}

// ParseReason maps a recognizer reason code to its error.
func ParseReason(reason string) error {
	switch reason {
	case "no-speech":
		return ErrNoSpeech
	case "audio-capture":
		return ErrCaptureDevice
	case "not-allowed":
		return ErrPermissionDenied
	case "network":
		return ErrNetwork
	default:
		return errors.New("recognition error: " + reason)
	}
}

// Describe returns the sentence spoken to the user for a recognition error.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoSpeech):
		return "I didn't hear anything. Please try speaking again."
	case errors.Is(err, ErrCaptureDevice):
		return "Microphone access is required. Please check your microphone permissions."
	case errors.Is(err, ErrPermissionDenied):
		return "Microphone access was denied. Please allow microphone permissions and try again."
	case errors.Is(err, ErrNetwork):
		return "Network error occurred. Please check your internet connection."
	default:
		return "Sorry, I didn't catch that. Please try again."
	}
}

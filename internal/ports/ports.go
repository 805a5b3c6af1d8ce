package ports

import (
	"context"
	"errors"
	"io"

	"tvvoice/internal/domain"
)

// ErrRecognitionUnsupported is returned when the platform cannot recognize speech at all.
var ErrRecognitionUnsupported = errors.New("speech recognition is not supported on this platform")

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// SessionHandler receives asynchronous recognition callbacks. Exactly one of
// OnEnd or OnError is called when the session finishes.
type SessionHandler struct {
	OnUtterance func(domain.Utterance)
	OnEnd       func()
	OnError     func(code string, err error)
}

// RecognitionSession is a running recognizer.
type RecognitionSession interface {
	ID() string
	Config() domain.SessionConfig
	// Stop ends the session gracefully; OnEnd fires once teardown completes.
	Stop() error
}

// Recognizer starts recognition sessions. Start returns immediately; results
// arrive through the handler.
type Recognizer interface {
	Start(ctx context.Context, cfg domain.SessionConfig, handler SessionHandler) (RecognitionSession, error)
}

// SynthesisRequest is one utterance to speak.
type SynthesisRequest struct {
	Text   string
	Rate   float64
	Pitch  float64
	Volume float64
	Voice  string
}

// Synthesizer speaks text. Synthesize blocks until playback ends; cancelling
// ctx stops playback.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) error
}

// ListingsSource is the data fetch collaborator.
type ListingsSource interface {
	Fetch(ctx context.Context, dateIndex int) (domain.ScrapeResponse, error)
}

// EventSink emits dialogue state and display updates to the UI.
type EventSink interface {
	PhaseChanged(phase domain.Phase, reason domain.PhaseReason)
	PanelVisibility(open bool)
	WakeStatus(listening bool, failed bool)
	Transcript(text string, final bool)
	Feedback(feedback domain.Feedback)
	DatesChanged(dates []string, selected int)
	CurrentDate(label string)
	FiltersChanged(filters domain.Filters)
	RenderListings(listings []domain.Listing, total int)
	Stats(stats domain.Stats)
	VoiceError(code domain.ErrorCode, detail string)
}

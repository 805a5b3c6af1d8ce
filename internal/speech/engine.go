// Package speech serializes text-to-speech playback behind a one-way
// enablement gate.
package speech

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tvvoice/internal/ports"
)

// ErrNotAllowed is returned while audio output has not been unlocked by a user gesture.
var ErrNotAllowed = errors.New("speech output not allowed until the user interacts with the page")

const (
	CodeNetwork         = "network"
	CodeSynthesisFailed = "synthesis-failed"
)

// SynthesisError is an engine-reported playback failure.
type SynthesisError struct {
	Code string
	Err  error
}

func (e *SynthesisError) Error() string {
	if e.Err == nil {
		return "speech synthesis error: " + e.Code
	}
	return fmt.Sprintf("speech synthesis error: %s: %v", e.Code, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// Voice holds the fixed playback parameters.
type Voice struct {
	Name   string
	Rate   float64
	Pitch  float64
	Volume float64
}

// DefaultVoice speaks slightly slower than normal for clarity.
func DefaultVoice() Voice {
	return Voice{Rate: 0.9, Pitch: 1.0, Volume: 1.0}
}

// Callbacks receive the outcome of one utterance. Exactly one fires unless
// the utterance is superseded or cancelled, in which case neither does.
type Callbacks struct {
	OnDone  func()
	OnError func(err error)
}

type inflight struct {
	id     string
	cancel context.CancelFunc
}

// Engine owns the single in-flight utterance.
type Engine struct {
	synth          ports.Synthesizer
	voice          Voice
	requireGesture bool
	logger         zerolog.Logger

	enabled     atomic.Bool
	beforeSpeak func()

	mu      sync.Mutex
	current *inflight
	wg      sync.WaitGroup
}

// Config controls the engine.
type Config struct {
	Voice Voice
	// RequireGesture rejects output with ErrNotAllowed until Enable is called.
	// When false, the first successful synthesis opens the gate instead.
	RequireGesture bool
}

func NewEngine(synth ports.Synthesizer, cfg Config, logger zerolog.Logger) *Engine {
	defaults := DefaultVoice()
	if cfg.Voice.Rate <= 0 {
		cfg.Voice.Rate = defaults.Rate
	}
	if cfg.Voice.Pitch <= 0 {
		cfg.Voice.Pitch = defaults.Pitch
	}
	if cfg.Voice.Volume <= 0 {
		cfg.Voice.Volume = defaults.Volume
	}
	return &Engine{
		synth:          synth,
		voice:          cfg.Voice,
		requireGesture: cfg.RequireGesture,
		logger:         logger.With().Str("component", "speech").Logger(),
	}
}

// SetBeforeSpeak registers a hook that runs synchronously before playback
// starts, used to suspend recognition.
func (e *Engine) SetBeforeSpeak(fn func()) {
	e.beforeSpeak = fn
}

// Enable opens the gate. It reports whether this call changed it.
func (e *Engine) Enable() bool {
	changed := e.enabled.CompareAndSwap(false, true)
	if changed {
		e.logger.Info().Msg("speech output enabled")
	}
	return changed
}

// Enabled reports the gate state.
func (e *Engine) Enabled() bool {
	return e.enabled.Load()
}

// Speaking reports whether an utterance is in flight.
func (e *Engine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil
}

// Speak cancels any in-flight utterance and starts a new one. It returns the
// utterance ID, or ErrNotAllowed without synthesizing anything.
func (e *Engine) Speak(text string, callbacks Callbacks) (string, error) {
	if e.requireGesture && !e.Enabled() {
		return "", ErrNotAllowed
	}

	e.Cancel()
	if e.beforeSpeak != nil {
		e.beforeSpeak()
	}

	ctx, cancel := context.WithCancel(context.Background())
	current := &inflight{id: uuid.NewString(), cancel: cancel}

	e.mu.Lock()
	e.current = current
	e.mu.Unlock()

	req := ports.SynthesisRequest{
		Text:   text,
		Rate:   e.voice.Rate,
		Pitch:  e.voice.Pitch,
		Volume: e.voice.Volume,
		Voice:  e.voice.Name,
	}

	e.logger.Debug().Str("utterance", current.id).Int("chars", len(text)).Msg("speaking")

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()

		err := e.synth.Synthesize(ctx, req)
		if !e.finish(current) {
			return
		}
		if err != nil {
			synthErr := classify(err)
			e.logger.Warn().Err(synthErr).Str("utterance", current.id).Msg("speech synthesis failed")
			if callbacks.OnError != nil {
				callbacks.OnError(synthErr)
			}
			return
		}
		e.Enable()
		if callbacks.OnDone != nil {
			callbacks.OnDone()
		}
	}()

	return current.id, nil
}

// Cancel silently stops the in-flight utterance, if any.
func (e *Engine) Cancel() {
	e.mu.Lock()
	current := e.current
	e.current = nil
	e.mu.Unlock()

	if current != nil {
		current.cancel()
		e.logger.Debug().Str("utterance", current.id).Msg("speech cancelled")
	}
}

// Close cancels playback and waits for the synthesis goroutine to exit.
func (e *Engine) Close() {
	e.Cancel()
	e.wg.Wait()
}

func (e *Engine) finish(target *inflight) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != target {
		return false
	}
	e.current = nil
	return true
}

func classify(err error) *SynthesisError {
	var synthErr *SynthesisError
	if errors.As(err, &synthErr) {
		return synthErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &SynthesisError{Code: CodeNetwork, Err: err}
	}
	return &SynthesisError{Code: CodeSynthesisFailed, Err: err}
}

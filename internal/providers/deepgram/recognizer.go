// Package deepgram recognizes microphone speech with Deepgram's streaming
// listen API.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"tvvoice/internal/domain"
	"tvvoice/internal/ports"
)

// Error codes passed to SessionHandler.OnError.
const (
	CodeNetwork      = "network"
	CodeAudioCapture = "audio-capture"
	CodeNotAllowed   = "not-allowed"
)

// Config controls the Deepgram connection and session limits.
type Config struct {
	APIKey       string
	APIBaseURL   string
	Model        string
	Language     string
	SmartFormat  bool
	Endpointing  time.Duration
	UtteranceEnd time.Duration
	Keywords     []string

	ChunkSize          int
	MaxSessionDuration time.Duration
	FinalizeTimeout    time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		c.APIBaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = "nova-2"
	}
	if c.ChunkSize < 256 {
		c.ChunkSize = 4096
	}
	if c.MaxSessionDuration <= 0 {
		c.MaxSessionDuration = 60 * time.Second
	}
	if c.FinalizeTimeout <= 0 {
		c.FinalizeTimeout = 2 * time.Second
	}
	return c
}

type availability interface {
	Available() error
}

// Recognizer implements ports.Recognizer. Each session owns one microphone
// capture and one listen socket.
type Recognizer struct {
	cfg     Config
	capture ports.AudioCapture
	audio   ports.AudioConfig
	dialer  *websocket.Dialer
	clock   clockwork.Clock
	logger  zerolog.Logger

	wg sync.WaitGroup
}

func NewRecognizer(cfg Config, capture ports.AudioCapture, audio ports.AudioConfig, logger zerolog.Logger) *Recognizer {
	return &Recognizer{
		cfg:     cfg.withDefaults(),
		capture: capture,
		audio:   audio,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		clock:  clockwork.NewRealClock(),
		logger: logger.With().Str("component", "recognizer").Logger(),
	}
}

// Available returns an error wrapping ports.ErrRecognitionUnsupported when
// sessions cannot possibly start.
func (r *Recognizer) Available() error {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return fmt.Errorf("%w: DEEPGRAM_API_KEY is not configured", ports.ErrRecognitionUnsupported)
	}
	if r.capture == nil {
		return fmt.Errorf("%w: no audio capture configured", ports.ErrRecognitionUnsupported)
	}
	if checker, ok := r.capture.(availability); ok {
		if err := checker.Available(); err != nil {
			return fmt.Errorf("%w: %v", ports.ErrRecognitionUnsupported, err)
		}
	}
	return nil
}

// Start returns at once; connection and capture failures arrive through
// handler.OnError.
func (r *Recognizer) Start(ctx context.Context, cfg domain.SessionConfig, handler ports.SessionHandler) (ports.RecognitionSession, error) {
	if err := r.Available(); err != nil {
		return nil, err
	}
	if cfg.Mode == "" {
		cfg.Mode = domain.RecognitionContinuous
	}

	sessionCtx, cancel := context.WithTimeout(ctx, r.cfg.MaxSessionDuration)
	s := &session{
		id:       uuid.NewString(),
		cfg:      cfg,
		handler:  handler,
		stopping: make(chan struct{}),
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		r.run(sessionCtx, s)
	}()
	return s, nil
}

// Wait blocks until every started session has torn down.
func (r *Recognizer) Wait() {
	r.wg.Wait()
}

func (r *Recognizer) run(ctx context.Context, s *session) {
	logger := r.logger.With().Str("session", s.id).Str("mode", string(s.cfg.Mode)).Logger()
	logger.Debug().Msg("recognition session starting")

	code, err := r.recognize(ctx, s)
	if err != nil {
		logger.Warn().Err(err).Str("code", code).Msg("recognition session failed")
		if s.handler.OnError != nil {
			s.handler.OnError(code, err)
		}
		return
	}
	logger.Debug().Msg("recognition session ended")
	if s.handler.OnEnd != nil {
		s.handler.OnEnd()
	}
}

func (r *Recognizer) recognize(ctx context.Context, s *session) (string, error) {
	st, err := dialStream(ctx, r.dialer, r.cfg, streamParams{
		SampleRate:     r.audio.SampleRate,
		Channels:       r.audio.Channels,
		InterimResults: s.cfg.InterimResults,
		Language:       s.cfg.Language,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", nil
		}
		return dialErrorCode(err), err
	}

	mic, err := r.capture.Start(ctx, r.audio)
	if err != nil {
		_ = st.Close()
		return CodeAudioCapture, fmt.Errorf("failed to start audio capture: %w", err)
	}

	pumped := make(chan pumpResult, 1)
	go func() {
		code, err := pumpAudio(mic, st, r.cfg.ChunkSize)
		pumped <- pumpResult{code: code, err: err}
	}()

	var (
		builder     utteranceBuilder
		failure     error
		failureCode string
		finalize    <-chan time.Time
		finalizing  bool
	)
	stopping := s.stopping
	expired := ctx.Done()
	pump := (<-chan pumpResult)(pumped)
	events := st.Events()
	stopSending := func() {
		_ = mic.Stop()
		st.CloseSend()
		if !finalizing {
			finalizing = true
			finalize = r.clock.After(r.cfg.FinalizeTimeout)
		}
	}

	for events != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			text, final, ok := builder.add(ev)
			if !ok {
				continue
			}
			r.deliver(s, text, final)
			if final && s.cfg.Mode == domain.RecognitionSingleShot {
				_ = s.Stop()
			}
		case <-stopping:
			stopping = nil
			stopSending()
		case result := <-pump:
			pump = nil
			if result.err != nil && failure == nil {
				failure, failureCode = result.err, result.code
			}
			stopSending()
		case <-expired:
			expired = nil
			stopSending()
		case <-finalize:
			finalize = nil
			_ = st.Close()
		}
	}

	if text := builder.flush(); text != "" {
		r.deliver(s, text, true)
	}

	_ = mic.Stop()
	if pump != nil {
		if result := <-pump; result.err != nil && failure == nil {
			failure, failureCode = result.err, result.code
		}
	}
	if err := st.Wait(); err != nil && failure == nil {
		failure, failureCode = err, CodeNetwork
	}
	return failureCode, failure
}

func (r *Recognizer) deliver(s *session, text string, final bool) {
	if !final && !s.cfg.InterimResults {
		return
	}
	if s.handler.OnUtterance == nil {
		return
	}
	s.handler.OnUtterance(domain.Utterance{Text: text, IsFinal: final, Timestamp: r.clock.Now()})
}

func dialErrorCode(err error) string {
	var handshake *HandshakeError
	if errors.As(err, &handshake) && (handshake.Status == http.StatusUnauthorized || handshake.Status == http.StatusForbidden) {
		return CodeNotAllowed
	}
	return CodeNetwork
}

type session struct {
	id       string
	cfg      domain.SessionConfig
	handler  ports.SessionHandler
	stopOnce sync.Once
	stopping chan struct{}
}

func (s *session) ID() string                   { return s.id }
func (s *session) Config() domain.SessionConfig { return s.cfg }

// Stop requests a graceful end and returns immediately.
func (s *session) Stop() error {
	s.stopOnce.Do(func() { close(s.stopping) })
	return nil
}

// utteranceBuilder joins finalized segments until the provider marks the
// end of speech.
type utteranceBuilder struct {
	finals []string
}

// add folds one event in. It returns the text to surface, whether that text
// completes an utterance, and false when there is nothing to surface.
func (b *utteranceBuilder) add(ev transcriptEvent) (string, bool, bool) {
	switch {
	case ev.UtteranceEnd:
		text := b.flush()
		return text, true, text != ""
	case ev.SpeechFinal:
		b.push(ev.Text)
		text := b.flush()
		return text, true, text != ""
	case ev.IsFinal:
		b.push(ev.Text)
		text := b.joined("")
		return text, false, text != ""
	default:
		text := b.joined(ev.Text)
		return text, false, text != ""
	}
}

func (b *utteranceBuilder) push(text string) {
	if text = strings.TrimSpace(text); text != "" {
		b.finals = append(b.finals, text)
	}
}

func (b *utteranceBuilder) joined(partial string) string {
	parts := b.finals
	if partial = strings.TrimSpace(partial); partial != "" {
		parts = append(parts[:len(parts):len(parts)], partial)
	}
	return strings.Join(parts, " ")
}

func (b *utteranceBuilder) flush() string {
	text := b.joined("")
	b.finals = nil
	return text
}

package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"tvvoice/internal/domain"
	"tvvoice/internal/interpreter"
	"tvvoice/internal/listings"
	"tvvoice/internal/metrics"
	"tvvoice/internal/ports"
	"tvvoice/internal/speech"
)

var ErrAlreadyRunning = errors.New("dialogue controller is already running")

const activationAck = "Voice control activated. You can now give commands."

// Config controls dialogue timing and read batching.
type Config struct {
	Language string

	WakeRestartDelay    time.Duration
	WakeErrorDelay      time.Duration
	CommandStartDelay   time.Duration
	CommandRestartDelay time.Duration
	CommandErrorDelay   time.Duration
	ResumeDelay         time.Duration
	SettleDelay         time.Duration

	ReadBatch     int
	AutoReadBatch int

	FeedbackDuration time.Duration
	AlertDuration    time.Duration

	EventBuffer int
}

func DefaultConfig() Config {
	return Config{
		Language:            "en-US",
		WakeRestartDelay:    time.Second,
		WakeErrorDelay:      2 * time.Second,
		CommandStartDelay:   100 * time.Millisecond,
		CommandRestartDelay: time.Second,
		CommandErrorDelay:   time.Second,
		ResumeDelay:         500 * time.Millisecond,
		SettleDelay:         time.Second,
		ReadBatch:           10,
		AutoReadBatch:       20,
		FeedbackDuration:    3 * time.Second,
		AlertDuration:       5 * time.Second,
		EventBuffer:         64,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Language == "" {
		c.Language = d.Language
	}
	durations := []struct {
		value    *time.Duration
		fallback time.Duration
	}{
		{&c.WakeRestartDelay, d.WakeRestartDelay},
		{&c.WakeErrorDelay, d.WakeErrorDelay},
		{&c.CommandStartDelay, d.CommandStartDelay},
		{&c.CommandRestartDelay, d.CommandRestartDelay},
		{&c.CommandErrorDelay, d.CommandErrorDelay},
		{&c.ResumeDelay, d.ResumeDelay},
		{&c.SettleDelay, d.SettleDelay},
		{&c.FeedbackDuration, d.FeedbackDuration},
		{&c.AlertDuration, d.AlertDuration},
	}
	for _, entry := range durations {
		if *entry.value <= 0 {
			*entry.value = entry.fallback
		}
	}
	if c.ReadBatch <= 0 {
		c.ReadBatch = d.ReadBatch
	}
	if c.AutoReadBatch <= 0 {
		c.AutoReadBatch = d.AutoReadBatch
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = d.EventBuffer
	}
	return c
}

// Speaker is the speech output engine as the controller uses it.
type Speaker interface {
	Speak(text string, callbacks speech.Callbacks) (string, error)
	Cancel()
	Enable() bool
	Enabled() bool
	SetBeforeSpeak(fn func())
}

// Deps are the collaborators of a Controller. Recognizer may be nil when the
// platform has no speech recognition.
type Deps struct {
	Recognizer  ports.Recognizer
	Speaker     Speaker
	Interpreter *interpreter.Interpreter
	Source      ports.ListingsSource
	Store       *listings.Store
	Sink        ports.EventSink
	Clock       clockwork.Clock
	Logger      zerolog.Logger
}

type timerKind string

const (
	timerStartWake    timerKind = "start_wake"
	timerStartCommand timerKind = "start_command"
)

var timerOrder = []timerKind{timerStartWake, timerStartCommand}

type listenerRole string

const (
	roleWake    listenerRole = "wake"
	roleCommand listenerRole = "command"
)

type listening struct {
	role    listenerRole
	token   string
	session ports.RecognitionSession
}

type origin string

const (
	originWake    origin = "wake"
	originCommand origin = "command"
	originUI      origin = "ui"
)

// Controller is the dialogue state machine. Every field below the channel is
// owned by the goroutine running Run.
type Controller struct {
	cfg        Config
	recognizer ports.Recognizer
	speaker    Speaker
	interp     *interpreter.Interpreter
	source     ports.ListingsSource
	store      *listings.Store
	sink       ports.EventSink
	clock      clockwork.Clock
	logger     zerolog.Logger

	events  chan Event
	done    chan struct{}
	closing sync.Once
	running atomic.Bool
	wg      sync.WaitGroup

	runCtx         context.Context
	phase          domain.Phase
	returnPhase    domain.Phase
	panelOpen      bool
	voiceSupported bool
	endToEnd       bool
	utterance      string
	active         *listening
	deadlines      map[timerKind]time.Time
	reader         readCursor
	pendingRead    *readCursor
	fetchSeq       uint64
	autoRead       bool

	unsupportedReported bool

	statusMu sync.RWMutex
	status   domain.Status
}

func NewController(deps Deps, cfg Config) *Controller {
	cfg = cfg.withDefaults()
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	c := &Controller{
		cfg:            cfg,
		recognizer:     deps.Recognizer,
		speaker:        deps.Speaker,
		interp:         deps.Interpreter,
		source:         deps.Source,
		store:          deps.Store,
		sink:           deps.Sink,
		clock:          deps.Clock,
		logger:         deps.Logger.With().Str("component", "dialogue").Logger(),
		events:         make(chan Event, cfg.EventBuffer),
		done:           make(chan struct{}),
		runCtx:         context.Background(),
		phase:          domain.PhaseIdle,
		returnPhase:    domain.PhaseIdle,
		voiceSupported: deps.Recognizer != nil,
		deadlines:      make(map[timerKind]time.Time),
	}
	c.status = domain.Status{Phase: domain.PhaseIdle, VoiceSupported: c.voiceSupported}
	c.speaker.SetBeforeSpeak(c.stopListening)
	return c
}

// Post enqueues an event for the loop. It reports false once the loop has exited.
func (c *Controller) Post(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// Status is a snapshot safe to call from any goroutine.
func (c *Controller) Status() domain.Status {
	c.statusMu.RLock()
	status := c.status
	c.statusMu.RUnlock()

	status.SpeechEnabled = c.speaker.Enabled()
	status.Listings = c.store.Len()
	status.CurrentDate = c.store.CurrentDate()
	return status
}

// Run consumes events until ctx is done. It starts wake-word listening.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	c.runCtx = ctx
	defer c.shutdown()

	c.start()

	var timer clockwork.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		if timer != nil {
			timer.Stop()
			timer = nil
		}
		var fire <-chan time.Time
		if at, ok := c.nextDeadline(); ok {
			timer = c.clock.NewTimer(at.Sub(c.clock.Now()))
			fire = timer.Chan()
		}

		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.events:
			c.handle(ev)
		case <-fire:
			c.fireDue()
		}
	}
}

func (c *Controller) start() {
	c.setPhase(domain.PhaseIdle, domain.PhaseReasonStartup)
	if !c.voiceSupported {
		c.disableVoice(ports.ErrRecognitionUnsupported)
		return
	}
	c.startWake()
}

func (c *Controller) shutdown() {
	c.closing.Do(func() { close(c.done) })
	c.stopListening()
	c.speaker.Cancel()
	c.wg.Wait()
	c.logger.Debug().Msg("dialogue loop stopped")
}

func (c *Controller) handle(ev Event) {
	switch ev := ev.(type) {
	case WakePhraseDetected:
		if !c.isCurrent(ev.Session, roleWake) {
			c.stale("wake_phrase", ev.Session)
			return
		}
		c.onWakePhrase(ev.Phrase)
	case ShortcutDetected:
		if !c.isCurrent(ev.Session, roleWake) {
			c.stale("shortcut", ev.Session)
			return
		}
		c.onShortcut(ev.Intent)
	case TranscriptInterim:
		if !c.isCurrent(ev.Session, roleCommand) {
			c.stale("transcript_interim", ev.Session)
			return
		}
		c.sink.Transcript(ev.Text, false)
	case TranscriptFinal:
		if !c.isCurrent(ev.Session, roleCommand) {
			c.stale("transcript_final", ev.Session)
			return
		}
		c.onCommand(ev.Text, originCommand)
	case TypedCommand:
		c.onTyped(ev.Text)
	case SynthesisDone:
		c.onSynthesisDone(ev.Utterance)
	case SynthesisFailed:
		c.onSynthesisFailed(ev.Utterance, ev.Err)
	case SessionEnded:
		c.onSessionEnded(ev.Session)
	case SessionError:
		c.onSessionError(ev)
	case ToggleRequested:
		c.toggle()
	case ActivateRequested:
		c.activate(domain.PhaseReasonActivated)
	case DeactivateRequested:
		c.deactivate(domain.PhaseReasonDeactivated)
	case KeyPressed:
		c.onKey(ev)
	case UserGesture:
		c.gesture()
	case IntentRequested:
		c.dispatch(ev.Intent, originUI)
	case FiltersRequested:
		c.applyFilters(ev.Filters)
	case ReadToggleRequested:
		c.toggleReading()
	case FetchCompleted:
		c.onFetchCompleted(ev)
	case FetchFailed:
		c.onFetchFailed(ev)
	case DatesLoaded:
		c.onDatesLoaded(ev)
	default:
		c.logger.Warn().Str("event", eventName(ev)).Msg("unhandled event")
	}
}

func (c *Controller) setPhase(phase domain.Phase, reason domain.PhaseReason) {
	previous := c.phase
	c.phase = phase

	c.logger.Debug().
		Str("from", string(previous)).
		Str("to", string(phase)).
		Str("reason", string(reason)).
		Msg("phase transition")
	metrics.PhaseTransitions.WithLabelValues(string(phase), string(reason)).Inc()

	c.sink.PhaseChanged(phase, reason)
	c.publishStatus()
}

func (c *Controller) setPanel(open bool) {
	if c.panelOpen == open {
		return
	}
	c.panelOpen = open
	c.sink.PanelVisibility(open)
	c.publishStatus()
}

func (c *Controller) publishStatus() {
	c.statusMu.Lock()
	c.status.Phase = c.phase
	c.status.PanelOpen = c.panelOpen
	c.status.VoiceSupported = c.voiceSupported
	c.statusMu.Unlock()
}

func (c *Controller) activate(reason domain.PhaseReason) {
	if c.phase != domain.PhaseIdle {
		return
	}
	c.stopListening()
	c.cancelTimer(timerStartWake)

	c.setPanel(true)
	c.setPhase(domain.PhaseAwake, reason)
	c.schedule(timerStartCommand, c.cfg.CommandStartDelay)
	c.speak(activationAck, false)
}

func (c *Controller) deactivate(reason domain.PhaseReason) {
	if c.phase == domain.PhaseIdle {
		return
	}
	c.stopListening()
	c.speaker.Cancel()
	c.utterance = ""
	c.endToEnd = false
	c.pendingRead = nil
	c.cancelTimer(timerStartCommand)

	// A shortcut spoken from Idle never opened the panel; there is nothing to close.
	wasOpen := c.panelOpen
	c.setPanel(false)
	c.setPhase(domain.PhaseIdle, reason)
	if wasOpen {
		c.feedback(domain.FeedbackSuccess, "Voice control closed")
	}
	c.schedule(timerStartWake, c.cfg.ResumeDelay)
}

func (c *Controller) toggle() {
	if c.phase == domain.PhaseIdle {
		c.activate(domain.PhaseReasonActivated)
		return
	}
	c.deactivate(domain.PhaseReasonDeactivated)
}

func (c *Controller) onKey(ev KeyPressed) {
	c.gesture()
	switch {
	case (ev.Ctrl || ev.Meta) && (ev.Key == "v" || ev.Key == "V"):
		c.toggle()
	case ev.Key == "Escape" && c.phase != domain.PhaseIdle:
		c.deactivate(domain.PhaseReasonDeactivated)
	}
}

func (c *Controller) gesture() {
	if c.speaker.Enable() {
		c.publishStatus()
	}
}

// speak hands text to the engine and enters Speaking. endToEnd marks a
// voice-initiated flow that ends in Idle once playback completes.
func (c *Controller) speak(text string, endToEnd bool) bool {
	token := uuid.NewString()
	engineID, err := c.speaker.Speak(text, speech.Callbacks{
		OnDone:  func() { c.Post(SynthesisDone{Utterance: token}) },
		OnError: func(err error) { c.Post(SynthesisFailed{Utterance: token, Err: err}) },
	})
	if err != nil {
		if errors.Is(err, speech.ErrNotAllowed) {
			metrics.SynthesisOutcomes.WithLabelValues("not_allowed").Inc()
			c.feedback(domain.FeedbackError, "Click anywhere or press a key to enable spoken responses")
			c.sink.VoiceError(domain.ErrorCodeSynthesisNotAllowed, err.Error())
			return false
		}
		metrics.SynthesisOutcomes.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Msg("speech request rejected")
		c.feedback(domain.FeedbackError, "Speech error: "+synthesisCode(err))
		c.sink.VoiceError(domain.ErrorCodeSynthesis, err.Error())
		return false
	}

	if c.phase != domain.PhaseSpeaking {
		c.returnPhase = c.phase
	}
	c.utterance = token
	c.endToEnd = endToEnd
	c.pendingRead = nil
	c.cancelTimer(timerStartCommand)
	c.cancelTimer(timerStartWake)

	c.logger.Debug().Str("utterance", engineID).Bool("endToEnd", endToEnd).Msg("speech started")
	if c.phase != domain.PhaseSpeaking {
		c.setPhase(domain.PhaseSpeaking, domain.PhaseReasonSpeechStarted)
	}
	return true
}

func (c *Controller) onSynthesisDone(token string) {
	if token == "" || token != c.utterance {
		c.stale("synthesis_done", token)
		return
	}
	metrics.SynthesisOutcomes.WithLabelValues("done").Inc()
	if c.pendingRead != nil {
		c.reader = *c.pendingRead
	}
	c.finishSpeaking(domain.PhaseReasonSpeechFinished)
}

func (c *Controller) onSynthesisFailed(token string, err error) {
	if token == "" || token != c.utterance {
		c.stale("synthesis_failed", token)
		return
	}
	metrics.SynthesisOutcomes.WithLabelValues("error").Inc()
	c.logger.Warn().Err(err).Msg("speech synthesis failed")
	c.feedback(domain.FeedbackError, "Speech error: "+synthesisCode(err))
	c.sink.VoiceError(domain.ErrorCodeSynthesis, errorDetail(err))
	c.finishSpeaking(domain.PhaseReasonSpeechFailed)
}

func (c *Controller) finishSpeaking(reason domain.PhaseReason) {
	target := c.returnPhase
	delay := c.cfg.ResumeDelay
	if c.endToEnd {
		target = domain.PhaseIdle
		delay = c.cfg.SettleDelay
		if reason == domain.PhaseReasonSpeechFinished {
			reason = domain.PhaseReasonVoiceFlowEnded
		}
	}
	c.utterance = ""
	c.endToEnd = false
	c.pendingRead = nil
	c.resume(target, reason, delay)
}

// interruptSpeech cancels playback and leaves Speaking without waiting for
// the engine.
func (c *Controller) interruptSpeech(reason domain.PhaseReason) {
	c.speaker.Cancel()
	if c.phase != domain.PhaseSpeaking {
		return
	}
	c.utterance = ""
	c.endToEnd = false
	c.pendingRead = nil
	c.resume(c.returnPhase, reason, c.cfg.ResumeDelay)
}

func (c *Controller) resume(target domain.Phase, reason domain.PhaseReason, delay time.Duration) {
	if target == domain.PhaseAwake {
		c.setPhase(domain.PhaseAwake, reason)
		c.schedule(timerStartCommand, delay)
		return
	}
	c.setPanel(false)
	c.setPhase(domain.PhaseIdle, reason)
	c.schedule(timerStartWake, delay)
}

func (c *Controller) onSessionEnded(token string) {
	if c.active == nil || c.active.token != token {
		c.stale("session_ended", token)
		return
	}
	role := c.active.role
	c.active = nil

	switch role {
	case roleWake:
		c.sink.WakeStatus(false, false)
		if c.phase == domain.PhaseIdle {
			c.scheduleRestart(roleWake, "ended", c.cfg.WakeRestartDelay)
		}
	case roleCommand:
		if c.phase == domain.PhaseAwake {
			c.scheduleRestart(roleCommand, "ended", c.cfg.CommandRestartDelay)
		}
	}
}

func (c *Controller) onSessionError(ev SessionError) {
	if c.active == nil || c.active.token != ev.Session {
		c.logger.Debug().Err(ev.Err).Str("code", ev.Code).Msg("ignoring error from inactive recognition session")
		metrics.StaleEvents.Inc()
		return
	}
	role := c.active.role
	c.active = nil

	if errors.Is(ev.Err, ports.ErrRecognitionUnsupported) {
		c.disableVoice(ev.Err)
		return
	}

	c.logger.Warn().Err(ev.Err).Str("listener", string(role)).Str("code", ev.Code).Msg("recognition error")
	switch role {
	case roleWake:
		c.sink.WakeStatus(false, true)
		if c.phase == domain.PhaseIdle {
			c.scheduleRestart(roleWake, "error", c.cfg.WakeErrorDelay)
		}
	case roleCommand:
		c.feedback(domain.FeedbackError, "Error: "+ev.Code)
		c.sink.VoiceError(domain.ErrorCodeRecognition, errorDetail(ev.Err))
		if c.phase == domain.PhaseAwake {
			c.scheduleRestart(roleCommand, "error", c.cfg.CommandErrorDelay)
		}
	}
}

// disableVoice turns recognition off for the rest of the process and reports
// it once.
func (c *Controller) disableVoice(err error) {
	c.voiceSupported = false
	c.stopListening()
	c.cancelTimer(timerStartWake)
	c.cancelTimer(timerStartCommand)
	c.publishStatus()

	if c.unsupportedReported {
		return
	}
	c.unsupportedReported = true
	c.logger.Warn().Err(err).Msg("speech recognition unavailable; voice commands disabled")
	c.feedback(domain.FeedbackError, "Voice recognition not supported on this system.")
	c.sink.VoiceError(domain.ErrorCodeRecognitionUnsupported, errorDetail(err))
}

func (c *Controller) scheduleRestart(role listenerRole, cause string, delay time.Duration) {
	metrics.RecognizerRestarts.WithLabelValues(string(role), cause).Inc()
	if role == roleWake {
		c.schedule(timerStartWake, delay)
		return
	}
	c.schedule(timerStartCommand, delay)
}

func (c *Controller) isCurrent(token string, role listenerRole) bool {
	return c.active != nil && c.active.role == role && c.active.token == token
}

func (c *Controller) stale(kind string, id string) {
	metrics.StaleEvents.Inc()
	c.logger.Debug().Str("event", kind).Str("id", id).Msg("ignoring stale event")
}

func (c *Controller) schedule(kind timerKind, delay time.Duration) {
	c.deadlines[kind] = c.clock.Now().Add(delay)
}

func (c *Controller) cancelTimer(kind timerKind) {
	delete(c.deadlines, kind)
}

func (c *Controller) nextDeadline() (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, at := range c.deadlines {
		if !found || at.Before(earliest) {
			earliest = at
			found = true
		}
	}
	return earliest, found
}

// fireDue runs every timer whose deadline has passed.
func (c *Controller) fireDue() {
	now := c.clock.Now()
	for _, kind := range timerOrder {
		at, ok := c.deadlines[kind]
		if !ok || at.After(now) {
			continue
		}
		delete(c.deadlines, kind)
		switch kind {
		case timerStartWake:
			c.startWake()
		case timerStartCommand:
			c.startCommand()
		}
	}
}

func (c *Controller) feedback(kind domain.FeedbackKind, message string) {
	c.sink.Feedback(domain.Feedback{Kind: kind, Message: message, Duration: c.cfg.FeedbackDuration})
}

func (c *Controller) alert(kind domain.FeedbackKind, message string) {
	c.sink.Feedback(domain.Feedback{Kind: kind, Message: message, Duration: c.cfg.AlertDuration})
}

func synthesisCode(err error) string {
	var synthErr *speech.SynthesisError
	if errors.As(err, &synthErr) && synthErr.Code != "" {
		return synthErr.Code
	}
	return speech.CodeSynthesisFailed
}

func errorDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

package usecase

import (
	"errors"

	"github.com/google/uuid"

	"tvvoice/internal/domain"
	"tvvoice/internal/interpreter"
	"tvvoice/internal/ports"
)

// startWake opens the passive wake-word session. It is a no-op unless the
// dialogue is Idle with no session running.
func (c *Controller) startWake() {
	if c.phase != domain.PhaseIdle || c.active != nil {
		return
	}
	if c.listen(roleWake) {
		c.sink.WakeStatus(true, false)
	}
}

// wakeHandler runs on the recognizer's goroutine. It only reads the
// interpreter and the store, both safe for concurrent use, and posts the result.
func (c *Controller) wakeHandler(token string) ports.SessionHandler {
	return ports.SessionHandler{
		OnUtterance: func(utterance domain.Utterance) {
			if !utterance.IsFinal {
				return
			}
			if ev, ok := c.classifyWake(token, utterance.Text); ok {
				c.Post(ev)
			}
		},
		OnEnd: func() {
			c.Post(SessionEnded{Session: token})
		},
		OnError: func(code string, err error) {
			c.Post(SessionError{Session: token, Code: code, Err: err})
		},
	}
}

// classifyWake checks a wake phrase first, then the always-on shortcuts.
// Anything else is dropped without feedback.
func (c *Controller) classifyWake(token string, text string) (Event, bool) {
	command := c.interp.Normalize(text)
	if command == "" {
		return nil, false
	}
	if phrase, ok := c.interp.MatchWakePhrase(command); ok {
		return WakePhraseDetected{Session: token, Phrase: phrase}, true
	}
	intent := c.interp.Resolve(command, c.interpreterContext())
	if interpreter.IsShortcut(intent) {
		return ShortcutDetected{Session: token, Intent: intent}, true
	}
	return nil, false
}

func (c *Controller) onWakePhrase(phrase string) {
	if c.phase != domain.PhaseIdle {
		return
	}
	c.logger.Info().Str("phrase", phrase).Msg("wake phrase detected")
	c.activate(domain.PhaseReasonWakePhrase)
}

func (c *Controller) onShortcut(intent domain.Intent) {
	if c.phase != domain.PhaseIdle {
		return
	}
	c.logger.Info().Str("intent", intent.String()).Msg("shortcut command")
	c.dispatch(intent, originWake)
}

// onTyped treats text as if it had been heard by whichever listener fits the
// current phase.
func (c *Controller) onTyped(text string) {
	switch c.phase {
	case domain.PhaseAwake:
		c.onCommand(text, originCommand)
	case domain.PhaseIdle:
		ev, ok := c.classifyWake("", text)
		if !ok {
			c.logger.Debug().Str("text", text).Msg("typed text ignored while idle")
			return
		}
		switch ev := ev.(type) {
		case WakePhraseDetected:
			c.onWakePhrase(ev.Phrase)
		case ShortcutDetected:
			c.onShortcut(ev.Intent)
		}
	default:
		c.logger.Debug().Str("text", text).Msg("typed text ignored while speaking")
	}
}

// listen starts a session for role and records it as the only active one.
func (c *Controller) listen(role listenerRole) bool {
	if !c.voiceSupported || c.active != nil {
		return false
	}

	token := uuid.NewString()
	cfg := domain.SessionConfig{
		Mode:           domain.RecognitionContinuous,
		InterimResults: role == roleCommand,
		Language:       c.cfg.Language,
	}
	handler := c.wakeHandler(token)
	if role == roleCommand {
		handler = c.commandHandler(token)
	}

	session, err := c.recognizer.Start(c.runCtx, cfg, handler)
	if err != nil {
		if errors.Is(err, ports.ErrRecognitionUnsupported) {
			c.disableVoice(err)
			return false
		}
		c.logger.Warn().Err(err).Str("listener", string(role)).Msg("failed to start recognition")
		if role == roleWake {
			c.sink.WakeStatus(false, true)
			c.scheduleRestart(roleWake, "start_failed", c.cfg.WakeErrorDelay)
		} else {
			c.scheduleRestart(roleCommand, "start_failed", c.cfg.CommandErrorDelay)
		}
		return false
	}

	c.active = &listening{role: role, token: token, session: session}
	c.logger.Debug().Str("listener", string(role)).Str("session", session.ID()).Msg("recognition started")
	return true
}

// stopListening stops whichever session is active. Its late callbacks become
// stale because the token is forgotten first.
func (c *Controller) stopListening() {
	if c.active == nil {
		return
	}
	active := c.active
	c.active = nil

	if err := active.session.Stop(); err != nil {
		c.logger.Debug().Err(err).Str("listener", string(active.role)).Msg("recognition stop reported an error")
	}
	if active.role == roleWake {
		c.sink.WakeStatus(false, false)
	}
}

func (c *Controller) interpreterContext() interpreter.Context {
	return interpreter.Context{Dates: c.store.Dates(), Networks: c.store.Networks()}
}

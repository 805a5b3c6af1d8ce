package usecase

import (
	"strings"

	"tvvoice/internal/domain"
	"tvvoice/internal/ports"
)

// startCommand opens the foreground session while Awake, replacing a wake
// session if one is somehow still running.
func (c *Controller) startCommand() {
	if c.phase != domain.PhaseAwake {
		return
	}
	if c.active != nil {
		if c.active.role == roleCommand {
			return
		}
		c.stopListening()
	}
	c.listen(roleCommand)
}

func (c *Controller) commandHandler(token string) ports.SessionHandler {
	return ports.SessionHandler{
		OnUtterance: func(utterance domain.Utterance) {
			text := strings.TrimSpace(utterance.Text)
			if text == "" {
				return
			}
			if utterance.IsFinal {
				c.Post(TranscriptFinal{Session: token, Text: text})
				return
			}
			c.Post(TranscriptInterim{Session: token, Text: text})
		},
		OnEnd: func() {
			c.Post(SessionEnded{Session: token})
		},
		OnError: func(code string, err error) {
			c.Post(SessionError{Session: token, Code: code, Err: err})
		},
	}
}

// onCommand shows the final transcript and dispatches its intent.
func (c *Controller) onCommand(text string, from origin) {
	c.sink.Transcript(text, true)
	if c.phase != domain.PhaseAwake {
		return
	}
	intent := c.interp.Interpret(text, c.interpreterContext())
	c.logger.Info().Str("transcript", text).Str("intent", intent.String()).Msg("command heard")
	c.dispatch(intent, from)
}

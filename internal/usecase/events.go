package usecase

import (
	"fmt"

	"tvvoice/internal/domain"
)

// Event is anything the controller loop consumes. Recognizer, synthesizer,
// fetch and UI callbacks only ever post events; they never touch state.
type Event interface {
	event()
}

// WakePhraseDetected is posted by the wake listener.
type WakePhraseDetected struct {
	Session string
	Phrase  string
}

// ShortcutDetected is an always-on command heard while idle.
type ShortcutDetected struct {
	Session string
	Intent  domain.Intent
}

type TranscriptInterim struct {
	Session string
	Text    string
}

type TranscriptFinal struct {
	Session string
	Text    string
}

// SynthesisDone and SynthesisFailed carry the utterance token issued by speak.
type SynthesisDone struct {
	Utterance string
}

type SynthesisFailed struct {
	Utterance string
	Err       error
}

type SessionEnded struct {
	Session string
}

type SessionError struct {
	Session string
	Code    string
	Err     error
}

type ToggleRequested struct{}

type ActivateRequested struct{}

type DeactivateRequested struct{}

// KeyPressed is a keydown from the UI. Key uses DOM key names ("v", "Escape").
type KeyPressed struct {
	Key  string
	Ctrl bool
	Meta bool
}

// UserGesture is a click or touch.
type UserGesture struct{}

// IntentRequested runs an intent that came from a UI control rather than speech.
type IntentRequested struct {
	Intent domain.Intent
}

// TypedCommand is text entered in place of speech.
type TypedCommand struct {
	Text string
}

// FiltersRequested replaces all display filters from the UI selectors.
type FiltersRequested struct {
	Filters domain.Filters
}

// ReadToggleRequested stops speech if any, otherwise reads the default batch.
type ReadToggleRequested struct{}

type FetchCompleted struct {
	Seq       uint64
	DateIndex int
	Response  domain.ScrapeResponse
}

type FetchFailed struct {
	Seq       uint64
	DateIndex int
	Err       error
}

type DatesLoaded struct {
	Dates       []string
	CurrentDate string
	Err         error
}

func (WakePhraseDetected) event()  {}
func (ShortcutDetected) event()    {}
func (TranscriptInterim) event()   {}
func (TranscriptFinal) event()     {}
func (SynthesisDone) event()       {}
func (SynthesisFailed) event()     {}
func (SessionEnded) event()        {}
func (SessionError) event()        {}
func (ToggleRequested) event()     {}
func (ActivateRequested) event()   {}
func (DeactivateRequested) event() {}
func (KeyPressed) event()          {}
func (UserGesture) event()         {}
func (IntentRequested) event()     {}
func (TypedCommand) event()        {}
func (FiltersRequested) event()    {}
func (ReadToggleRequested) event() {}
func (FetchCompleted) event()      {}
func (FetchFailed) event()         {}
func (DatesLoaded) event()         {}

func eventName(ev Event) string {
	return fmt.Sprintf("%T", ev)
}

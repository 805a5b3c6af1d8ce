package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"tvvoice/internal/bootstrap"
	"tvvoice/internal/domain"
	"tvvoice/internal/usecase"
)

const (
	eventPhase      = "tvvoice:phase"
	eventPanel      = "tvvoice:panel"
	eventWake       = "tvvoice:wake"
	eventTranscript = "tvvoice:transcript"
	eventFeedback   = "tvvoice:feedback"
	eventDates      = "tvvoice:dates"
	eventDate       = "tvvoice:current-date"
	eventFilters    = "tvvoice:filters"
	eventListings   = "tvvoice:listings"
	eventStats      = "tvvoice:stats"
	eventError      = "tvvoice:error"
)

// App is the Wails application root and the display for the dialogue.
type App struct {
	ctx context.Context

	rt      *bootstrap.Runtime
	bootErr error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	cfg, logger, err := bootstrap.Load("")
	if err != nil {
		a.bootFailed(err)
		return
	}
	rt, err := bootstrap.Build(cfg, logger, a)
	if err != nil {
		a.bootFailed(err)
		return
	}
	a.rt = rt

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := rt.Run(runCtx); err != nil {
			logger.Error().Err(err).Msg("runtime exited")
			a.VoiceError(domain.ErrorCodeStartup, err.Error())
		}
	}()
}

func (a *App) shutdown(_ context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

func (a *App) bootFailed(err error) {
	a.bootErr = err
	a.VoiceError(domain.ErrorCodeStartup, err.Error())
}

// ToggleVoice opens or closes voice control, like the V shortcut.
func (a *App) ToggleVoice() error {
	return a.post(usecase.ToggleRequested{})
}

// KeyDown forwards a keyboard shortcut using DOM key names.
func (a *App) KeyDown(key string, ctrl bool, meta bool) error {
	return a.post(usecase.KeyPressed{Key: key, Ctrl: ctrl, Meta: meta})
}

// UserGesture unlocks speech output after a click or touch.
func (a *App) UserGesture() error {
	return a.post(usecase.UserGesture{})
}

// SelectDate loads the listings for a date selector index.
func (a *App) SelectDate(index int) error {
	return a.post(usecase.IntentRequested{Intent: domain.Intent{Kind: domain.IntentSelectDate, DateIndex: index}})
}

// SetFilters replaces the network, time and type selectors.
func (a *App) SetFilters(filters domain.Filters) error {
	return a.post(usecase.FiltersRequested{Filters: filters})
}

// ReadListings is the read button: it stops speech or reads the next batch.
func (a *App) ReadListings() error {
	return a.post(usecase.ReadToggleRequested{})
}

// SendCommand handles typed text as if it had been spoken.
func (a *App) SendCommand(text string) error {
	return a.post(usecase.TypedCommand{Text: text})
}

// GetStatus returns the current dialogue status.
func (a *App) GetStatus() domain.Status {
	if a.rt == nil {
		status := domain.Status{Phase: domain.PhaseIdle}
		if a.bootErr != nil {
			status.Message = a.bootErr.Error()
		}
		return status
	}
	return a.rt.Controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if a.rt == nil {
		return map[string]string{}
	}

	cfg := a.rt.Config
	info := map[string]string{
		"provider":      "Deepgram",
		"model":         cfg.Deepgram.Model,
		"language":      cfg.Dialogue.Language,
		"listingsURL":   cfg.Listings.BaseURL,
		"rulesFile":     cfg.Rules.Path,
		"vocabulary":    cfg.Vocabulary.Path,
		"audioInput":    cfg.Audio.InputDevice,
		"audioFormat":   cfg.Audio.InputFormat,
		"configFile":    cfg.File,
		"speechCommand": cfg.Speech.Command,
	}
	if a.rt.VoiceErr != nil {
		info["voiceError"] = a.rt.VoiceErr.Error()
	}
	if a.rt.SpeechErr != nil {
		info["speechError"] = a.rt.SpeechErr.Error()
	}
	return info
}

func (a *App) post(ev usecase.Event) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if !a.rt.Controller.Post(ev) {
		return errors.New("dialogue controller has stopped")
	}
	return nil
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.rt == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) emit(name string, payload any) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, name, payload)
}

// PhaseChanged emits dialogue phase transitions to the frontend.
func (a *App) PhaseChanged(phase domain.Phase, reason domain.PhaseReason) {
	a.emit(eventPhase, map[string]string{
		"phase":   string(phase),
		"reason":  string(reason),
		"message": phaseMessage(phase, reason),
	})
}

func (a *App) PanelVisibility(open bool) {
	a.emit(eventPanel, map[string]bool{"open": open})
}

// WakeStatus drives the wake indicator.
func (a *App) WakeStatus(listening bool, failed bool) {
	a.emit(eventWake, map[string]bool{"listening": listening, "failed": failed})
}

func (a *App) Transcript(text string, final bool) {
	a.emit(eventTranscript, map[string]any{"text": text, "final": final})
}

func (a *App) Feedback(feedback domain.Feedback) {
	a.emit(eventFeedback, map[string]any{
		"kind":       string(feedback.Kind),
		"message":    feedback.Message,
		"durationMs": feedback.Duration.Milliseconds(),
	})
}

func (a *App) DatesChanged(dates []string, selected int) {
	a.emit(eventDates, map[string]any{"dates": dates, "selected": selected})
}

func (a *App) CurrentDate(label string) {
	a.emit(eventDate, map[string]string{"label": label})
}

func (a *App) FiltersChanged(filters domain.Filters) {
	a.emit(eventFilters, filters)
}

func (a *App) RenderListings(listings []domain.Listing, total int) {
	a.emit(eventListings, map[string]any{"listings": listings, "total": total})
}

func (a *App) Stats(stats domain.Stats) {
	a.emit(eventStats, stats)
}

// VoiceError emits backend errors to the UI.
func (a *App) VoiceError(code domain.ErrorCode, detail string) {
	a.emit(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func phaseMessage(phase domain.Phase, reason domain.PhaseReason) string {
	switch reason {
	case domain.PhaseReasonWakePhrase, domain.PhaseReasonActivated:
		return "Listening for commands"
	case domain.PhaseReasonDeactivated:
		return "Voice control closed"
	case domain.PhaseReasonSpeechStarted:
		return "Speaking"
	case domain.PhaseReasonSpeechFailed:
		return "Speech output failed"
	case domain.PhaseReasonVoiceFlowEnded:
		return "Say a wake phrase to continue"
	case domain.PhaseReasonReset:
		return "Voice assistant reset"
	}
	switch phase {
	case domain.PhaseAwake:
		return "Listening for commands"
	case domain.PhaseSpeaking:
		return "Speaking"
	default:
		return "Waiting for wake phrase"
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeRecognitionUnsupported:
		return "Speech recognition is not available"
	case domain.ErrorCodeRecognition:
		return "Speech recognition error"
	case domain.ErrorCodeSynthesisNotAllowed:
		return "Click anywhere to enable speech output"
	case domain.ErrorCodeSynthesis:
		return "Speech output error"
	case domain.ErrorCodeNoData:
		return "No listings loaded"
	case domain.ErrorCodeFetch:
		return "Could not load listings"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

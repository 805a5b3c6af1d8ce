package domain

import (
	"time"
)

// Phase models the dialogue lifecycle.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseAwake    Phase = "awake"
	PhaseSpeaking Phase = "speaking"
)

// PhaseReason provides a structured reason for phase transitions.
type PhaseReason string

const (
	PhaseReasonStartup        PhaseReason = "startup"
	PhaseReasonWakePhrase     PhaseReason = "wake_phrase"
	PhaseReasonActivated      PhaseReason = "activated"
	PhaseReasonDeactivated    PhaseReason = "deactivated"
	PhaseReasonSpeechStarted  PhaseReason = "speech_started"
	PhaseReasonSpeechFinished PhaseReason = "speech_finished"
	PhaseReasonSpeechFailed   PhaseReason = "speech_failed"
	PhaseReasonVoiceFlowEnded PhaseReason = "voice_flow_ended"
	PhaseReasonReset          PhaseReason = "reset"
)

// ErrorCode identifies the failure taxonomy surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup                ErrorCode = "startup"
	ErrorCodeRecognitionUnsupported ErrorCode = "recognition_unsupported"
	ErrorCodeRecognition            ErrorCode = "recognition_error"
	ErrorCodeSynthesisNotAllowed    ErrorCode = "synthesis_not_allowed"
	ErrorCodeSynthesis              ErrorCode = "synthesis_error"
	ErrorCodeNoData                 ErrorCode = "no_data"
	ErrorCodeUnrecognized           ErrorCode = "unrecognized"
	ErrorCodeFetch                  ErrorCode = "fetch_failed"
)

// RecognitionMode selects whether a session ends after one final result.
type RecognitionMode string

const (
	RecognitionContinuous RecognitionMode = "continuous"
	RecognitionSingleShot RecognitionMode = "single-shot"
)

// SessionConfig describes how a recognition session should run.
type SessionConfig struct {
	Mode           RecognitionMode
	InterimResults bool
	Language       string
}

// Utterance is one unit of recognized speech.
type Utterance struct {
	Text      string    `json:"text"`
	IsFinal   bool      `json:"isFinal"`
	Timestamp time.Time `json:"timestamp"`
}

// FeedbackKind is the style of a transient toast.
type FeedbackKind string

const (
	FeedbackSuccess FeedbackKind = "success"
	FeedbackError   FeedbackKind = "error"
	FeedbackInfo    FeedbackKind = "info"
)

// Feedback is a transient user-visible message.
type Feedback struct {
	Kind     FeedbackKind  `json:"kind"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration"`
}

// Status summarizes the current runtime status.
type Status struct {
	Phase          Phase  `json:"phase"`
	PanelOpen      bool   `json:"panelOpen"`
	SpeechEnabled  bool   `json:"speechEnabled"`
	VoiceSupported bool   `json:"voiceSupported"`
	Listings       int    `json:"listings"`
	CurrentDate    string `json:"currentDate,omitempty"`
	Message        string `json:"message,omitempty"`
}

package deepgram

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	if cfg.APIBaseURL != "https://api.deepgram.com/v1" {
		t.Fatalf("unexpected base url: %q", cfg.APIBaseURL)
	}
	if cfg.Model != "nova-2" {
		t.Fatalf("unexpected model: %q", cfg.Model)
	}
	if cfg.MaxSessionDuration != time.Minute || cfg.FinalizeTimeout != 2*time.Second || cfg.ChunkSize != 4096 {
		t.Fatalf("unexpected session limits: %+v", cfg)
	}
}

func TestBuildListenURLDefaults(t *testing.T) {
	t.Parallel()

	raw, err := buildListenURL(Config{Model: "nova-2"}, streamParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(raw, "wss://api.deepgram.com/v1/listen?") {
		t.Fatalf("unexpected ws url: %s", raw)
	}
	query := parseQuery(t, raw)
	for key, want := range map[string]string{
		"encoding":        "linear16",
		"sample_rate":     "16000",
		"channels":        "1",
		"interim_results": "false",
		"smart_format":    "false",
	} {
		if got := query.Get(key); got != want {
			t.Fatalf("%s = %q, want %q", key, got, want)
		}
	}
	if query.Has("utterance_end_ms") || query.Has("language") {
		t.Fatalf("unexpected optional parameters: %s", raw)
	}
}

func TestBuildListenURLSessionLanguageOverridesConfig(t *testing.T) {
	t.Parallel()

	raw, err := buildListenURL(
		Config{
			APIBaseURL:   "http://localhost:8080/v1/",
			Model:        "m",
			Language:     "en-GB",
			SmartFormat:  true,
			Endpointing:  300 * time.Millisecond,
			UtteranceEnd: time.Second,
			Keywords:     []string{"NBC:2", " ", "Hallmark"},
		},
		streamParams{SampleRate: 8000, Channels: 2, InterimResults: true, Language: "en-US"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(raw, "ws://localhost:8080/v1/listen?") {
		t.Fatalf("unexpected ws url: %s", raw)
	}
	query := parseQuery(t, raw)
	if query.Get("language") != "en-US" {
		t.Fatalf("expected session language, got %q", query.Get("language"))
	}
	if query.Get("smart_format") != "true" || query.Get("endpointing") != "300" || query.Get("utterance_end_ms") != "1000" {
		t.Fatalf("unexpected tuning parameters: %s", raw)
	}
	if got := query["keywords"]; len(got) != 2 || got[0] != "NBC:2" || got[1] != "Hallmark" {
		t.Fatalf("unexpected keywords: %v", got)
	}
}

func TestBuildListenURLInvalidBase(t *testing.T) {
	t.Parallel()

	for _, base := range []string{":// bad", "ftp://example.com"} {
		if _, err := buildListenURL(Config{APIBaseURL: base}, streamParams{}); err == nil {
			t.Fatalf("expected invalid base url error for %q", base)
		}
	}
}

func TestExtractTranscript(t *testing.T) {
	t.Parallel()

	r1 := listenResponse{}
	r1.Channel.Alternatives = []alternative{{Transcript: " channel "}}
	if got := extractTranscript(r1); got != "channel" {
		t.Fatalf("unexpected transcript from channel: %q", got)
	}

	r2 := listenResponse{}
	r2.Results.Channels = append(r2.Results.Channels, struct {
		Alternatives []alternative `json:"alternatives"`
	}{Alternatives: []alternative{{Transcript: "results"}}})
	if got := extractTranscript(r2); got != "results" {
		t.Fatalf("unexpected transcript from results: %q", got)
	}

	if got := extractTranscript(listenResponse{}); got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
}

func TestStreamSendAudioAfterCloseSend(t *testing.T) {
	t.Parallel()

	s := &stream{audio: make(chan []byte, 1), stopSend: make(chan struct{}), done: make(chan struct{})}
	s.CloseSend()
	s.CloseSend()
	if err := s.SendAudio([]byte("x")); !errors.Is(err, errSendClosed) {
		t.Fatalf("expected errSendClosed, got %v", err)
	}
	if err := s.SendAudio(nil); err != nil {
		t.Fatalf("empty chunks should be ignored, got %v", err)
	}
}

func TestStreamSetErrIgnoresCloseErrors(t *testing.T) {
	t.Parallel()

	s := &stream{}
	s.setErr(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "closed"})
	s.setErr(fmt.Errorf("failed to read provider event: %w", &websocket.CloseError{Code: websocket.CloseNormalClosure}))
	s.setErr(fmt.Errorf("failed to read provider event: %w", &websocket.CloseError{Code: websocket.CloseGoingAway}))
	if s.waitErr() != nil {
		t.Fatalf("expected close errors to be ignored, got %v", s.waitErr())
	}

	s.setErr(fmt.Errorf("failed to read provider event: %w", &websocket.CloseError{Code: websocket.CloseInternalServerErr}))
	if s.waitErr() == nil {
		t.Fatalf("expected abnormal close to be kept")
	}
	s = &stream{}

	s.setErr(errors.New("first"))
	s.setErr(errors.New("second"))
	if s.waitErr() == nil || s.waitErr().Error() != "first" {
		t.Fatalf("expected first error to win, got %v", s.waitErr())
	}
}

func TestUtteranceBuilder(t *testing.T) {
	t.Parallel()

	type step struct {
		event transcriptEvent
		text  string
		final bool
		ok    bool
	}
	steps := []step{
		{event: transcriptEvent{Text: "show"}, text: "show"},
		{event: transcriptEvent{Text: "show me", IsFinal: true}, text: "show me"},
		{event: transcriptEvent{Text: "n"}, text: "show me n"},
		{event: transcriptEvent{Text: "nbc", IsFinal: true, SpeechFinal: true}, text: "show me nbc", final: true},
		{event: transcriptEvent{IsFinal: true, SpeechFinal: true}, text: "", final: true},
		{event: transcriptEvent{Text: "read", IsFinal: true}, text: "read"},
		{event: transcriptEvent{UtteranceEnd: true}, text: "read", final: true},
		{event: transcriptEvent{UtteranceEnd: true}, text: "", final: true},
	}

	var b utteranceBuilder
	for i, s := range steps {
		wantOK := s.text != ""
		text, final, ok := b.add(s.event)
		if text != s.text || final != s.final || ok != wantOK {
			t.Fatalf("step %d: got (%q, %t, %t), want (%q, %t, %t)", i, text, final, ok, s.text, s.final, wantOK)
		}
	}
}

func parseQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return parsed.Query()
}

package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tvvoice/internal/config"
	"tvvoice/internal/domain"
	"tvvoice/internal/ports"
)

func loadTestConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DEEPGRAM_API_KEY", "")
	t.Setenv("TVVOICE_DEEPGRAM_API_KEY", "")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func TestBuildWithoutCredentialsDisablesVoice(t *testing.T) {
	cfg := loadTestConfig(t)

	rt, err := Build(cfg, zerolog.Nop(), &recordingSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if rt.Controller == nil || rt.Interpreter == nil || rt.Store == nil {
		t.Fatalf("expected assembled runtime, got %+v", rt)
	}
	if !errors.Is(rt.VoiceErr, ports.ErrRecognitionUnsupported) {
		t.Fatalf("expected recognition unsupported, got %v", rt.VoiceErr)
	}
	if rt.Controller.Status().VoiceSupported {
		t.Fatalf("controller should not report voice support without a recognizer")
	}
}

func TestBuildFailsOnInvalidRules(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Rules.Path = filepath.Join(t.TempDir(), "bad.rules")
	if err := os.WriteFile(cfg.Rules.Path, []byte("not a valid rule\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, err := Build(cfg, zerolog.Nop(), &recordingSink{}); err == nil {
		t.Fatalf("expected build error due to invalid rules")
	}
}

func TestBuildFailsOnInvalidVocabulary(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Vocabulary.Path = filepath.Join(t.TempDir(), "vocabulary.yaml")
	if err := os.WriteFile(cfg.Vocabulary.Path, []byte("wake_phrases: [unterminated\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, err := Build(cfg, zerolog.Nop(), &recordingSink{}); err == nil {
		t.Fatalf("expected build error due to invalid vocabulary")
	}
}

func TestBuildFailsOnInvalidRefreshSchedule(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Listings.RefreshSchedule = "every now and then"

	if _, err := Build(cfg, zerolog.Nop(), &recordingSink{}); err == nil {
		t.Fatalf("expected build error due to invalid schedule")
	}
}

func TestRunLoadsDatesAndStops(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scrape" || r.URL.Query().Get("date") != "0" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"listings":[],"networks":[],"dates":["Friday, July 11","Saturday, July 12"],"current_date":"Friday, July 11"}`))
	}))
	defer server.Close()

	cfg := loadTestConfig(t)
	cfg.Listings.BaseURL = server.URL
	sink := &recordingSink{dates: make(chan []string, 1)}

	rt, err := Build(cfg, zerolog.Nop(), sink)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	select {
	case dates := <-sink.dates:
		if len(dates) != 2 || dates[1] != "Saturday, July 12" {
			t.Fatalf("unexpected dates: %v", dates)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for the initial date list")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("runtime did not stop")
	}
	if got := rt.Store.Dates(); len(got) != 2 {
		t.Fatalf("store should hold the loaded dates, got %v", got)
	}
}

func TestMissingSynthesizerFails(t *testing.T) {
	want := errors.New("no tts")
	if err := (missingSynthesizer{err: want}).Synthesize(context.Background(), ports.SynthesisRequest{Text: "hi"}); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

type recordingSink struct {
	mu     sync.Mutex
	errors []domain.ErrorCode
	dates  chan []string
}

func (*recordingSink) PhaseChanged(domain.Phase, domain.PhaseReason) {}
func (*recordingSink) PanelVisibility(bool)                         {}
func (*recordingSink) WakeStatus(bool, bool)                        {}
func (*recordingSink) Transcript(string, bool)                      {}
func (*recordingSink) Feedback(domain.Feedback)                     {}
func (*recordingSink) CurrentDate(string)                           {}
func (*recordingSink) FiltersChanged(domain.Filters)                {}
func (*recordingSink) RenderListings([]domain.Listing, int)         {}
func (*recordingSink) Stats(domain.Stats)                           {}

func (s *recordingSink) DatesChanged(dates []string, _ int) {
	if s.dates == nil {
		return
	}
	select {
	case s.dates <- dates:
	default:
	}
}

func (s *recordingSink) VoiceError(code domain.ErrorCode, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, code)
}

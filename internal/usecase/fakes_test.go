package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"tvvoice/internal/domain"
	"tvvoice/internal/interpreter"
	"tvvoice/internal/listings"
	"tvvoice/internal/ports"
	"tvvoice/internal/speech"
)

var testDates = []string{"Friday, July 11", "Saturday, July 12", "Sunday, July 13"}

type harness struct {
	t          *testing.T
	clock      *clockwork.FakeClock
	recognizer *fakeRecognizer
	speaker    *fakeSpeaker
	source     *fakeSource
	store      *listings.Store
	sink       *recordingSink
	c          *Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	sink := &recordingSink{}
	h := &harness{
		t:          t,
		clock:      clockwork.NewFakeClockAt(time.Date(2025, 7, 11, 19, 0, 0, 0, time.UTC)),
		recognizer: &fakeRecognizer{},
		speaker:    &fakeSpeaker{enabled: true},
		source:     &fakeSource{responses: map[int]domain.ScrapeResponse{}},
		sink:       sink,
		store:      listings.NewStore(sink),
	}
	h.c = NewController(Deps{
		Recognizer:  h.recognizer,
		Speaker:     h.speaker,
		Interpreter: interpreter.New(interpreter.DefaultVocabulary(), nil),
		Source:      h.source,
		Store:       h.store,
		Sink:        sink,
		Clock:       h.clock,
		Logger:      zerolog.Nop(),
	}, DefaultConfig())
	return h
}

// drain handles every event already queued, including ones queued while handling.
func (h *harness) drain() {
	h.t.Helper()
	for {
		select {
		case ev := <-h.c.events:
			h.c.handle(ev)
		default:
			return
		}
	}
}

// await blocks for one event posted from another goroutine.
func (h *harness) await() {
	h.t.Helper()
	select {
	case ev := <-h.c.events:
		h.c.handle(ev)
	case <-time.After(2 * time.Second):
		h.t.Fatalf("timed out waiting for controller event")
	}
}

func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.c.fireDue()
	h.drain()
}

func (h *harness) loadListings(listings []domain.Listing) {
	h.store.Load(0, domain.ScrapeResponse{
		Success:     true,
		Listings:    listings,
		Dates:       testDates,
		CurrentDate: testDates[0],
	})
}

// awake drives the controller from startup to Awake with a command session open.
func (h *harness) awake() *fakeSession {
	h.t.Helper()
	h.c.start()
	h.recognizer.last().final("hey tv")
	h.drain()
	h.speaker.complete(h.speaker.count() - 1)
	h.drain()
	h.advance(h.c.cfg.ResumeDelay)
	session := h.recognizer.last()
	if !session.cfg.InterimResults {
		h.t.Fatalf("expected command session to be active")
	}
	return session
}

func makeListings(n int) []domain.Listing {
	out := make([]domain.Listing, 0, n)
	for i := 0; i < n; i++ {
		hour := 6 + i%18
		meridiem := "AM"
		display := hour
		if hour >= 12 {
			meridiem = "PM"
			if hour > 12 {
				display = hour - 12
			}
		}
		out = append(out, domain.Listing{
			Time:    fmt.Sprintf("%d:00 %s", display, meridiem),
			Network: "NBC",
			Program: fmt.Sprintf("Program %d", i+1),
		})
	}
	return out
}

type fakeRecognizer struct {
	mu       sync.Mutex
	sessions []*fakeSession
	startErr error
	starts   int
}

func (f *fakeRecognizer) Start(_ context.Context, cfg domain.SessionConfig, handler ports.SessionHandler) (ports.RecognitionSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return nil, f.startErr
	}
	session := &fakeSession{id: fmt.Sprintf("session-%d", len(f.sessions)+1), cfg: cfg, handler: handler}
	f.sessions = append(f.sessions, session)
	return session, nil
}

func (f *fakeRecognizer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeRecognizer) last() *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

type fakeSession struct {
	id      string
	cfg     domain.SessionConfig
	handler ports.SessionHandler

	mu      sync.Mutex
	stopped bool
}

func (s *fakeSession) ID() string                   { return s.id }
func (s *fakeSession) Config() domain.SessionConfig { return s.cfg }

func (s *fakeSession) Stop() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.handler.OnEnd()
	return nil
}

func (s *fakeSession) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *fakeSession) interim(text string) {
	s.handler.OnUtterance(domain.Utterance{Text: text})
}

func (s *fakeSession) final(text string) {
	s.handler.OnUtterance(domain.Utterance{Text: text, IsFinal: true})
}

type fakeUtterance struct {
	text      string
	callbacks speech.Callbacks
}

type fakeSpeaker struct {
	mu          sync.Mutex
	enabled     bool
	utterances  []fakeUtterance
	cancels     int
	beforeSpeak func()
	err         error
}

func (f *fakeSpeaker) Speak(text string, callbacks speech.Callbacks) (string, error) {
	f.mu.Lock()
	if !f.enabled {
		f.mu.Unlock()
		return "", speech.ErrNotAllowed
	}
	if f.err != nil {
		err := f.err
		f.mu.Unlock()
		return "", err
	}
	hook := f.beforeSpeak
	f.utterances = append(f.utterances, fakeUtterance{text: text, callbacks: callbacks})
	id := fmt.Sprintf("utt-%d", len(f.utterances))
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return id, nil
}

func (f *fakeSpeaker) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeSpeaker) Enable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := !f.enabled
	f.enabled = true
	return changed
}

func (f *fakeSpeaker) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *fakeSpeaker) SetBeforeSpeak(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beforeSpeak = fn
}

func (f *fakeSpeaker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.utterances)
}

func (f *fakeSpeaker) text(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.utterances[i].text
}

func (f *fakeSpeaker) complete(i int) {
	f.mu.Lock()
	cb := f.utterances[i].callbacks
	f.mu.Unlock()
	cb.OnDone()
}

func (f *fakeSpeaker) fail(i int, err error) {
	f.mu.Lock()
	cb := f.utterances[i].callbacks
	f.mu.Unlock()
	cb.OnError(err)
}

type fakeSource struct {
	mu        sync.Mutex
	responses map[int]domain.ScrapeResponse
	err       error
	calls     []int
}

func (f *fakeSource) Fetch(_ context.Context, dateIndex int) (domain.ScrapeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dateIndex)
	if f.err != nil {
		return domain.ScrapeResponse{}, f.err
	}
	return f.responses[dateIndex], nil
}

type phaseEvent struct {
	phase  domain.Phase
	reason domain.PhaseReason
}

type transcriptEvent struct {
	text  string
	final bool
}

type voiceErrorEvent struct {
	code   domain.ErrorCode
	detail string
}

type recordingSink struct {
	mu          sync.Mutex
	phases      []phaseEvent
	panel       []bool
	wake        []bool
	transcripts []transcriptEvent
	feedback    []domain.Feedback
	errors      []voiceErrorEvent
	filters     []domain.Filters
	rendered    [][]domain.Listing
	dates       []string
}

func (s *recordingSink) PhaseChanged(phase domain.Phase, reason domain.PhaseReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases = append(s.phases, phaseEvent{phase: phase, reason: reason})
}

func (s *recordingSink) PanelVisibility(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panel = append(s.panel, open)
}

func (s *recordingSink) WakeStatus(listening bool, _ bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wake = append(s.wake, listening)
}

func (s *recordingSink) Transcript(text string, final bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts = append(s.transcripts, transcriptEvent{text: text, final: final})
}

func (s *recordingSink) Feedback(feedback domain.Feedback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, feedback)
}

func (s *recordingSink) DatesChanged(dates []string, _ int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dates = dates
}

func (s *recordingSink) CurrentDate(string) {}

func (s *recordingSink) FiltersChanged(filters domain.Filters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, filters)
}

func (s *recordingSink) RenderListings(listings []domain.Listing, _ int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rendered = append(s.rendered, listings)
}

func (s *recordingSink) Stats(domain.Stats) {}

func (s *recordingSink) VoiceError(code domain.ErrorCode, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, voiceErrorEvent{code: code, detail: detail})
}

func (s *recordingSink) lastFeedback() domain.Feedback {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.feedback) == 0 {
		return domain.Feedback{}
	}
	return s.feedback[len(s.feedback)-1]
}

func (s *recordingSink) errorCodes() []domain.ErrorCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make([]domain.ErrorCode, 0, len(s.errors))
	for _, e := range s.errors {
		codes = append(codes, e.code)
	}
	return codes
}

func (s *recordingSink) lastPanel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.panel) > 0 && s.panel[len(s.panel)-1]
}

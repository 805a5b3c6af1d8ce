package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"tvvoice/internal/domain"
)

// consoleSink prints display updates as plain lines.
type consoleSink struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsoleSink(out io.Writer) *consoleSink {
	return &consoleSink{out: out}
}

func (s *consoleSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *consoleSink) PhaseChanged(phase domain.Phase, reason domain.PhaseReason) {
	s.printf("[%s] %s", phase, reason)
}

func (s *consoleSink) PanelVisibility(open bool) {
	if open {
		s.printf("voice control open")
		return
	}
	s.printf("voice control closed")
}

func (s *consoleSink) WakeStatus(listening bool, failed bool) {
	switch {
	case failed:
		s.printf("wake listener failed")
	case listening:
		s.printf("listening for wake phrase")
	}
}

func (s *consoleSink) Transcript(text string, final bool) {
	if !final {
		return
	}
	s.printf("heard: %s", text)
}

func (s *consoleSink) Feedback(feedback domain.Feedback) {
	s.printf("%s: %s", feedback.Kind, feedback.Message)
}

func (s *consoleSink) DatesChanged(dates []string, selected int) {
	s.printf("dates: %s (selected %d)", strings.Join(dates, " | "), selected)
}

func (s *consoleSink) CurrentDate(label string) {
	s.printf("showing %s", label)
}

func (s *consoleSink) FiltersChanged(filters domain.Filters) {
	s.printf("filters: network=%q time=%q type=%q", filters.Network, filters.Time, filters.Type)
}

func (s *consoleSink) RenderListings(listings []domain.Listing, total int) {
	s.printf("%d of %d listings", len(listings), total)
}

func (s *consoleSink) Stats(domain.Stats) {}

func (s *consoleSink) VoiceError(code domain.ErrorCode, detail string) {
	if detail == "" {
		s.printf("error: %s", code)
		return
	}
	s.printf("error: %s: %s", code, detail)
}

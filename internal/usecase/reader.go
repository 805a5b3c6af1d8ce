package usecase

import (
	"fmt"
	"strings"

	"tvvoice/internal/domain"
)

// readCursor remembers the last set read aloud and how far into it we got.
type readCursor struct {
	set   []domain.Listing
	index int
}

func (r *readCursor) reset() {
	r.set = nil
	r.index = 0
}

// clearReading forgets the cursor and any batch still being spoken.
func (c *Controller) clearReading() {
	c.reader.reset()
	c.pendingRead = nil
}

// read speaks listings for a scope. Reading all of them from a voice command
// is a complete flow and drops back to Idle when done.
func (c *Controller) read(scope domain.ReadScope, from origin) {
	batch := c.cfg.ReadBatch
	endToEnd := false
	switch scope.Kind {
	case domain.ReadAll:
		batch = 0
		endToEnd = from != originUI
	case domain.ReadRemaining:
		batch = 0
	}
	c.readBatch(scope, batch, endToEnd)
}

// readBatch speaks up to batch listings of scope; batch 0 means all of them.
func (c *Controller) readBatch(scope domain.ReadScope, batch int, endToEnd bool) {
	if c.store.Len() == 0 {
		c.feedback(domain.FeedbackError, `No listings loaded yet. Try "Show me Friday July 11" first.`)
		c.sink.VoiceError(domain.ErrorCodeNoData, "no listings loaded")
		return
	}

	view := c.store.View()
	date := c.store.CurrentDate()

	var (
		set   []domain.Listing
		start int
		title string
	)
	switch scope.Kind {
	case domain.ReadTimePeriod:
		set = selectListings(view, scope.Period.Contains)
		title = fmt.Sprintf("%s listings for %s", capitalize(scope.Period.Label()), date)
	case domain.ReadTimeRange:
		set = selectListings(view, scope.Range.Contains)
		title = fmt.Sprintf("Listings from %s for %s", scope.Range, date)
	case domain.ReadContinue, domain.ReadRemaining:
		cursor := c.reader
		if c.pendingRead != nil {
			cursor = *c.pendingRead
		}
		set, start = cursor.set, cursor.index
		if set == nil {
			set, start = view, 0
		}
		title = fmt.Sprintf("Continuing with listing %d of %d", start+1, len(set))
	default:
		set = view
		title = "TV Listings for " + date
	}

	if len(set) == 0 {
		c.clearReading()
		message := "No listings found for that time."
		c.feedback(domain.FeedbackInfo, message)
		c.speak(message, false)
		return
	}
	if start >= len(set) {
		message := "No more listings to read."
		c.feedback(domain.FeedbackInfo, message)
		c.speak(message, false)
		return
	}

	end := len(set)
	if batch > 0 && start+batch < end {
		end = start + batch
	}

	text := composeReading(title, set, start, end)
	c.logger.Debug().
		Str("scope", string(scope.Kind)).
		Int("from", start).
		Int("to", end).
		Int("of", len(set)).
		Msg("reading listings")
	// The cursor only moves once the batch has been spoken to the end.
	if c.speak(text, endToEnd) {
		c.pendingRead = &readCursor{set: set, index: end}
	}
}

// composeReading renders listings[start:end] as one utterance. A fresh read
// announces the count; a continuation does not.
func composeReading(title string, set []domain.Listing, start int, end int) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString(". ")
	if start == 0 {
		fmt.Fprintf(&b, "Showing %d listings. ", len(set))
	}
	for _, listing := range set[start:end] {
		fmt.Fprintf(&b, "At %s, on %s, %s. ", listing.Time, listing.Network, listing.Program)
	}
	if remaining := len(set) - end; remaining > 0 {
		fmt.Fprintf(&b, "And %d more listings. Say read more to continue.", remaining)
	}
	return strings.TrimSpace(b.String())
}

func selectListings(listings []domain.Listing, keep func(hour int) bool) []domain.Listing {
	var out []domain.Listing
	for _, listing := range listings {
		hour := listing.Hour()
		if hour >= 0 && keep(hour) {
			out = append(out, listing)
		}
	}
	return out
}

func capitalize(text string) string {
	if text == "" {
		return text
	}
	return strings.ToUpper(text[:1]) + text[1:]
}

package usecase

import (
	"errors"
	"fmt"

	"tvvoice/internal/domain"
	"tvvoice/internal/listings"
	"tvvoice/internal/metrics"
)

func (c *Controller) dispatch(intent domain.Intent, from origin) {
	metrics.IntentsTotal.WithLabelValues(string(intent.Kind), string(from)).Inc()

	switch intent.Kind {
	case domain.IntentDeactivate:
		c.deactivate(domain.PhaseReasonDeactivated)
	case domain.IntentSelectDate:
		c.selectDate(intent, from != originUI)
	case domain.IntentFilterNetwork:
		c.filterNetwork(intent.Network)
	case domain.IntentFilterType:
		c.filterType(intent.ProgramType)
	case domain.IntentClearFilters:
		c.clearFilters()
	case domain.IntentReadListings:
		c.read(intent.Scope, from)
	case domain.IntentReset:
		c.reset()
	default:
		c.feedback(domain.FeedbackError, intent.Hint)
		c.sink.VoiceError(domain.ErrorCodeUnrecognized, intent.Hint)
	}
}

// selectDate moves the date selector and fetches that day. Voice requests
// read the result aloud when it arrives.
func (c *Controller) selectDate(intent domain.Intent, voice bool) {
	dates := c.store.Dates()
	index := intent.DateIndex
	if index < 0 || (len(dates) > 0 && index >= len(dates)) {
		c.feedback(domain.FeedbackError, fmt.Sprintf("Date %d is not available", index+1))
		return
	}
	label := intent.DateLabel
	if label == "" && index < len(dates) {
		label = dates[index]
	}

	c.store.SelectDate(index)
	c.feedback(domain.FeedbackSuccess, fmt.Sprintf("Getting listings for %s...", label))

	c.fetchSeq++
	c.autoRead = voice
	c.fetch(c.fetchSeq, index)
}

func (c *Controller) fetch(seq uint64, index int) {
	ctx := c.runCtx
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		resp, err := c.source.Fetch(ctx, index)
		if err != nil {
			c.Post(FetchFailed{Seq: seq, DateIndex: index, Err: err})
			return
		}
		c.Post(FetchCompleted{Seq: seq, DateIndex: index, Response: resp})
	}()
}

func (c *Controller) onFetchCompleted(ev FetchCompleted) {
	if ev.Seq != c.fetchSeq {
		c.stale("fetch_completed", fmt.Sprint(ev.Seq))
		return
	}
	autoRead := c.autoRead
	c.autoRead = false

	c.store.Load(ev.DateIndex, ev.Response)
	c.clearReading()

	date := c.store.CurrentDate()
	c.alert(domain.FeedbackSuccess, fmt.Sprintf("Successfully retrieved %d listings for %s!", len(ev.Response.Listings), date))

	if autoRead {
		c.readBatch(domain.ReadScope{Kind: domain.ReadDefault}, c.cfg.AutoReadBatch, true)
	}
}

func (c *Controller) onFetchFailed(ev FetchFailed) {
	if ev.Seq != c.fetchSeq {
		c.stale("fetch_failed", fmt.Sprint(ev.Seq))
		return
	}
	c.autoRead = false

	message := "Network error. Please check your connection."
	var fetchErr *listings.FetchError
	if errors.As(ev.Err, &fetchErr) {
		message = fetchErr.UserMessage()
	}
	c.logger.Warn().Err(ev.Err).Int("date", ev.DateIndex).Msg("listings fetch failed")
	c.alert(domain.FeedbackError, message)
	c.sink.VoiceError(domain.ErrorCodeFetch, errorDetail(ev.Err))
}

func (c *Controller) onDatesLoaded(ev DatesLoaded) {
	if ev.Err != nil {
		c.logger.Warn().Err(ev.Err).Msg("could not load available dates")
		return
	}
	c.store.SetDates(ev.Dates, ev.CurrentDate)
}

func (c *Controller) filterNetwork(network string) {
	filters := c.store.Filters()
	filters.Network = network
	c.applyFilters(filters)
	c.feedback(domain.FeedbackSuccess, fmt.Sprintf("Showing %s programs", network))
}

func (c *Controller) filterType(programType domain.ProgramType) {
	filters := c.store.Filters()
	filters.Type = programType
	message := "Showing all programs"
	switch programType {
	case domain.ProgramTypeMovies:
		message = "Showing movies only"
	case domain.ProgramTypeSeries:
		message = "Showing series only"
	default:
		filters.Network = ""
	}
	c.applyFilters(filters)
	c.feedback(domain.FeedbackSuccess, message)
}

func (c *Controller) clearFilters() {
	c.applyFilters(domain.Filters{})
	c.feedback(domain.FeedbackSuccess, "Filters cleared")
}

func (c *Controller) applyFilters(filters domain.Filters) {
	c.store.SetFilters(filters)
	c.store.ApplyFilters()
	c.clearReading()
}

// reset stops speech and returns filters and the read cursor to their
// initial state. The dialogue phase is kept apart from leaving Speaking.
func (c *Controller) reset() {
	c.applyFilters(domain.Filters{})
	c.interruptSpeech(domain.PhaseReasonReset)
	c.feedback(domain.FeedbackInfo, "Voice assistant reset")
}

// toggleReading is the read button: stop if speaking, otherwise read.
func (c *Controller) toggleReading() {
	if c.phase == domain.PhaseSpeaking {
		c.interruptSpeech(domain.PhaseReasonSpeechFinished)
		return
	}
	c.read(domain.ReadScope{Kind: domain.ReadDefault}, originUI)
}

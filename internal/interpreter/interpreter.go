// Package interpreter maps recognized transcripts to listing intents with an
// ordered keyword table. The first matching rule wins; there is no scoring.
package interpreter

import (
	"strings"

	"tvvoice/internal/domain"
)

const (
	ShowMeHint  = `Try "Show me Friday July 11" or "Show me NBC"`
	GeneralHint = `Try saying "Show me Friday July 11" or "Show me NBC"`
)

// Normalizer rewrites a lowercased transcript, typically a rules.Engine.
type Normalizer interface {
	Apply(text string) (string, error)
}

// Context carries the externally owned state some rules consult.
type Context struct {
	Dates    []string
	Networks []string
}

type rule struct {
	name  string
	match func(command string, ctx Context) (domain.Intent, bool)
}

// Interpreter resolves transcripts to intents.
type Interpreter struct {
	vocab      Vocabulary
	normalizer Normalizer
	rules      []rule
}

// New builds an interpreter. normalizer may be nil.
func New(vocab Vocabulary, normalizer Normalizer) *Interpreter {
	in := &Interpreter{vocab: vocab, normalizer: normalizer}
	in.rules = []rule{
		{name: "deactivate", match: in.matchDeactivate},
		{name: "show_me", match: in.matchShowMe},
		{name: "clear_filters", match: matchClearFilters},
		{name: "read_all", match: matchReadAll},
		{name: "read_default", match: matchReadDefault},
		{name: "read_period", match: matchReadPeriod},
		{name: "read_range", match: matchReadRange},
		{name: "read_continue", match: matchReadContinue},
		{name: "read_remaining", match: matchReadRemaining},
		{name: "reset", match: matchReset},
	}
	return in
}

// Vocabulary returns the phrase sets in use.
func (in *Interpreter) Vocabulary() Vocabulary {
	return in.vocab
}

// Normalize lowercases, trims, collapses whitespace and applies substitution rules.
func (in *Interpreter) Normalize(transcript string) string {
	command := strings.Join(strings.Fields(strings.ToLower(transcript)), " ")
	if in.normalizer == nil || command == "" {
		return command
	}
	rewritten, err := in.normalizer.Apply(command)
	if err != nil {
		return command
	}
	return strings.Join(strings.Fields(strings.ToLower(rewritten)), " ")
}

// Interpret normalizes transcript and resolves it.
func (in *Interpreter) Interpret(transcript string, ctx Context) domain.Intent {
	return in.Resolve(in.Normalize(transcript), ctx)
}

// Resolve runs the rule table over an already normalized command.
func (in *Interpreter) Resolve(command string, ctx Context) domain.Intent {
	intent, _ := in.resolve(command, ctx)
	return intent
}

// Explain is Resolve that also names the rule that matched, or "" when none did.
func (in *Interpreter) Explain(transcript string, ctx Context) (domain.Intent, string) {
	return in.resolve(in.Normalize(transcript), ctx)
}

func (in *Interpreter) resolve(command string, ctx Context) (domain.Intent, string) {
	for _, r := range in.rules {
		if intent, ok := r.match(command, ctx); ok {
			return intent, r.name
		}
	}
	return domain.Intent{Kind: domain.IntentUnrecognized, Hint: GeneralHint}, ""
}

// MatchWakePhrase reports the wake phrase contained in a normalized command.
func (in *Interpreter) MatchWakePhrase(command string) (string, bool) {
	for _, phrase := range in.vocab.WakePhrases {
		if strings.Contains(command, phrase) {
			return phrase, true
		}
	}
	return "", false
}

// IsShortcut reports whether an intent may run straight from wake-word
// listening without opening the command panel.
func IsShortcut(intent domain.Intent) bool {
	switch intent.Kind {
	case domain.IntentReset:
		return true
	case domain.IntentReadListings:
		switch intent.Scope.Kind {
		case domain.ReadDefault, domain.ReadTimePeriod, domain.ReadContinue, domain.ReadRemaining:
			return true
		}
	}
	return false
}

func (in *Interpreter) matchDeactivate(command string, _ Context) (domain.Intent, bool) {
	if containsAny(command, in.vocab.ClosePhrases...) {
		return domain.Intent{Kind: domain.IntentDeactivate}, true
	}
	return domain.Intent{}, false
}

func (in *Interpreter) matchShowMe(command string, ctx Context) (domain.Intent, bool) {
	if !strings.Contains(command, "show me") {
		return domain.Intent{}, false
	}

	if index, ok := MatchDate(command, ctx.Dates); ok {
		return domain.Intent{Kind: domain.IntentSelectDate, DateIndex: index, DateLabel: ctx.Dates[index]}, true
	}

	for _, network := range mergeNetworks(in.vocab.Networks, ctx.Networks) {
		if strings.Contains(command, strings.ToLower(network)) {
			return domain.Intent{Kind: domain.IntentFilterNetwork, Network: network}, true
		}
	}

	switch {
	case strings.Contains(command, "movie"):
		return domain.Intent{Kind: domain.IntentFilterType, ProgramType: domain.ProgramTypeMovies}, true
	case containsAny(command, "series", "shows"):
		return domain.Intent{Kind: domain.IntentFilterType, ProgramType: domain.ProgramTypeSeries}, true
	case containsAny(command, "all programs", "everything"):
		return domain.Intent{Kind: domain.IntentFilterType, ProgramType: domain.ProgramTypeAll}, true
	}

	return domain.Intent{Kind: domain.IntentUnrecognized, Hint: ShowMeHint}, true
}

func matchClearFilters(command string, _ Context) (domain.Intent, bool) {
	if containsAny(command, "clear filter", "clear all filter", "clear the filter", "remove filter", "reset filter", "no filter") {
		return domain.Intent{Kind: domain.IntentClearFilters}, true
	}
	return domain.Intent{}, false
}

func hasReadCue(command string) bool {
	return containsAny(command, "read", "tell me")
}

func matchReadAll(command string, _ Context) (domain.Intent, bool) {
	if containsAny(command, "read all", "read everything", "tell me everything") {
		return domain.Read(domain.ReadScope{Kind: domain.ReadAll}), true
	}
	return domain.Intent{}, false
}

func matchReadDefault(command string, _ Context) (domain.Intent, bool) {
	if containsAny(command,
		"read listing", "read the listing", "read tv", "read them", "read again", "read it",
		"read schedule", "read the schedule", "read that",
	) {
		return domain.Read(domain.ReadScope{Kind: domain.ReadDefault}), true
	}
	return domain.Intent{}, false
}

var periodKeywords = []struct {
	phrase string
	period domain.TimePeriod
}{
	{"morning", domain.PeriodMorning},
	{"afternoon", domain.PeriodAfternoon},
	{"prime time", domain.PeriodPrime},
	{"primetime", domain.PeriodPrime},
	{"prime", domain.PeriodPrime},
	{"late night", domain.PeriodLate},
	{"tonight late", domain.PeriodLate},
	{"late", domain.PeriodLate},
}

func matchReadPeriod(command string, _ Context) (domain.Intent, bool) {
	if !hasReadCue(command) {
		return domain.Intent{}, false
	}
	for _, keyword := range periodKeywords {
		if strings.Contains(command, keyword.phrase) {
			return domain.Read(domain.ReadScope{Kind: domain.ReadTimePeriod, Period: keyword.period}), true
		}
	}
	return domain.Intent{}, false
}

func matchReadRange(command string, _ Context) (domain.Intent, bool) {
	if !hasReadCue(command) {
		return domain.Intent{}, false
	}
	if r, ok := ParseTimeRange(command); ok {
		return domain.Read(domain.ReadScope{Kind: domain.ReadTimeRange, Range: r}), true
	}
	return domain.Intent{}, false
}

func matchReadContinue(command string, _ Context) (domain.Intent, bool) {
	if containsAny(command, "read next", "read more", "continue", "keep reading", "next listings") {
		return domain.Read(domain.ReadScope{Kind: domain.ReadContinue}), true
	}
	return domain.Intent{}, false
}

func matchReadRemaining(command string, _ Context) (domain.Intent, bool) {
	if containsAny(command, "read remaining", "read the remaining", "read the rest", "read rest", "rest of them") {
		return domain.Read(domain.ReadScope{Kind: domain.ReadRemaining}), true
	}
	return domain.Intent{}, false
}

func matchReset(command string, _ Context) (domain.Intent, bool) {
	if containsAny(command, "reset", "start over", "start again") {
		return domain.Intent{Kind: domain.IntentReset}, true
	}
	return domain.Intent{}, false
}

func containsAny(command string, phrases ...string) bool {
	for _, phrase := range phrases {
		if phrase != "" && strings.Contains(command, phrase) {
			return true
		}
	}
	return false
}

func mergeNetworks(known []string, fetched []string) []string {
	if len(fetched) == 0 {
		return known
	}
	seen := make(map[string]struct{}, len(known)+len(fetched))
	merged := make([]string, 0, len(known)+len(fetched))
	for _, list := range [][]string{known, fetched} {
		for _, network := range list {
			key := strings.ToLower(strings.TrimSpace(network))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, network)
		}
	}
	return merged
}

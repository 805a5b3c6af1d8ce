package interpreter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"tvvoice/internal/domain"
)

var knownDates = []string{"Friday, July 11", "Saturday, July 12", "Sunday, July 13"}

func newTestInterpreter() *Interpreter {
	return New(DefaultVocabulary(), nil)
}

func TestInterpretRuleTable(t *testing.T) {
	t.Parallel()

	in := newTestInterpreter()
	ctx := Context{Dates: knownDates, Networks: []string{"AMC"}}

	cases := []struct {
		name       string
		transcript string
		want       domain.Intent
	}{
		{"close voice", "Close voice control please", domain.Intent{Kind: domain.IntentDeactivate}},
		{"stop listening", "ok stop listening", domain.Intent{Kind: domain.IntentDeactivate}},
		{"select date", "show me friday july 11", domain.Intent{Kind: domain.IntentSelectDate, DateIndex: 0, DateLabel: "Friday, July 11"}},
		{"select date any order", "show me the 12th of july on saturday", domain.Intent{Kind: domain.IntentSelectDate, DateIndex: 1, DateLabel: "Saturday, July 12"}},
		{"network", "Show me NBC", domain.Intent{Kind: domain.IntentFilterNetwork, Network: "NBC"}},
		{"fetched network", "show me amc", domain.Intent{Kind: domain.IntentFilterNetwork, Network: "AMC"}},
		{"movies", "show me movies", domain.Intent{Kind: domain.IntentFilterType, ProgramType: domain.ProgramTypeMovies}},
		{"series", "show me series", domain.Intent{Kind: domain.IntentFilterType, ProgramType: domain.ProgramTypeSeries}},
		{"everything", "show me everything", domain.Intent{Kind: domain.IntentFilterType, ProgramType: domain.ProgramTypeAll}},
		{"show me unknown", "show me the weather", domain.Intent{Kind: domain.IntentUnrecognized, Hint: ShowMeHint}},
		{"clear filters", "clear filters", domain.Intent{Kind: domain.IntentClearFilters}},
		{"reset filters is clear", "reset filters", domain.Intent{Kind: domain.IntentClearFilters}},
		{"read all", "read all listings", domain.Read(domain.ReadScope{Kind: domain.ReadAll})},
		{"read default", "read listings", domain.Read(domain.ReadScope{Kind: domain.ReadDefault})},
		{"read again", "read again", domain.Read(domain.ReadScope{Kind: domain.ReadDefault})},
		{"read morning", "read morning listings", domain.Read(domain.ReadScope{Kind: domain.ReadTimePeriod, Period: domain.PeriodMorning})},
		{"read prime time", "read prime time", domain.Read(domain.ReadScope{Kind: domain.ReadTimePeriod, Period: domain.PeriodPrime})},
		{"tell me late night", "tell me what's on late night", domain.Read(domain.ReadScope{Kind: domain.ReadTimePeriod, Period: domain.PeriodLate})},
		{"read range", "read from 8 pm to 10 pm", domain.Read(domain.ReadScope{Kind: domain.ReadTimeRange, Range: domain.TimeRange{StartHour: 20, EndHour: 22}})},
		{"read range wraps", "read 11:30 pm until 2 am", domain.Read(domain.ReadScope{Kind: domain.ReadTimeRange, Range: domain.TimeRange{StartHour: 23, EndHour: 2}})},
		{"read more", "read more", domain.Read(domain.ReadScope{Kind: domain.ReadContinue})},
		{"continue", "continue", domain.Read(domain.ReadScope{Kind: domain.ReadContinue})},
		{"read the rest", "read the rest", domain.Read(domain.ReadScope{Kind: domain.ReadRemaining})},
		{"reset", "start over", domain.Intent{Kind: domain.IntentReset}},
		{"unrecognized", "what is the meaning of life", domain.Intent{Kind: domain.IntentUnrecognized, Hint: GeneralHint}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := in.Interpret(tc.transcript, ctx)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("Interpret(%q) mismatch (-want +got):\n%s", tc.transcript, diff)
			}
		})
	}
}

func TestInterpretCloseWinsRegardlessOfOtherContent(t *testing.T) {
	t.Parallel()

	in := newTestInterpreter()
	ctx := Context{Dates: knownDates}
	for _, phrase := range DefaultVocabulary().ClosePhrases {
		for _, noise := range []string{"show me nbc and ", "read all listings then ", "reset and ", ""} {
			got := in.Interpret(noise+phrase+" now", ctx)
			require.Equal(t, domain.IntentDeactivate, got.Kind, "transcript %q", noise+phrase)
		}
	}
}

func TestInterpretDateByWeekdayAndDay(t *testing.T) {
	t.Parallel()

	in := newTestInterpreter()
	ctx := Context{Dates: knownDates}
	cases := map[string]int{
		"show me 11 friday":     0,
		"show me saturday 12":   1,
		"show me sunday the 13": 2,
	}
	for transcript, want := range cases {
		got := in.Interpret(transcript, ctx)
		require.Equal(t, domain.IntentSelectDate, got.Kind, transcript)
		require.Equal(t, want, got.DateIndex, transcript)
	}
}

func TestInterpretFirstMatchingDateWins(t *testing.T) {
	t.Parallel()

	in := newTestInterpreter()
	got := in.Interpret("show me july 11", Context{Dates: []string{"Friday, July 11", "Friday, July 11"}})
	require.Equal(t, 0, got.DateIndex)
}

func TestInterpretNormalizesThroughRules(t *testing.T) {
	t.Parallel()

	in := New(DefaultVocabulary(), upperRules{})
	got := in.Interpret("  SHOW   me   n b c ", Context{})
	require.Equal(t, domain.Intent{Kind: domain.IntentFilterNetwork, Network: "NBC"}, got)
}

func TestExplainNamesMatchingRule(t *testing.T) {
	t.Parallel()

	in := newTestInterpreter()
	_, name := in.Explain("read morning listings", Context{})
	require.Equal(t, "read_period", name)

	_, name = in.Explain("sing a song", Context{})
	require.Empty(t, name)
}

func TestMatchWakePhrase(t *testing.T) {
	t.Parallel()

	in := newTestInterpreter()
	phrase, ok := in.MatchWakePhrase("okay hey tv")
	require.True(t, ok)
	require.Equal(t, "hey tv", phrase)

	_, ok = in.MatchWakePhrase("hey there")
	require.False(t, ok)
}

func TestIsShortcut(t *testing.T) {
	t.Parallel()

	require.True(t, IsShortcut(domain.Read(domain.ReadScope{Kind: domain.ReadDefault})))
	require.True(t, IsShortcut(domain.Read(domain.ReadScope{Kind: domain.ReadTimePeriod, Period: domain.PeriodPrime})))
	require.True(t, IsShortcut(domain.Read(domain.ReadScope{Kind: domain.ReadContinue})))
	require.True(t, IsShortcut(domain.Read(domain.ReadScope{Kind: domain.ReadRemaining})))
	require.True(t, IsShortcut(domain.Intent{Kind: domain.IntentReset}))
	require.False(t, IsShortcut(domain.Read(domain.ReadScope{Kind: domain.ReadAll})))
	require.False(t, IsShortcut(domain.Intent{Kind: domain.IntentFilterNetwork, Network: "NBC"}))
	require.False(t, IsShortcut(domain.Intent{Kind: domain.IntentDeactivate}))
}

func TestLoadVocabularyOverlay(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vocabulary.yaml")
	contents := "wake_phrases:\n  - Hey Remote\nnetworks:\n  - PBS\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	vocab, err := LoadVocabulary(path)
	require.NoError(t, err)
	require.Equal(t, []string{"hey remote"}, vocab.WakePhrases)
	require.Equal(t, []string{"PBS"}, vocab.Networks)
	require.Equal(t, DefaultVocabulary().ClosePhrases, vocab.ClosePhrases)
}

func TestLoadVocabularyMissingAndInvalid(t *testing.T) {
	t.Parallel()

	vocab, err := LoadVocabulary(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultVocabulary(), vocab)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wake_phrases: [unterminated"), 0o600))
	_, err = LoadVocabulary(path)
	require.Error(t, err)
}

type upperRules struct{}

func (upperRules) Apply(text string) (string, error) {
	if text == "show me n b c" {
		return "SHOW ME NBC", nil
	}
	return text, nil
}

package domain

import (
	"fmt"
)

// IntentKind tags the action derived from one utterance.
type IntentKind string

const (
	IntentDeactivate    IntentKind = "deactivate"
	IntentSelectDate    IntentKind = "select_date"
	IntentFilterNetwork IntentKind = "filter_network"
	IntentFilterType    IntentKind = "filter_type"
	IntentClearFilters  IntentKind = "clear_filters"
	IntentReadListings  IntentKind = "read_listings"
	IntentReset         IntentKind = "reset"
	IntentUnrecognized  IntentKind = "unrecognized"
)

// ProgramType is the type filter selector value.
type ProgramType string

const (
	ProgramTypeAll    ProgramType = ""
	ProgramTypeMovies ProgramType = "movies"
	ProgramTypeSeries ProgramType = "series"
)

// TimePeriod is a named block of the broadcast day.
type TimePeriod string

const (
	PeriodMorning   TimePeriod = "morning"
	PeriodAfternoon TimePeriod = "afternoon"
	PeriodPrime     TimePeriod = "prime"
	PeriodLate      TimePeriod = "late"
)

// Contains reports whether a 24h hour falls inside the period.
func (p TimePeriod) Contains(hour int) bool {
	switch p {
	case PeriodMorning:
		return hour >= 6 && hour < 12
	case PeriodAfternoon:
		return hour >= 12 && hour < 18
	case PeriodPrime:
		return hour >= 18 && hour < 23
	case PeriodLate:
		return hour >= 23 || hour < 6
	default:
		return true
	}
}

// Label is the spoken name of the period.
func (p TimePeriod) Label() string {
	switch p {
	case PeriodPrime:
		return "prime time"
	case PeriodLate:
		return "late night"
	default:
		return string(p)
	}
}

// TimeRange is an hour window; End < Start wraps past midnight.
type TimeRange struct {
	StartHour int `json:"startHour"`
	EndHour   int `json:"endHour"`
}

// Contains reports whether a 24h hour falls inside the range.
func (r TimeRange) Contains(hour int) bool {
	if r.EndHour < r.StartHour {
		return hour >= r.StartHour || hour < r.EndHour
	}
	return hour >= r.StartHour && hour < r.EndHour
}

func (r TimeRange) String() string {
	return formatHour(r.StartHour) + " to " + formatHour(r.EndHour)
}

func formatHour(hour int) string {
	meridiem := "AM"
	if hour >= 12 {
		meridiem = "PM"
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%d:00 %s", display, meridiem)
}

// ReadScopeKind selects which slice of the listings gets read aloud.
type ReadScopeKind string

const (
	ReadDefault    ReadScopeKind = "default"
	ReadAll        ReadScopeKind = "all"
	ReadTimePeriod ReadScopeKind = "time_period"
	ReadTimeRange  ReadScopeKind = "time_range"
	ReadContinue   ReadScopeKind = "continue"
	ReadRemaining  ReadScopeKind = "remaining"
)

// ReadScope qualifies a ReadListings intent.
type ReadScope struct {
	Kind   ReadScopeKind `json:"kind"`
	Period TimePeriod    `json:"period,omitempty"`
	Range  TimeRange     `json:"range,omitempty"`
}

// Intent is the tagged action produced by the interpreter. Only the fields
// relevant to Kind are populated.
type Intent struct {
	Kind IntentKind `json:"kind"`

	DateIndex int    `json:"dateIndex,omitempty"`
	DateLabel string `json:"dateLabel,omitempty"`

	Network     string      `json:"network,omitempty"`
	ProgramType ProgramType `json:"programType,omitempty"`

	Scope ReadScope `json:"scope,omitempty"`

	Hint string `json:"hint,omitempty"`
}

func (i Intent) String() string {
	switch i.Kind {
	case IntentSelectDate:
		return fmt.Sprintf("%s(%d %q)", i.Kind, i.DateIndex, i.DateLabel)
	case IntentFilterNetwork:
		return fmt.Sprintf("%s(%s)", i.Kind, i.Network)
	case IntentFilterType:
		typ := string(i.ProgramType)
		if typ == "" {
			typ = "all"
		}
		return fmt.Sprintf("%s(%s)", i.Kind, typ)
	case IntentReadListings:
		switch i.Scope.Kind {
		case ReadTimePeriod:
			return fmt.Sprintf("%s(%s:%s)", i.Kind, i.Scope.Kind, i.Scope.Period)
		case ReadTimeRange:
			return fmt.Sprintf("%s(%s:%s)", i.Kind, i.Scope.Kind, i.Scope.Range)
		default:
			return fmt.Sprintf("%s(%s)", i.Kind, i.Scope.Kind)
		}
	default:
		return string(i.Kind)
	}
}

// Read builds a ReadListings intent.
func Read(scope ReadScope) Intent {
	return Intent{Kind: IntentReadListings, Scope: scope}
}

package domain

import (
	"strconv"
	"strings"
)

// Listing is one scheduled program as served by the listings collaborator.
type Listing struct {
	Time    string `json:"time"`
	Network string `json:"network"`
	Program string `json:"program"`
	IsMovie bool   `json:"is_movie"`
}

// Hour returns the 24h start hour parsed from Time ("8:30 PM"), or -1.
func (l Listing) Hour() int {
	text := strings.ToUpper(strings.TrimSpace(l.Time))
	if text == "" {
		return -1
	}
	head := text
	if idx := strings.IndexAny(head, ": "); idx >= 0 {
		head = head[:idx]
	}
	hour, err := strconv.Atoi(head)
	if err != nil || hour < 0 || hour > 23 {
		return -1
	}
	isPM := strings.Contains(text, "PM")
	isAM := strings.Contains(text, "AM")
	switch {
	case isPM && hour != 12:
		hour += 12
	case isAM && hour == 12:
		hour = 0
	}
	return hour
}

// ScrapeResponse is the JSON contract of GET /scrape?date=<index>.
type ScrapeResponse struct {
	Success     bool      `json:"success"`
	Listings    []Listing `json:"listings"`
	Networks    []string  `json:"networks"`
	Dates       []string  `json:"dates"`
	CurrentDate string    `json:"current_date"`
	Total       int       `json:"total,omitempty"`
	Error       string    `json:"error,omitempty"`
	Message     string    `json:"message,omitempty"`
}

// Filters mirrors the network/time/type selectors of the display.
type Filters struct {
	Network string      `json:"network"`
	Time    TimePeriod  `json:"time"`
	Type    ProgramType `json:"type"`
}

// Stats summarizes the loaded listings.
type Stats struct {
	Total    int `json:"total"`
	Networks int `json:"networks"`
	Movies   int `json:"movies"`
}

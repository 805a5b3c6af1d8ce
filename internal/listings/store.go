package listings

import (
	"strings"
	"sync"

	"tvvoice/internal/domain"
	"tvvoice/internal/metrics"
	"tvvoice/internal/ports"
)

// Store holds the loaded listings, the date list and the filter selectors.
// Every mutation is mirrored to the display sink.
type Store struct {
	display ports.EventSink

	mu          sync.RWMutex
	all         []domain.Listing
	filtered    []domain.Listing
	networks    []string
	dates       []string
	selected    int
	currentDate string
	filters     domain.Filters
}

func NewStore(display ports.EventSink) *Store {
	return &Store{display: display}
}

// Load replaces the listing set with a successful scrape and re-renders.
func (s *Store) Load(dateIndex int, resp domain.ScrapeResponse) {
	s.mu.Lock()
	s.all = append([]domain.Listing(nil), resp.Listings...)
	s.networks = append([]string(nil), resp.Networks...)
	if len(resp.Dates) > 0 {
		s.dates = append([]string(nil), resp.Dates...)
	}
	if dateIndex >= 0 && dateIndex < len(s.dates) {
		s.selected = dateIndex
	}
	s.currentDate = resp.CurrentDate
	dates := append([]string(nil), s.dates...)
	selected := s.selected
	current := s.currentDate
	s.mu.Unlock()

	metrics.ListingsLoaded.Set(float64(len(resp.Listings)))

	s.display.DatesChanged(dates, selected)
	s.display.CurrentDate(current)
	s.ApplyFilters()
}

// SetDates replaces the date list, keeping the selection when it is still in range.
func (s *Store) SetDates(dates []string, current string) {
	s.mu.Lock()
	s.dates = append([]string(nil), dates...)
	if s.selected >= len(s.dates) {
		s.selected = 0
	}
	if current != "" && s.currentDate == "" {
		s.currentDate = current
	}
	snapshot := append([]string(nil), s.dates...)
	selected := s.selected
	s.mu.Unlock()

	s.display.DatesChanged(snapshot, selected)
}

// SelectDate moves the date selector without fetching.
func (s *Store) SelectDate(index int) bool {
	s.mu.Lock()
	if index < 0 || index >= len(s.dates) {
		s.mu.Unlock()
		return false
	}
	s.selected = index
	dates := append([]string(nil), s.dates...)
	s.mu.Unlock()

	s.display.DatesChanged(dates, index)
	return true
}

func (s *Store) Dates() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.dates...)
}

func (s *Store) Selected() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// CurrentDate is the label of the loaded listings, or the selected date label
// before anything has loaded.
func (s *Store) CurrentDate() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentDate != "" {
		return s.currentDate
	}
	if s.selected < len(s.dates) {
		return s.dates[s.selected]
	}
	return ""
}

func (s *Store) Networks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.networks...)
}

func (s *Store) Filters() domain.Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// SetFilters writes the selectors. Call ApplyFilters to re-derive the view.
func (s *Store) SetFilters(filters domain.Filters) {
	s.mu.Lock()
	s.filters = filters
	s.mu.Unlock()
	s.display.FiltersChanged(filters)
}

// ApplyFilters re-derives the filtered view from the selectors and renders it.
func (s *Store) ApplyFilters() []domain.Listing {
	s.mu.Lock()
	s.filtered = Filter(s.all, s.filters)
	view := append([]domain.Listing(nil), s.filtered...)
	total := len(s.all)
	s.mu.Unlock()

	s.display.RenderListings(view, total)
	s.display.Stats(ComputeStats(view))
	return view
}

// All returns every loaded listing.
func (s *Store) All() []domain.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Listing(nil), s.all...)
}

// View is what gets read aloud: the filtered set, or everything when the
// filters match nothing.
func (s *Store) View() []domain.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.filtered) > 0 {
		return append([]domain.Listing(nil), s.filtered...)
	}
	return append([]domain.Listing(nil), s.all...)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.all)
}

func (s *Store) Stats() domain.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ComputeStats(s.filtered)
}

// Filter evaluates the selector predicates over listings.
func Filter(listings []domain.Listing, filters domain.Filters) []domain.Listing {
	out := make([]domain.Listing, 0, len(listings))
	for _, listing := range listings {
		if filters.Network != "" && !strings.EqualFold(listing.Network, filters.Network) {
			continue
		}
		if filters.Time != "" {
			hour := listing.Hour()
			if hour < 0 || !filters.Time.Contains(hour) {
				continue
			}
		}
		switch filters.Type {
		case domain.ProgramTypeMovies:
			if !listing.IsMovie {
				continue
			}
		case domain.ProgramTypeSeries:
			if listing.IsMovie {
				continue
			}
		}
		out = append(out, listing)
	}
	return out
}

func ComputeStats(listings []domain.Listing) domain.Stats {
	networks := make(map[string]struct{})
	stats := domain.Stats{Total: len(listings)}
	for _, listing := range listings {
		networks[strings.ToLower(listing.Network)] = struct{}{}
		if listing.IsMovie {
			stats.Movies++
		}
	}
	stats.Networks = len(networks)
	return stats
}

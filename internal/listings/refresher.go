package listings

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultRefreshSpec runs shortly after midnight, when the scrape source rolls
// its five-day window forward.
const DefaultRefreshSpec = "5 0 * * *"

// DatesFetcher bootstraps the list of available dates.
type DatesFetcher interface {
	Dates(ctx context.Context) ([]string, string, error)
}

// DatesResult is delivered after every refresh attempt.
type DatesResult struct {
	Dates       []string
	CurrentDate string
	Err         error
}

// Refresher re-reads the date list on a cron schedule.
type Refresher struct {
	cron    *cron.Cron
	fetcher DatesFetcher
	deliver func(DatesResult)
	timeout time.Duration
	logger  zerolog.Logger
}

func NewRefresher(fetcher DatesFetcher, spec string, deliver func(DatesResult), logger zerolog.Logger) (*Refresher, error) {
	if spec == "" {
		spec = DefaultRefreshSpec
	}
	r := &Refresher{
		cron:    cron.New(),
		fetcher: fetcher,
		deliver: deliver,
		timeout: 90 * time.Second,
		logger:  logger.With().Str("component", "refresher").Logger(),
	}
	if _, err := r.cron.AddFunc(spec, func() {
		r.RefreshNow(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return r, nil
}

// Run starts the schedule and blocks until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	r.cron.Start()
	r.logger.Debug().Msg("date refresh scheduled")
	<-ctx.Done()
	stopped := r.cron.Stop()
	<-stopped.Done()
	return nil
}

// RefreshNow fetches the date list once and delivers the result.
func (r *Refresher) RefreshNow(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	dates, current, err := r.fetcher.Dates(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("date refresh failed")
	} else {
		r.logger.Info().Int("dates", len(dates)).Msg("date list refreshed")
	}
	if r.deliver != nil {
		r.deliver(DatesResult{Dates: dates, CurrentDate: current, Err: err})
	}
}

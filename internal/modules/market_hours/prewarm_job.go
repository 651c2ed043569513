package market_hours

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// PrewarmJob materializes the current year and the following yearsAhead years
// for every market, so lookups on the request path hit the store
type PrewarmJob struct {
	service    *MarketHoursService
	yearsAhead int
	now        func() time.Time
	log        zerolog.Logger
}

// NewPrewarmJob creates the prewarm job
func NewPrewarmJob(service *MarketHoursService, yearsAhead int, log zerolog.Logger) *PrewarmJob {
	return &PrewarmJob{
		service:    service,
		yearsAhead: yearsAhead,
		now:        time.Now,
		log:        log.With().Str("job", "calendar_prewarm").Logger(),
	}
}

// Name returns the job name
func (j *PrewarmJob) Name() string {
	return "calendar_prewarm"
}

// Years lists the years the next run will cover
func (j *PrewarmJob) Years() []int {
	current := j.now().Year()
	years := make([]int, 0, j.yearsAhead+1)
	for y := current; y <= current+j.yearsAhead; y++ {
		years = append(years, y)
	}
	return years
}

// Run materializes the years. Missing announced dates only produce a warning;
// any other failure is returned.
func (j *PrewarmJob) Run(ctx context.Context) error {
	years := j.Years()
	start := time.Now()

	err := j.service.MaterializeAll(ctx, years...)
	if err != nil && !onlyDataUnavailable(err) {
		return err
	}

	j.log.Info().
		Ints("years", years).
		Int("markets", len(j.service.Codes())).
		Dur("duration", time.Since(start)).
		Msg("Calendars prewarmed")
	return nil
}

func onlyDataUnavailable(err error) bool {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return errors.Is(err, ErrDataUnavailable)
	}
	for _, e := range joined.Unwrap() {
		if !errors.Is(e, ErrDataUnavailable) {
			return false
		}
	}
	return true
}

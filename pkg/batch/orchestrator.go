package batch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Sternrassler/beu-results/pkg/cache"
	"github.com/Sternrassler/beu-results/pkg/client"
	"github.com/Sternrassler/beu-results/pkg/logging"
	"github.com/Sternrassler/beu-results/pkg/parser"
	"github.com/Sternrassler/beu-results/pkg/planner"
	"github.com/Sternrassler/beu-results/pkg/result"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrUnknownYear is returned when no portal page is configured for a year.
	ErrUnknownYear = errors.New("no results available for year")

	// ErrAllFailed is returned when every lookup of a batch failed.
	ErrAllFailed = errors.New("all lookups failed")

	// ErrShortRegNo is returned when an edge request carries a registration
	// number shorter than MinRegNoLength.
	ErrShortRegNo = errors.New("registration number too short")
)

// DefaultSemester is used when a request names no semester.
const DefaultSemester = "I"

// Fetcher retrieves one portal page. It is implemented by client.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, url string) client.Outcome
}

// ResultCache is an optional store for parsed results.
// It is implemented by cache.Layered.
type ResultCache interface {
	Lookup(ctx context.Context, key cache.Key) (*result.StudentResult, bool)
	Store(ctx context.Context, key cache.Key, res *result.StudentResult)
}

// Config holds orchestrator configuration.
type Config struct {
	// Years maps a batch year to the base URL of its result page.
	Years map[string]string
}

// DefaultYears returns the portal pages for the 2022 to 2026 batches.
func DefaultYears() map[string]string {
	years := make(map[string]string, 5)
	for y := 2022; y <= 2026; y++ {
		years[fmt.Sprint(y)] = fmt.Sprintf("http://results.beup.ac.in/ResultsBTech1stSem%d_B%dPub.aspx", y, y)
	}
	return years
}

// Request is a core mode lookup.
type Request struct {
	Year     string
	Semester string
	RegNo    string
}

// Orchestrator fetches and parses the sub-batch around a registration number.
type Orchestrator struct {
	fetcher Fetcher
	parser  *parser.Parser
	years   map[string]string
	cache   ResultCache
	logger  zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache enables the result cache.
func WithCache(c ResultCache) Option {
	return func(o *Orchestrator) {
		o.cache = c
	}
}

// New creates an orchestrator.
func New(fetcher Fetcher, p *parser.Parser, cfg Config, opts ...Option) *Orchestrator {
	if p == nil {
		p = parser.Default()
	}
	years := cfg.Years
	if len(years) == 0 {
		years = DefaultYears()
	}

	o := &Orchestrator{
		fetcher: fetcher,
		parser:  p,
		years:   years,
		logger:  log.With().Str("component", "orchestrator").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Years returns the supported batch years in ascending order.
func (o *Orchestrator) Years() []string {
	out := make([]string, 0, len(o.years))
	for y := range o.years {
		out = append(out, y)
	}
	sort.Strings(out)
	return out
}

// BaseURL returns the result page for year.
func (o *Orchestrator) BaseURL(year string) (string, error) {
	base, ok := o.years[strings.TrimSpace(year)]
	if !ok {
		return "", fmt.Errorf("%w %s", ErrUnknownYear, year)
	}
	return base, nil
}

// PortalURL builds the result page address for one registration number.
// The portal expects Sem before RegNo.
func PortalURL(base, semester, regNo string) string {
	return base + "?Sem=" + url.QueryEscape(semester) + "&RegNo=" + url.QueryEscape(regNo)
}

// Run looks up the five registration numbers starting at req.RegNo.
// The returned entries are valid even when err is ErrAllFailed.
func (o *Orchestrator) Run(ctx context.Context, req Request) ([]result.Entry, error) {
	if _, err := o.BaseURL(req.Year); err != nil {
		return nil, err
	}

	sub, err := planner.Core(req.RegNo)
	if err != nil {
		return nil, err
	}

	entries, err := o.RunSubBatch(ctx, req.Year, req.Semester, sub)
	observeRun("core", entries, err)
	return entries, err
}

// RunSubBatch fetches every number of b in order.
// A record is followed by a separator; a number the portal does not know is
// skipped; a failed fetch becomes an error entry.
func (o *Orchestrator) RunSubBatch(ctx context.Context, year, semester string, b planner.SubBatch) ([]result.Entry, error) {
	base, err := o.BaseURL(year)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(semester) == "" {
		semester = DefaultSemester
	}

	start := time.Now()
	numbers := b.Numbers()
	logger := logging.Enrich(ctx, o.logger).With().
		Str("year", year).
		Str("semester", semester).
		Str("first", b.First()).
		Logger()

	entries := make([]result.Entry, 0, 2*len(numbers))
	failed, found := 0, 0

	for _, regNo := range numbers {
		key := cache.Key{Year: year, Semester: semester, RegNo: regNo}
		if o.cache != nil {
			if res, ok := o.cache.Lookup(ctx, key); ok {
				entries = append(entries, result.Record(res), result.Separator())
				found++
				continue
			}
		}

		out := o.fetcher.Fetch(ctx, PortalURL(base, semester, regNo))
		switch out.Status {
		case client.StatusSuccess:
			res := o.parser.Parse(out.Body, regNo)
			if res == nil {
				logger.Debug().Str("reg_no", regNo).Msg("Empty result page")
				continue
			}
			entries = append(entries, result.Record(res), result.Separator())
			found++
			if o.cache != nil {
				o.cache.Store(ctx, key, res)
			}
		case client.StatusNotFound:
			logger.Debug().Str("reg_no", regNo).Msg("No record")
		default:
			failed++
			logger.Warn().Str("reg_no", regNo).Str("error", out.Message()).Int("attempts", out.Attempts).Msg("Lookup failed")
			entries = append(entries, result.Failure(out.Message()))
		}
	}

	subBatchDuration.WithLabelValues("local").Observe(time.Since(start).Seconds())
	logger.Info().
		Int("numbers", len(numbers)).
		Int("records", found).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Sub-batch complete")

	if len(numbers) > 0 && failed == len(numbers) {
		return entries, fmt.Errorf("%w: batch starting with %s", ErrAllFailed, b.First())
	}
	return entries, nil
}

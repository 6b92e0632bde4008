// Package peer calls the per-semester result services that run the core
// mode, one sub-batch at a time.
package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/beu-results/pkg/batch"
	"github.com/Sternrassler/beu-results/pkg/planner"
	"github.com/Sternrassler/beu-results/pkg/result"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultURLTemplate locates the service for a semester token such as "1st".
const DefaultURLTemplate = "https://%s-semester.vercel.app"

// ErrUnexpectedStatus is matched by errors for non-2xx peer answers.
var ErrUnexpectedStatus = errors.New("unexpected peer status")

var peerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "beu_peer_requests_total",
	Help: "Total sub-batch requests to peer services by outcome",
}, []string{"outcome"})

// StatusError reports a non-2xx answer from a peer.
type StatusError struct {
	RegNo      string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("Failed to fetch data for batch starting with reg_no: %s. Error: %s", e.RegNo, e.Body)
}

// Is reports whether target is ErrUnexpectedStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Config holds peer client configuration.
type Config struct {
	// URLTemplate has one %s verb for the semester token.
	URLTemplate string

	// Timeout bounds one sub-batch request.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string
}

// Client runs sub-batches on remote semester services.
// It implements batch.SubBatchRunner.
type Client struct {
	http     *resty.Client
	template string
	logger   zerolog.Logger
}

// New creates a peer client.
func New(cfg Config) *Client {
	if cfg.URLTemplate == "" {
		cfg.URLTemplate = DefaultURLTemplate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	c := &Client{
		http:     resty.New(),
		template: cfg.URLTemplate,
		logger:   log.With().Str("component", "peer-client").Logger(),
	}
	c.http.SetTimeout(cfg.Timeout)
	c.http.SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		c.http.SetHeader("User-Agent", cfg.UserAgent)
	}
	c.http.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		c.logger.Debug().
			Str("url", res.Request.URL).
			Int("status", res.StatusCode()).
			Dur("duration", res.Time()).
			Msg("Peer response")
		return nil
	})
	return c
}

// BaseURL returns the service address for a semester token.
func (c *Client) BaseURL(semester string) string {
	return strings.TrimRight(fmt.Sprintf(c.template, semester), "/")
}

// RunSubBatch asks the peer for the core mode batch starting at b.First().
func (c *Client) RunSubBatch(ctx context.Context, req batch.EdgeRequest, b planner.SubBatch) ([]result.Entry, error) {
	first := b.First()

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("year", req.Year).
		SetQueryParam("reg_no", first).
		Get(c.BaseURL(req.Semester) + "/result")
	if err != nil {
		peerRequestsTotal.WithLabelValues("transport_error").Inc()
		return nil, fmt.Errorf("Failed to fetch data for batch starting with reg_no: %s. Error: %w", first, err)
	}

	if !res.IsSuccess() {
		peerRequestsTotal.WithLabelValues("status_error").Inc()
		return nil, &StatusError{RegNo: first, StatusCode: res.StatusCode(), Body: res.String()}
	}

	var entries []result.Entry
	if err := json.Unmarshal(res.Body(), &entries); err != nil {
		peerRequestsTotal.WithLabelValues("decode_error").Inc()
		return nil, fmt.Errorf("decode peer response for %s: %w", first, err)
	}

	peerRequestsTotal.WithLabelValues("ok").Inc()
	return entries, nil
}

// Package hyperliquid reads fills and account state from the Hyperliquid info
// API. It implements domain.FillSource and domain.EquitySource.
package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

const (
	// DefaultInfoURL is the public mainnet info endpoint.
	DefaultInfoURL = "https://api.hyperliquid.xyz/info"

	// maxPageSize is the number of fills userFillsByTime returns at most per
	// call; a full page means more may follow.
	maxPageSize = 2000

	maxPages = 50
)

// Options configures a Client.
type Options struct {
	InfoURL string
	Timeout time.Duration
	// RequestsPerSecond paces outbound calls. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
	// Logger receives paging warnings. Nil falls back to slog.Default.
	Logger *slog.Logger
}

// Client is a JSON-over-HTTP client for the info endpoint.
type Client struct {
	infoURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a new info API client.
func NewClient(opts Options) *Client {
	url := strings.TrimSpace(opts.InfoURL)
	if url == "" {
		url = DefaultInfoURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		infoURL:    url,
		httpClient: hc,
		limiter:    limiter,
		logger:     logger.With(slog.String("component", "hyperliquid")),
	}
}

// FetchFills returns the user's fills. Without a lower bound the exchange's
// recent-fills query is used; with one, userFillsByTime is paged forward until
// a short page comes back. Fills seen on two pages are returned once. A window
// cut short by the page limit, or by a full page that never moves past its
// start time, is returned as is with a warning.
func (c *Client) FetchFills(ctx context.Context, q domain.FillQuery) ([]domain.RawFill, error) {
	user := strings.TrimSpace(q.User)
	if user == "" {
		return nil, fmt.Errorf("hyperliquid: fetch fills: empty user")
	}

	if q.FromMs == nil {
		var fills []domain.RawFill
		if err := c.post(ctx, userFillsRequest{Type: "userFills", User: user}, &fills); err != nil {
			return nil, fmt.Errorf("hyperliquid: user fills: %w", err)
		}
		return fills, nil
	}

	var (
		out   []domain.RawFill
		seen  = make(map[fillKey]bool)
		start = *q.FromMs
	)
	for page := 0; ; page++ {
		if page == maxPages {
			c.logger.WarnContext(ctx, "hyperliquid: fill window truncated at page limit",
				slog.String("user", user),
				slog.Int("pages", maxPages),
				slog.Int64("resume_ms", start),
			)
			break
		}
		req := userFillsRequest{Type: "userFillsByTime", User: user, StartTime: &start, EndTime: q.ToMs}
		var batch []domain.RawFill
		if err := c.post(ctx, req, &batch); err != nil {
			return nil, fmt.Errorf("hyperliquid: user fills by time: %w", err)
		}

		last := start
		for _, f := range batch {
			k := fillKey{tid: f.Tid, hash: f.Hash}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, f)
			if f.Time != nil && *f.Time > last {
				last = *f.Time
			}
		}

		if len(batch) < maxPageSize {
			break
		}
		if q.ToMs != nil && last >= *q.ToMs {
			break
		}
		if last <= start {
			c.logger.WarnContext(ctx, "hyperliquid: full page did not advance, fill window truncated",
				slog.String("user", user),
				slog.Int64("start_ms", start),
				slog.Int("page_size", len(batch)),
			)
			break
		}
		start = last
	}
	return out, nil
}

// FetchEquityAt reconstructs account value at timestampMs by taking the
// current account value and reversing every non-funding ledger delta since
// then. The result is floored at zero.
func (c *Client) FetchEquityAt(ctx context.Context, user string, timestampMs int64) (float64, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return 0, fmt.Errorf("hyperliquid: equity: empty user")
	}

	var state clearinghouseState
	if err := c.post(ctx, userRequest{Type: "clearinghouseState", User: user}, &state); err != nil {
		return 0, fmt.Errorf("hyperliquid: clearinghouse state: %w", err)
	}
	var updates []ledgerUpdate
	req := userFillsRequest{Type: "userNonFundingLedgerUpdates", User: user, StartTime: &timestampMs}
	if err := c.post(ctx, req, &updates); err != nil {
		return 0, fmt.Errorf("hyperliquid: ledger updates: %w", err)
	}

	return equityBefore(state.MarginSummary.AccountValue, updates), nil
}

type fillKey struct {
	tid  int64
	hash string
}

// post sends one info request and decodes the JSON reply into out.
func (c *Client) post(ctx context.Context, payload any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.infoURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w: %w", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("HTTP %d: %w", resp.StatusCode, domain.ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("HTTP %d: %s: %w", resp.StatusCode, excerpt(data), domain.ErrUpstream)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func excerpt(b []byte) string {
	const max = 256
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

package marketdata

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"options-backtest-go/internal/cache"
	"options-backtest-go/internal/config"
)

const dateLayout = "2006-01-02"

// Bar is one daily OHLCV record. Series are ascending by date and missing
// trading days are simply absent, never zero-filled.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Provider defines the market data source the backtester consumes.
type Provider interface {
	// GetDailyBars returns the daily bars for symbol between start and end
	// inclusive, ascending by date.
	GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
	// GetVolatilityIndexHistory returns the daily closes of the volatility
	// index over the same window, in the same shape.
	GetVolatilityIndexHistory(ctx context.Context, start, end time.Time) ([]Bar, error)
}

// Client is a Provider backed by a daily-prices REST API.
// It implements the Provider interface.
type Client struct {
	client    *resty.Client
	apiToken  string
	vixSymbol string
	logger    *zap.Logger
	limiter   *rate.Limiter
	cache     cache.Cache
	cacheTTL  time.Duration
}

// ensure Client implements the interface
var _ Provider = (*Client)(nil)

// NewClient creates a new market data client.
func NewClient(cfg *config.Provider, logger *zap.Logger, store cache.Cache) *Client {
	client := resty.New().SetBaseURL(cfg.BaseURL)

	// Initialize the rate limiter
	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:    client,
		apiToken:  cfg.APIToken,
		vixSymbol: cfg.VIXSymbol,
		logger:    logger,
		limiter:   limiter,
		cache:     store,
		cacheTTL:  time.Duration(cfg.CacheTTL) * time.Second,
	}
}

// GetDailyBars fetches the daily price history for a symbol. Responses are
// cached per (symbol, window) so repeated runs over the same window do not
// re-hit the provider.
func (c *Client) GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	key := fmt.Sprintf("bars:%s:%s:%s", symbol, start.Format(dateLayout), end.Format(dateLayout))
	if cached, ok := c.cache.Get(key); ok {
		c.logger.Debug("Bar cache hit", zap.String("symbol", symbol))
		return cached.([]Bar), nil
	}

	var bars []Bar
	req := c.client.R().
		SetContext(ctx).
		SetResult(&bars).
		SetHeader("Authorization", "Token "+c.apiToken).
		SetQueryParams(map[string]string{
			"startDate": start.Format(dateLayout),
			"endDate":   end.Format(dateLayout),
		})

	url := fmt.Sprintf("/daily/%s/prices", symbol)
	if _, err := c.doRequest(ctx, "GET", url, req); err != nil {
		return nil, fmt.Errorf("failed to get daily bars for %s: %w", symbol, err)
	}

	// The API contract says ascending, but a sort here is what the rest of
	// the engine's ordering assumptions hang on.
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	c.cache.Set(key, bars, c.cacheTTL)
	return bars, nil
}

// GetVolatilityIndexHistory fetches the volatility index closes for the window.
func (c *Client) GetVolatilityIndexHistory(ctx context.Context, start, end time.Time) ([]Bar, error) {
	bars, err := c.GetDailyBars(ctx, c.vixSymbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get volatility index history: %w", err)
	}
	return bars, nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && resp.StatusCode() != 0 {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

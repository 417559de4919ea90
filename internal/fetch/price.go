package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrNoPrice is returned when a feed answers without a usable price
var ErrNoPrice = errors.New("no BTC/USD price in response")

// PriceOptions configures a PriceClient
type PriceOptions struct {
	// URLs are queried concurrently; the median of the answers is used
	URLs []string

	// APIKey is sent as a bearer token when set
	APIKey string

	// CacheTTL is how long a fetched price is reused, default one minute
	CacheTTL time.Duration

	// Fallback is returned when no feed answers and nothing was fetched before
	Fallback decimal.Decimal

	Retry RetryOptions

	// Now is the clock used for cache expiry
	Now func() time.Time
}

// PriceClient quotes BTC/USD from one or more JSON feeds with caching and fallback.
// It never returns an error once a fallback price is configured.
type PriceClient struct {
	urls       []string
	apiKey     string
	httpClient *http.Client
	ttl        time.Duration
	fallback   decimal.Decimal
	now        func() time.Time

	mutex     sync.RWMutex
	cached    decimal.Decimal
	cacheTime time.Time
}

// NewPriceClient creates a price client
func NewPriceClient(o PriceOptions) *PriceClient {
	if o.CacheTTL <= 0 {
		o.CacheTTL = time.Minute
	}
	if o.Retry == (RetryOptions{}) {
		o.Retry = DefaultRetryOptions()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &PriceClient{
		urls:       o.URLs,
		apiKey:     o.APIKey,
		httpClient: StandardClient(NewRetryClient(o.Retry)),
		ttl:        o.CacheTTL,
		fallback:   o.Fallback,
		now:        o.Now,
	}
}

// BTCUSD returns the cached price, refreshing it from the feeds when stale.
// When every feed fails the last good price is kept, then the fallback.
func (c *PriceClient) BTCUSD(ctx context.Context) (decimal.Decimal, error) {
	c.mutex.RLock()
	cached, at := c.cached, c.cacheTime
	c.mutex.RUnlock()

	if !at.IsZero() && c.now().Sub(at) < c.ttl {
		return cached, nil
	}

	price, err := c.fetchAll(ctx)
	if err == nil {
		c.mutex.Lock()
		c.cached = price
		c.cacheTime = c.now()
		c.mutex.Unlock()
		return price, nil
	}

	switch {
	case !at.IsZero():
		logrus.Warnf("BTC price refresh failed, keeping %s: %v", cached, err)
		return cached, nil
	case c.fallback.IsPositive():
		logrus.Warnf("BTC price unavailable, using fallback %s: %v", c.fallback, err)
		return c.fallback, nil
	}
	return decimal.Zero, err
}

// fetchAll queries every feed concurrently and returns the median answer
func (c *PriceClient) fetchAll(ctx context.Context) (decimal.Decimal, error) {
	if len(c.urls) == 0 {
		return decimal.Zero, errors.New("no price feeds configured")
	}

	type result struct {
		url   string
		price decimal.Decimal
		err   error
	}

	var wg sync.WaitGroup
	resultCh := make(chan result, len(c.urls))
	for _, u := range c.urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			p, err := c.fetchOne(ctx, u)
			resultCh <- result{url: u, price: p, err: err}
		}(u)
	}
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var prices []decimal.Decimal
	var firstErr error
	for r := range resultCh {
		if r.err != nil {
			logrus.Warnf("Error fetching BTC price from %s: %v", r.url, r.err)
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		prices = append(prices, r.price)
	}

	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("all price feeds failed: %w", firstErr)
	}

	logrus.Debugf("Fetched BTC price from %d/%d feeds", len(prices), len(c.urls))
	return median(prices), nil
}

func (c *PriceClient) fetchOne(ctx context.Context, url string) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("error fetching price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, fmt.Errorf("price API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return decodePrice(resp.Body)
}

// decodePrice accepts {"bitcoin":{"usd":N}} and {"price":N}
func decodePrice(r io.Reader) (decimal.Decimal, error) {
	var response struct {
		Bitcoin *struct {
			USD decimal.Decimal `json:"usd"`
		} `json:"bitcoin"`
		Price *decimal.Decimal `json:"price"`
	}
	if err := json.NewDecoder(r).Decode(&response); err != nil {
		return decimal.Zero, fmt.Errorf("error decoding response: %w", err)
	}

	var p decimal.Decimal
	switch {
	case response.Bitcoin != nil:
		p = response.Bitcoin.USD
	case response.Price != nil:
		p = *response.Price
	}
	if !p.IsPositive() {
		return decimal.Zero, ErrNoPrice
	}
	return p, nil
}

func median(values []decimal.Decimal) decimal.Decimal {
	sorted := append([]decimal.Decimal(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

// Package fetch retrieves the BTC/USD reference price from external feeds.
package fetch

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// RetryOptions tunes the retrying HTTP client
type RetryOptions struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
}

// DefaultRetryOptions returns the retry policy used for price feeds
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		RetryMax:     3,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 3 * time.Second,
		Timeout:      10 * time.Second,
	}
}

// NewRetryClient creates a new HTTP client with retry capabilities
func NewRetryClient(o RetryOptions) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = o.RetryMax
	c.RetryWaitMin = o.RetryWaitMin
	c.RetryWaitMax = o.RetryWaitMax
	c.HTTPClient.Timeout = o.Timeout
	c.Logger = nil
	return c
}

// StandardClient converts a retryablehttp.Client to a standard http.Client
func StandardClient(retryClient *retryablehttp.Client) *http.Client {
	return retryClient.StandardClient()
}

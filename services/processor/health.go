package processor

import (
	"context"
	"net/http"
	"time"

	cache "github.com/Code-Hex/go-generics-cache"
	"github.com/ansel1/merry/v2"
)

const healthCacheTTL = 10 * time.Second

var healthCache = cache.New[string, HealthStatus]()

// Health probes the service's health endpoint. Good answers are cached for a
// few seconds so UI polls don't turn into a probe storm.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	if status, ok := healthCache.Get(c.baseURL); ok {
		return status, nil
	}

	resp, err := c.restyClient.R().
		SetContext(ctx).
		SetResult(&HealthStatus{}).
		Get("/health")
	if err != nil {
		return HealthStatus{}, merry.Wrap(ErrUnreachable, merry.WithCause(err))
	}
	if resp.StatusCode() != http.StatusOK {
		return HealthStatus{}, merry.Wrap(ErrService, merry.WithHTTPCode(resp.StatusCode()))
	}

	status := *resp.Result().(*HealthStatus)
	healthCache.Set(c.baseURL, status, cache.WithExpiration(healthCacheTTL))
	return status, nil
}

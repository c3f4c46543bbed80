package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"livesignal/internal/core/ports"
	"livesignal/pkg/circuitbreaker"
	"livesignal/pkg/retry"

	"go.uber.org/zap"
)

// HTTPDirectory asks the surrounding social app's user service whether a
// username exists. The user service is outside our failure domain, so
// lookups go through a circuit breaker and transient failures are retried.
// An open circuit reports the identity as unknown, which makes joins for
// that streamer silently ignored rather than erroring the whole channel.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	retry   retry.Config
	logger  *zap.SugaredLogger
}

func NewHTTPDirectory(baseURL string, timeout time.Duration, logger *zap.SugaredLogger) ports.IdentityDirectory {
	d := &HTTPDirectory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		retry:   retry.DefaultConfig(),
		logger:  logger,
	}

	d.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("identity directory circuit state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return d
}

func (d *HTTPDirectory) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool

	err := d.breaker.Execute(ctx, func() error {
		found, err := retry.RetryWithResult(ctx, d.retry, func() (bool, error) {
			return d.lookup(ctx, name)
		})
		if err != nil {
			return err
		}
		exists = found
		return nil
	})
	if err != nil {
		d.logger.Warnw("identity lookup failed, treating as unknown",
			"username", name,
			"error", err,
		)
		return false, nil
	}

	return exists, nil
}

func (d *HTTPDirectory) lookup(ctx context.Context, name string) (bool, error) {
	lookupURL := fmt.Sprintf("%s/api/v1/users/%s", d.baseURL, url.PathEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build directory request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body map[string]json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			// Some deployments answer a bare 200 with a non-JSON body
			return true, nil
		}
		if raw, ok := body["exists"]; ok {
			var exists bool
			if err := json.Unmarshal(raw, &exists); err == nil {
				return exists, nil
			}
		}
		// A 200 carrying the user record also means the user exists
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("directory returned status %d", resp.StatusCode)
	}
}

// Package providers implements ensemble.ModelAdapter over the Gemini,
// OpenAI and Anthropic HTTP APIs.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"personal-color-workers/internal/common/config"
	commonhttp "personal-color-workers/internal/common/http"
	"personal-color-workers/internal/common/imageutil"
	"personal-color-workers/internal/common/logger"
	"personal-color-workers/internal/ensemble"
)

const (
	analyzeTemperatureDefault = 0.3
	judgeTemperature          = 0.2
	defaultBackoff            = 250 * time.Millisecond
	breakerOpenFor            = 30 * time.Second
)

// dialect is the provider-specific wire format.
type dialect interface {
	endpoint(cfg config.ProviderConfig) string
	headers(cfg config.ProviderConfig) map[string]string
	request(cfg config.ProviderConfig, call callSpec) interface{}
	extractText(body []byte) (string, error)
}

// callSpec is one prompt to send.
type callSpec struct {
	system      string
	prompt      string
	image       []byte
	mime        string
	temperature float64
}

// serverError is a 5xx reply. It counts against the breaker and is retried.
type serverError struct {
	status int
	body   string
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.status, e.body)
}

// Client is the ModelAdapter for one provider. Calls go through a client
// side rate limiter, a circuit breaker and a bounded retry loop; every
// failure is returned as *ensemble.ProviderError.
type Client struct {
	provider ensemble.ProviderID
	cfg      config.ProviderConfig
	dialect  dialect
	http     *commonhttp.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[*commonhttp.Response]
	logger   logger.Logger
	backoff  time.Duration
}

// New builds the adapter for provider from its config section.
func New(provider ensemble.ProviderID, cfg config.ProviderConfig, log logger.Logger) (*Client, error) {
	var d dialect
	switch provider {
	case ensemble.ProviderGemini:
		d = geminiDialect{}
	case ensemble.ProviderOpenAI:
		d = openAIDialect{}
	case ensemble.ProviderClaude:
		d = claudeDialect{}
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("providers.%s.base_url is required", provider)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("providers.%s.model is required", provider)
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"provider": string(provider)})

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		provider: provider,
		cfg:      cfg,
		dialect:  d,
		http:     commonhttp.NewClient(timeout),
		limiter:  rate.NewLimiter(limit, burst),
		logger:   log,
		backoff:  defaultBackoff,
	}
	c.breaker = newBreaker(string(provider), cfg.BreakerFailures, log)
	return c, nil
}

func newBreaker(name string, failures int, log logger.Logger) *gobreaker.CircuitBreaker[*commonhttp.Response] {
	if failures <= 0 {
		failures = 5
	}
	return gobreaker.NewCircuitBreaker[*commonhttp.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     breakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("provider circuit breaker state changed", map[string]interface{}{
				"from": from.String(),
				"to":   to.String(),
			})
		},
	})
}

func (c *Client) Provider() ensemble.ProviderID {
	return c.provider
}

// Analyze sends the image with the classification prompt.
func (c *Client) Analyze(ctx context.Context, image []byte) (ensemble.RawColorResult, error) {
	mime, err := imageutil.DetectMIME(image)
	if err != nil {
		return nil, ensemble.NewProviderError(c.provider, ensemble.ProviderInvalidResponse, err)
	}

	temperature := c.cfg.Temperature
	if temperature <= 0 {
		temperature = analyzeTemperatureDefault
	}
	return c.complete(ctx, callSpec{
		system:      systemPrompt,
		prompt:      analysisPrompt,
		image:       image,
		mime:        mime,
		temperature: temperature,
	})
}

// Judge sends the image with a summary of the candidates' answers. An
// image the provider cannot take is dropped rather than failing the judge.
func (c *Client) Judge(ctx context.Context, image []byte, candidates []ensemble.ColorAnalysisResult) (ensemble.RawColorResult, error) {
	prompt, err := judgePrompt(candidates)
	if err != nil {
		return nil, ensemble.NewProviderError(c.provider, ensemble.ProviderInvalidResponse, err)
	}

	call := callSpec{
		system:      systemPrompt,
		prompt:      prompt,
		temperature: judgeTemperature,
	}
	if mime, err := imageutil.DetectMIME(image); err == nil {
		call.image = image
		call.mime = mime
	}
	return c.complete(ctx, call)
}

func (c *Client) complete(ctx context.Context, call callSpec) (ensemble.RawColorResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, c.fail(ensemble.ProviderTimeout, ctx.Err())
		}
		return nil, c.fail(ensemble.ProviderRateLimit, err)
	}

	payload := c.dialect.request(c.cfg, call)
	url := c.dialect.endpoint(c.cfg)
	headers := c.dialect.headers(c.cfg)

	var resp *commonhttp.Response
	var err error
	for attempt := 0; ; attempt++ {
		resp, err = c.breaker.Execute(func() (*commonhttp.Response, error) {
			r, err := c.http.PostJSON(ctx, url, headers, payload)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return nil, &serverError{status: r.StatusCode, body: truncate(string(r.Body), 200)}
			}
			return r, nil
		})
		if err == nil {
			break
		}

		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, c.fail(ensemble.ProviderTransport, fmt.Errorf("circuit open: %w", err))
		case ctx.Err() != nil:
			return nil, c.fail(ensemble.ProviderTimeout, ctx.Err())
		case isTimeout(err):
			return nil, c.fail(ensemble.ProviderTimeout, err)
		}

		if attempt >= c.cfg.MaxRetries {
			return nil, c.fail(ensemble.ProviderTransport, err)
		}

		delay := c.backoff << attempt
		c.logger.Debug("retrying provider call", map[string]interface{}{
			"attempt": attempt + 1,
			"delay":   delay.String(),
			"error":   err.Error(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, c.fail(ensemble.ProviderTimeout, ctx.Err())
		}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, c.fail(ensemble.ProviderRateLimit, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(resp.Body), 200)))
	case resp.StatusCode == http.StatusRequestTimeout:
		return nil, c.fail(ensemble.ProviderTimeout, fmt.Errorf("status %d", resp.StatusCode))
	case !resp.IsSuccess():
		return nil, c.fail(ensemble.ProviderTransport, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(resp.Body), 200)))
	}

	text, err := c.dialect.extractText(resp.Body)
	if err != nil {
		return nil, c.fail(ensemble.ProviderInvalidResponse, err)
	}
	raw, err := ParseReply(text)
	if err != nil {
		return nil, c.fail(ensemble.ProviderInvalidResponse, err)
	}
	return raw, nil
}

func (c *Client) fail(kind ensemble.ProviderErrorKind, err error) *ensemble.ProviderError {
	c.logger.Warn("provider call failed", map[string]interface{}{
		"kind":  string(kind),
		"error": err.Error(),
	})
	return ensemble.NewProviderError(c.provider, kind, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

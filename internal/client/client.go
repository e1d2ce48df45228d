package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/id"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config configures a Client
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	RateLimit    float64 // requests per second; 0 is unlimited
	UserAgent    string
}

// DefaultConfig returns the client defaults for a server address
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		Timeout:      60 * time.Second,
		MaxRetries:   3,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 10 * time.Second,
		UserAgent:    "modulectl/1.0",
	}
}

// Client talks to the module registry endpoints
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *zap.Logger
}

// New creates a client
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = leveledLogger{logger.Sugar()}
	retryClient.CheckRetry = checkRetry
	// hand the last response back so its error body can be decoded
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json")
	restyClient.JSONMarshal = sonic.Marshal
	restyClient.JSONUnmarshal = sonic.Unmarshal

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}

	breaker := resilience.New("registry-api", resilience.Settings{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a refused operation means the server is healthy
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		resty:   restyClient,
		limiter: limiter,
		breaker: breaker,
		logger:  logger,
	}
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// do runs one request through the limiter and the breaker. build prepares
// the request; result, when non-nil, receives the decoded 2xx body.
func (c *Client) do(ctx context.Context, method, path string, retry bool, build func(*resty.Request), result interface{}) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	if tracing.GetTraceID(ctx) == "" {
		ctx = tracing.WithTraceID(ctx, tracing.TraceID(id.NewTraceID()))
	}
	if retry {
		ctx = context.WithValue(ctx, retryKey{}, true)
	}

	var resp *resty.Response
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		headers := make(map[string]string, 2)
		tracing.InjectTraceContext(ctx, headers)

		req := c.resty.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetError(&errorBody{})
		if result != nil {
			req.SetResult(result)
		}
		if build != nil {
			build(req)
		}

		var err error
		resp, err = req.Execute(method, path)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		if resp.IsError() {
			return newAPIError(resp)
		}
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return nil, fmt.Errorf("registry unavailable: %w", err)
	}
	return resp, err
}

type retryKey struct{}

// checkRetry retries only requests marked safe to repeat
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if safe, _ := ctx.Value(retryKey{}).(bool); !safe {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }

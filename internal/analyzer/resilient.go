package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// resilientAnalyzer throttles calls to the wrapped analyzer and stops calling
// it for a while after repeated failures.
type resilientAnalyzer struct {
	next    Analyzer
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *utils.Logger
}

func NewResilient(next Analyzer, rpm int, logger *utils.Logger) Analyzer {
	if rpm <= 0 {
		rpm = 30
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}

	return &resilientAnalyzer{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        next.Name() + "-analyzer",
			MaxRequests: 5,
			Interval:    10 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
		logger: logger,
	}
}

func (a *resilientAnalyzer) Name() string { return a.next.Name() }

func (a *resilientAnalyzer) Analyze(ctx context.Context, text string) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("analyzer rate limit: %w", err)
	}

	result, err := a.breaker.Execute(func() (interface{}, error) {
		return a.next.Analyze(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", err
	}
	return result.(string), nil
}

func (a *resilientAnalyzer) Close() error {
	if c, ok := a.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

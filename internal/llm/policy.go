package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/moibraahim/gymnation-task/internal/models"
)

const (
	DefaultTimeout    = 120 * time.Second
	defaultRetryDelay = 500 * time.Millisecond
)

// Policy bounds each model call. MaxRetries is clamped to [0, 1].
type Policy struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

type policyClient struct {
	next   Client
	policy Policy
	logger *zap.Logger
}

// WithPolicy wraps next so that every failure, timeout or empty reply
// surfaces as models.ErrModelUnavailable.
func WithPolicy(next Client, policy Policy, logger *zap.Logger) Client {
	if policy.Timeout <= 0 {
		policy.Timeout = DefaultTimeout
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.MaxRetries > 1 {
		policy.MaxRetries = 1
	}
	if policy.RetryDelay < 0 {
		policy.RetryDelay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &policyClient{next: next, policy: policy, logger: logger}
}

func (p *policyClient) Complete(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= p.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", models.ErrModelUnavailable, ctx.Err())
			case <-time.After(p.policy.RetryDelay):
			}
		}

		resp, err := p.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		p.logger.Warn("llm: model call failed",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", p.policy.MaxRetries+1),
			zap.Error(err),
		)
	}

	if errors.Is(lastErr, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: timed out: %w", models.ErrModelUnavailable, lastErr)
	}
	return nil, fmt.Errorf("%w: %v", models.ErrModelUnavailable, lastErr)
}

func (p *policyClient) attempt(ctx context.Context, req Request) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.policy.Timeout)
	defer cancel()

	resp, err := p.next.Complete(attemptCtx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil || (!resp.HasToolCalls() && strings.TrimSpace(resp.Content) == "") {
		return nil, errors.New("model returned an empty reply")
	}
	return resp, nil
}

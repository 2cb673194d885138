package qualify

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/instalily/leadqual/internal/model"
	"github.com/instalily/leadqual/internal/policy"
	"github.com/instalily/leadqual/internal/resilience"
)

// Classifier evaluates visitors through a Provider. Provider failures are
// retried per the retry config; after exhaustion (or a parse failure) the
// visitor gets a failed result instead of an error, so one bad row never
// takes down a batch. Only context cancellation propagates as an error.
type Classifier struct {
	provider Provider
	policy   *policy.Policy
	system   string
	retry    resilience.RetryConfig
	limiter  *rate.Limiter
}

// Option configures the Classifier.
type Option func(*Classifier)

// WithRetryConfig overrides the provider retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *Classifier) {
		c.retry = cfg
	}
}

// WithRateLimiter throttles provider calls across all workers.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Classifier) {
		c.limiter = l
	}
}

// NewClassifier builds a Classifier for the given provider and policy.
func NewClassifier(provider Provider, p *policy.Policy, opts ...Option) *Classifier {
	c := &Classifier{
		provider: provider,
		policy:   p,
		system:   BuildSystemPrompt(p),
		retry:    resilience.ProviderRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.retry.ShouldRetry == nil {
		c.retry.ShouldRetry = retryTransientProvider
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("classifier", "complete")
	}
	return c
}

func retryTransientProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}

// Classify evaluates one visitor. The returned result has no RunID; the
// orchestrator assigns it when persisting.
func (c *Classifier) Classify(ctx context.Context, v model.Visitor) (*model.QualificationResult, error) {
	res := &model.QualificationResult{
		RowID:    v.RowID,
		RowIndex: v.RowIndex,
		Visitor:  v,
	}

	user := BuildUserPrompt(v)
	raw, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (string, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", eris.Wrap(err, "qualify: rate limit")
			}
		}
		return c.provider.Complete(ctx, c.system, user)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		zap.L().Warn("classification failed",
			zap.String("row_id", v.RowID),
			zap.String("visitor", v.Display()),
			zap.Error(err),
		)
		return failedResult(res, err), nil
	}

	reply, err := ParseReply(raw)
	if err != nil {
		zap.L().Warn("classification reply unparseable",
			zap.String("row_id", v.RowID),
			zap.Error(err),
		)
		return failedResult(res, err), nil
	}

	res.Status = model.ResultStatusSucceeded
	res.Qualified = reply.Qualified
	res.Score = reply.Score
	res.Rationale = reply.Rationale
	res.VisitorSummary = reply.VisitorSummary
	res.CompanySummary = reply.CompanySummary
	res.CreatedAt = time.Now().UTC()
	res.UpdatedAt = res.CreatedAt
	return res, nil
}

func failedResult(res *model.QualificationResult, err error) *model.QualificationResult {
	res.Status = model.ResultStatusFailed
	res.Error = err.Error()
	res.CreatedAt = time.Now().UTC()
	res.UpdatedAt = res.CreatedAt
	return res
}

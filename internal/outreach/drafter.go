// Package outreach drafts short outreach emails for qualified visitors.
// Drafting is best effort: a failed draft is logged and skipped, it never
// fails the qualification result it belongs to.
package outreach

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/instalily/leadqual/internal/model"
	"github.com/instalily/leadqual/internal/policy"
	"github.com/instalily/leadqual/internal/qualify"
	"github.com/instalily/leadqual/internal/resilience"
)

// Drafter writes a first-touch email for a qualified visitor. The primary
// provider is tried first; if it exhausts its retries the fallback (when
// configured) gets one full retry cycle of its own.
type Drafter struct {
	provider qualify.Provider
	fallback qualify.Provider
	policy   *policy.Policy
	system   string
	retry    resilience.RetryConfig
}

// Option configures the Drafter.
type Option func(*Drafter)

// WithFallback sets a secondary provider tried when the primary fails.
func WithFallback(p qualify.Provider) Option {
	return func(d *Drafter) {
		d.fallback = p
	}
}

// WithRetryConfig overrides the provider retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(d *Drafter) {
		d.retry = cfg
	}
}

// NewDrafter builds a Drafter for the given provider and policy.
func NewDrafter(provider qualify.Provider, p *policy.Policy, opts ...Option) *Drafter {
	d := &Drafter{
		provider: provider,
		policy:   p,
		system:   buildDraftSystemPrompt(p),
		retry:    resilience.ProviderRetryConfig(),
	}
	for _, o := range opts {
		o(d)
	}
	if d.retry.ShouldRetry == nil {
		d.retry.ShouldRetry = retryTransientProvider
	}
	if d.retry.OnRetry == nil {
		d.retry.OnRetry = resilience.RetryLogger("outreach", "draft")
	}
	return d
}

// Draft writes an email for one qualified visitor. The returned draft
// carries the run and row keys from the result. Only context cancellation
// and exhausted providers surface as errors; the caller decides whether a
// missing draft matters.
func (d *Drafter) Draft(ctx context.Context, v model.Visitor, res *model.QualificationResult) (*model.EmailDraft, error) {
	user := buildDraftUserPrompt(v, res)

	body, err := d.complete(ctx, d.provider, user)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if d.fallback == nil {
			return nil, err
		}
		zap.L().Warn("draft provider failed, trying fallback",
			zap.String("row_id", v.RowID),
			zap.Error(err),
		)
		body, err = d.complete(ctx, d.fallback, user)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
	}

	return &model.EmailDraft{
		RunID:     res.RunID,
		RowID:     res.RowID,
		Subject:   d.Subject(),
		Body:      strings.TrimSpace(body),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Subject is deterministic so re-drafting a visitor cannot fan out into
// different subject lines.
func (d *Drafter) Subject() string {
	return fmt.Sprintf("Your visit to %s", d.policy.SenderCompany)
}

func retryTransientProvider(err error) bool {
	var pe *qualify.ProviderError
	return errors.As(err, &pe) && pe.Transient
}

func (d *Drafter) complete(ctx context.Context, p qualify.Provider, user string) (string, error) {
	return resilience.DoVal(ctx, d.retry, func(ctx context.Context) (string, error) {
		return p.Complete(ctx, d.system, user)
	})
}

func buildDraftSystemPrompt(p *policy.Policy) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s of %s. %s\n\n",
		p.SenderName, p.SenderRole, p.SenderCompany, p.CompanyDescription)
	b.WriteString("Write a short, informal outreach email to someone who recently ")
	b.WriteString("visited the company website. Two sentences at most. Reference ")
	b.WriteString("what their company does and why a conversation could be useful. ")
	b.WriteString("No subject line, no signature, no placeholders. Reply with the ")
	b.WriteString("email body only.")
	return b.String()
}

func buildDraftUserPrompt(v model.Visitor, res *model.QualificationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Visitor: %s\n", v.Display())
	if v.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", v.Title)
	}
	if v.CompanyName != "" {
		fmt.Fprintf(&b, "Company: %s\n", v.CompanyName)
	}
	if res.VisitorSummary != "" {
		fmt.Fprintf(&b, "About them: %s\n", res.VisitorSummary)
	}
	if res.CompanySummary != "" {
		fmt.Fprintf(&b, "About their company: %s\n", res.CompanySummary)
	}
	if len(res.Rationale) > 0 {
		fmt.Fprintf(&b, "Why they fit: %s\n", strings.Join(res.Rationale, "; "))
	}
	return b.String()
}

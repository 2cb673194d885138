package main

import (
	"context"
	"os"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/instalily/leadqual/internal/outreach"
	"github.com/instalily/leadqual/internal/policy"
	"github.com/instalily/leadqual/internal/qualify"
	"github.com/instalily/leadqual/internal/store"
	"github.com/instalily/leadqual/pkg/anthropic"
	"github.com/instalily/leadqual/pkg/notion"
	"github.com/instalily/leadqual/pkg/perplexity"
	sfpkg "github.com/instalily/leadqual/pkg/salesforce"
)

// initStore opens the configured store backend and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "leadqual.db"
		}
		st, err = store.NewSQLite(path)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// initPolicy loads the qualification policy: an explicit file wins, then
// the Notion ICP database, then the built-in default.
func initPolicy(ctx context.Context) (*policy.Policy, error) {
	if cfg.Policy.File != "" {
		return policy.LoadFile(cfg.Policy.File)
	}
	if cfg.Notion.Token != "" && cfg.Notion.PolicyDB != "" {
		nc := notion.NewClient(cfg.Notion.Token)
		return policy.FromNotion(ctx, nc, cfg.Notion.PolicyDB)
	}
	return policy.Default(), nil
}

// initClassifier builds the configured classification provider.
func initClassifier(p *policy.Policy) (*qualify.Classifier, error) {
	var provider qualify.Provider
	switch cfg.Policy.Classifier {
	case "perplexity":
		provider = &qualify.PerplexityProvider{
			Client: perplexity.NewClient(cfg.Perplexity.Key,
				perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
				perplexity.WithModel(cfg.Perplexity.Model),
			),
			Model: cfg.Perplexity.Model,
		}
	case "anthropic":
		provider = &qualify.AnthropicProvider{
			Client: anthropic.NewClient(cfg.Anthropic.Key),
			Model:  cfg.Anthropic.Model,
		}
	default:
		return nil, eris.Errorf("unknown classifier: %s", cfg.Policy.Classifier)
	}

	opts := []qualify.Option{}
	if cfg.Pipeline.RatePerSecond > 0 {
		burst := cfg.Pipeline.RateBurst
		if burst < 1 {
			burst = 1
		}
		opts = append(opts, qualify.WithRateLimiter(
			rate.NewLimiter(rate.Limit(cfg.Pipeline.RatePerSecond), burst)))
	}
	return qualify.NewClassifier(provider, p, opts...), nil
}

// initDrafter builds the email drafter, or returns nil when no OpenAI key
// is configured. Anthropic serves as the fallback provider when available.
func initDrafter(p *policy.Policy) *outreach.Drafter {
	if cfg.OpenAI.Key == "" {
		return nil
	}

	primary := outreach.NewOpenAIProvider(cfg.OpenAI.Key, cfg.OpenAI.Model)

	opts := []outreach.Option{}
	if cfg.Anthropic.Key != "" {
		opts = append(opts, outreach.WithFallback(&qualify.AnthropicProvider{
			Client: anthropic.NewClient(cfg.Anthropic.Key),
			Model:  cfg.Anthropic.Model,
		}))
	}
	return outreach.NewDrafter(primary, p, opts...)
}

// initSalesforce authenticates to Salesforce with the JWT bearer flow.
func initSalesforce() (sfpkg.Client, error) {
	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf, sfpkg.WithRateLimit(cfg.Pipeline.RatePerSecond)), nil
}

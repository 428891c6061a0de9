package llm

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/moibraahim/gymnation-task/internal/models"
	"github.com/moibraahim/gymnation-task/internal/utils"
)

// New builds the configured provider wrapped in the timeout and retry policy.
func New(cfg utils.ModelConfig, logger *zap.Logger) (Client, error) {
	opts := Options{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}

	var (
		provider Client
		err      error
	)
	switch cfg.Provider {
	case utils.ProviderOpenAI, "":
		provider, err = NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Name, opts)
	case utils.ProviderAnthropic:
		provider, err = NewAnthropicClient(cfg.APIKey, cfg.BaseURL, cfg.Name, opts)
	case utils.ProviderOllama:
		provider, err = NewOllamaClient(cfg.BaseURL, cfg.Name, opts, &http.Client{})
	default:
		return nil, fmt.Errorf("%w: unsupported model provider %q", models.ErrConfiguration, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}

	policy := Policy{Timeout: cfg.Timeout, MaxRetries: cfg.MaxRetries, RetryDelay: defaultRetryDelay}
	return WithPolicy(provider, policy, utils.OrNop(logger).With(zap.String("provider", providerName(cfg.Provider)), zap.String("model", cfg.Name))), nil
}

func providerName(p string) string {
	if p == "" {
		return utils.ProviderOpenAI
	}
	return p
}

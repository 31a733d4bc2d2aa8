package bootstrap

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/mindbridge-triage/internal/config"
	"github.com/wolfman30/mindbridge-triage/internal/conversation"
	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

// BuildLLMClient wires Gemini as the primary provider and Bedrock as the
// fallback, honouring LLM_PROVIDER. awsCfg may be nil when AWS is not
// configured. The returned closer releases provider resources and is never nil.
// A nil client means generation is disabled and replies come from templates.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (conversation.LLMClient, io.Closer, error) {
	if cfg == nil {
		return nil, nopCloser{}, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !cfg.GenerationEnabled() {
		logger.Info("reply generation disabled; using template narratives", "provider", cfg.LLMProvider)
		return nil, nopCloser{}, nil
	}

	var (
		primary  conversation.LLMClient
		fallback conversation.LLMClient
		closer   io.Closer = nopCloser{}
	)

	if cfg.LLMProvider != "bedrock" && cfg.GeminiAPIKey != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nopCloser{}, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		primary = gemini
		closer = gemini
	}

	if cfg.LLMProvider != "gemini" && cfg.BedrockModelID != "" {
		if awsCfg == nil {
			logger.Warn("bedrock model configured without aws config; skipping bedrock")
		} else {
			bedrock := conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID,
				conversation.WithGuardrail(cfg.BedrockGuardrailID, cfg.BedrockGuardrailVersion),
			)
			if primary == nil {
				primary = bedrock
			} else {
				fallback = bedrock
			}
		}
	}

	switch {
	case primary == nil:
		logger.Warn("no reply generation provider could be built; using template narratives")
		return nil, closer, nil
	case fallback != nil:
		logger.Info("reply generation enabled", "primary", "gemini", "fallback", "bedrock")
		return conversation.NewFallbackLLMClient(primary, fallback, logger), closer, nil
	default:
		logger.Info("reply generation enabled", "provider", cfg.LLMProvider)
		return primary, closer, nil
	}
}

// BuildReplyGenerator adapts the configured LLM client into a reply generator.
// It returns nil when client is nil.
func BuildReplyGenerator(cfg *appconfig.Config, client conversation.LLMClient) conversation.ReplyGenerator {
	if client == nil {
		return nil
	}
	genCfg := conversation.LLMGeneratorConfig{}
	if cfg != nil {
		genCfg.MaxTokens = int32(cfg.LLMMaxTokens)
		genCfg.Temperature = float32(cfg.LLMTemperature)
	}
	return conversation.NewLLMReplyGenerator(client, genCfg)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

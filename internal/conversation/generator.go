package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/mindbridge-triage/internal/catalog"
)

// ErrGenerationUnavailable covers every way an external reply can fail to
// materialize. Callers recover by falling back to a template narrative.
var ErrGenerationUnavailable = errors.New("conversation: reply generation unavailable")

// GenerationRequest is the context handed to an external reply generator.
type GenerationRequest struct {
	// History holds earlier exchanges, oldest first.
	History       []ChatMessage
	UserMessage   string
	Categories    []string
	Severity      catalog.Severity
	Escalated     bool
	ResourceNames []string
}

// ReplyGenerator produces the narrative part of a reply.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, req GenerationRequest) (string, error)
}

// ReplyGeneratorFunc adapts a function to ReplyGenerator.
type ReplyGeneratorFunc func(ctx context.Context, req GenerationRequest) (string, error)

func (f ReplyGeneratorFunc) GenerateReply(ctx context.Context, req GenerationRequest) (string, error) {
	return f(ctx, req)
}

// LLMGeneratorConfig tunes completion requests.
type LLMGeneratorConfig struct {
	Model       string
	MaxTokens   int32
	Temperature float32
}

// LLMReplyGenerator generates replies through any LLMClient.
type LLMReplyGenerator struct {
	client LLMClient
	cfg    LLMGeneratorConfig
}

// NewLLMReplyGenerator wraps client. A nil client always reports
// ErrGenerationUnavailable.
func NewLLMReplyGenerator(client LLMClient, cfg LLMGeneratorConfig) *LLMReplyGenerator {
	return &LLMReplyGenerator{client: client, cfg: cfg}
}

// GenerateReply sends the system prompt, history and the new message.
func (g *LLMReplyGenerator) GenerateReply(ctx context.Context, req GenerationRequest) (string, error) {
	if g == nil || g.client == nil {
		return "", ErrGenerationUnavailable
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		return "", fmt.Errorf("%w: empty user message", ErrGenerationUnavailable)
	}

	messages := make([]ChatMessage, 0, len(req.History)+1)
	for _, m := range req.History {
		if m.Role == ChatRoleSystem || strings.TrimSpace(m.Content) == "" {
			continue
		}
		messages = append(messages, m)
	}
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: req.UserMessage})

	resp, err := g.client.Complete(ctx, LLMRequest{
		Model:       g.cfg.Model,
		System:      buildSystemPrompt(req),
		Messages:    messages,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrGenerationUnavailable)
	}
	return text, nil
}

package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockOption configures a BedrockLLMClient.
type BedrockOption func(*BedrockLLMClient)

// WithGuardrail attaches a Bedrock guardrail to every Converse call. An
// empty id leaves guardrails off; an empty version means DRAFT.
func WithGuardrail(id, version string) BedrockOption {
	return func(c *BedrockLLMClient) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		version = strings.TrimSpace(version)
		if version == "" {
			version = "DRAFT"
		}
		c.guardrail = &brtypes.GuardrailConfiguration{
			GuardrailIdentifier: aws.String(id),
			GuardrailVersion:    aws.String(version),
		}
	}
}

// BedrockLLMClient implements LLMClient on the Bedrock Converse API.
type BedrockLLMClient struct {
	api       bedrockConverseAPI
	modelID   string
	guardrail *brtypes.GuardrailConfiguration
}

// NewBedrockLLMClient wraps a Converse-capable client. modelID is used when a
// request does not name a model.
func NewBedrockLLMClient(api bedrockConverseAPI, modelID string, opts ...BedrockOption) *BedrockLLMClient {
	if api == nil {
		panic("conversation: bedrock converse client cannot be nil")
	}
	c := &BedrockLLMClient{api: api, modelID: strings.TrimSpace(modelID)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *BedrockLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	modelID := strings.TrimSpace(req.Model)
	if modelID == "" {
		modelID = c.modelID
	}
	if modelID == "" {
		return LLMResponse{}, errors.New("conversation: bedrock model id is required")
	}

	system, messages, err := bedrockMessages(req)
	if err != nil {
		return LLMResponse{}, err
	}
	if len(messages) == 0 {
		return LLMResponse{}, errors.New("conversation: bedrock requires at least one message")
	}

	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(modelID),
		System:          system,
		Messages:        messages,
		InferenceConfig: bedrockInference(req),
		GuardrailConfig: c.guardrail,
	})
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: bedrock converse: %w", err)
	}
	if out == nil {
		return LLMResponse{}, errors.New("conversation: bedrock response is nil")
	}

	switch out.StopReason {
	case brtypes.StopReasonGuardrailIntervened, brtypes.StopReasonContentFiltered:
		return LLMResponse{}, fmt.Errorf("bedrock %s: %w", out.StopReason, ErrReplyFiltered)
	}

	text, err := bedrockText(out.Output)
	if err != nil {
		return LLMResponse{}, err
	}
	resp := LLMResponse{Text: text, StopReason: string(out.StopReason)}
	if u := out.Usage; u != nil {
		resp.Usage = TokenUsage{
			InputTokens:  aws.ToInt32(u.InputTokens),
			OutputTokens: aws.ToInt32(u.OutputTokens),
			TotalTokens:  aws.ToInt32(u.TotalTokens),
		}
	}
	return resp, nil
}

func bedrockTextBlock(s string) brtypes.ContentBlock {
	return &brtypes.ContentBlockMemberText{Value: s}
}

// bedrockMessages folds system-role chat messages into the system blocks,
// since Converse only accepts user and assistant turns.
func bedrockMessages(req LLMRequest) ([]brtypes.SystemContentBlock, []brtypes.Message, error) {
	var system []brtypes.SystemContentBlock
	addSystem := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: s})
		}
	}
	for _, block := range req.System {
		addSystem(block)
	}

	messages := make([]brtypes.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		var role brtypes.ConversationRole
		switch msg.Role {
		case ChatRoleSystem:
			addSystem(content)
			continue
		case ChatRoleUser:
			role = brtypes.ConversationRoleUser
		case ChatRoleAssistant:
			role = brtypes.ConversationRoleAssistant
		default:
			return nil, nil, fmt.Errorf("conversation: unsupported role %q", msg.Role)
		}
		messages = append(messages, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{bedrockTextBlock(content)},
		})
	}
	return system, messages, nil
}

// bedrockInference returns nil when the request sets no inference options.
// A negative temperature means the model default.
func bedrockInference(req LLMRequest) *brtypes.InferenceConfiguration {
	var cfg brtypes.InferenceConfiguration
	set := false
	if req.MaxTokens > 0 {
		cfg.MaxTokens, set = aws.Int32(req.MaxTokens), true
	}
	if req.Temperature >= 0 {
		cfg.Temperature, set = aws.Float32(req.Temperature), true
	}
	if req.TopP != 0 {
		cfg.TopP, set = aws.Float32(req.TopP), true
	}
	if !set {
		return nil
	}
	return &cfg
}

func bedrockText(output brtypes.ConverseOutput) (string, error) {
	msg, ok := output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("conversation: bedrock response did not include a message output")
	}
	var b strings.Builder
	for _, block := range msg.Value.Content {
		if t, ok := block.(*brtypes.ContentBlockMemberText); ok {
			b.WriteString(t.Value)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", errors.New("conversation: bedrock response contained no text content")
	}
	return text, nil
}

package conversation

import (
	"context"
	"errors"

	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

// FallbackLLMClient tries a primary provider and, on failure, one fallback.
// Safety-filtered replies and spent deadlines are not retried.
type FallbackLLMClient struct {
	primary  LLMClient
	fallback LLMClient
	logger   *logging.Logger
}

// NewFallbackLLMClient accepts a nil fallback, in which case it only uses
// the primary.
func NewFallbackLLMClient(primary, fallback LLMClient, logger *logging.Logger) *FallbackLLMClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackLLMClient{primary: primary, fallback: fallback, logger: logger}
}

func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, ErrReplyFiltered), c.fallback == nil:
		return LLMResponse{}, err
	case ctx.Err() != nil:
		return LLMResponse{}, ctx.Err()
	}

	c.logger.Warn("primary reply provider failed, trying fallback", "error", err)
	resp, fbErr := c.fallback.Complete(ctx, req)
	if fbErr != nil {
		c.logger.Error("fallback reply provider failed",
			"primary_error", err,
			"fallback_error", fbErr,
		)
		return LLMResponse{}, fbErr
	}
	return resp, nil
}

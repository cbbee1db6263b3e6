package conversation

import (
	"context"
	"math/rand"
	"time"

	"github.com/confidohealth/voice-receptionist/pkg/logging"
)

const maxRetryDelay = 16 * time.Second

// RetryLLMClient retries a wrapped client with exponential backoff and
// jitter. It sits between the engine and the vendor client so the engine only
// ever sees a failure after the retry budget is spent.
type RetryLLMClient struct {
	inner      LLMClient
	maxRetries int
	baseDelay  time.Duration
	logger     *logging.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryLLMClient wraps inner with up to maxRetries retries.
func NewRetryLLMClient(inner LLMClient, maxRetries int, baseDelay time.Duration, logger *logging.Logger) *RetryLLMClient {
	if inner == nil {
		panic("conversation: inner LLM client required")
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RetryLLMClient{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

// Complete calls the wrapped client, retrying failed attempts until the
// budget runs out or the context is cancelled.
func (c *RetryLLMClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		text, err := c.inner.Complete(ctx, messages)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if attempt >= c.maxRetries {
			c.logger.Error("language model failed after retries",
				"attempts", attempt+1,
				"error", err,
			)
			return "", lastErr
		}

		delay := c.baseDelay << attempt
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
		delay += time.Duration(rand.Int63n(int64(delay)/10 + 1)) // up to 10% jitter

		c.logger.Warn("language model call failed, retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"delay", delay,
			"error", err,
		)
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

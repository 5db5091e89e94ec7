package translate

import (
	"context"
	"sync/atomic"
	"time"
)

// MockTranslator is a test double. It prefixes text with the target code so
// callers can assert the translated output differs from the original.
type MockTranslator struct {
	Err           error         // Returned on every call when set.
	RateLimitOnce bool          // First call fails with a RateLimitError, later calls succeed.
	Delay         time.Duration // Sleep before answering, for timeout tests.

	calls atomic.Int64
}

func (m *MockTranslator) Translate(ctx context.Context, text, sourceCode, targetCode string) (string, error) {
	m.calls.Add(1)
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.Err != nil {
		return "", m.Err
	}
	if m.RateLimitOnce && m.calls.Load() == 1 {
		return "", &RateLimitError{StatusCode: 429, Message: "slow down"}
	}
	return "[" + targetCode + "] " + text, nil
}

// Calls reports how many times Translate was invoked.
func (m *MockTranslator) Calls() int {
	return int(m.calls.Load())
}

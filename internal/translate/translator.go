package translate

import (
	"context"
	"errors"
	"fmt"
)

// Translator converts text to a target language.
type Translator interface {
	Translate(ctx context.Context, text, sourceCode, targetCode string) (string, error)
}

// RateLimitError signals the service asked us to back off. Callers may retry
// once after a delay; any other error is not worth retrying.
type RateLimitError struct {
	StatusCode int
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRateLimited checks whether an error is a rate-limit signal.
func IsRateLimited(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

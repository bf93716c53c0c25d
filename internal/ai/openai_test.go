package ai

import (
	"errors"
	"fmt"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestClassifyOpenAIError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantRetry bool
	}{
		{"rate limited", &openai.APIError{HTTPStatusCode: 429}, true},
		{"server error", fmt.Errorf("wrapped: %w", &openai.APIError{HTTPStatusCode: 503}), true},
		{"bad request", &openai.APIError{HTTPStatusCode: 400}, false},
		{"not an api error", errors.New("dial tcp: connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retry, wait := classifyOpenAIError(tt.err)
			assert.Equal(t, tt.wantRetry, retry)
			if tt.wantRetry {
				assert.Positive(t, wait)
			} else {
				assert.Zero(t, wait)
			}
		})
	}
}

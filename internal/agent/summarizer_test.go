// internal/agent/summarizer_test.go
package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/overlayhq/sherpa/api/schemas"
	"github.com/overlayhq/sherpa/internal/observability"
)

func newTestSummarizer(t *testing.T) (*Summarizer, *MockVLMClient) {
	t.Helper()
	client := new(MockVLMClient)
	return NewSummarizer(client, observability.GetLogger()), client
}

func TestSummarizer_TrimmedSummary(t *testing.T) {
	summarizer, client := newTestSummarizer(t)

	client.On("Generate", mock.Anything, mock.Anything).
		Return("  Created the repository on GitHub.  \n", nil).Once()

	summary, err := summarizer.Summarize(context.Background(), testGoal(), []string{"Open github.com", "Click New"})

	require.NoError(t, err)
	assert.Equal(t, "Created the repository on GitHub.", summary)
}

func TestSummarizer_RequestShape(t *testing.T) {
	summarizer, client := newTestSummarizer(t)

	client.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		// Text-only call on the fast tier; no screenshot involved.
		return req.Tier == schemas.TierFast && req.Image == nil && !req.Options.ForceJSONFormat
	})).Return("Done.", nil).Once()

	_, err := summarizer.Summarize(context.Background(), testGoal(), nil)
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestSummarizer_EmptyResponseFallsBackToTitle(t *testing.T) {
	summarizer, client := newTestSummarizer(t)

	client.On("Generate", mock.Anything, mock.Anything).
		Return("   ", nil).Once()

	summary, err := summarizer.Summarize(context.Background(), testGoal(), []string{"step"})

	require.NoError(t, err)
	assert.Equal(t, "Completed: Open GitHub", summary)
}

func TestSummarizer_TransportFailure(t *testing.T) {
	summarizer, client := newTestSummarizer(t)

	client.On("Generate", mock.Anything, mock.Anything).
		Return("", errors.New("status 503")).Once()

	_, err := summarizer.Summarize(context.Background(), testGoal(), nil)

	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
}

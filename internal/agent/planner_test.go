// internal/agent/planner_test.go
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

func newTestPlanner(t *testing.T) (*Planner, *MockVLMClient) {
	t.Helper()
	client := new(MockVLMClient)
	return NewPlanner(client, observability.GetLogger()), client
}

func TestPlanner_StrictSchema(t *testing.T) {
	planner, client := newTestPlanner(t)

	client.On("Generate", mock.Anything, mock.Anything).
		Return(`{"goals": [{"id": 1, "title": "Open GitHub", "description": "Go to github.com"}, {"id": 2, "title": "Create repo", "description": "Click New"}]}`, nil).Once()

	plan, err := planner.Plan(context.Background(), "Create a repo", "No previous actions.", testImg)

	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, 1, plan[0].ID)
	assert.Equal(t, "Open GitHub", plan[0].Title)
	assert.Equal(t, 2, plan[1].ID)
	client.AssertExpectations(t)
}

func TestPlanner_RequestShape(t *testing.T) {
	planner, client := newTestPlanner(t)

	client.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		return req.Tier == schemas.TierPowerful &&
			req.Options.ForceJSONFormat &&
			req.Image != nil
	})).Return(`{"goals": [{"id": 1, "title": "Step", "description": "d"}]}`, nil).Once()

	_, err := planner.Plan(context.Background(), "goal", "No previous actions.", testImg)
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestPlanner_BareArrayFallback(t *testing.T) {
	planner, client := newTestPlanner(t)

	client.On("Generate", mock.Anything, mock.Anything).
		Return("```json\n[{\"id\": 1, \"title\": \"Open GitHub\", \"description\": \"d\"}]\n```", nil).Once()

	plan, err := planner.Plan(context.Background(), "goal", "No previous actions.", testImg)

	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "Open GitHub", plan[0].Title)
}

func TestPlanner_EmptyListFails(t *testing.T) {
	planner, client := newTestPlanner(t)

	client.On("Generate", mock.Anything, mock.Anything).
		Return(`{"goals": []}`, nil).Once()

	_, err := planner.Plan(context.Background(), "goal", "No previous actions.", testImg)

	assert.ErrorIs(t, err, ErrNoPlanGenerated)
}

func TestPlanner_UnparseableFails(t *testing.T) {
	planner, client := newTestPlanner(t)

	client.On("Generate", mock.Anything, mock.Anything).
		Return("I cannot help with that.", nil).Once()

	_, err := planner.Plan(context.Background(), "goal", "No previous actions.", testImg)

	assert.ErrorIs(t, err, ErrNoPlanGenerated)
}

func TestPlanner_TransportFailure(t *testing.T) {
	planner, client := newTestPlanner(t)

	client.On("Generate", mock.Anything, mock.Anything).
		Return("", errors.New("status 503")).Once()

	_, err := planner.Plan(context.Background(), "goal", "No previous actions.", testImg)

	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.NotErrorIs(t, err, ErrNoPlanGenerated)
}

func TestNormalizeGoals_GapFreeAndDeduplicated(t *testing.T) {
	goals := []plannerGoal{
		{ID: 3, Title: "Open GitHub", Description: "a"},
		{ID: 3, Title: "open github", Description: "duplicate title, different case"},
		{ID: 9, Title: "", Description: "no title"},
		{ID: 1, Title: "Create repo", Description: "b"},
	}

	plan := normalizeGoals(goals)

	require.Len(t, plan, 2)
	assert.Equal(t, 1, plan[0].ID)
	assert.Equal(t, "Open GitHub", plan[0].Title)
	assert.Equal(t, 2, plan[1].ID)
	assert.Equal(t, "Create repo", plan[1].Title, "model ordering is preserved")
}

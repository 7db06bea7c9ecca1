// internal/agent/mocks_test.go
package agent

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/overlayhq/sherpa/api/schemas"
	"github.com/overlayhq/sherpa/internal/session"
)

// -- VLM Client Mock --

// MockVLMClient mocks the schemas.VLMClient interface used by the steps.
type MockVLMClient struct {
	mock.Mock
}

func (m *MockVLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockVLMClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// -- Step Mocks --

// MockPlanner mocks the PlannerStep interface.
type MockPlanner struct {
	mock.Mock
}

func (m *MockPlanner) Plan(ctx context.Context, userGoal, history string, img schemas.Screenshot) ([]session.MesoGoal, error) {
	args := m.Called(ctx, userGoal, history, img)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]session.MesoGoal), args.Error(1)
}

// MockNavigator mocks the NavigatorStep interface.
type MockNavigator struct {
	mock.Mock
}

func (m *MockNavigator) NextInstruction(ctx context.Context, goal session.MesoGoal, img schemas.Screenshot, blackboard map[string]string) (*session.MicroInstruction, error) {
	args := m.Called(ctx, goal, img, blackboard)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.MicroInstruction), args.Error(1)
}

// MockWatcher mocks the WatcherStep interface.
type MockWatcher struct {
	mock.Mock
}

func (m *MockWatcher) Check(ctx context.Context, successCriteria string, img schemas.Screenshot) (session.WatcherResult, error) {
	args := m.Called(ctx, successCriteria, img)
	return args.Get(0).(session.WatcherResult), args.Error(1)
}

// MockSummarizer mocks the SummarizerStep interface.
type MockSummarizer struct {
	mock.Mock
}

func (m *MockSummarizer) Summarize(ctx context.Context, goal session.MesoGoal, instructions []string) (string, error) {
	args := m.Called(ctx, goal, instructions)
	return args.String(0), args.Error(1)
}

// File: internal/agent/main_test.go
package agent

import (
	"os"
	"testing"

	"go.uber.org/goleak"
	"go.uber.org/zap/zapcore"

	"github.com/overlayhq/sherpa/internal/config"
	"github.com/overlayhq/sherpa/internal/observability"
)

// TestMain serves as the entry point for all tests in the agent package.
// It instantiates the global logger before running tests and verifies no
// goroutines leak across the suite.
func TestMain(m *testing.M) {
	appConfig := config.NewDefaultConfig()
	logConfig := appConfig.Logger
	logConfig.Level = "debug"
	logConfig.ServiceName = "test-suite"
	logConfig.Format = "console"

	observability.Initialize(logConfig, zapcore.Lock(os.Stdout))

	goleak.VerifyTestMain(m, goleak.Cleanup(func(exitCode int) {
		observability.Sync()
		observability.ResetForTest()
		os.Exit(exitCode)
	}))
}

package app

import (
	"os"
	"testing"

	"github.com/vk/fragmesh/internal/extension"
	"github.com/vk/fragmesh/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing. The returned
// buffer captures everything the app logs at debug level.
func SetupAppTest(t *testing.T, appConfig *Config, modules ...extension.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	appConfig.LogLevel = "debug"
	testApp := NewApp(logBuffer, appConfig, modules...)

	t.Cleanup(func() {
		if os.Getenv("FRAGMESH_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}

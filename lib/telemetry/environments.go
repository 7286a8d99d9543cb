package telemetry

import (
	"context"
	"sync"
)

var setupTestEnvironments = map[string]bool{}
var setupMu sync.Mutex

// SetupForTesting sets up telemetry in a testing environment, ensuring
// that it isn't set up more than once per service name. Without a
// telemetry.json5 in scope this is a no-op beyond slog initialization.
func SetupForTesting(serviceName string) func() {
	setupMu.Lock()
	defer setupMu.Unlock()
	if setupTestEnvironments[serviceName] {
		return func() {}
	}
	setupTestEnvironments[serviceName] = true

	InitSlog(true)
	err := SetupFromEnv(context.Background(), serviceName)
	if err != nil {
		panic(err)
	}

	return func() {
		err := Shutdown(context.Background())
		if err != nil {
			panic(err)
		}
	}
}

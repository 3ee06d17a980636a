// Package firestoretest starts a Firestore emulator for integration tests.
package firestoretest

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	image = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"
	port  = "8080/tcp"
)

// StartEmulator runs the emulator in a container removed when t finishes and returns its
// host:port. The test is skipped when no container runtime is reachable.
func StartEmulator(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	ctr, err := testcontainers.Run(ctx, image,
		testcontainers.WithExposedPorts(port),
		testcontainers.WithCmd("gcloud", "beta", "emulators", "firestore", "start", "--host-port=0.0.0.0:8080", "--quiet"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort(port),
			wait.ForLog("Dev App Server is now running").WithStartupTimeout(2*time.Minute),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start firestore emulator: %v", err)
	}

	endpoint, err := ctr.PortEndpoint(ctx, port, "")
	if err != nil {
		t.Fatalf("firestore emulator endpoint: %v", err)
	}
	return endpoint
}
